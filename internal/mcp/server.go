package mcp

import (
	"context"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/dmitriimaksimovdevelop/netwhy/internal/config"
)

// Server wraps the MCP server instance.
type Server struct {
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP server with registered tools.
func NewServer(version string) *Server {
	s := server.NewMCPServer("netwhy", version, server.WithLogging())

	registerTools(s)

	return &Server{
		mcpServer: s,
	}
}

// Start runs the server in stdio mode (blocking).
func (s *Server) Start(ctx context.Context) error {
	stdioServer := server.NewStdioServer(s.mcpServer)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// registerTools adds all supported tools to the server.
func registerTools(s *server.MCPServer) {
	diagnoseTool := mcp.NewTool("diagnose",
		mcp.WithDescription("Run a one-shot network diagnosis: ping (TCP connect to port 80, ICMP fallback on total loss), DNS resolution and an optional HTTP HEAD check. Returns the JSON report with a plain-language summary."),
		mcp.WithString("target",
			mcp.Description("Host or IP to ping (default 8.8.8.8)"),
		),
		mcp.WithString("profile",
			mcp.Description("Probe depth: quick (2 pings, 2s), standard (4 pings, 5s), thorough (10 pings, 5s, paced)"),
			mcp.DefaultString("standard"),
			mcp.Enum(config.ProfileNames()...),
		),
		mcp.WithNumber("count",
			mcp.Description("Number of ping attempts (overrides profile)"),
		),
		mcp.WithNumber("timeout",
			mcp.Description("Per-operation timeout in seconds (overrides profile)"),
		),
		mcp.WithString("dns",
			mcp.Description("Comma-separated hostnames to resolve (default google.com,cloudflare.com)"),
		),
		mcp.WithBoolean("no_dns",
			mcp.Description("Skip DNS checks"),
		),
		mcp.WithBoolean("no_ping",
			mcp.Description("Skip the ping probe"),
		),
		mcp.WithString("http",
			mcp.Description("URL for the HTTP reachability check; http:// is assumed when no scheme is given"),
		),
		mcp.WithString("query",
			mcp.Description("Optional jq expression applied to the JSON report, e.g. '.ping.packet_loss'"),
		),
	)
	s.AddTool(diagnoseTool, handleDiagnose)

	explainTool := mcp.NewTool("explain_rule",
		mcp.WithDescription("Explain when a summary rule fires. Use list_rules to discover available IDs."),
		mcp.WithString("rule_id",
			mcp.Required(),
			mcp.Description("Rule ID (e.g. 'ping_total_loss', 'hint_dns_only'). Use list_rules to see all."),
		),
	)
	s.AddTool(explainTool, handleExplainRule)

	listTool := mcp.NewTool("list_rules",
		mcp.WithDescription("List the interpretation rules that produce the report summary, in evaluation order."),
	)
	s.AddTool(listTool, handleListRules)
}
