package mcp

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dmitriimaksimovdevelop/netwhy/internal/config"
	"github.com/dmitriimaksimovdevelop/netwhy/internal/model"
	"github.com/dmitriimaksimovdevelop/netwhy/internal/orchestrator"
	"github.com/dmitriimaksimovdevelop/netwhy/internal/output"
)

// diagnoseTimeout bounds a whole diagnose call regardless of arguments.
const diagnoseTimeout = 2 * time.Minute

// buildReport is swapped out in tests.
var buildReport = orchestrator.BuildReport

// handleDiagnose runs the probes with defaults overridden by the arguments.
func handleDiagnose(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, cancel := context.WithTimeout(ctx, diagnoseTimeout)
	defer cancel()

	args := getArgs(request)

	cfg, err := configFromArgs(args)
	if err != nil {
		return errResult(err.Error()), nil
	}

	var query *output.Query
	if expr := stringArg(args, "query", ""); expr != "" {
		if query, err = output.ParseQuery(expr); err != nil {
			return errResult(err.Error()), nil
		}
	}

	report, err := buildReport(ctx, cfg, nil)
	if err != nil {
		return errResult(fmt.Sprintf("diagnosis failed: %v", err)), nil
	}

	var buf bytes.Buffer
	if query != nil {
		err = output.WriteQuery(ctx, &buf, query, report)
	} else {
		err = output.EncodeJSON(&buf, report)
	}
	if err != nil {
		return errResult(err.Error()), nil
	}
	return newTextResult(buf.String()), nil
}

// configFromArgs applies the tool arguments on top of DefaultConfig.
// Only a fractional count is rejected here; the rest of the validation is
// left to BuildReport.
func configFromArgs(args map[string]interface{}) (config.ProbeConfig, error) {
	cfg := config.DefaultConfig()
	cfg.ApplyProfile(stringArg(args, "profile", "standard"))

	cfg.Target = stringArg(args, "target", cfg.Target)
	if n, ok := numberArg(args, "count"); ok {
		if n != math.Trunc(n) {
			return cfg, fmt.Errorf("%w: count must be a whole number, got %v", config.ErrInvalidConfig, n)
		}
		cfg.Count = int(n)
	}
	if n, ok := numberArg(args, "timeout"); ok {
		cfg.Timeout = config.Seconds(n)
	}
	if v := stringArg(args, "dns", ""); v != "" {
		cfg.DNSHosts = config.SplitList(v)
	}
	cfg.NoDNS = boolArg(args, "no_dns")
	cfg.NoPing = boolArg(args, "no_ping")
	cfg.HTTPURL = stringArg(args, "http", "")
	return cfg, nil
}

// handleExplainRule describes a single interpretation rule.
func handleExplainRule(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := getArgs(request)
	ruleID := stringArg(args, "rule_id", "")
	if ruleID == "" {
		return errResult("rule_id is required"), nil
	}

	rule, ok := model.FindRule(ruleID)
	if !ok {
		return newTextResult(fmt.Sprintf(
			"No rule with ID '%s'. Use 'list_rules' to see the available IDs.", ruleID,
		)), nil
	}

	return newTextResult(fmt.Sprintf("**%s** (%s)\n%s", rule.ID, rule.Category, rule.Description)), nil
}

// handleListRules returns every rule in evaluation order.
func handleListRules(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	type entry struct {
		ID          string `json:"id"`
		Category    string `json:"category"`
		Description string `json:"description"`
	}

	var entries []entry
	for _, g := range model.DefaultRules() {
		for _, r := range g.Rules {
			entries = append(entries, entry{ID: r.ID, Category: r.Category, Description: r.Description})
		}
	}

	var buf bytes.Buffer
	if err := output.EncodeJSON(&buf, entries); err != nil {
		return errResult(fmt.Sprintf("json marshal failed: %v", err)), nil
	}
	return newTextResult(buf.String()), nil
}

// getArgs safely extracts the arguments map from a CallToolRequest.
// Returns an empty map if Arguments is nil or not a map.
func getArgs(request mcp.CallToolRequest) map[string]interface{} {
	if request.Params.Arguments == nil {
		return map[string]interface{}{}
	}
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return map[string]interface{}{}
	}
	return args
}

// stringArg extracts a string argument with a default value.
func stringArg(args map[string]interface{}, key, defaultVal string) string {
	val, ok := args[key]
	if !ok || val == nil {
		return defaultVal
	}
	s, ok := val.(string)
	if !ok || s == "" {
		return defaultVal
	}
	return s
}

// numberArg extracts a JSON number argument.
func numberArg(args map[string]interface{}, key string) (float64, bool) {
	n, ok := args[key].(float64)
	return n, ok
}

func boolArg(args map[string]interface{}, key string) bool {
	b, _ := args[key].(bool)
	return b
}

// newTextResult creates a successful MCP tool result with text content.
func newTextResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: text,
			},
		},
	}
}

// errResult creates an MCP tool error result (IsError=true).
// This is returned as a tool-level error, not a transport-level JSON-RPC error.
func errResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: msg,
			},
		},
	}
}
