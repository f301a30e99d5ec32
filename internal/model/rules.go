package model

import (
	"fmt"
	"net/http"
	"strings"
)

// Evidence is the input every interpretation rule is evaluated against.
type Evidence struct {
	Ping *PingResult
	DNS  []DNSResult
	HTTP *HTTPResult
}

// Rule maps a predicate over the evidence to one summary sentence.
type Rule struct {
	ID          string
	Category    string
	Description string
	Match       func(e Evidence) bool
	Message     func(e Evidence) string
}

// Mode decides how many rules of a group may fire.
type Mode int

const (
	// FirstMatch emits the message of the first matching rule only.
	FirstMatch Mode = iota
	// AllMatch emits every matching rule, in table order.
	AllMatch
)

// RuleGroup is an ordered set of rules for one category.
type RuleGroup struct {
	Category string
	Mode     Mode
	Hints    bool // messages go to Interpretation instead of Findings
	Rules    []Rule
}

const (
	severeLossPct      = 50
	highLossPct        = 20
	veryHighLatencyMs  = 500
	highLatencyMs      = 200
	hintLossPct        = 30
	dnsOnlyMaxLossPct  = 50
	noDiagnosticsText  = "No diagnostics performed."
	interpretationHead = "Interpretation:"
)

func pingLoss(e Evidence) float64 {
	return e.Ping.PacketLoss
}

func pingRan(e Evidence) bool {
	return e.Ping != nil
}

// DefaultRules returns the built-in interpretation table. Groups are
// evaluated in order; findings keep ping, DNS, HTTP order.
func DefaultRules() []RuleGroup {
	return []RuleGroup{
		{
			Category: "ping",
			Mode:     FirstMatch,
			Rules: []Rule{
				{
					ID:          "ping_total_loss",
					Category:    "ping",
					Description: "Every ping attempt failed (100% loss).",
					Match:       func(e Evidence) bool { return pingRan(e) && pingLoss(e) == 100 },
					Message: func(e Evidence) string {
						return "All ping attempts failed. No connectivity to target host."
					},
				},
				{
					ID:          "ping_severe_loss",
					Category:    "ping",
					Description: "Packet loss above 50%.",
					Match:       func(e Evidence) bool { return pingRan(e) && pingLoss(e) > severeLossPct },
					Message: func(e Evidence) string {
						return fmt.Sprintf("Severe packet loss (%.1f%%) and connectivity issues.", pingLoss(e))
					},
				},
				{
					ID:          "ping_high_loss",
					Category:    "ping",
					Description: "Packet loss above 20%.",
					Match:       func(e Evidence) bool { return pingRan(e) && pingLoss(e) > highLossPct },
					Message: func(e Evidence) string {
						return fmt.Sprintf("High packet loss (%.1f%%) detected.", pingLoss(e))
					},
				},
				{
					ID:          "ping_very_high_latency",
					Category:    "ping",
					Description: "Average round trip above 500 ms.",
					Match: func(e Evidence) bool {
						return pingRan(e) && e.Ping.HasLatency() && ms(e.Ping.Avg) > veryHighLatencyMs
					},
					Message: func(e Evidence) string {
						return fmt.Sprintf("Very high latency (%.0f ms average) suggests network congestion or routing issues.", ms(e.Ping.Avg))
					},
				},
				{
					ID:          "ping_high_latency",
					Category:    "ping",
					Description: "Average round trip above 200 ms.",
					Match: func(e Evidence) bool {
						return pingRan(e) && e.Ping.HasLatency() && ms(e.Ping.Avg) > highLatencyMs
					},
					Message: func(e Evidence) string {
						return fmt.Sprintf("High latency (%.0f ms average) detected.", ms(e.Ping.Avg))
					},
				},
				{
					ID:          "ping_normal",
					Category:    "ping",
					Description: "Latency and loss within normal range.",
					Match:       func(e Evidence) bool { return pingRan(e) && e.Ping.HasLatency() },
					Message: func(e Evidence) string {
						return fmt.Sprintf("Average latency %.0f ms, packet loss %.1f%%.", ms(e.Ping.Avg), pingLoss(e))
					},
				},
			},
		},
		{
			Category: "dns",
			Mode:     FirstMatch,
			Rules: []Rule{
				{
					ID:          "dns_all_failed",
					Category:    "dns",
					Description: "No tested hostname resolved.",
					Match:       func(e Evidence) bool { return AllDNSFailed(e.DNS) },
					Message: func(e Evidence) string {
						return "DNS resolution is failing for all tested hostnames."
					},
				},
				{
					ID:          "dns_partial_failure",
					Category:    "dns",
					Description: "Some, but not all, hostnames failed to resolve.",
					Match:       func(e Evidence) bool { return len(failedHostnames(e.DNS)) > 0 },
					Message: func(e Evidence) string {
						return "DNS resolution failed for: " + strings.Join(failedHostnames(e.DNS), ", ")
					},
				},
				{
					ID:          "dns_ok",
					Category:    "dns",
					Description: "Every tested hostname resolved.",
					Match:       func(e Evidence) bool { return len(e.DNS) > 0 },
					Message:     func(e Evidence) string { return "DNS resolution OK." },
				},
			},
		},
		{
			Category: "http",
			Mode:     FirstMatch,
			Rules: []Rule{
				{
					ID:          "http_reachable",
					Category:    "http",
					Description: "The server answered with an HTTP status line.",
					Match:       func(e Evidence) bool { return e.HTTP != nil && e.HTTP.Success },
					Message:     httpSuccessMessage,
				},
				{
					ID:          "http_unreachable",
					Category:    "http",
					Description: "No HTTP response was received.",
					Match:       func(e Evidence) bool { return e.HTTP != nil && !e.HTTP.Success },
					Message: func(e Evidence) string {
						return fmt.Sprintf("HTTP request to %s failed: %s", e.HTTP.URL, e.HTTP.Error)
					},
				},
			},
		},
		{
			Category: "hint",
			Mode:     AllMatch,
			Hints:    true,
			Rules: []Rule{
				{
					ID:          "hint_lossy_path",
					Category:    "hint",
					Description: "Packet loss above 30% points at the connection, the ISP, or the target.",
					Match:       func(e Evidence) bool { return pingRan(e) && pingLoss(e) > hintLossPct },
					Message: func(e Evidence) string {
						return "High packet loss suggests problems with your connection, ISP, or the target host."
					},
				},
				{
					ID:          "hint_dns_only",
					Category:    "hint",
					Description: "DNS fails everywhere while raw connectivity is mostly fine.",
					Match: func(e Evidence) bool {
						return AllDNSFailed(e.DNS) && pingRan(e) && pingLoss(e) < dnsOnlyMaxLossPct
					},
					Message: func(e Evidence) string {
						return "DNS resolution is failing, but raw IP connectivity appears fine. Check DNS server configuration."
					},
				},
				{
					ID:          "hint_no_connectivity",
					Category:    "hint",
					Description: "Total loss points at the local network, a firewall, or an unreachable host.",
					Match:       func(e Evidence) bool { return pingRan(e) && pingLoss(e) == 100 },
					Message: func(e Evidence) string {
						return "Complete connectivity failure suggests local network issues, firewall blocking, or host unreachable."
					},
				},
			},
		},
	}
}

func failedHostnames(results []DNSResult) []string {
	var failed []string
	for _, r := range results {
		if !r.Success {
			failed = append(failed, r.Hostname)
		}
	}
	return failed
}

func httpSuccessMessage(e Evidence) string {
	h := e.HTTP
	method := h.Method
	if method == "" {
		method = http.MethodHead
	}
	status := fmt.Sprint(h.StatusCode)
	if text := http.StatusText(h.StatusCode); text != "" {
		status += " " + text
	}
	if h.ResponseTime != nil {
		return fmt.Sprintf("HTTP %s %s: %s in %.3f s", method, h.URL, status, h.ResponseTime.Seconds())
	}
	return fmt.Sprintf("HTTP %s %s: %s", method, h.URL, status)
}

// FindRule looks a rule up by its ID.
func FindRule(id string) (Rule, bool) {
	for _, g := range DefaultRules() {
		for _, r := range g.Rules {
			if r.ID == id {
				return r, true
			}
		}
	}
	return Rule{}, false
}
