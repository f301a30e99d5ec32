package model

import "strings"

// Summary is the natural-language diagnosis derived from a report.
type Summary struct {
	Findings       []string `json:"findings"`
	Interpretation []string `json:"interpretation"`
	RuleIDs        []string `json:"-"`
}

// Summarize evaluates the default rule table against the probe results.
func Summarize(ping *PingResult, dns []DNSResult, http *HTTPResult) Summary {
	return Evaluate(DefaultRules(), Evidence{Ping: ping, DNS: dns, HTTP: http})
}

// Evaluate applies the rule groups in order.
func Evaluate(groups []RuleGroup, e Evidence) Summary {
	var s Summary

	for _, g := range groups {
		for _, r := range g.Rules {
			if !r.Match(e) {
				continue
			}
			msg := r.Message(e)
			if g.Hints {
				s.Interpretation = append(s.Interpretation, msg)
			} else {
				s.Findings = append(s.Findings, msg)
			}
			s.RuleIDs = append(s.RuleIDs, r.ID)
			if g.Mode == FirstMatch {
				break
			}
		}
	}

	if len(s.Findings) == 0 {
		return Summary{Findings: []string{noDiagnosticsText}}
	}
	return s
}

// String renders the summary as plain text: one finding per line, then the
// interpretation hints as an indented list.
func (s Summary) String() string {
	if len(s.Findings) == 0 {
		return noDiagnosticsText
	}

	lines := append([]string{}, s.Findings...)
	if len(s.Interpretation) > 0 {
		lines = append(lines, "", interpretationHead)
		for _, hint := range s.Interpretation {
			lines = append(lines, "  - "+hint)
		}
	}
	return strings.Join(lines, "\n")
}
