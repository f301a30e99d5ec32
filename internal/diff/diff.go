// Package diff compares two netwhy reports and highlights regressions/improvements.
package diff

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dmitriimaksimovdevelop/netwhy/internal/model"
)

// DiffReport contains the comparison between two reports.
type DiffReport struct {
	Baseline         string         `json:"baseline"`
	Current          string         `json:"current"`
	BaselineExit     int            `json:"baseline_exit_code"`
	CurrentExit      int            `json:"current_exit_code"`
	Changes          []MetricChange `json:"changes"`
	Regressions      int            `json:"regressions"`
	Improvements     int            `json:"improvements"`
	NewFindings      []string       `json:"new_findings,omitempty"`
	ResolvedFindings []string       `json:"resolved_findings,omitempty"`
}

// MetricChange represents a single metric difference between reports.
type MetricChange struct {
	Category     string  `json:"category"`
	Metric       string  `json:"metric"`
	OldValue     float64 `json:"old_value"`
	NewValue     float64 `json:"new_value"`
	Delta        float64 `json:"delta"`
	DeltaPct     float64 `json:"delta_pct"`
	Direction    string  `json:"direction"`    // "regression", "improvement", "unchanged"
	Significance string  `json:"significance"` // "high", "medium", "low"
}

// Compare computes differences between two reports. Metrics are compared
// only when the probe ran in both.
func Compare(baseline, current *model.Report) *DiffReport {
	diff := &DiffReport{
		Baseline:     "baseline",
		Current:      "current",
		BaselineExit: baseline.ExitCode(),
		CurrentExit:  current.ExitCode(),
	}

	if oldP, newP := baseline.Ping, current.Ping; oldP != nil && newP != nil {
		addChange(diff, "ping", "packet_loss_pct", oldP.PacketLoss, newP.PacketLoss, true)
		if oldP.HasLatency() && newP.HasLatency() {
			addChange(diff, "ping", "avg_latency_ms", ms(oldP.Avg), ms(newP.Avg), true)
			addChange(diff, "ping", "min_latency_ms", ms(oldP.Min), ms(newP.Min), true)
			addChange(diff, "ping", "max_latency_ms", ms(oldP.Max), ms(newP.Max), true)
		}
	}

	if len(baseline.DNS) > 0 && len(current.DNS) > 0 {
		addChange(diff, "dns", "failed_lookups",
			float64(failedLookups(baseline.DNS)), float64(failedLookups(current.DNS)), true)
	}

	if oldH, newH := baseline.HTTP, current.HTTP; oldH != nil && newH != nil {
		addChange(diff, "http", "reachable", boolf(oldH.Success), boolf(newH.Success), false)
		if oldH.Success && newH.Success && oldH.ResponseTime != nil && newH.ResponseTime != nil {
			addChange(diff, "http", "response_time_ms", ms(*oldH.ResponseTime), ms(*newH.ResponseTime), true)
		}
	}

	diff.NewFindings, diff.ResolvedFindings = compareFindings(baseline.Summary, current.Summary)

	for _, c := range diff.Changes {
		switch c.Direction {
		case "regression":
			diff.Regressions++
		case "improvement":
			diff.Improvements++
		}
	}

	return diff
}

func addChange(diff *DiffReport, category, metric string, oldVal, newVal float64, higherIsWorse bool) {
	delta := newVal - oldVal
	deltaPct := 0.0
	if oldVal != 0 {
		deltaPct = (delta / math.Abs(oldVal)) * 100
	} else if delta != 0 {
		// Any move away from zero counts as a full change.
		deltaPct = math.Copysign(100, delta)
	}

	// Skip negligible changes
	if math.Abs(deltaPct) < 1.0 && math.Abs(delta) < 0.1 {
		return
	}

	direction := "unchanged"
	if higherIsWorse {
		if deltaPct > 5 {
			direction = "regression"
		} else if deltaPct < -5 {
			direction = "improvement"
		}
	} else {
		if deltaPct < -5 {
			direction = "regression"
		} else if deltaPct > 5 {
			direction = "improvement"
		}
	}

	significance := "low"
	absPct := math.Abs(deltaPct)
	if absPct >= 50 {
		significance = "high"
	} else if absPct >= 20 {
		significance = "medium"
	}

	diff.Changes = append(diff.Changes, MetricChange{
		Category:     category,
		Metric:       metric,
		OldValue:     oldVal,
		NewValue:     newVal,
		Delta:        delta,
		DeltaPct:     deltaPct,
		Direction:    direction,
		Significance: significance,
	})
}

// compareFindings lists summary lines present in only one of the reports.
func compareFindings(old, cur model.Summary) (added, resolved []string) {
	oldSet := lineSet(old)
	curSet := lineSet(cur)
	for _, l := range summaryLines(cur) {
		if !oldSet[l] {
			added = append(added, l)
		}
	}
	for _, l := range summaryLines(old) {
		if !curSet[l] {
			resolved = append(resolved, l)
		}
	}
	return added, resolved
}

func summaryLines(s model.Summary) []string {
	return append(append([]string{}, s.Findings...), s.Interpretation...)
}

func lineSet(s model.Summary) map[string]bool {
	set := make(map[string]bool)
	for _, l := range summaryLines(s) {
		set[l] = true
	}
	return set
}

func failedLookups(results []model.DNSResult) int {
	n := 0
	for _, r := range results {
		if !r.Success {
			n++
		}
	}
	return n
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func boolf(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// FormatDiff returns a human-readable diff summary.
func FormatDiff(d *DiffReport) string {
	var sb strings.Builder

	sb.WriteString("=== Report Diff ===\n")
	sb.WriteString(fmt.Sprintf("Baseline: %s\n", d.Baseline))
	sb.WriteString(fmt.Sprintf("Current:  %s\n\n", d.Current))

	symbol := "→"
	if d.CurrentExit < d.BaselineExit {
		symbol = "↑"
	} else if d.CurrentExit > d.BaselineExit {
		symbol = "↓"
	}
	sb.WriteString(fmt.Sprintf("Status: %s → %s %s\n", statusLabel(d.BaselineExit), statusLabel(d.CurrentExit), symbol))
	sb.WriteString(fmt.Sprintf("Regressions: %d, Improvements: %d\n\n", d.Regressions, d.Improvements))

	if d.Regressions > 0 {
		sb.WriteString("⚠ Regressions:\n")
		writeChanges(&sb, d.Changes, "regression")
		sb.WriteString("\n")
	}

	if d.Improvements > 0 {
		sb.WriteString("✓ Improvements:\n")
		writeChanges(&sb, d.Changes, "improvement")
		sb.WriteString("\n")
	}

	if len(d.NewFindings) > 0 {
		sb.WriteString("New findings:\n")
		for _, f := range d.NewFindings {
			sb.WriteString("  + " + f + "\n")
		}
	}
	if len(d.ResolvedFindings) > 0 {
		sb.WriteString("Resolved findings:\n")
		for _, f := range d.ResolvedFindings {
			sb.WriteString("  - " + f + "\n")
		}
	}

	return sb.String()
}

func writeChanges(sb *strings.Builder, changes []MetricChange, direction string) {
	for _, c := range changes {
		if c.Direction == direction {
			sb.WriteString(fmt.Sprintf("  [%s] %s/%s: %.2f → %.2f (%+.1f%%)\n",
				strings.ToUpper(c.Significance), c.Category, c.Metric,
				c.OldValue, c.NewValue, c.DeltaPct))
		}
	}
}

func statusLabel(exitCode int) string {
	if exitCode == 0 {
		return "OK"
	}
	return "PROBLEM"
}
