package output

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/dmitriimaksimovdevelop/netwhy/internal/model"
)

// Format selects how a report is rendered.
type Format int

const (
	FormatDetailed Format = iota
	FormatSummary
	FormatJSON
)

// Render returns the report in format f.
func Render(report *model.Report, f Format) string {
	var b strings.Builder
	if err := WriteText(&b, report, f); err != nil {
		return ""
	}
	return b.String()
}

// RenderSummary returns only the summary text followed by a newline.
func RenderSummary(report *model.Report) string {
	return report.Summary.String() + "\n"
}

// RenderDetailed returns one section per probe that ran, then the summary.
func RenderDetailed(report *model.Report) string {
	var lines []string

	if pr := report.Ping; pr != nil {
		lines = append(lines, "=== Ping Results ===")
		lines = append(lines, "Target: "+pr.Host)
		if pr.Port != 0 {
			lines = append(lines, fmt.Sprintf("Port: %d", pr.Port))
		}
		lines = append(lines, "Method: "+string(pr.Method))
		if pr.HasLatency() {
			lines = append(lines, fmt.Sprintf("Min/Avg/Max latency: %.2f / %.2f / %.2f ms",
				msf(pr.Min), msf(pr.Avg), msf(pr.Max)))
			lines = append(lines, fmt.Sprintf("Packet loss: %.1f%%", pr.PacketLoss))
		} else {
			lines = append(lines, "All ping attempts failed")
		}
		if len(pr.Samples) > 0 {
			lines = append(lines, "Samples: "+formatSamples(pr.Samples))
		}
		lines = append(lines, "")
	}

	if len(report.DNS) > 0 {
		lines = append(lines, "=== DNS Checks ===")
		for _, r := range report.DNS {
			if r.Success {
				lines = append(lines, fmt.Sprintf("%s: OK (%s)", r.Hostname, strings.Join(r.IPs, ", ")))
			} else {
				lines = append(lines, fmt.Sprintf("%s: FAILED (%s)", r.Hostname, r.Error))
			}
		}
		lines = append(lines, "")
	}

	if hr := report.HTTP; hr != nil {
		lines = append(lines, "=== HTTP Check ===")
		lines = append(lines, "URL: "+hr.URL)
		if hr.Success {
			status := fmt.Sprint(hr.StatusCode)
			if text := http.StatusText(hr.StatusCode); text != "" {
				status += " " + text
			}
			lines = append(lines, "Status: "+status)
			if hr.ResponseTime != nil && *hr.ResponseTime > 0 {
				lines = append(lines, fmt.Sprintf("Response time: %.3f s", hr.ResponseTime.Seconds()))
			}
		} else {
			lines = append(lines, fmt.Sprintf("Status: FAILED (%s)", hr.Error))
		}
		lines = append(lines, "")
	}

	lines = append(lines, "=== Summary ===")
	lines = append(lines, report.Summary.String())

	return strings.Join(lines, "\n") + "\n"
}

// formatSamples lists every attempt in milliseconds, "timeout" for lost ones.
func formatSamples(samples []model.Sample) string {
	parts := make([]string, len(samples))
	for i, s := range samples {
		if s.OK {
			parts[i] = humanize.FtoaWithDigits(msf(s.RTT), 2)
		} else {
			parts[i] = "timeout"
		}
	}
	return strings.Join(parts, ", ") + " ms"
}

func msf(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// WriteText writes the report to w in format f.
func WriteText(w io.Writer, report *model.Report, f Format) error {
	var text string
	switch f {
	case FormatJSON:
		return EncodeJSON(w, report)
	case FormatSummary:
		text = RenderSummary(report)
	default:
		text = RenderDetailed(report)
	}
	_, err := io.WriteString(w, text)
	return err
}
