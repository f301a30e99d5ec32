package output

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"

	"github.com/dmitriimaksimovdevelop/netwhy/internal/model"
)

func sampleReport() *model.Report {
	rt := 250 * time.Millisecond
	ping := model.NewPingResult(model.MethodTCP, "8.8.8.8", 80, []model.Sample{
		model.Received(10 * time.Millisecond),
		model.Lost(),
		model.Received(14 * time.Millisecond),
		model.Received(12 * time.Millisecond),
	})
	dns := []model.DNSResult{
		{Hostname: "google.com", Success: true, IPs: []string{"142.250.0.1"}},
		{Hostname: "broken.example", Error: "lookup broken.example: not found"},
	}
	http := &model.HTTPResult{URL: "http://example.com", Method: "HEAD", Success: true, StatusCode: 301, ResponseTime: &rt}
	return model.NewReport(ping, dns, http)
}

func TestWriteJSONToFile(t *testing.T) {
	outPath := filepath.Join(t.TempDir(), "report.json")

	if err := WriteJSON(sampleReport(), outPath); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	content := string(data)

	for _, want := range []string{
		`"packet_loss": 25`,
		`"method": "tcp"`,
		`"port": 80`,
		`"status_code": 301`,
		`"response_time": 0.25`,
		`"error": null`,
		"\n  \"summary\": ",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("output missing %s", want)
		}
	}
}

func TestJSONShape(t *testing.T) {
	var buf bytes.Buffer
	if err := EncodeJSON(&buf, sampleReport()); err != nil {
		t.Fatal(err)
	}

	var got map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}

	ping := got["ping"].(map[string]interface{})
	want := []interface{}{10.0, nil, 14.0, 12.0}
	if diff := cmp.Diff(want, ping["latencies"]); diff != "" {
		t.Errorf("latencies mismatch (-want +got):\n%s", diff)
	}
	if ping["min"] != 10.0 || ping["avg"] != 12.0 || ping["max"] != 14.0 {
		t.Errorf("min/avg/max = %v/%v/%v", ping["min"], ping["avg"], ping["max"])
	}

	dns := got["dns"].([]interface{})
	failed := dns[1].(map[string]interface{})
	if diff := cmp.Diff([]interface{}{}, failed["ips"]); diff != "" {
		t.Errorf("failed lookup ips should be [], got %v", failed["ips"])
	}

	summary, ok := got["summary"].(string)
	if !ok || !strings.HasPrefix(summary, "High packet loss (25.0%) detected.\nDNS resolution failed for: broken.example\nHTTP HEAD http://example.com: 301 Moved Permanently in 0.250 s") {
		t.Errorf("summary = %q", got["summary"])
	}
}

func TestJSONOmitsProbesThatDidNotRun(t *testing.T) {
	var buf bytes.Buffer
	report := model.NewReport(nil, nil, nil)
	if err := EncodeJSON(&buf, report); err != nil {
		t.Fatal(err)
	}

	want := "{\n  \"summary\": \"No diagnostics performed.\"\n}\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestICMPPortIsNull(t *testing.T) {
	report := model.NewReport(
		model.NewPingResult(model.MethodICMP, "192.0.2.1", 80, model.LostSamples(2)),
		nil, nil,
	)
	var buf bytes.Buffer
	if err := EncodeJSON(&buf, report); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{`"port": null`, `"avg": null`, `"latencies": [`} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("output missing %s:\n%s", want, buf.String())
		}
	}
}

func TestLoadReportRoundTrip(t *testing.T) {
	orig := sampleReport()
	path := filepath.Join(t.TempDir(), "r.json")
	if err := WriteJSON(orig, path); err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadReport(path)
	if err != nil {
		t.Fatalf("LoadReport: %v", err)
	}
	if diff := cmp.Diff(orig, loaded); diff != "" {
		t.Errorf("round trip mismatch (-orig +loaded):\n%s", diff)
	}
}

func TestLoadReportErrors(t *testing.T) {
	if _, err := LoadReport(filepath.Join(t.TempDir(), "none.json")); err == nil {
		t.Error("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadReport(path); err == nil {
		t.Error("expected error for malformed file")
	}
}
