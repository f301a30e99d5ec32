package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/dmitriimaksimovdevelop/netwhy/internal/config"
	"github.com/dmitriimaksimovdevelop/netwhy/internal/model"
	"github.com/dmitriimaksimovdevelop/netwhy/internal/orchestrator"
	"github.com/dmitriimaksimovdevelop/netwhy/internal/output"
)

// fakeDiagnose replaces the probe run. It validates like the real one and
// records the config it received.
func fakeDiagnose(t *testing.T, report *model.Report, err error) *config.ProbeConfig {
	t.Helper()
	var got config.ProbeConfig
	orig := diagnose
	diagnose = func(ctx context.Context, cfg config.ProbeConfig, progress *output.Progress) (*model.Report, error) {
		got = cfg
		if verr := cfg.Validate(); verr != nil {
			return nil, verr
		}
		return report, err
	}
	t.Cleanup(func() { diagnose = orig })
	return &got
}

// runCLI executes the command line and returns exit code, stdout and stderr.
func runCLI(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func healthyReport() *model.Report {
	samples := make([]model.Sample, 4)
	for i := range samples {
		samples[i] = model.Received(10 * time.Millisecond)
	}
	return model.NewReport(
		model.NewPingResult(model.MethodTCP, "8.8.8.8", 80, samples),
		nil, nil,
	)
}

func brokenReport() *model.Report {
	return model.NewReport(
		model.NewPingResult(model.MethodTCP, "192.0.2.1", 80, model.LostSamples(2)),
		[]model.DNSResult{{Hostname: "google.com", Error: "lookup google.com: timed out"}},
		&model.HTTPResult{URL: "http://192.0.2.1", Error: "timed out after 2s"},
	)
}

func TestHealthyRunExitsZero(t *testing.T) {
	fakeDiagnose(t, healthyReport(), nil)

	code, stdout, stderr := runCLI("--no-dns")
	if code != 0 {
		t.Fatalf("exit = %d, stderr = %q", code, stderr)
	}
	for _, want := range []string{
		"=== Ping Results ===",
		"Min/Avg/Max latency: 10.00 / 10.00 / 10.00 ms",
		"=== Summary ===\nAverage latency 10 ms, packet loss 0.0%.\n",
	} {
		if !strings.Contains(stdout, want) {
			t.Errorf("stdout missing %q:\n%s", want, stdout)
		}
	}
	if strings.Contains(stdout, "Interpretation") {
		t.Error("healthy run should have no interpretation hints")
	}
}

func TestProblemRunExitsOne(t *testing.T) {
	fakeDiagnose(t, brokenReport(), nil)

	code, stdout, _ := runCLI("--summary")
	if code != 1 {
		t.Errorf("exit = %d, want 1", code)
	}
	if !strings.HasPrefix(stdout, "All ping attempts failed. No connectivity to target host.\n") {
		t.Errorf("summary output = %q", stdout)
	}
	if strings.Contains(stdout, "===") {
		t.Error("summary mode printed detailed sections")
	}
}

func TestJSONOutput(t *testing.T) {
	fakeDiagnose(t, healthyReport(), nil)

	code, stdout, _ := runCLI("--json", "--summary")
	if code != 0 {
		t.Fatalf("exit = %d", code)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal([]byte(stdout), &decoded); err != nil {
		t.Fatalf("stdout is not JSON: %v\n%s", err, stdout)
	}
	if _, ok := decoded["dns"]; ok {
		t.Error("dns key present although DNS did not run")
	}
	if decoded["summary"] != "Average latency 10 ms, packet loss 0.0%." {
		t.Errorf("summary = %q", decoded["summary"])
	}
}

func TestQueryOutput(t *testing.T) {
	fakeDiagnose(t, brokenReport(), nil)

	code, stdout, _ := runCLI("-q", ".http.error")
	if code != 1 {
		t.Errorf("exit = %d, want 1", code)
	}
	if stdout != "\"timed out after 2s\"\n" {
		t.Errorf("query output = %q", stdout)
	}
}

func TestOutputFile(t *testing.T) {
	fakeDiagnose(t, healthyReport(), nil)
	path := filepath.Join(t.TempDir(), "report.json")

	code, stdout, _ := runCLI("--json", "-o", path)
	if code != 0 {
		t.Fatalf("exit = %d", code)
	}
	if stdout != "" {
		t.Errorf("stdout should be empty when writing to a file, got %q", stdout)
	}
	loaded, err := output.LoadReport(path)
	if err != nil {
		t.Fatalf("LoadReport: %v", err)
	}
	if loaded.Ping == nil || loaded.Ping.PacketLoss != 0 {
		t.Errorf("loaded ping = %+v", loaded.Ping)
	}
}

func TestUsageErrorsExitTwo(t *testing.T) {
	fakeDiagnose(t, healthyReport(), nil)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"zero count", []string{"--count", "0"}, "count must be positive"},
		{"negative timeout", []string{"-t", "-1"}, "timeout must be positive"},
		{"bad float", []string{"--timeout", "soon"}, "invalid argument"},
		{"unknown flag", []string{"--bogus"}, "unknown flag"},
		{"positional", []string{"example.com"}, "unknown command"},
		{"bad url", []string{"--http", "http://"}, "has no host"},
		{"non-http url", []string{"--http", "ftp://example.com"}, "unsupported scheme"},
		{"bad icmp", []string{"--icmp", "raw"}, "icmp mode"},
		{"bad profile", []string{"--profile", "turbo"}, "unknown profile"},
		{"bad query", []string{"--query", ".ping["}, "invalid configuration"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, stderr := runCLI(tt.args...)
			if code != exitUsage {
				t.Errorf("exit = %d, want %d (stderr %q)", code, exitUsage, stderr)
			}
			if !strings.HasPrefix(stderr, "Error: ") || !strings.Contains(stderr, tt.want) {
				t.Errorf("stderr = %q, want it to contain %q", stderr, tt.want)
			}
		})
	}
}

func TestInterruptExits130(t *testing.T) {
	fakeDiagnose(t, nil, fmt.Errorf("%w: %w", orchestrator.ErrInterrupted, context.Canceled))

	code, stdout, stderr := runCLI()
	if code != exitInterrupted {
		t.Errorf("exit = %d, want 130", code)
	}
	if stderr != "\nInterrupted by user\n" {
		t.Errorf("stderr = %q", stderr)
	}
	if stdout != "" {
		t.Errorf("stdout = %q, want nothing", stdout)
	}
}

func TestUnexpectedErrorExitsOne(t *testing.T) {
	fakeDiagnose(t, nil, errors.New("boom"))

	code, _, stderr := runCLI()
	if code != exitError || stderr != "Error: boom\n" {
		t.Errorf("exit = %d, stderr = %q", code, stderr)
	}
}

func TestFlagsReachConfig(t *testing.T) {
	got := fakeDiagnose(t, healthyReport(), nil)

	code, _, stderr := runCLI(
		"--target", "example.com", "-c", "7", "-t", "2.5",
		"--dns", "a.example,b.example", "--dns", "c.example",
		"--http", "example.com", "--parallel", "--icmp", "off", "--interval", "0.1",
	)
	if code != 0 {
		t.Fatalf("exit = %d, stderr = %q", code, stderr)
	}
	if got.Target != "example.com" || got.Count != 7 || got.Timeout != 2500*time.Millisecond {
		t.Errorf("target/count/timeout = %s/%d/%s", got.Target, got.Count, got.Timeout)
	}
	if strings.Join(got.DNSHosts, " ") != "a.example b.example c.example" {
		t.Errorf("dns hosts = %v", got.DNSHosts)
	}
	if got.HTTPURL != "example.com" || !got.Parallel || got.ICMP != config.ICMPOff || got.Interval != 100*time.Millisecond {
		t.Errorf("config = %+v", *got)
	}
}

func TestDefaultsWithoutFlags(t *testing.T) {
	got := fakeDiagnose(t, healthyReport(), nil)

	if code, _, _ := runCLI(); code != 0 {
		t.Fatalf("exit = %d", code)
	}
	def := config.DefaultConfig()
	if got.Target != "8.8.8.8" || got.Count != 4 || got.Timeout != 5*time.Second {
		t.Errorf("defaults = %+v", *got)
	}
	if strings.Join(got.DNSHosts, ",") != strings.Join(def.DNSHosts, ",") || got.HTTPURL != "" {
		t.Errorf("default dns/http = %v/%q", got.DNSHosts, got.HTTPURL)
	}
}

func TestConfigPrecedence(t *testing.T) {
	got := fakeDiagnose(t, healthyReport(), nil)

	path := filepath.Join(t.TempDir(), "netwhy.yaml")
	yaml := "target: file.example\ncount: 9\ntimeout: 3\nhttp: file.example\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(config.EnvCount, "6")

	if code, _, stderr := runCLI("--config", path, "--target", "flag.example"); code != 0 {
		t.Fatalf("exit = %d, stderr = %q", code, stderr)
	}
	// flag > env > file
	if got.Target != "flag.example" {
		t.Errorf("target = %q, want flag value", got.Target)
	}
	if got.Count != 6 {
		t.Errorf("count = %d, want env value 6", got.Count)
	}
	if got.Timeout != 3*time.Second || got.HTTPURL != "file.example" {
		t.Errorf("timeout/http = %s/%q, want file values", got.Timeout, got.HTTPURL)
	}
}

func TestProfileFlag(t *testing.T) {
	got := fakeDiagnose(t, healthyReport(), nil)

	if code, _, _ := runCLI("-p", "quick", "--count", "3"); code != 0 {
		t.Fatalf("exit = %d", code)
	}
	if got.Profile != "quick" || got.Timeout != 2*time.Second {
		t.Errorf("profile/timeout = %s/%s", got.Profile, got.Timeout)
	}
	if got.Count != 3 {
		t.Errorf("count = %d, explicit flag should win over profile", got.Count)
	}
}

func TestDiffCommand(t *testing.T) {
	dir := t.TempDir()
	before := filepath.Join(dir, "before.json")
	after := filepath.Join(dir, "after.json")
	if err := output.WriteJSON(healthyReport(), before); err != nil {
		t.Fatal(err)
	}
	if err := output.WriteJSON(brokenReport(), after); err != nil {
		t.Fatal(err)
	}

	code, stdout, stderr := runCLI("diff", before, after)
	if code != 0 {
		t.Fatalf("exit = %d, stderr = %q", code, stderr)
	}
	for _, want := range []string{
		"Baseline: " + before,
		"Status: OK → PROBLEM ↓",
		"ping/packet_loss_pct: 0.00 → 100.00",
	} {
		if !strings.Contains(stdout, want) {
			t.Errorf("diff output missing %q:\n%s", want, stdout)
		}
	}

	jsonPath := filepath.Join(dir, "diff.json")
	if code, _, stderr := runCLI("diff", before, after, "-o", jsonPath); code != 0 {
		t.Fatalf("json diff exit = %d, stderr = %q", code, stderr)
	}
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"regressions": 1`) {
		t.Errorf("diff JSON = %s", data)
	}
}

func TestDiffCommandErrors(t *testing.T) {
	if code, _, _ := runCLI("diff", "only-one.json"); code != exitUsage {
		t.Errorf("one argument: exit = %d, want 2", code)
	}
	code, _, stderr := runCLI("diff", "missing-a.json", "missing-b.json")
	if code != exitError || !strings.Contains(stderr, "load baseline") {
		t.Errorf("missing files: exit = %d, stderr = %q", code, stderr)
	}
}

func TestRulesCommand(t *testing.T) {
	code, stdout, _ := runCLI("rules")
	if code != 0 {
		t.Fatalf("exit = %d", code)
	}
	for _, want := range []string{"[ping] (first match)", "[hint] (all matching)", "ping_total_loss", "hint_dns_only"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("rules output missing %q", want)
		}
	}
}

func TestVersionFlag(t *testing.T) {
	code, stdout, _ := runCLI("--version")
	if code != 0 || !strings.Contains(stdout, version) {
		t.Errorf("exit = %d, stdout = %q", code, stdout)
	}
}
