package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitriimaksimovdevelop/netwhy/internal/config"
	"github.com/dmitriimaksimovdevelop/netwhy/internal/model"
	"github.com/dmitriimaksimovdevelop/netwhy/internal/output"
	"github.com/dmitriimaksimovdevelop/netwhy/internal/probe"
)

// callLog records the order in which mock probes start.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, name)
}

func (l *callLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

// wait blocks for delay or until ctx is done.
func wait(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	select {
	case <-time.After(delay):
	case <-ctx.Done():
	}
}

type mockPing struct {
	log    *callLog
	delay  time.Duration
	result *model.PingResult
}

func (m *mockPing) Ping(ctx context.Context, host string, count int, timeout time.Duration) *model.PingResult {
	m.log.add("ping")
	wait(ctx, m.delay)
	if m.result != nil {
		return m.result
	}
	samples := make([]model.Sample, count)
	for i := range samples {
		samples[i] = model.Received(10 * time.Millisecond)
	}
	return model.NewPingResult(model.MethodTCP, host, model.DefaultPingPort, samples)
}

type mockDNS struct {
	log   *callLog
	delay time.Duration
	fail  bool
}

func (m *mockDNS) CheckMultiple(ctx context.Context, hostnames []string, timeout time.Duration) []model.DNSResult {
	m.log.add("dns")
	wait(ctx, m.delay)
	results := make([]model.DNSResult, len(hostnames))
	for i, h := range hostnames {
		if m.fail {
			results[i] = model.DNSResult{Hostname: h, Error: "lookup " + h + ": timed out"}
		} else {
			results[i] = model.DNSResult{Hostname: h, Success: true, IPs: []string{"192.0.2.10"}}
		}
	}
	return results
}

type mockHTTP struct {
	log   *callLog
	delay time.Duration
}

func (m *mockHTTP) Probe(ctx context.Context, url string, timeout time.Duration) model.HTTPResult {
	m.log.add("http")
	wait(ctx, m.delay)
	rt := 20 * time.Millisecond
	return model.HTTPResult{URL: probe.NormalizeURL(url), Method: "HEAD", Success: true, StatusCode: 200, ResponseTime: &rt}
}

func mockProbes(log *callLog, delay time.Duration) Probes {
	return Probes{
		Ping: &mockPing{log: log, delay: delay},
		DNS:  &mockDNS{log: log, delay: delay},
		HTTP: &mockHTTP{log: log, delay: delay},
	}
}

func testConfig() config.ProbeConfig {
	cfg := config.DefaultConfig()
	cfg.Timeout = time.Second
	cfg.HTTPURL = "example.com"
	return cfg
}

func TestRunSequentialOrder(t *testing.T) {
	log := &callLog{}
	report, err := New(mockProbes(log, 0), testConfig(), nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := strings.Join(log.list(), ","); got != "ping,dns,http" {
		t.Errorf("call order = %s, want ping,dns,http", got)
	}
	if report.Ping == nil || len(report.DNS) != 2 || report.HTTP == nil {
		t.Fatalf("report missing probe results: %+v", report)
	}
	if report.HTTP.URL != "http://example.com" {
		t.Errorf("http url = %q", report.HTTP.URL)
	}
	if report.ExitCode() != 0 {
		t.Errorf("exit code = %d, want 0", report.ExitCode())
	}
}

func TestRunParallel(t *testing.T) {
	log := &callLog{}
	cfg := testConfig()
	cfg.Parallel = true

	start := time.Now()
	report, err := New(mockProbes(log, 200*time.Millisecond), cfg, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("parallel run took %s, want roughly one probe delay", elapsed)
	}
	if len(log.list()) != 3 {
		t.Errorf("calls = %v, want all three probes", log.list())
	}
	if report.Ping == nil || report.DNS == nil || report.HTTP == nil {
		t.Error("parallel run lost a probe result")
	}
}

func TestRunSkipsDisabledProbes(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.ProbeConfig)
		want   string
	}{
		{"no ping", func(c *config.ProbeConfig) { c.NoPing = true }, "dns,http"},
		{"no dns", func(c *config.ProbeConfig) { c.NoDNS = true }, "ping,http"},
		{"empty dns list", func(c *config.ProbeConfig) { c.DNSHosts = nil }, "ping,http"},
		{"no http", func(c *config.ProbeConfig) { c.HTTPURL = "" }, "ping,dns"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := &callLog{}
			cfg := testConfig()
			tt.mutate(&cfg)

			if _, err := New(mockProbes(log, 0), cfg, nil).Run(context.Background()); err != nil {
				t.Fatalf("Run: %v", err)
			}
			if got := strings.Join(log.list(), ","); got != tt.want {
				t.Errorf("calls = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestRunNothingEnabled(t *testing.T) {
	cfg := testConfig()
	cfg.NoPing, cfg.NoDNS, cfg.HTTPURL = true, true, ""

	report, err := New(mockProbes(&callLog{}, 0), cfg, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := report.Summary.String(); got != "No diagnostics performed." {
		t.Errorf("summary = %q", got)
	}
}

func TestRunInterrupted(t *testing.T) {
	log := &callLog{}
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	report, err := New(mockProbes(log, 5*time.Second), testConfig(), nil).Run(ctx)
	if !errors.Is(err, ErrInterrupted) {
		t.Fatalf("err = %v, want ErrInterrupted", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want it to wrap context.Canceled", err)
	}
	if report != nil {
		t.Error("interrupted run returned a report")
	}
	if got := log.list(); len(got) != 1 || got[0] != "ping" {
		t.Errorf("calls = %v, later probes should not start after cancel", got)
	}
}

func TestRunLogsProgress(t *testing.T) {
	var buf bytes.Buffer
	progress := output.NewProgress(true)
	progress.SetOutput(&buf)

	if _, err := New(mockProbes(&callLog{}, 0), testConfig(), progress).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, want := range []string{"Starting diagnosis: target=8.8.8.8", "[ping] done via tcp", "[dns] done, 0/2 failed", "[http] done, status 200", "Diagnosis complete."} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("progress missing %q:\n%s", want, buf.String())
		}
	}
}

// countingSampler returns fixed samples and counts its calls.
type countingSampler struct {
	mu      sync.Mutex
	calls   int
	samples func(count int) []model.Sample
}

func (s *countingSampler) Sample(ctx context.Context, host string, count int, timeout time.Duration) ([]model.Sample, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.samples(count), nil
}

func TestEndToEndHealthyNetwork(t *testing.T) {
	tcp := &countingSampler{samples: func(n int) []model.Sample {
		out := make([]model.Sample, n)
		for i := range out {
			out[i] = model.Received(10 * time.Millisecond)
		}
		return out
	}}
	icmp := &countingSampler{samples: model.LostSamples}

	cfg := testConfig()
	cfg.NoDNS, cfg.HTTPURL = true, ""
	probes := Probes{Ping: probe.NewPinger(tcp, icmp)}

	report, err := New(probes, cfg, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.Ping.Method != model.MethodTCP || report.Ping.PacketLoss != 0 || report.Ping.Avg != 10*time.Millisecond {
		t.Errorf("ping = %+v", report.Ping)
	}
	if icmp.calls != 0 {
		t.Errorf("icmp sampler called %d times, want 0", icmp.calls)
	}
	if len(report.Summary.Findings) != 1 || report.Summary.Findings[0] != "Average latency 10 ms, packet loss 0.0%." {
		t.Errorf("findings = %v", report.Summary.Findings)
	}
	if len(report.Summary.Interpretation) != 0 {
		t.Errorf("hints = %v, want none", report.Summary.Interpretation)
	}
	if report.ExitCode() != 0 {
		t.Errorf("exit code = %d", report.ExitCode())
	}
}

func TestEndToEndEverythingDown(t *testing.T) {
	lost := &countingSampler{samples: model.LostSamples}
	log := &callLog{}

	cfg := testConfig()
	cfg.HTTPURL = ""
	probes := Probes{
		Ping: probe.NewPinger(lost, lost),
		DNS:  &mockDNS{log: log, fail: true},
	}

	report, err := New(probes, cfg, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if lost.calls != 2 {
		t.Errorf("sampler calls = %d, want TCP then ICMP", lost.calls)
	}
	if report.Ping.Method != model.MethodTCP || report.Ping.PacketLoss != 100 {
		t.Errorf("ping = %+v, want TCP result with total loss", report.Ping)
	}
	if report.ExitCode() != 1 {
		t.Errorf("exit code = %d, want 1", report.ExitCode())
	}
}

func TestBuildReportRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Count = 0

	_, err := BuildReport(context.Background(), cfg, nil)
	if !errors.Is(err, config.ErrInvalidConfig) {
		t.Errorf("err = %v, want ErrInvalidConfig", err)
	}
}

func TestDefaultProbesICMPModes(t *testing.T) {
	for _, mode := range []config.ICMPMode{config.ICMPExec, config.ICMPNative, config.ICMPAuto, config.ICMPOff} {
		cfg := testConfig()
		cfg.ICMP = mode
		probes := DefaultProbes(cfg, nil)

		pinger, ok := probes.Ping.(*probe.Pinger)
		if !ok {
			t.Fatalf("%s: ping prober is %T", mode, probes.Ping)
		}
		if (pinger.ICMP == nil) != (mode == config.ICMPOff) {
			t.Errorf("%s: icmp sampler = %T", mode, pinger.ICMP)
		}
		if probes.DNS == nil || probes.HTTP == nil {
			t.Errorf("%s: dns/http probers missing", mode)
		}
	}
}
