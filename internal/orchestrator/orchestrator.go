// Package orchestrator runs the probe families of a diagnostic run,
// sequentially or in parallel, with graceful signal handling.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitriimaksimovdevelop/netwhy/internal/config"
	"github.com/dmitriimaksimovdevelop/netwhy/internal/executor"
	"github.com/dmitriimaksimovdevelop/netwhy/internal/model"
	"github.com/dmitriimaksimovdevelop/netwhy/internal/output"
	"github.com/dmitriimaksimovdevelop/netwhy/internal/probe"
)

// ErrInterrupted is returned when the run was cancelled before completion.
var ErrInterrupted = errors.New("interrupted")

// PingProber runs the ping strategy against one host.
type PingProber interface {
	Ping(ctx context.Context, host string, count int, timeout time.Duration) *model.PingResult
}

// DNSChecker resolves a list of hostnames.
type DNSChecker interface {
	CheckMultiple(ctx context.Context, hostnames []string, timeout time.Duration) []model.DNSResult
}

// HTTPChecker performs one HTTP reachability request.
type HTTPChecker interface {
	Probe(ctx context.Context, url string, timeout time.Duration) model.HTTPResult
}

// Probes bundles the probe implementations used by a run.
type Probes struct {
	Ping PingProber
	DNS  DNSChecker
	HTTP HTTPChecker
}

// Orchestrator coordinates the probes and produces a Report.
type Orchestrator struct {
	probes        Probes
	config        config.ProbeConfig
	progress      *output.Progress
	handleSignals bool
}

// New creates an Orchestrator. progress may be nil.
func New(probes Probes, cfg config.ProbeConfig, progress *output.Progress) *Orchestrator {
	return &Orchestrator{
		probes:   probes,
		config:   cfg,
		progress: progress,
	}
}

// HandleSignals makes Run cancel itself on SIGINT/SIGTERM.
func (o *Orchestrator) HandleSignals() *Orchestrator {
	o.handleSignals = true
	return o
}

// pingOutputLimit caps captured ping output; a reply line is under 100 bytes.
const pingOutputLimit = 256 << 10

// DefaultProbes wires the real probes for cfg. Subprocess and fallback
// diagnostics go to progress at debug level.
func DefaultProbes(cfg config.ProbeConfig, progress *output.Progress) Probes {
	runner := executor.NewExecRunner(
		executor.WithDebug(progress.Debug),
		executor.WithMaxOutput(pingOutputLimit),
	)

	execICMP := probe.NewExecICMPSampler(runner)
	execICMP.Debugf = progress.Debug

	var icmp probe.Sampler
	switch cfg.ICMP {
	case config.ICMPExec:
		icmp = execICMP
	case config.ICMPNative:
		icmp = &probe.NativeICMPSampler{Debugf: progress.Debug}
	case config.ICMPAuto:
		icmp = &probe.AutoICMPSampler{
			Native:   &probe.NativeICMPSampler{Debugf: progress.Debug},
			Fallback: execICMP,
			Debugf:   progress.Debug,
		}
	}

	pinger := probe.NewPinger(probe.NewTCPSampler(model.DefaultPingPort, cfg.Interval), icmp)
	pinger.Debugf = progress.Debug

	return Probes{
		Ping: pinger,
		DNS:  probe.NewDNSProber(),
		HTTP: probe.NewHTTPProber(),
	}
}

// Run executes the configured probes. Ping, DNS and HTTP run in that order
// unless the config asks for parallel execution. If ctx is cancelled (or a
// signal arrives when HandleSignals is set) Run returns ErrInterrupted.
func (o *Orchestrator) Run(ctx context.Context) (*model.Report, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if o.handleSignals {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			select {
			case sig := <-sigCh:
				o.progress.Log("Received %v, stopping probes...", sig)
				cancel()
			case <-ctx.Done():
			}
		}()
		defer signal.Stop(sigCh)
	}

	cfg := o.config
	dnsHosts := cfg.EffectiveDNSHosts()
	mode := "sequential"
	if cfg.Parallel {
		mode = "parallel"
	}
	o.progress.Log("Starting diagnosis: target=%s count=%d timeout=%s mode=%s",
		cfg.Target, cfg.Count, cfg.Timeout, mode)

	var (
		ping *model.PingResult
		dns  []model.DNSResult
		http *model.HTTPResult
	)

	steps := make([]func(), 0, 3)
	if !cfg.NoPing && o.probes.Ping != nil {
		steps = append(steps, func() {
			ping = o.runPing(ctx)
		})
	}
	if len(dnsHosts) > 0 && o.probes.DNS != nil {
		steps = append(steps, func() {
			dns = o.runDNS(ctx, dnsHosts)
		})
	}
	if cfg.HTTPURL != "" && o.probes.HTTP != nil {
		steps = append(steps, func() {
			http = o.runHTTP(ctx)
		})
	}

	if cfg.Parallel {
		var wg sync.WaitGroup
		for _, step := range steps {
			wg.Add(1)
			go func(step func()) {
				defer wg.Done()
				step()
			}(step)
		}
		wg.Wait()
	} else {
		for _, step := range steps {
			if ctx.Err() != nil {
				break
			}
			step()
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInterrupted, err)
	}

	report := model.NewReport(ping, dns, http)
	o.progress.Log("Diagnosis complete. findings=%d hints=%d",
		len(report.Summary.Findings), len(report.Summary.Interpretation))
	return report, nil
}

func (o *Orchestrator) runPing(ctx context.Context) *model.PingResult {
	cfg := o.config
	o.progress.Log("  [ping] %s x%d...", cfg.Target, cfg.Count)
	start := time.Now()

	res := o.probes.Ping.Ping(ctx, cfg.Target, cfg.Count, cfg.Timeout)

	o.progress.Log("  [ping] done via %s, loss %.1f%% (%s)",
		res.Method, res.PacketLoss, time.Since(start).Round(time.Millisecond))
	return res
}

func (o *Orchestrator) runDNS(ctx context.Context, hosts []string) []model.DNSResult {
	o.progress.Log("  [dns] resolving %d hostnames...", len(hosts))
	start := time.Now()

	res := o.probes.DNS.CheckMultiple(ctx, hosts, o.config.Timeout)

	failed := 0
	for _, r := range res {
		if !r.Success {
			failed++
		}
	}
	o.progress.Log("  [dns] done, %d/%d failed (%s)", failed, len(res), time.Since(start).Round(time.Millisecond))
	return res
}

func (o *Orchestrator) runHTTP(ctx context.Context) *model.HTTPResult {
	o.progress.Log("  [http] %s...", o.config.HTTPURL)
	start := time.Now()

	res := o.probes.HTTP.Probe(ctx, o.config.HTTPURL, o.config.Timeout)

	if res.Success {
		o.progress.Log("  [http] done, status %d (%s)", res.StatusCode, time.Since(start).Round(time.Millisecond))
	} else {
		o.progress.Log("  [http] error: %s (%s)", res.Error, time.Since(start).Round(time.Millisecond))
	}
	return &res
}

// BuildReport validates cfg, wires the default probes and runs them.
// This is the high-level entry point used by the CLI and the MCP server.
func BuildReport(ctx context.Context, cfg config.ProbeConfig, progress *output.Progress) (*model.Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return New(DefaultProbes(cfg, progress), cfg, progress).Run(ctx)
}
