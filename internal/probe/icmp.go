package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	pinger "github.com/macrat/go-parallel-pinger"

	"github.com/dmitriimaksimovdevelop/netwhy/internal/executor"
	"github.com/dmitriimaksimovdevelop/netwhy/internal/model"
)

// ErrICMPUnavailable is returned by NativeICMPSampler when no ICMP socket
// can be opened, privileged or not.
var ErrICMPUnavailable = errors.New("icmp socket unavailable")

// DefaultPingTool is the utility ExecICMPSampler runs.
const DefaultPingTool = "ping"

// ExecICMPSampler runs the system ping utility and scrapes its output.
type ExecICMPSampler struct {
	Runner executor.Runner
	Parser executor.LineParser
	Tool   string
	Debugf func(format string, args ...interface{})
}

// NewExecICMPSampler creates a sampler running DefaultPingTool through r.
func NewExecICMPSampler(r executor.Runner) *ExecICMPSampler {
	return &ExecICMPSampler{
		Runner: r,
		Parser: executor.TimeTokenParser{},
		Tool:   DefaultPingTool,
		Debugf: func(string, ...interface{}) {},
	}
}

// Sample implements Sampler. The utility gets an integer per-reply wait of
// at least one second and is killed one second after timeout. A missing
// binary, a failed run or a non-zero exit yields count lost samples.
func (s *ExecICMPSampler) Sample(ctx context.Context, host string, count int, timeout time.Duration) ([]model.Sample, error) {
	if !s.Runner.Available(s.Tool) {
		s.debugf("icmp fallback: %s not found in system paths", s.Tool)
		return model.LostSamples(count), nil
	}

	wait := int(timeout.Seconds())
	if wait < 1 {
		wait = 1
	}
	args := []string{"-c", strconv.Itoa(count), "-W", strconv.Itoa(wait), host}

	raw, err := s.Runner.Run(ctx, s.Tool, args, timeout+time.Second)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err != nil {
		s.debugf("icmp fallback: %v", err)
		return model.LostSamples(count), nil
	}
	if raw.ExitCode != 0 {
		s.debugf("icmp fallback: %s exited with status %d", s.Tool, raw.ExitCode)
		return model.LostSamples(count), nil
	}

	return fitReplies(executor.ParseReplies(raw.Stdout, s.Parser), count), nil
}

func (s *ExecICMPSampler) debugf(format string, args ...interface{}) {
	if s.Debugf != nil {
		s.Debugf(format, args...)
	}
}

// fitReplies turns parsed replies into exactly count samples. A reply with
// a sequence number lands on its own attempt; replies without one fill the
// remaining attempts in order. Out-of-range and duplicate replies are dropped.
func fitReplies(replies []executor.Reply, count int) []model.Sample {
	samples := model.LostSamples(count)
	base := seqBase(replies, count)

	var unnumbered []time.Duration
	for _, r := range replies {
		if r.Seq < 0 {
			unnumbered = append(unnumbered, r.RTT)
			continue
		}
		i := r.Seq - base
		if i < 0 || i >= count || samples[i].OK {
			continue
		}
		samples[i] = model.Received(r.RTT)
	}

	for i := 0; i < count && len(unnumbered) > 0; i++ {
		if !samples[i].OK {
			samples[i] = model.Received(unnumbered[0])
			unnumbered = unnumbered[1:]
		}
	}
	return samples
}

// seqBase reports the first sequence number ping used. A seq of 0 or of
// count settles it; otherwise iputils' icmp_seq starts at 1 and busybox's
// seq at 0.
func seqBase(replies []executor.Reply, count int) int {
	for _, r := range replies {
		switch r.Seq {
		case 0:
			return 0
		case count:
			return 1
		}
	}
	for _, r := range replies {
		if r.Seq >= 0 && r.ICMPSeq {
			return 1
		}
	}
	return 0
}

// NativeICMPSampler sends echo requests from the process itself, one
// request per attempt, using unprivileged ICMP sockets where available.
type NativeICMPSampler struct {
	Privileged bool
	Resolver   Resolver // nil uses net.DefaultResolver
	Debugf     func(format string, args ...interface{})
}

// Sample implements Sampler. It returns ErrICMPUnavailable when no socket
// can be opened. Resolution is bounded by timeout; an unresolvable host
// yields count lost samples.
func (s *NativeICMPSampler) Sample(ctx context.Context, host string, count int, timeout time.Duration) ([]model.Sample, error) {
	ip, err := s.resolve(ctx, host, timeout)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err != nil {
		if s.Debugf != nil {
			s.Debugf("native icmp: %v", err)
		}
		return model.LostSamples(count), nil
	}
	target := &net.IPAddr{IP: ip}

	pctx, stop := context.WithCancel(ctx)
	defer stop()

	p := newEchoPinger(ip, s.Privileged)
	if err := p.Start(pctx); err != nil {
		p = newEchoPinger(ip, !s.Privileged)
		if err2 := p.Start(pctx); err2 != nil {
			return nil, fmt.Errorf("%w: %v", ErrICMPUnavailable, err)
		}
	}

	samples := make([]model.Sample, 0, count)
	for i := 0; i < count; i++ {
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		res, err := p.Ping(attemptCtx, target, 1, timeout)
		cancel()

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err != nil || res.Recv == 0 {
			samples = append(samples, model.Lost())
			continue
		}
		samples = append(samples, model.Received(res.AvgRTT))
	}
	return samples, nil
}

// resolve returns the address to ping, preferring IPv4.
func (s *NativeICMPSampler) resolve(ctx context.Context, host string, timeout time.Duration) (net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		return ip, nil
	}

	r := s.Resolver
	if r == nil {
		r = net.DefaultResolver
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	addrs, err := r.LookupHost(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", host, err)
	}
	var first net.IP
	for _, a := range addrs {
		ip := net.ParseIP(a)
		if ip == nil {
			continue
		}
		if ip.To4() != nil {
			return ip, nil
		}
		if first == nil {
			first = ip
		}
	}
	if first == nil {
		return nil, fmt.Errorf("resolve %s: no addresses", host)
	}
	return first, nil
}

// newEchoPinger returns an unstarted pinger for the address family of ip.
func newEchoPinger(ip net.IP, privileged bool) *pinger.Pinger {
	p := pinger.NewIPv6()
	if ip.To4() != nil {
		p = pinger.NewIPv4()
	}
	p.SetPrivileged(privileged)
	return p
}

// AutoICMPSampler prefers the native sampler and falls back to the
// external utility when no ICMP socket is available.
type AutoICMPSampler struct {
	Native   Sampler
	Fallback Sampler
	Debugf   func(format string, args ...interface{})
}

// Sample implements Sampler.
func (s *AutoICMPSampler) Sample(ctx context.Context, host string, count int, timeout time.Duration) ([]model.Sample, error) {
	samples, err := s.Native.Sample(ctx, host, count, timeout)
	if err == nil || ctx.Err() != nil {
		return samples, err
	}
	if s.Debugf != nil {
		s.Debugf("native icmp unavailable, using %s: %v", DefaultPingTool, err)
	}
	return s.Fallback.Sample(ctx, host, count, timeout)
}
