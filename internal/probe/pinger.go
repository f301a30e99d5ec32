package probe

import (
	"context"
	"time"

	"github.com/dmitriimaksimovdevelop/netwhy/internal/model"
)

// Pinger is the two-stage ping strategy: TCP connects to port 80 first, and
// an ICMP fallback only when every TCP attempt failed.
type Pinger struct {
	TCP    Sampler
	ICMP   Sampler // nil disables the fallback
	Port   int
	Debugf func(format string, args ...interface{})
}

// NewPinger creates a Pinger connecting to model.DefaultPingPort.
func NewPinger(tcp, icmp Sampler) *Pinger {
	return &Pinger{
		TCP:    tcp,
		ICMP:   icmp,
		Port:   model.DefaultPingPort,
		Debugf: func(string, ...interface{}) {},
	}
}

// Ping runs the strategy and always returns a result. The ICMP result is
// kept only if at least one echo came back; otherwise the TCP result stands.
// If ctx is cancelled, the partial TCP result is returned and the caller is
// expected to check ctx.
func (p *Pinger) Ping(ctx context.Context, host string, count int, timeout time.Duration) *model.PingResult {
	samples, err := p.TCP.Sample(ctx, host, count, timeout)
	if err != nil {
		p.debugf("tcp probe aborted: %v", err)
		samples = model.LostSamples(count)
	}
	tcpResult := model.NewPingResult(model.MethodTCP, host, p.Port, samples)

	if tcpResult.PacketLoss != 100 || p.ICMP == nil || ctx.Err() != nil {
		return tcpResult
	}

	p.debugf("all %d tcp connects to %s:%d failed, trying icmp", count, host, p.Port)
	samples, err = p.ICMP.Sample(ctx, host, count, timeout)
	if err != nil {
		p.debugf("icmp probe failed: %v", err)
		return tcpResult
	}

	icmpResult := model.NewPingResult(model.MethodICMP, host, 0, samples)
	if icmpResult.PacketLoss < 100 {
		return icmpResult
	}
	return tcpResult
}

func (p *Pinger) debugf(format string, args ...interface{}) {
	if p.Debugf != nil {
		p.Debugf(format, args...)
	}
}
