// Package probe implements the network probes of a diagnostic run: the
// TCP/ICMP ping strategy, DNS resolution and HTTP reachability.
package probe

import (
	"context"
	"net"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/dmitriimaksimovdevelop/netwhy/internal/model"
)

// Sampler performs count ping attempts against host. Each attempt is bounded
// by timeout. A lost attempt is a Lost sample, not an error; the only error
// is cancellation of ctx.
type Sampler interface {
	Sample(ctx context.Context, host string, count int, timeout time.Duration) ([]model.Sample, error)
}

// DialFunc opens a connection; net.Dialer.DialContext satisfies it.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// TCPSampler measures the time to complete a TCP handshake with host:Port.
type TCPSampler struct {
	Port    int
	Dial    DialFunc
	limiter *rate.Limiter
}

// NewTCPSampler creates a sampler for port. A positive interval paces the
// attempts; zero sends them back to back.
func NewTCPSampler(port int, interval time.Duration) *TCPSampler {
	var d net.Dialer
	return &TCPSampler{
		Port:    port,
		Dial:    d.DialContext,
		limiter: newLimiter(interval),
	}
}

func newLimiter(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

// Sample implements Sampler. Every attempt runs even after failures.
// Attempts that the pacing cannot fit before the ctx deadline are lost.
func (s *TCPSampler) Sample(ctx context.Context, host string, count int, timeout time.Duration) ([]model.Sample, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(s.Port))
	samples := make([]model.Sample, 0, count)

	for i := 0; i < count; i++ {
		if err := s.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			for len(samples) < count {
				samples = append(samples, model.Lost())
			}
			return samples, nil
		}

		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		start := time.Now()
		conn, err := s.Dial(attemptCtx, "tcp", addr)
		rtt := time.Since(start)
		cancel()

		if ctx.Err() != nil {
			if conn != nil {
				conn.Close()
			}
			return nil, ctx.Err()
		}
		if err != nil {
			samples = append(samples, model.Lost())
			continue
		}
		conn.Close()
		samples = append(samples, model.Received(rtt))
	}

	return samples, nil
}
