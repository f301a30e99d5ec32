package probe

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/dmitriimaksimovdevelop/netwhy/internal/model"
)

// Resolver looks up the addresses of a host. *net.Resolver satisfies it.
// Implementations that need process-wide state must guard it themselves;
// DNSProber calls may run concurrently.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// DNSProber resolves hostnames with a per-call timeout.
type DNSProber struct {
	Resolver Resolver
}

// NewDNSProber creates a prober using the system resolver.
func NewDNSProber() *DNSProber {
	return &DNSProber{Resolver: net.DefaultResolver}
}

// Resolve looks up hostname once. Failures are recorded on the result.
func (p *DNSProber) Resolve(ctx context.Context, hostname string, timeout time.Duration) model.DNSResult {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	addrs, err := p.Resolver.LookupHost(ctx, hostname)
	if err != nil {
		return model.DNSResult{Hostname: hostname, Error: dnsErrorMessage(ctx, hostname, err)}
	}
	if len(addrs) == 0 {
		return model.DNSResult{Hostname: hostname, Error: "lookup " + hostname + ": no addresses"}
	}

	return model.DNSResult{Hostname: hostname, Success: true, IPs: dedupe(addrs)}
}

// CheckMultiple resolves each hostname in order. One failure does not
// affect the others.
func (p *DNSProber) CheckMultiple(ctx context.Context, hostnames []string, timeout time.Duration) []model.DNSResult {
	results := make([]model.DNSResult, 0, len(hostnames))
	for _, h := range hostnames {
		if ctx.Err() != nil {
			break
		}
		results = append(results, p.Resolve(ctx, h, timeout))
	}
	return results
}

func dnsErrorMessage(ctx context.Context, hostname string, err error) string {
	var dnsErr *net.DNSError
	switch {
	case errors.As(err, &dnsErr) && dnsErr.IsNotFound:
		msg := "lookup " + dnsErr.Name + ": not found"
		if dnsErr.Server != "" {
			msg += " on " + dnsErr.Server
		}
		return msg
	case errors.As(err, &dnsErr) && dnsErr.IsTimeout,
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(ctx.Err(), context.DeadlineExceeded):
		return "lookup " + hostname + ": timed out"
	}
	return err.Error()
}

func dedupe(addrs []string) []string {
	seen := make(map[string]bool, len(addrs))
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if !seen[a] {
			seen[a] = true
			out = append(out, a)
		}
	}
	return out
}
