package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/dmitriimaksimovdevelop/netwhy/internal/model"
)

// HTTPProber issues one request per probe and reports whether any HTTP
// response came back.
type HTTPProber struct {
	Client *http.Client
	Method string
}

// NewHTTPProber creates a prober sending HEAD requests without connection
// reuse.
func NewHTTPProber() *HTTPProber {
	return &HTTPProber{
		Client: &http.Client{
			Transport: &http.Transport{
				Proxy:             http.ProxyFromEnvironment,
				DisableKeepAlives: true,
			},
		},
		Method: http.MethodHead,
	}
}

// NormalizeURL prefixes rawURL with http:// unless it already carries a
// scheme.
func NormalizeURL(rawURL string) string {
	if strings.Contains(rawURL, "://") {
		return rawURL
	}
	return "http://" + rawURL
}

// Probe sends a single request to rawURL bounded by timeout. Any status
// line, 4xx and 5xx included, counts as success.
func (p *HTTPProber) Probe(ctx context.Context, rawURL string, timeout time.Duration) model.HTTPResult {
	url := NormalizeURL(rawURL)
	method := p.Method
	if method == "" {
		method = http.MethodHead
	}
	res := model.HTTPResult{URL: url, Method: method}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	req.Header.Set("User-Agent", "netwhy")

	start := time.Now()
	resp, err := p.Client.Do(req)
	elapsed := time.Since(start)

	if err != nil {
		res.Error = httpErrorMessage(ctx, err, timeout)
		if ctx.Err() == nil && elapsed < timeout {
			res.ResponseTime = &elapsed
		}
		return res
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
	resp.Body.Close()

	res.Success = true
	res.StatusCode = resp.StatusCode
	res.ResponseTime = &elapsed
	return res
}

func httpErrorMessage(ctx context.Context, err error, timeout time.Duration) string {
	var dnsErr *net.DNSError
	var opErr *net.OpError

	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		return fmt.Sprintf("timed out after %s", timeout)
	case errors.As(err, &dnsErr):
		msg := dnsErr.Error()
		if dnsErr.IsNotFound {
			msg = "lookup " + dnsErr.Name + ": not found"
		}
		return msg
	case errors.As(err, &opErr) && opErr.Op == "dial":
		if opErr.Addr != nil {
			return fmt.Sprintf("dial %s: %v", opErr.Addr, opErr.Err)
		}
		return fmt.Sprintf("dial: %v", opErr.Err)
	}
	return err.Error()
}
