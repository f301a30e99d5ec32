// Package model defines the data types produced by a netwhy diagnostic run
// and the rule tables that interpret them.
package model

import "time"

// DefaultPingPort is the TCP port used by the connect probe.
const DefaultPingPort = 80

// Method identifies which ping strategy produced a PingResult.
type Method string

const (
	MethodTCP  Method = "tcp"
	MethodICMP Method = "icmp"
)

// Sample is one ping attempt. OK is false for a lost or timed-out attempt,
// in which case RTT is meaningless.
type Sample struct {
	RTT time.Duration
	OK  bool
}

// Received returns a successful sample.
func Received(rtt time.Duration) Sample {
	return Sample{RTT: rtt, OK: true}
}

// Lost returns a failed sample.
func Lost() Sample {
	return Sample{}
}

// LostSamples returns n failed samples.
func LostSamples(n int) []Sample {
	if n < 0 {
		n = 0
	}
	return make([]Sample, n)
}

// PingResult is the normalized output of either ping strategy.
type PingResult struct {
	Method  Method
	Host    string
	Port    int // 0 unless Method is MethodTCP
	Samples []Sample
	Stats
}

// NewPingResult builds a PingResult and derives its statistics.
// Both strategies go through here so the derivation exists exactly once.
func NewPingResult(method Method, host string, port int, samples []Sample) *PingResult {
	if method != MethodTCP {
		port = 0
	}
	return &PingResult{
		Method:  method,
		Host:    host,
		Port:    port,
		Samples: samples,
		Stats:   ComputeStats(samples),
	}
}

// DNSResult is the outcome of resolving one hostname.
type DNSResult struct {
	Hostname string
	Success  bool
	IPs      []string
	Error    string
}

// HTTPResult is the outcome of one HTTP reachability request.
// Success means the server produced a status line, whatever its class.
type HTTPResult struct {
	URL          string
	Method       string
	Success      bool
	StatusCode   int // 0 when no response was received
	ResponseTime *time.Duration
	Error        string
}

// Report is the complete result of a diagnostic run.
type Report struct {
	Ping    *PingResult
	DNS     []DNSResult
	HTTP    *HTTPResult
	Summary Summary
}

// NewReport assembles a report and derives its summary.
func NewReport(ping *PingResult, dns []DNSResult, http *HTTPResult) *Report {
	r := &Report{Ping: ping, DNS: dns, HTTP: http}
	r.Summary = Summarize(r.Ping, r.DNS, r.HTTP)
	return r
}

// AllDNSFailed reports whether DNS was checked and every lookup failed.
func AllDNSFailed(results []DNSResult) bool {
	if len(results) == 0 {
		return false
	}
	for _, r := range results {
		if r.Success {
			return false
		}
	}
	return true
}

// ExitCode maps the report to the process exit status: 1 when the ping was
// fully lossy, every DNS lookup failed, or the HTTP check failed.
func (r *Report) ExitCode() int {
	switch {
	case r.Ping != nil && r.Ping.PacketLoss == 100:
		return 1
	case AllDNSFailed(r.DNS):
		return 1
	case r.HTTP != nil && !r.HTTP.Success:
		return 1
	}
	return 0
}
