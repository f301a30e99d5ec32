// Package config holds the settings of a diagnostic run and the layers
// that produce them: defaults, profiles, a YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/dmitriimaksimovdevelop/netwhy/internal/probe"
)

// ErrInvalidConfig marks settings rejected before any probe runs.
var ErrInvalidConfig = errors.New("invalid configuration")

// ICMPMode selects the ICMP fallback backend.
type ICMPMode string

const (
	ICMPExec   ICMPMode = "exec"   // system ping utility
	ICMPNative ICMPMode = "native" // in-process echo requests
	ICMPAuto   ICMPMode = "auto"   // native, then exec
	ICMPOff    ICMPMode = "off"    // TCP only
)

// DefaultDNSHosts are resolved when no hostnames are configured.
var DefaultDNSHosts = []string{"google.com", "cloudflare.com"}

// ProbeConfig controls which probes run and how.
type ProbeConfig struct {
	Target   string
	Count    int
	Timeout  time.Duration
	NoPing   bool
	DNSHosts []string
	NoDNS    bool
	HTTPURL  string // empty skips the HTTP check

	// Parallel runs the ping, DNS and HTTP families concurrently.
	Parallel bool
	ICMP     ICMPMode
	// Interval paces TCP connect attempts; zero sends them back to back.
	Interval time.Duration
	Profile  string
}

// DefaultConfig returns a ProbeConfig with the standard profile applied.
func DefaultConfig() ProbeConfig {
	cfg := ProbeConfig{
		Target:   "8.8.8.8",
		DNSHosts: append([]string(nil), DefaultDNSHosts...),
		ICMP:     ICMPExec,
	}
	cfg.ApplyProfile("standard")
	return cfg
}

// ApplyProfile overwrites count, timeout and interval with the named
// profile. An unknown name applies "standard" but is kept so Validate
// can reject it.
func (c *ProbeConfig) ApplyProfile(name string) {
	p := GetProfile(name)
	c.Profile = name
	c.Count = p.Count
	c.Timeout = p.Timeout
	c.Interval = p.Interval
}

// EffectiveDNSHosts returns the hostnames to resolve, or nil when DNS
// checks are disabled.
func (c ProbeConfig) EffectiveDNSHosts() []string {
	if c.NoDNS {
		return nil
	}
	return c.DNSHosts
}

// Validate rejects settings that would make probing meaningless.
func (c ProbeConfig) Validate() error {
	if c.Count <= 0 {
		return fmt.Errorf("%w: count must be positive, got %d", ErrInvalidConfig, c.Count)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive, got %s", ErrInvalidConfig, c.Timeout)
	}
	if c.Interval < 0 {
		return fmt.Errorf("%w: interval must not be negative, got %s", ErrInvalidConfig, c.Interval)
	}
	if !c.NoPing {
		if strings.TrimSpace(c.Target) == "" {
			return fmt.Errorf("%w: target is required", ErrInvalidConfig)
		}
		if strings.HasPrefix(c.Target, "-") {
			return fmt.Errorf("%w: target %q looks like a flag", ErrInvalidConfig, c.Target)
		}
	}
	for _, h := range c.EffectiveDNSHosts() {
		if strings.TrimSpace(h) == "" {
			return fmt.Errorf("%w: empty DNS hostname", ErrInvalidConfig)
		}
	}
	if c.HTTPURL != "" {
		u, err := url.Parse(probe.NormalizeURL(c.HTTPURL))
		if err != nil {
			return fmt.Errorf("%w: http url: %v", ErrInvalidConfig, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("%w: http url %q: unsupported scheme %q", ErrInvalidConfig, c.HTTPURL, u.Scheme)
		}
		if u.Host == "" {
			return fmt.Errorf("%w: http url %q has no host", ErrInvalidConfig, c.HTTPURL)
		}
	}
	switch c.ICMP {
	case ICMPExec, ICMPNative, ICMPAuto, ICMPOff:
	default:
		return fmt.Errorf("%w: icmp mode %q (want exec, native, auto or off)", ErrInvalidConfig, c.ICMP)
	}
	if !knownProfile(c.Profile) {
		return fmt.Errorf("%w: unknown profile %q", ErrInvalidConfig, c.Profile)
	}
	return nil
}
