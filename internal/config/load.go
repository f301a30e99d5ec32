package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// fileConfig mirrors the YAML file. Pointers distinguish unset keys from
// zero values.
type fileConfig struct {
	Profile  *string   `yaml:"profile"`
	Target   *string   `yaml:"target"`
	Count    *int      `yaml:"count"`
	Timeout  *float64  `yaml:"timeout"` // seconds
	NoPing   *bool     `yaml:"no_ping"`
	DNS      *[]string `yaml:"dns"`
	NoDNS    *bool     `yaml:"no_dns"`
	HTTP     *string   `yaml:"http"`
	Parallel *bool     `yaml:"parallel"`
	ICMP     *string   `yaml:"icmp"`
	Interval *float64  `yaml:"interval"` // seconds
}

// LoadFile applies the YAML file at path on top of c. A profile named in
// the file is applied first so explicit keys override it.
func (c *ProbeConfig) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, path, err)
	}

	if fc.Profile != nil {
		if !knownProfile(*fc.Profile) {
			return fmt.Errorf("%w: unknown profile %q in %s", ErrInvalidConfig, *fc.Profile, path)
		}
		c.ApplyProfile(*fc.Profile)
	}
	if fc.Target != nil {
		c.Target = *fc.Target
	}
	if fc.Count != nil {
		c.Count = *fc.Count
	}
	if fc.Timeout != nil {
		c.Timeout = Seconds(*fc.Timeout)
	}
	if fc.NoPing != nil {
		c.NoPing = *fc.NoPing
	}
	if fc.DNS != nil {
		c.DNSHosts = *fc.DNS
	}
	if fc.NoDNS != nil {
		c.NoDNS = *fc.NoDNS
	}
	if fc.HTTP != nil {
		c.HTTPURL = *fc.HTTP
	}
	if fc.Parallel != nil {
		c.Parallel = *fc.Parallel
	}
	if fc.ICMP != nil {
		c.ICMP = ICMPMode(*fc.ICMP)
	}
	if fc.Interval != nil {
		c.Interval = Seconds(*fc.Interval)
	}
	return nil
}

// LoadDotEnv loads KEY=VALUE pairs from the given files (".env" when none
// are given) into the process environment. Variables already set win, and
// a missing file is not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

// Environment variables read by ApplyEnv.
const (
	EnvTarget  = "NETWHY_TARGET"
	EnvCount   = "NETWHY_COUNT"
	EnvTimeout = "NETWHY_TIMEOUT"
	EnvDNS     = "NETWHY_DNS"
	EnvHTTP    = "NETWHY_HTTP"
)

// ApplyEnv overrides c with NETWHY_* variables. Malformed numbers are
// rejected rather than ignored.
func (c *ProbeConfig) ApplyEnv() error {
	if v := os.Getenv(EnvTarget); v != "" {
		c.Target = v
	}
	if v := os.Getenv(EnvCount); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %v", ErrInvalidConfig, EnvCount, v, err)
		}
		c.Count = n
	}
	if v := os.Getenv(EnvTimeout); v != "" {
		d, err := ParseSeconds(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %v", ErrInvalidConfig, EnvTimeout, v, err)
		}
		c.Timeout = d
	}
	if v := os.Getenv(EnvDNS); v != "" {
		c.DNSHosts = SplitList(v)
	}
	if v := os.Getenv(EnvHTTP); v != "" {
		c.HTTPURL = v
	}
	return nil
}

// Seconds converts fractional seconds to a Duration.
func Seconds(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}

// ParseSeconds accepts either a bare number of seconds ("2.5") or a Go
// duration string ("2500ms").
func ParseSeconds(v string) (time.Duration, error) {
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return Seconds(f), nil
	}
	return time.ParseDuration(v)
}

// SplitList splits a comma-separated list, dropping blank entries.
func SplitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
