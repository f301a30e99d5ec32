// Package output handles report rendering and progress reporting.
package output

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
)

// Progress reports run status to stderr. A nil *Progress is silent.
type Progress struct {
	enabled bool
	verbose bool
	start   time.Time
	w       io.Writer // nil means os.Stderr at write time
}

// NewProgress creates a Progress reporter. Set enabled=false for --quiet mode.
func NewProgress(enabled bool) *Progress {
	return &Progress{
		enabled: enabled,
		start:   time.Now(),
	}
}

// NewVerboseProgress creates a Progress reporter with debug logging enabled.
func NewVerboseProgress(enabled, verbose bool) *Progress {
	return &Progress{
		enabled: enabled || verbose, // verbose implies enabled
		verbose: verbose,
		start:   time.Now(),
	}
}

// SetOutput redirects progress lines to w.
func (p *Progress) SetOutput(w io.Writer) {
	p.w = w
}

// StderrIsTerminal reports whether stderr is attached to a terminal.
// Progress is only shown by default in that case.
func StderrIsTerminal() bool {
	fd := os.Stderr.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func (p *Progress) out() io.Writer {
	if p.w != nil {
		return p.w
	}
	return os.Stderr
}

// Log prints a progress message if enabled.
func (p *Progress) Log(format string, args ...interface{}) {
	if p == nil || !p.enabled {
		return
	}
	elapsed := time.Since(p.start).Round(time.Millisecond)
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(p.out(), "[%s] %s\n", elapsed, msg)
}

// Debug prints a debug message if verbose is enabled.
func (p *Progress) Debug(format string, args ...interface{}) {
	if p == nil || !p.verbose {
		return
	}
	elapsed := time.Since(p.start).Round(time.Millisecond)
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(p.out(), "[%s] DEBUG: %s\n", elapsed, msg)
}
