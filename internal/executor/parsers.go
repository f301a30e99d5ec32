package executor

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ansiEscapeRe matches ANSI terminal escape sequences (e.g. color codes).
var ansiEscapeRe = regexp.MustCompile(`\x1b\[[0-9;]*[mGKHF]`)

// stripANSI removes ANSI terminal escape sequences from s.
func stripANSI(s string) string {
	return ansiEscapeRe.ReplaceAllString(s, "")
}

// LineParser extracts a round-trip time from one line of tool output.
type LineParser interface {
	ParseLine(line string) (time.Duration, bool)
}

// TimeTokenParser recognizes the "time=12.3 ms" token printed by iputils,
// BSD and busybox ping for every echo reply. "time<1ms" is accepted too.
type TimeTokenParser struct{}

var timeTokenRe = regexp.MustCompile(`time[=<]\s*([0-9]+(?:\.[0-9]+)?)\s*([a-zµ]*)`)

// ParseLine implements LineParser.
func (TimeTokenParser) ParseLine(line string) (time.Duration, bool) {
	m := timeTokenRe.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}

	unit := float64(time.Millisecond)
	switch m[2] {
	case "us", "µs", "usec":
		unit = float64(time.Microsecond)
	case "s", "sec":
		unit = float64(time.Second)
	}
	return time.Duration(math.Round(v * unit)), true
}

// Reply is one echo reply found in ping output.
type Reply struct {
	RTT time.Duration
	// Seq is the request sequence number, -1 when the line has none.
	Seq int
	// ICMPSeq is set when the number came from an "icmp_seq=" token
	// (iputils, BSD) rather than busybox's "seq=".
	ICMPSeq bool
}

var seqRe = regexp.MustCompile(`\b(icmp_seq|seq)=([0-9]+)`)

// ParseReplies returns the replies found in stdout, in output order.
// ANSI escape codes are stripped before parsing.
func ParseReplies(stdout string, p LineParser) []Reply {
	if p == nil {
		p = TimeTokenParser{}
	}
	var replies []Reply
	for _, line := range strings.Split(stripANSI(stdout), "\n") {
		rtt, ok := p.ParseLine(line)
		if !ok {
			continue
		}
		r := Reply{RTT: rtt, Seq: -1}
		if m := seqRe.FindStringSubmatch(line); m != nil {
			if n, err := strconv.Atoi(m[2]); err == nil {
				r.Seq, r.ICMPSeq = n, m[1] == "icmp_seq"
			}
		}
		replies = append(replies, r)
	}
	return replies
}
