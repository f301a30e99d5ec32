package model

import "time"

// Stats holds the aggregate of a sample sequence. Min, Avg and Max are only
// meaningful when Received > 0.
type Stats struct {
	Min        time.Duration
	Avg        time.Duration
	Max        time.Duration
	Received   int
	PacketLoss float64 // percent, 0-100
}

// HasLatency reports whether at least one sample succeeded.
func (s Stats) HasLatency() bool {
	return s.Received > 0
}

// ComputeStats derives min/avg/max over the successful samples and the
// packet loss percentage. An empty sequence counts as total loss.
func ComputeStats(samples []Sample) Stats {
	var (
		st  Stats
		sum time.Duration
	)

	for _, s := range samples {
		if !s.OK {
			continue
		}
		if st.Received == 0 || s.RTT < st.Min {
			st.Min = s.RTT
		}
		if st.Received == 0 || s.RTT > st.Max {
			st.Max = s.RTT
		}
		sum += s.RTT
		st.Received++
	}

	if st.Received == 0 {
		st.PacketLoss = 100
		return st
	}

	st.Avg = sum / time.Duration(st.Received)
	st.PacketLoss = float64(len(samples)-st.Received) / float64(len(samples)) * 100
	return st
}

// ms converts a duration to fractional milliseconds.
func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
