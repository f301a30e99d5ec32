package model

import (
	"time"

	"github.com/goccy/go-json"
)

// Latencies are serialized in milliseconds, HTTP response times in seconds.
// Absent values are encoded as null.

type pingJSON struct {
	Latencies  []*float64 `json:"latencies"`
	Min        *float64   `json:"min"`
	Avg        *float64   `json:"avg"`
	Max        *float64   `json:"max"`
	PacketLoss float64    `json:"packet_loss"`
	Method     Method     `json:"method"`
	Host       string     `json:"host"`
	Port       *int       `json:"port"`
}

type dnsJSON struct {
	Hostname string   `json:"hostname"`
	Success  bool     `json:"success"`
	IPs      []string `json:"ips"`
	Error    *string  `json:"error"`
}

type httpJSON struct {
	URL          string   `json:"url"`
	Method       string   `json:"method,omitempty"`
	Success      bool     `json:"success"`
	StatusCode   *int     `json:"status_code"`
	ResponseTime *float64 `json:"response_time"`
	Error        *string  `json:"error"`
}

type reportJSON struct {
	Ping    *PingResult `json:"ping,omitempty"`
	DNS     []DNSResult `json:"dns,omitempty"`
	HTTP    *HTTPResult `json:"http,omitempty"`
	Summary string      `json:"summary"`
}

func msPtr(d time.Duration) *float64 {
	v := ms(d)
	return &v
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// MarshalJSON implements json.Marshaler.
func (p PingResult) MarshalJSON() ([]byte, error) {
	out := pingJSON{
		Latencies:  make([]*float64, len(p.Samples)),
		PacketLoss: p.PacketLoss,
		Method:     p.Method,
		Host:       p.Host,
	}
	for i, s := range p.Samples {
		if s.OK {
			out.Latencies[i] = msPtr(s.RTT)
		}
	}
	if p.HasLatency() {
		out.Min, out.Avg, out.Max = msPtr(p.Min), msPtr(p.Avg), msPtr(p.Max)
	}
	if p.Method == MethodTCP && p.Port != 0 {
		port := p.Port
		out.Port = &port
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler. Statistics are recomputed from
// the latencies rather than trusted from the input.
func (p *PingResult) UnmarshalJSON(data []byte) error {
	var in pingJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	samples := make([]Sample, len(in.Latencies))
	for i, l := range in.Latencies {
		if l != nil {
			samples[i] = Received(time.Duration(*l * float64(time.Millisecond)))
		}
	}
	port := 0
	if in.Port != nil {
		port = *in.Port
	}
	*p = *NewPingResult(in.Method, in.Host, port, samples)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (d DNSResult) MarshalJSON() ([]byte, error) {
	ips := d.IPs
	if ips == nil {
		ips = []string{}
	}
	return json.Marshal(dnsJSON{
		Hostname: d.Hostname,
		Success:  d.Success,
		IPs:      ips,
		Error:    strPtr(d.Error),
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *DNSResult) UnmarshalJSON(data []byte) error {
	var in dnsJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*d = DNSResult{Hostname: in.Hostname, Success: in.Success}
	if len(in.IPs) > 0 {
		d.IPs = in.IPs
	}
	if in.Error != nil {
		d.Error = *in.Error
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (h HTTPResult) MarshalJSON() ([]byte, error) {
	out := httpJSON{
		URL:     h.URL,
		Method:  h.Method,
		Success: h.Success,
		Error:   strPtr(h.Error),
	}
	if h.StatusCode != 0 {
		code := h.StatusCode
		out.StatusCode = &code
	}
	if h.ResponseTime != nil {
		sec := h.ResponseTime.Seconds()
		out.ResponseTime = &sec
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (h *HTTPResult) UnmarshalJSON(data []byte) error {
	var in httpJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*h = HTTPResult{URL: in.URL, Method: in.Method, Success: in.Success}
	if in.StatusCode != nil {
		h.StatusCode = *in.StatusCode
	}
	if in.ResponseTime != nil {
		d := time.Duration(*in.ResponseTime * float64(time.Second))
		h.ResponseTime = &d
	}
	if in.Error != nil {
		h.Error = *in.Error
	}
	return nil
}

// MarshalJSON renders the report with each probe present only if it ran and
// the summary as a single joined string.
func (r Report) MarshalJSON() ([]byte, error) {
	return json.Marshal(reportJSON{
		Ping:    r.Ping,
		DNS:     r.DNS,
		HTTP:    r.HTTP,
		Summary: r.Summary.String(),
	})
}

// UnmarshalJSON implements json.Unmarshaler. The summary is re-derived.
func (r *Report) UnmarshalJSON(data []byte) error {
	var in reportJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*r = *NewReport(in.Ping, in.DNS, in.HTTP)
	return nil
}
