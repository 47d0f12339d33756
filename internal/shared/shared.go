package shared

import (
	"time"
)

// Phase names the round-trip stage a failure belongs to.
type Phase string

const (
	PhaseResolve Phase = "resolve"
	PhaseConnect Phase = "connect"
	PhaseTLS     Phase = "tls"
	PhaseSend    Phase = "send"
	PhaseReceive Phase = "receive"
)

// Result is one timed HTTP request/response cycle.
type Result struct {
	Seq       uint      `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	Addr      string    `json:"addr,omitempty"` // ip:port actually dialed

	OK         bool `json:"ok"`
	StatusCode int  `json:"status_code,omitempty"`

	// Phase durations in microseconds. Zero when the phase was skipped
	// (TLS on plain HTTP, resolve on a cached or literal address).
	ResolveUS int64 `json:"resolve_us,omitempty"`
	ConnectUS int64 `json:"connect_us,omitempty"`
	TLSUS     int64 `json:"tls_us,omitempty"`
	TTFBUS    int64 `json:"ttfb_us,omitempty"`
	TotalUS   int64 `json:"total_us"`

	HeaderBytes int64 `json:"header_bytes,omitempty"`
	BodyBytes   int64 `json:"body_bytes,omitempty"`
	BytesOut    int64 `json:"bytes_out,omitempty"`

	Reused      bool   `json:"reused,omitempty"`      // connection carried over from a previous probe
	Reconnected bool   `json:"reconnected,omitempty"` // keep-alive reuse failed, re-dialed mid-probe
	Fingerprint string `json:"fingerprint,omitempty"` // SHA-256 of the peer certificate

	FailPhase Phase  `json:"fail_phase,omitempty"`
	Error     string `json:"error,omitempty"`
}

// ExchangeUS returns the request/response time excluding connection setup.
func (r Result) ExchangeUS() int64 {
	e := r.TotalUS - r.ConnectUS - r.TLSUS
	if e < 0 {
		return 0
	}
	return e
}

// PhaseStats summarizes one timing phase across a run, in microseconds.
type PhaseStats struct {
	Min    int64   `json:"min"`
	Avg    int64   `json:"avg"`
	Max    int64   `json:"max"`
	StdDev float64 `json:"stddev"`
	Last   int64   `json:"last"`
}

// RunSummary is the aggregate state of a run, emitted once at exit.
type RunSummary struct {
	RunID string `json:"run_id"`
	URL   string `json:"url"`

	Sent    uint    `json:"sent"`
	OK      uint    `json:"ok"`
	Failed  uint    `json:"failed"`
	LossPct float64 `json:"loss_pct"`

	Connect PhaseStats `json:"connect"`
	TTFB    PhaseStats `json:"ttfb"`
	Total   PhaseStats `json:"total"`

	StatusCodes map[int]uint `json:"status_codes,omitempty"`
	BytesIn     int64        `json:"bytes_in"`
	BytesOut    int64        `json:"bytes_out"`

	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}

// Elapsed returns the wall-clock duration of the run.
func (s RunSummary) Elapsed() time.Duration {
	return s.EndedAt.Sub(s.StartedAt)
}

// OutputInfo carries immutable run metadata to the output layer.
type OutputInfo struct {
	URL       string
	Host      string
	Port      uint16
	Path      string
	TLS       bool
	Method    string
	Count     uint // 0 = until interrupted
	Interval  time.Duration
	KeepAlive bool
}
