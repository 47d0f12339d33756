package output

import (
	"fmt"
	"io"
	"net"
	"sort"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/httping/httping/internal/shared"
)

// TextOptions selects what each probe line carries beyond the timing.
type TextOptions struct {
	ShowStatusCodes bool
	Split           bool
	ShowSpeed       bool
	ShowBytes       bool
	Audible         bool
	Parseable       bool
	Verbose         bool
	Fingerprint     bool
	Label           string
}

// TextOutput prints one line per probe plus the final statistics block,
// ping style.
type TextOutput struct {
	w    io.Writer
	info shared.OutputInfo
	opts TextOptions
}

func NewTextOutput(w io.Writer, info shared.OutputInfo, opts TextOptions) *TextOutput {
	t := &TextOutput{w: w, info: info, opts: opts}
	if !opts.Parseable {
		hostPort := net.JoinHostPort(info.Host, strconv.Itoa(int(info.Port)))
		fmt.Fprintf(w, "PING %s (%s):\n", hostPort, info.Path)
	}
	return t
}

func (t *TextOutput) Record(r shared.Result) {
	if t.opts.Parseable {
		t.recordParseable(r)
		return
	}

	var b strings.Builder

	// A probe that never produced a status line has nothing to report
	// beyond the failure itself.
	if r.StatusCode == 0 && r.Error != "" {
		fmt.Fprintf(&b, "failed, seq=%d (%s): %s", r.Seq, r.FailPhase, r.Error)
		t.finishLine(&b)
		return
	}

	fmt.Fprintf(&b, "connected to %s (%d bytes), seq=%d ",
		r.Addr, r.HeaderBytes+r.BodyBytes, r.Seq)
	if t.opts.Split {
		fmt.Fprintf(&b, "connect=%.2f ms exchange=%.2f ms ",
			ms(r.ConnectUS+r.TLSUS), ms(r.ExchangeUS()))
	}
	fmt.Fprintf(&b, "time=%.2f ms", ms(r.TotalUS))

	if t.opts.ShowStatusCodes && r.StatusCode != 0 {
		fmt.Fprintf(&b, " %d", r.StatusCode)
	}
	if !r.OK && r.StatusCode != 0 && t.opts.Label != "" {
		b.WriteString(" " + t.opts.Label)
	}
	if t.opts.ShowSpeed && r.OK {
		fmt.Fprintf(&b, " %.1fKB/s", transferKBps(r))
	}
	if t.opts.ShowBytes {
		fmt.Fprintf(&b, " in=%s out=%s",
			humanize.Bytes(uint64(r.HeaderBytes+r.BodyBytes)), humanize.Bytes(uint64(r.BytesOut)))
	}
	if t.opts.Verbose {
		if r.ResolveUS > 0 {
			fmt.Fprintf(&b, " resolve=%.2f ms", ms(r.ResolveUS))
		}
		if r.TLSUS > 0 {
			fmt.Fprintf(&b, " tls=%.2f ms", ms(r.TLSUS))
		}
	}
	if t.opts.Fingerprint && r.Fingerprint != "" {
		fmt.Fprintf(&b, " fingerprint=%s", r.Fingerprint)
	}
	if r.Reconnected {
		b.WriteString(" C")
	}

	t.finishLine(&b)
}

func (t *TextOutput) recordParseable(r shared.Result) {
	var b strings.Builder
	fmt.Fprintf(&b, "seq=%d ok=%t", r.Seq, r.OK)
	if r.StatusCode != 0 {
		fmt.Fprintf(&b, " status=%d", r.StatusCode)
	}
	if r.FailPhase != "" {
		fmt.Fprintf(&b, " phase=%s error=%q", r.FailPhase, r.Error)
	}
	fmt.Fprintf(&b, " connect_us=%d ttfb_us=%d total_us=%d bytes_in=%d bytes_out=%d",
		r.ConnectUS, r.TTFBUS, r.TotalUS, r.HeaderBytes+r.BodyBytes, r.BytesOut)
	t.finishLine(&b)
}

func (t *TextOutput) finishLine(b *strings.Builder) {
	if t.opts.Audible {
		b.WriteByte('\a')
	}
	b.WriteByte('\n')
	fmt.Fprint(t.w, b.String())
}

func (t *TextOutput) Summary(s shared.RunSummary) {
	if t.opts.Parseable {
		fmt.Fprintf(t.w, "sent=%d ok=%d failed=%d loss_pct=%.2f min_us=%d avg_us=%d max_us=%d sd_us=%.1f elapsed_ms=%d\n",
			s.Sent, s.OK, s.Failed, s.LossPct,
			s.Total.Min, s.Total.Avg, s.Total.Max, s.Total.StdDev,
			s.Elapsed().Milliseconds())
		return
	}
	writeSummary(t.w, s, t.opts)
}

// writeSummary renders the classic statistics block. The TUI also calls it,
// after the alternate screen has been torn down.
func writeSummary(w io.Writer, s shared.RunSummary, opts TextOptions) {
	fmt.Fprintf(w, "--- %s ping statistics ---\n", s.URL)
	fmt.Fprintf(w, "%d connects, %d ok, %.2f%% failed, time %dms\n",
		s.Sent, s.OK, s.LossPct, s.Elapsed().Milliseconds())
	if s.OK > 0 {
		fmt.Fprintf(w, "round-trip min/avg/max/sd = %s ms\n", phaseLine(s.Total))
		if opts.Split {
			fmt.Fprintf(w, "connect min/avg/max/sd = %s ms\n", phaseLine(s.Connect))
			fmt.Fprintf(w, "first-byte min/avg/max/sd = %s ms\n", phaseLine(s.TTFB))
		}
	}
	if opts.ShowStatusCodes && len(s.StatusCodes) > 0 {
		fmt.Fprintf(w, "status codes: %s\n", statusCodeLine(s.StatusCodes))
	}
	if opts.ShowBytes {
		fmt.Fprintf(w, "transferred: %s in, %s out\n",
			humanize.Bytes(uint64(s.BytesIn)), humanize.Bytes(uint64(s.BytesOut)))
	}
}

func (t *TextOutput) Close() error { return nil }

func ms(us int64) float64 {
	return float64(us) / 1000
}

// transferKBps is the body transfer rate. The window starts at the first
// response byte; header-only responses fall back to the whole round trip.
func transferKBps(r shared.Result) float64 {
	window := r.TotalUS - r.TTFBUS
	if window <= 0 {
		window = r.TotalUS
	}
	if window <= 0 {
		return 0
	}
	return float64(r.BodyBytes) / 1024 / (float64(window) / 1e6)
}

func phaseLine(p shared.PhaseStats) string {
	return fmt.Sprintf("%.1f/%.1f/%.1f/%.1f",
		ms(p.Min), ms(p.Avg), ms(p.Max), p.StdDev/1000)
}

func statusCodeLine(codes map[int]uint) string {
	keys := make([]int, 0, len(codes))
	for code := range codes {
		keys = append(keys, code)
	}
	sort.Ints(keys)

	parts := make([]string, 0, len(keys))
	for _, code := range keys {
		parts = append(parts, fmt.Sprintf("%d=%d", code, codes[code]))
	}
	return strings.Join(parts, ", ")
}
