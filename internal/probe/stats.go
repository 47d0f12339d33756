package probe

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/httping/httping/internal/shared"
)

// aggregate accumulates one timing phase. Sums of values and their squares
// are enough to derive the average and standard deviation at any point.
type aggregate struct {
	count      uint
	sum        int64
	sumSquares int64
	min        int64
	max        int64
	last       int64
}

func (ag *aggregate) add(us int64) {
	ag.count++
	ag.last = us
	ag.sum += us
	ag.sumSquares += us * us
	if ag.min == 0 || us < ag.min {
		ag.min = us
	}
	if us > ag.max {
		ag.max = us
	}
}

func (ag *aggregate) snapshot() shared.PhaseStats {
	if ag.count == 0 {
		return shared.PhaseStats{}
	}
	return shared.PhaseStats{
		Min:    ag.min,
		Avg:    ag.sum / int64(ag.count),
		Max:    ag.max,
		StdDev: calculateStdDev(ag.sum, ag.sumSquares, ag.count),
		Last:   ag.last,
	}
}

// runStats is the single-writer aggregate state of a run. The probe loop is
// sequential, so no locking is needed.
type runStats struct {
	runID     string
	url       string
	startedAt time.Time

	sent   uint
	ok     uint
	failed uint

	connect aggregate
	ttfb    aggregate
	total   aggregate

	statusCodes map[int]uint
	bytesIn     int64
	bytesOut    int64
}

func newRunStats(url string) *runStats {
	return &runStats{
		runID:       uuid.NewString(),
		url:         url,
		startedAt:   time.Now(),
		statusCodes: make(map[int]uint),
	}
}

func (rs *runStats) record(r shared.Result) {
	rs.sent++
	if r.StatusCode != 0 {
		rs.statusCodes[r.StatusCode]++
	}
	rs.bytesIn += r.HeaderBytes + r.BodyBytes
	rs.bytesOut += r.BytesOut

	if !r.OK {
		rs.failed++
		return
	}
	rs.ok++

	// Reused connections skip the connect phase; only real dials count.
	if r.ConnectUS > 0 {
		rs.connect.add(r.ConnectUS)
	}
	rs.ttfb.add(r.TTFBUS)
	rs.total.add(r.TotalUS)
}

func (rs *runStats) summary() shared.RunSummary {
	return shared.RunSummary{
		RunID:       rs.runID,
		URL:         rs.url,
		Sent:        rs.sent,
		OK:          rs.ok,
		Failed:      rs.failed,
		LossPct:     calculateLossPct(rs.failed, rs.ok),
		Connect:     rs.connect.snapshot(),
		TTFB:        rs.ttfb.snapshot(),
		Total:       rs.total.snapshot(),
		StatusCodes: rs.statusCodes,
		BytesIn:     rs.bytesIn,
		BytesOut:    rs.bytesOut,
		StartedAt:   rs.startedAt,
		EndedAt:     time.Now(),
	}
}

func calculateStdDev(sum int64, sumSquares int64, n uint) float64 {
	mean := float64(sum) / float64(n)
	variance := float64(sumSquares)/float64(n) - mean*mean
	if variance < 0 {
		variance = 0 // Prevent negative due to floating point errors
	}
	return math.Sqrt(variance)
}

func calculateLossPct(lost uint, received uint) float64 {
	total := lost + received
	if total == 0 {
		return 0
	}
	return float64(lost) / float64(total) * 100
}
