package vbtrack

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

// FrameStats accumulates tracking counters with thread-safe operations.
// The tracking loop adds per-frame numbers; the monitor webserver and
// the periodic stats logger drain them with GetAndReset.
type FrameStats struct {
	mu         sync.Mutex
	frames     int64
	meas       int64
	matches    int64
	resubmits  int64
	spawned    int64
	erased     int64
	discarded  int64
	candidates int64
	lastReset  time.Time
}

// NewFrameStats creates a new FrameStats instance.
func NewFrameStats() *FrameStats {
	return &FrameStats{lastReset: time.Now()}
}

// AddFrame records the outcome of one processed frame.
func (fs *FrameStats) AddFrame(m FrameMetrics) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.frames++
	fs.meas += int64(m.Measurements)
	fs.matches += int64(m.Matches)
	fs.resubmits += int64(m.Resubmits)
	fs.spawned += int64(m.Spawned)
	fs.erased += int64(m.Erased)
	fs.discarded += int64(m.Discarded)
	fs.candidates += int64(m.CandidateCount)
}

// Snapshot returns current counters without resetting them.
func (fs *FrameStats) Snapshot() (frames, meas, matches, resubmits, spawned, erased int64) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.frames, fs.meas, fs.matches, fs.resubmits, fs.spawned, fs.erased
}

// GetAndReset returns current counters and resets them.
func (fs *FrameStats) GetAndReset() (frames, meas, matches, resubmits, spawned, erased int64, duration time.Duration) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	now := time.Now()
	duration = now.Sub(fs.lastReset)
	frames = fs.frames
	meas = fs.meas
	matches = fs.matches
	resubmits = fs.resubmits
	spawned = fs.spawned
	erased = fs.erased

	fs.frames = 0
	fs.meas = 0
	fs.matches = 0
	fs.resubmits = 0
	fs.spawned = 0
	fs.erased = 0
	fs.discarded = 0
	fs.candidates = 0
	fs.lastReset = now

	return
}

// LogStats logs formatted statistics to the diag stream and resets.
func (fs *FrameStats) LogStats() {
	frames, meas, matches, resubmits, spawned, erased, duration := fs.GetAndReset()
	if frames == 0 {
		return
	}
	framesPerSec := float64(frames) / duration.Seconds()
	Diagf("tracker stats (/sec): %.1f frames, %s blobs, %s matches, %d resubmits, %d spawned, %d erased",
		framesPerSec, formatCount(meas), formatCount(matches), resubmits, spawned, erased)
}

func formatCount(n int64) string {
	if n >= 10000 {
		return fmt.Sprintf("%.1fk", float64(n)/1000)
	}
	return fmt.Sprintf("%d", n)
}

// ComputeMatchDistancePercentiles returns the p50/p85/p95 of the given
// match distances (pixels). Returns zeros for an empty sample set.
func ComputeMatchDistancePercentiles(distances []float32) (p50, p85, p95 float32) {
	if len(distances) == 0 {
		return 0, 0, 0
	}
	sorted := make([]float64, len(distances))
	for i, d := range distances {
		sorted[i] = float64(d)
	}
	sort.Float64s(sorted)
	p50 = float32(stat.Quantile(0.50, stat.Empirical, sorted, nil))
	p85 = float32(stat.Quantile(0.85, stat.Empirical, sorted, nil))
	p95 = float32(stat.Quantile(0.95, stat.Empirical, sorted, nil))
	return p50, p85, p95
}
