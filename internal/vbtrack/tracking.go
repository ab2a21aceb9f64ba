package vbtrack

import (
	"math"
	"sync"
	"time"

	"github.com/banshee-data/beacontrack/internal/config"
	"github.com/google/uuid"
)

// TrackerConfig holds configuration parameters for the beacon tracker.
type TrackerConfig struct {
	MaxBeacons        int     // Maximum number of concurrent beacons
	MaxMisses         int     // Consecutive frames without a measurement before erasure
	HitsToConfirm     int     // Consecutive hits needed for confirmation
	BlobMoveThreshold float32 // Gating radius as a multiple of blob diameter
	MaxPositionJumpPx float32 // Maximum accepted position jump between frames (pixels)
	SmoothingAlpha    float32 // EMA blend factor for matched positions (1.0 = take measurement)
	MaxHistoryLength  int     // Maximum position trail length
	VerboseAssign     bool    // Trace every association decision
}

// DefaultTrackerConfig returns default tracker configuration.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		MaxBeacons:        64,
		MaxMisses:         3,
		HitsToConfirm:     3,
		BlobMoveThreshold: 4.0,
		MaxPositionJumpPx: 40.0,
		SmoothingAlpha:    1.0,
		MaxHistoryLength:  100,
	}
}

// TrackerConfigFromTuning builds a TrackerConfig from a loaded TuningConfig.
// Use this in production code where the TuningConfig is already loaded.
func TrackerConfigFromTuning(cfg *config.TuningConfig) TrackerConfig {
	return TrackerConfig{
		MaxBeacons:        cfg.GetMaxBeacons(),
		MaxMisses:         cfg.GetMaxMisses(),
		HitsToConfirm:     cfg.GetHitsToConfirm(),
		BlobMoveThreshold: float32(cfg.GetBlobMoveThreshold()),
		MaxPositionJumpPx: float32(cfg.GetMaxPositionJumpPx()),
		SmoothingAlpha:    float32(cfg.GetSmoothingAlpha()),
		MaxHistoryLength:  cfg.GetMaxHistoryLength(),
		VerboseAssign:     cfg.GetVerboseAssign(),
	}
}

// FrameMetrics captures the outcome of one frame update.
type FrameMetrics struct {
	TimestampNanos int64

	Measurements int // Blobs received this frame
	Matches      int // Correspondences surfaced and accepted
	Resubmits    int // Measurements returned after a rejected update
	Spawned      int // New beacons seeded from unclaimed measurements
	Erased       int // Stale beacons dropped this frame
	Discarded    int // Heap entries removed by lazy deletion

	CandidateCount    int     // Candidates remaining after draining
	TheoreticalMax    int     // Beacons x measurements
	CandidateFraction float64 // CandidateCount / TheoreticalMax at populate time

	// Percentiles of accepted match distances (pixels)
	MatchDistP50 float32
	MatchDistP85 float32
	MatchDistP95 float32
}

// Tracker drives the per-frame correspondence solver and owns beacon
// lifecycle: match consumption, kinematic update validation with
// resubmission, miss-based pruning, and seeding new beacons from
// unmatched blobs.
type Tracker struct {
	Beacons    *BeaconGroup
	Config     TrackerConfig
	NumBeacons int // Declared count of identifiable beacons

	mu          sync.RWMutex
	lastMetrics FrameMetrics
	stats       *FrameStats
}

// NewTracker creates a tracker for a model with numBeacons identifiable
// beacons.
func NewTracker(numBeacons int, cfg TrackerConfig) *Tracker {
	return &Tracker{
		Beacons:    NewBeaconGroup(),
		Config:     cfg,
		NumBeacons: numBeacons,
		stats:      NewFrameStats(),
	}
}

// Stats returns the tracker's running frame counters.
func (t *Tracker) Stats() *FrameStats {
	return t.stats
}

// UpdateFrame processes one frame of blob measurements: associates them
// with existing beacons, applies validated position updates, prunes
// beacons that have gone unseen too long, and seeds new beacons from
// leftover measurements. Returns the frame's metrics.
func (t *Tracker) UpdateFrame(measurements []Measurement, timestamp time.Time) FrameMetrics {
	t.mu.Lock()
	defer t.mu.Unlock()

	nowNanos := timestamp.UnixNano()
	metrics := FrameMetrics{
		TimestampNanos: nowNanos,
		Measurements:   len(measurements),
	}

	a := NewAssignment(t.Beacons, measurements, t.NumBeacons, t.Config.BlobMoveThreshold)
	if t.Config.VerboseAssign {
		a.SetObserver(TraceAssignObserver{})
	}
	a.Populate()
	metrics.CandidateFraction = a.CandidateFraction()
	metrics.TheoreticalMax = a.TheoreticalMaxCandidates()

	var matchDistances []float32
	for a.HasNextMatch() {
		b, m := a.NextMatch()
		dist := float32(math.Sqrt(float64(SqDist(b.Loc, m.Loc))))
		if !t.applyMeasurement(b, m, nowNanos) {
			// The beacon stays claimed for the frame; only the
			// measurement becomes available again.
			if a.Resubmit(m) {
				metrics.Resubmits++
			}
			continue
		}
		matchDistances = append(matchDistances, dist)
		metrics.Matches++
		b.Hits++
		b.Misses = 0
		if b.State == BeaconTentative && b.Hits >= t.Config.HitsToConfirm {
			b.State = BeaconConfirmed
		}
	}
	metrics.MatchDistP50, metrics.MatchDistP85, metrics.MatchDistP95 =
		ComputeMatchDistancePercentiles(matchDistances)

	// Unmatched beacons accrue misses. With MaxMisses <= 1 every beacon
	// left unclaimed is dropped immediately via the matcher; otherwise
	// beacons coast until the miss budget runs out.
	if t.Config.MaxMisses <= 1 {
		metrics.Erased = a.EraseUnclaimedBeacons()
	} else {
		for i := 0; i < t.Beacons.Len(); i++ {
			b := t.Beacons.At(i)
			if !b.Used {
				b.Misses++
				b.Hits = 0
			}
		}
		metrics.Erased = t.Beacons.RemoveIf(func(i int, b *Beacon) bool {
			if b.Misses < t.Config.MaxMisses {
				return false
			}
			if b.Identified() {
				Diagf("erasing identified beacon %d after %d misses", b.OneBasedID, b.Misses)
			} else {
				Diagf("erasing beacon %s after %d misses", b.TrackID, b.Misses)
			}
			return true
		})
	}

	// Seed new tentative beacons from blobs no beacon claimed.
	a.ForEachUnclaimedMeasurement(func(m Measurement) {
		if t.Beacons.Len() >= t.Config.MaxBeacons {
			return
		}
		t.spawnBeacon(m, nowNanos)
		metrics.Spawned++
	})

	metrics.CandidateCount = a.CandidateCount()
	metrics.Discarded = a.DiscardedCount()

	t.lastMetrics = metrics
	t.stats.AddFrame(metrics)
	return metrics
}

// applyMeasurement validates and applies a matched measurement to a
// beacon. A position jump beyond MaxPositionJumpPx rejects the update so
// the caller can resubmit the measurement.
func (t *Tracker) applyMeasurement(b *Beacon, m Measurement, nowNanos int64) bool {
	maxJump := t.Config.MaxPositionJumpPx
	if maxJump > 0 && SqDist(b.Loc, m.Loc) > maxJump*maxJump {
		Opsf("rejecting update for beacon %s: jump from (%.1f, %.1f) to (%.1f, %.1f) exceeds %.1fpx",
			b.TrackID, b.Loc.X, b.Loc.Y, m.Loc.X, m.Loc.Y, maxJump)
		return false
	}

	alpha := t.Config.SmoothingAlpha
	if alpha <= 0 || alpha > 1 {
		alpha = 1
	}
	b.Loc = Point2{
		X: alpha*m.Loc.X + (1-alpha)*b.Loc.X,
		Y: alpha*m.Loc.Y + (1-alpha)*b.Loc.Y,
	}
	b.Used = true
	b.LastUnixNanos = nowNanos
	b.ObservationCount++

	n := float32(b.ObservationCount)
	b.DiameterAvg = ((n-1)*b.DiameterAvg + m.Diameter) / n

	b.History = append(b.History, BeaconPoint{X: b.Loc.X, Y: b.Loc.Y, Timestamp: nowNanos})
	if max := t.Config.MaxHistoryLength; max > 0 && len(b.History) > max {
		b.History = b.History[len(b.History)-max:]
	}
	return true
}

// spawnBeacon creates a new tentative, unidentified beacon from an
// unmatched measurement.
func (t *Tracker) spawnBeacon(m Measurement, nowNanos int64) *Beacon {
	b := &Beacon{
		TrackID:          uuid.NewString(),
		State:            BeaconTentative,
		Loc:              m.Loc,
		Hits:             1,
		FirstUnixNanos:   nowNanos,
		LastUnixNanos:    nowNanos,
		ObservationCount: 1,
		DiameterAvg:      m.Diameter,
		History:          []BeaconPoint{{X: m.Loc.X, Y: m.Loc.Y, Timestamp: nowNanos}},
	}
	t.Beacons.Append(b)
	return b
}

// LastMetrics returns the metrics of the most recent frame.
func (t *Tracker) LastMetrics() FrameMetrics {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lastMetrics
}

// ActiveBeacons returns a snapshot slice of current beacons.
func (t *Tracker) ActiveBeacons() []*Beacon {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*Beacon, 0, t.Beacons.Len())
	for i := 0; i < t.Beacons.Len(); i++ {
		out = append(out, t.Beacons.At(i))
	}
	return out
}

// BeaconCount returns counts of beacons by state.
func (t *Tracker) BeaconCount() (total, tentative, confirmed int) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for i := 0; i < t.Beacons.Len(); i++ {
		total++
		switch t.Beacons.At(i).State {
		case BeaconTentative:
			tentative++
		case BeaconConfirmed:
			confirmed++
		}
	}
	return
}
