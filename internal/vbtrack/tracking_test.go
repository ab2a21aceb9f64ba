package vbtrack

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/beacontrack/internal/config"
)

func testConfig() TrackerConfig {
	cfg := DefaultTrackerConfig()
	cfg.BlobMoveThreshold = 4.0
	cfg.MaxPositionJumpPx = 40.0
	return cfg
}

func frameAt(sec int64) time.Time {
	return time.Unix(sec, 0)
}

func TestTracker_SpawnsFromUnmatchedMeasurements(t *testing.T) {
	tr := NewTracker(34, testConfig())

	m := tr.UpdateFrame([]Measurement{
		{Loc: Point2{X: 100, Y: 100}, Diameter: 6},
		{Loc: Point2{X: 400, Y: 250}, Diameter: 5},
	}, frameAt(1))

	assert.Equal(t, 2, m.Spawned)
	assert.Equal(t, 0, m.Matches)
	assert.Equal(t, 2, m.Measurements)

	total, tentative, confirmed := tr.BeaconCount()
	assert.Equal(t, 2, total)
	assert.Equal(t, 2, tentative)
	assert.Equal(t, 0, confirmed)

	for _, b := range tr.ActiveBeacons() {
		assert.NotEmpty(t, b.TrackID)
		assert.Equal(t, BeaconTentative, b.State)
		assert.Equal(t, 1, b.Hits)
		assert.Equal(t, 1, b.ObservationCount)
		assert.False(t, b.Identified())
	}
}

func TestTracker_ConfirmsAfterConsecutiveHits(t *testing.T) {
	cfg := testConfig()
	cfg.HitsToConfirm = 3
	tr := NewTracker(34, cfg)

	meas := []Measurement{{Loc: Point2{X: 50, Y: 50}, Diameter: 6}}
	tr.UpdateFrame(meas, frameAt(1)) // spawn, hits = 1

	m := tr.UpdateFrame(meas, frameAt(2))
	assert.Equal(t, 1, m.Matches)
	_, tentative, confirmed := tr.BeaconCount()
	assert.Equal(t, 1, tentative)
	assert.Equal(t, 0, confirmed)

	m = tr.UpdateFrame(meas, frameAt(3))
	assert.Equal(t, 1, m.Matches)
	_, tentative, confirmed = tr.BeaconCount()
	assert.Equal(t, 0, tentative)
	assert.Equal(t, 1, confirmed)
}

func TestTracker_CoastsThenPrunesOnMisses(t *testing.T) {
	cfg := testConfig()
	cfg.MaxMisses = 2
	tr := NewTracker(34, cfg)

	tr.UpdateFrame([]Measurement{{Loc: Point2{X: 10, Y: 10}, Diameter: 5}}, frameAt(1))
	require.Equal(t, 1, tr.Beacons.Len())

	// First empty frame: the beacon coasts.
	m := tr.UpdateFrame(nil, frameAt(2))
	assert.Equal(t, 0, m.Erased)
	assert.Equal(t, 1, tr.Beacons.Len())
	assert.Equal(t, 1, tr.Beacons.At(0).Misses)

	// Second empty frame exhausts the miss budget.
	m = tr.UpdateFrame(nil, frameAt(3))
	assert.Equal(t, 1, m.Erased)
	assert.Equal(t, 0, tr.Beacons.Len())
}

func TestTracker_ErasesImmediatelyWithSingleMissBudget(t *testing.T) {
	cfg := testConfig()
	cfg.MaxMisses = 1
	tr := NewTracker(34, cfg)

	tr.UpdateFrame([]Measurement{{Loc: Point2{X: 10, Y: 10}, Diameter: 5}}, frameAt(1))
	require.Equal(t, 1, tr.Beacons.Len())

	m := tr.UpdateFrame(nil, frameAt(2))
	assert.Equal(t, 1, m.Erased)
	assert.Equal(t, 0, tr.Beacons.Len())
}

func TestTracker_MissResetOnRematch(t *testing.T) {
	cfg := testConfig()
	cfg.MaxMisses = 3
	tr := NewTracker(34, cfg)

	meas := []Measurement{{Loc: Point2{X: 10, Y: 10}, Diameter: 5}}
	tr.UpdateFrame(meas, frameAt(1))
	tr.UpdateFrame(nil, frameAt(2))
	require.Equal(t, 1, tr.Beacons.At(0).Misses)

	tr.UpdateFrame(meas, frameAt(3))
	assert.Equal(t, 0, tr.Beacons.At(0).Misses)
}

func TestTracker_RejectsJumpAndResubmits(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPositionJumpPx = 40
	tr := NewTracker(34, cfg)

	tr.UpdateFrame([]Measurement{{Loc: Point2{X: 0, Y: 0}, Diameter: 30}}, frameAt(1))
	require.Equal(t, 1, tr.Beacons.Len())
	original := tr.Beacons.At(0)

	// Inside the gating radius (4 x 30 = 120px) but beyond the accepted
	// per-frame jump, so the match is rejected and the measurement goes
	// back into the pool, where it seeds a fresh beacon.
	m := tr.UpdateFrame([]Measurement{{Loc: Point2{X: 100, Y: 0}, Diameter: 30}}, frameAt(2))

	assert.Equal(t, 0, m.Matches)
	assert.Equal(t, 1, m.Resubmits)
	assert.Equal(t, 1, m.Spawned)
	assert.Equal(t, 2, tr.Beacons.Len())

	// The original beacon kept its position and accrued a miss.
	assert.Equal(t, Point2{X: 0, Y: 0}, original.Loc)
	assert.Equal(t, 1, original.Misses)
}

func TestTracker_SmoothsMatchedPositions(t *testing.T) {
	cfg := testConfig()
	cfg.SmoothingAlpha = 0.5
	tr := NewTracker(34, cfg)

	tr.UpdateFrame([]Measurement{{Loc: Point2{X: 0, Y: 0}, Diameter: 10}}, frameAt(1))
	tr.UpdateFrame([]Measurement{{Loc: Point2{X: 10, Y: 0}, Diameter: 10}}, frameAt(2))

	b := tr.Beacons.At(0)
	assert.InDelta(t, 5.0, float64(b.Loc.X), 1e-4)
	assert.InDelta(t, 0.0, float64(b.Loc.Y), 1e-4)
}

func TestTracker_RespectsMaxBeacons(t *testing.T) {
	cfg := testConfig()
	cfg.MaxBeacons = 2
	tr := NewTracker(34, cfg)

	m := tr.UpdateFrame([]Measurement{
		{Loc: Point2{X: 0, Y: 0}, Diameter: 5},
		{Loc: Point2{X: 200, Y: 0}, Diameter: 5},
		{Loc: Point2{X: 400, Y: 0}, Diameter: 5},
	}, frameAt(1))

	assert.Equal(t, 2, m.Spawned)
	assert.Equal(t, 2, tr.Beacons.Len())
}

func TestTracker_CapsHistoryLength(t *testing.T) {
	cfg := testConfig()
	cfg.MaxHistoryLength = 3
	tr := NewTracker(34, cfg)

	for i := int64(1); i <= 6; i++ {
		tr.UpdateFrame([]Measurement{{Loc: Point2{X: float32(i), Y: 0}, Diameter: 20}}, frameAt(i))
	}

	b := tr.Beacons.At(0)
	require.Len(t, b.History, 3)
	// The trail keeps the newest samples.
	assert.Equal(t, frameAt(6).UnixNano(), b.History[2].Timestamp)
}

func TestTracker_FrameMetricsAndAverages(t *testing.T) {
	tr := NewTracker(34, testConfig())

	tr.UpdateFrame([]Measurement{{Loc: Point2{X: 10, Y: 10}, Diameter: 4}}, frameAt(1))
	m := tr.UpdateFrame([]Measurement{{Loc: Point2{X: 11, Y: 10}, Diameter: 8}}, frameAt(2))

	assert.Equal(t, 1, m.Matches)
	assert.Equal(t, 1, m.TheoreticalMax)
	assert.InDelta(t, 1.0, m.CandidateFraction, 1e-9)
	assert.InDelta(t, 1.0, float64(m.MatchDistP50), 1e-4)

	b := tr.Beacons.At(0)
	assert.Equal(t, 2, b.ObservationCount)
	assert.InDelta(t, 6.0, float64(b.DiameterAvg), 1e-4)
	assert.Equal(t, frameAt(2).UnixNano(), b.LastUnixNanos)
	assert.Equal(t, frameAt(1).UnixNano(), b.FirstUnixNanos)

	last := tr.LastMetrics()
	assert.Equal(t, m, last)
}

func TestTrackerConfigFromTuningDefaults(t *testing.T) {
	cfg := TrackerConfigFromTuning(config.EmptyTuningConfig())
	def := DefaultTrackerConfig()
	assert.Equal(t, def.MaxBeacons, cfg.MaxBeacons)
	assert.Equal(t, def.MaxMisses, cfg.MaxMisses)
	assert.Equal(t, def.HitsToConfirm, cfg.HitsToConfirm)
	assert.InDelta(t, float64(def.BlobMoveThreshold), float64(cfg.BlobMoveThreshold), 1e-6)
	assert.InDelta(t, float64(def.MaxPositionJumpPx), float64(cfg.MaxPositionJumpPx), 1e-6)
}
