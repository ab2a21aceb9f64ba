package vbtrack

import (
	"testing"
)

func TestFrameStats_AddAndSnapshot(t *testing.T) {
	fs := NewFrameStats()
	fs.AddFrame(FrameMetrics{Measurements: 5, Matches: 3, Resubmits: 1, Spawned: 2, Erased: 1})
	fs.AddFrame(FrameMetrics{Measurements: 4, Matches: 4})

	frames, meas, matches, resubmits, spawned, erased := fs.Snapshot()
	if frames != 2 {
		t.Errorf("frames = %d, want 2", frames)
	}
	if meas != 9 {
		t.Errorf("meas = %d, want 9", meas)
	}
	if matches != 7 {
		t.Errorf("matches = %d, want 7", matches)
	}
	if resubmits != 1 || spawned != 2 || erased != 1 {
		t.Errorf("resubmits/spawned/erased = %d/%d/%d, want 1/2/1", resubmits, spawned, erased)
	}
}

func TestFrameStats_GetAndReset(t *testing.T) {
	fs := NewFrameStats()
	fs.AddFrame(FrameMetrics{Measurements: 3, Matches: 2})

	frames, meas, matches, _, _, _, duration := fs.GetAndReset()
	if frames != 1 || meas != 3 || matches != 2 {
		t.Errorf("GetAndReset = %d/%d/%d, want 1/3/2", frames, meas, matches)
	}
	if duration < 0 {
		t.Errorf("duration = %v, want >= 0", duration)
	}

	frames, meas, matches, _, _, _ = fs.Snapshot()
	if frames != 0 || meas != 0 || matches != 0 {
		t.Errorf("counters not reset: %d/%d/%d", frames, meas, matches)
	}
}

func TestFormatCount(t *testing.T) {
	cases := []struct {
		n    int64
		want string
	}{
		{0, "0"},
		{9999, "9999"},
		{10000, "10.0k"},
		{125000, "125.0k"},
	}
	for _, c := range cases {
		if got := formatCount(c.n); got != c.want {
			t.Errorf("formatCount(%d) = %q, want %q", c.n, got, c.want)
		}
	}
}

func TestComputeMatchDistancePercentiles(t *testing.T) {
	// Ten evenly spaced samples; the empirical quantile is the smallest
	// sample whose cumulative fraction reaches the requested level.
	distances := []float32{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}
	p50, p85, p95 := ComputeMatchDistancePercentiles(distances)
	if p50 != 50 {
		t.Errorf("p50 = %v, want 50", p50)
	}
	if p85 != 90 {
		t.Errorf("p85 = %v, want 90", p85)
	}
	if p95 != 100 {
		t.Errorf("p95 = %v, want 100", p95)
	}
}

func TestComputeMatchDistancePercentiles_Degenerate(t *testing.T) {
	p50, p85, p95 := ComputeMatchDistancePercentiles(nil)
	if p50 != 0 || p85 != 0 || p95 != 0 {
		t.Errorf("empty samples: got %v/%v/%v, want zeros", p50, p85, p95)
	}

	p50, p85, p95 = ComputeMatchDistancePercentiles([]float32{7})
	if p50 != 7 || p85 != 7 || p95 != 7 {
		t.Errorf("single sample: got %v/%v/%v, want 7s", p50, p85, p95)
	}
}
