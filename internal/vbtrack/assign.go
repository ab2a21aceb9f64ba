package vbtrack

import (
	"container/heap"
)

// This file implements the per-frame beacon/measurement correspondence
// solver. Candidates within a per-measurement gating radius go into a
// min-heap keyed on squared distance; matches are drained greedily
// (globally closest available pair first) with lazy invalidation of heap
// entries whose beacon or measurement has already been claimed.
//
// One Assignment instance is scoped to one frame and one goroutine. It
// holds positional indices into the caller-owned BeaconGroup and
// measurement slice; neither may be mutated while the Assignment is
// active, or indices desynchronise.

// candidate pairs a beacon slot with a measurement slot at the squared
// distance observed when the candidate was generated. Candidates are
// immutable; liveness is a function of the claim tables only.
type candidate struct {
	beaconIdx int
	measIdx   int
	sqDist    float32
}

// candidateHeap is a min-heap of candidates ordered by ascending squared
// distance. Ties are broken arbitrarily; this does not affect the
// one-to-one or greedy guarantees.
type candidateHeap []candidate

func (h candidateHeap) Len() int            { return len(h) }
func (h candidateHeap) Less(i, j int) bool  { return h[i].sqDist < h[j].sqDist }
func (h candidateHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *candidateHeap) Push(x interface{}) { *h = append(*h, x.(candidate)) }
func (h *candidateHeap) Pop() interface{} {
	old := *h
	n := len(old)
	c := old[n-1]
	*h = old[:n-1]
	return c
}

// AssignObserver receives association decision points. Implementations
// must not mutate the beacon group or measurement list; the observer is
// observability only and has no effect on matching results.
type AssignObserver interface {
	// TopInspected fires each time the heap minimum is examined.
	// beaconFree/measFree report claim-table state; the entry is
	// discarded when either side is already claimed.
	TopInspected(beaconIdx, measIdx int, sqDist float32, beaconFree, measFree bool)
	// MatchReturned fires when a match is surfaced to the caller.
	MatchReturned(beaconIdx, measIdx int, sqDist float32)
}

// Assignment performs threshold-gated greedy matching between the
// previous frame's beacons and the current frame's measurements.
//
// Usage protocol: Populate exactly once, then alternate HasNextMatch /
// NextMatch until HasNextMatch returns false, then (optionally) act on
// leftovers. Protocol violations are caller bugs and panic; data
// anomalies (bad identities, bad resubmissions) are handled locally and
// reported through the ops log.
type Assignment struct {
	beacons      *BeaconGroup
	measurements []Measurement
	numBeacons   int
	moveThresh   float32 // Gating scale: radius = moveThresh × blob diameter

	populated bool

	// Claim tables, one slot per beacon / measurement position.
	// A claimed slot can no longer participate in a match.
	beaconClaimed []bool
	measClaimed   []bool

	h candidateHeap

	discarded int // Running count of lazily deleted entries

	observer AssignObserver
}

// NewAssignment creates a single-frame matcher over the given beacon
// group and measurement list. numBeacons is the declared count of
// identifiable beacons; any beacon claiming an identity beyond it is
// coerced to misidentified during Populate. moveThresh scales the
// per-measurement gating radius (radius = moveThresh × diameter).
func NewAssignment(beacons *BeaconGroup, measurements []Measurement, numBeacons int, moveThresh float32) *Assignment {
	return &Assignment{
		beacons:      beacons,
		measurements: measurements,
		numBeacons:   numBeacons,
		moveThresh:   moveThresh,
	}
}

// SetObserver installs a decision-point observer. Must be called before
// Populate if the observer should see the full dequeue sequence.
func (a *Assignment) SetObserver(obs AssignObserver) {
	a.observer = obs
}

// handleOutOfRangeID coerces a beacon whose claimed identity exceeds the
// declared beacon count to misidentified. Such beacons are retained in
// the group (the recognition stage may re-label them) but excluded from
// candidate generation this frame. Returns true if the beacon was coerced.
func (a *Assignment) handleOutOfRangeID(b *Beacon) bool {
	if b.OneBasedID > 0 && !b.Misidentified && b.ZeroBasedID() >= a.numBeacons {
		Opsf("beacon claims identity %d but only %d beacons are declared; marking misidentified",
			b.OneBasedID, a.numBeacons)
		b.MarkMisidentified()
		return true
	}
	return false
}

// Populate builds the candidate set and the distance heap. Must be
// called exactly once per Assignment; a second call panics.
//
// Cost is O(beacons × measurements) distance computations plus a linear
// heapify. This is the dominant per-frame cost and is accepted.
func (a *Assignment) Populate() {
	if a.populated {
		panic("vbtrack: Assignment.Populate called twice")
	}
	a.populated = true

	nBeacons := a.beacons.Len()
	nMeas := len(a.measurements)
	a.beaconClaimed = make([]bool, nBeacons)
	a.measClaimed = make([]bool, nMeas)

	for i := 0; i < nBeacons; i++ {
		b := a.beacons.At(i)
		b.ResetUsed()
		a.handleOutOfRangeID(b)
	}

	for mi := 0; mi < nMeas; mi++ {
		// The gating threshold is per measurement: the admissible
		// search radius scales with apparent blob size, so larger
		// (closer) blobs tolerate larger inter-frame motion.
		thresh := a.moveThresh * a.measurements[mi].Diameter
		threshSq := thresh * thresh
		for bi := 0; bi < nBeacons; bi++ {
			b := a.beacons.At(bi)
			if b.Misidentified {
				continue
			}
			sqDist := SqDist(b.Loc, a.measurements[mi].Loc)
			if sqDist < threshSq {
				a.h = append(a.h, candidate{beaconIdx: bi, measIdx: mi, sqDist: sqDist})
			}
		}
	}
	heap.Init(&a.h)
}

func (a *Assignment) checkPopulated(op string) {
	if !a.populated {
		panic("vbtrack: Assignment." + op + " called before Populate")
	}
}

// topValid reports whether the current heap minimum references a beacon
// and a measurement that are both still unclaimed.
func (a *Assignment) topValid() bool {
	top := a.h[0]
	return !a.beaconClaimed[top.beaconIdx] && !a.measClaimed[top.measIdx]
}

// DiscardInvalidEntries pops stale heap entries (either side already
// claimed) until the minimum is valid or the heap is empty, returning
// the number discarded. HasNextMatch calls this internally; it is
// exported for callers that want to account for lazy-deletion churn.
func (a *Assignment) DiscardInvalidEntries() int {
	a.checkPopulated("DiscardInvalidEntries")
	discarded := 0
	for len(a.h) > 0 {
		top := a.h[0]
		beaconFree := !a.beaconClaimed[top.beaconIdx]
		measFree := !a.measClaimed[top.measIdx]
		if a.observer != nil {
			a.observer.TopInspected(top.beaconIdx, top.measIdx, top.sqDist, beaconFree, measFree)
		}
		if beaconFree && measFree {
			return discarded
		}
		heap.Pop(&a.h)
		discarded++
		a.discarded++
	}
	return discarded
}

// DiscardedCount returns the total number of heap entries removed by
// lazy deletion so far this frame.
func (a *Assignment) DiscardedCount() int {
	a.checkPopulated("DiscardedCount")
	return a.discarded
}

// HasNextMatch reports whether another valid correspondence remains,
// discarding stale heap entries as it scans. Idempotent: repeated calls
// with no intervening NextMatch return the same answer and do not
// change claim state.
func (a *Assignment) HasNextMatch() bool {
	a.checkPopulated("HasNextMatch")
	a.DiscardInvalidEntries()
	if len(a.h) == 0 {
		return false
	}
	return a.topValid()
}

// NextMatch returns the closest still-available (beacon, measurement)
// pair and claims both sides. Requires a prior successful HasNextMatch;
// calling it when no match remains is a protocol error and panics.
func (a *Assignment) NextMatch() (*Beacon, Measurement) {
	a.checkPopulated("NextMatch")
	if !a.HasNextMatch() {
		panic("vbtrack: Assignment.NextMatch called without a successful HasNextMatch")
	}
	top := a.h[0]
	b := a.beacons.At(top.beaconIdx)
	m := a.measurements[top.measIdx]
	a.beaconClaimed[top.beaconIdx] = true
	a.measClaimed[top.measIdx] = true
	heap.Pop(&a.h)
	if a.observer != nil {
		a.observer.MatchReturned(top.beaconIdx, top.measIdx, top.sqDist)
	}
	return b, m
}

// Resubmit makes a previously claimed measurement available again, for
// when a downstream beacon update rejected it. The measurement is looked
// up by value in the original list. Returns false (with a diagnostic)
// when no equal measurement exists or its slot is not currently claimed.
//
// Resubmission restores availability only: candidates referencing the
// measurement that were already discarded by lazy deletion are gone for
// this frame.
func (a *Assignment) Resubmit(m Measurement) bool {
	a.checkPopulated("Resubmit")
	idx := -1
	for i := range a.measurements {
		if a.measurements[i] == m {
			idx = i
			break
		}
	}
	if idx < 0 {
		Opsf("resubmit: measurement at (%.2f, %.2f) not found in this frame's list", m.Loc.X, m.Loc.Y)
		return false
	}
	if !a.measClaimed[idx] {
		Opsf("resubmit: measurement slot %d was not marked as consumed", idx)
		return false
	}
	a.measClaimed[idx] = false
	return true
}

// UnclaimedBeaconCount returns the number of beacons that have not
// received a match this frame.
func (a *Assignment) UnclaimedBeaconCount() int {
	a.checkPopulated("UnclaimedBeaconCount")
	count := 0
	for _, claimed := range a.beaconClaimed {
		if !claimed {
			count++
		}
	}
	return count
}

// EraseUnclaimedBeacons removes every unclaimed beacon from the owning
// group, preserving the relative order of survivors, and returns the
// number erased. The tracking loop uses this to drop beacons with no
// recent observation. Positional indices into the group are invalid
// afterwards; this is a frame-final operation.
func (a *Assignment) EraseUnclaimedBeacons() int {
	a.checkPopulated("EraseUnclaimedBeacons")
	return a.beacons.RemoveIf(func(i int, b *Beacon) bool {
		if a.beaconClaimed[i] {
			return false
		}
		if b.Identified() {
			Diagf("erasing identified beacon %d: no updated data", b.OneBasedID)
		} else {
			Diagf("erasing unidentified beacon at (%.2f, %.2f): no updated data", b.Loc.X, b.Loc.Y)
		}
		return true
	})
}

// UnclaimedMeasurementCount returns the number of measurements that
// matched no beacon this frame.
func (a *Assignment) UnclaimedMeasurementCount() int {
	a.checkPopulated("UnclaimedMeasurementCount")
	count := 0
	for _, claimed := range a.measClaimed {
		if !claimed {
			count++
		}
	}
	return count
}

// ForEachUnclaimedMeasurement applies op to every measurement that
// matched no beacon, in list order. The tracking loop uses this to seed
// new beacon candidates from unmatched blobs.
func (a *Assignment) ForEachUnclaimedMeasurement(op func(Measurement)) {
	a.checkPopulated("ForEachUnclaimedMeasurement")
	for i := range a.measurements {
		if !a.measClaimed[i] {
			op(a.measurements[i])
		}
	}
}

// CandidateCount returns the number of entries currently in the heap.
func (a *Assignment) CandidateCount() int {
	a.checkPopulated("CandidateCount")
	return len(a.h)
}

// TheoreticalMaxCandidates returns the candidate count had every
// (beacon, measurement) pair fallen within the gating threshold.
func (a *Assignment) TheoreticalMaxCandidates() int {
	return a.beacons.Len() * len(a.measurements)
}

// CandidateFraction returns CandidateCount as a fraction of the
// theoretical maximum. Diagnostic only; zero when there are no possible
// pairs.
func (a *Assignment) CandidateFraction() float64 {
	a.checkPopulated("CandidateFraction")
	max := a.TheoreticalMaxCandidates()
	if max == 0 {
		return 0
	}
	return float64(len(a.h)) / float64(max)
}
