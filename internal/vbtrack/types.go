package vbtrack

// BeaconState represents the lifecycle state of a tracked beacon.
type BeaconState string

const (
	BeaconTentative BeaconState = "tentative" // New beacon, needs confirmation
	BeaconConfirmed BeaconState = "confirmed" // Stable beacon with sufficient history
)

// Measurement is a single bright blob reported by the upstream detector
// for the current frame. It is read-only to the association layer and
// compared by value when a consumed measurement is resubmitted.
type Measurement struct {
	Loc      Point2
	Diameter float32 // Apparent blob diameter in pixels, always positive
}

// BeaconPoint is a single position sample in a beacon's history.
type BeaconPoint struct {
	X         float32
	Y         float32
	Timestamp int64 // Unix nanos
}

// Beacon is one tracked light source. The tracking loop owns beacon
// records; the association layer only reads locations and toggles the
// per-frame flags.
type Beacon struct {
	// Identity
	TrackID    string // Stable track identity minted by the tracking loop
	OneBasedID int    // Persistent beacon identity (1-based); 0 = unidentified
	State      BeaconState

	// Per-frame flags
	Used          bool // Received a measurement this frame
	Misidentified bool // Claimed an identity outside the declared beacon count

	// Kinematics
	Loc Point2

	// Lifecycle counters
	Hits   int // Consecutive successful associations
	Misses int // Consecutive frames without a measurement

	// Timestamps
	FirstUnixNanos int64
	LastUnixNanos  int64

	// Aggregates
	ObservationCount int
	DiameterAvg      float32

	// Position history, capped by the tracker config
	History []BeaconPoint
}

// Identified reports whether the beacon carries a trusted persistent
// identity. A misidentified beacon is treated as unidentified until the
// recognition stage re-labels it.
func (b *Beacon) Identified() bool {
	return b.OneBasedID > 0 && !b.Misidentified
}

// ZeroBasedID returns the zero-based persistent identity. Only meaningful
// when Identified() is true.
func (b *Beacon) ZeroBasedID() int {
	return b.OneBasedID - 1
}

// MarkMisidentified flags the beacon as carrying an untrusted identity.
func (b *Beacon) MarkMisidentified() {
	b.Misidentified = true
}

// ResetUsed clears the per-frame consumption flag.
func (b *Beacon) ResetUsed() {
	b.Used = false
}

// BeaconGroup is the ordered, mutable collection of beacons owned by the
// tracking loop. Iteration order is stable and erasure preserves the
// relative order of survivors.
type BeaconGroup struct {
	items []*Beacon
}

// NewBeaconGroup creates an empty beacon collection.
func NewBeaconGroup() *BeaconGroup {
	return &BeaconGroup{}
}

// Len returns the number of beacons in the group.
func (g *BeaconGroup) Len() int {
	return len(g.items)
}

// At returns the beacon at position i.
func (g *BeaconGroup) At(i int) *Beacon {
	return g.items[i]
}

// Append adds a beacon at the end of the group.
func (g *BeaconGroup) Append(b *Beacon) {
	g.items = append(g.items, b)
}

// RemoveIf erases every beacon for which drop returns true and returns
// the number removed. Survivors keep their relative order. Positional
// indices held by an active Assignment are invalidated by this call.
func (g *BeaconGroup) RemoveIf(drop func(i int, b *Beacon) bool) int {
	kept := g.items[:0]
	removed := 0
	for i, b := range g.items {
		if drop(i, b) {
			removed++
			continue
		}
		kept = append(kept, b)
	}
	// Release trailing references so erased beacons can be collected.
	for i := len(kept); i < len(g.items); i++ {
		g.items[i] = nil
	}
	g.items = kept
	return removed
}
