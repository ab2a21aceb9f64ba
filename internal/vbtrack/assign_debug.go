package vbtrack

// TraceAssignObserver logs every association decision point to the
// trace stream. Install it with Assignment.SetObserver to get a
// human-readable account of each dequeue; it never affects results.
type TraceAssignObserver struct{}

func (TraceAssignObserver) TopInspected(beaconIdx, measIdx int, sqDist float32, beaconFree, measFree bool) {
	var verdict string
	switch {
	case beaconFree && measFree:
		verdict = "both free: keep"
	case beaconFree:
		verdict = "only beacon free: discard"
	case measFree:
		verdict = "only measurement free: discard"
	default:
		verdict = "neither free: discard"
	}
	Tracef("assign top: beacon %d meas %d sqdist %.4f: %s", beaconIdx, measIdx, sqDist, verdict)
}

func (TraceAssignObserver) MatchReturned(beaconIdx, measIdx int, sqDist float32) {
	Tracef("assign match: beacon %d <- meas %d (sqdist %.4f)", beaconIdx, measIdx, sqDist)
}
