package types

// LatencySample is a single echo-probe observation: either a round-trip
// time in milliseconds or a drop (the probe went unanswered).
type LatencySample struct {
	RTTMs   float64
	Dropped bool
}

// Sample returns a valid measurement.
func Sample(rttMs float64) LatencySample {
	return LatencySample{RTTMs: rttMs}
}

// Drop returns a lost-probe marker.
func Drop() LatencySample {
	return LatencySample{Dropped: true}
}

// SessionResult is the outcome of one transfer session. RateMbps carries
// the single figure the session subprocess printed on completion; OK is
// false when no parseable rate was produced, in which case the session
// contributes zero to the phase total.
type SessionResult struct {
	Host      string
	Direction Direction
	RateMbps  float64
	OK        bool
}
