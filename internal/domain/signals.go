package domain

import (
	"math"
	"time"
)

// Signals is the comparable attribute set extracted from an activity pair.
// DistanceComparable is false when neither activity carries a distance
// (strength work, yoga), in which case the distance signal is skipped.
type Signals struct {
	TimeDiffMinutes    float64
	DurationDiffPct    float64
	DistanceDiffPct    float64
	DistanceComparable bool
	SameType           bool
	SameDate           bool
}

// ExtractSignals computes the signal set for two activities of the same user.
// It is a pure function and symmetric in its two activity arguments. Calendar
// dates are compared in loc, the user's reference time zone (UTC when nil).
func ExtractSignals(a, b Activity, loc *time.Location) Signals {
	if loc == nil {
		loc = time.UTC
	}

	diff := a.StartedAt.Sub(b.StartedAt)
	if diff < 0 {
		diff = -diff
	}

	signals := Signals{
		TimeDiffMinutes: diff.Minutes(),
		DurationDiffPct: relativeDiffPct(float64(a.DurationMin), float64(b.DurationMin)),
		SameType:        a.ActivityType == b.ActivityType,
	}

	if a.DistanceKm > 0 || b.DistanceKm > 0 {
		signals.DistanceComparable = true
		signals.DistanceDiffPct = relativeDiffPct(a.DistanceKm, b.DistanceKm)
	}

	ay, am, ad := a.StartedAt.In(loc).Date()
	by, bm, bd := b.StartedAt.In(loc).Date()
	signals.SameDate = ay == by && am == bm && ad == bd

	return signals
}

// relativeDiffPct is the absolute difference divided by the larger value,
// as a percentage. Zero when both values are zero.
func relativeDiffPct(a, b float64) float64 {
	larger := math.Max(a, b)
	if larger == 0 {
		return 0
	}
	return math.Abs(a-b) / larger * 100
}
