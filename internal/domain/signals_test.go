package domain

import (
	"math"
	"testing"
	"time"
)

func activityAt(id, activityType string, startedAt time.Time, durationMin int, distanceKm float64) Activity {
	return Activity{
		ID:           id,
		TenantID:     "tenant-1",
		UserID:       "user-1",
		ActivityType: activityType,
		StartedAt:    startedAt,
		DurationMin:  durationMin,
		DistanceKm:   distanceKm,
		CreatedAt:    startedAt,
	}
}

func TestExtractSignalsSymmetry(t *testing.T) {
	base := time.Date(2025, time.June, 1, 8, 0, 0, 0, time.UTC)
	pairs := [][2]Activity{
		{activityAt("a", "run", base, 30, 5.0), activityAt("b", "run", base.Add(3*time.Minute), 31, 5.05)},
		{activityAt("a", "walk", base, 20, 2.0), activityAt("b", "run", base.Add(90*time.Minute), 45, 10.0)},
		{activityAt("a", "yoga", base, 60, 0), activityAt("b", "yoga", base.Add(5*time.Minute), 60, 0)},
		{activityAt("a", "ride", base, 90, 40.0), activityAt("b", "run", base.Add(26*time.Hour), 30, 5.0)},
	}

	for _, pair := range pairs {
		ab := ExtractSignals(pair[0], pair[1], time.UTC)
		ba := ExtractSignals(pair[1], pair[0], time.UTC)
		if ab != ba {
			t.Fatalf("signals not symmetric: %+v vs %+v", ab, ba)
		}
	}
}

func TestExtractSignalsComputesDiffs(t *testing.T) {
	base := time.Date(2025, time.June, 1, 8, 0, 0, 0, time.UTC)
	a := activityAt("a", "run", base, 30, 5.0)
	b := activityAt("b", "run", base.Add(3*time.Minute), 31, 5.05)

	signals := ExtractSignals(a, b, time.UTC)

	if signals.TimeDiffMinutes != 3 {
		t.Fatalf("expected time diff 3 got %f", signals.TimeDiffMinutes)
	}
	if math.Abs(signals.DurationDiffPct-100.0/31.0) > 1e-9 {
		t.Fatalf("unexpected duration diff %f", signals.DurationDiffPct)
	}
	if !signals.DistanceComparable {
		t.Fatal("expected distance to be comparable")
	}
	if math.Abs(signals.DistanceDiffPct-0.05/5.05*100) > 1e-9 {
		t.Fatalf("unexpected distance diff %f", signals.DistanceDiffPct)
	}
	if !signals.SameType || !signals.SameDate {
		t.Fatalf("expected same type and date: %+v", signals)
	}
}

func TestExtractSignalsSkipsDistanceWhenAbsent(t *testing.T) {
	base := time.Date(2025, time.June, 1, 18, 0, 0, 0, time.UTC)
	a := activityAt("a", "strength", base, 45, 0)
	b := activityAt("b", "strength", base.Add(2*time.Minute), 45, 0)

	signals := ExtractSignals(a, b, time.UTC)

	if signals.DistanceComparable {
		t.Fatal("distance should not be comparable when neither activity has one")
	}
	if signals.DistanceDiffPct != 0 {
		t.Fatalf("expected zero distance diff got %f", signals.DistanceDiffPct)
	}
}

func TestExtractSignalsZeroDurations(t *testing.T) {
	base := time.Date(2025, time.June, 1, 18, 0, 0, 0, time.UTC)
	a := activityAt("a", "walk", base, 0, 1.0)
	b := activityAt("b", "walk", base, 0, 1.0)

	signals := ExtractSignals(a, b, time.UTC)
	if signals.DurationDiffPct != 0 {
		t.Fatalf("expected zero duration diff got %f", signals.DurationDiffPct)
	}
}

func TestExtractSignalsSameDateUsesReferenceTimezone(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}

	// 23:30 UTC and 00:15 UTC next day straddle midnight in UTC but share a
	// calendar date in New York.
	a := activityAt("a", "run", time.Date(2025, time.June, 1, 23, 30, 0, 0, time.UTC), 30, 5)
	b := activityAt("b", "run", time.Date(2025, time.June, 2, 0, 15, 0, 0, time.UTC), 30, 5)

	if ExtractSignals(a, b, time.UTC).SameDate {
		t.Fatal("expected different dates in UTC")
	}
	if !ExtractSignals(a, b, ny).SameDate {
		t.Fatal("expected same date in America/New_York")
	}
}
