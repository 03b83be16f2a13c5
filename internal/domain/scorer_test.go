package domain

import (
	"testing"
	"time"
)

func TestScoreAutoMergeScenario(t *testing.T) {
	base := time.Date(2025, time.June, 1, 8, 0, 0, 0, time.UTC)
	a := activityAt("a", "run", base, 30, 5.0)
	b := activityAt("b", "run", base.Add(3*time.Minute), 31, 5.05)

	cfg := DefaultScoringConfig()
	score, reason, err := cfg.Score(ExtractSignals(a, b, time.UTC))
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if score != 100 {
		t.Fatalf("expected score 100 got %d", score)
	}
	if cfg.Classify(score) != TierAutoMerge {
		t.Fatalf("expected auto-merge tier got %v", cfg.Classify(score))
	}
	if len(reason.MatchedSignals) != 4 {
		t.Fatalf("expected 4 matched signals got %v", reason.MatchedSignals)
	}
}

func TestScoreIgnoreScenario(t *testing.T) {
	base := time.Date(2025, time.June, 1, 8, 0, 0, 0, time.UTC)
	a := activityAt("a", "walk", base, 20, 2.0)
	b := activityAt("b", "run", base.Add(90*time.Minute), 45, 10.0)

	cfg := DefaultScoringConfig()
	score, reason, err := cfg.Score(ExtractSignals(a, b, time.UTC))
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if score != 0 {
		t.Fatalf("expected score 0 got %d", score)
	}
	if cfg.Classify(score) != TierIgnore {
		t.Fatalf("expected ignore tier got %v", cfg.Classify(score))
	}
	if len(reason.MatchedSignals) != 0 {
		t.Fatalf("expected no matched signals got %v", reason.MatchedSignals)
	}
}

func TestScoreProposeScenario(t *testing.T) {
	// Time and duration inside tolerance, distance well outside, types differ:
	// 40 + 25 = 65, the propose band.
	base := time.Date(2025, time.June, 1, 8, 0, 0, 0, time.UTC)
	a := activityAt("a", "run", base, 50, 10.0)
	b := activityAt("b", "ride", base.Add(8*time.Minute), 52, 8.8)

	cfg := DefaultScoringConfig()
	score, _, err := cfg.Score(ExtractSignals(a, b, time.UTC))
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if score != 65 {
		t.Fatalf("expected score 65 got %d", score)
	}
	if cfg.Classify(score) != TierPropose {
		t.Fatalf("expected propose tier got %v", cfg.Classify(score))
	}
}

func TestScoreSymmetricAndBounded(t *testing.T) {
	base := time.Date(2025, time.June, 1, 6, 0, 0, 0, time.UTC)
	cfg := DefaultScoringConfig()

	types := []string{"run", "ride"}
	offsets := []time.Duration{0, 4 * time.Minute, 30 * time.Minute, 5 * time.Hour}
	durations := []int{0, 30, 31, 60}
	distances := []float64{0, 5.0, 5.2, 12.0}

	for _, typ := range types {
		for _, offset := range offsets {
			for _, duration := range durations {
				for _, distance := range distances {
					a := activityAt("a", "run", base, 30, 5.0)
					b := activityAt("b", typ, base.Add(offset), duration, distance)

					ab, _, err := cfg.Score(ExtractSignals(a, b, time.UTC))
					if err != nil {
						t.Fatalf("score(a,b): %v", err)
					}
					ba, _, err := cfg.Score(ExtractSignals(b, a, time.UTC))
					if err != nil {
						t.Fatalf("score(b,a): %v", err)
					}
					if ab != ba {
						t.Fatalf("score not symmetric: %d vs %d", ab, ba)
					}
					if ab < 0 || ab > 100 {
						t.Fatalf("score out of range: %d", ab)
					}
				}
			}
		}
	}
}

func TestScoreCapsAtHundred(t *testing.T) {
	cfg := DefaultScoringConfig()
	cfg.TypePoints = 50 // push the additive total past 100

	base := time.Date(2025, time.June, 1, 8, 0, 0, 0, time.UTC)
	a := activityAt("a", "run", base, 30, 5.0)
	b := activityAt("b", "run", base, 30, 5.0)

	score, _, err := cfg.Score(ExtractSignals(a, b, time.UTC))
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if score != 100 {
		t.Fatalf("expected capped score 100 got %d", score)
	}
}

func TestClassifyUsesConfiguredThresholds(t *testing.T) {
	cfg := DefaultScoringConfig()
	cfg.ProposalThreshold = 40
	cfg.AutoMergeThreshold = 80

	cases := []struct {
		score int
		want  Tier
	}{
		{0, TierIgnore},
		{39, TierIgnore},
		{40, TierPropose},
		{79, TierPropose},
		{80, TierAutoMerge},
		{100, TierAutoMerge},
	}
	for _, tc := range cases {
		if got := cfg.Classify(tc.score); got != tc.want {
			t.Fatalf("classify(%d) = %v, want %v", tc.score, got, tc.want)
		}
	}
}

func TestValidateRejectsSelfPair(t *testing.T) {
	req := MergeRequest{
		PrimaryActivityID:   "act-1",
		DuplicateActivityID: "act-1",
		ConfidenceScore:     80,
	}
	if err := req.Validate(); err != ErrInvalidPair {
		t.Fatalf("expected ErrInvalidPair got %v", err)
	}
}

func TestValidateRejectsOutOfRangeScore(t *testing.T) {
	req := MergeRequest{
		PrimaryActivityID:   "act-1",
		DuplicateActivityID: "act-2",
		ConfidenceScore:     101,
	}
	if err := req.Validate(); err != ErrScoreOutOfRange {
		t.Fatalf("expected ErrScoreOutOfRange got %v", err)
	}
}
