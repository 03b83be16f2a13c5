package domain

// Signal names recorded in MergeReason.MatchedSignals.
const (
	SignalTimeProximity = "time_proximity"
	SignalDurationMatch = "duration_match"
	SignalDistanceMatch = "distance_match"
	SignalTypeMatch     = "type_match"
)

// Tier is the decision bucket derived from a confidence score.
type Tier int

const (
	TierIgnore Tier = iota
	TierPropose
	TierAutoMerge
)

// String returns the tier name for logs and metrics labels.
func (t Tier) String() string {
	switch t {
	case TierPropose:
		return "propose"
	case TierAutoMerge:
		return "auto_merge"
	default:
		return "ignore"
	}
}

// ScoringConfig holds the per-signal tolerances, point awards, and decision
// thresholds. Values come from configuration so thresholds can be tuned
// without touching scoring logic.
type ScoringConfig struct {
	TimeToleranceMinutes float64
	DurationTolerancePct float64
	DistanceTolerancePct float64
	TimePoints           int
	DurationPoints       int
	DistancePoints       int
	TypePoints           int
	ProposalThreshold    int
	AutoMergeThreshold   int
}

// DefaultScoringConfig returns the production tuning.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		TimeToleranceMinutes: 10,
		DurationTolerancePct: 5,
		DistanceTolerancePct: 5,
		TimePoints:           40,
		DurationPoints:       25,
		DistancePoints:       25,
		TypePoints:           10,
		ProposalThreshold:    50,
		AutoMergeThreshold:   90,
	}
}

// Score turns a signal set into a confidence score and the audit reason.
// Scoring is additive per matched signal and capped at 100. A result outside
// [0,100] indicates a configuration or logic defect and fails the detection
// step rather than producing a malformed request.
func (c ScoringConfig) Score(signals Signals) (int, MergeReason, error) {
	score := 0
	matched := make([]string, 0, 4)

	if signals.TimeDiffMinutes <= c.TimeToleranceMinutes {
		score += c.TimePoints
		matched = append(matched, SignalTimeProximity)
	}
	if signals.DurationDiffPct <= c.DurationTolerancePct {
		score += c.DurationPoints
		matched = append(matched, SignalDurationMatch)
	}
	if signals.DistanceComparable && signals.DistanceDiffPct <= c.DistanceTolerancePct {
		score += c.DistancePoints
		matched = append(matched, SignalDistanceMatch)
	}
	if signals.SameType {
		score += c.TypePoints
		matched = append(matched, SignalTypeMatch)
	}

	if score > 100 {
		score = 100
	}
	if score < 0 {
		return 0, MergeReason{}, ErrScoreOutOfRange
	}

	reason := MergeReason{
		TimeDiffMinutes: signals.TimeDiffMinutes,
		DurationDiffPct: signals.DurationDiffPct,
		DistanceDiffPct: signals.DistanceDiffPct,
		SameType:        signals.SameType,
		SameDate:        signals.SameDate,
		MatchedSignals:  matched,
	}
	return score, reason, nil
}

// Classify maps a score to its decision tier.
func (c ScoringConfig) Classify(score int) Tier {
	switch {
	case score >= c.AutoMergeThreshold:
		return TierAutoMerge
	case score >= c.ProposalThreshold:
		return TierPropose
	default:
		return TierIgnore
	}
}
