package domain

import (
	"errors"
	"time"
)

var (
	// ErrInvalidPair is returned when an activity is paired with itself.
	ErrInvalidPair = errors.New("activity cannot be paired with itself")
	// ErrDuplicatePairExists indicates a merge request already covers the ordered pair.
	ErrDuplicatePairExists = errors.New("merge request already exists for activity pair")
	// ErrNotFoundOrResolved collapses missing, foreign-owned, and already-resolved
	// requests into one outcome so callers cannot probe other users' data.
	ErrNotFoundOrResolved = errors.New("merge request not found or already resolved")
	// ErrScoreOutOfRange signals a scoring bug; it must never be persisted.
	ErrScoreOutOfRange = errors.New("confidence score outside [0,100]")
	// ErrActivityNotFound is returned when the activity store has no such record.
	ErrActivityNotFound = errors.New("activity not found")
)

// Status is the closed lifecycle state of a merge request.
type Status string

const (
	StatusPending    Status = "pending"
	StatusApproved   Status = "approved"
	StatusRejected   Status = "rejected"
	StatusAutoMerged Status = "auto_merged"
)

// Terminal reports whether no further transition exists out of the status.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusAutoMerged
}

// Resolver identities recorded on leaving pending.
const (
	ResolvedByUser = "user"
	ResolvedByAuto = "auto"
)

// MergeReason is the immutable record of the signals behind a confidence
// score. It is persisted as-is so every merge decision stays auditable.
type MergeReason struct {
	TimeDiffMinutes float64  `json:"time_diff_minutes"`
	DurationDiffPct float64  `json:"duration_diff_pct"`
	DistanceDiffPct float64  `json:"distance_diff_pct"`
	SameType        bool     `json:"same_type"`
	SameDate        bool     `json:"same_date"`
	MatchedSignals  []string `json:"matched_signals"`
}

// MergeRequest tracks a candidate duplicate pairing through its resolution.
type MergeRequest struct {
	ID                  string
	TenantID            string
	UserID              string
	PrimaryActivityID   string
	DuplicateActivityID string
	ConfidenceScore     int
	Status              Status
	MergeReason         MergeReason
	CreatedAt           time.Time
	ResolvedAt          *time.Time
	ResolvedBy          *string
}

// Validate enforces the creation invariants: distinct activities and a
// confidence score inside [0,100].
func (r MergeRequest) Validate() error {
	if r.PrimaryActivityID == r.DuplicateActivityID {
		return ErrInvalidPair
	}
	if r.ConfidenceScore < 0 || r.ConfidenceScore > 100 {
		return ErrScoreOutOfRange
	}
	return nil
}
