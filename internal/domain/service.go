// Package domain defines the business logic for the dedup service.
package domain

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"example.com/dedup/internal/observability"
)

// ActivityStore reads the collaborator-owned activity records this service
// scores against each other.
type ActivityStore interface {
	GetActivity(ctx context.Context, tenantID, activityID string) (*Activity, error)
	// ListCandidates returns non-duplicate activities of the same user whose
	// start time falls within the window around the given instant, excluding
	// the activity itself. Implementations must serve this from an index on
	// (tenant, user, started_at); scanning full history is not acceptable.
	ListCandidates(ctx context.Context, tenantID, userID string, around time.Time, window time.Duration, excludeID string) ([]Activity, error)
}

// MergeRequestRepository persists merge requests and applies the atomic
// state transitions. Approve and Reject are conditional writes: they succeed
// only if the row still belongs to the user and is still pending, and report
// ErrNotFoundOrResolved otherwise.
type MergeRequestRepository interface {
	CreatePending(ctx context.Context, req MergeRequest) error
	// CreateAutoMerged inserts an already-resolved request and flags the
	// duplicate activity in the same transaction.
	CreateAutoMerged(ctx context.Context, req MergeRequest) error
	Approve(ctx context.Context, tenantID, requestID, userID string) (*MergeRequest, error)
	Reject(ctx context.Context, tenantID, requestID, userID string) error
	PendingCount(ctx context.Context, tenantID, userID string) (int, error)
	ListPending(ctx context.Context, tenantID, userID string, limit int) ([]MergeRequest, error)
}

// Service orchestrates duplicate detection and the review workflow.
type Service struct {
	activities ActivityStore
	requests   MergeRequestRepository
	scoring    ScoringConfig
	window     time.Duration
	location   *time.Location
}

// NewService constructs a Service.
func NewService(activities ActivityStore, requests MergeRequestRepository, scoring ScoringConfig, window time.Duration, location *time.Location) *Service {
	if location == nil {
		location = time.UTC
	}
	return &Service{
		activities: activities,
		requests:   requests,
		scoring:    scoring,
		window:     window,
		location:   location,
	}
}

// DetectCandidates scores the given activity against its neighbours and
// creates a merge request per qualifying pair. Pairs already covered by an
// existing request are skipped, so re-running detection after an update is
// idempotent. Returns the IDs of the requests created in this run.
func (s *Service) DetectCandidates(ctx context.Context, tenantID, activityID string) ([]string, error) {
	activity, err := s.activities.GetActivity(ctx, tenantID, activityID)
	if err != nil {
		return nil, err
	}
	if activity == nil {
		return nil, ErrActivityNotFound
	}
	if activity.IsDuplicate {
		// Already merged away; never a primary or duplicate-to-be again.
		return nil, nil
	}

	candidates, err := s.activities.ListCandidates(ctx, tenantID, activity.UserID, activity.StartedAt, s.window, activity.ID)
	if err != nil {
		return nil, err
	}

	created := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		if candidate.IsDuplicate || candidate.ID == activity.ID {
			continue
		}

		primary, duplicate := orderPair(candidate, *activity)
		signals := ExtractSignals(primary, duplicate, s.location)
		score, reason, err := s.scoring.Score(signals)
		if err != nil {
			return created, err
		}

		tier := s.scoring.Classify(score)
		observability.RecordPairScored(tier.String(), score)
		if tier == TierIgnore {
			continue
		}

		req := MergeRequest{
			ID:                  uuid.NewString(),
			TenantID:            tenantID,
			UserID:              activity.UserID,
			PrimaryActivityID:   primary.ID,
			DuplicateActivityID: duplicate.ID,
			ConfidenceScore:     score,
			Status:              StatusPending,
			MergeReason:         reason,
			CreatedAt:           time.Now().UTC(),
		}
		if err := req.Validate(); err != nil {
			return created, err
		}

		if tier == TierAutoMerge {
			resolvedAt := req.CreatedAt
			resolvedBy := ResolvedByAuto
			req.Status = StatusAutoMerged
			req.ResolvedAt = &resolvedAt
			req.ResolvedBy = &resolvedBy
			err = s.requests.CreateAutoMerged(ctx, req)
		} else {
			err = s.requests.CreatePending(ctx, req)
		}
		if err != nil {
			if errors.Is(err, ErrDuplicatePairExists) {
				continue
			}
			return created, err
		}
		created = append(created, req.ID)
	}

	return created, nil
}

// orderPair picks the primary deterministically: the activity created first
// wins, with the ID as tie-breaker. Detection therefore always produces the
// same ordered pair regardless of which side triggered it.
func orderPair(a, b Activity) (primary, duplicate Activity) {
	pair := []Activity{a, b}
	sort.Slice(pair, func(i, j int) bool {
		if pair[i].CreatedAt.Equal(pair[j].CreatedAt) {
			return pair[i].ID < pair[j].ID
		}
		return pair[i].CreatedAt.Before(pair[j].CreatedAt)
	})
	return pair[0], pair[1]
}

// Approve transitions a pending request to approved and applies the merge.
// The repository performs the check-and-transition as one conditional write.
func (s *Service) Approve(ctx context.Context, tenantID, requestID, userID string) (*MergeRequest, error) {
	return s.requests.Approve(ctx, tenantID, requestID, userID)
}

// Reject transitions a pending request to rejected. No activity is mutated.
func (s *Service) Reject(ctx context.Context, tenantID, requestID, userID string) error {
	return s.requests.Reject(ctx, tenantID, requestID, userID)
}

// PendingCount reports how many requests await review for the user.
func (s *Service) PendingCount(ctx context.Context, tenantID, userID string) (int, error) {
	return s.requests.PendingCount(ctx, tenantID, userID)
}

// ListPending returns the open review queue for the user, newest first.
func (s *Service) ListPending(ctx context.Context, tenantID, userID string, limit int) ([]MergeRequest, error) {
	return s.requests.ListPending(ctx, tenantID, userID, limit)
}
