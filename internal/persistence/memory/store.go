// Package memory provides an in-memory store for local development and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"example.com/dedup/internal/domain"
)

// Store keeps activities and merge requests in maps guarded by one mutex, so
// check-and-transition operations are atomic the same way the conditional
// updates in the postgres repository are.
type Store struct {
	mu         sync.RWMutex
	activities map[string]domain.Activity
	requests   map[string]domain.MergeRequest
	pairs      map[string]string // ordered pair key -> request id
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{
		activities: make(map[string]domain.Activity),
		requests:   make(map[string]domain.MergeRequest),
		pairs:      make(map[string]string),
	}
}

func pairKey(tenantID, userID, primaryID, duplicateID string) string {
	return fmt.Sprintf("%s|%s|%s|%s", tenantID, userID, primaryID, duplicateID)
}

// UpsertActivity stores the activity, preserving previously applied duplicate
// flags the way the postgres projection does.
func (s *Store) UpsertActivity(ctx context.Context, activity domain.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.activities[activity.ID]; ok {
		activity.IsDuplicate = existing.IsDuplicate
		activity.DuplicateOf = existing.DuplicateOf
	}
	s.activities[activity.ID] = activity
	return nil
}

// GetActivity implements domain.ActivityStore.
func (s *Store) GetActivity(ctx context.Context, tenantID, activityID string) (*domain.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	activity, ok := s.activities[activityID]
	if !ok || activity.TenantID != tenantID {
		return nil, nil
	}
	return &activity, nil
}

// ListCandidates implements domain.ActivityStore.
func (s *Store) ListCandidates(ctx context.Context, tenantID, userID string, around time.Time, window time.Duration, excludeID string) ([]domain.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	from, to := around.Add(-window), around.Add(window)
	var results []domain.Activity
	for _, activity := range s.activities {
		if activity.TenantID != tenantID || activity.UserID != userID {
			continue
		}
		if activity.ID == excludeID || activity.IsDuplicate {
			continue
		}
		if activity.StartedAt.Before(from) || activity.StartedAt.After(to) {
			continue
		}
		results = append(results, activity)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].StartedAt.Equal(results[j].StartedAt) {
			return results[i].ID < results[j].ID
		}
		return results[i].StartedAt.Before(results[j].StartedAt)
	})
	return results, nil
}

// CreatePending implements domain.MergeRequestRepository.
func (s *Store) CreatePending(ctx context.Context, req domain.MergeRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(req)
}

// CreateAutoMerged inserts the resolved request and flags the duplicate
// activity under the same lock.
func (s *Store) CreateAutoMerged(ctx context.Context, req domain.MergeRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.insertLocked(req); err != nil {
		return err
	}
	s.flagDuplicateLocked(req.PrimaryActivityID, req.DuplicateActivityID)
	return nil
}

func (s *Store) insertLocked(req domain.MergeRequest) error {
	key := pairKey(req.TenantID, req.UserID, req.PrimaryActivityID, req.DuplicateActivityID)
	if _, exists := s.pairs[key]; exists {
		return domain.ErrDuplicatePairExists
	}
	s.pairs[key] = req.ID
	s.requests[req.ID] = req
	return nil
}

func (s *Store) flagDuplicateLocked(primaryID, duplicateID string) {
	if activity, ok := s.activities[duplicateID]; ok {
		activity.IsDuplicate = true
		activity.DuplicateOf = &primaryID
		s.activities[duplicateID] = activity
	}
}

// Approve implements the conditional pending->approved transition.
func (s *Store) Approve(ctx context.Context, tenantID, requestID, userID string) (*domain.MergeRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, err := s.resolveLocked(tenantID, requestID, userID, domain.StatusApproved)
	if err != nil {
		return nil, err
	}
	s.flagDuplicateLocked(req.PrimaryActivityID, req.DuplicateActivityID)
	return req, nil
}

// Reject implements the conditional pending->rejected transition.
func (s *Store) Reject(ctx context.Context, tenantID, requestID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.resolveLocked(tenantID, requestID, userID, domain.StatusRejected)
	return err
}

// resolveLocked applies the transition only when the request still exists,
// belongs to the user, and is pending. Anything else is the collapsed
// not-found-or-resolved outcome.
func (s *Store) resolveLocked(tenantID, requestID, userID string, target domain.Status) (*domain.MergeRequest, error) {
	req, ok := s.requests[requestID]
	if !ok || req.TenantID != tenantID || req.UserID != userID || req.Status != domain.StatusPending {
		return nil, domain.ErrNotFoundOrResolved
	}

	now := time.Now().UTC()
	resolvedBy := domain.ResolvedByUser
	req.Status = target
	req.ResolvedAt = &now
	req.ResolvedBy = &resolvedBy
	s.requests[requestID] = req
	return &req, nil
}

// PendingCount implements domain.MergeRequestRepository.
func (s *Store) PendingCount(ctx context.Context, tenantID, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, req := range s.requests {
		if req.TenantID == tenantID && req.UserID == userID && req.Status == domain.StatusPending {
			count++
		}
	}
	return count, nil
}

// ListPending implements domain.MergeRequestRepository.
func (s *Store) ListPending(ctx context.Context, tenantID, userID string, limit int) ([]domain.MergeRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]domain.MergeRequest, 0)
	for _, req := range s.requests {
		if req.TenantID == tenantID && req.UserID == userID && req.Status == domain.StatusPending {
			results = append(results, req)
		}
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].CreatedAt.Equal(results[j].CreatedAt) {
			return results[i].ID > results[j].ID
		}
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// GetRequest returns a request by id regardless of status. Test helper.
func (s *Store) GetRequest(requestID string) (*domain.MergeRequest, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req, ok := s.requests[requestID]
	if !ok {
		return nil, false
	}
	return &req, true
}
