// Package postgres provides pgx-backed persistence for merge requests and
// the activity read model.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/dedup/internal/domain"
	"example.com/dedup/internal/events"
	"example.com/dedup/internal/observability"
)

const uniqueViolation = "23505"

// Repository implements domain.ActivityStore and domain.MergeRequestRepository
// on top of a shared Postgres pool. Every mutation runs inside a single
// transaction so a merge request transition and its activity mutation are
// applied atomically or not at all.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const activityColumns = `activity_id, tenant_id, user_id, activity_type, started_at, duration_min, distance_km, is_duplicate, duplicate_of, created_at`

// GetActivity fetches a single activity within the tenant scope.
func (r *Repository) GetActivity(ctx context.Context, tenantID, activityID string) (*domain.Activity, error) {
	query := `SELECT ` + activityColumns + ` FROM activities WHERE tenant_id=$1 AND activity_id=$2`

	tx, release, err := r.beginTenantTx(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	defer release()

	row := tx.QueryRow(ctx, query, tenantID, activityID)
	activity, err := scanActivity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, tx.Commit(ctx)
		}
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return activity, nil
}

// ListCandidates returns non-duplicate activities for the user whose start
// time lies within the window around the given instant. The query is served
// by the (tenant_id, user_id, started_at) index; detection cost stays bounded
// by the window instead of growing with history.
func (r *Repository) ListCandidates(ctx context.Context, tenantID, userID string, around time.Time, window time.Duration, excludeID string) ([]domain.Activity, error) {
	query := `SELECT ` + activityColumns + `
        FROM activities
        WHERE tenant_id=$1 AND user_id=$2 AND activity_id <> $3
          AND is_duplicate = FALSE
          AND started_at BETWEEN $4 AND $5
        ORDER BY started_at, activity_id`

	tx, release, err := r.beginTenantTx(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	defer release()

	rows, err := tx.Query(ctx, query, tenantID, userID, excludeID, around.Add(-window), around.Add(window))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.Activity
	for rows.Next() {
		activity, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *activity)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return results, nil
}

// UpsertActivity maintains the activity read model from consumed events. The
// dedup flags are deliberately left out of the update set; only the merge
// executor writes them.
func (r *Repository) UpsertActivity(ctx context.Context, activity domain.Activity) error {
	tx, release, err := r.beginTenantTx(ctx, activity.TenantID)
	if err != nil {
		return err
	}
	defer release()

	const stmt = `INSERT INTO activities (activity_id, tenant_id, user_id, activity_type, started_at, duration_min, distance_km, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        ON CONFLICT (activity_id) DO UPDATE SET
            activity_type = EXCLUDED.activity_type,
            started_at    = EXCLUDED.started_at,
            duration_min  = EXCLUDED.duration_min,
            distance_km   = EXCLUDED.distance_km`

	if _, err := tx.Exec(ctx, stmt,
		activity.ID,
		activity.TenantID,
		activity.UserID,
		activity.ActivityType,
		activity.StartedAt,
		activity.DurationMin,
		activity.DistanceKm,
		activity.CreatedAt,
	); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// CreatePending inserts a pending merge request and records the created event
// on the outbox in the same transaction. A unique violation on the ordered
// pair maps to domain.ErrDuplicatePairExists.
func (r *Repository) CreatePending(ctx context.Context, req domain.MergeRequest) error {
	tx, release, err := r.beginTenantTx(ctx, req.TenantID)
	if err != nil {
		return err
	}
	defer release()

	if err := insertRequest(ctx, tx, req); err != nil {
		return mapUniqueViolation(err)
	}

	if err := insertOutbox(ctx, tx, req, eventMergeRequestCreated, events.MergeRequestCreated{
		RequestID:           req.ID,
		TenantID:            req.TenantID,
		UserID:              req.UserID,
		PrimaryActivityID:   req.PrimaryActivityID,
		DuplicateActivityID: req.DuplicateActivityID,
		ConfidenceScore:     req.ConfidenceScore,
		Status:              string(req.Status),
		CreatedAt:           req.CreatedAt,
	}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	observability.RecordRequestCreated(string(req.Status))
	return nil
}

// CreateAutoMerged inserts an already-resolved request and applies the merge
// to the duplicate activity, atomically. Used by the auto-merge tier only.
func (r *Repository) CreateAutoMerged(ctx context.Context, req domain.MergeRequest) error {
	tx, release, err := r.beginTenantTx(ctx, req.TenantID)
	if err != nil {
		return err
	}
	defer release()

	if err := insertRequest(ctx, tx, req); err != nil {
		return mapUniqueViolation(err)
	}

	if err := applyMerge(ctx, tx, req.TenantID, req.UserID, req.PrimaryActivityID, req.DuplicateActivityID); err != nil {
		return err
	}

	if err := insertOutbox(ctx, tx, req, eventMergeRequestResolved, resolvedPayload(req)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	observability.RecordRequestCreated(string(req.Status))
	observability.RecordResolution(string(req.Status))
	return nil
}

// Approve performs the pending->approved transition as a conditional update
// and applies the merge in the same transaction. Zero matched rows means the
// request is absent, foreign, or no longer pending; all three surface as
// domain.ErrNotFoundOrResolved.
func (r *Repository) Approve(ctx context.Context, tenantID, requestID, userID string) (*domain.MergeRequest, error) {
	tx, release, err := r.beginTenantTx(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	defer release()

	req, err := resolveRequest(ctx, tx, tenantID, requestID, userID, domain.StatusApproved)
	if err != nil {
		return nil, err
	}

	if err := applyMerge(ctx, tx, tenantID, req.UserID, req.PrimaryActivityID, req.DuplicateActivityID); err != nil {
		return nil, err
	}

	if err := insertOutbox(ctx, tx, *req, eventMergeRequestResolved, resolvedPayload(*req)); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	observability.RecordResolution(string(req.Status))
	return req, nil
}

// Reject performs the pending->rejected transition. No activity is touched.
func (r *Repository) Reject(ctx context.Context, tenantID, requestID, userID string) error {
	tx, release, err := r.beginTenantTx(ctx, tenantID)
	if err != nil {
		return err
	}
	defer release()

	req, err := resolveRequest(ctx, tx, tenantID, requestID, userID, domain.StatusRejected)
	if err != nil {
		return err
	}

	if err := insertOutbox(ctx, tx, *req, eventMergeRequestResolved, resolvedPayload(*req)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	observability.RecordResolution(string(req.Status))
	return nil
}

// PendingCount counts open requests for the user.
func (r *Repository) PendingCount(ctx context.Context, tenantID, userID string) (int, error) {
	tx, release, err := r.beginTenantTx(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	defer release()

	var count int
	row := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM merge_requests WHERE tenant_id=$1 AND user_id=$2 AND status=$3`,
		tenantID, userID, domain.StatusPending)
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, tx.Commit(ctx)
}

// ListPending returns the review queue for the user, newest first.
func (r *Repository) ListPending(ctx context.Context, tenantID, userID string, limit int) ([]domain.MergeRequest, error) {
	query := `SELECT request_id, tenant_id, user_id, primary_activity_id, duplicate_activity_id, confidence_score, status, merge_reason, created_at, resolved_at, resolved_by
        FROM merge_requests
        WHERE tenant_id=$1 AND user_id=$2 AND status=$3
        ORDER BY created_at DESC, request_id DESC
        LIMIT $4`

	tx, release, err := r.beginTenantTx(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	defer release()

	rows, err := tx.Query(ctx, query, tenantID, userID, domain.StatusPending, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]domain.MergeRequest, 0, limit)
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *req)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return results, nil
}

// beginTenantTx opens a transaction with the tenant set for row-level
// security. The release func rolls back unless the tx was committed.
func (r *Repository) beginTenantTx(ctx context.Context, tenantID string) (pgx.Tx, func(), error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, nil, err
	}

	tx, err := conn.Begin(ctx)
	if err != nil {
		conn.Release()
		return nil, nil, err
	}

	if _, err := tx.Exec(ctx, "SELECT set_config('app.tenant_id', $1, true)", tenantID); err != nil {
		tx.Rollback(ctx)
		conn.Release()
		return nil, nil, err
	}

	release := func() {
		tx.Rollback(ctx)
		conn.Release()
	}
	return tx, release, nil
}

func insertRequest(ctx context.Context, tx pgx.Tx, req domain.MergeRequest) error {
	reason, err := json.Marshal(req.MergeReason)
	if err != nil {
		return err
	}

	const stmt = `INSERT INTO merge_requests (request_id, tenant_id, user_id, primary_activity_id, duplicate_activity_id, confidence_score, status, merge_reason, created_at, resolved_at, resolved_by)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`

	_, err = tx.Exec(ctx, stmt,
		req.ID,
		req.TenantID,
		req.UserID,
		req.PrimaryActivityID,
		req.DuplicateActivityID,
		req.ConfidenceScore,
		req.Status,
		reason,
		req.CreatedAt,
		req.ResolvedAt,
		req.ResolvedBy,
	)
	return err
}

// resolveRequest is the single conditional write behind approve and reject.
// The status check happens at write time, so two racing resolvers cannot
// both observe pending.
func resolveRequest(ctx context.Context, tx pgx.Tx, tenantID, requestID, userID string, target domain.Status) (*domain.MergeRequest, error) {
	const stmt = `UPDATE merge_requests
        SET status=$1, resolved_at=NOW(), resolved_by=$2
        WHERE tenant_id=$3 AND request_id=$4 AND user_id=$5 AND status=$6
        RETURNING request_id, tenant_id, user_id, primary_activity_id, duplicate_activity_id, confidence_score, status, merge_reason, created_at, resolved_at, resolved_by`

	row := tx.QueryRow(ctx, stmt, target, domain.ResolvedByUser, tenantID, requestID, userID, domain.StatusPending)
	req, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFoundOrResolved
		}
		return nil, err
	}
	return req, nil
}

// applyMerge is the merge executor: it flags exactly the duplicate activity
// and leaves the primary untouched. It runs only inside a transaction that
// also carries the request transition.
func applyMerge(ctx context.Context, tx pgx.Tx, tenantID, userID, primaryID, duplicateID string) error {
	tag, err := tx.Exec(ctx,
		`UPDATE activities SET is_duplicate = TRUE, duplicate_of = $1
          WHERE tenant_id=$2 AND user_id=$3 AND activity_id=$4`,
		primaryID, tenantID, userID, duplicateID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("merge executor: expected 1 activity row, matched %d", tag.RowsAffected())
	}
	return nil
}

func resolvedPayload(req domain.MergeRequest) events.MergeRequestResolved {
	payload := events.MergeRequestResolved{
		RequestID:           req.ID,
		TenantID:            req.TenantID,
		UserID:              req.UserID,
		PrimaryActivityID:   req.PrimaryActivityID,
		DuplicateActivityID: req.DuplicateActivityID,
		Status:              string(req.Status),
	}
	if req.ResolvedBy != nil {
		payload.ResolvedBy = *req.ResolvedBy
	}
	if req.ResolvedAt != nil {
		payload.OccurredAt = *req.ResolvedAt
	}
	return payload
}

func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return domain.ErrDuplicatePairExists
	}
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanActivity(row rowScanner) (*domain.Activity, error) {
	var activity domain.Activity
	if err := row.Scan(
		&activity.ID,
		&activity.TenantID,
		&activity.UserID,
		&activity.ActivityType,
		&activity.StartedAt,
		&activity.DurationMin,
		&activity.DistanceKm,
		&activity.IsDuplicate,
		&activity.DuplicateOf,
		&activity.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &activity, nil
}

func scanRequest(row rowScanner) (*domain.MergeRequest, error) {
	var (
		req    domain.MergeRequest
		reason []byte
	)
	if err := row.Scan(
		&req.ID,
		&req.TenantID,
		&req.UserID,
		&req.PrimaryActivityID,
		&req.DuplicateActivityID,
		&req.ConfidenceScore,
		&req.Status,
		&reason,
		&req.CreatedAt,
		&req.ResolvedAt,
		&req.ResolvedBy,
	); err != nil {
		return nil, err
	}
	if len(reason) > 0 {
		if err := json.Unmarshal(reason, &req.MergeReason); err != nil {
			return nil, err
		}
	}
	return &req, nil
}
