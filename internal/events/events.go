// Package events defines the event payloads exchanged with collaborating services.
package events

import "time"

// ActivityUpserted is the message the activity store emits after persisting a
// new or updated activity. Consuming it is the detection pipeline's trigger.
type ActivityUpserted struct {
	ActivityID   string    `json:"activity_id"`
	TenantID     string    `json:"tenant_id"`
	UserID       string    `json:"user_id"`
	ActivityType string    `json:"activity_type"`
	StartedAt    time.Time `json:"started_at"`
	DurationMin  int       `json:"duration_min"`
	DistanceKm   float64   `json:"distance_km"`
	CreatedAt    time.Time `json:"created_at"`
}

// MergeRequestCreated announces a new pairing awaiting review so the
// notification layer can surface it.
type MergeRequestCreated struct {
	RequestID           string    `json:"request_id"`
	TenantID            string    `json:"tenant_id"`
	UserID              string    `json:"user_id"`
	PrimaryActivityID   string    `json:"primary_activity_id"`
	DuplicateActivityID string    `json:"duplicate_activity_id"`
	ConfidenceScore     int       `json:"confidence_score"`
	Status              string    `json:"status"`
	CreatedAt           time.Time `json:"created_at"`
}

// MergeRequestResolved records a request leaving pending, whether by a
// reviewer or by the auto-merge path.
type MergeRequestResolved struct {
	RequestID           string    `json:"request_id"`
	TenantID            string    `json:"tenant_id"`
	UserID              string    `json:"user_id"`
	PrimaryActivityID   string    `json:"primary_activity_id"`
	DuplicateActivityID string    `json:"duplicate_activity_id"`
	Status              string    `json:"status"`
	ResolvedBy          string    `json:"resolved_by"`
	OccurredAt          time.Time `json:"occurred_at"`
}
