package domain

import "time"

// Activity is the workout record owned by the activity store. This service
// reads it to score candidate pairs; the duplicate flags are written
// exclusively by the merge executor inside the repository transaction.
type Activity struct {
	ID           string
	TenantID     string
	UserID       string
	ActivityType string
	StartedAt    time.Time
	DurationMin  int
	DistanceKm   float64
	IsDuplicate  bool
	DuplicateOf  *string
	CreatedAt    time.Time
}
