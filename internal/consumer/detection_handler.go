package consumer

import (
	"context"
	"encoding/json"
	"log"

	"example.com/dedup/internal/domain"
	"example.com/dedup/internal/events"
)

// Activity event types that trigger a detection run.
const (
	eventActivityCreated = "activity.created"
	eventActivityUpdated = "activity.updated"
)

// ActivityProjection maintains the local activity read model.
type ActivityProjection interface {
	UpsertActivity(ctx context.Context, activity domain.Activity) error
}

// Detector runs duplicate detection for a persisted activity.
type Detector interface {
	DetectCandidates(ctx context.Context, tenantID, activityID string) ([]string, error)
}

// DetectionHandler projects consumed activity events into the read model and
// kicks off candidate detection for each one.
type DetectionHandler struct {
	projection ActivityProjection
	detector   Detector
	logger     *log.Logger
}

// NewDetectionHandler constructs the handler.
func NewDetectionHandler(projection ActivityProjection, detector Detector) *DetectionHandler {
	return &DetectionHandler{
		projection: projection,
		detector:   detector,
		logger:     log.New(log.Writer(), "[detection] ", log.LstdFlags),
	}
}

// Handle processes one decoded activity event. Events of other types are
// acknowledged without action so the topic can carry a wider catalog.
func (h *DetectionHandler) Handle(ctx context.Context, msg Message) error {
	if msg.EventType != eventActivityCreated && msg.EventType != eventActivityUpdated {
		return nil
	}

	var payload events.ActivityUpserted
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return err
	}

	activity := domain.Activity{
		ID:           payload.ActivityID,
		TenantID:     payload.TenantID,
		UserID:       payload.UserID,
		ActivityType: payload.ActivityType,
		StartedAt:    payload.StartedAt,
		DurationMin:  payload.DurationMin,
		DistanceKm:   payload.DistanceKm,
		CreatedAt:    payload.CreatedAt,
	}
	if err := h.projection.UpsertActivity(ctx, activity); err != nil {
		return err
	}

	created, err := h.detector.DetectCandidates(ctx, payload.TenantID, payload.ActivityID)
	if err != nil {
		return err
	}
	if len(created) > 0 {
		h.logger.Printf("activity %s produced %d merge request(s)", payload.ActivityID, len(created))
	}
	return nil
}
