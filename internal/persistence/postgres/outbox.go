package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"example.com/dedup/internal/domain"
)

// Event types recorded on the outbox alongside merge request mutations.
const (
	eventMergeRequestCreated  = "merge_request.created"
	eventMergeRequestResolved = "merge_request.resolved"
)

// eventMetadata describes how to route an outbox event.
type eventMetadata struct {
	Topic          string
	SchemaSubject  string
	PartitionKeyFn func(domain.MergeRequest) string
}

var eventCatalog = map[string]eventMetadata{
	eventMergeRequestCreated: {
		Topic:         "merge_request_events",
		SchemaSubject: "merge_request_events-value",
		PartitionKeyFn: func(req domain.MergeRequest) string {
			return fmt.Sprintf("%s:%s", req.TenantID, req.UserID)
		},
	},
	eventMergeRequestResolved: {
		Topic:         "merge_request_resolutions",
		SchemaSubject: "merge_request_resolutions-value",
		PartitionKeyFn: func(req domain.MergeRequest) string {
			return req.ID
		},
	},
}

// insertOutbox records the event in the same transaction as the request
// mutation, so the dispatcher only ever publishes committed state.
func insertOutbox(ctx context.Context, tx pgx.Tx, req domain.MergeRequest, eventType string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	meta, ok := eventCatalog[eventType]
	if !ok {
		return fmt.Errorf("unknown event type: %s", eventType)
	}

	const stmt = `INSERT INTO outbox (tenant_id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`

	_, err = tx.Exec(ctx, stmt,
		req.TenantID,
		"merge_request",
		req.ID,
		eventType,
		meta.Topic,
		meta.SchemaSubject,
		meta.PartitionKeyFn(req),
		body,
		fmt.Sprintf("%s:%s", req.ID, eventType),
	)
	return err
}
