package outbox

const mergeRequestCreatedSchema = `{
  "type": "object",
  "title": "MergeRequestCreated",
  "properties": {
    "request_id": {"type": "string"},
    "tenant_id": {"type": "string"},
    "user_id": {"type": "string"},
    "primary_activity_id": {"type": "string"},
    "duplicate_activity_id": {"type": "string"},
    "confidence_score": {"type": "integer", "minimum": 0, "maximum": 100},
    "status": {"type": "string"},
    "created_at": {"type": "string", "format": "date-time"}
  },
  "required": ["request_id", "tenant_id", "user_id", "primary_activity_id", "duplicate_activity_id", "confidence_score", "status", "created_at"],
  "additionalProperties": false
}`

const mergeRequestResolvedSchema = `{
  "type": "object",
  "title": "MergeRequestResolved",
  "properties": {
    "request_id": {"type": "string"},
    "tenant_id": {"type": "string"},
    "user_id": {"type": "string"},
    "primary_activity_id": {"type": "string"},
    "duplicate_activity_id": {"type": "string"},
    "status": {"type": "string"},
    "resolved_by": {"type": "string"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["request_id", "tenant_id", "user_id", "primary_activity_id", "duplicate_activity_id", "status", "resolved_by", "occurred_at"],
  "additionalProperties": false
}`

var schemaCatalog = map[string]string{
	"merge_request.created":  mergeRequestCreatedSchema,
	"merge_request.resolved": mergeRequestResolvedSchema,
}
