package m_action_event

// Field name constants for the action_events table.
const (
	TableName = "action_events"

	EventID      = "event_id"
	EventType    = "event_type"
	ActionID     = "action_id"
	Payload      = "payload"
	Status       = "status"
	CreatedAt    = "created_at"
	ProcessedAt  = "processed_at"
	RetryCount   = "retry_count"
	ErrorMessage = "error_message"
)

// Columns lists every column in table order.
var Columns = []string{
	EventID, EventType, ActionID, Payload, Status, CreatedAt, ProcessedAt, RetryCount, ErrorMessage,
}

// Event status constants
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)
