package anomaly

import "time"

// Event is an immutable, append-only operational anomaly record.
//
// Anomalies are conditions the pipeline deliberately absorbs instead of
// failing the webhook: saturated counters, reports for unknown messages,
// billing trigger failures. They exist for operator visibility, not control
// flow.
//
// Invariants:
// - Events are never updated or deleted.
// - Recording is best-effort; never block the reconciliation path on it.
//
// Storage recommendation (Postgres):
// - Table anomaly_events with an INSERT-only policy.
// - Optional: partition by time for retention.
type Event struct {
	ID string `json:"id" db:"id"`

	// Type indicates the anomaly category.
	Type EventType `json:"type" db:"type"`

	// Target identifiers (optional, depending on the type).
	CampaignID string `json:"campaign_id,omitempty" db:"campaign_id"`
	MessageID  string `json:"message_id,omitempty" db:"message_id"`
	ProviderID string `json:"provider_id,omitempty" db:"provider_id"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON for full details.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeBoundsViolationAvoided EventType = "aggregate_bounds_violation_avoided"
	EventTypeUnknownMessage         EventType = "unknown_message"
	EventTypeBillingTriggerFailure  EventType = "billing_trigger_failure"
	EventTypeLateReport             EventType = "late_report"
)
