package dlr

import "time"

// Status is the canonical delivery outcome used internally regardless of
// carrier vocabulary.
//
// Expired is retained as a distinct value for diagnostics but is treated as
// failed by the message status machine.
type Status string

const (
	StatusDelivered   Status = "delivered"
	StatusFailed      Status = "failed"
	StatusUndelivered Status = "undelivered"
	StatusExpired     Status = "expired"
)

func (s Status) Valid() bool {
	switch s {
	case StatusDelivered, StatusFailed, StatusUndelivered, StatusExpired:
		return true
	default:
		return false
	}
}

// Report is the canonical shape of one carrier delivery-status notification.
// It is ephemeral: normalized, applied, and discarded. Only its dedup key and
// the per-message report snapshot outlive the request.
type Report struct {
	// MessageKey is the carrier-assigned id used to resolve our message.
	MessageKey string `json:"message_key"`

	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`

	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`

	ProviderID        string `json:"provider_id"`
	ProviderMessageID string `json:"provider_message_id,omitempty"`

	// RawStatus preserves the carrier's own status string for diagnostics.
	RawStatus string `json:"raw_status,omitempty"`
}
