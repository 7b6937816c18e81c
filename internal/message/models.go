package message

import (
	"time"

	"sms-backoffice/internal/dlr"
)

// Message is one outbound SMS attempt.
//
// Lifecycle: created by the send path in queued/processing/sent; mutated only
// by the status machine; never deleted, only superseded by a terminal status.
//
// Money invariant reminder: CostMinor is what the message will be charged at
// on delivery. Campaign cost recognition happens in the aggregate reconciler,
// never here.
type Message struct {
	ID string `json:"id" db:"id"`

	// ProviderMessageID is the carrier-assigned id used to correlate
	// delivery reports with this message.
	ProviderMessageID string `json:"provider_message_id,omitempty" db:"provider_message_id"`

	// CampaignID is a weak back-reference; empty for one-off sends.
	CampaignID string `json:"campaign_id,omitempty" db:"campaign_id"`

	Status Status `json:"status" db:"status"`

	// CostMinor is the charge for this message in minor units.
	CostMinor int64  `json:"cost_minor" db:"cost_minor"`
	Currency  string `json:"currency" db:"currency"`

	// Set once, on the transition that produces them.
	SentAt      *time.Time `json:"sent_at,omitempty" db:"sent_at"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty" db:"delivered_at"`
	FailedAt    *time.Time `json:"failed_at,omitempty" db:"failed_at"`

	// LastReport is the last normalized report applied to this message.
	// Informational only; Status is the authoritative state.
	LastReport *dlr.Report `json:"last_report,omitempty" db:"-"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Status string

const (
	StatusQueued      Status = "queued"
	StatusProcessing  Status = "processing"
	StatusSent        Status = "sent"
	StatusDelivered   Status = "delivered"
	StatusFailed      Status = "failed"
	StatusUndelivered Status = "undelivered"
	StatusBlocked     Status = "blocked"
	StatusPaused      Status = "paused"
)

// IsTerminal reports whether no further transition may ever leave s.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusDelivered, StatusFailed, StatusUndelivered, StatusBlocked:
		return true
	default:
		return false
	}
}

// IsPending reports whether a message in s still blocks campaign completion.
// Paused and blocked messages do not: they are operator holds, not in-flight sends.
func (s Status) IsPending() bool {
	switch s {
	case StatusQueued, StatusProcessing, StatusSent:
		return true
	default:
		return false
	}
}
