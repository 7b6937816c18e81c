package campaign

import "time"

// Campaign is a batch of messages created together by the (out-of-scope)
// send path.
//
// Aggregate invariants:
//   - SentCount + DeliveredCount + FailedCount <= ContactCount, always.
//   - Progress = min(100, round(100 * terminalTotal / ContactCount)).
//   - once Status is completed, counters and CompletedAt never change.
//
// Counters are mutated exclusively by the reconciler and the completion
// detector, each through a single atomic store operation.
type Campaign struct {
	ID string `json:"id" db:"id"`

	// ContactCount is the total number of messages intended to be sent.
	// Fixed at creation.
	ContactCount int `json:"contact_count" db:"contact_count"`

	SentCount      int `json:"sent_count" db:"sent_count"`
	DeliveredCount int `json:"delivered_count" db:"delivered_count"`
	FailedCount    int `json:"failed_count" db:"failed_count"`

	// ActualCostMinor accumulates only on delivery; undelivered messages are
	// never charged.
	ActualCostMinor int64  `json:"actual_cost_minor" db:"actual_cost_minor"`
	Currency        string `json:"currency" db:"currency"`

	// Progress is an integer percentage, 0-100.
	Progress int `json:"progress" db:"progress"`

	Status Status `json:"status" db:"status"`

	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Status string

const (
	StatusDraft     Status = "draft"
	StatusSending   Status = "sending"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
)

// CounterTotal is the counter sum bounded by ContactCount.
func (c Campaign) CounterTotal() int {
	return c.SentCount + c.DeliveredCount + c.FailedCount
}

// ProgressFor computes the progress percentage for a given terminal total.
func ProgressFor(total, contactCount int) int {
	if contactCount <= 0 {
		return 0
	}
	p := (total*100 + contactCount/2) / contactCount // round half up
	if p > 100 {
		p = 100
	}
	if p < 0 {
		p = 0
	}
	return p
}
