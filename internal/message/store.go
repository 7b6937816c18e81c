package message

import (
	"context"
	"errors"
	"time"

	"sms-backoffice/internal/dlr"
)

var ErrNotFound = errors.New("message: not found")

// StatusUpdate carries the fields written together with a status transition.
// The write is all-or-nothing: status, timestamps and report snapshot land in
// the same atomic update or not at all.
type StatusUpdate struct {
	NewStatus Status

	DeliveredAt *time.Time
	FailedAt    *time.Time

	Report dlr.Report
}

// Store is the persistence contract consumed by the reconciliation pipeline.
//
// CompareAndSetStatus must be atomic per message: the update applies only if
// the message's status still equals expectFrom, and the returned bool reports
// whether this caller won. Two racing terminal transitions can never both win.
type Store interface {
	FindByProviderKey(ctx context.Context, key string) (Message, error)
	CompareAndSetStatus(ctx context.Context, id string, expectFrom Status, upd StatusUpdate) (bool, error)

	// CountByStatus and SumCostByStatus read the authoritative per-message
	// truth for a campaign, independent of incrementally maintained counters.
	CountByStatus(ctx context.Context, campaignID string) (map[Status]int, error)
	SumCostByStatus(ctx context.Context, campaignID string, status Status) (int64, error)
}
