package message

import (
	"context"
	"errors"
	"fmt"

	"sms-backoffice/internal/dlr"
)

// The status machine validates and applies one report-driven transition.
//
// Allowed transitions on report arrival:
//
//	queued|processing|sent -> delivered|failed|undelivered
//
// Terminal states (delivered, failed, undelivered, blocked) have no outgoing
// transitions. Paused has none defined either; anything not in the table is
// rejected.
//
// Expired reports drive the failed transition; the carrier's own status string
// stays in the report snapshot for diagnostics.

var ErrUnknownMessage = errors.New("message: unknown message key")

type ApplyOutcome int

const (
	OutcomeApplied ApplyOutcome = iota
	OutcomeNoChange
	OutcomeInvalidTransition
)

func (o ApplyOutcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeNoChange:
		return "no_change"
	case OutcomeInvalidTransition:
		return "invalid_transition"
	default:
		return "unknown"
	}
}

// ApplyResult describes what one report did to one message.
type ApplyResult struct {
	Outcome ApplyOutcome

	// Message is the snapshot after a win, or the current state on rejection.
	Message Message

	From Status
	To   Status
}

// TargetStatus maps a canonical report status to the message status it drives.
func TargetStatus(s dlr.Status) Status {
	switch s {
	case dlr.StatusDelivered:
		return StatusDelivered
	case dlr.StatusUndelivered:
		return StatusUndelivered
	case dlr.StatusFailed, dlr.StatusExpired:
		return StatusFailed
	default:
		return StatusFailed
	}
}

func transitionAllowed(from, to Status) bool {
	switch from {
	case StatusQueued, StatusProcessing, StatusSent:
	default:
		return false
	}
	switch to {
	case StatusDelivered, StatusFailed, StatusUndelivered:
		return true
	default:
		return false
	}
}

// Machine applies report transitions through the store's compare-and-set.
type Machine struct {
	store Store
}

func NewMachine(store Store) *Machine {
	return &Machine{store: store}
}

// Apply resolves the report's message and attempts the transition.
//
// The check-and-set is atomic per message: when two reports race, the loser's
// CAS fails, the message is re-read, and the loser observes no-change (same
// result already applied) or invalid-transition (message already terminal).
func (m *Machine) Apply(ctx context.Context, r dlr.Report) (ApplyResult, error) {
	if m.store == nil {
		return ApplyResult{}, errors.New("message: store not configured")
	}

	const maxAttempts = 3
	for attempt := 0; attempt < maxAttempts; attempt++ {
		msg, err := m.store.FindByProviderKey(ctx, r.MessageKey)
		if errors.Is(err, ErrNotFound) {
			return ApplyResult{}, fmt.Errorf("%w: %s", ErrUnknownMessage, r.MessageKey)
		}
		if err != nil {
			return ApplyResult{}, err
		}

		to := TargetStatus(r.Status)
		if msg.Status == to {
			return ApplyResult{Outcome: OutcomeNoChange, Message: msg, From: msg.Status, To: to}, nil
		}
		if !transitionAllowed(msg.Status, to) {
			return ApplyResult{Outcome: OutcomeInvalidTransition, Message: msg, From: msg.Status, To: to}, nil
		}

		upd := StatusUpdate{NewStatus: to, Report: r}
		ts := r.Timestamp
		switch to {
		case StatusDelivered:
			upd.DeliveredAt = &ts
		case StatusFailed, StatusUndelivered:
			upd.FailedAt = &ts
		}

		won, err := m.store.CompareAndSetStatus(ctx, msg.ID, msg.Status, upd)
		if err != nil {
			return ApplyResult{}, err
		}
		if won {
			from := msg.Status
			msg.Status = to
			msg.DeliveredAt = coalesce(msg.DeliveredAt, upd.DeliveredAt)
			msg.FailedAt = coalesce(msg.FailedAt, upd.FailedAt)
			msg.LastReport = &r
			return ApplyResult{Outcome: OutcomeApplied, Message: msg, From: from, To: to}, nil
		}
		// Lost the race; re-read and re-classify.
	}

	// Only reachable if the message's status keeps moving between reads,
	// which terminality makes impossible after one terminal write.
	return ApplyResult{}, errors.New("message: compare-and-set did not settle")
}

func coalesce[T any](cur, next *T) *T {
	if cur != nil {
		return cur
	}
	return next
}
