package campaign

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("campaign: not found")

// CounterDelta is one reconciliation step's effect on a campaign.
// Deltas are small signed adjustments; the store floors each counter at 0,
// caps it at ContactCount, and rejects the whole delta if the prospective
// counter total would exceed ContactCount (all-or-nothing).
type CounterDelta struct {
	Sent      int
	Delivered int
	Failed    int

	// CostMinor is added to ActualCostMinor; only delivery produces cost.
	CostMinor int64
}

func (d CounterDelta) IsZero() bool {
	return d.Sent == 0 && d.Delivered == 0 && d.Failed == 0 && d.CostMinor == 0
}

// FinalTally is the authoritative per-message truth used at completion.
type FinalTally struct {
	Sent      int
	Delivered int
	Failed    int
	CostMinor int64
}

// Store is the campaign persistence contract.
//
// CompareAndUpdateCounters applies delta atomically per campaign, guarded on
// Status == sending and on the counter bound; it returns false when the guard
// rejects, and the campaign is then left untouched. Progress is recomputed in
// the same write.
//
// Finalize freezes the campaign exactly once: guarded on Status == sending,
// it sets counters from tally (capped at ContactCount), progress to 100,
// status to completed and stamps CompletedAt. The bool reports whether this
// caller performed the transition.
type Store interface {
	Get(ctx context.Context, id string) (Campaign, error)
	CompareAndUpdateCounters(ctx context.Context, id string, delta CounterDelta) (bool, error)
	Finalize(ctx context.Context, id string, tally FinalTally) (bool, error)
}
