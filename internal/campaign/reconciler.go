package campaign

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"sms-backoffice/internal/anomaly"
	"sms-backoffice/internal/message"
)

// Reconciler folds one applied message transition into the owning campaign's
// rollup counters.
//
// Reports arrive concurrently and are occasionally inconsistent with the
// message's true prior state (a message already counted once, a replay, a
// provider glitch). The reconciler prefers silently skipping an update over
// violating the counter bound, because counters exceeding ContactCount would
// corrupt billing at completion. Skips are never surfaced as hard failures:
// a carrier retry cannot resolve them.
type Reconciler struct {
	campaigns Store
	anomalies *anomaly.Service
	logger    *slog.Logger
}

func NewReconciler(campaigns Store, anomalies *anomaly.Service, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{campaigns: campaigns, anomalies: anomalies, logger: logger}
}

// ReconcileInput is the applied transition handed over by the status machine.
type ReconcileInput struct {
	CampaignID string
	MessageID  string

	From message.Status
	To   message.Status

	// CostMinor is the message's charge, recognized only when To is delivered.
	CostMinor int64
}

// DeltaFor computes the counter adjustment implied by a transition.
//
// A sent origin had been counted into SentCount by the send path, so leaving
// it compensates with a decrement; processing/queued origins were never
// counted and only the destination increments. Transitions not in this table
// produce a zero delta.
func DeltaFor(in ReconcileInput) CounterDelta {
	var d CounterDelta

	switch in.From {
	case message.StatusSent:
		d.Sent = -1
	case message.StatusProcessing, message.StatusQueued:
		// no prior counter to compensate
	default:
		return CounterDelta{}
	}

	switch in.To {
	case message.StatusDelivered:
		d.Delivered = 1
		d.CostMinor = in.CostMinor
	case message.StatusFailed, message.StatusUndelivered:
		d.Failed = 1
	default:
		return CounterDelta{}
	}
	return d
}

// Reconcile applies the transition's delta to the campaign. A no-op for
// campaign-less messages. Never returns an error for conditions a carrier
// retry cannot fix; those are logged and recorded as anomalies.
func (r *Reconciler) Reconcile(ctx context.Context, in ReconcileInput) error {
	if in.CampaignID == "" {
		return nil
	}
	if r.campaigns == nil {
		return errors.New("campaign: store not configured")
	}

	c, err := r.campaigns.Get(ctx, in.CampaignID)
	if errors.Is(err, ErrNotFound) {
		r.logger.Warn("reconcile: campaign not found", "campaign_id", in.CampaignID, "message_id", in.MessageID)
		return nil
	}
	if err != nil {
		return err
	}

	switch c.Status {
	case StatusPaused:
		// Explicit operator hold; the next resume re-derives state.
		r.logger.Debug("reconcile: campaign paused, skipping", "campaign_id", c.ID, "message_id", in.MessageID)
		return nil
	case StatusCompleted:
		// Completed campaigns are frozen; a late report is informational only.
		r.noteLateReport(ctx, c.ID, in.MessageID,
			fmt.Sprintf("report arrived after completion (%s -> %s)", in.From, in.To))
		return nil
	}

	if c.CounterTotal() >= c.ContactCount {
		r.noteBoundsAnomaly(ctx, c.ID, in.MessageID,
			fmt.Sprintf("counters saturated at %d/%d before update (%s -> %s)",
				c.CounterTotal(), c.ContactCount, in.From, in.To))
		return nil
	}

	delta := DeltaFor(in)
	if delta.IsZero() {
		return nil
	}

	applied, err := r.campaigns.CompareAndUpdateCounters(ctx, c.ID, delta)
	if err != nil {
		return err
	}
	if !applied {
		// The guarded update re-checked the bound against the live row and
		// refused; the earlier read was stale.
		r.noteBoundsAnomaly(ctx, c.ID, in.MessageID,
			fmt.Sprintf("counter update discarded to preserve bound (%s -> %s, delta %+d/%+d/%+d)",
				in.From, in.To, delta.Sent, delta.Delivered, delta.Failed))
	}
	return nil
}

func (r *Reconciler) noteBoundsAnomaly(ctx context.Context, campaignID, messageID, detail string) {
	r.logger.Warn("reconcile: bounds anomaly", "campaign_id", campaignID, "message_id", messageID, "detail", detail)
	if r.anomalies == nil {
		return
	}
	if err := r.anomalies.RecordBoundsViolationAvoided(ctx, campaignID, messageID, detail); err != nil {
		r.logger.Error("anomaly append failed", "err", err)
	}
}

func (r *Reconciler) noteLateReport(ctx context.Context, campaignID, messageID, detail string) {
	r.logger.Warn("reconcile: late report", "campaign_id", campaignID, "message_id", messageID, "detail", detail)
	if r.anomalies == nil {
		return
	}
	if err := r.anomalies.RecordLateReport(ctx, campaignID, messageID, detail); err != nil {
		r.logger.Error("anomaly append failed", "err", err)
	}
}
