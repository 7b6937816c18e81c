package campaign

import (
	"context"
	"errors"
	"log/slog"

	"sms-backoffice/internal/anomaly"
	"sms-backoffice/internal/message"
)

// BillingCollaborator is invoked exactly once when a campaign finalizes.
// Fire-and-forget from this subsystem's perspective: a failed call is
// retried out of band, never by reopening the campaign.
type BillingCollaborator interface {
	OnCampaignCompleted(ctx context.Context, campaignID string) error
}

// Detector decides whether a campaign is finished and finalizes it.
//
// It re-derives the true status distribution from the message store rather
// than trusting the incrementally maintained counters: increments can be
// skipped by the reconciler's safeguards, so only the per-message tally is
// exact enough to bill on.
//
// Check is best-effort and re-entrant; the finalize guard makes the
// completed transition (and the billing trigger behind it) exactly-once.
type Detector struct {
	messages  message.Store
	campaigns Store
	billing   BillingCollaborator
	anomalies *anomaly.Service
	logger    *slog.Logger
}

func NewDetector(messages message.Store, campaigns Store, billing BillingCollaborator, anomalies *anomaly.Service, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{
		messages:  messages,
		campaigns: campaigns,
		billing:   billing,
		anomalies: anomalies,
		logger:    logger,
	}
}

// Check finalizes the campaign if no message remains in flight.
func (d *Detector) Check(ctx context.Context, campaignID string) error {
	if campaignID == "" {
		return nil
	}
	if d.messages == nil || d.campaigns == nil {
		return errors.New("campaign: detector not configured")
	}

	counts, err := d.messages.CountByStatus(ctx, campaignID)
	if err != nil {
		return err
	}
	total := 0
	for st, n := range counts {
		total += n
		if st.IsPending() && n > 0 {
			// Still in flight.
			return nil
		}
	}
	if total == 0 {
		// Nothing sent yet; an empty campaign is the send path's problem.
		return nil
	}

	c, err := d.campaigns.Get(ctx, campaignID)
	if errors.Is(err, ErrNotFound) {
		d.logger.Warn("completion: campaign not found", "campaign_id", campaignID)
		return nil
	}
	if err != nil {
		return err
	}
	if c.Status != StatusSending {
		// Already completed (or drafted/paused); nothing to do.
		return nil
	}

	deliveredCost, err := d.messages.SumCostByStatus(ctx, campaignID, message.StatusDelivered)
	if err != nil {
		return err
	}

	tally := FinalTally{
		Sent:      counts[message.StatusSent],
		Delivered: counts[message.StatusDelivered],
		Failed:    counts[message.StatusFailed] + counts[message.StatusUndelivered],
		CostMinor: deliveredCost,
	}

	won, err := d.campaigns.Finalize(ctx, campaignID, tally)
	if err != nil {
		return err
	}
	if !won {
		// A concurrent Check finalized first; billing already triggered there.
		return nil
	}

	d.logger.Info("campaign completed",
		"campaign_id", campaignID,
		"delivered", tally.Delivered,
		"failed", tally.Failed,
		"actual_cost_minor", tally.CostMinor,
	)

	if d.billing == nil {
		return nil
	}
	if err := d.billing.OnCampaignCompleted(ctx, campaignID); err != nil {
		// The campaign stays completed; billing retries happen out of band.
		d.logger.Error("billing trigger failed", "err", err, "campaign_id", campaignID)
		if d.anomalies != nil {
			if aerr := d.anomalies.RecordBillingTriggerFailure(ctx, campaignID, err.Error()); aerr != nil {
				d.logger.Error("anomaly append failed", "err", aerr)
			}
		}
	}
	return nil
}
