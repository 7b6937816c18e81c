// Package pipeline chains the delivery-report stages in their processing
// order: normalize, deduplicate, apply to the message, reconcile the
// campaign counters, check for completion.
package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"sms-backoffice/internal/anomaly"
	"sms-backoffice/internal/campaign"
	"sms-backoffice/internal/dedupe"
	"sms-backoffice/internal/dlr"
	"sms-backoffice/internal/message"
)

// Outcome is the per-report disposition returned to the webhook layer.
// Every outcome except a malformed payload is reported to the carrier as
// success: a carrier retry cannot change any of these dispositions.
type Outcome string

const (
	OutcomeApplied           Outcome = "applied"
	OutcomeDuplicate         Outcome = "duplicate"
	OutcomeNoChange          Outcome = "no_change"
	OutcomeUnknownMessage    Outcome = "unknown_message"
	OutcomeInvalidTransition Outcome = "invalid_transition"
)

type Result struct {
	Outcome    Outcome        `json:"outcome"`
	MessageID  string         `json:"message_id,omitempty"`
	CampaignID string         `json:"campaign_id,omitempty"`
	From       message.Status `json:"from,omitempty"`
	To         message.Status `json:"to,omitempty"`
}

type Service struct {
	normalizer *dlr.Normalizer
	guard      dedupe.Guard
	machine    *message.Machine
	reconciler *campaign.Reconciler
	detector   *campaign.Detector
	anomalies  *anomaly.Service
	logger     *slog.Logger
}

func NewService(
	normalizer *dlr.Normalizer,
	guard dedupe.Guard,
	machine *message.Machine,
	reconciler *campaign.Reconciler,
	detector *campaign.Detector,
	anomalies *anomaly.Service,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		normalizer: normalizer,
		guard:      guard,
		machine:    machine,
		reconciler: reconciler,
		detector:   detector,
		anomalies:  anomalies,
		logger:     logger,
	}
}

// Process runs one raw delivery report through the full pipeline.
//
// It returns an error only for malformed payloads (errors.Is
// dlr.ErrNoMessageKey) and for infrastructure failures; every condition a
// carrier retry cannot resolve comes back as a Result instead.
func (s *Service) Process(ctx context.Context, providerHint string, payload dlr.Payload) (Result, error) {
	report, err := s.normalizer.Normalize(providerHint, payload)
	if err != nil {
		return Result{}, err
	}

	if s.guard != nil {
		fresh, err := s.guard.Accept(ctx, report)
		if err != nil {
			// Fail open: the state machine's terminal checks make a
			// replayed report harmless, losing one is not.
			s.logger.Warn("dedup guard unavailable, processing anyway", "err", err, "message_key", report.MessageKey)
		} else if !fresh {
			s.logger.Debug("duplicate report",
				"message_key", report.MessageKey, "status", report.Status, "provider", report.ProviderID)
			return Result{Outcome: OutcomeDuplicate}, nil
		}
	}

	applied, err := s.machine.Apply(ctx, report)
	if errors.Is(err, message.ErrUnknownMessage) {
		s.logger.Warn("report for unknown message",
			"message_key", report.MessageKey, "provider", report.ProviderID)
		if s.anomalies != nil {
			if aerr := s.anomalies.RecordUnknownMessage(ctx, report.ProviderID, report.MessageKey); aerr != nil {
				s.logger.Error("anomaly append failed", "err", aerr)
			}
		}
		return Result{Outcome: OutcomeUnknownMessage}, nil
	}
	if err != nil {
		return Result{}, err
	}

	res := Result{
		MessageID:  applied.Message.ID,
		CampaignID: applied.Message.CampaignID,
		From:       applied.From,
		To:         applied.To,
	}

	switch applied.Outcome {
	case message.OutcomeApplied:
		res.Outcome = OutcomeApplied
		if s.reconciler != nil {
			if err := s.reconciler.Reconcile(ctx, campaign.ReconcileInput{
				CampaignID: applied.Message.CampaignID,
				MessageID:  applied.Message.ID,
				From:       applied.From,
				To:         applied.To,
				CostMinor:  applied.Message.CostMinor,
			}); err != nil {
				return Result{}, err
			}
		}
	case message.OutcomeNoChange:
		res.Outcome = OutcomeNoChange
	case message.OutcomeInvalidTransition:
		res.Outcome = OutcomeInvalidTransition
		s.logger.Warn("invalid status transition",
			"message_id", applied.Message.ID,
			"from", applied.From, "to", applied.To,
			"provider", report.ProviderID)
	}

	// The completion check runs for every recognized message, not just
	// applied reports: a replay arriving after a missed check is often the
	// only signal left that the campaign is finished.
	s.checkCompletion(ctx, applied.Message.CampaignID)

	return res, nil
}

func (s *Service) checkCompletion(ctx context.Context, campaignID string) {
	if s.detector == nil || campaignID == "" {
		return
	}
	if err := s.detector.Check(ctx, campaignID); err != nil {
		// The report itself has been handled; carrier retries cannot fix
		// a completion-side failure, so it is logged and absorbed here.
		s.logger.Error("completion check failed", "err", err, "campaign_id", campaignID)
	}
}
