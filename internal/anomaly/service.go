package anomaly

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for anomaly events.
//
// It MUST be append-only; there are no Update/Delete methods.
type Repository interface {
	Append(ctx context.Context, e Event) error
	List(ctx context.Context, campaignID string, limit int) ([]Event, error)
}

// Service records operational anomalies.
//
// Callers should treat recording as best-effort: a failed append is logged by
// the caller and swallowed, never propagated into the webhook response.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("anomaly: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("anomaly: repository not configured")
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// List returns recent anomalies, optionally filtered by campaign.
func (s *Service) List(ctx context.Context, campaignID string, limit int) ([]Event, error) {
	if s.repo == nil {
		return nil, errors.New("anomaly: repository not configured")
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.repo.List(ctx, campaignID, limit)
}

// RecordBoundsViolationAvoided notes a reconciler skip that preserved the
// counter bound.
func (s *Service) RecordBoundsViolationAvoided(ctx context.Context, campaignID, messageID, detail string) error {
	return s.Append(ctx, Event{
		Type:       EventTypeBoundsViolationAvoided,
		CampaignID: campaignID,
		MessageID:  messageID,
		Message:    detail,
	})
}

// RecordUnknownMessage notes a report whose key resolved to no message.
func (s *Service) RecordUnknownMessage(ctx context.Context, providerID, messageKey string) error {
	return s.Append(ctx, Event{
		Type:       EventTypeUnknownMessage,
		ProviderID: providerID,
		Message:    "delivery report for unknown message key " + messageKey,
	})
}

// RecordLateReport notes a report that arrived after its campaign
// completed. The campaign stays frozen; the event is informational.
func (s *Service) RecordLateReport(ctx context.Context, campaignID, messageID, detail string) error {
	return s.Append(ctx, Event{
		Type:       EventTypeLateReport,
		CampaignID: campaignID,
		MessageID:  messageID,
		Message:    detail,
	})
}

// RecordBillingTriggerFailure notes a finalized campaign whose billing call
// failed; billing is retried out of band.
func (s *Service) RecordBillingTriggerFailure(ctx context.Context, campaignID, detail string) error {
	return s.Append(ctx, Event{
		Type:       EventTypeBillingTriggerFailure,
		CampaignID: campaignID,
		Message:    detail,
	})
}
