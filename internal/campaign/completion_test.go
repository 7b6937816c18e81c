package campaign

import (
	"context"
	"errors"
	"testing"

	"sms-backoffice/internal/anomaly"
	"sms-backoffice/internal/message"
)

type billingRecorder struct {
	calls []string
	err   error
}

func (b *billingRecorder) OnCampaignCompleted(_ context.Context, campaignID string) error {
	b.calls = append(b.calls, campaignID)
	return b.err
}

func seedMessage(store *message.MemoryStore, id, campaignID string, st message.Status, cost int64) {
	store.Put(message.Message{
		ID:         id,
		CampaignID: campaignID,
		Status:     st,
		CostMinor:  cost,
		Currency:   "USD",
	})
}

func TestCheck_PendingMessagesBlockCompletion(t *testing.T) {
	msgs := message.NewMemoryStore()
	seedMessage(msgs, "m1", "camp", message.StatusDelivered, 10)
	seedMessage(msgs, "m2", "camp", message.StatusSent, 10)

	camps := NewMemoryStore()
	camps.Put(sendingCampaign("camp", 2, 1, 1, 0))

	billing := &billingRecorder{}
	d := NewDetector(msgs, camps, billing, nil, nil)

	if err := d.Check(context.Background(), "camp"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	c, _ := camps.Get(context.Background(), "camp")
	if c.Status != StatusSending {
		t.Fatalf("in-flight campaign must stay sending, got %s", c.Status)
	}
	if len(billing.calls) != 0 {
		t.Fatalf("billing must not trigger while messages are pending")
	}
}

func TestCheck_FinalizesFromAuthoritativeTally(t *testing.T) {
	msgs := message.NewMemoryStore()
	seedMessage(msgs, "m1", "camp", message.StatusDelivered, 25)
	seedMessage(msgs, "m2", "camp", message.StatusDelivered, 30)
	seedMessage(msgs, "m3", "camp", message.StatusUndelivered, 25)
	seedMessage(msgs, "m4", "camp", message.StatusFailed, 25)

	camps := NewMemoryStore()
	// Counters deliberately lag behind the per-message truth.
	camps.Put(sendingCampaign("camp", 4, 1, 1, 1))

	billing := &billingRecorder{}
	d := NewDetector(msgs, camps, billing, nil, nil)

	if err := d.Check(context.Background(), "camp"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	c, _ := camps.Get(context.Background(), "camp")
	if c.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", c.Status)
	}
	if c.DeliveredCount != 2 || c.FailedCount != 2 || c.SentCount != 0 {
		t.Fatalf("final counters must come from the tally: %+v", c)
	}
	if c.ActualCostMinor != 55 {
		t.Fatalf("only delivered messages are charged, got %d", c.ActualCostMinor)
	}
	if c.Progress != 100 {
		t.Fatalf("expected progress 100, got %d", c.Progress)
	}
	if c.CompletedAt == nil {
		t.Fatalf("expected CompletedAt set")
	}
	if len(billing.calls) != 1 || billing.calls[0] != "camp" {
		t.Fatalf("expected exactly one billing trigger, got %v", billing.calls)
	}
}

func TestCheck_OperatorHoldsDoNotBlockCompletion(t *testing.T) {
	msgs := message.NewMemoryStore()
	seedMessage(msgs, "m1", "camp", message.StatusDelivered, 10)
	seedMessage(msgs, "m2", "camp", message.StatusBlocked, 10)
	seedMessage(msgs, "m3", "camp", message.StatusPaused, 10)

	camps := NewMemoryStore()
	camps.Put(sendingCampaign("camp", 3, 0, 1, 0))

	billing := &billingRecorder{}
	d := NewDetector(msgs, camps, billing, nil, nil)

	if err := d.Check(context.Background(), "camp"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	c, _ := camps.Get(context.Background(), "camp")
	if c.Status != StatusCompleted {
		t.Fatalf("blocked and paused messages must not hold completion open, got %s", c.Status)
	}
}

func TestCheck_IsIdempotent(t *testing.T) {
	msgs := message.NewMemoryStore()
	seedMessage(msgs, "m1", "camp", message.StatusDelivered, 10)

	camps := NewMemoryStore()
	camps.Put(sendingCampaign("camp", 1, 0, 1, 0))

	billing := &billingRecorder{}
	d := NewDetector(msgs, camps, billing, nil, nil)

	for i := 0; i < 3; i++ {
		if err := d.Check(context.Background(), "camp"); err != nil {
			t.Fatalf("check %d: %v", i, err)
		}
	}
	if len(billing.calls) != 1 {
		t.Fatalf("expected exactly one billing trigger, got %d", len(billing.calls))
	}
}

func TestCheck_BillingFailureLeavesCampaignCompleted(t *testing.T) {
	msgs := message.NewMemoryStore()
	seedMessage(msgs, "m1", "camp", message.StatusDelivered, 10)

	camps := NewMemoryStore()
	camps.Put(sendingCampaign("camp", 1, 0, 1, 0))

	repo := anomaly.NewMemoryRepo()
	billing := &billingRecorder{err: errors.New("sippy unreachable")}
	d := NewDetector(msgs, camps, billing, anomaly.NewService(repo), nil)

	if err := d.Check(context.Background(), "camp"); err != nil {
		t.Fatalf("billing failure must not bubble up: %v", err)
	}

	c, _ := camps.Get(context.Background(), "camp")
	if c.Status != StatusCompleted {
		t.Fatalf("campaign must stay completed, got %s", c.Status)
	}
	events := repo.Events()
	if len(events) != 1 || events[0].Type != anomaly.EventTypeBillingTriggerFailure {
		t.Fatalf("expected billing failure anomaly, got %+v", events)
	}

	// A later re-check must not re-trigger billing for the same campaign.
	if err := d.Check(context.Background(), "camp"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(billing.calls) != 1 {
		t.Fatalf("expected no billing retry here, got %d calls", len(billing.calls))
	}
}

func TestCheck_EmptyCampaignIsNoop(t *testing.T) {
	camps := NewMemoryStore()
	camps.Put(sendingCampaign("camp", 5, 0, 0, 0))

	d := NewDetector(message.NewMemoryStore(), camps, &billingRecorder{}, nil, nil)
	if err := d.Check(context.Background(), "camp"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	c, _ := camps.Get(context.Background(), "camp")
	if c.Status != StatusSending {
		t.Fatalf("campaign with no messages must stay sending, got %s", c.Status)
	}
}
