package anomaly

import (
	"context"
	"testing"
	"time"
)

func TestAnomaly_AppendFillsDefaults(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)
	now := time.Unix(1700000000, 0).UTC()
	svc.clock = func() time.Time { return now }

	err := svc.RecordBoundsViolationAvoided(context.Background(), "camp", "m1", "counters saturated")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	events := repo.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	e := events[0]
	if e.ID == "" {
		t.Fatalf("expected generated id")
	}
	if !e.CreatedAt.Equal(now) {
		t.Fatalf("expected clock timestamp, got %v", e.CreatedAt)
	}
	if e.Type != EventTypeBoundsViolationAvoided || e.CampaignID != "camp" {
		t.Fatalf("unexpected event: %+v", e)
	}
}

func TestAnomaly_RecordLateReport(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	err := svc.RecordLateReport(context.Background(), "camp", "m1", "report arrived after completion")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	events := repo.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	e := events[0]
	if e.Type != EventTypeLateReport || e.CampaignID != "camp" || e.MessageID != "m1" {
		t.Fatalf("unexpected event: %+v", e)
	}
}

func TestAnomaly_AppendRejectsMissingType(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	if err := svc.Append(context.Background(), Event{}); err != ErrInvalidEvent {
		t.Fatalf("expected ErrInvalidEvent, got %v", err)
	}
}

func TestAnomaly_ListFiltersAndOrders(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	ctx := context.Background()
	_ = svc.RecordUnknownMessage(ctx, "twilio", "SM1")
	_ = svc.RecordBoundsViolationAvoided(ctx, "camp-a", "m1", "first")
	_ = svc.RecordBoundsViolationAvoided(ctx, "camp-a", "m2", "second")
	_ = svc.RecordBillingTriggerFailure(ctx, "camp-b", "timeout")

	out, err := svc.List(ctx, "camp-a", 10)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 events for camp-a, got %d", len(out))
	}
	if out[0].Message != "second" {
		t.Fatalf("expected newest first, got %q", out[0].Message)
	}
}
