package campaign

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PostgresStore persists campaigns in the campaigns table.
//
// NOTE: assumes the following schema:
//
//	campaigns (
//	  id TEXT PRIMARY KEY,
//	  contact_count INT NOT NULL,
//	  sent_count INT NOT NULL DEFAULT 0,
//	  delivered_count INT NOT NULL DEFAULT 0,
//	  failed_count INT NOT NULL DEFAULT 0,
//	  actual_cost_minor BIGINT NOT NULL DEFAULT 0,
//	  currency TEXT NOT NULL DEFAULT '',
//	  progress INT NOT NULL DEFAULT 0,
//	  status TEXT NOT NULL,
//	  completed_at TIMESTAMPTZ,
//	  created_at TIMESTAMPTZ NOT NULL,
//	  updated_at TIMESTAMPTZ NOT NULL
//	)
type PostgresStore struct {
	db    *sql.DB
	clock func() time.Time
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, clock: time.Now}
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Campaign, error) {
	const q = `
SELECT id, contact_count, sent_count, delivered_count, failed_count,
       actual_cost_minor, currency, progress, status, completed_at, created_at, updated_at
FROM campaigns
WHERE id = $1
`
	var c Campaign
	var completedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, q, id).Scan(
		&c.ID,
		&c.ContactCount,
		&c.SentCount,
		&c.DeliveredCount,
		&c.FailedCount,
		&c.ActualCostMinor,
		&c.Currency,
		&c.Progress,
		&c.Status,
		&completedAt,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Campaign{}, ErrNotFound
		}
		return Campaign{}, err
	}
	if completedAt.Valid {
		t := completedAt.Time.UTC()
		c.CompletedAt = &t
	}
	return c, nil
}

func (s *PostgresStore) CompareAndUpdateCounters(ctx context.Context, id string, delta CounterDelta) (bool, error) {
	// One guarded UPDATE: floor/cap arithmetic and the all-or-nothing bound
	// check are evaluated against the row as it is at write time, so
	// concurrent reconciliations for the same campaign serialize on the row
	// without a retry loop.
	const q = `
UPDATE campaigns
SET sent_count      = LEAST(contact_count, GREATEST(0, sent_count + $2)),
    delivered_count = LEAST(contact_count, GREATEST(0, delivered_count + $3)),
    failed_count    = LEAST(contact_count, GREATEST(0, failed_count + $4)),
    actual_cost_minor = actual_cost_minor + $5,
    progress = LEAST(100, (
        (LEAST(contact_count, GREATEST(0, sent_count + $2))
       + LEAST(contact_count, GREATEST(0, delivered_count + $3))
       + LEAST(contact_count, GREATEST(0, failed_count + $4))) * 100
       + contact_count / 2) / contact_count),
    updated_at = $6
WHERE id = $1
  AND status = 'sending'
  AND sent_count + delivered_count + failed_count < contact_count
  AND LEAST(contact_count, GREATEST(0, sent_count + $2))
    + LEAST(contact_count, GREATEST(0, delivered_count + $3))
    + LEAST(contact_count, GREATEST(0, failed_count + $4)) <= contact_count
`
	res, err := s.db.ExecContext(ctx, q, id, delta.Sent, delta.Delivered, delta.Failed, delta.CostMinor, s.clock().UTC())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *PostgresStore) Finalize(ctx context.Context, id string, tally FinalTally) (bool, error) {
	const q = `
UPDATE campaigns
SET sent_count      = LEAST(contact_count, GREATEST(0, $2)),
    delivered_count = LEAST(contact_count, GREATEST(0, $3)),
    failed_count    = LEAST(contact_count - LEAST(contact_count, GREATEST(0, $2)) - LEAST(contact_count, GREATEST(0, $3)), GREATEST(0, $4)),
    actual_cost_minor = $5,
    progress = 100,
    status = 'completed',
    completed_at = $6,
    updated_at = $6
WHERE id = $1 AND status = 'sending'
`
	now := s.clock().UTC()
	res, err := s.db.ExecContext(ctx, q, id, tally.Sent, tally.Delivered, tally.Failed, tally.CostMinor, now)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
