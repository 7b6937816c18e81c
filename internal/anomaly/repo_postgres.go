package anomaly

import (
	"context"
	"database/sql"
)

// PostgresRepo persists anomaly events in the anomaly_events table.
//
// NOTE: assumes the following schema:
//
//	anomaly_events (
//	  id TEXT PRIMARY KEY,
//	  type TEXT NOT NULL,
//	  campaign_id TEXT NOT NULL DEFAULT '',
//	  message_id TEXT NOT NULL DEFAULT '',
//	  provider_id TEXT NOT NULL DEFAULT '',
//	  message TEXT NOT NULL DEFAULT '',
//	  metadata TEXT NOT NULL DEFAULT '',
//	  created_at TIMESTAMPTZ NOT NULL
//	)
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO anomaly_events (id, type, campaign_id, message_id, provider_id, message, metadata, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`
	_, err := r.db.ExecContext(ctx, q,
		e.ID, e.Type, e.CampaignID, e.MessageID, e.ProviderID, e.Message, e.Metadata, e.CreatedAt,
	)
	return err
}

func (r *PostgresRepo) List(ctx context.Context, campaignID string, limit int) ([]Event, error) {
	const q = `
SELECT id, type, campaign_id, message_id, provider_id, message, metadata, created_at
FROM anomaly_events
WHERE ($1 = '' OR campaign_id = $1)
ORDER BY created_at DESC
LIMIT $2
`
	rows, err := r.db.QueryContext(ctx, q, campaignID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Event, 0, limit)
	for rows.Next() {
		var e Event
		if err := rows.Scan(
			&e.ID, &e.Type, &e.CampaignID, &e.MessageID, &e.ProviderID, &e.Message, &e.Metadata, &e.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
