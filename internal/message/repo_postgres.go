package message

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"sms-backoffice/internal/dlr"
)

// PostgresStore persists messages in the messages table.
//
// NOTE: assumes the following schema:
//
//	messages (
//	  id TEXT PRIMARY KEY,
//	  provider_message_id TEXT,
//	  campaign_id TEXT,
//	  status TEXT NOT NULL,
//	  cost_minor BIGINT NOT NULL DEFAULT 0,
//	  currency TEXT NOT NULL DEFAULT '',
//	  sent_at TIMESTAMPTZ,
//	  delivered_at TIMESTAMPTZ,
//	  failed_at TIMESTAMPTZ,
//	  report_status TEXT,
//	  report_raw_status TEXT,
//	  report_timestamp TIMESTAMPTZ,
//	  report_error_code TEXT,
//	  report_error_message TEXT,
//	  report_provider_id TEXT,
//	  created_at TIMESTAMPTZ NOT NULL,
//	  updated_at TIMESTAMPTZ NOT NULL
//	)
//	with a UNIQUE index on provider_message_id and an index on (campaign_id, status).
type PostgresStore struct {
	db    *sql.DB
	clock func() time.Time
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, clock: time.Now}
}

const messageColumns = `
id, provider_message_id, campaign_id, status, cost_minor, currency,
sent_at, delivered_at, failed_at,
report_status, report_raw_status, report_timestamp, report_error_code, report_error_message, report_provider_id,
created_at, updated_at`

func (s *PostgresStore) FindByProviderKey(ctx context.Context, key string) (Message, error) {
	q := `SELECT ` + messageColumns + `
FROM messages
WHERE provider_message_id = $1
LIMIT 1`
	return scanMessage(s.db.QueryRowContext(ctx, q, key))
}

func (s *PostgresStore) CompareAndSetStatus(ctx context.Context, id string, expectFrom Status, upd StatusUpdate) (bool, error) {
	// Single guarded UPDATE: the status check and the write are one atomic
	// statement, so only one racer per transition can win.
	const q = `
UPDATE messages
SET status = $3,
    delivered_at = COALESCE(delivered_at, $4),
    failed_at = COALESCE(failed_at, $5),
    report_status = $6,
    report_raw_status = $7,
    report_timestamp = $8,
    report_error_code = $9,
    report_error_message = $10,
    report_provider_id = $11,
    updated_at = $12
WHERE id = $1 AND status = $2
`
	res, err := s.db.ExecContext(ctx, q,
		id,
		string(expectFrom),
		string(upd.NewStatus),
		nullTime(upd.DeliveredAt),
		nullTime(upd.FailedAt),
		string(upd.Report.Status),
		nullStr(upd.Report.RawStatus),
		upd.Report.Timestamp.UTC(),
		nullStr(upd.Report.ErrorCode),
		nullStr(upd.Report.ErrorMessage),
		nullStr(upd.Report.ProviderID),
		s.clock().UTC(),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *PostgresStore) CountByStatus(ctx context.Context, campaignID string) (map[Status]int, error) {
	const q = `
SELECT status, COUNT(*)
FROM messages
WHERE campaign_id = $1
GROUP BY status
`
	rows, err := s.db.QueryContext(ctx, q, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[Status]int{}
	for rows.Next() {
		var st string
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, err
		}
		out[Status(st)] = n
	}
	return out, rows.Err()
}

func (s *PostgresStore) SumCostByStatus(ctx context.Context, campaignID string, status Status) (int64, error) {
	const q = `
SELECT COALESCE(SUM(cost_minor), 0)
FROM messages
WHERE campaign_id = $1 AND status = $2
`
	var sum int64
	if err := s.db.QueryRowContext(ctx, q, campaignID, string(status)).Scan(&sum); err != nil {
		return 0, err
	}
	return sum, nil
}

func scanMessage(row *sql.Row) (Message, error) {
	var m Message
	var providerMsgID, campaignID sql.NullString
	var sentAt, deliveredAt, failedAt sql.NullTime
	var repStatus, repRaw, repCode, repMsg, repProvider sql.NullString
	var repTS sql.NullTime

	err := row.Scan(
		&m.ID,
		&providerMsgID,
		&campaignID,
		&m.Status,
		&m.CostMinor,
		&m.Currency,
		&sentAt,
		&deliveredAt,
		&failedAt,
		&repStatus,
		&repRaw,
		&repTS,
		&repCode,
		&repMsg,
		&repProvider,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Message{}, ErrNotFound
		}
		return Message{}, err
	}

	m.ProviderMessageID = providerMsgID.String
	m.CampaignID = campaignID.String
	m.SentAt = timePtr(sentAt)
	m.DeliveredAt = timePtr(deliveredAt)
	m.FailedAt = timePtr(failedAt)

	if repStatus.Valid {
		m.LastReport = &dlr.Report{
			MessageKey:   m.ProviderMessageID,
			Status:       dlr.Status(repStatus.String),
			RawStatus:    repRaw.String,
			ErrorCode:    repCode.String,
			ErrorMessage: repMsg.String,
			ProviderID:   repProvider.String,
		}
		if repTS.Valid {
			m.LastReport.Timestamp = repTS.Time.UTC()
		}
	}
	return m, nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func nullStr(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
