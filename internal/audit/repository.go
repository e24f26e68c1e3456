package audit

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Repository writes upload records to Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository constructs an audit repository.
func NewRepository(db *sql.DB) *Repository {
	if db == nil {
		return nil
	}
	return &Repository{db: db}
}

// Record writes one upload record.
func (r *Repository) Record(ctx context.Context, rec Record) error {
	if r == nil || r.db == nil {
		return errors.New("audit repo: nil db")
	}
	if rec.ID == "" {
		rec.ID = NewID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
INSERT INTO upload_audit (
	id, device_id, storage_key, outcome, attempts, size_bytes,
	payload_digest, error, event_ts, created_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10
)`, rec.ID, rec.DeviceID, rec.Key, rec.Outcome, rec.Attempts, rec.SizeBytes,
		rec.PayloadDigest, rec.Error, rec.EventTS, rec.CreatedAt)
	return err
}

// DailySummary aggregates upload activity for one UTC day.
type DailySummary struct {
	Day      time.Time
	Uploads  int64
	Failures int64
	Bytes    int64
	AvgTries float64
}

// SummarizeDays returns per-day totals over the given range, newest first.
func (r *Repository) SummarizeDays(ctx context.Context, from, to time.Time) ([]DailySummary, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("audit repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT
	date_trunc('day', created_at) AS day,
	COUNT(*) FILTER (WHERE outcome = 'succeeded') AS uploads,
	COUNT(*) FILTER (WHERE outcome IN ('failed-transient', 'failed-terminal')) AS failures,
	COALESCE(SUM(size_bytes) FILTER (WHERE outcome = 'succeeded'), 0)::bigint AS bytes,
	COALESCE(AVG(attempts) FILTER (WHERE outcome = 'succeeded'), 0)::float8 AS avg_tries
FROM upload_audit
WHERE created_at >= $1 AND created_at < $2
GROUP BY day
ORDER BY day DESC`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []DailySummary
	for rows.Next() {
		var s DailySummary
		if err := rows.Scan(&s.Day, &s.Uploads, &s.Failures, &s.Bytes, &s.AvgTries); err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}
