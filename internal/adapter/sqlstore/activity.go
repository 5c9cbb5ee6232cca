package sqlstore

import (
	"context"

	"mfgrecords/internal/db"
	"mfgrecords/internal/domain"
)

// ActivityRepo is the append-only activity log.
type ActivityRepo struct {
	db *DB
}

var _ domain.ActivityRepository = (*ActivityRepo)(nil)

// NewActivityRepo wraps a DB as an ActivityRepository.
func NewActivityRepo(d *DB) *ActivityRepo {
	return &ActivityRepo{db: d}
}

// Append inserts one record.
func (r *ActivityRepo) Append(ctx context.Context, rec domain.ActivityRecord) (int64, error) {
	return r.db.exec.Insert(ctx, "activity_log", db.Columns{
		"user_id":     rec.UserID,
		"action":      rec.Action,
		"details":     rec.Details,
		"ip_address":  rec.IPAddress,
		"user_agent":  rec.UserAgent,
		"occurred_at": rec.OccurredAt.UTC(),
	})
}

// ListRecent returns up to limit records, newest first.
func (r *ActivityRepo) ListRecent(ctx context.Context, limit int) ([]domain.ActivityRecord, error) {
	rows, err := r.db.exec.GetAll(ctx,
		`SELECT id, user_id, action, details, ip_address, user_agent, occurred_at
		FROM activity_log ORDER BY occurred_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	out := make([]domain.ActivityRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.ActivityRecord{
			ID:         row.Int64("id"),
			UserID:     row.Int64("user_id"),
			Action:     row.String("action"),
			Details:    row.String("details"),
			IPAddress:  row.String("ip_address"),
			UserAgent:  row.String("user_agent"),
			OccurredAt: row.Time("occurred_at"),
		})
	}
	return out, nil
}
