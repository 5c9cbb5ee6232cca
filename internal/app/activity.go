package app

import (
	"context"
	"time"

	"mfgrecords/internal/domain"
	"mfgrecords/internal/logging"
)

// ActivityLogger appends audit records. It never panics and callers are
// expected to ignore its error so the audited action is never undone.
type ActivityLogger struct {
	repo domain.ActivityRepository
	log  logging.Logger
	now  func() time.Time
}

// NewActivityLogger creates an activity logger.
func NewActivityLogger(repo domain.ActivityRepository, log logging.Logger) *ActivityLogger {
	if log == nil {
		log = logging.Nop()
	}
	return &ActivityLogger{repo: repo, log: log.With("component", "activity"), now: time.Now}
}

// Log appends rec. It returns ErrNotAuthenticated without writing when no
// user is set.
func (a *ActivityLogger) Log(ctx context.Context, rec domain.ActivityRecord) (err error) {
	defer func() {
		if p := recover(); p != nil {
			a.log.Error(ctx, "activity log panicked", "action", rec.Action, "panic", p)
			err = ErrUnexpected
		}
	}()

	if rec.UserID == 0 {
		a.log.Warn(ctx, "activity without authenticated user", "action", rec.Action)
		return ErrNotAuthenticated
	}
	if rec.OccurredAt.IsZero() {
		rec.OccurredAt = a.now()
	}
	if _, err := a.repo.Append(ctx, rec); err != nil {
		a.log.Error(ctx, "failed to append activity", "user_id", rec.UserID, "action", rec.Action, "err", err)
		return err
	}
	return nil
}

// Recent lists the latest activity, newest first.
func (a *ActivityLogger) Recent(ctx context.Context, limit int) ([]domain.ActivityRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return a.repo.ListRecent(ctx, limit)
}
