package domain

import (
	"context"
	"time"
)

// ActivityRecord is one append-only audit entry.
type ActivityRecord struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	Action     string    `json:"action"`
	Details    string    `json:"details,omitempty"`
	IPAddress  string    `json:"ip_address,omitempty"`
	UserAgent  string    `json:"user_agent,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ActivityRepository appends and lists audit entries. There is no update or delete.
type ActivityRepository interface {
	Append(ctx context.Context, rec ActivityRecord) (int64, error)
	ListRecent(ctx context.Context, limit int) ([]ActivityRecord, error)
}
