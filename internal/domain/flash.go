package domain

import "time"

// FlashKind is the severity of a flash message.
type FlashKind string

const (
	FlashSuccess FlashKind = "success"
	FlashWarning FlashKind = "warning"
	FlashDanger  FlashKind = "danger"
	FlashInfo    FlashKind = "info"
)

// Normalize maps unknown kinds to FlashInfo.
func (k FlashKind) Normalize() FlashKind {
	switch k {
	case FlashSuccess, FlashWarning, FlashDanger, FlashInfo:
		return k
	}
	return FlashInfo
}

// FlashMessage is a one-shot notice shown on the next page view.
type FlashMessage struct {
	Kind      FlashKind `json:"kind"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}
