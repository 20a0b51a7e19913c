package notifications

import (
	"context"
	"time"
)

// CommentNotice tells a reporter that an admin commented on their defect.
type CommentNotice struct {
	DefectID  string    `json:"defectId"`
	OwnerID   string    `json:"ownerId"`
	Title     string    `json:"title"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

type Notifier interface {
	NotifyComment(ctx context.Context, notice CommentNotice) error
}

// Nop drops every notice.
type Nop struct{}

func (Nop) NotifyComment(context.Context, CommentNotice) error { return nil }
