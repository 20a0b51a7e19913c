package defect

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewFromCreateInput validates in and builds a pending defect owned by
// ownerID. Images are the paths already returned by file storage.
func NewFromCreateInput(ownerID string, in CreateInput, images []string, maxImages int) (Defect, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return Defect{}, ErrTitleRequired
	}

	description := strings.TrimSpace(in.Description)
	if description == "" {
		return Defect{}, ErrDescriptionRequired
	}

	loc, err := in.Location.Normalize()
	if err != nil {
		return Defect{}, err
	}

	t, err := ParseType(in.Type)
	if err != nil {
		return Defect{}, err
	}

	if maxImages > 0 && len(images) > maxImages {
		return Defect{}, ErrTooManyImages
	}

	now := time.Now().UTC()

	return Defect{
		ID:            uuid.NewString(),
		Title:         title,
		Description:   description,
		Type:          t,
		Status:        StatusPending,
		Location:      loc,
		Images:        append([]string{}, images...),
		OwnerID:       ownerID,
		AdminComments: []AdminComment{},
		Notifications: []Notification{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

func NewAdminComment(adminID, message string, at time.Time) AdminComment {
	return AdminComment{
		ID:        uuid.NewString(),
		Message:   message,
		AdminID:   adminID,
		CreatedAt: at,
	}
}

// NewCommentNotification derives the unread notice that accompanies an
// admin comment.
func NewCommentNotification(message string, at time.Time) Notification {
	return Notification{
		ID:        uuid.NewString(),
		Text:      "Admin commented: " + message,
		Read:      false,
		CreatedAt: at,
	}
}
