package service

import (
	"context"
	"time"

	"github.com/geocoder89/civicfix/internal/apperr"
	"github.com/geocoder89/civicfix/internal/authz"
	"github.com/geocoder89/civicfix/internal/domain/defect"
	"github.com/geocoder89/civicfix/internal/identity"
	"github.com/geocoder89/civicfix/internal/notifications"
)

// AddComment appends an admin comment and the matching unread notification
// in one store write, then tells the notifier. The notifier is best effort;
// the embedded notification is what clients poll.
func (s *Defects) AddComment(ctx context.Context, id identity.Identity, defectID, message string) (defect.Defect, error) {
	if err := authz.Authorize(id, authz.ActionComment, nil); err != nil {
		return defect.Defect{}, err
	}

	message = s.clean(message)
	if message == "" {
		return defect.Defect{}, translate(defect.ErrMessageRequired)
	}

	now := time.Now().UTC()
	comment := defect.NewAdminComment(id.UserID, message, now)
	notif := defect.NewCommentNotification(message, now)

	d, err := s.store.AppendComment(ctx, defectID, comment, notif)
	if err != nil {
		return defect.Defect{}, translate(err)
	}

	s.events.RecordDefectEvent("commented")
	s.publishNotice(ctx, d, notif)

	return s.withReporter(ctx, d), nil
}

func (s *Defects) publishNotice(ctx context.Context, d defect.Defect, n defect.Notification) {
	err := s.notifier.NotifyComment(context.WithoutCancel(ctx), notifications.CommentNotice{
		DefectID:  d.ID,
		OwnerID:   d.OwnerID,
		Title:     d.Title,
		Text:      n.Text,
		CreatedAt: n.CreatedAt,
	})
	if err != nil {
		s.events.RecordNotice("failed")
		s.log.WarnContext(ctx, "defects.notice_failed", "defect_id", d.ID, "err", err)
		return
	}
	s.events.RecordNotice("sent")
}

// MarkRead sets every notification on the defect to read. Only the reporter
// may do this, and repeating it changes nothing.
func (s *Defects) MarkRead(ctx context.Context, id identity.Identity, defectID string) (defect.Defect, error) {
	if _, err := s.load(ctx, id, defectID, authz.ActionMarkRead); err != nil {
		return defect.Defect{}, err
	}

	d, err := s.store.MarkNotificationsRead(ctx, defectID)
	if err != nil {
		return defect.Defect{}, translate(err)
	}

	s.events.RecordDefectEvent("read")
	return s.withReporter(ctx, d), nil
}

// Unread derives the caller's unread notification counts on every call.
// Notifications are addressed to the reporter, so only owned defects count.
func (s *Defects) Unread(ctx context.Context, id identity.Identity) (defect.UnreadSummary, error) {
	if id.IsZero() {
		return defect.UnreadSummary{}, apperr.Unauthenticated("Authentication required")
	}

	sum, err := s.store.UnreadSummary(ctx, id.UserID)
	if err != nil {
		return defect.UnreadSummary{}, translate(err)
	}
	if sum.Defects == nil {
		sum.Defects = []defect.UnreadCount{}
	}
	return sum, nil
}
