package notifications

import (
	"context"
	"log/slog"
)

type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &LogNotifier{log: log}
}

func (n *LogNotifier) NotifyComment(ctx context.Context, in CommentNotice) error {
	n.log.InfoContext(ctx, "notification.admin_comment",
		"defect_id", in.DefectID,
		"owner_id", in.OwnerID,
		"title", in.Title,
		"text", in.Text,
	)
	return nil
}
