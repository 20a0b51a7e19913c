package service

import (
	"context"
	"time"

	"github.com/geocoder89/civicfix/internal/domain/defect"
	"github.com/geocoder89/civicfix/internal/domain/user"
	"github.com/geocoder89/civicfix/internal/notifications"
	"github.com/geocoder89/civicfix/internal/storage"
)

// DefectStore persists defect documents. Every mutation is a single atomic
// write against one defect; a missing id yields defect.ErrNotFound.
type DefectStore interface {
	Create(ctx context.Context, d defect.Defect) error
	GetByID(ctx context.Context, id string) (defect.Defect, error)
	// List returns one page ordered newest first (created_at, id descending)
	// plus the total number of matches.
	List(ctx context.Context, f defect.ListFilter) ([]defect.Defect, int, error)
	Update(ctx context.Context, id string, p defect.Patch) (defect.Defect, error)
	SetStatus(ctx context.Context, id string, status defect.Status) (defect.Defect, error)
	AppendComment(ctx context.Context, id string, c defect.AdminComment, n defect.Notification) (defect.Defect, error)
	// MarkNotificationsRead leaves the document untouched when nothing is
	// unread.
	MarkNotificationsRead(ctx context.Context, id string) (defect.Defect, error)
	Delete(ctx context.Context, id string) error
	SuggestionSources(ctx context.Context, q, ownerID string, limit int) ([]defect.SuggestionSource, error)
	UnreadSummary(ctx context.Context, ownerID string) (defect.UnreadSummary, error)
}

type UserStore interface {
	Create(ctx context.Context, u user.User) error
	GetByEmail(ctx context.Context, email string) (user.User, error)
	GetByID(ctx context.Context, id string) (user.User, error)
	Summaries(ctx context.Context, ids []string) (map[string]user.Summary, error)
}

type PasswordHasher interface {
	Hash(plain string) (string, error)
	Compare(hash, plain string) error
}

type TokenIssuer interface {
	Issue(userID, email, role string) (string, time.Time, error)
}

type TextSanitizer interface {
	Text(in string) string
}

type FileStore = storage.FileStore

type Notifier = notifications.Notifier

type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, val []byte) error
}

// EventRecorder counts domain events; observability.Prom satisfies it.
type EventRecorder interface {
	RecordDefectEvent(event string)
	RecordUpload(result string)
	RecordNotice(result string)
}

type nopRecorder struct{}

func (nopRecorder) RecordDefectEvent(string) {}
func (nopRecorder) RecordUpload(string)      {}
func (nopRecorder) RecordNotice(string)      {}
