package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/geocoder89/civicfix/internal/apperr"
	"github.com/geocoder89/civicfix/internal/authz"
	"github.com/geocoder89/civicfix/internal/domain/defect"
	"github.com/geocoder89/civicfix/internal/identity"
	"github.com/geocoder89/civicfix/internal/notifications"
	"github.com/geocoder89/civicfix/internal/storage"
)

const (
	DefaultPageSize  = 6
	MaxPageSize      = 50
	DefaultMaxImages = 6
)

type DefectsConfig struct {
	MaxImages              int
	SuggestionsOwnerScoped bool
}

type DefectsDeps struct {
	Store     DefectStore
	Users     UserStore
	Files     FileStore
	Sanitizer TextSanitizer
	Notifier  Notifier
	Cache     Cache
	Events    EventRecorder
	Log       *slog.Logger
}

// Defects drives the defect lifecycle, admin messaging and search
// suggestions. Every operation takes the caller's identity explicitly.
type Defects struct {
	store     DefectStore
	users     UserStore
	files     FileStore
	sanitizer TextSanitizer
	notifier  Notifier
	cache     Cache
	events    EventRecorder
	log       *slog.Logger
	cfg       DefectsConfig
}

func NewDefects(deps DefectsDeps, cfg DefectsConfig) *Defects {
	if cfg.MaxImages <= 0 {
		cfg.MaxImages = DefaultMaxImages
	}
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	if deps.Events == nil {
		deps.Events = nopRecorder{}
	}
	if deps.Notifier == nil {
		deps.Notifier = notifications.Nop{}
	}

	return &Defects{
		store:     deps.Store,
		users:     deps.Users,
		files:     deps.Files,
		sanitizer: deps.Sanitizer,
		notifier:  deps.Notifier,
		cache:     deps.Cache,
		events:    deps.Events,
		log:       deps.Log,
		cfg:       cfg,
	}
}

func (s *Defects) clean(in string) string {
	if s.sanitizer == nil {
		return strings.TrimSpace(in)
	}
	return s.sanitizer.Text(in)
}

func (s *Defects) cleanPtr(in *string) *string {
	if in == nil {
		return nil
	}
	out := s.clean(*in)
	return &out
}

// Create validates the report, stores its images and inserts it. Files
// already stored are removed again when a later step fails.
func (s *Defects) Create(ctx context.Context, id identity.Identity, in defect.CreateInput, uploads []storage.Upload) (defect.Defect, error) {
	if err := authz.Authorize(id, authz.ActionCreate, nil); err != nil {
		return defect.Defect{}, err
	}

	in.Title = s.clean(in.Title)
	in.Description = s.clean(in.Description)
	in.Location.Text = s.clean(in.Location.Text)

	if len(uploads) > s.cfg.MaxImages {
		s.events.RecordUpload("rejected")
		return defect.Defect{}, apperr.Validation(fmt.Sprintf("At most %d images are allowed", s.cfg.MaxImages))
	}

	// validate before touching storage
	d, err := defect.NewFromCreateInput(id.UserID, in, nil, s.cfg.MaxImages)
	if err != nil {
		return defect.Defect{}, translate(err)
	}

	paths := make([]string, 0, len(uploads))
	for _, up := range uploads {
		p, err := s.files.Store(ctx, up)
		if err != nil {
			s.events.RecordUpload("rejected")
			s.removeFiles(ctx, paths)
			return defect.Defect{}, translate(err)
		}
		s.events.RecordUpload("stored")
		paths = append(paths, p)
	}
	d.Images = paths

	if err := s.store.Create(ctx, d); err != nil {
		s.removeFiles(ctx, paths)
		return defect.Defect{}, translate(err)
	}

	s.events.RecordDefectEvent("created")
	s.log.InfoContext(ctx, "defects.created", "defect_id", d.ID, "owner_id", d.OwnerID, "images", len(paths))

	return d, nil
}

func (s *Defects) removeFiles(ctx context.Context, paths []string) {
	// the request may already be cancelled; cleanup must still run
	ctx = context.WithoutCancel(ctx)
	for _, p := range paths {
		if err := s.files.Delete(ctx, p); err != nil {
			s.events.RecordUpload("failed")
			s.log.WarnContext(ctx, "defects.file_cleanup_failed", "path", p, "err", err)
			continue
		}
		s.events.RecordUpload("cleaned")
	}
}

// NormalizePage applies the default and maximum page size, and caps the
// page so its offset cannot overflow.
func NormalizePage(q defect.ListQuery) defect.ListQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = DefaultPageSize
	}
	if q.Limit > MaxPageSize {
		q.Limit = MaxPageSize
	}
	if maxPage := math.MaxInt / q.Limit; q.Page > maxPage {
		q.Page = maxPage
	}
	q.Search = strings.TrimSpace(q.Search)
	return q
}

func totalPages(total, limit int) int {
	if total == 0 || limit <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}

// List returns the caller's defects, or every defect for admins.
func (s *Defects) List(ctx context.Context, id identity.Identity, q defect.ListQuery) (defect.Page, error) {
	if id.IsZero() {
		return defect.Page{}, apperr.Unauthenticated("Authentication required")
	}

	q = NormalizePage(q)

	items, total, err := s.store.List(ctx, defect.ListFilter{
		OwnerID: authz.ListScope(id),
		Search:  q.Search,
		Limit:   q.Limit,
		Offset:  (q.Page - 1) * q.Limit,
	})
	if err != nil {
		return defect.Page{}, translate(err)
	}

	s.hydrateReporters(ctx, items)

	return defect.Page{
		Items:      items,
		Page:       q.Page,
		Limit:      q.Limit,
		TotalPages: totalPages(total, q.Limit),
		TotalItems: total,
	}, nil
}

// load fetches a defect and applies the access rule for action. A missing
// defect is NotFound for everyone; an existing one the caller may not touch
// is Forbidden.
func (s *Defects) load(ctx context.Context, id identity.Identity, defectID string, action authz.Action) (defect.Defect, error) {
	if id.IsZero() {
		return defect.Defect{}, apperr.Unauthenticated("Authentication required")
	}

	d, err := s.store.GetByID(ctx, defectID)
	if err != nil {
		return defect.Defect{}, translate(err)
	}

	if err := authz.Authorize(id, action, &d); err != nil {
		return defect.Defect{}, err
	}
	return d, nil
}

func (s *Defects) Get(ctx context.Context, id identity.Identity, defectID string) (defect.Defect, error) {
	d, err := s.load(ctx, id, defectID, authz.ActionRead)
	if err != nil {
		return defect.Defect{}, err
	}

	return s.withReporter(ctx, d), nil
}

// Update changes only the supplied fields. The owner never changes.
func (s *Defects) Update(ctx context.Context, id identity.Identity, defectID string, in defect.UpdateInput) (defect.Defect, error) {
	current, err := s.load(ctx, id, defectID, authz.ActionUpdate)
	if err != nil {
		return defect.Defect{}, err
	}

	in.Title = s.cleanPtr(in.Title)
	in.Description = s.cleanPtr(in.Description)
	if in.Location != nil {
		loc := *in.Location
		loc.Text = s.clean(loc.Text)
		in.Location = &loc
	}

	patch, err := in.Patch()
	if err != nil {
		return defect.Defect{}, translate(err)
	}
	if patch.IsEmpty() {
		return s.withReporter(ctx, current), nil
	}

	d, err := s.store.Update(ctx, defectID, patch)
	if err != nil {
		return defect.Defect{}, translate(err)
	}

	s.events.RecordDefectEvent("updated")
	return s.withReporter(ctx, d), nil
}

// SetStatus is gated on role only; any known status may follow any other.
func (s *Defects) SetStatus(ctx context.Context, id identity.Identity, defectID, status string) (defect.Defect, error) {
	if err := authz.Authorize(id, authz.ActionSetStatus, nil); err != nil {
		return defect.Defect{}, err
	}

	next, err := defect.ParseStatus(status)
	if err != nil {
		return defect.Defect{}, translate(err)
	}

	current, err := s.store.GetByID(ctx, defectID)
	if err != nil {
		return defect.Defect{}, translate(err)
	}
	if !defect.CanTransition(current.Status, next) {
		return defect.Defect{}, apperr.Validation("Status change not allowed")
	}

	d, err := s.store.SetStatus(ctx, defectID, next)
	if err != nil {
		return defect.Defect{}, translate(err)
	}

	s.events.RecordDefectEvent("status_changed")
	s.log.InfoContext(ctx, "defects.status_changed",
		"defect_id", defectID, "from", current.Status, "to", next, "actor_id", id.UserID)

	return s.withReporter(ctx, d), nil
}

// Delete removes the defect with its comments and notifications, then its
// image files on a best-effort basis.
func (s *Defects) Delete(ctx context.Context, id identity.Identity, defectID string) error {
	d, err := s.load(ctx, id, defectID, authz.ActionDelete)
	if err != nil {
		return err
	}

	if err := s.store.Delete(ctx, defectID); err != nil {
		return translate(err)
	}

	s.removeFiles(ctx, d.Images)
	s.events.RecordDefectEvent("deleted")
	return nil
}

func (s *Defects) withReporter(ctx context.Context, d defect.Defect) defect.Defect {
	items := []defect.Defect{d}
	s.hydrateReporters(ctx, items)
	return items[0]
}

// hydrateReporters attaches the owner's summary to each defect. A lookup
// failure leaves Reporter empty rather than failing the read.
func (s *Defects) hydrateReporters(ctx context.Context, items []defect.Defect) {
	if s.users == nil || len(items) == 0 {
		return
	}

	seen := make(map[string]struct{}, len(items))
	ids := make([]string, 0, len(items))
	for _, d := range items {
		if _, ok := seen[d.OwnerID]; !ok {
			seen[d.OwnerID] = struct{}{}
			ids = append(ids, d.OwnerID)
		}
	}

	summaries, err := s.users.Summaries(ctx, ids)
	if err != nil {
		s.log.WarnContext(ctx, "defects.reporter_lookup_failed", "err", err)
		return
	}

	for i := range items {
		if sum, ok := summaries[items[i].OwnerID]; ok {
			items[i].Reporter = &sum
		}
	}
}
