package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/geocoder89/civicfix/internal/apperr"
	"github.com/geocoder89/civicfix/internal/auth"
	"github.com/geocoder89/civicfix/internal/cache"
	"github.com/geocoder89/civicfix/internal/domain/defect"
	"github.com/geocoder89/civicfix/internal/domain/user"
	"github.com/geocoder89/civicfix/internal/identity"
	"github.com/geocoder89/civicfix/internal/notifications"
	"github.com/geocoder89/civicfix/internal/repo/memory"
	"github.com/geocoder89/civicfix/internal/security"
	"github.com/geocoder89/civicfix/internal/storage"
	"golang.org/x/crypto/bcrypt"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeFiles struct {
	mu      sync.Mutex
	stored  map[string]bool
	n       int
	storeFn func(up storage.Upload) error
}

func newFakeFiles() *fakeFiles {
	return &fakeFiles{stored: map[string]bool{}}
}

func (f *fakeFiles) Store(_ context.Context, up storage.Upload) (string, error) {
	if f.storeFn != nil {
		if err := f.storeFn(up); err != nil {
			return "", err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n++
	p := fmt.Sprintf("/uploads/%d.png", f.n)
	f.stored[p] = true
	return p, nil
}

func (f *fakeFiles) Delete(_ context.Context, p string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.stored, p)
	return nil
}

func (f *fakeFiles) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.stored)
}

type fakeNotifier struct {
	mu       sync.Mutex
	notices  []notifications.CommentNotice
	notifyFn func() error
}

func (f *fakeNotifier) NotifyComment(_ context.Context, n notifications.CommentNotice) error {
	if f.notifyFn != nil {
		if err := f.notifyFn(); err != nil {
			return err
		}
	}
	f.mu.Lock()
	f.notices = append(f.notices, n)
	f.mu.Unlock()
	return nil
}

// failingCreateStore rejects inserts so the cleanup path runs.
type failingCreateStore struct {
	*memory.DefectsRepo
}

func (failingCreateStore) Create(context.Context, defect.Defect) error {
	return errors.New("insert failed")
}

type harness struct {
	accounts *Accounts
	defects  *Defects
	store    *memory.DefectsRepo
	users    *memory.UsersRepo
	files    *fakeFiles
	notifier *fakeNotifier
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	store := memory.NewDefectsRepo()
	users := memory.NewUsersRepo()
	files := newFakeFiles()
	notifier := &fakeNotifier{}
	hasher := security.NewBcryptHasher(bcrypt.MinCost)

	return &harness{
		accounts: NewAccounts(users, hasher, auth.NewManager("test-secret", time.Hour), discardLogger()),
		defects: NewDefects(DefectsDeps{
			Store:     store,
			Users:     users,
			Files:     files,
			Sanitizer: security.NewSanitizer(),
			Notifier:  notifier,
			Cache:     cache.New(time.Minute),
			Log:       discardLogger(),
		}, DefectsConfig{MaxImages: 6}),
		store:    store,
		users:    users,
		files:    files,
		notifier: notifier,
	}
}

func (h *harness) register(t *testing.T, email string, role user.Role) identity.Identity {
	t.Helper()

	u := user.New(user.RegisterRequest{FirstName: "F", LastName: "L", Email: email, Phone: "1", Location: "x"}, "hash", role)
	if err := h.users.Create(context.Background(), u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return identity.Identity{UserID: u.ID, Email: u.Email, Role: role}
}

func (h *harness) create(t *testing.T, id identity.Identity, title string) defect.Defect {
	t.Helper()

	d, err := h.defects.Create(context.Background(), id, defect.CreateInput{
		Title:       title,
		Description: "description",
		Location:    defect.LocationInput{Text: "Main St"},
	}, nil)
	if err != nil {
		t.Fatalf("create defect: %v", err)
	}
	return d
}

func uploads(n int) []storage.Upload {
	out := make([]storage.Upload, n)
	for i := range out {
		out[i] = storage.Upload{Filename: fmt.Sprintf("%d.png", i), Data: []byte("img")}
	}
	return out
}

func wantKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	if apperr.KindOf(err) != kind {
		t.Fatalf("expected %s, got %v", kind, err)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	req := user.RegisterRequest{FirstName: "A", LastName: "B", Email: "a@x.com", Phone: "1", Location: "x", Password: "secret1"}
	sess, err := h.accounts.Register(ctx, req)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if sess.Token == "" || sess.User.Role != user.RoleUser || sess.User.Email != "a@x.com" {
		t.Fatalf("unexpected session: %+v", sess)
	}

	req.Email = "A@X.com"
	_, err = h.accounts.Register(ctx, req)
	wantKind(t, err, apperr.KindValidation)
}

func TestRegisterRejectsPasswordOverBcryptLimit(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// 40 characters, 80 bytes
	req := user.RegisterRequest{FirstName: "A", LastName: "B", Email: "a@x.com", Phone: "1", Location: "x", Password: strings.Repeat("é", 40)}
	_, err := h.accounts.Register(ctx, req)
	wantKind(t, err, apperr.KindValidation)

	if _, err := h.accounts.Login(ctx, user.LoginRequest{Email: "a@x.com", Password: req.Password}); err == nil {
		t.Fatalf("expected no account to be created")
	}

	req.Password = strings.Repeat("é", 36)
	if _, err := h.accounts.Register(ctx, req); err != nil {
		t.Fatalf("72-byte password should register: %v", err)
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.accounts.Register(ctx, user.RegisterRequest{FirstName: "A", LastName: "B", Email: "a@x.com", Phone: "1", Location: "x", Password: "secret1"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	_, errWrongPass := h.accounts.Login(ctx, user.LoginRequest{Email: "a@x.com", Password: "nope"})
	_, errUnknown := h.accounts.Login(ctx, user.LoginRequest{Email: "b@x.com", Password: "secret1"})

	wantKind(t, errWrongPass, apperr.KindUnauthenticated)
	wantKind(t, errUnknown, apperr.KindUnauthenticated)
	if apperr.MessageOf(errWrongPass) != apperr.MessageOf(errUnknown) {
		t.Fatalf("messages differ: %q vs %q", apperr.MessageOf(errWrongPass), apperr.MessageOf(errUnknown))
	}

	sess, err := h.accounts.Login(ctx, user.LoginRequest{Email: "A@x.com", Password: "secret1"})
	if err != nil || sess.Token == "" {
		t.Fatalf("login: %v", err)
	}

	prof, err := h.accounts.Profile(ctx, identity.Identity{UserID: sess.User.ID})
	if err != nil || prof.Email != "a@x.com" {
		t.Fatalf("profile: %v %+v", err, prof)
	}
}

func TestCreateStoresImagesAndKeepsText(t *testing.T) {
	h := newHarness(t)
	owner := h.register(t, "o@x.com", user.RoleUser)

	d, err := h.defects.Create(context.Background(), owner, defect.CreateInput{
		Title:       " Pothole <near> school ",
		Description: "deep",
		Type:        "urgent",
		Location:    defect.LocationInput{Text: "Main St"},
	}, uploads(2))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if d.Title != "Pothole <near> school" || d.Type != defect.TypeUrgent || d.Status != defect.StatusPending {
		t.Fatalf("unexpected defect: %+v", d)
	}
	if len(d.Images) != 2 || h.files.count() != 2 {
		t.Fatalf("expected 2 images stored, got %v", d.Images)
	}
}

func TestCreateRejectsMoreThanSixImages(t *testing.T) {
	h := newHarness(t)
	owner := h.register(t, "o@x.com", user.RoleUser)

	_, err := h.defects.Create(context.Background(), owner, defect.CreateInput{
		Title: "t", Description: "d", Location: defect.LocationInput{Text: "l"},
	}, uploads(7))

	wantKind(t, err, apperr.KindValidation)
	if h.files.count() != 0 {
		t.Fatalf("expected nothing stored, got %d files", h.files.count())
	}
}

func TestCreateValidationStoresNothing(t *testing.T) {
	h := newHarness(t)
	owner := h.register(t, "o@x.com", user.RoleUser)

	_, err := h.defects.Create(context.Background(), owner, defect.CreateInput{
		Title: "t", Description: "d", Location: defect.LocationInput{Text: "  "},
	}, uploads(2))

	wantKind(t, err, apperr.KindValidation)
	if h.files.count() != 0 {
		t.Fatalf("expected no files for invalid defect")
	}
}

func TestCreateCleansUpFilesWhenInsertFails(t *testing.T) {
	h := newHarness(t)
	owner := h.register(t, "o@x.com", user.RoleUser)
	h.defects.store = failingCreateStore{h.store}

	_, err := h.defects.Create(context.Background(), owner, defect.CreateInput{
		Title: "t", Description: "d", Location: defect.LocationInput{Text: "l"},
	}, uploads(3))

	wantKind(t, err, apperr.KindInternal)
	if h.files.count() != 0 {
		t.Fatalf("expected stored files to be removed, %d left", h.files.count())
	}
}

func TestCreateCleansUpWhenLaterFileRejected(t *testing.T) {
	h := newHarness(t)
	owner := h.register(t, "o@x.com", user.RoleUser)

	calls := 0
	h.files.storeFn = func(storage.Upload) error {
		calls++
		if calls == 2 {
			return storage.ErrUnsupportedType
		}
		return nil
	}

	_, err := h.defects.Create(context.Background(), owner, defect.CreateInput{
		Title: "t", Description: "d", Location: defect.LocationInput{Text: "l"},
	}, uploads(3))

	wantKind(t, err, apperr.KindValidation)
	if h.files.count() != 0 {
		t.Fatalf("expected first file removed, %d left", h.files.count())
	}
}

func TestUpdateKeepsOwnerAndUnsuppliedFields(t *testing.T) {
	h := newHarness(t)
	owner := h.register(t, "o@x.com", user.RoleUser)
	admin := h.register(t, "a@x.com", user.RoleAdmin)
	d := h.create(t, owner, "Pothole")
	ctx := context.Background()

	title := "Bigger pothole"
	got, err := h.defects.Update(ctx, owner, d.ID, defect.UpdateInput{Title: &title})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Title != title || got.Description != d.Description || got.Location.Text != d.Location.Text {
		t.Fatalf("partial update changed other fields: %+v", got)
	}

	typ := "hazardous"
	got, err = h.defects.Update(ctx, admin, d.ID, defect.UpdateInput{Type: &typ, Location: &defect.LocationInput{Text: "Elm St"}})
	if err != nil {
		t.Fatalf("admin update: %v", err)
	}
	if got.OwnerID != owner.UserID {
		t.Fatalf("owner changed to %s", got.OwnerID)
	}
	if got.Type != defect.TypeHazardous || got.Location.Text != "Elm St" || got.Title != title {
		t.Fatalf("unexpected update: %+v", got)
	}

	empty := ""
	_, err = h.defects.Update(ctx, owner, d.ID, defect.UpdateInput{Title: &empty})
	wantKind(t, err, apperr.KindValidation)
}

func TestUpdateByStrangerIsForbidden(t *testing.T) {
	h := newHarness(t)
	owner := h.register(t, "o@x.com", user.RoleUser)
	stranger := h.register(t, "s@x.com", user.RoleUser)
	d := h.create(t, owner, "Pothole")

	title := "mine now"
	_, err := h.defects.Update(context.Background(), stranger, d.ID, defect.UpdateInput{Title: &title})
	wantKind(t, err, apperr.KindForbidden)

	_, err = h.defects.Update(context.Background(), stranger, "missing", defect.UpdateInput{Title: &title})
	wantKind(t, err, apperr.KindNotFound)

	_, err = h.defects.Get(context.Background(), stranger, d.ID)
	wantKind(t, err, apperr.KindForbidden)

	err = h.defects.Delete(context.Background(), stranger, d.ID)
	wantKind(t, err, apperr.KindForbidden)
}

func TestSetStatus(t *testing.T) {
	h := newHarness(t)
	owner := h.register(t, "o@x.com", user.RoleUser)
	mod := h.register(t, "m@x.com", user.RoleModerator)
	admin := h.register(t, "a@x.com", user.RoleAdmin)
	d := h.create(t, owner, "Pothole")
	ctx := context.Background()

	_, err := h.defects.SetStatus(ctx, owner, d.ID, "resolved")
	wantKind(t, err, apperr.KindForbidden)

	_, err = h.defects.SetStatus(ctx, mod, d.ID, "done")
	wantKind(t, err, apperr.KindValidation)

	_, err = h.defects.SetStatus(ctx, mod, "missing", "verified")
	wantKind(t, err, apperr.KindNotFound)

	got, err := h.defects.SetStatus(ctx, mod, d.ID, "resolved")
	if err != nil || got.Status != defect.StatusResolved {
		t.Fatalf("moderator set status: %v", err)
	}

	// reopening a resolved report is allowed
	got, err = h.defects.SetStatus(ctx, admin, d.ID, "pending")
	if err != nil || got.Status != defect.StatusPending {
		t.Fatalf("admin reopen: %v", err)
	}

	stored, _ := h.store.GetByID(ctx, d.ID)
	if !stored.Status.IsValid() {
		t.Fatalf("stored status %q is not valid", stored.Status)
	}
}

func TestListScopingAndPagination(t *testing.T) {
	h := newHarness(t)
	alice := h.register(t, "alice@x.com", user.RoleUser)
	bob := h.register(t, "bob@x.com", user.RoleUser)
	admin := h.register(t, "admin@x.com", user.RoleAdmin)
	ctx := context.Background()

	for i := 0; i < 13; i++ {
		h.create(t, alice, fmt.Sprintf("alice %02d", i))
	}
	h.create(t, bob, "bob 00")
	h.create(t, bob, "bob 01")

	seen := map[string]bool{}
	for p := 1; p <= 3; p++ {
		page, err := h.defects.List(ctx, alice, defect.ListQuery{Page: p, Limit: 5})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if page.TotalItems != 13 || page.TotalPages != 3 {
			t.Fatalf("unexpected totals: %+v", page)
		}
		if len(page.Items) > 5 {
			t.Fatalf("page larger than limit")
		}
		for _, d := range page.Items {
			if d.OwnerID != alice.UserID {
				t.Fatalf("non-admin saw someone else's defect")
			}
			if seen[d.ID] {
				t.Fatalf("duplicate across pages: %s", d.ID)
			}
			seen[d.ID] = true
			if d.Reporter == nil || d.Reporter.Email != "alice@x.com" {
				t.Fatalf("expected reporter hydration, got %+v", d.Reporter)
			}
		}
	}
	if len(seen) != 13 {
		t.Fatalf("expected all 13 across pages, got %d", len(seen))
	}

	page, err := h.defects.List(ctx, admin, defect.ListQuery{})
	if err != nil {
		t.Fatalf("admin list: %v", err)
	}
	if page.TotalItems != 15 || page.Limit != DefaultPageSize || len(page.Items) != DefaultPageSize {
		t.Fatalf("unexpected admin page: total=%d limit=%d items=%d", page.TotalItems, page.Limit, len(page.Items))
	}

	page, _ = h.defects.List(ctx, admin, defect.ListQuery{Search: "BOB"})
	if page.TotalItems != 2 {
		t.Fatalf("expected search to find 2, got %d", page.TotalItems)
	}
}

func TestNormalizePage(t *testing.T) {
	q := NormalizePage(defect.ListQuery{Page: -1, Limit: 500, Search: "  x "})
	if q.Page != 1 || q.Limit != MaxPageSize || q.Search != "x" {
		t.Fatalf("unexpected: %+v", q)
	}
	q = NormalizePage(defect.ListQuery{Page: math.MaxInt, Limit: 6})
	if off := (q.Page - 1) * q.Limit; off < 0 {
		t.Fatalf("offset overflowed: page=%d offset=%d", q.Page, off)
	}
	if totalPages(0, 6) != 0 || totalPages(13, 5) != 3 || totalPages(10, 5) != 2 {
		t.Fatalf("unexpected totalPages")
	}
}

func TestListHugePageIsEmpty(t *testing.T) {
	h := newHarness(t)
	owner := h.register(t, "o@x.com", user.RoleUser)
	h.create(t, owner, "only one")

	page, err := h.defects.List(context.Background(), owner, defect.ListQuery{Page: math.MaxInt, Limit: 6})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Items) != 0 || page.TotalItems != 1 || page.Page <= 1 {
		t.Fatalf("expected an empty page past the end, got page=%d items=%d", page.Page, len(page.Items))
	}
}

func TestWriteResponsesCarryReporter(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := h.register(t, "owner@x.com", user.RoleUser)
	admin := h.register(t, "admin@x.com", user.RoleAdmin)
	d := h.create(t, owner, "Pothole")

	title := "Deep pothole"
	steps := []struct {
		name string
		run  func() (defect.Defect, error)
	}{
		{"update", func() (defect.Defect, error) {
			return h.defects.Update(ctx, owner, d.ID, defect.UpdateInput{Title: &title})
		}},
		{"empty update", func() (defect.Defect, error) {
			return h.defects.Update(ctx, owner, d.ID, defect.UpdateInput{})
		}},
		{"set status", func() (defect.Defect, error) {
			return h.defects.SetStatus(ctx, admin, d.ID, "in_progress")
		}},
		{"comment", func() (defect.Defect, error) {
			return h.defects.AddComment(ctx, admin, d.ID, "On it")
		}},
		{"mark read", func() (defect.Defect, error) {
			return h.defects.MarkRead(ctx, owner, d.ID)
		}},
	}

	for _, step := range steps {
		got, err := step.run()
		if err != nil {
			t.Fatalf("%s: %v", step.name, err)
		}
		if got.Reporter == nil || got.Reporter.Email != "owner@x.com" {
			t.Fatalf("%s: expected reporter, got %+v", step.name, got.Reporter)
		}
	}
}

func TestAddCommentRoundTrip(t *testing.T) {
	h := newHarness(t)
	owner := h.register(t, "o@x.com", user.RoleUser)
	mod := h.register(t, "m@x.com", user.RoleModerator)
	admin := h.register(t, "a@x.com", user.RoleAdmin)
	d := h.create(t, owner, "Pothole")
	ctx := context.Background()

	_, err := h.defects.AddComment(ctx, mod, d.ID, "hello")
	wantKind(t, err, apperr.KindForbidden)

	_, err = h.defects.AddComment(ctx, admin, d.ID, "   ")
	wantKind(t, err, apperr.KindValidation)

	_, err = h.defects.AddComment(ctx, admin, "missing", "hello")
	wantKind(t, err, apperr.KindNotFound)

	if _, err := h.defects.AddComment(ctx, admin, d.ID, "first"); err != nil {
		t.Fatalf("first comment: %v", err)
	}
	if _, err := h.defects.AddComment(ctx, admin, d.ID, "second"); err != nil {
		t.Fatalf("second comment: %v", err)
	}

	got, err := h.defects.Get(ctx, owner, d.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.AdminComments) != 2 || got.AdminComments[1].Message != "second" || got.AdminComments[1].AdminID != admin.UserID {
		t.Fatalf("expected comment appended at the end: %+v", got.AdminComments)
	}
	if len(got.Notifications) != 2 || got.Notifications[1].Text != "Admin commented: second" || got.Notifications[1].Read {
		t.Fatalf("unexpected notifications: %+v", got.Notifications)
	}

	if len(h.notifier.notices) != 2 || h.notifier.notices[0].OwnerID != owner.UserID {
		t.Fatalf("unexpected notices: %+v", h.notifier.notices)
	}
}

func TestAddCommentSurvivesNotifierFailure(t *testing.T) {
	h := newHarness(t)
	owner := h.register(t, "o@x.com", user.RoleUser)
	admin := h.register(t, "a@x.com", user.RoleAdmin)
	d := h.create(t, owner, "Pothole")

	h.notifier.notifyFn = func() error { return errors.New("redis down") }

	got, err := h.defects.AddComment(context.Background(), admin, d.ID, "noted")
	if err != nil {
		t.Fatalf("expected comment to succeed, got %v", err)
	}
	if got.UnreadCount() != 1 {
		t.Fatalf("expected notification stored")
	}
}

func TestMarkReadIsIdempotentAndOwnerOnly(t *testing.T) {
	h := newHarness(t)
	owner := h.register(t, "o@x.com", user.RoleUser)
	admin := h.register(t, "a@x.com", user.RoleAdmin)
	d := h.create(t, owner, "Pothole")
	ctx := context.Background()

	for _, m := range []string{"one", "two"} {
		if _, err := h.defects.AddComment(ctx, admin, d.ID, m); err != nil {
			t.Fatalf("comment: %v", err)
		}
	}

	sum, err := h.defects.Unread(ctx, owner)
	if err != nil || sum.Total != 2 {
		t.Fatalf("unread before: %v %+v", err, sum)
	}

	_, err = h.defects.MarkRead(ctx, admin, d.ID)
	wantKind(t, err, apperr.KindForbidden)

	first, err := h.defects.MarkRead(ctx, owner, d.ID)
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	second, err := h.defects.MarkRead(ctx, owner, d.ID)
	if err != nil {
		t.Fatalf("second mark read: %v", err)
	}

	for _, got := range []defect.Defect{first, second} {
		for _, n := range got.Notifications {
			if !n.Read {
				t.Fatalf("expected all read: %+v", got.Notifications)
			}
		}
	}
	if !first.UpdatedAt.Equal(second.UpdatedAt) {
		t.Fatalf("second mark read changed the defect")
	}

	sum, _ = h.defects.Unread(ctx, owner)
	if sum.Total != 0 || len(sum.Defects) != 0 {
		t.Fatalf("expected nothing unread, got %+v", sum)
	}
}

func TestSuggestions(t *testing.T) {
	h := newHarness(t)
	alice := h.register(t, "alice@x.com", user.RoleUser)
	bob := h.register(t, "bob@x.com", user.RoleUser)
	ctx := context.Background()

	h.create(t, alice, "Main road pothole")
	h.create(t, bob, "Main road pothole")
	for i := 0; i < 12; i++ {
		h.create(t, bob, fmt.Sprintf("Main St light %02d", i))
	}

	got, err := h.defects.Suggestions(ctx, alice, "main")
	if err != nil {
		t.Fatalf("suggestions: %v", err)
	}
	if len(got) == 0 || len(got) > 10 {
		t.Fatalf("expected 1..10 suggestions, got %d", len(got))
	}

	seen := map[string]bool{}
	for _, v := range got {
		if v == "" || seen[v] {
			t.Fatalf("duplicate or empty suggestion in %v", got)
		}
		seen[v] = true
	}
	if !seen["Main St"] || !seen["normal"] {
		t.Fatalf("expected location and type values, got %v", got)
	}

	empty, err := h.defects.Suggestions(ctx, alice, "   ")
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected no suggestions for blank query")
	}
}

func TestSuggestionsOwnerScoped(t *testing.T) {
	h := newHarness(t)
	h.defects.cfg.SuggestionsOwnerScoped = true
	alice := h.register(t, "alice@x.com", user.RoleUser)
	bob := h.register(t, "bob@x.com", user.RoleUser)

	h.create(t, bob, "Secret bench")

	got, err := h.defects.Suggestions(context.Background(), alice, "secret")
	if err != nil {
		t.Fatalf("suggestions: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no cross-user suggestions, got %v", got)
	}
}

func TestSuggestionsAreCached(t *testing.T) {
	h := newHarness(t)
	alice := h.register(t, "alice@x.com", user.RoleUser)
	ctx := context.Background()

	h.create(t, alice, "Cracked pavement")
	first, _ := h.defects.Suggestions(ctx, alice, "cracked")

	h.create(t, alice, "Cracked wall")
	second, _ := h.defects.Suggestions(ctx, alice, "CRACKED")

	if strings.Join(first, "|") != strings.Join(second, "|") {
		t.Fatalf("expected cached result, got %v then %v", first, second)
	}
}

func TestDeleteRemovesDefectAndFiles(t *testing.T) {
	h := newHarness(t)
	owner := h.register(t, "o@x.com", user.RoleUser)
	ctx := context.Background()

	d, err := h.defects.Create(ctx, owner, defect.CreateInput{
		Title: "t", Description: "d", Location: defect.LocationInput{Text: "l"},
	}, uploads(2))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := h.defects.Delete(ctx, owner, d.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if h.files.count() != 0 {
		t.Fatalf("expected files removed")
	}

	_, err = h.defects.Get(ctx, owner, d.ID)
	wantKind(t, err, apperr.KindNotFound)
}
