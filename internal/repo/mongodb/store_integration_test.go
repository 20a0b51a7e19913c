package mongodb

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/geocoder89/civicfix/internal/db"
	"github.com/geocoder89/civicfix/internal/domain/defect"
	"github.com/geocoder89/civicfix/internal/domain/user"
	"github.com/google/uuid"
)

func setupStores(t *testing.T) (*DefectsStore, *UsersStore) {
	t.Helper()

	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set")
	}

	ctx := context.Background()
	client, database, err := db.NewMongo(ctx, uri, "civicfix_test_"+uuid.NewString()[:8])
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() {
		_ = database.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})

	defects := NewDefectsStore(database, nil)
	users := NewUsersStore(database, nil)
	if err := EnsureIndexes(ctx, defects, users); err != nil {
		t.Fatalf("indexes: %v", err)
	}
	return defects, users
}

func TestUsersStoreUniqueEmail(t *testing.T) {
	_, users := setupStores(t)
	ctx := context.Background()

	u := user.New(user.RegisterRequest{FirstName: "A", LastName: "B", Email: "A@x.com"}, "h", user.RoleUser)
	if err := users.Create(ctx, u); err != nil {
		t.Fatalf("create: %v", err)
	}

	dup := user.New(user.RegisterRequest{FirstName: "C", LastName: "D", Email: "a@X.com"}, "h", user.RoleUser)
	if err := users.Create(ctx, dup); !errors.Is(err, user.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}

	got, err := users.GetByEmail(ctx, "A@X.COM")
	if err != nil || got.ID != u.ID {
		t.Fatalf("get by email: %v", err)
	}
}

func TestDefectsStoreLifecycle(t *testing.T) {
	defects, _ := setupStores(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Millisecond)
	var ids []string
	for i, title := range []string{"Pothole (deep)", "Broken light", "Flooded road"} {
		d, err := defect.NewFromCreateInput("owner", defect.CreateInput{
			Title:       title,
			Description: "details",
			Location:    defect.LocationInput{Text: "Main St"},
		}, nil, 6)
		if err != nil {
			t.Fatalf("new: %v", err)
		}
		d.CreatedAt = base.Add(time.Duration(i) * time.Second)
		if err := defects.Create(ctx, d); err != nil {
			t.Fatalf("create: %v", err)
		}
		ids = append(ids, d.ID)
	}

	items, total, err := defects.List(ctx, defect.ListFilter{OwnerID: "owner", Limit: 2})
	if err != nil || total != 3 || len(items) != 2 || items[0].ID != ids[2] {
		t.Fatalf("list: %v total=%d items=%d", err, total, len(items))
	}

	// regex metacharacters match literally
	_, total, _ = defects.List(ctx, defect.ListFilter{Search: "(DEEP)", Limit: 10})
	if total != 1 {
		t.Fatalf("expected literal match, got %d", total)
	}

	at := time.Now().UTC()
	got, err := defects.AppendComment(ctx, ids[0], defect.NewAdminComment("admin", "Soon", at), defect.NewCommentNotification("Soon", at))
	if err != nil || len(got.AdminComments) != 1 || got.Notifications[0].Text != "Admin commented: Soon" {
		t.Fatalf("append: %v %+v", err, got)
	}

	sum, err := defects.UnreadSummary(ctx, "owner")
	if err != nil || sum.Total != 1 || sum.Defects[0].DefectID != ids[0] {
		t.Fatalf("unread: %v %+v", err, sum)
	}

	first, err := defects.MarkNotificationsRead(ctx, ids[0])
	if err != nil || first.UnreadCount() != 0 {
		t.Fatalf("mark read: %v", err)
	}
	second, _ := defects.MarkNotificationsRead(ctx, ids[0])
	if !second.UpdatedAt.Equal(first.UpdatedAt) {
		t.Fatalf("second mark read changed the document")
	}

	srcs, err := defects.SuggestionSources(ctx, "main", "", 10)
	if err != nil || len(srcs) != 3 || srcs[0].LocationText != "Main St" {
		t.Fatalf("suggestions: %v %+v", err, srcs)
	}

	if err := defects.Delete(ctx, ids[0]); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := defects.GetByID(ctx, ids[0]); !errors.Is(err, defect.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
