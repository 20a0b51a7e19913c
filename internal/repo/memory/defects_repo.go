package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/geocoder89/civicfix/internal/domain/defect"
)

// DefectsRepo is an in-process store used in dev mode and tests. Every
// method holds the lock for the whole read-modify-write and hands out
// deep copies.
type DefectsRepo struct {
	mu    sync.RWMutex
	items map[string]defect.Defect
	now   func() time.Time
}

func NewDefectsRepo() *DefectsRepo {
	return &DefectsRepo{
		items: make(map[string]defect.Defect),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (r *DefectsRepo) Create(_ context.Context, d defect.Defect) error {
	r.mu.Lock()
	r.items[d.ID] = d.Clone()
	r.mu.Unlock()

	return nil
}

func (r *DefectsRepo) GetByID(_ context.Context, id string) (defect.Defect, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.items[id]
	if !ok {
		return defect.Defect{}, defect.ErrNotFound
	}
	return d.Clone(), nil
}

func (r *DefectsRepo) List(_ context.Context, f defect.ListFilter) ([]defect.Defect, int, error) {
	r.mu.RLock()
	matched := make([]defect.Defect, 0, len(r.items))
	for _, d := range r.items {
		if f.OwnerID != "" && d.OwnerID != f.OwnerID {
			continue
		}
		if f.Search != "" && !containsFold(d.Title, f.Search) && !containsFold(d.Description, f.Search) {
			continue
		}
		matched = append(matched, d.Clone())
	}
	r.mu.RUnlock()

	sortNewestFirst(matched)

	total := len(matched)
	start := min(max(f.Offset, 0), total)
	end := total
	if f.Limit > 0 {
		end = min(start+f.Limit, total)
	}

	return matched[start:end], total, nil
}

func (r *DefectsRepo) Update(_ context.Context, id string, p defect.Patch) (defect.Defect, error) {
	return r.mutate(id, func(d *defect.Defect) bool {
		if p.Title != nil {
			d.Title = *p.Title
		}
		if p.Description != nil {
			d.Description = *p.Description
		}
		if p.Type != nil {
			d.Type = *p.Type
		}
		if p.Location != nil {
			d.Location = *p.Location
		}
		return true
	})
}

func (r *DefectsRepo) SetStatus(_ context.Context, id string, status defect.Status) (defect.Defect, error) {
	return r.mutate(id, func(d *defect.Defect) bool {
		d.Status = status
		return true
	})
}

func (r *DefectsRepo) AppendComment(_ context.Context, id string, c defect.AdminComment, n defect.Notification) (defect.Defect, error) {
	return r.mutate(id, func(d *defect.Defect) bool {
		d.AdminComments = append(d.AdminComments, c)
		d.Notifications = append(d.Notifications, n)
		return true
	})
}

func (r *DefectsRepo) MarkNotificationsRead(_ context.Context, id string) (defect.Defect, error) {
	return r.mutate(id, func(d *defect.Defect) bool {
		changed := false
		for i := range d.Notifications {
			if !d.Notifications[i].Read {
				d.Notifications[i].Read = true
				changed = true
			}
		}
		return changed
	})
}

func (r *DefectsRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return defect.ErrNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *DefectsRepo) SuggestionSources(_ context.Context, q, ownerID string, limit int) ([]defect.SuggestionSource, error) {
	r.mu.RLock()
	matched := make([]defect.Defect, 0)
	for _, d := range r.items {
		if ownerID != "" && d.OwnerID != ownerID {
			continue
		}
		if containsFold(d.Title, q) || containsFold(d.Location.Text, q) || containsFold(string(d.Type), q) {
			matched = append(matched, d)
		}
	}
	r.mu.RUnlock()

	sortNewestFirst(matched)
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}

	out := make([]defect.SuggestionSource, 0, len(matched))
	for _, d := range matched {
		out = append(out, defect.SuggestionSource{Title: d.Title, LocationText: d.Location.Text, Type: d.Type})
	}
	return out, nil
}

func (r *DefectsRepo) UnreadSummary(_ context.Context, ownerID string) (defect.UnreadSummary, error) {
	r.mu.RLock()
	owned := make([]defect.Defect, 0)
	for _, d := range r.items {
		if d.OwnerID == ownerID && d.UnreadCount() > 0 {
			owned = append(owned, d)
		}
	}
	r.mu.RUnlock()

	sortNewestFirst(owned)

	out := defect.UnreadSummary{Defects: make([]defect.UnreadCount, 0, len(owned))}
	for _, d := range owned {
		n := d.UnreadCount()
		out.Total += n
		out.Defects = append(out.Defects, defect.UnreadCount{DefectID: d.ID, Title: d.Title, Unread: n})
	}
	return out, nil
}

// mutate applies fn under the write lock. fn reports whether it changed
// anything; unchanged documents keep their updated_at.
func (r *DefectsRepo) mutate(id string, fn func(d *defect.Defect) bool) (defect.Defect, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.items[id]
	if !ok {
		return defect.Defect{}, defect.ErrNotFound
	}

	d = d.Clone()
	if fn(&d) {
		d.UpdatedAt = r.now()
		r.items[id] = d
	}
	return d.Clone(), nil
}

func sortNewestFirst(items []defect.Defect) {
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].ID > items[j].ID
	})
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
