package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/geocoder89/civicfix/internal/apperr"
	"github.com/geocoder89/civicfix/internal/identity"
	"github.com/geocoder89/civicfix/internal/utils"
)

const (
	suggestionSourceLimit = 10
	suggestionLimit       = 10
)

// Suggestions returns up to ten distinct values drawn from the title,
// location text and type of the newest matching defects, in first seen
// order. Matching is global unless owner scoping is configured.
func (s *Defects) Suggestions(ctx context.Context, id identity.Identity, q string) ([]string, error) {
	if id.IsZero() {
		return nil, apperr.Unauthenticated("Authentication required")
	}

	q = strings.TrimSpace(q)
	if q == "" {
		return []string{}, nil
	}

	ownerID := ""
	if s.cfg.SuggestionsOwnerScoped && !id.IsAdmin() {
		ownerID = id.UserID
	}

	key := utils.BuildSuggestionCacheKey(ownerID, q)
	if cached, ok := s.cachedSuggestions(ctx, key); ok {
		return cached, nil
	}

	sources, err := s.store.SuggestionSources(ctx, q, ownerID, suggestionSourceLimit)
	if err != nil {
		return nil, translate(err)
	}

	out := make([]string, 0, suggestionLimit)
	seen := make(map[string]struct{}, suggestionLimit)
	add := func(v string) {
		if v == "" || len(out) >= suggestionLimit {
			return
		}
		if _, dup := seen[v]; dup {
			return
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}

	for _, src := range sources {
		add(src.Title)
		add(src.LocationText)
		add(string(src.Type))
	}

	s.storeSuggestions(ctx, key, out)
	return out, nil
}

func (s *Defects) cachedSuggestions(ctx context.Context, key string) ([]string, bool) {
	if s.cache == nil {
		return nil, false
	}
	b, ok := s.cache.Get(ctx, key)
	if !ok {
		return nil, false
	}
	var out []string
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, false
	}
	return out, true
}

func (s *Defects) storeSuggestions(ctx context.Context, key string, vals []string) {
	if s.cache == nil {
		return
	}
	b, err := json.Marshal(vals)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, b); err != nil {
		s.log.WarnContext(ctx, "defects.suggestion_cache_write_failed", "err", err)
	}
}
