package store

import (
	"context"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/apphub/apphub-server/internal/domain"
)

var folder = cases.Fold()

// Fold normalizes s for case- and accent-insensitive comparison.
// "Café" and "CAFE" fold to the same string.
func Fold(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	return folder.String(strings.TrimSpace(stripped))
}

// MatchesQuery reports whether the folded query occurs in any of the fields.
// An empty query matches nothing.
func MatchesQuery(query string, fields ...string) bool {
	q := Fold(query)
	if q == "" {
		return false
	}
	for _, f := range fields {
		if strings.Contains(Fold(f), q) {
			return true
		}
	}
	return false
}

// NormalizeEmail lowercases and trims an email for lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// RecentLimit applies the default to a non-positive limit.
func RecentLimit(limit int) int {
	if limit <= 0 {
		return domain.DefaultRecentLimit
	}
	return limit
}

// BuildRecent turns raw access entries into recent apps: one per app, newest
// first, skipping apps that no longer exist, at most limit long.
func BuildRecent(entries []domain.AccessEntry, apps map[string]domain.App, limit int) []domain.RecentApp {
	limit = RecentLimit(limit)
	deduped := domain.DedupeRecent(entries, max(len(entries), 1))

	out := make([]domain.RecentApp, 0, min(limit, len(deduped)))
	for _, e := range deduped {
		app, ok := apps[e.AppID]
		if !ok {
			continue
		}
		out = append(out, domain.RecentApp{App: app, LastAccessedAt: e.AccessedAt})
		if len(out) == limit {
			break
		}
	}
	return out
}

// HistoryPager returns the next page of a user's access history, newest
// first. more is false once history is exhausted.
type HistoryPager func(ctx context.Context) (page []domain.AccessEntry, more bool, err error)

// AppResolver loads the apps that still exist among ids.
type AppResolver func(ctx context.Context, ids []string) (map[string]domain.App, error)

// CollectRecent pages through history until limit distinct existing apps are
// found or history runs out. Pages must continue one global newest-first
// order, so the first entry seen for an app is its latest access.
func CollectRecent(ctx context.Context, limit int, next HistoryPager, resolve AppResolver) ([]domain.RecentApp, error) {
	limit = RecentLimit(limit)
	out := make([]domain.RecentApp, 0, limit)
	seen := make(map[string]bool)

	for {
		page, more, err := next(ctx)
		if err != nil {
			return nil, err
		}

		var fresh []domain.AccessEntry
		for _, e := range page {
			if !seen[e.AppID] {
				seen[e.AppID] = true
				fresh = append(fresh, e)
			}
		}

		if len(fresh) > 0 {
			ids := make([]string, 0, len(fresh))
			for _, e := range fresh {
				ids = append(ids, e.AppID)
			}
			apps, err := resolve(ctx, ids)
			if err != nil {
				return nil, err
			}
			for _, e := range fresh {
				app, ok := apps[e.AppID]
				if !ok {
					continue
				}
				out = append(out, domain.RecentApp{App: app, LastAccessedAt: e.AccessedAt})
				if len(out) == limit {
					return out, nil
				}
			}
		}

		if !more {
			return out, nil
		}
	}
}
