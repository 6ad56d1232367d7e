package store_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apphub/apphub-server/internal/domain"
	"github.com/apphub/apphub-server/internal/store"
)

func TestError_IsMatchesDerivedErrors(t *testing.T) {
	err := store.NotFound("app", "app-1")

	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.NotErrorIs(t, err, store.ErrAlreadyExists)
	assert.Equal(t, "app app-1 not found", err.Error())

	wrapped := fmt.Errorf("load dashboard: %w", err)
	assert.ErrorIs(t, wrapped, store.ErrNotFound)
}

func TestError_WithCause(t *testing.T) {
	cause := errors.New("unique violation")
	err := store.ErrAlreadyExists.WithCause(cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, http.StatusConflict, err.HTTPCode())
	assert.Contains(t, err.Error(), "unique violation")
	assert.Nil(t, store.ErrAlreadyExists.Err, "sentinel must not be mutated")
}

func TestMatchesQuery(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		fields []string
		want   bool
	}{
		{"case insensitive name", "git", []string{"GitHub", ""}, true},
		{"description match", "code", []string{"GitHub", "Source CODE hosting"}, true},
		{"accent insensitive", "cafe", []string{"Café Menu"}, true},
		{"no match", "slack", []string{"GitHub", "code hosting"}, false},
		{"empty query", "", []string{"GitHub"}, false},
		{"blank query", "   ", []string{"GitHub"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, store.MatchesQuery(tt.query, tt.fields...))
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "alice@example.com", store.NormalizeEmail("  Alice@Example.COM "))
}

func TestBuildRecent(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	entries := []domain.AccessEntry{
		{AppID: "a", AccessedAt: base},
		{AppID: "b", AccessedAt: base.Add(time.Minute)},
		{AppID: "a", AccessedAt: base.Add(2 * time.Minute)},
		{AppID: "gone", AccessedAt: base.Add(3 * time.Minute)},
		{AppID: "c", AccessedAt: base.Add(-time.Hour)},
	}
	apps := map[string]domain.App{
		"a": {ID: "a", Name: "A"},
		"b": {ID: "b", Name: "B"},
		"c": {ID: "c", Name: "C"},
	}

	recent := store.BuildRecent(entries, apps, 0)
	require.Len(t, recent, 3)
	assert.Equal(t, "a", recent[0].ID)
	assert.Equal(t, base.Add(2*time.Minute), recent[0].LastAccessedAt)
	assert.Equal(t, "b", recent[1].ID)
	assert.Equal(t, "c", recent[2].ID)

	limited := store.BuildRecent(entries, apps, 2)
	require.Len(t, limited, 2)
	assert.Equal(t, "b", limited[1].ID, "deleted apps do not consume the limit")
}

// pagedHistory serves entries in fixed-size pages and records how many were requested.
type pagedHistory struct {
	entries []domain.AccessEntry
	size    int
	pages   int
}

func (p *pagedHistory) next(context.Context) ([]domain.AccessEntry, bool, error) {
	start := min(p.pages*p.size, len(p.entries))
	end := min(start+p.size, len(p.entries))
	p.pages++
	return p.entries[start:end], end < len(p.entries), nil
}

func TestCollectRecent_PagesPastBusyApp(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// Newest first: 25 opens of mail, then one of jira before them.
	var entries []domain.AccessEntry
	for i := range 25 {
		entries = append(entries, domain.AccessEntry{AppID: "mail", AccessedAt: base.Add(-time.Duration(i) * time.Second)})
	}
	entries = append(entries, domain.AccessEntry{AppID: "gone", AccessedAt: base.Add(-time.Hour)})
	entries = append(entries, domain.AccessEntry{AppID: "jira", AccessedAt: base.Add(-2 * time.Hour)})

	apps := map[string]domain.App{"mail": {ID: "mail"}, "jira": {ID: "jira"}}
	var resolved [][]string
	resolve := func(_ context.Context, ids []string) (map[string]domain.App, error) {
		resolved = append(resolved, ids)
		out := make(map[string]domain.App)
		for _, id := range ids {
			if a, ok := apps[id]; ok {
				out[id] = a
			}
		}
		return out, nil
	}

	pager := &pagedHistory{entries: entries, size: 10}
	recent, err := store.CollectRecent(context.Background(), 10, pager.next, resolve)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "mail", recent[0].ID)
	assert.Equal(t, base, recent[0].LastAccessedAt)
	assert.Equal(t, "jira", recent[1].ID)
	assert.Equal(t, 3, pager.pages)
	assert.Equal(t, [][]string{{"mail"}, {"gone", "jira"}}, resolved, "each app is resolved once")
}

func TestCollectRecent_StopsAtLimit(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var entries []domain.AccessEntry
	apps := make(map[string]domain.App)
	for i := range 30 {
		id := fmt.Sprintf("app-%02d", i)
		entries = append(entries, domain.AccessEntry{AppID: id, AccessedAt: base.Add(-time.Duration(i) * time.Minute)})
		apps[id] = domain.App{ID: id}
	}
	resolve := func(_ context.Context, ids []string) (map[string]domain.App, error) {
		out := make(map[string]domain.App)
		for _, id := range ids {
			out[id] = apps[id]
		}
		return out, nil
	}

	pager := &pagedHistory{entries: entries, size: 4}
	recent, err := store.CollectRecent(context.Background(), 5, pager.next, resolve)
	require.NoError(t, err)
	require.Len(t, recent, 5)
	assert.Equal(t, "app-04", recent[4].ID)
	assert.Equal(t, 2, pager.pages, "no page is read past the limit")
}

func TestCollectRecent_PagerError(t *testing.T) {
	boom := errors.New("history unavailable")
	next := func(context.Context) ([]domain.AccessEntry, bool, error) { return nil, false, boom }
	_, err := store.CollectRecent(context.Background(), 0, next, nil)
	assert.ErrorIs(t, err, boom)
}

func TestRecentLimit(t *testing.T) {
	assert.Equal(t, domain.DefaultRecentLimit, store.RecentLimit(0))
	assert.Equal(t, domain.DefaultRecentLimit, store.RecentLimit(-3))
	assert.Equal(t, 4, store.RecentLimit(4))
}
