// Package storetest is a conformance suite for store.Store implementations.
//
// Every backend runs the same behavioral tests:
//
//	func TestConformance(t *testing.T) {
//		storetest.Run(t, func(t *testing.T) store.Store { return newTestStore(t) })
//	}
//
// Factories must return an empty store seeded with store.StaticAppConfig(true).
// User tests run only for stores that also implement store.Accounts.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apphub/apphub-server/internal/domain"
	"github.com/apphub/apphub-server/internal/store"
)

// Factory returns a fresh, empty store. Cleanup is registered on t.
type Factory func(t *testing.T) store.Store

const (
	alice = "user-alice"
	bob   = "user-bob"
)

// Run executes the full suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"NewCategoryHasEmptyApps", testNewCategoryHasEmptyApps},
		{"CategoriesScopedPerUser", testCategoriesScopedPerUser},
		{"UpdateCategoryName", testUpdateCategoryName},
		{"UpdateCategoryReplacesApps", testUpdateCategoryReplacesApps},
		{"DeleteCategoryRemovesApps", testDeleteCategoryRemovesApps},
		{"CategoryNotFound", testCategoryNotFound},
		{"ProductivityScenario", testProductivityScenario},
		{"CreateAppRequiresCategory", testCreateAppRequiresCategory},
		{"UpdateApp", testUpdateApp},
		{"DeleteAppRemovesFavorite", testDeleteAppRemovesFavorite},
		{"SearchApps", testSearchApps},
		{"ToggleFavorite", testToggleFavorite},
		{"FavoritesNewestFirst", testFavoritesNewestFirst},
		{"FavoriteUnknownApp", testFavoriteUnknownApp},
		{"RecentAppsDeduplicated", testRecentAppsDeduplicated},
		{"RecentAppsLimit", testRecentAppsLimit},
		{"RecentAppsBeyondBusyApp", testRecentAppsBeyondBusyApp},
		{"AccessHistory", testAccessHistory},
		{"PruneAccessHistory", testPruneAccessHistory},
		{"AppConfigDefaultPersisted", testAppConfigDefaultPersisted},
		{"UpdateAppConfig", testUpdateAppConfig},
		{"Ping", testPing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStore(t))
		})
	}

	t.Run("Users", func(t *testing.T) {
		runUsers(t, newStore)
	})
}

func ctx() context.Context { return context.Background() }

// MustCategory creates a category or fails the test.
func MustCategory(t *testing.T, s store.Store, userID, name string) *domain.Category {
	t.Helper()
	c, err := s.CreateCategory(ctx(), userID, name)
	require.NoError(t, err)
	require.NotEmpty(t, c.ID)
	return c
}

// MustApp creates an app or fails the test.
func MustApp(t *testing.T, s store.Store, userID, categoryID, name, url string) *domain.App {
	t.Helper()
	a, err := s.CreateApp(ctx(), userID, categoryID, domain.App{
		Name: name,
		URL:  url,
		Icon: "https://icons.example.com/" + name + ".png",
	})
	require.NoError(t, err)
	require.NotEmpty(t, a.ID)
	return a
}

func testNewCategoryHasEmptyApps(t *testing.T, s store.Store) {
	created := MustCategory(t, s, alice, "Productivity")
	assert.Equal(t, "Productivity", created.Name)
	assert.NotNil(t, created.Apps)
	assert.False(t, created.CreatedAt.IsZero())

	got, err := s.GetCategory(ctx(), alice, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.NotNil(t, got.Apps, "apps must be an empty list, not nil")
	assert.Empty(t, got.Apps)
}

func testCategoriesScopedPerUser(t *testing.T, s store.Store) {
	first := MustCategory(t, s, alice, "Work")
	time.Sleep(2 * time.Millisecond)
	second := MustCategory(t, s, alice, "Home")
	MustCategory(t, s, bob, "Bob only")

	cats, err := s.GetCategories(ctx(), alice)
	require.NoError(t, err)
	require.Len(t, cats, 2)
	assert.Equal(t, first.ID, cats[0].ID, "categories are ordered by creation")
	assert.Equal(t, second.ID, cats[1].ID)

	_, err = s.GetCategory(ctx(), bob, first.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	none, err := s.GetCategories(ctx(), "user-nobody")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testUpdateCategoryName(t *testing.T, s store.Store) {
	c := MustCategory(t, s, alice, "Old")
	app := MustApp(t, s, alice, c.ID, "Jira", "https://jira.example.com")

	name := "New"
	updated, err := s.UpdateCategory(ctx(), alice, c.ID, domain.CategoryUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "New", updated.Name)
	require.Len(t, updated.Apps, 1, "apps untouched when Apps is nil")
	assert.Equal(t, app.ID, updated.Apps[0].ID)
}

func testUpdateCategoryReplacesApps(t *testing.T, s store.Store) {
	c := MustCategory(t, s, alice, "Dev")
	old := MustApp(t, s, alice, c.ID, "Old", "https://old.example.com")

	replacement := []domain.App{
		{Name: "GitHub", URL: "https://github.com", Description: "code"},
		{Name: "GitLab", URL: "https://gitlab.com"},
	}
	updated, err := s.UpdateCategory(ctx(), alice, c.ID, domain.CategoryUpdate{Apps: &replacement})
	require.NoError(t, err)
	assert.Equal(t, "Dev", updated.Name)
	require.Len(t, updated.Apps, 2)

	apps, err := s.GetApps(ctx(), alice, c.ID)
	require.NoError(t, err)
	require.Len(t, apps, 2)
	names := []string{apps[0].Name, apps[1].Name}
	assert.ElementsMatch(t, []string{"GitHub", "GitLab"}, names)
	for _, a := range apps {
		assert.Equal(t, c.ID, a.CategoryID)
		assert.NotEmpty(t, a.ID)
	}

	_, err = s.GetApp(ctx(), alice, old.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	empty := []domain.App{}
	cleared, err := s.UpdateCategory(ctx(), alice, c.ID, domain.CategoryUpdate{Apps: &empty})
	require.NoError(t, err)
	assert.Empty(t, cleared.Apps)
}

func testDeleteCategoryRemovesApps(t *testing.T, s store.Store) {
	c := MustCategory(t, s, alice, "Temp")
	app := MustApp(t, s, alice, c.ID, "Notion", "https://notion.so")
	require.NoError(t, s.ToggleFavorite(ctx(), alice, app.ID, true))

	require.NoError(t, s.DeleteCategory(ctx(), alice, c.ID))

	apps, err := s.GetApps(ctx(), alice, c.ID)
	require.NoError(t, err)
	assert.Empty(t, apps)

	_, err = s.GetCategory(ctx(), alice, c.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	favs, err := s.GetFavorites(ctx(), alice)
	require.NoError(t, err)
	assert.Empty(t, favs)
}

func testCategoryNotFound(t *testing.T, s store.Store) {
	_, err := s.GetCategory(ctx(), alice, "cat-missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	name := "x"
	_, err = s.UpdateCategory(ctx(), alice, "cat-missing", domain.CategoryUpdate{Name: &name})
	assert.ErrorIs(t, err, store.ErrNotFound)

	assert.ErrorIs(t, s.DeleteCategory(ctx(), alice, "cat-missing"), store.ErrNotFound)
}

func testProductivityScenario(t *testing.T, s store.Store) {
	c := MustCategory(t, s, alice, "Productivity")
	created := MustApp(t, s, alice, c.ID, "GitHub", "https://github.com")

	apps, err := s.GetApps(ctx(), alice, c.ID)
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, created.ID, apps[0].ID)
	assert.Equal(t, "GitHub", apps[0].Name)
	assert.Equal(t, "https://github.com", apps[0].URL)
	assert.Equal(t, c.ID, apps[0].CategoryID)

	got, err := s.GetCategory(ctx(), alice, c.ID)
	require.NoError(t, err)
	require.Len(t, got.Apps, 1)
	assert.Equal(t, created.ID, got.Apps[0].ID)
}

func testCreateAppRequiresCategory(t *testing.T, s store.Store) {
	_, err := s.CreateApp(ctx(), alice, "cat-missing", domain.App{Name: "X", URL: "https://x.example.com"})
	assert.ErrorIs(t, err, store.ErrNotFound)

	// Another user's category is invisible.
	c := MustCategory(t, s, bob, "Bob")
	_, err = s.CreateApp(ctx(), alice, c.ID, domain.App{Name: "X", URL: "https://x.example.com"})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testUpdateApp(t *testing.T, s store.Store) {
	c1 := MustCategory(t, s, alice, "One")
	c2 := MustCategory(t, s, alice, "Two")
	app := MustApp(t, s, alice, c1.ID, "Slack", "https://slack.com")

	updated, err := s.UpdateApp(ctx(), alice, app.ID, domain.App{
		Name:        "Slack HQ",
		URL:         "https://app.slack.com",
		Icon:        "slack.png",
		Description: "chat",
	})
	require.NoError(t, err)
	assert.Equal(t, app.ID, updated.ID)
	assert.Equal(t, "Slack HQ", updated.Name)
	assert.Equal(t, c1.ID, updated.CategoryID, "empty categoryId keeps the current category")
	assert.WithinDuration(t, app.CreatedAt, updated.CreatedAt, time.Millisecond)

	moved, err := s.UpdateApp(ctx(), alice, app.ID, domain.App{
		CategoryID: c2.ID,
		Name:       "Slack HQ",
		URL:        "https://app.slack.com",
	})
	require.NoError(t, err)
	assert.Equal(t, c2.ID, moved.CategoryID)

	inOne, err := s.GetApps(ctx(), alice, c1.ID)
	require.NoError(t, err)
	assert.Empty(t, inOne)

	_, err = s.UpdateApp(ctx(), alice, app.ID, domain.App{CategoryID: "cat-missing", Name: "x", URL: "https://x.io"})
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.UpdateApp(ctx(), alice, "app-missing", domain.App{Name: "x", URL: "https://x.io"})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testDeleteAppRemovesFavorite(t *testing.T, s store.Store) {
	c := MustCategory(t, s, alice, "Cat")
	app := MustApp(t, s, alice, c.ID, "Figma", "https://figma.com")
	require.NoError(t, s.ToggleFavorite(ctx(), alice, app.ID, true))
	require.NoError(t, s.RecordAccess(ctx(), alice, app.ID))

	require.NoError(t, s.DeleteApp(ctx(), alice, app.ID))

	_, err := s.GetApp(ctx(), alice, app.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	fav, err := s.IsFavorite(ctx(), alice, app.ID)
	require.NoError(t, err)
	assert.False(t, fav)

	recent, err := s.GetRecentApps(ctx(), alice, 0)
	require.NoError(t, err)
	assert.Empty(t, recent, "recent apps skip deleted apps")

	assert.ErrorIs(t, s.DeleteApp(ctx(), alice, app.ID), store.ErrNotFound)
}

func testSearchApps(t *testing.T, s store.Store) {
	c := MustCategory(t, s, alice, "Tools")
	MustApp(t, s, alice, c.ID, "GitHub", "https://github.com")
	_, err := s.CreateApp(ctx(), alice, c.ID, domain.App{
		Name:        "Linear",
		URL:         "https://linear.app",
		Description: "Issue tracking for GIT workflows",
	})
	require.NoError(t, err)
	MustApp(t, s, alice, c.ID, "Calendar", "https://calendar.google.com")

	other := MustCategory(t, s, bob, "Bob")
	MustApp(t, s, bob, other.ID, "GitKraken", "https://gitkraken.com")

	found, err := s.SearchApps(ctx(), alice, "git")
	require.NoError(t, err)
	require.Len(t, found, 2)
	names := []string{found[0].Name, found[1].Name}
	assert.ElementsMatch(t, []string{"GitHub", "Linear"}, names)

	empty, err := s.SearchApps(ctx(), alice, "")
	require.NoError(t, err)
	assert.Empty(t, empty)

	none, err := s.SearchApps(ctx(), alice, "zzz")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testToggleFavorite(t *testing.T, s store.Store) {
	c := MustCategory(t, s, alice, "Cat")
	app := MustApp(t, s, alice, c.ID, "Trello", "https://trello.com")

	fav, err := s.IsFavorite(ctx(), alice, app.ID)
	require.NoError(t, err)
	assert.False(t, fav)

	require.NoError(t, s.ToggleFavorite(ctx(), alice, app.ID, true))
	require.NoError(t, s.ToggleFavorite(ctx(), alice, app.ID, true), "favoriting twice is idempotent")

	fav, err = s.IsFavorite(ctx(), alice, app.ID)
	require.NoError(t, err)
	assert.True(t, fav)

	favs, err := s.GetFavorites(ctx(), alice)
	require.NoError(t, err)
	require.Len(t, favs, 1)

	bobFav, err := s.IsFavorite(ctx(), bob, app.ID)
	require.NoError(t, err)
	assert.False(t, bobFav)

	require.NoError(t, s.ToggleFavorite(ctx(), alice, app.ID, false))
	require.NoError(t, s.ToggleFavorite(ctx(), alice, app.ID, false))

	fav, err = s.IsFavorite(ctx(), alice, app.ID)
	require.NoError(t, err)
	assert.False(t, fav)
}

func testFavoritesNewestFirst(t *testing.T, s store.Store) {
	c := MustCategory(t, s, alice, "Cat")
	a := MustApp(t, s, alice, c.ID, "A", "https://a.example.com")
	b := MustApp(t, s, alice, c.ID, "B", "https://b.example.com")

	require.NoError(t, s.ToggleFavorite(ctx(), alice, a.ID, true))
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, s.ToggleFavorite(ctx(), alice, b.ID, true))

	favs, err := s.GetFavorites(ctx(), alice)
	require.NoError(t, err)
	require.Len(t, favs, 2)
	assert.Equal(t, b.ID, favs[0].ID)
	assert.Equal(t, a.ID, favs[1].ID)
}

func testFavoriteUnknownApp(t *testing.T, s store.Store) {
	err := s.ToggleFavorite(ctx(), alice, "app-missing", true)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testRecentAppsDeduplicated(t *testing.T, s store.Store) {
	c := MustCategory(t, s, alice, "Cat")
	a := MustApp(t, s, alice, c.ID, "A", "https://a.example.com")
	b := MustApp(t, s, alice, c.ID, "B", "https://b.example.com")

	for _, id := range []string{a.ID, b.ID, a.ID, a.ID, b.ID, a.ID} {
		require.NoError(t, s.RecordAccess(ctx(), alice, id))
		time.Sleep(2 * time.Millisecond)
	}

	recent, err := s.GetRecentApps(ctx(), alice, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, a.ID, recent[0].ID, "most recently opened first")
	assert.Equal(t, b.ID, recent[1].ID)
	assert.True(t, recent[0].LastAccessedAt.After(recent[1].LastAccessedAt))

	seen := map[string]bool{}
	for _, r := range recent {
		assert.False(t, seen[r.ID], "duplicate app %s", r.ID)
		seen[r.ID] = true
	}

	err = s.RecordAccess(ctx(), alice, "app-missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testRecentAppsLimit(t *testing.T, s store.Store) {
	c := MustCategory(t, s, alice, "Cat")
	for i := range 12 {
		app := MustApp(t, s, alice, c.ID, string(rune('A'+i)), "https://apps.example.com/"+string(rune('a'+i)))
		require.NoError(t, s.RecordAccess(ctx(), alice, app.ID))
	}

	def, err := s.GetRecentApps(ctx(), alice, 0)
	require.NoError(t, err)
	assert.Len(t, def, domain.DefaultRecentLimit)

	three, err := s.GetRecentApps(ctx(), alice, 3)
	require.NoError(t, err)
	assert.Len(t, three, 3)
}

// One app opened far more often than the others must not hide them.
func testRecentAppsBeyondBusyApp(t *testing.T, s store.Store) {
	c := MustCategory(t, s, alice, "Cat")
	jira := MustApp(t, s, alice, c.ID, "Jira", "https://jira.example.com")
	gone := MustApp(t, s, alice, c.ID, "Gone", "https://gone.example.com")
	mail := MustApp(t, s, alice, c.ID, "Mail", "https://mail.example.com")

	require.NoError(t, s.RecordAccess(ctx(), alice, jira.ID))
	require.NoError(t, s.RecordAccess(ctx(), alice, gone.ID))
	for range 1001 {
		require.NoError(t, s.RecordAccess(ctx(), alice, mail.ID))
	}
	require.NoError(t, s.DeleteApp(ctx(), alice, gone.ID))

	recent, err := s.GetRecentApps(ctx(), alice, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, mail.ID, recent[0].ID)
	assert.Equal(t, jira.ID, recent[1].ID)
}

func testAccessHistory(t *testing.T, s store.Store) {
	c := MustCategory(t, s, alice, "Cat")
	a := MustApp(t, s, alice, c.ID, "A", "https://a.example.com")

	for range 3 {
		require.NoError(t, s.RecordAccess(ctx(), alice, a.ID))
	}

	all, err := s.GetAccessHistory(ctx(), alice, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i, e := range all {
		assert.Equal(t, alice, e.UserID)
		assert.Equal(t, a.ID, e.AppID)
		assert.NotEmpty(t, e.ID)
		if i > 0 {
			assert.False(t, e.AccessedAt.After(all[i-1].AccessedAt), "newest first")
		}
	}

	two, err := s.GetAccessHistory(ctx(), alice, 2)
	require.NoError(t, err)
	assert.Len(t, two, 2)

	bobs, err := s.GetAccessHistory(ctx(), bob, 0)
	require.NoError(t, err)
	assert.Empty(t, bobs)
}

func testPruneAccessHistory(t *testing.T, s store.Store) {
	c := MustCategory(t, s, alice, "Cat")
	a := MustApp(t, s, alice, c.ID, "A", "https://a.example.com")

	require.NoError(t, s.RecordAccess(ctx(), alice, a.ID))
	require.NoError(t, s.RecordAccess(ctx(), alice, a.ID))
	time.Sleep(10 * time.Millisecond)
	cutoff := time.Now()
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, s.RecordAccess(ctx(), alice, a.ID))

	pruned, err := s.PruneAccessHistory(ctx(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, 2, pruned)

	left, err := s.GetAccessHistory(ctx(), alice, 0)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.True(t, left[0].AccessedAt.After(cutoff))
}

func testAppConfigDefaultPersisted(t *testing.T, s store.Store) {
	first, err := s.GetAppConfig(ctx())
	require.NoError(t, err)
	assert.True(t, first.ShowRegisterTab)
	assert.False(t, first.UpdatedAt.IsZero())

	second, err := s.GetAppConfig(ctx())
	require.NoError(t, err)
	assert.Equal(t, first.ShowRegisterTab, second.ShowRegisterTab)
	assert.WithinDuration(t, first.UpdatedAt, second.UpdatedAt, time.Millisecond, "default is written once")
}

func testUpdateAppConfig(t *testing.T, s store.Store) {
	updated, err := s.UpdateAppConfig(ctx(), domain.AppConfig{ShowRegisterTab: false})
	require.NoError(t, err)
	assert.False(t, updated.ShowRegisterTab)
	assert.False(t, updated.UpdatedAt.IsZero())

	got, err := s.GetAppConfig(ctx())
	require.NoError(t, err)
	assert.False(t, got.ShowRegisterTab)
}

func testPing(t *testing.T, s store.Store) {
	assert.NoError(t, s.Ping(ctx()))
}
