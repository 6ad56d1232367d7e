package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apphub/apphub-server/internal/domain"
	domainerrors "github.com/apphub/apphub-server/internal/errors"
	"github.com/apphub/apphub-server/internal/store"
)

func TestActivity_Favorites(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	ctx := context.Background()
	cat := env.mustCategory(t, "usr-1", "Dev")
	app := env.mustApp(t, "usr-1", cat.ID, "GitHub", "https://github.com")

	require.NoError(t, env.activity.SetFavorite(ctx, "usr-1", app.ID, true))
	require.NoError(t, env.activity.SetFavorite(ctx, "usr-1", app.ID, true), "idempotent")

	fav, err := env.activity.IsFavorite(ctx, "usr-1", app.ID)
	require.NoError(t, err)
	assert.True(t, fav)

	favs, err := env.activity.ListFavorites(ctx, "usr-1")
	require.NoError(t, err)
	require.Len(t, favs, 1)
	assert.Equal(t, app.ID, favs[0].ID)

	require.NoError(t, env.activity.SetFavorite(ctx, "usr-1", app.ID, false))
	fav, err = env.activity.IsFavorite(ctx, "usr-1", app.ID)
	require.NoError(t, err)
	assert.False(t, fav)
}

func TestActivity_FavoriteMissingApp(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	err := env.activity.SetFavorite(context.Background(), "usr-1", "app-missing", true)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestActivity_RecentAppsDeduplicated(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	ctx := context.Background()
	cat := env.mustCategory(t, "usr-1", "Dev")
	a := env.mustApp(t, "usr-1", cat.ID, "A", "https://a.example")
	b := env.mustApp(t, "usr-1", cat.ID, "B", "https://b.example")

	for _, id := range []string{a.ID, b.ID, a.ID, a.ID} {
		require.NoError(t, env.activity.RecordAccess(ctx, "usr-1", id))
		time.Sleep(2 * time.Millisecond)
	}

	recent, err := env.activity.RecentApps(ctx, "usr-1", 0)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, a.ID, recent[0].ID)
	assert.Equal(t, b.ID, recent[1].ID)

	one, err := env.activity.RecentApps(ctx, "usr-1", 1)
	require.NoError(t, err)
	assert.Len(t, one, 1)

	assert.ErrorIs(t, env.activity.RecordAccess(ctx, "usr-1", "app-missing"), domainerrors.ErrNotFound)
}

func TestActivity_Statistics(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	ctx := context.Background()
	dev := env.mustCategory(t, "usr-1", "Dev")
	env.mustCategory(t, "usr-1", "Empty")
	gh := env.mustApp(t, "usr-1", dev.ID, "GitHub", "https://github.com")
	jira := env.mustApp(t, "usr-1", dev.ID, "Jira", "https://jira.example.com")
	env.mustApp(t, "usr-1", dev.ID, "Wiki", "https://wiki.example.com")

	require.NoError(t, env.activity.SetFavorite(ctx, "usr-1", gh.ID, true))
	for range 3 {
		require.NoError(t, env.activity.RecordAccess(ctx, "usr-1", jira.ID))
	}
	require.NoError(t, env.activity.RecordAccess(ctx, "usr-1", gh.ID))

	stats, err := env.activity.Statistics(ctx, "usr-1")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.CategoryCount)
	assert.Equal(t, 3, stats.AppCount)
	assert.Equal(t, 1, stats.FavoriteCount)
	assert.Equal(t, 4, stats.AccessCount)
	require.Len(t, stats.TopApps, 2)
	assert.Equal(t, jira.ID, stats.TopApps[0].App.ID)
	assert.Equal(t, 3, stats.TopApps[0].Count)
	assert.Equal(t, gh.ID, stats.TopApps[1].App.ID)
}

func TestTopApps(t *testing.T) {
	apps := map[string]domain.App{}
	var history []domain.AccessEntry
	names := []string{"b", "a", "c", "d", "e", "f"}
	for i, n := range names {
		apps["app-"+n] = domain.App{ID: "app-" + n, Name: n}
		for range i%2 + 1 {
			history = append(history, domain.AccessEntry{AppID: "app-" + n})
		}
	}
	history = append(history, domain.AccessEntry{AppID: "app-deleted"})

	top := topApps(history, apps, TopAppsLimit)
	require.Len(t, top, TopAppsLimit)

	got := make([]string, 0, len(top))
	for _, u := range top {
		got = append(got, u.App.Name)
	}
	// a, d and f were opened twice; ties sort by name.
	assert.Equal(t, []string{"a", "d", "f", "b", "c"}, got)
}

func TestSettings_AppConfig(t *testing.T) {
	env := newTestEnv(t, envOptions{showRegisterTab: false})
	ctx := context.Background()

	cfg, err := env.settings.GetAppConfig(ctx)
	require.NoError(t, err)
	assert.False(t, cfg.ShowRegisterTab, "default comes from configuration")

	show := true
	updated, err := env.settings.UpdateAppConfig(ctx, "usr-admin", UpdateAppConfigRequest{ShowRegisterTab: &show})
	require.NoError(t, err)
	assert.True(t, updated.ShowRegisterTab)

	again, err := env.settings.GetAppConfig(ctx)
	require.NoError(t, err)
	assert.True(t, again.ShowRegisterTab)

	unchanged, err := env.settings.UpdateAppConfig(ctx, "usr-admin", UpdateAppConfigRequest{})
	require.NoError(t, err)
	assert.True(t, unchanged.ShowRegisterTab)
}

func TestConnection_Check(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	report := NewConnectionService(env.store, "local", nil).Check(context.Background())
	assert.Equal(t, "local", report.Backend)
	assert.True(t, report.Connected)
	assert.True(t, report.Read.OK)
	assert.True(t, report.Write.OK)
	assert.Empty(t, report.Read.Error)
}

// racingConfigStore flips showRegisterTab right after each config read, as
// an admin saving settings mid-check would.
type racingConfigStore struct {
	store.Store
}

func (s racingConfigStore) GetAppConfig(ctx context.Context) (*domain.AppConfig, error) {
	cfg, err := s.Store.GetAppConfig(ctx)
	if err != nil {
		return nil, err
	}
	next := *cfg
	next.ShowRegisterTab = !cfg.ShowRegisterTab
	if _, err := s.Store.UpdateAppConfig(ctx, next); err != nil {
		return nil, err
	}
	return cfg, nil
}

func TestConnection_CheckLeavesDataAlone(t *testing.T) {
	env := newTestEnv(t, envOptions{showRegisterTab: true})
	ctx := context.Background()

	report := NewConnectionService(racingConfigStore{env.store}, "local", nil).Check(ctx)
	require.True(t, report.Connected)

	cfg, err := env.store.GetAppConfig(ctx)
	require.NoError(t, err)
	assert.False(t, cfg.ShowRegisterTab, "concurrent config update survives the check")

	cats, err := env.store.GetCategories(ctx, connectionCheckUser)
	require.NoError(t, err)
	assert.Empty(t, cats, "scratch category removed")
}

func TestConnection_CheckClosedStore(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	require.NoError(t, env.store.Close())

	report := NewConnectionService(env.store, "local", nil).Check(context.Background())
	assert.False(t, report.Connected)
	assert.False(t, report.Read.OK)
	assert.NotEmpty(t, report.Read.Error)
	assert.False(t, report.Write.OK)
}
