package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/apphub/apphub-server/internal/errors"
)

func TestCatalog_CreateCategoryWithApp(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	ctx := context.Background()

	cat := env.mustCategory(t, "usr-1", "  Productivity ")
	assert.Equal(t, "Productivity", cat.Name)
	assert.NotNil(t, cat.Apps)
	assert.Empty(t, cat.Apps)

	env.mustApp(t, "usr-1", cat.ID, "GitHub", "https://github.com")

	apps, err := env.catalog.ListApps(ctx, "usr-1", cat.ID)
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, "GitHub", apps[0].Name)
	assert.Equal(t, cat.ID, apps[0].CategoryID)
}

func TestCatalog_CreateCategoryValidation(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	_, err := env.catalog.CreateCategory(context.Background(), "usr-1", CreateCategoryRequest{Name: "   "})
	require.Error(t, err)
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	var domainErr *domainerrors.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Contains(t, domainErr.Details, "name")
}

func TestCatalog_CreateAppValidation(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	cat := env.mustCategory(t, "usr-1", "Tools")

	_, err := env.catalog.CreateApp(context.Background(), "usr-1", cat.ID, AppRequest{Name: "Bad", URL: "not a url"})
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	_, err = env.catalog.CreateApp(context.Background(), "usr-1", "cat-missing", AppRequest{Name: "Ok", URL: "https://ok.example"})
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestCatalog_ListAppsOfMissingCategory(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	_, err := env.catalog.ListApps(context.Background(), "usr-1", "cat-missing")
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestCatalog_UpdateCategoryReplacesApps(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	ctx := context.Background()
	cat := env.mustCategory(t, "usr-1", "Dev")
	env.mustApp(t, "usr-1", cat.ID, "GitLab", "https://gitlab.com")

	name := "Development"
	apps := []AppRequest{
		{Name: "GitHub", URL: "https://github.com"},
		{Name: "Jira", URL: "https://jira.example.com", Description: "tickets"},
	}
	updated, err := env.catalog.UpdateCategory(ctx, "usr-1", cat.ID, UpdateCategoryRequest{Name: &name, Apps: &apps})
	require.NoError(t, err)
	assert.Equal(t, "Development", updated.Name)
	require.Len(t, updated.Apps, 2)

	found, err := env.search.SearchApps(ctx, "usr-1", SearchRequest{Query: "git"})
	require.NoError(t, err)
	require.Len(t, found, 1, "replaced apps leave the index")
	assert.Equal(t, "GitHub", found[0].Name)
}

func TestCatalog_UpdateCategoryRejectsBadApp(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	cat := env.mustCategory(t, "usr-1", "Dev")

	apps := []AppRequest{{Name: "", URL: "https://x.example"}}
	_, err := env.catalog.UpdateCategory(context.Background(), "usr-1", cat.ID, UpdateCategoryRequest{Apps: &apps})
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	empty := ""
	_, err = env.catalog.UpdateCategory(context.Background(), "usr-1", cat.ID, UpdateCategoryRequest{Name: &empty})
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
}

func TestCatalog_DeleteCategory(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	ctx := context.Background()
	cat := env.mustCategory(t, "usr-1", "Dev")
	env.mustApp(t, "usr-1", cat.ID, "GitHub", "https://github.com")

	require.NoError(t, env.catalog.DeleteCategory(ctx, "usr-1", cat.ID))

	apps, err := env.store.GetApps(ctx, "usr-1", cat.ID)
	require.NoError(t, err)
	assert.Empty(t, apps)

	found, err := env.search.SearchApps(ctx, "usr-1", SearchRequest{Query: "github"})
	require.NoError(t, err)
	assert.Empty(t, found)

	assert.ErrorIs(t, env.catalog.DeleteCategory(ctx, "usr-1", cat.ID), domainerrors.ErrNotFound)
}

func TestCatalog_UpdateApp(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	ctx := context.Background()
	dev := env.mustCategory(t, "usr-1", "Dev")
	ops := env.mustCategory(t, "usr-1", "Ops")
	app := env.mustApp(t, "usr-1", dev.ID, "Grafana", "https://grafana.example.com")

	name := "Grafana Cloud"
	desc := "dashboards"
	updated, err := env.catalog.UpdateApp(ctx, "usr-1", app.ID, UpdateAppRequest{
		CategoryID:  &ops.ID,
		Name:        &name,
		Description: &desc,
	})
	require.NoError(t, err)
	assert.Equal(t, "Grafana Cloud", updated.Name)
	assert.Equal(t, ops.ID, updated.CategoryID)
	assert.Equal(t, "https://grafana.example.com", updated.URL, "unset fields are kept")

	found, err := env.search.SearchApps(ctx, "usr-1", SearchRequest{Query: "dashboards"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, app.ID, found[0].ID)

	badURL := "nope"
	_, err = env.catalog.UpdateApp(ctx, "usr-1", app.ID, UpdateAppRequest{URL: &badURL})
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	_, err = env.catalog.UpdateApp(ctx, "usr-1", "app-missing", UpdateAppRequest{Name: &name})
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestCatalog_DeleteAppClearsFavorite(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	ctx := context.Background()
	cat := env.mustCategory(t, "usr-1", "Dev")
	app := env.mustApp(t, "usr-1", cat.ID, "GitHub", "https://github.com")
	require.NoError(t, env.activity.SetFavorite(ctx, "usr-1", app.ID, true))

	require.NoError(t, env.catalog.DeleteApp(ctx, "usr-1", app.ID))

	favs, err := env.activity.ListFavorites(ctx, "usr-1")
	require.NoError(t, err)
	assert.Empty(t, favs)

	_, err = env.catalog.GetApp(ctx, "usr-1", app.ID)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestCatalog_ScopedPerUser(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	ctx := context.Background()
	cat := env.mustCategory(t, "usr-1", "Private")

	_, err := env.catalog.GetCategory(ctx, "usr-2", cat.ID)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)

	cats, err := env.catalog.ListCategories(ctx, "usr-2")
	require.NoError(t, err)
	assert.NotNil(t, cats)
	assert.Empty(t, cats)
}
