package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apphub/apphub-server/internal/domain"
)

func TestSearch_IndexedAndFallbackAgree(t *testing.T) {
	for _, noIndex := range []bool{false, true} {
		name := "index"
		if noIndex {
			name = "store"
		}
		t.Run(name, func(t *testing.T) {
			env := newTestEnv(t, envOptions{noIndex: noIndex})
			ctx := context.Background()
			assert.Equal(t, !noIndex, env.search.Enabled())

			dev := env.mustCategory(t, "usr-1", "Dev")
			ops := env.mustCategory(t, "usr-1", "Ops")
			env.mustApp(t, "usr-1", dev.ID, "GitHub", "https://github.com")
			env.mustApp(t, "usr-1", ops.ID, "Grafana", "https://grafana.example.com")
			other := env.mustCategory(t, "usr-2", "Dev")
			env.mustApp(t, "usr-2", other.ID, "GitLab", "https://gitlab.com")

			found, err := env.search.SearchApps(ctx, "usr-1", SearchRequest{Query: "G"})
			require.NoError(t, err)
			require.Len(t, found, 2)
			assert.Equal(t, "GitHub", found[0].Name)
			assert.Equal(t, "Grafana", found[1].Name)

			found, err = env.search.SearchApps(ctx, "usr-1", SearchRequest{Query: "g", CategoryID: ops.ID})
			require.NoError(t, err)
			require.Len(t, found, 1)
			assert.Equal(t, "Grafana", found[0].Name)

			found, err = env.search.SearchApps(ctx, "usr-1", SearchRequest{Query: "g", Limit: 1})
			require.NoError(t, err)
			assert.Len(t, found, 1)

			found, err = env.search.SearchApps(ctx, "usr-1", SearchRequest{Query: "  "})
			require.NoError(t, err)
			assert.NotNil(t, found)
			assert.Empty(t, found)
		})
	}
}

func TestSearch_ReindexAll(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	ctx := context.Background()
	env.mustUser(t, "usr-1", "one@example.com", domain.RoleAdmin)
	env.mustUser(t, "usr-2", "two@example.com", domain.RoleUser)

	// Written behind the service's back, as another client of a shared backend would.
	c1, err := env.store.CreateCategory(ctx, "usr-1", "Dev")
	require.NoError(t, err)
	_, err = env.store.CreateApp(ctx, "usr-1", c1.ID, domain.App{Name: "GitHub", URL: "https://github.com"})
	require.NoError(t, err)
	c2, err := env.store.CreateCategory(ctx, "usr-2", "Dev")
	require.NoError(t, err)
	_, err = env.store.CreateApp(ctx, "usr-2", c2.ID, domain.App{Name: "Gitea", URL: "https://gitea.example.com"})
	require.NoError(t, err)

	count, err := env.search.DocumentCount()
	require.NoError(t, err)
	assert.Zero(t, count)

	n, err := env.search.ReindexAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	found, err := env.search.SearchApps(ctx, "usr-2", SearchRequest{Query: "git"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Gitea", found[0].Name)
}

func TestSearch_NilServiceIsDisabled(t *testing.T) {
	var s *SearchService
	assert.False(t, s.Enabled())
	s.IndexApp("usr-1", domain.App{ID: "app-1"})
	s.RemoveApp("app-1")
	s.RemoveUser(context.Background(), "usr-1")

	n, err := s.ReindexAll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}
