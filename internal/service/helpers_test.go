package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/apphub/apphub-server/internal/auth"
	"github.com/apphub/apphub-server/internal/domain"
	"github.com/apphub/apphub-server/internal/search"
	"github.com/apphub/apphub-server/internal/store"
	"github.com/apphub/apphub-server/internal/store/badgerstore"
	"github.com/apphub/apphub-server/internal/validation"
)

// testEnv bundles services over one in-memory badger store.
type testEnv struct {
	store    *badgerstore.Store
	search   *SearchService
	catalog  *CatalogService
	activity *ActivityService
	settings *SettingsService
	admin    *AdminService
	auth     *AuthService
	tokens   *auth.TokenService
}

type envOptions struct {
	showRegisterTab bool
	adminEmails     []string
	noIndex         bool
}

func newTestEnv(t *testing.T, opts envOptions) *testEnv {
	t.Helper()

	st, err := badgerstore.OpenInMemory(nil, badgerstore.WithDefaultAppConfig(store.StaticAppConfig(opts.showRegisterTab)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	var index *search.SearchIndex
	if !opts.noIndex {
		index, err = search.NewSearchIndex(search.Options{})
		require.NoError(t, err)
		t.Cleanup(func() { _ = index.Close() })
	}

	tokens, err := auth.NewTokenService(make([]byte, 32), time.Hour)
	require.NoError(t, err)

	v := validation.New()
	searchSvc := NewSearchService(index, st, nil)
	return &testEnv{
		store:    st,
		search:   searchSvc,
		catalog:  NewCatalogService(st, searchSvc, v, nil),
		activity: NewActivityService(st, nil),
		settings: NewSettingsService(st, nil),
		admin:    NewAdminService(st, searchSvc, nil),
		auth:     NewAuthService(st, v, AuthOptions{Tokens: tokens, AdminEmails: opts.adminEmails}, nil),
		tokens:   tokens,
	}
}

// mustUser stores a local account directly.
func (e *testEnv) mustUser(t *testing.T, id, email string, role domain.Role) *domain.User {
	t.Helper()
	u, err := e.store.CreateUser(context.Background(), domain.User{
		ID:       id,
		Username: id,
		Email:    email,
		Role:     role,
	}, "unused")
	require.NoError(t, err)
	return u
}

func (e *testEnv) mustCategory(t *testing.T, userID, name string) *domain.Category {
	t.Helper()
	c, err := e.catalog.CreateCategory(context.Background(), userID, CreateCategoryRequest{Name: name})
	require.NoError(t, err)
	return c
}

func (e *testEnv) mustApp(t *testing.T, userID, categoryID, name, url string) *domain.App {
	t.Helper()
	a, err := e.catalog.CreateApp(context.Background(), userID, categoryID, AppRequest{Name: name, URL: url})
	require.NoError(t, err)
	return a
}
