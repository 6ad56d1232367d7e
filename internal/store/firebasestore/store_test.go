package firebasestore

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apphub/apphub-server/internal/domain"
	"github.com/apphub/apphub-server/internal/store"
	"github.com/apphub/apphub-server/internal/store/storetest"
)

// newEmulatorStore connects to the Firestore emulator under a project id
// unique to the test, so every test starts from an empty database.
func newEmulatorStore(t *testing.T, dir Directory) *Store {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}

	project := strings.ToLower(fmt.Sprintf("apphub-%d", time.Now().UnixNano()))
	fs, err := firestore.NewClient(context.Background(), project)
	require.NoError(t, err)

	s := New(fs, dir, nil)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestConformance(t *testing.T) {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	storetest.Run(t, func(t *testing.T) store.Store {
		return newEmulatorStore(t, newFakeDirectory())
	})
}

func TestDeleteUser_ClearsDocuments(t *testing.T) {
	dir := newFakeDirectory(domain.User{ID: "uid-a", Email: "ana@example.com", Role: domain.RoleUser})
	s := newEmulatorStore(t, dir)
	ctx := context.Background()

	c := storetest.MustCategory(t, s, "uid-a", "Tools")
	app := storetest.MustApp(t, s, "uid-a", c.ID, "GitHub", "https://github.com")
	require.NoError(t, s.ToggleFavorite(ctx, "uid-a", app.ID, true))
	require.NoError(t, s.RecordAccess(ctx, "uid-a", app.ID))

	require.NoError(t, s.DeleteUser(ctx, "uid-a"))
	assert.Equal(t, []string{"uid-a"}, dir.deleted)

	cats, err := s.GetCategories(ctx, "uid-a")
	require.NoError(t, err)
	assert.Empty(t, cats)
	history, err := s.GetAccessHistory(ctx, "uid-a", 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestUsers_DelegateToDirectory(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	dir := newFakeDirectory(
		domain.User{ID: "uid-b", Email: "bea@example.com", Role: domain.RoleUser, CreatedAt: base.Add(time.Hour)},
		domain.User{ID: "uid-a", Email: "ana@example.com", Role: domain.RoleUser, CreatedAt: base},
	)
	s := New(nil, dir, nil)
	ctx := context.Background()

	has, err := s.HasUsers(ctx)
	require.NoError(t, err)
	assert.True(t, has)

	users, err := s.GetUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "uid-a", users[0].ID, "oldest first")

	u, err := s.UpdateUserRole(ctx, "uid-b", domain.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, u.Role)

	u, err = s.SetUserDisabled(ctx, "uid-b", true)
	require.NoError(t, err)
	assert.True(t, u.Disabled)
	assert.Equal(t, domain.RoleAdmin, u.Role)

	got, err := s.GetUser(ctx, "uid-b")
	require.NoError(t, err)
	assert.True(t, got.Disabled)
}

func TestUsers_NotFound(t *testing.T) {
	s := New(nil, newFakeDirectory(), nil)
	ctx := context.Background()

	_, err := s.GetUser(ctx, "ghost")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.UpdateUserRole(ctx, "ghost", domain.RoleAdmin)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.SetUserDisabled(ctx, "ghost", true)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.DeleteUser(ctx, "ghost"), store.ErrNotFound)

	users, err := s.GetUsers(ctx)
	require.NoError(t, err)
	assert.NotNil(t, users)
	assert.Empty(t, users)
}

func TestMillis(t *testing.T) {
	in := time.Date(2026, 5, 6, 7, 8, 9, 123456789, time.FixedZone("x", 3600))
	out := millis(in)
	assert.Equal(t, time.UTC, out.Location())
	assert.Equal(t, 123000000, out.Nanosecond())
	assert.True(t, out.Equal(in.Truncate(time.Millisecond)))
}
