package storetest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apphub/apphub-server/internal/domain"
	"github.com/apphub/apphub-server/internal/store"
)

func runUsers(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store, acc store.Accounts)
	}{
		{"HasUsers", testHasUsers},
		{"CreateUserDuplicateEmail", testCreateUserDuplicateEmail},
		{"GetCredentials", testGetCredentials},
		{"GetUsers", testGetUsers},
		{"UpdateUserRole", testUpdateUserRole},
		{"SetUserDisabled", testSetUserDisabled},
		{"DeleteUserCascades", testDeleteUserCascades},
		{"UserNotFound", testUserNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			acc, ok := s.(store.Accounts)
			if !ok {
				t.Skip("store does not manage local accounts")
			}
			tt.fn(t, s, acc)
		})
	}
}

// MustUser creates a local user or fails the test.
func MustUser(t *testing.T, acc store.Accounts, id, email string, role domain.Role) *domain.User {
	t.Helper()
	u, err := acc.CreateUser(ctx(), domain.User{
		ID:       id,
		Username: id,
		Email:    email,
		Role:     role,
	}, "$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA")
	require.NoError(t, err)
	return u
}

func testHasUsers(t *testing.T, s store.Store, acc store.Accounts) {
	has, err := s.HasUsers(ctx())
	require.NoError(t, err)
	assert.False(t, has)

	MustUser(t, acc, alice, "alice@example.com", domain.RoleAdmin)

	has, err = s.HasUsers(ctx())
	require.NoError(t, err)
	assert.True(t, has)
}

func testCreateUserDuplicateEmail(t *testing.T, _ store.Store, acc store.Accounts) {
	created := MustUser(t, acc, alice, "alice@example.com", domain.RoleUser)
	assert.False(t, created.CreatedAt.IsZero())

	_, err := acc.CreateUser(ctx(), domain.User{ID: bob, Email: "ALICE@example.com"}, "hash")
	assert.ErrorIs(t, err, store.ErrAlreadyExists)
}

func testGetCredentials(t *testing.T, _ store.Store, acc store.Accounts) {
	MustUser(t, acc, alice, "Alice@Example.com", domain.RoleAdmin)

	creds, err := acc.GetCredentials(ctx(), "alice@example.COM")
	require.NoError(t, err)
	assert.Equal(t, alice, creds.User.ID)
	assert.Equal(t, domain.RoleAdmin, creds.User.Role)
	assert.NotEmpty(t, creds.PasswordHash)

	_, err = acc.GetCredentials(ctx(), "nobody@example.com")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testGetUsers(t *testing.T, s store.Store, acc store.Accounts) {
	MustUser(t, acc, alice, "alice@example.com", domain.RoleAdmin)
	time.Sleep(2 * time.Millisecond)
	MustUser(t, acc, bob, "bob@example.com", domain.RoleUser)

	users, err := s.GetUsers(ctx())
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, alice, users[0].ID)
	assert.Equal(t, domain.RoleAdmin, users[0].Role)
	assert.Equal(t, bob, users[1].ID)
	assert.Equal(t, domain.RoleUser, users[1].Role)
	assert.False(t, users[1].Disabled)
}

func testUpdateUserRole(t *testing.T, s store.Store, acc store.Accounts) {
	MustUser(t, acc, bob, "bob@example.com", domain.RoleUser)

	updated, err := s.UpdateUserRole(ctx(), bob, domain.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, updated.Role)

	got, err := s.GetUser(ctx(), bob)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, got.Role)

	creds, err := acc.GetCredentials(ctx(), "bob@example.com")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, creds.User.Role, "role has one source of truth")
}

func testSetUserDisabled(t *testing.T, s store.Store, acc store.Accounts) {
	MustUser(t, acc, bob, "bob@example.com", domain.RoleUser)

	updated, err := s.SetUserDisabled(ctx(), bob, true)
	require.NoError(t, err)
	assert.True(t, updated.Disabled)

	got, err := s.GetUser(ctx(), bob)
	require.NoError(t, err)
	assert.True(t, got.Disabled)

	updated, err = s.SetUserDisabled(ctx(), bob, false)
	require.NoError(t, err)
	assert.False(t, updated.Disabled)
}

func testDeleteUserCascades(t *testing.T, s store.Store, acc store.Accounts) {
	MustUser(t, acc, alice, "alice@example.com", domain.RoleUser)
	c := MustCategory(t, s, alice, "Mine")
	app := MustApp(t, s, alice, c.ID, "GitHub", "https://github.com")
	require.NoError(t, s.ToggleFavorite(ctx(), alice, app.ID, true))
	require.NoError(t, s.RecordAccess(ctx(), alice, app.ID))

	MustUser(t, acc, bob, "bob@example.com", domain.RoleUser)
	bobCat := MustCategory(t, s, bob, "Bob's")

	require.NoError(t, s.DeleteUser(ctx(), alice))

	_, err := s.GetUser(ctx(), alice)
	assert.ErrorIs(t, err, store.ErrNotFound)

	cats, err := s.GetCategories(ctx(), alice)
	require.NoError(t, err)
	assert.Empty(t, cats)

	history, err := s.GetAccessHistory(ctx(), alice, 0)
	require.NoError(t, err)
	assert.Empty(t, history)

	favs, err := s.GetFavorites(ctx(), alice)
	require.NoError(t, err)
	assert.Empty(t, favs)

	_, err = s.GetCategory(ctx(), bob, bobCat.ID)
	assert.NoError(t, err, "other users keep their data")

	_, err = acc.CreateUser(ctx(), domain.User{ID: "user-alice-2", Email: "alice@example.com"}, "hash")
	assert.NoError(t, err, "email is free again after deletion")
}

func testUserNotFound(t *testing.T, s store.Store, _ store.Accounts) {
	_, err := s.GetUser(ctx(), "user-missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.UpdateUserRole(ctx(), "user-missing", domain.RoleAdmin)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.SetUserDisabled(ctx(), "user-missing", true)
	assert.ErrorIs(t, err, store.ErrNotFound)

	assert.ErrorIs(t, s.DeleteUser(ctx(), "user-missing"), store.ErrNotFound)
}
