package sqlstore

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apphub/apphub-server/internal/domain"
	"github.com/apphub/apphub-server/internal/store"
)

// newMockStore returns a postgres-dialect store backed by sqlmock.
func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return newStore(sqlx.NewDb(db, DriverPostgres), nil), mock
}

func TestPostgres_CreateUserDuplicateEmail(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO bms_users`)).
		WithArgs("usr-1", "", "Alice@Example.com", "alice@example.com", "hash", false, sqlmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: pgUniqueViolation, Message: "duplicate key"})
	mock.ExpectRollback()

	_, err := s.CreateUser(context.Background(), domain.User{ID: "usr-1", Email: "Alice@Example.com"}, "hash")
	assert.ErrorIs(t, err, store.ErrAlreadyExists)
}

func TestPostgres_CreateUserWritesRole(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO bms_users`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO bms_user_roles (user_id, role, updated_at) VALUES ($1, $2, $3)`)).
		WithArgs("usr-1", "ADMIN", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	u, err := s.CreateUser(context.Background(),
		domain.User{ID: "usr-1", Email: "a@example.com", Role: domain.RoleAdmin}, "hash")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, u.Role)
}

func TestPostgres_DeleteUserNotFoundRollsBack(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM bms_users WHERE id = $1`)).
		WithArgs("usr-missing").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := s.DeleteUser(context.Background(), "usr-missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestPostgres_DeleteUserCascadesInOneTransaction(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM bms_users WHERE id = $1`)).
		WithArgs("usr-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	for _, table := range []string{"bms_access_history", "bms_favorites", "bms_apps", "bms_categories", "bms_user_roles"} {
		mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM ` + table + ` WHERE user_id = $1`)).
			WithArgs("usr-1").
			WillReturnResult(sqlmock.NewResult(0, 3))
	}
	mock.ExpectCommit()

	require.NoError(t, s.DeleteUser(context.Background(), "usr-1"))
}

func TestPostgres_SearchAppsPattern(t *testing.T) {
	s, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"id", "user_id", "category_id", "name", "icon", "url", "description", "created_at"}).
		AddRow("app-1", "u1", "cat-1", "GitHub", "", "https://github.com", "", int64(1700000000000))
	mock.ExpectQuery(`SELECT .* FROM bms_apps\s+WHERE user_id = \$1 AND \(LOWER\(name\) LIKE \$2`).
		WithArgs("u1", `%git\_hub%`, `%git\_hub%`).
		WillReturnRows(rows)

	apps, err := s.SearchApps(context.Background(), "u1", "  Git_Hub ")
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, "GitHub", apps[0].Name)
	assert.Equal(t, int64(1700000000000), apps[0].CreatedAt.UnixMilli())
}

func TestPostgres_UpdateRoleUnknownUser(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM bms_users u\s+LEFT JOIN bms_user_roles r ON r.user_id = u.id WHERE u.id = \$1`).
		WithArgs("usr-missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	_, err := s.UpdateUserRole(context.Background(), "usr-missing", domain.RoleAdmin)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(&pgconn.PgError{Code: pgUniqueViolation}))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isUniqueViolation(context.Canceled))
}
