package sqlstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apphub/apphub-server/internal/store"
	"github.com/apphub/apphub-server/internal/store/storetest"
)

func newSQLiteStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "apphub.db")
	s, err := OpenSQLite(context.Background(), path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestConformance_SQLite(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return newSQLiteStore(t) })
}

func TestConformance_Postgres(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}

	storetest.Run(t, func(t *testing.T) store.Store {
		s, err := OpenPostgres(context.Background(), dsn, nil)
		require.NoError(t, err)
		_, err = s.db.Exec(`TRUNCATE bms_access_history, bms_favorites, bms_apps, bms_categories,
			bms_config, bms_users, bms_user_roles`)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestOpenSQLite_Pragmas(t *testing.T) {
	s := newSQLiteStore(t)

	var journalMode string
	require.NoError(t, s.db.Get(&journalMode, "PRAGMA journal_mode"))
	assert.Equal(t, "wal", journalMode)

	var fk int
	require.NoError(t, s.db.Get(&fk, "PRAGMA foreign_keys"))
	assert.Equal(t, 1, fk)

	for _, table := range []string{
		"bms_categories", "bms_apps", "bms_favorites", "bms_access_history",
		"bms_config", "bms_users", "bms_user_roles",
	} {
		var name string
		err := s.db.Get(&name, "SELECT name FROM sqlite_master WHERE type='table' AND name=?", table)
		assert.NoError(t, err, "table %s", table)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "apphub.db")
	dsn := sqliteDSN(path)

	require.NoError(t, Migrate(DriverSQLite, dsn))
	require.NoError(t, Migrate(DriverSQLite, dsn))

	version, dirty, err := SchemaVersion(DriverSQLite, dsn)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)
}

func TestMigrationsDir_UnknownDriver(t *testing.T) {
	_, err := migrationsDir("mysql")
	assert.Error(t, err)
}

func TestSearchApps_EscapesWildcards(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	c := storetest.MustCategory(t, s, "u1", "Tools")
	storetest.MustApp(t, s, "u1", c.ID, "100% Uptime", "https://status.example.com")
	storetest.MustApp(t, s, "u1", c.ID, "1000 Words", "https://words.example.com")

	found, err := s.SearchApps(ctx, "u1", "100%")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "100% Uptime", found[0].Name)
}
