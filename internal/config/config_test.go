package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		App:     AppConfig{Environment: "development"},
		Logger:  LoggerConfig{Level: "info"},
		Storage: StorageConfig{Backend: BackendLocal, DataPath: "/var/lib/apphub"},
		Auth:    AuthConfig{AccessTokenDuration: time.Hour},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_AllEnvironments(t *testing.T) {
	tests := []struct {
		env   string
		valid bool
	}{
		{"development", true},
		{"staging", true},
		{"production", true},
		{"test", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			cfg := validConfig()
			cfg.App.Environment = tt.env

			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidate_Backends(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "local with data path",
			mutate: func(c *Config) { c.Storage.Backend = BackendLocal },
		},
		{
			name:   "sqlite with data path",
			mutate: func(c *Config) { c.Storage.Backend = BackendSQLite },
		},
		{
			name:    "postgres without url",
			mutate:  func(c *Config) { c.Storage.Backend = BackendPostgres },
			wantErr: "DATABASE_URL",
		},
		{
			name: "postgres with url",
			mutate: func(c *Config) {
				c.Storage.Backend = BackendPostgres
				c.Storage.DatabaseURL = "postgres://localhost/apphub"
			},
		},
		{
			name:    "supabase without key",
			mutate:  func(c *Config) { c.Storage.Backend = BackendSupabase; c.Supabase.URL = "https://x.supabase.co" },
			wantErr: "SUPABASE_KEY",
		},
		{
			name: "supabase without jwt secret",
			mutate: func(c *Config) {
				c.Storage.Backend = BackendSupabase
				c.Supabase.URL = "https://x.supabase.co"
				c.Supabase.Key = "service-role"
			},
			wantErr: "SUPABASE_JWT_SECRET",
		},
		{
			name:   "firebase with default credentials",
			mutate: func(c *Config) { c.Storage.Backend = BackendFirebase },
		},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.Storage.Backend = "mongo" },
			wantErr: "invalid BMS_DATABASE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidate_NegativeRetention(t *testing.T) {
	cfg := validConfig()
	cfg.History.Retention = -time.Hour
	assert.Error(t, cfg.Validate())
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("BMS_DATABASE", "")
	t.Setenv("ENV", "")
	t.Setenv("APP_SHOW_REGISTER_TAB", "")
	t.Setenv("DATA_PATH", t.TempDir())

	cfg, err := Load([]string{"-env-file", filepath.Join(t.TempDir(), "missing.env")})
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.App.Environment)
	assert.Equal(t, BackendLocal, cfg.Storage.Backend)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 24*time.Hour, cfg.Auth.AccessTokenDuration)
	assert.Equal(t, 90*24*time.Hour, cfg.History.Retention)
	assert.True(t, cfg.Features.ShowRegisterTab, "register tab defaults on outside production")
	assert.True(t, cfg.Features.SearchEnabled)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSAllowedOrigins)
}

func TestLoad_FlagsOverrideEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("BMS_DATABASE", "sqlite")
	t.Setenv("DATA_PATH", t.TempDir())

	cfg, err := Load([]string{"-port", "9100", "-database", "LOCAL", "-env-file", ""})
	require.NoError(t, err)

	assert.Equal(t, "9100", cfg.Server.Port)
	assert.Equal(t, BackendLocal, cfg.Storage.Backend)
}

func TestLoad_ProductionHidesRegisterTab(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("APP_SHOW_REGISTER_TAB", "")
	t.Setenv("DATA_PATH", t.TempDir())

	cfg, err := Load([]string{"-env-file", ""})
	require.NoError(t, err)
	assert.False(t, cfg.Features.ShowRegisterTab)
}

func TestLoad_EnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	content := "# comment\nADMIN_EMAILS= root@example.com, ops@example.com \nSUPABASE_JWT_SECRET=\"s3cret\"\n"
	require.NoError(t, os.WriteFile(envPath, []byte(content), 0o600))

	t.Setenv("DATA_PATH", dir)
	t.Setenv("ADMIN_EMAILS", "")
	t.Setenv("SUPABASE_JWT_SECRET", "")
	// godotenv sets variables directly; restore them after the test.
	t.Cleanup(func() {
		_ = os.Unsetenv("ADMIN_EMAILS")
		_ = os.Unsetenv("SUPABASE_JWT_SECRET")
	})
	require.NoError(t, os.Unsetenv("ADMIN_EMAILS"))
	require.NoError(t, os.Unsetenv("SUPABASE_JWT_SECRET"))

	cfg, err := Load([]string{"-env-file", envPath})
	require.NoError(t, err)

	assert.Equal(t, []string{"root@example.com", "ops@example.com"}, cfg.Auth.AdminEmails)
	assert.Equal(t, "s3cret", cfg.Supabase.JWTSecret)
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("DATA_PATH", t.TempDir())
	t.Setenv("HISTORY_RETENTION", "forever")

	_, err := Load([]string{"-env-file", ""})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "history retention")
}

func TestExpandPath(t *testing.T) {
	homeDir, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := expandPath("~/apphub", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(homeDir, "apphub"), got)

	got, err = expandPath("", "/default")
	require.NoError(t, err)
	assert.Equal(t, "/default", got)

	got, err = expandPath("/abs/../abs/data", "")
	require.NoError(t, err)
	assert.Equal(t, "/abs/data", got)
}

func TestGetBoolConfigValue(t *testing.T) {
	t.Setenv("FLAG_ON", "yes")
	t.Setenv("FLAG_OFF", "0")
	t.Setenv("FLAG_JUNK", "maybe")

	assert.True(t, getBoolConfigValue("", "FLAG_ON", false))
	assert.False(t, getBoolConfigValue("", "FLAG_OFF", true))
	assert.True(t, getBoolConfigValue("", "FLAG_JUNK", true))
	assert.False(t, getBoolConfigValue("", "FLAG_UNSET_XYZ", false))
	assert.True(t, getBoolConfigValue("true", "FLAG_OFF", false))
}

func TestUsesLocalAccounts(t *testing.T) {
	for backend, want := range map[string]bool{
		BackendLocal:    true,
		BackendSQLite:   true,
		BackendPostgres: true,
		BackendFirebase: false,
		BackendSupabase: false,
	} {
		cfg := validConfig()
		cfg.Storage.Backend = backend
		assert.Equal(t, want, cfg.UsesLocalAccounts(), backend)
	}
}
