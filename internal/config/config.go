// Package config loads server configuration from command-line flags, environment
// variables, and an optional .env file.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends selectable with BMS_DATABASE.
const (
	BackendFirebase = "firebase"
	BackendPostgres = "postgres"
	BackendSupabase = "supabase"
	BackendSQLite   = "sqlite"
	BackendLocal    = "local"
)

// Config holds the application configuration.
type Config struct {
	App      AppConfig
	Logger   LoggerConfig
	Server   ServerConfig
	Storage  StorageConfig
	Firebase FirebaseConfig
	Supabase SupabaseConfig
	Auth     AuthConfig
	Features FeaturesConfig
	History  HistoryConfig
	Sentry   SentryConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
	Version     string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port               string        // default: 8080
	ReadTimeout        time.Duration // default: 15s
	WriteTimeout       time.Duration // default: 15s
	IdleTimeout        time.Duration // default: 60s
	CORSAllowedOrigins []string      // default: *
}

// StorageConfig selects and locates the storage backend.
type StorageConfig struct {
	Backend     string // BMS_DATABASE
	DataPath    string // badger, sqlite, search index and auth key live here
	DatabaseURL string // postgres DSN
}

// FirebaseConfig holds Firebase Admin SDK settings.
type FirebaseConfig struct {
	// ServiceAccount is either inline service-account JSON or a path to it.
	// Empty means application default credentials.
	ServiceAccount string
	ProjectID      string
}

// SupabaseConfig holds Supabase project settings.
type SupabaseConfig struct {
	URL       string
	Key       string // service-role key
	JWTSecret string // verifies access tokens issued by Supabase Auth
}

// AuthConfig holds local authentication settings.
type AuthConfig struct {
	// AccessTokenKey is the PASETO v4 symmetric key. Loaded by auth.LoadOrGenerateKey.
	AccessTokenKey      []byte
	AccessTokenDuration time.Duration
	AdminEmails         []string
}

// FeaturesConfig holds defaults for feature flags.
type FeaturesConfig struct {
	// ShowRegisterTab seeds AppConfig the first time it is read.
	ShowRegisterTab bool
	SearchEnabled   bool
}

// HistoryConfig controls access-history retention.
type HistoryConfig struct {
	Retention time.Duration // 0 disables pruning
	Schedule  string        // cron spec
}

// SentryConfig holds error reporting settings.
type SentryConfig struct {
	DSN string
}

// LoadConfig loads configuration from the process arguments and environment.
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}

// Load builds the configuration with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("apphub", flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	serverPort := fs.String("port", "", "Server port (default: 8080)")
	readTimeout := fs.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := fs.String("write-timeout", "", "HTTP write timeout (default: 15s)")
	idleTimeout := fs.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")
	backend := fs.String("database", "", "Storage backend (firebase, postgres, supabase, sqlite, local)")
	dataPath := fs.String("data-path", "", "Directory for local data")
	databaseURL := fs.String("database-url", "", "Postgres connection string")
	accessTokenDuration := fs.String("access-token-duration", "", "Access token lifetime (default: 24h)")
	envFile := fs.String("env-file", ".env", "Path to .env file")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	// Missing .env is fine; variables already in the environment win.
	_ = godotenv.Load(*envFile)

	environment := getConfigValue(*env, "ENV", "development")

	cfg := &Config{
		App: AppConfig{
			Environment: environment,
			Version:     getConfigValue("", "APP_VERSION", "dev"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Server: ServerConfig{
			Port:               getConfigValue(*serverPort, "SERVER_PORT", "8080"),
			CORSAllowedOrigins: getListConfigValue("", "CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Storage: StorageConfig{
			Backend:     strings.ToLower(getConfigValue(*backend, "BMS_DATABASE", BackendLocal)),
			DataPath:    getConfigValue(*dataPath, "DATA_PATH", ""),
			DatabaseURL: getConfigValue(*databaseURL, "DATABASE_URL", ""),
		},
		Firebase: FirebaseConfig{
			ServiceAccount: getConfigValue("", "FIREBASE_SERVICE_ACCOUNT", ""),
			ProjectID:      getConfigValue("", "FIREBASE_PROJECT_ID", ""),
		},
		Supabase: SupabaseConfig{
			URL:       getConfigValue("", "SUPABASE_URL", ""),
			Key:       getConfigValue("", "SUPABASE_KEY", ""),
			JWTSecret: getConfigValue("", "SUPABASE_JWT_SECRET", ""),
		},
		Auth: AuthConfig{
			AdminEmails: getListConfigValue("", "ADMIN_EMAILS", nil),
		},
		Features: FeaturesConfig{
			ShowRegisterTab: getBoolConfigValue("", "APP_SHOW_REGISTER_TAB", environment != "production"),
			SearchEnabled:   getBoolConfigValue("", "SEARCH_ENABLED", true),
		},
		History: HistoryConfig{
			Schedule: getConfigValue("", "HISTORY_RETENTION_SCHEDULE", "@daily"),
		},
		Sentry: SentryConfig{
			DSN: getConfigValue("", "SENTRY_DSN", ""),
		},
	}

	durations := []struct {
		name   string
		flag   string
		envKey string
		def    string
		target *time.Duration
	}{
		{"read timeout", *readTimeout, "SERVER_READ_TIMEOUT", "15s", &cfg.Server.ReadTimeout},
		{"write timeout", *writeTimeout, "SERVER_WRITE_TIMEOUT", "15s", &cfg.Server.WriteTimeout},
		{"idle timeout", *idleTimeout, "SERVER_IDLE_TIMEOUT", "60s", &cfg.Server.IdleTimeout},
		{"access token duration", *accessTokenDuration, "ACCESS_TOKEN_DURATION", "24h", &cfg.Auth.AccessTokenDuration},
		{"history retention", "", "HISTORY_RETENTION", "2160h", &cfg.History.Retention},
	}
	for _, d := range durations {
		raw := getConfigValue(d.flag, d.envKey, d.def)
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", d.name, raw, err)
		}
		*d.target = parsed
	}

	if err := cfg.expandDataPath(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	switch c.Storage.Backend {
	case BackendLocal, BackendSQLite:
		if c.Storage.DataPath == "" {
			return errors.New("data path cannot be empty for local backends")
		}
	case BackendPostgres:
		if c.Storage.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required when BMS_DATABASE=postgres")
		}
	case BackendSupabase:
		if c.Supabase.URL == "" || c.Supabase.Key == "" {
			return errors.New("SUPABASE_URL and SUPABASE_KEY are required when BMS_DATABASE=supabase")
		}
		if c.Supabase.JWTSecret == "" {
			return errors.New("SUPABASE_JWT_SECRET is required when BMS_DATABASE=supabase")
		}
	case BackendFirebase:
		// Credentials may come from the environment (GOOGLE_APPLICATION_CREDENTIALS).
	default:
		return fmt.Errorf("invalid BMS_DATABASE: %s (must be firebase, postgres, supabase, sqlite, or local)", c.Storage.Backend)
	}

	if c.History.Retention < 0 {
		return errors.New("history retention cannot be negative")
	}

	if c.Auth.AccessTokenDuration <= 0 {
		return errors.New("access token duration must be positive")
	}

	return nil
}

// UsesLocalAccounts reports whether the backend stores its own users and
// passwords, as opposed to delegating to Firebase Auth or Supabase Auth.
func (c *Config) UsesLocalAccounts() bool {
	switch c.Storage.Backend {
	case BackendLocal, BackendSQLite, BackendPostgres:
		return true
	default:
		return false
	}
}

// expandPath expands ~ and makes the path absolute.
// If path is empty, defaultPath is returned unchanged.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

func (c *Config) expandDataPath() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	expanded, err := expandPath(c.Storage.DataPath, filepath.Join(homeDir, "AppHub", "data"))
	if err != nil {
		return err
	}
	c.Storage.DataPath = expanded
	return nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getBoolConfigValue returns a bool from flag, env var, or default.
// Unparseable values fall back to the default.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	switch strings.ToLower(strValue) {
	case "yes", "on":
		return true
	case "no", "off":
		return false
	}
	b, err := strconv.ParseBool(strValue)
	if err != nil {
		return defaultValue
	}
	return b
}

// getListConfigValue splits a comma-separated value, dropping blanks.
func getListConfigValue(flagValue, envKey string, defaultValue []string) []string {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(strValue, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
