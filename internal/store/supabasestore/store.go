// Package supabasestore implements store.Store on a Supabase project.
//
// Catalog, activity and config rows live in the bms_* tables (the same schema
// sqlstore migrates) and are reached through PostgREST. Accounts belong to
// GoTrue: the role is a bms_user_roles row and the disabled flag is the GoTrue
// ban, so each fact has exactly one owner.
package supabasestore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/apphub/apphub-server/internal/store"
	"github.com/apphub/apphub-server/internal/supabase"
)

var _ store.Store = (*Store)(nil)

// Table names.
const (
	tableCategories = "bms_categories"
	tableApps       = "bms_apps"
	tableFavorites  = "bms_favorites"
	tableHistory    = "bms_access_history"
	tableConfig     = "bms_config"
	tableRoles      = "bms_user_roles"
)

// Users are listed from GoTrue in pages of this size.
const usersPageSize = 100

// recentPageSize is how many history rows GetRecentApps reads per request.
const recentPageSize = 500

// Store provides Supabase-backed persistence.
type Store struct {
	client   *supabase.Client
	logger   *slog.Logger
	defaults store.DefaultAppConfig
	now      func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithDefaultAppConfig sets the AppConfig written on first read.
func WithDefaultAppConfig(fn store.DefaultAppConfig) Option {
	return func(s *Store) { s.defaults = fn }
}

// New wraps a Supabase client.
func New(client *supabase.Client, logger *slog.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Store{
		client:   client,
		logger:   logger,
		defaults: store.StaticAppConfig(true),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ping checks that PostgREST answers and the schema is in place.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.From(tableConfig).Select("id").Limit(1).Execute(ctx, nil); err != nil {
		return fmt.Errorf("ping supabase: %w", err)
	}
	return nil
}

// Close is a no-op; the HTTP client holds no resources that need releasing.
func (s *Store) Close() error {
	s.logger.Info("closing supabase store")
	return nil
}

// wrap maps API failures to store errors. Foreign key violations mean the
// referenced row vanished between the existence check and the write.
func wrap(err error, op, kind, id string) error {
	if err == nil {
		return nil
	}
	var apiErr *supabase.APIError
	if errors.As(err, &apiErr) && apiErr.Code == supabase.CodeForeignKeyViolation {
		return store.ErrNotFound.WithMessagef("%s %s not found", kind, id).WithCause(err)
	}
	if supabase.IsNotFound(err) {
		return store.ErrNotFound.WithMessagef("%s %s not found", kind, id).WithCause(err)
	}
	if supabase.IsConflict(err) {
		return store.ErrAlreadyExists.WithCause(err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (s *Store) nowMillis() int64 {
	return s.now().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
