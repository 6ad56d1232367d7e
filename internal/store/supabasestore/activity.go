package supabasestore

import (
	"context"
	"time"

	"github.com/apphub/apphub-server/internal/domain"
	"github.com/apphub/apphub-server/internal/id"
	"github.com/apphub/apphub-server/internal/store"
)

type favoriteRow struct {
	UserID    string  `json:"user_id"`
	AppID     string  `json:"app_id"`
	CreatedAt int64   `json:"created_at"`
	App       *appRow `json:"app,omitempty"`
}

type historyRow struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	AppID      string `json:"app_id"`
	AccessedAt int64  `json:"accessed_at"`
}

func (r historyRow) toDomain() domain.AccessEntry {
	return domain.AccessEntry{
		ID:         r.ID,
		UserID:     r.UserID,
		AppID:      r.AppID,
		AccessedAt: fromMillis(r.AccessedAt),
	}
}

// ToggleFavorite sets or clears the favorite flag. Both directions are idempotent.
func (s *Store) ToggleFavorite(ctx context.Context, userID, appID string, favorite bool) error {
	if !favorite {
		err := s.client.From(tableFavorites).Eq("user_id", userID).Eq("app_id", appID).Delete(ctx, nil)
		return wrap(err, "remove favorite", "app", appID)
	}

	if _, err := s.GetApp(ctx, userID, appID); err != nil {
		return err
	}
	row := favoriteRow{UserID: userID, AppID: appID, CreatedAt: s.nowMillis()}
	err := s.client.From(tableFavorites).OnConflict("user_id,app_id").IgnoreDuplicates().
		Upsert(ctx, row, nil)
	return wrap(err, "add favorite", "app", appID)
}

// IsFavorite reports whether the user marked the app as favorite.
func (s *Store) IsFavorite(ctx context.Context, userID, appID string) (bool, error) {
	n, err := s.client.From(tableFavorites).Eq("user_id", userID).Eq("app_id", appID).Count(ctx)
	if err != nil {
		return false, wrap(err, "check favorite", "app", appID)
	}
	return n > 0, nil
}

// GetFavorites returns favorite apps, most recently favorited first. The app
// rows are embedded through the bms_favorites.app_id foreign key.
func (s *Store) GetFavorites(ctx context.Context, userID string) ([]domain.App, error) {
	var rows []favoriteRow
	if err := s.client.From(tableFavorites).
		Select("user_id,app_id,created_at,app:"+tableApps+"(*)").
		Eq("user_id", userID).
		Order("created_at", false).Order("app_id", true).
		Execute(ctx, &rows); err != nil {
		return nil, wrap(err, "list favorites", "user", userID)
	}

	out := make([]domain.App, 0, len(rows))
	for _, r := range rows {
		if r.App != nil {
			out = append(out, r.App.toDomain())
		}
	}
	return out, nil
}

// RecordAccess appends a history entry for an existing app.
func (s *Store) RecordAccess(ctx context.Context, userID, appID string) error {
	if _, err := s.GetApp(ctx, userID, appID); err != nil {
		return err
	}
	now := s.now()
	row := historyRow{ID: id.Sortable(now), UserID: userID, AppID: appID, AccessedAt: now.UnixMilli()}
	return wrap(s.client.From(tableHistory).Insert(ctx, row, nil), "record access", "app", appID)
}

// GetRecentApps returns distinct recently opened apps, newest first. History
// is read in pages until enough distinct apps are found.
func (s *Store) GetRecentApps(ctx context.Context, userID string, limit int) ([]domain.RecentApp, error) {
	offset := 0
	next := func(ctx context.Context) ([]domain.AccessEntry, bool, error) {
		page, err := s.historyPage(ctx, userID, offset, recentPageSize)
		if err != nil {
			return nil, false, err
		}
		offset += len(page)
		return page, len(page) == recentPageSize, nil
	}
	resolve := func(ctx context.Context, ids []string) (map[string]domain.App, error) {
		var rows []appRow
		if err := s.apps(userID).In("id", ids).Execute(ctx, &rows); err != nil {
			return nil, wrap(err, "load recent apps", "user", userID)
		}
		apps := make(map[string]domain.App, len(rows))
		for _, r := range rows {
			apps[r.ID] = r.toDomain()
		}
		return apps, nil
	}
	return store.CollectRecent(ctx, limit, next, resolve)
}

func (s *Store) historyPage(ctx context.Context, userID string, offset, size int) ([]domain.AccessEntry, error) {
	var rows []historyRow
	if err := s.client.From(tableHistory).Select("*").Eq("user_id", userID).
		Order("accessed_at", false).Order("id", false).
		Limit(size).Offset(offset).
		Execute(ctx, &rows); err != nil {
		return nil, wrap(err, "list history", "user", userID)
	}
	out := make([]domain.AccessEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// GetAccessHistory returns raw history entries, newest first. limit <= 0 returns all.
func (s *Store) GetAccessHistory(ctx context.Context, userID string, limit int) ([]domain.AccessEntry, error) {
	q := s.client.From(tableHistory).Select("*").Eq("user_id", userID).
		Order("accessed_at", false).Order("id", false)
	if limit > 0 {
		q = q.Limit(limit)
	}

	var rows []historyRow
	if err := q.Execute(ctx, &rows); err != nil {
		return nil, wrap(err, "list history", "user", userID)
	}
	out := make([]domain.AccessEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// PruneAccessHistory deletes entries of all users recorded before the cutoff.
func (s *Store) PruneAccessHistory(ctx context.Context, before time.Time) (int, error) {
	var deleted []historyRow
	if err := s.client.From(tableHistory).Select("id").Lt("accessed_at", before.UnixMilli()).
		Delete(ctx, &deleted); err != nil {
		return 0, wrap(err, "prune history", "history", "")
	}
	return len(deleted), nil
}

type configRow struct {
	ID              int   `json:"id"`
	ShowRegisterTab bool  `json:"show_register_tab"`
	UpdatedAt       int64 `json:"updated_at"`
}

// GetAppConfig reads the global config, writing the default on first access.
// Concurrent first reads race on the insert; ignore-duplicates keeps the winner.
func (s *Store) GetAppConfig(ctx context.Context) (*domain.AppConfig, error) {
	row, found, err := s.loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	if !found {
		def := s.defaults()
		seed := configRow{ID: 1, ShowRegisterTab: def.ShowRegisterTab, UpdatedAt: def.UpdatedAt.UnixMilli()}
		if err := s.client.From(tableConfig).OnConflict("id").IgnoreDuplicates().
			Upsert(ctx, seed, nil); err != nil {
			return nil, wrap(err, "seed app config", "config", "app")
		}
		if row, _, err = s.loadConfig(ctx); err != nil {
			return nil, err
		}
	}
	return &domain.AppConfig{ShowRegisterTab: row.ShowRegisterTab, UpdatedAt: fromMillis(row.UpdatedAt)}, nil
}

func (s *Store) loadConfig(ctx context.Context) (configRow, bool, error) {
	var rows []configRow
	if err := s.client.From(tableConfig).Select("*").Eq("id", 1).Limit(1).Execute(ctx, &rows); err != nil {
		return configRow{}, false, wrap(err, "get app config", "config", "app")
	}
	if len(rows) == 0 {
		return configRow{}, false, nil
	}
	return rows[0], true, nil
}

// UpdateAppConfig overwrites the global config. Last write wins.
func (s *Store) UpdateAppConfig(ctx context.Context, cfg domain.AppConfig) (*domain.AppConfig, error) {
	cfg.UpdatedAt = fromMillis(s.nowMillis())
	row := configRow{ID: 1, ShowRegisterTab: cfg.ShowRegisterTab, UpdatedAt: cfg.UpdatedAt.UnixMilli()}
	if err := s.client.From(tableConfig).OnConflict("id").Upsert(ctx, row, nil); err != nil {
		return nil, wrap(err, "update app config", "config", "app")
	}
	return &cfg, nil
}
