package sqlstore

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/apphub/apphub-server/internal/domain"
	"github.com/apphub/apphub-server/internal/id"
	"github.com/apphub/apphub-server/internal/store"
)

type historyRow struct {
	ID         string `db:"id"`
	UserID     string `db:"user_id"`
	AppID      string `db:"app_id"`
	AccessedAt int64  `db:"accessed_at"`
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
		_, err := s.exec(ctx, s.db,
			`DELETE FROM bms_favorites WHERE user_id = ? AND app_id = ?`, userID, appID)
		return err
	}

	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := s.loadApp(ctx, tx, userID, appID); err != nil {
			return err
		}
		_, err := s.exec(ctx, tx,
			`INSERT INTO bms_favorites (user_id, app_id, created_at) VALUES (?, ?, ?)
			 ON CONFLICT (user_id, app_id) DO NOTHING`,
			userID, appID, nowMillis())
		return err
	})
}

// IsFavorite reports whether the user marked the app as favorite.
func (s *Store) IsFavorite(ctx context.Context, userID, appID string) (bool, error) {
	var n int
	err := s.get(ctx, s.db, &n,
		`SELECT COUNT(*) FROM bms_favorites WHERE user_id = ? AND app_id = ?`, userID, appID)
	return n > 0, err
}

// GetFavorites returns favorite apps, most recently favorited first.
func (s *Store) GetFavorites(ctx context.Context, userID string) ([]domain.App, error) {
	var rows []appRow
	if err := s.sel(ctx, s.db, &rows,
		`SELECT a.id, a.user_id, a.category_id, a.name, a.icon, a.url, a.description, a.created_at
		 FROM bms_favorites f
		 JOIN bms_apps a ON a.id = f.app_id AND a.user_id = f.user_id
		 WHERE f.user_id = ?
		 ORDER BY f.created_at DESC, a.id`, userID); err != nil {
		return nil, err
	}
	return appsToDomain(rows), nil
}

// RecordAccess appends a history entry for an existing app.
func (s *Store) RecordAccess(ctx context.Context, userID, appID string) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := s.loadApp(ctx, tx, userID, appID); err != nil {
			return err
		}
		now := time.Now()
		_, err := s.exec(ctx, tx,
			`INSERT INTO bms_access_history (id, user_id, app_id, accessed_at) VALUES (?, ?, ?, ?)`,
			id.Sortable(now), userID, appID, toMillis(now))
		return err
	})
}

// GetRecentApps returns distinct recently opened apps, newest first.
func (s *Store) GetRecentApps(ctx context.Context, userID string, limit int) ([]domain.RecentApp, error) {
	limit = store.RecentLimit(limit)

	type recentRow struct {
		appRow
		LastAccessedAt int64 `db:"last_accessed_at"`
	}
	var rows []recentRow
	if err := s.sel(ctx, s.db, &rows,
		`SELECT a.id, a.user_id, a.category_id, a.name, a.icon, a.url, a.description, a.created_at,
		        h.last_accessed_at
		 FROM (
		     SELECT app_id, MAX(accessed_at) AS last_accessed_at
		     FROM bms_access_history
		     WHERE user_id = ?
		     GROUP BY app_id
		 ) h
		 JOIN bms_apps a ON a.id = h.app_id
		 ORDER BY h.last_accessed_at DESC, a.id
		 LIMIT ?`, userID, limit); err != nil {
		return nil, err
	}

	out := make([]domain.RecentApp, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.RecentApp{App: r.toDomain(), LastAccessedAt: fromMillis(r.LastAccessedAt)})
	}
	return out, nil
}

// GetAccessHistory returns raw history entries, newest first. limit <= 0 returns all.
func (s *Store) GetAccessHistory(ctx context.Context, userID string, limit int) ([]domain.AccessEntry, error) {
	query := `SELECT id, user_id, app_id, accessed_at FROM bms_access_history
		WHERE user_id = ? ORDER BY accessed_at DESC, id DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	var rows []historyRow
	if err := s.sel(ctx, s.db, &rows, query, args...); err != nil {
		return nil, err
	}
	out := make([]domain.AccessEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// PruneAccessHistory deletes entries of all users recorded before the cutoff.
func (s *Store) PruneAccessHistory(ctx context.Context, before time.Time) (int, error) {
	res, err := s.exec(ctx, s.db,
		`DELETE FROM bms_access_history WHERE accessed_at < ?`, toMillis(before))
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

type configRow struct {
	ShowRegisterTab bool  `db:"show_register_tab"`
	UpdatedAt       int64 `db:"updated_at"`
}

// GetAppConfig reads the global config, writing the default on first access.
func (s *Store) GetAppConfig(ctx context.Context) (*domain.AppConfig, error) {
	var row configRow
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		def := s.defaults()
		if _, err := s.exec(ctx, tx,
			`INSERT INTO bms_config (id, show_register_tab, updated_at) VALUES (1, ?, ?)
			 ON CONFLICT (id) DO NOTHING`,
			def.ShowRegisterTab, toMillis(def.UpdatedAt)); err != nil {
			return err
		}
		return s.get(ctx, tx, &row, `SELECT show_register_tab, updated_at FROM bms_config WHERE id = 1`)
	})
	if err != nil {
		return nil, err
	}
	return &domain.AppConfig{ShowRegisterTab: row.ShowRegisterTab, UpdatedAt: fromMillis(row.UpdatedAt)}, nil
}

// UpdateAppConfig overwrites the global config. Last write wins.
func (s *Store) UpdateAppConfig(ctx context.Context, cfg domain.AppConfig) (*domain.AppConfig, error) {
	cfg.UpdatedAt = fromMillis(nowMillis())
	if _, err := s.exec(ctx, s.db,
		`INSERT INTO bms_config (id, show_register_tab, updated_at) VALUES (1, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET show_register_tab = excluded.show_register_tab,
		                                updated_at = excluded.updated_at`,
		cfg.ShowRegisterTab, toMillis(cfg.UpdatedAt)); err != nil {
		return nil, err
	}
	return &cfg, nil
}
