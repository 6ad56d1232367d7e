package badgerstore

import (
	"bytes"
	"context"
	"encoding/json"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/apphub/apphub-server/internal/domain"
	"github.com/apphub/apphub-server/internal/id"
	"github.com/apphub/apphub-server/internal/store"
)

// ToggleFavorite sets or clears the favorite flag. Both directions are idempotent.
func (s *Store) ToggleFavorite(ctx context.Context, userID, appID string, favorite bool) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		if !favorite {
			return txn.Delete(favoriteKey(userID, appID))
		}

		var app domain.App
		if err := s.loadApp(txn, userID, appID, &app); err != nil {
			return err
		}
		already, err := exists(txn, favoriteKey(userID, appID))
		if err != nil || already {
			return err
		}
		return setJSON(txn, favoriteKey(userID, appID), domain.Favorite{
			UserID:    userID,
			AppID:     appID,
			CreatedAt: time.Now().UTC(),
		})
	})
}

// IsFavorite reports whether the user marked the app as favorite.
func (s *Store) IsFavorite(ctx context.Context, userID, appID string) (bool, error) {
	var found bool
	err := s.view(ctx, func(txn *badger.Txn) error {
		var err error
		found, err = exists(txn, favoriteKey(userID, appID))
		return err
	})
	return found, err
}

// GetFavorites returns favorite apps, most recently favorited first.
func (s *Store) GetFavorites(ctx context.Context, userID string) ([]domain.App, error) {
	out := []domain.App{}
	err := s.view(ctx, func(txn *badger.Txn) error {
		favs, err := decodeAll[domain.Favorite](txn, []byte(userScope(prefixFavorite, userID)))
		if err != nil {
			return err
		}
		slices.SortStableFunc(favs, func(a, b domain.Favorite) int {
			return b.CreatedAt.Compare(a.CreatedAt)
		})
		for _, f := range favs {
			var app domain.App
			if err := getJSON(txn, appKey(userID, f.AppID), &app); err != nil {
				continue
			}
			out = append(out, app)
		}
		return nil
	})
	return out, err
}

// RecordAccess appends a history entry for an existing app.
func (s *Store) RecordAccess(ctx context.Context, userID, appID string) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		var app domain.App
		if err := s.loadApp(txn, userID, appID, &app); err != nil {
			return err
		}
		now := time.Now().UTC()
		entry := domain.AccessEntry{
			ID:         id.Sortable(now),
			UserID:     userID,
			AppID:      appID,
			AccessedAt: now,
		}
		return setJSON(txn, historyKey(userID, entry.ID), entry)
	})
}

// GetRecentApps returns distinct recently opened apps, newest first.
func (s *Store) GetRecentApps(ctx context.Context, userID string, limit int) ([]domain.RecentApp, error) {
	var out []domain.RecentApp
	err := s.view(ctx, func(txn *badger.Txn) error {
		entries, err := s.history(txn, userID, 0)
		if err != nil {
			return err
		}

		apps := make(map[string]domain.App)
		for _, e := range entries {
			if _, seen := apps[e.AppID]; seen {
				continue
			}
			var app domain.App
			if err := getJSON(txn, appKey(userID, e.AppID), &app); err == nil {
				apps[e.AppID] = app
			}
		}
		out = store.BuildRecent(entries, apps, limit)
		return nil
	})
	return out, err
}

// GetAccessHistory returns raw history entries, newest first. limit <= 0 returns all.
func (s *Store) GetAccessHistory(ctx context.Context, userID string, limit int) ([]domain.AccessEntry, error) {
	var out []domain.AccessEntry
	err := s.view(ctx, func(txn *badger.Txn) error {
		var err error
		out, err = s.history(txn, userID, limit)
		return err
	})
	if out == nil {
		out = []domain.AccessEntry{}
	}
	return out, err
}

// history walks the user's entries in reverse ULID order, which is newest first.
func (s *Store) history(txn *badger.Txn, userID string, limit int) ([]domain.AccessEntry, error) {
	var out []domain.AccessEntry
	for _, val := range scanPrefixReverse(txn, []byte(userScope(prefixHistory, userID))) {
		var e domain.AccessEntry
		if err := json.Unmarshal(val, &e); err != nil {
			return nil, err
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// PruneAccessHistory deletes entries of all users recorded before the cutoff.
// Entry ids are ULIDs, so the timestamp is read from the key without decoding values.
func (s *Store) PruneAccessHistory(ctx context.Context, before time.Time) (int, error) {
	var stale [][]byte
	err := s.view(ctx, func(txn *badger.Txn) error {
		for key := range scanKeys(txn, []byte(prefixHistory)) {
			entryID := key[bytes.LastIndexByte(key, ':')+1:]
			ts, err := id.SortableTime(string(entryID))
			if err != nil {
				s.logger.Warn("skipping history key with invalid id", "key", string(key), "error", err)
				continue
			}
			if ts.Before(before) {
				stale = append(stale, key)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	// Delete in batches to stay under Badger's transaction size limit.
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range stale {
		if err := wb.Delete(key); err != nil {
			return 0, err
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, err
	}
	return len(stale), nil
}
