package firebasestore

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/apphub/apphub-server/internal/domain"
	"github.com/apphub/apphub-server/internal/id"
	"github.com/apphub/apphub-server/internal/store"
)

type favoriteDoc struct {
	AppID     string    `firestore:"appId"`
	CreatedAt time.Time `firestore:"timestamp"`
}

type historyDoc struct {
	AppID      string    `firestore:"appId"`
	AccessedAt time.Time `firestore:"timestamp"`
}

type configDoc struct {
	ShowRegisterTab bool      `firestore:"showRegisterTab"`
	UpdatedAt       time.Time `firestore:"updatedAt"`
}

// ToggleFavorite sets or clears the favorite flag. Both directions are idempotent.
func (s *Store) ToggleFavorite(ctx context.Context, userID, appID string, favorite bool) error {
	favRef := s.favorites(userID).Doc(appID)
	if !favorite {
		if _, err := favRef.Delete(ctx); err != nil {
			return fmt.Errorf("remove favorite: %w", err)
		}
		return nil
	}

	return s.fs.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(s.apps(userID).Doc(appID)); err != nil {
			return notFound(err, "app", appID)
		}
		_, err := tx.Get(favRef)
		switch {
		case err == nil:
			return nil
		case !isNotFound(err):
			return fmt.Errorf("read favorite: %w", err)
		}
		return tx.Create(favRef, favoriteDoc{AppID: appID, CreatedAt: millis(time.Now())})
	})
}

// IsFavorite reports whether the user marked the app as favorite.
func (s *Store) IsFavorite(ctx context.Context, userID, appID string) (bool, error) {
	_, err := s.favorites(userID).Doc(appID).Get(ctx)
	switch {
	case err == nil:
		return true, nil
	case isNotFound(err):
		return false, nil
	default:
		return false, fmt.Errorf("read favorite: %w", err)
	}
}

// GetFavorites returns favorite apps, most recently favorited first.
func (s *Store) GetFavorites(ctx context.Context, userID string) ([]domain.App, error) {
	favSnaps, err := s.favorites(userID).OrderBy("timestamp", firestore.Desc).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	if len(favSnaps) == 0 {
		return []domain.App{}, nil
	}

	refs := make([]*firestore.DocumentRef, 0, len(favSnaps))
	for _, snap := range favSnaps {
		refs = append(refs, s.apps(userID).Doc(snap.Ref.ID))
	}
	appSnaps, err := s.fs.GetAll(ctx, refs)
	if err != nil {
		return nil, fmt.Errorf("load favorite apps: %w", err)
	}

	out := make([]domain.App, 0, len(appSnaps))
	for _, snap := range appSnaps {
		if !snap.Exists() {
			continue
		}
		var doc appDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode app %s: %w", snap.Ref.ID, err)
		}
		out = append(out, doc.toDomain(snap.Ref.ID))
	}
	return out, nil
}

// RecordAccess appends a history entry for an existing app.
func (s *Store) RecordAccess(ctx context.Context, userID, appID string) error {
	if _, err := s.GetApp(ctx, userID, appID); err != nil {
		return err
	}
	now := time.Now()
	doc := historyDoc{AppID: appID, AccessedAt: millis(now)}
	if _, err := s.history(userID).Doc(id.Sortable(now)).Create(ctx, doc); err != nil {
		return fmt.Errorf("record access: %w", err)
	}
	return nil
}

// GetRecentApps returns distinct recently opened apps, newest first. History
// is read in pages, resuming after the last document of the previous page,
// until enough distinct apps that still exist are found.
func (s *Store) GetRecentApps(ctx context.Context, userID string, limit int) ([]domain.RecentApp, error) {
	var last *firestore.DocumentSnapshot
	next := func(ctx context.Context) ([]domain.AccessEntry, bool, error) {
		q := s.history(userID).
			OrderBy("timestamp", firestore.Desc).
			OrderBy(firestore.DocumentID, firestore.Desc).
			Limit(recentPageSize)
		if last != nil {
			q = q.StartAfter(last)
		}
		snaps, err := q.Documents(ctx).GetAll()
		if err != nil {
			return nil, false, fmt.Errorf("list history: %w", err)
		}
		page := make([]domain.AccessEntry, 0, len(snaps))
		for _, snap := range snaps {
			e, err := decodeHistory(userID, snap)
			if err != nil {
				return nil, false, err
			}
			page = append(page, e)
		}
		if len(snaps) > 0 {
			last = snaps[len(snaps)-1]
		}
		return page, len(snaps) == recentPageSize, nil
	}
	resolve := func(ctx context.Context, ids []string) (map[string]domain.App, error) {
		refs := make([]*firestore.DocumentRef, 0, len(ids))
		for _, appID := range ids {
			refs = append(refs, s.apps(userID).Doc(appID))
		}
		snaps, err := s.fs.GetAll(ctx, refs)
		if err != nil {
			return nil, fmt.Errorf("load recent apps: %w", err)
		}
		apps, err := decodeApps(snaps)
		if err != nil {
			return nil, err
		}
		byID := make(map[string]domain.App, len(apps))
		for _, a := range apps {
			byID[a.ID] = a
		}
		return byID, nil
	}
	return store.CollectRecent(ctx, limit, next, resolve)
}

func decodeHistory(userID string, snap *firestore.DocumentSnapshot) (domain.AccessEntry, error) {
	var doc historyDoc
	if err := snap.DataTo(&doc); err != nil {
		return domain.AccessEntry{}, fmt.Errorf("decode history %s: %w", snap.Ref.ID, err)
	}
	return domain.AccessEntry{
		ID:         snap.Ref.ID,
		UserID:     userID,
		AppID:      doc.AppID,
		AccessedAt: doc.AccessedAt.UTC(),
	}, nil
}

// GetAccessHistory returns raw history entries, newest first. limit <= 0 returns all.
func (s *Store) GetAccessHistory(ctx context.Context, userID string, limit int) ([]domain.AccessEntry, error) {
	q := s.history(userID).OrderBy("timestamp", firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}
	snaps, err := q.Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}

	out := make([]domain.AccessEntry, 0, len(snaps))
	for _, snap := range snaps {
		e, err := decodeHistory(userID, snap)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	// ULID ids break timestamp ties in insertion order.
	slices.SortStableFunc(out, func(a, b domain.AccessEntry) int {
		return cmp.Or(b.AccessedAt.Compare(a.AccessedAt), cmp.Compare(b.ID, a.ID))
	})
	return out, nil
}

// PruneAccessHistory deletes entries of all users recorded before the cutoff.
// It queries the history collection group, which needs its single-field
// timestamp index enabled for collection-group scope.
func (s *Store) PruneAccessHistory(ctx context.Context, before time.Time) (int, error) {
	snaps, err := s.fs.CollectionGroup(collHistory).Where("timestamp", "<", before).Documents(ctx).GetAll()
	if err != nil {
		return 0, fmt.Errorf("list expired history: %w", err)
	}
	if len(snaps) == 0 {
		return 0, nil
	}

	bw := s.fs.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(snaps))
	for _, snap := range snaps {
		job, err := bw.Delete(snap.Ref)
		if err != nil {
			bw.End()
			return 0, fmt.Errorf("queue history delete: %w", err)
		}
		jobs = append(jobs, job)
	}
	bw.End()

	pruned := 0
	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			return pruned, fmt.Errorf("delete history: %w", err)
		}
		pruned++
	}
	return pruned, nil
}

// GetAppConfig reads the global config, writing the default on first access.
func (s *Store) GetAppConfig(ctx context.Context) (*domain.AppConfig, error) {
	var doc configDoc
	err := s.fs.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(s.configRef())
		if err == nil {
			return snap.DataTo(&doc)
		}
		if !isNotFound(err) {
			return err
		}
		def := s.defaults()
		doc = configDoc{ShowRegisterTab: def.ShowRegisterTab, UpdatedAt: millis(def.UpdatedAt)}
		return tx.Create(s.configRef(), doc)
	})
	if err != nil {
		return nil, fmt.Errorf("get app config: %w", err)
	}
	return &domain.AppConfig{ShowRegisterTab: doc.ShowRegisterTab, UpdatedAt: doc.UpdatedAt.UTC()}, nil
}

// UpdateAppConfig overwrites the global config. Last write wins.
func (s *Store) UpdateAppConfig(ctx context.Context, cfg domain.AppConfig) (*domain.AppConfig, error) {
	cfg.UpdatedAt = millis(time.Now())
	doc := configDoc{ShowRegisterTab: cfg.ShowRegisterTab, UpdatedAt: cfg.UpdatedAt}
	if _, err := s.configRef().Set(ctx, doc); err != nil {
		return nil, fmt.Errorf("update app config: %w", err)
	}
	return &cfg, nil
}
