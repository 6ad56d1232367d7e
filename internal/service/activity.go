package service

import (
	"cmp"
	"context"
	"log/slog"
	"slices"

	"github.com/apphub/apphub-server/internal/domain"
	"github.com/apphub/apphub-server/internal/store"
)

// TopAppsLimit is the number of most used apps reported in statistics.
const TopAppsLimit = 5

// MaxRecentLimit caps the recent-apps list a client can ask for.
const MaxRecentLimit = 100

// ActivityService manages favorites, access history and usage statistics.
type ActivityService struct {
	store  store.Store
	logger *slog.Logger
}

// NewActivityService creates a new activity service.
func NewActivityService(store store.Store, logger *slog.Logger) *ActivityService {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ActivityService{
		store:  store,
		logger: logger,
	}
}

// SetFavorite marks or unmarks an app as favorite. Both directions are idempotent.
func (s *ActivityService) SetFavorite(ctx context.Context, userID, appID string, favorite bool) error {
	if err := s.store.ToggleFavorite(ctx, userID, appID, favorite); err != nil {
		return mapStoreError(err, "toggle favorite")
	}
	s.logger.Debug("favorite toggled", "user_id", userID, "app_id", appID, "favorite", favorite)
	return nil
}

// IsFavorite reports whether the app is a favorite of the user.
func (s *ActivityService) IsFavorite(ctx context.Context, userID, appID string) (bool, error) {
	fav, err := s.store.IsFavorite(ctx, userID, appID)
	if err != nil {
		return false, mapStoreError(err, "check favorite")
	}
	return fav, nil
}

// ListFavorites returns favorite apps, most recently favorited first.
func (s *ActivityService) ListFavorites(ctx context.Context, userID string) ([]domain.App, error) {
	apps, err := s.store.GetFavorites(ctx, userID)
	if err != nil {
		return nil, mapStoreError(err, "list favorites")
	}
	if apps == nil {
		apps = []domain.App{}
	}
	return apps, nil
}

// RecordAccess appends an access entry for an app of the user.
func (s *ActivityService) RecordAccess(ctx context.Context, userID, appID string) error {
	if err := s.store.RecordAccess(ctx, userID, appID); err != nil {
		return mapStoreError(err, "record access")
	}
	return nil
}

// RecentApps returns distinct recently opened apps, newest first.
// limit <= 0 means domain.DefaultRecentLimit.
func (s *ActivityService) RecentApps(ctx context.Context, userID string, limit int) ([]domain.RecentApp, error) {
	limit = min(store.RecentLimit(limit), MaxRecentLimit)
	recent, err := s.store.GetRecentApps(ctx, userID, limit)
	if err != nil {
		return nil, mapStoreError(err, "list recent apps")
	}
	if recent == nil {
		recent = []domain.RecentApp{}
	}
	return recent, nil
}

// Statistics summarizes the user's catalog and usage.
func (s *ActivityService) Statistics(ctx context.Context, userID string) (*domain.Statistics, error) {
	cats, err := s.store.GetCategories(ctx, userID)
	if err != nil {
		return nil, mapStoreError(err, "list categories")
	}
	favorites, err := s.store.GetFavorites(ctx, userID)
	if err != nil {
		return nil, mapStoreError(err, "list favorites")
	}
	history, err := s.store.GetAccessHistory(ctx, userID, 0)
	if err != nil {
		return nil, mapStoreError(err, "list access history")
	}

	apps := make(map[string]domain.App)
	for _, c := range cats {
		for _, a := range c.Apps {
			apps[a.ID] = a
		}
	}

	return &domain.Statistics{
		CategoryCount: len(cats),
		AppCount:      len(apps),
		FavoriteCount: len(favorites),
		AccessCount:   len(history),
		TopApps:       topApps(history, apps, TopAppsLimit),
	}, nil
}

// topApps counts accesses per app and returns the most used existing apps,
// ties broken by app name.
func topApps(history []domain.AccessEntry, apps map[string]domain.App, limit int) []domain.AppUsage {
	counts := make(map[string]int)
	for _, e := range history {
		if _, ok := apps[e.AppID]; ok {
			counts[e.AppID]++
		}
	}

	out := make([]domain.AppUsage, 0, len(counts))
	for appID, n := range counts {
		out = append(out, domain.AppUsage{App: apps[appID], Count: n})
	}
	slices.SortFunc(out, func(a, b domain.AppUsage) int {
		return cmp.Or(
			cmp.Compare(b.Count, a.Count),
			cmp.Compare(store.Fold(a.App.Name), store.Fold(b.App.Name)),
			cmp.Compare(a.App.ID, b.App.ID),
		)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
