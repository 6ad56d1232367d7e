package badgerstore

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/apphub/apphub-server/internal/domain"
	"github.com/apphub/apphub-server/internal/id"
	"github.com/apphub/apphub-server/internal/store"
)

// categoryRecord is the stored form of a category. Apps are kept as separate
// records and joined on read.
type categoryRecord struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

func (r categoryRecord) toDomain(apps []domain.App) domain.Category {
	if apps == nil {
		apps = []domain.App{}
	}
	return domain.Category{ID: r.ID, Name: r.Name, Apps: apps, CreatedAt: r.CreatedAt}
}

func sortByCreated[T any](items []T, created func(T) time.Time, id func(T) string) {
	slices.SortStableFunc(items, func(a, b T) int {
		if c := created(a).Compare(created(b)); c != 0 {
			return c
		}
		return cmp.Compare(id(a), id(b))
	})
}

func sortApps(apps []domain.App) {
	sortByCreated(apps,
		func(a domain.App) time.Time { return a.CreatedAt },
		func(a domain.App) string { return a.ID })
}

// GetCategories returns the user's categories with their apps, oldest first.
func (s *Store) GetCategories(ctx context.Context, userID string) ([]domain.Category, error) {
	var out []domain.Category
	err := s.view(ctx, func(txn *badger.Txn) error {
		records, err := decodeAll[categoryRecord](txn, []byte(userScope(prefixCategory, userID)))
		if err != nil {
			return err
		}
		apps, err := decodeAll[domain.App](txn, []byte(userScope(prefixApp, userID)))
		if err != nil {
			return err
		}

		byCategory := make(map[string][]domain.App)
		for _, a := range apps {
			byCategory[a.CategoryID] = append(byCategory[a.CategoryID], a)
		}

		sortByCreated(records,
			func(r categoryRecord) time.Time { return r.CreatedAt },
			func(r categoryRecord) string { return r.ID })

		out = make([]domain.Category, 0, len(records))
		for _, r := range records {
			catApps := byCategory[r.ID]
			sortApps(catApps)
			out = append(out, r.toDomain(catApps))
		}
		return nil
	})
	return out, err
}

// GetCategory returns one category with its apps.
func (s *Store) GetCategory(ctx context.Context, userID, categoryID string) (*domain.Category, error) {
	var out domain.Category
	err := s.view(ctx, func(txn *badger.Txn) error {
		var err error
		out, err = s.loadCategory(txn, userID, categoryID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) loadCategory(txn *badger.Txn, userID, categoryID string) (domain.Category, error) {
	var rec categoryRecord
	if err := getJSON(txn, categoryKey(userID, categoryID), &rec); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Category{}, store.NotFound("category", categoryID)
		}
		return domain.Category{}, err
	}
	apps, err := s.categoryApps(txn, userID, categoryID)
	if err != nil {
		return domain.Category{}, err
	}
	return rec.toDomain(apps), nil
}

func (s *Store) categoryApps(txn *badger.Txn, userID, categoryID string) ([]domain.App, error) {
	prefix := appCatPrefix(userID, categoryID)
	var appIDs []string
	for k := range scanKeys(txn, prefix) {
		appIDs = append(appIDs, string(k[len(prefix):]))
	}

	apps := make([]domain.App, 0, len(appIDs))
	for _, appID := range appIDs {
		var a domain.App
		if err := getJSON(txn, appKey(userID, appID), &a); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				s.logger.Warn("dangling app index entry", "user_id", userID, "app_id", appID)
				continue
			}
			return nil, err
		}
		apps = append(apps, a)
	}
	sortApps(apps)
	return apps, nil
}

// CreateCategory stores a new, empty category.
func (s *Store) CreateCategory(ctx context.Context, userID, name string) (*domain.Category, error) {
	if name == "" {
		return nil, store.ErrInvalidInput.WithMessage("category name is required")
	}
	cat := domain.NewCategory(id.MustGenerate(id.PrefixCategory), name)
	rec := categoryRecord{ID: cat.ID, Name: cat.Name, CreatedAt: cat.CreatedAt}

	err := s.update(ctx, func(txn *badger.Txn) error {
		return setJSON(txn, categoryKey(userID, cat.ID), rec)
	})
	if err != nil {
		return nil, err
	}
	return cat, nil
}

// UpdateCategory renames a category and/or replaces its app list in one transaction.
func (s *Store) UpdateCategory(ctx context.Context, userID, categoryID string, update domain.CategoryUpdate) (*domain.Category, error) {
	var out domain.Category
	err := s.update(ctx, func(txn *badger.Txn) error {
		var rec categoryRecord
		if err := getJSON(txn, categoryKey(userID, categoryID), &rec); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return store.NotFound("category", categoryID)
			}
			return err
		}

		if update.Name != nil {
			if *update.Name == "" {
				return store.ErrInvalidInput.WithMessage("category name is required")
			}
			rec.Name = *update.Name
			if err := setJSON(txn, categoryKey(userID, categoryID), rec); err != nil {
				return err
			}
		}

		if update.Apps != nil {
			if err := s.replaceApps(txn, userID, categoryID, *update.Apps); err != nil {
				return err
			}
		}

		var err error
		out, err = s.loadCategory(txn, userID, categoryID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) replaceApps(txn *badger.Txn, userID, categoryID string, apps []domain.App) error {
	existing, err := s.categoryApps(txn, userID, categoryID)
	if err != nil {
		return err
	}
	for _, a := range existing {
		if err := s.deleteAppTxn(txn, userID, a); err != nil {
			return err
		}
	}

	now := time.Now().UTC()
	for i, a := range apps {
		a.ID = id.MustGenerate(id.PrefixApp)
		a.CategoryID = categoryID
		// Keep list order stable when read back sorted by creation time.
		a.CreatedAt = now.Add(time.Duration(i) * time.Millisecond)
		if err := s.putApp(txn, userID, a); err != nil {
			return err
		}
	}
	return nil
}

// DeleteCategory removes a category together with its apps and their favorites.
func (s *Store) DeleteCategory(ctx context.Context, userID, categoryID string) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		found, err := exists(txn, categoryKey(userID, categoryID))
		if err != nil {
			return err
		}
		if !found {
			return store.NotFound("category", categoryID)
		}

		apps, err := s.categoryApps(txn, userID, categoryID)
		if err != nil {
			return err
		}
		for _, a := range apps {
			if err := s.deleteAppTxn(txn, userID, a); err != nil {
				return err
			}
		}
		return txn.Delete(categoryKey(userID, categoryID))
	})
}

// GetApps returns the apps of one category. A missing category yields an empty list.
func (s *Store) GetApps(ctx context.Context, userID, categoryID string) ([]domain.App, error) {
	var out []domain.App
	err := s.view(ctx, func(txn *badger.Txn) error {
		var err error
		out, err = s.categoryApps(txn, userID, categoryID)
		return err
	})
	return out, err
}

// GetApp returns one app.
func (s *Store) GetApp(ctx context.Context, userID, appID string) (*domain.App, error) {
	var out domain.App
	err := s.view(ctx, func(txn *badger.Txn) error {
		return s.loadApp(txn, userID, appID, &out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) loadApp(txn *badger.Txn, userID, appID string, dest *domain.App) error {
	if err := getJSON(txn, appKey(userID, appID), dest); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.NotFound("app", appID)
		}
		return err
	}
	return nil
}

// CreateApp adds an app to an existing category of the same user.
func (s *Store) CreateApp(ctx context.Context, userID, categoryID string, app domain.App) (*domain.App, error) {
	app.ID = id.MustGenerate(id.PrefixApp)
	app.CategoryID = categoryID
	app.CreatedAt = time.Now().UTC()

	err := s.update(ctx, func(txn *badger.Txn) error {
		found, err := exists(txn, categoryKey(userID, categoryID))
		if err != nil {
			return err
		}
		if !found {
			return store.NotFound("category", categoryID)
		}
		return s.putApp(txn, userID, app)
	})
	if err != nil {
		return nil, err
	}
	return &app, nil
}

// UpdateApp replaces an app's fields. An empty CategoryID keeps the current
// category; a different one moves the app.
func (s *Store) UpdateApp(ctx context.Context, userID, appID string, app domain.App) (*domain.App, error) {
	err := s.update(ctx, func(txn *badger.Txn) error {
		var current domain.App
		if err := s.loadApp(txn, userID, appID, &current); err != nil {
			return err
		}

		app.ID = current.ID
		app.CreatedAt = current.CreatedAt
		if app.CategoryID == "" {
			app.CategoryID = current.CategoryID
		}

		if app.CategoryID != current.CategoryID {
			found, err := exists(txn, categoryKey(userID, app.CategoryID))
			if err != nil {
				return err
			}
			if !found {
				return store.NotFound("category", app.CategoryID)
			}
			if err := txn.Delete(appCatKey(userID, current.CategoryID, appID)); err != nil {
				return err
			}
		}
		return s.putApp(txn, userID, app)
	})
	if err != nil {
		return nil, err
	}
	return &app, nil
}

// DeleteApp removes an app and any favorite pointing at it.
func (s *Store) DeleteApp(ctx context.Context, userID, appID string) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		var current domain.App
		if err := s.loadApp(txn, userID, appID, &current); err != nil {
			return err
		}
		return s.deleteAppTxn(txn, userID, current)
	})
}

// SearchApps matches the query against app names and descriptions, ignoring case and accents.
func (s *Store) SearchApps(ctx context.Context, userID, query string) ([]domain.App, error) {
	out := []domain.App{}
	if store.Fold(query) == "" {
		return out, nil
	}
	err := s.view(ctx, func(txn *badger.Txn) error {
		apps, err := decodeAll[domain.App](txn, []byte(userScope(prefixApp, userID)))
		if err != nil {
			return err
		}
		for _, a := range apps {
			if store.MatchesQuery(query, a.Name, a.Description) {
				out = append(out, a)
			}
		}
		return nil
	})
	slices.SortFunc(out, func(a, b domain.App) int { return cmp.Compare(store.Fold(a.Name), store.Fold(b.Name)) })
	return out, err
}

func (s *Store) putApp(txn *badger.Txn, userID string, app domain.App) error {
	if err := setJSON(txn, appKey(userID, app.ID), app); err != nil {
		return err
	}
	return txn.Set(appCatKey(userID, app.CategoryID, app.ID), nil)
}

func (s *Store) deleteAppTxn(txn *badger.Txn, userID string, app domain.App) error {
	for _, key := range [][]byte{
		appKey(userID, app.ID),
		appCatKey(userID, app.CategoryID, app.ID),
		favoriteKey(userID, app.ID),
	} {
		if err := txn.Delete(key); err != nil {
			return err
		}
	}
	return nil
}
