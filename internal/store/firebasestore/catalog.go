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

type categoryDoc struct {
	Name      string    `firestore:"name"`
	CreatedAt time.Time `firestore:"createdAt"`
}

type appDoc struct {
	CategoryID  string    `firestore:"categoryId"`
	Name        string    `firestore:"name"`
	Icon        string    `firestore:"icon"`
	URL         string    `firestore:"url"`
	Description string    `firestore:"description"`
	CreatedAt   time.Time `firestore:"createdAt"`
}

func newAppDoc(a domain.App) appDoc {
	return appDoc{
		CategoryID:  a.CategoryID,
		Name:        a.Name,
		Icon:        a.Icon,
		URL:         a.URL,
		Description: a.Description,
		CreatedAt:   a.CreatedAt,
	}
}

func (d appDoc) toDomain(appID string) domain.App {
	return domain.App{
		ID:          appID,
		CategoryID:  d.CategoryID,
		Name:        d.Name,
		Icon:        d.Icon,
		URL:         d.URL,
		Description: d.Description,
		CreatedAt:   d.CreatedAt.UTC(),
	}
}

func decodeCategory(snap *firestore.DocumentSnapshot, apps []domain.App) (domain.Category, error) {
	var doc categoryDoc
	if err := snap.DataTo(&doc); err != nil {
		return domain.Category{}, fmt.Errorf("decode category %s: %w", snap.Ref.ID, err)
	}
	if apps == nil {
		apps = []domain.App{}
	}
	return domain.Category{ID: snap.Ref.ID, Name: doc.Name, Apps: apps, CreatedAt: doc.CreatedAt.UTC()}, nil
}

func decodeApps(snaps []*firestore.DocumentSnapshot) ([]domain.App, error) {
	out := make([]domain.App, 0, len(snaps))
	for _, snap := range snaps {
		if !snap.Exists() {
			continue
		}
		var doc appDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode app %s: %w", snap.Ref.ID, err)
		}
		out = append(out, doc.toDomain(snap.Ref.ID))
	}
	sortApps(out)
	return out, nil
}

func sortApps(apps []domain.App) {
	slices.SortFunc(apps, func(a, b domain.App) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
}

// GetCategories returns the user's categories with their apps, oldest first.
func (s *Store) GetCategories(ctx context.Context, userID string) ([]domain.Category, error) {
	catSnaps, err := s.categories(userID).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	appSnaps, err := s.apps(userID).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("list apps: %w", err)
	}
	apps, err := decodeApps(appSnaps)
	if err != nil {
		return nil, err
	}

	byCategory := make(map[string][]domain.App)
	for _, a := range apps {
		byCategory[a.CategoryID] = append(byCategory[a.CategoryID], a)
	}

	out := make([]domain.Category, 0, len(catSnaps))
	for _, snap := range catSnaps {
		cat, err := decodeCategory(snap, byCategory[snap.Ref.ID])
		if err != nil {
			return nil, err
		}
		out = append(out, cat)
	}
	slices.SortFunc(out, func(a, b domain.Category) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

// GetCategory returns one category with its apps.
func (s *Store) GetCategory(ctx context.Context, userID, categoryID string) (*domain.Category, error) {
	snap, err := s.categories(userID).Doc(categoryID).Get(ctx)
	if err != nil {
		return nil, notFound(err, "category", categoryID)
	}
	apps, err := s.GetApps(ctx, userID, categoryID)
	if err != nil {
		return nil, err
	}
	cat, err := decodeCategory(snap, apps)
	if err != nil {
		return nil, err
	}
	return &cat, nil
}

// CreateCategory stores a new, empty category.
func (s *Store) CreateCategory(ctx context.Context, userID, name string) (*domain.Category, error) {
	if name == "" {
		return nil, store.ErrInvalidInput.WithMessage("category name is required")
	}
	cat := domain.NewCategory(id.MustGenerate(id.PrefixCategory), name)
	cat.CreatedAt = millis(cat.CreatedAt)

	if _, err := s.categories(userID).Doc(cat.ID).Create(ctx, categoryDoc{Name: cat.Name, CreatedAt: cat.CreatedAt}); err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}
	return cat, nil
}

// UpdateCategory renames a category and/or replaces its app list in one transaction.
func (s *Store) UpdateCategory(ctx context.Context, userID, categoryID string, update domain.CategoryUpdate) (*domain.Category, error) {
	if update.Name != nil && *update.Name == "" {
		return nil, store.ErrInvalidInput.WithMessage("category name is required")
	}
	catRef := s.categories(userID).Doc(categoryID)

	err := s.fs.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(catRef)
		if err != nil {
			return notFound(err, "category", categoryID)
		}

		// Firestore transactions read everything before the first write.
		var oldApps []*firestore.DocumentSnapshot
		if update.Apps != nil {
			if oldApps, err = tx.Documents(s.apps(userID).Where("categoryId", "==", categoryID)).GetAll(); err != nil {
				return fmt.Errorf("list category apps: %w", err)
			}
		}

		if update.Name != nil {
			var doc categoryDoc
			if err := snap.DataTo(&doc); err != nil {
				return fmt.Errorf("decode category %s: %w", categoryID, err)
			}
			doc.Name = *update.Name
			if err := tx.Set(catRef, doc); err != nil {
				return err
			}
		}

		if update.Apps != nil {
			for _, old := range oldApps {
				if err := tx.Delete(old.Ref); err != nil {
					return err
				}
			}
			now := time.Now().UTC()
			for i, a := range *update.Apps {
				a.ID = id.MustGenerate(id.PrefixApp)
				a.CategoryID = categoryID
				a.CreatedAt = millis(now.Add(time.Duration(i) * time.Millisecond))
				if err := tx.Create(s.apps(userID).Doc(a.ID), newAppDoc(a)); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetCategory(ctx, userID, categoryID)
}

// DeleteCategory removes a category together with its apps and their
// favorites in one transaction. History stays; recent lists skip missing apps.
func (s *Store) DeleteCategory(ctx context.Context, userID, categoryID string) error {
	catRef := s.categories(userID).Doc(categoryID)

	return s.fs.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(catRef); err != nil {
			return notFound(err, "category", categoryID)
		}
		apps, err := tx.Documents(s.apps(userID).Where("categoryId", "==", categoryID)).GetAll()
		if err != nil {
			return fmt.Errorf("list category apps: %w", err)
		}

		for _, app := range apps {
			if err := tx.Delete(app.Ref); err != nil {
				return err
			}
			if err := tx.Delete(s.favorites(userID).Doc(app.Ref.ID)); err != nil {
				return err
			}
		}
		return tx.Delete(catRef)
	})
}

// GetApps returns the apps of one category. A missing category yields an empty list.
func (s *Store) GetApps(ctx context.Context, userID, categoryID string) ([]domain.App, error) {
	snaps, err := s.apps(userID).Where("categoryId", "==", categoryID).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("list apps: %w", err)
	}
	return decodeApps(snaps)
}

// GetApp returns one app.
func (s *Store) GetApp(ctx context.Context, userID, appID string) (*domain.App, error) {
	snap, err := s.apps(userID).Doc(appID).Get(ctx)
	if err != nil {
		return nil, notFound(err, "app", appID)
	}
	var doc appDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decode app %s: %w", appID, err)
	}
	app := doc.toDomain(appID)
	return &app, nil
}

// CreateApp adds an app to an existing category of the same user.
func (s *Store) CreateApp(ctx context.Context, userID, categoryID string, app domain.App) (*domain.App, error) {
	app.ID = id.MustGenerate(id.PrefixApp)
	app.CategoryID = categoryID
	app.CreatedAt = millis(time.Now())

	err := s.fs.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(s.categories(userID).Doc(categoryID)); err != nil {
			return notFound(err, "category", categoryID)
		}
		return tx.Create(s.apps(userID).Doc(app.ID), newAppDoc(app))
	})
	if err != nil {
		return nil, err
	}
	return &app, nil
}

// UpdateApp replaces an app's fields. An empty CategoryID keeps the current category.
func (s *Store) UpdateApp(ctx context.Context, userID, appID string, app domain.App) (*domain.App, error) {
	appRef := s.apps(userID).Doc(appID)

	err := s.fs.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(appRef)
		if err != nil {
			return notFound(err, "app", appID)
		}
		var current appDoc
		if err := snap.DataTo(&current); err != nil {
			return fmt.Errorf("decode app %s: %w", appID, err)
		}

		app.ID = appID
		app.CreatedAt = current.CreatedAt.UTC()
		if app.CategoryID == "" {
			app.CategoryID = current.CategoryID
		}
		if app.CategoryID != current.CategoryID {
			if _, err := tx.Get(s.categories(userID).Doc(app.CategoryID)); err != nil {
				return notFound(err, "category", app.CategoryID)
			}
		}
		return tx.Set(appRef, newAppDoc(app))
	})
	if err != nil {
		return nil, err
	}
	return &app, nil
}

// DeleteApp removes an app and its favorite marker.
func (s *Store) DeleteApp(ctx context.Context, userID, appID string) error {
	appRef := s.apps(userID).Doc(appID)

	return s.fs.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(appRef); err != nil {
			return notFound(err, "app", appID)
		}
		if err := tx.Delete(appRef); err != nil {
			return err
		}
		return tx.Delete(s.favorites(userID).Doc(appID))
	})
}

// SearchApps filters the user's apps in memory; Firestore has no substring index.
func (s *Store) SearchApps(ctx context.Context, userID, query string) ([]domain.App, error) {
	if store.Fold(query) == "" {
		return []domain.App{}, nil
	}
	snaps, err := s.apps(userID).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("search apps: %w", err)
	}
	apps, err := decodeApps(snaps)
	if err != nil {
		return nil, err
	}

	out := make([]domain.App, 0)
	for _, a := range apps {
		if store.MatchesQuery(query, a.Name, a.Description) {
			out = append(out, a)
		}
	}
	slices.SortFunc(out, func(a, b domain.App) int {
		return cmp.Or(cmp.Compare(store.Fold(a.Name), store.Fold(b.Name)), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}
