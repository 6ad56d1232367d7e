package supabasestore

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"

	"github.com/apphub/apphub-server/internal/domain"
	"github.com/apphub/apphub-server/internal/id"
	"github.com/apphub/apphub-server/internal/store"
	"github.com/apphub/apphub-server/internal/supabase"
)

type categoryRow struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Name      string `json:"name"`
	CreatedAt int64  `json:"created_at"`
}

func (r categoryRow) toDomain(apps []domain.App) domain.Category {
	if apps == nil {
		apps = []domain.App{}
	}
	return domain.Category{ID: r.ID, Name: r.Name, Apps: apps, CreatedAt: fromMillis(r.CreatedAt)}
}

type appRow struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	CategoryID  string `json:"category_id"`
	Name        string `json:"name"`
	Icon        string `json:"icon"`
	URL         string `json:"url"`
	Description string `json:"description"`
	CreatedAt   int64  `json:"created_at"`
}

func newAppRow(userID string, a domain.App) appRow {
	return appRow{
		ID:          a.ID,
		UserID:      userID,
		CategoryID:  a.CategoryID,
		Name:        a.Name,
		Icon:        a.Icon,
		URL:         a.URL,
		Description: a.Description,
		CreatedAt:   a.CreatedAt.UnixMilli(),
	}
}

func (r appRow) toDomain() domain.App {
	return domain.App{
		ID:          r.ID,
		CategoryID:  r.CategoryID,
		Name:        r.Name,
		Icon:        r.Icon,
		URL:         r.URL,
		Description: r.Description,
		CreatedAt:   fromMillis(r.CreatedAt),
	}
}

func appsToDomain(rows []appRow) []domain.App {
	out := make([]domain.App, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out
}

func (s *Store) categories(userID string) *supabase.QueryBuilder {
	return s.client.From(tableCategories).Select("*").Eq("user_id", userID)
}

func (s *Store) apps(userID string) *supabase.QueryBuilder {
	return s.client.From(tableApps).Select("*").Eq("user_id", userID)
}

// GetCategories returns the user's categories with their apps, oldest first.
func (s *Store) GetCategories(ctx context.Context, userID string) ([]domain.Category, error) {
	var cats []categoryRow
	if err := s.categories(userID).Order("created_at", true).Order("id", true).
		Execute(ctx, &cats); err != nil {
		return nil, wrap(err, "list categories", "user", userID)
	}

	var apps []appRow
	if err := s.apps(userID).Order("created_at", true).Order("id", true).
		Execute(ctx, &apps); err != nil {
		return nil, wrap(err, "list apps", "user", userID)
	}

	byCategory := make(map[string][]domain.App)
	for _, a := range apps {
		byCategory[a.CategoryID] = append(byCategory[a.CategoryID], a.toDomain())
	}

	out := make([]domain.Category, 0, len(cats))
	for _, c := range cats {
		out = append(out, c.toDomain(byCategory[c.ID]))
	}
	return out, nil
}

// GetCategory returns one category with its apps.
func (s *Store) GetCategory(ctx context.Context, userID, categoryID string) (*domain.Category, error) {
	row, err := s.loadCategory(ctx, userID, categoryID)
	if err != nil {
		return nil, err
	}
	apps, err := s.GetApps(ctx, userID, categoryID)
	if err != nil {
		return nil, err
	}
	cat := row.toDomain(apps)
	return &cat, nil
}

func (s *Store) loadCategory(ctx context.Context, userID, categoryID string) (categoryRow, error) {
	var rows []categoryRow
	if err := s.categories(userID).Eq("id", categoryID).Limit(1).Execute(ctx, &rows); err != nil {
		return categoryRow{}, wrap(err, "get category", "category", categoryID)
	}
	if len(rows) == 0 {
		return categoryRow{}, store.NotFound("category", categoryID)
	}
	return rows[0], nil
}

// CreateCategory stores a new, empty category.
func (s *Store) CreateCategory(ctx context.Context, userID, name string) (*domain.Category, error) {
	if name == "" {
		return nil, store.ErrInvalidInput.WithMessage("category name is required")
	}
	cat := domain.NewCategory(id.MustGenerate(id.PrefixCategory), name)
	cat.CreatedAt = fromMillis(cat.CreatedAt.UnixMilli())

	row := categoryRow{ID: cat.ID, UserID: userID, Name: cat.Name, CreatedAt: cat.CreatedAt.UnixMilli()}
	if err := s.client.From(tableCategories).Insert(ctx, row, nil); err != nil {
		return nil, wrap(err, "create category", "category", cat.ID)
	}
	return cat, nil
}

// UpdateCategory renames a category and/or replaces its app list. PostgREST
// offers no multi-request transaction: the delete and the bulk insert are
// two requests, each atomic on its own.
func (s *Store) UpdateCategory(ctx context.Context, userID, categoryID string, update domain.CategoryUpdate) (*domain.Category, error) {
	if _, err := s.loadCategory(ctx, userID, categoryID); err != nil {
		return nil, err
	}

	if update.Name != nil {
		if *update.Name == "" {
			return nil, store.ErrInvalidInput.WithMessage("category name is required")
		}
		if err := s.client.From(tableCategories).Eq("user_id", userID).Eq("id", categoryID).
			Update(ctx, map[string]string{"name": *update.Name}, nil); err != nil {
			return nil, wrap(err, "rename category", "category", categoryID)
		}
	}

	if update.Apps != nil {
		if err := s.client.From(tableApps).Eq("user_id", userID).Eq("category_id", categoryID).
			Delete(ctx, nil); err != nil {
			return nil, wrap(err, "clear category apps", "category", categoryID)
		}

		now := s.now().UTC()
		rows := make([]appRow, 0, len(*update.Apps))
		for i, a := range *update.Apps {
			a.ID = id.MustGenerate(id.PrefixApp)
			a.CategoryID = categoryID
			a.CreatedAt = now.Add(time.Duration(i) * time.Millisecond)
			rows = append(rows, newAppRow(userID, a))
		}
		if len(rows) > 0 {
			if err := s.client.From(tableApps).Insert(ctx, rows, nil); err != nil {
				return nil, wrap(err, "insert category apps", "category", categoryID)
			}
		}
	}

	return s.GetCategory(ctx, userID, categoryID)
}

// DeleteCategory removes a category; apps, favorites and history cascade in the database.
func (s *Store) DeleteCategory(ctx context.Context, userID, categoryID string) error {
	var deleted []categoryRow
	if err := s.client.From(tableCategories).Select("id").Eq("user_id", userID).Eq("id", categoryID).
		Delete(ctx, &deleted); err != nil {
		return wrap(err, "delete category", "category", categoryID)
	}
	if len(deleted) == 0 {
		return store.NotFound("category", categoryID)
	}
	return nil
}

// GetApps returns the apps of one category. A missing category yields an empty list.
func (s *Store) GetApps(ctx context.Context, userID, categoryID string) ([]domain.App, error) {
	var rows []appRow
	if err := s.apps(userID).Eq("category_id", categoryID).
		Order("created_at", true).Order("id", true).
		Execute(ctx, &rows); err != nil {
		return nil, wrap(err, "list apps", "category", categoryID)
	}
	return appsToDomain(rows), nil
}

// GetApp returns one app.
func (s *Store) GetApp(ctx context.Context, userID, appID string) (*domain.App, error) {
	var rows []appRow
	if err := s.apps(userID).Eq("id", appID).Limit(1).Execute(ctx, &rows); err != nil {
		return nil, wrap(err, "get app", "app", appID)
	}
	if len(rows) == 0 {
		return nil, store.NotFound("app", appID)
	}
	app := rows[0].toDomain()
	return &app, nil
}

// CreateApp adds an app to an existing category of the same user.
func (s *Store) CreateApp(ctx context.Context, userID, categoryID string, app domain.App) (*domain.App, error) {
	if _, err := s.loadCategory(ctx, userID, categoryID); err != nil {
		return nil, err
	}

	app.ID = id.MustGenerate(id.PrefixApp)
	app.CategoryID = categoryID
	app.CreatedAt = fromMillis(s.nowMillis())

	if err := s.client.From(tableApps).Insert(ctx, newAppRow(userID, app), nil); err != nil {
		return nil, wrap(err, "create app", "category", categoryID)
	}
	return &app, nil
}

// UpdateApp replaces an app's fields. An empty CategoryID keeps the current category.
func (s *Store) UpdateApp(ctx context.Context, userID, appID string, app domain.App) (*domain.App, error) {
	current, err := s.GetApp(ctx, userID, appID)
	if err != nil {
		return nil, err
	}

	app.ID = current.ID
	app.CreatedAt = current.CreatedAt
	if app.CategoryID == "" {
		app.CategoryID = current.CategoryID
	}
	if app.CategoryID != current.CategoryID {
		if _, err := s.loadCategory(ctx, userID, app.CategoryID); err != nil {
			return nil, err
		}
	}

	patch := map[string]string{
		"category_id": app.CategoryID,
		"name":        app.Name,
		"icon":        app.Icon,
		"url":         app.URL,
		"description": app.Description,
	}
	var updated []appRow
	if err := s.client.From(tableApps).Eq("user_id", userID).Eq("id", appID).
		Update(ctx, patch, &updated); err != nil {
		return nil, wrap(err, "update app", "category", app.CategoryID)
	}
	if len(updated) == 0 {
		return nil, store.NotFound("app", appID)
	}
	return &app, nil
}

// DeleteApp removes an app; its favorites and history cascade.
func (s *Store) DeleteApp(ctx context.Context, userID, appID string) error {
	var deleted []appRow
	if err := s.client.From(tableApps).Select("id").Eq("user_id", userID).Eq("id", appID).
		Delete(ctx, &deleted); err != nil {
		return wrap(err, "delete app", "app", appID)
	}
	if len(deleted) == 0 {
		return store.NotFound("app", appID)
	}
	return nil
}

// SearchApps narrows candidates with ILIKE on the server and applies the
// shared folding match locally, so LIKE wildcards in the query stay literal.
func (s *Store) SearchApps(ctx context.Context, userID, query string) ([]domain.App, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []domain.App{}, nil
	}
	pattern := supabase.Quote("*" + query + "*")

	var rows []appRow
	if err := s.apps(userID).
		Or("name.ilike."+pattern, "description.ilike."+pattern).
		Execute(ctx, &rows); err != nil {
		return nil, wrap(err, "search apps", "user", userID)
	}

	out := make([]domain.App, 0, len(rows))
	for _, r := range rows {
		if store.MatchesQuery(query, r.Name, r.Description) {
			out = append(out, r.toDomain())
		}
	}
	slices.SortFunc(out, func(a, b domain.App) int {
		return cmp.Or(cmp.Compare(store.Fold(a.Name), store.Fold(b.Name)), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}
