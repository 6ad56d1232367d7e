package sqlstore

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/apphub/apphub-server/internal/domain"
	"github.com/apphub/apphub-server/internal/id"
	"github.com/apphub/apphub-server/internal/store"
)

type categoryRow struct {
	ID        string `db:"id"`
	UserID    string `db:"user_id"`
	Name      string `db:"name"`
	CreatedAt int64  `db:"created_at"`
}

func (r categoryRow) toDomain(apps []domain.App) domain.Category {
	if apps == nil {
		apps = []domain.App{}
	}
	return domain.Category{ID: r.ID, Name: r.Name, Apps: apps, CreatedAt: fromMillis(r.CreatedAt)}
}

type appRow struct {
	ID          string `db:"id"`
	UserID      string `db:"user_id"`
	CategoryID  string `db:"category_id"`
	Name        string `db:"name"`
	Icon        string `db:"icon"`
	URL         string `db:"url"`
	Description string `db:"description"`
	CreatedAt   int64  `db:"created_at"`
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

const appColumns = `id, user_id, category_id, name, icon, url, description, created_at`

// GetCategories returns the user's categories with their apps, oldest first.
func (s *Store) GetCategories(ctx context.Context, userID string) ([]domain.Category, error) {
	var cats []categoryRow
	if err := s.sel(ctx, s.db, &cats,
		`SELECT id, user_id, name, created_at FROM bms_categories
		 WHERE user_id = ? ORDER BY created_at, id`, userID); err != nil {
		return nil, err
	}

	var apps []appRow
	if err := s.sel(ctx, s.db, &apps,
		`SELECT `+appColumns+` FROM bms_apps
		 WHERE user_id = ? ORDER BY created_at, id`, userID); err != nil {
		return nil, err
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
	cat, err := s.loadCategory(ctx, s.db, userID, categoryID)
	if err != nil {
		return nil, err
	}
	return &cat, nil
}

func (s *Store) loadCategory(ctx context.Context, q queryer, userID, categoryID string) (domain.Category, error) {
	var row categoryRow
	err := s.get(ctx, q, &row,
		`SELECT id, user_id, name, created_at FROM bms_categories WHERE user_id = ? AND id = ?`,
		userID, categoryID)
	if err != nil {
		return domain.Category{}, notFoundIfNoRows(err, "category", categoryID)
	}

	apps, err := s.categoryApps(ctx, q, userID, categoryID)
	if err != nil {
		return domain.Category{}, err
	}
	return row.toDomain(apps), nil
}

func (s *Store) categoryApps(ctx context.Context, q queryer, userID, categoryID string) ([]domain.App, error) {
	var rows []appRow
	if err := s.sel(ctx, q, &rows,
		`SELECT `+appColumns+` FROM bms_apps
		 WHERE user_id = ? AND category_id = ? ORDER BY created_at, id`,
		userID, categoryID); err != nil {
		return nil, err
	}
	return appsToDomain(rows), nil
}

func (s *Store) categoryExists(ctx context.Context, q queryer, userID, categoryID string) error {
	var n int
	if err := s.get(ctx, q, &n,
		`SELECT COUNT(*) FROM bms_categories WHERE user_id = ? AND id = ?`, userID, categoryID); err != nil {
		return err
	}
	if n == 0 {
		return store.NotFound("category", categoryID)
	}
	return nil
}

// CreateCategory stores a new, empty category.
func (s *Store) CreateCategory(ctx context.Context, userID, name string) (*domain.Category, error) {
	if name == "" {
		return nil, store.ErrInvalidInput.WithMessage("category name is required")
	}
	cat := domain.NewCategory(id.MustGenerate(id.PrefixCategory), name)
	cat.CreatedAt = fromMillis(toMillis(cat.CreatedAt))

	if _, err := s.exec(ctx, s.db,
		`INSERT INTO bms_categories (id, user_id, name, created_at) VALUES (?, ?, ?, ?)`,
		cat.ID, userID, cat.Name, toMillis(cat.CreatedAt)); err != nil {
		return nil, err
	}
	return cat, nil
}

// UpdateCategory renames a category and/or replaces its app list in one transaction.
func (s *Store) UpdateCategory(ctx context.Context, userID, categoryID string, update domain.CategoryUpdate) (*domain.Category, error) {
	var out domain.Category
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.categoryExists(ctx, tx, userID, categoryID); err != nil {
			return err
		}

		if update.Name != nil {
			if *update.Name == "" {
				return store.ErrInvalidInput.WithMessage("category name is required")
			}
			if _, err := s.exec(ctx, tx,
				`UPDATE bms_categories SET name = ? WHERE user_id = ? AND id = ?`,
				*update.Name, userID, categoryID); err != nil {
				return err
			}
		}

		if update.Apps != nil {
			if _, err := s.exec(ctx, tx,
				`DELETE FROM bms_apps WHERE user_id = ? AND category_id = ?`, userID, categoryID); err != nil {
				return err
			}
			now := time.Now().UTC()
			for i, a := range *update.Apps {
				a.ID = id.MustGenerate(id.PrefixApp)
				a.CategoryID = categoryID
				a.CreatedAt = now.Add(time.Duration(i) * time.Millisecond)
				if err := s.insertApp(ctx, tx, userID, a); err != nil {
					return err
				}
			}
		}

		var err error
		out, err = s.loadCategory(ctx, tx, userID, categoryID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteCategory removes a category. Apps, favorites and history rows go with it
// through ON DELETE CASCADE.
func (s *Store) DeleteCategory(ctx context.Context, userID, categoryID string) error {
	return s.execOne(ctx, s.db, store.NotFound("category", categoryID),
		`DELETE FROM bms_categories WHERE user_id = ? AND id = ?`, userID, categoryID)
}

// GetApps returns the apps of one category. A missing category yields an empty list.
func (s *Store) GetApps(ctx context.Context, userID, categoryID string) ([]domain.App, error) {
	return s.categoryApps(ctx, s.db, userID, categoryID)
}

// GetApp returns one app.
func (s *Store) GetApp(ctx context.Context, userID, appID string) (*domain.App, error) {
	app, err := s.loadApp(ctx, s.db, userID, appID)
	if err != nil {
		return nil, err
	}
	return &app, nil
}

func (s *Store) loadApp(ctx context.Context, q queryer, userID, appID string) (domain.App, error) {
	var row appRow
	err := s.get(ctx, q, &row,
		`SELECT `+appColumns+` FROM bms_apps WHERE user_id = ? AND id = ?`, userID, appID)
	if err != nil {
		return domain.App{}, notFoundIfNoRows(err, "app", appID)
	}
	return row.toDomain(), nil
}

// CreateApp adds an app to an existing category of the same user.
func (s *Store) CreateApp(ctx context.Context, userID, categoryID string, app domain.App) (*domain.App, error) {
	app.ID = id.MustGenerate(id.PrefixApp)
	app.CategoryID = categoryID
	app.CreatedAt = fromMillis(nowMillis())

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.categoryExists(ctx, tx, userID, categoryID); err != nil {
			return err
		}
		return s.insertApp(ctx, tx, userID, app)
	})
	if err != nil {
		return nil, err
	}
	return &app, nil
}

func (s *Store) insertApp(ctx context.Context, q queryer, userID string, a domain.App) error {
	_, err := s.exec(ctx, q,
		`INSERT INTO bms_apps (`+appColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, userID, a.CategoryID, a.Name, a.Icon, a.URL, a.Description, toMillis(a.CreatedAt))
	return err
}

// UpdateApp replaces an app's fields. An empty CategoryID keeps the current
// category; a different one moves the app.
func (s *Store) UpdateApp(ctx context.Context, userID, appID string, app domain.App) (*domain.App, error) {
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		current, err := s.loadApp(ctx, tx, userID, appID)
		if err != nil {
			return err
		}

		app.ID = current.ID
		app.CreatedAt = current.CreatedAt
		if app.CategoryID == "" {
			app.CategoryID = current.CategoryID
		}
		if app.CategoryID != current.CategoryID {
			if err := s.categoryExists(ctx, tx, userID, app.CategoryID); err != nil {
				return err
			}
		}

		_, err = s.exec(ctx, tx,
			`UPDATE bms_apps SET category_id = ?, name = ?, icon = ?, url = ?, description = ?
			 WHERE user_id = ? AND id = ?`,
			app.CategoryID, app.Name, app.Icon, app.URL, app.Description, userID, appID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &app, nil
}

// DeleteApp removes an app; its favorites and history cascade.
func (s *Store) DeleteApp(ctx context.Context, userID, appID string) error {
	return s.execOne(ctx, s.db, store.NotFound("app", appID),
		`DELETE FROM bms_apps WHERE user_id = ? AND id = ?`, userID, appID)
}

// SearchApps matches the query against app names and descriptions, ignoring case.
func (s *Store) SearchApps(ctx context.Context, userID, query string) ([]domain.App, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []domain.App{}, nil
	}
	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"

	var rows []appRow
	if err := s.sel(ctx, s.db, &rows,
		`SELECT `+appColumns+` FROM bms_apps
		 WHERE user_id = ? AND (LOWER(name) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\')
		 ORDER BY LOWER(name), id`,
		userID, pattern, pattern); err != nil {
		return nil, err
	}
	return appsToDomain(rows), nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
