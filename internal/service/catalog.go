package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/apphub/apphub-server/internal/domain"
	"github.com/apphub/apphub-server/internal/store"
	"github.com/apphub/apphub-server/internal/validation"
)

// CatalogService manages a user's categories and apps and keeps the search
// index in step with them.
type CatalogService struct {
	store     store.Store
	search    *SearchService
	validator *validation.Validator
	logger    *slog.Logger
}

// NewCatalogService creates a new catalog service. search may be nil.
func NewCatalogService(store store.Store, search *SearchService, validator *validation.Validator, logger *slog.Logger) *CatalogService {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &CatalogService{
		store:     store,
		search:    search,
		validator: validator,
		logger:    logger,
	}
}

// CreateCategoryRequest contains the fields of a new category.
type CreateCategoryRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

// UpdateCategoryRequest contains the category fields to change.
// A non-nil Apps replaces the whole app list of the category.
type UpdateCategoryRequest struct {
	Name *string       `json:"name,omitempty" validate:"omitnil,min=1,max=100"`
	Apps *[]AppRequest `json:"apps,omitempty" validate:"omitnil,dive"`
}

// AppRequest contains the fields of a new app.
type AppRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Icon        string `json:"icon" validate:"max=2048"`
	URL         string `json:"url" validate:"required,weburl"`
	Description string `json:"description,omitempty" validate:"max=1000"`
}

func (r AppRequest) toDomain() domain.App {
	return domain.App{
		Name:        strings.TrimSpace(r.Name),
		Icon:        strings.TrimSpace(r.Icon),
		URL:         strings.TrimSpace(r.URL),
		Description: r.Description,
	}
}

// UpdateAppRequest contains the app fields to change. A CategoryID moves the
// app to another category of the same user.
type UpdateAppRequest struct {
	CategoryID  *string `json:"categoryId,omitempty" validate:"omitnil,min=1"`
	Name        *string `json:"name,omitempty" validate:"omitnil,min=1,max=100"`
	Icon        *string `json:"icon,omitempty" validate:"omitnil,max=2048"`
	URL         *string `json:"url,omitempty" validate:"omitnil,weburl"`
	Description *string `json:"description,omitempty" validate:"omitnil,max=1000"`
}

// ListCategories returns the user's categories with their apps, oldest first.
func (s *CatalogService) ListCategories(ctx context.Context, userID string) ([]domain.Category, error) {
	cats, err := s.store.GetCategories(ctx, userID)
	if err != nil {
		return nil, mapStoreError(err, "list categories")
	}
	if cats == nil {
		cats = []domain.Category{}
	}
	return cats, nil
}

// GetCategory returns one category with its apps.
func (s *CatalogService) GetCategory(ctx context.Context, userID, categoryID string) (*domain.Category, error) {
	cat, err := s.store.GetCategory(ctx, userID, categoryID)
	if err != nil {
		return nil, mapStoreError(err, "get category")
	}
	return cat, nil
}

// CreateCategory creates an empty category.
func (s *CatalogService) CreateCategory(ctx context.Context, userID string, req CreateCategoryRequest) (*domain.Category, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	cat, err := s.store.CreateCategory(ctx, userID, req.Name)
	if err != nil {
		return nil, mapStoreError(err, "create category")
	}

	s.logger.Info("category created", "user_id", userID, "category_id", cat.ID)
	return cat, nil
}

// UpdateCategory renames a category and/or replaces its apps.
func (s *CatalogService) UpdateCategory(ctx context.Context, userID, categoryID string, req UpdateCategoryRequest) (*domain.Category, error) {
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		req.Name = &name
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	update := domain.CategoryUpdate{Name: req.Name}
	if req.Apps != nil {
		apps := make([]domain.App, 0, len(*req.Apps))
		for _, a := range *req.Apps {
			apps = append(apps, a.toDomain())
		}
		update.Apps = &apps
	}

	cat, err := s.store.UpdateCategory(ctx, userID, categoryID, update)
	if err != nil {
		return nil, mapStoreError(err, "update category")
	}

	if update.Apps != nil {
		s.search.RemoveCategory(ctx, userID, categoryID)
		s.search.IndexApps(userID, cat.Apps)
	}

	s.logger.Info("category updated",
		"user_id", userID,
		"category_id", categoryID,
		"apps_replaced", update.Apps != nil,
	)
	return cat, nil
}

// DeleteCategory removes a category with all its apps.
func (s *CatalogService) DeleteCategory(ctx context.Context, userID, categoryID string) error {
	if err := s.store.DeleteCategory(ctx, userID, categoryID); err != nil {
		return mapStoreError(err, "delete category")
	}
	s.search.RemoveCategory(ctx, userID, categoryID)

	s.logger.Info("category deleted", "user_id", userID, "category_id", categoryID)
	return nil
}

// ListApps returns the apps of an existing category.
func (s *CatalogService) ListApps(ctx context.Context, userID, categoryID string) ([]domain.App, error) {
	if _, err := s.store.GetCategory(ctx, userID, categoryID); err != nil {
		return nil, mapStoreError(err, "get category")
	}
	apps, err := s.store.GetApps(ctx, userID, categoryID)
	if err != nil {
		return nil, mapStoreError(err, "list apps")
	}
	if apps == nil {
		apps = []domain.App{}
	}
	return apps, nil
}

// GetApp returns one app.
func (s *CatalogService) GetApp(ctx context.Context, userID, appID string) (*domain.App, error) {
	app, err := s.store.GetApp(ctx, userID, appID)
	if err != nil {
		return nil, mapStoreError(err, "get app")
	}
	return app, nil
}

// CreateApp adds an app to a category.
func (s *CatalogService) CreateApp(ctx context.Context, userID, categoryID string, req AppRequest) (*domain.App, error) {
	app := req.toDomain()
	if err := s.validator.Validate(app); err != nil {
		return nil, err
	}

	created, err := s.store.CreateApp(ctx, userID, categoryID, app)
	if err != nil {
		return nil, mapStoreError(err, "create app")
	}
	s.search.IndexApp(userID, *created)

	s.logger.Info("app created", "user_id", userID, "category_id", categoryID, "app_id", created.ID)
	return created, nil
}

// UpdateApp applies the set fields of req to an app.
func (s *CatalogService) UpdateApp(ctx context.Context, userID, appID string, req UpdateAppRequest) (*domain.App, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	app, err := s.store.GetApp(ctx, userID, appID)
	if err != nil {
		return nil, mapStoreError(err, "get app")
	}

	if req.CategoryID != nil {
		app.CategoryID = *req.CategoryID
	}
	if req.Name != nil {
		app.Name = strings.TrimSpace(*req.Name)
	}
	if req.Icon != nil {
		app.Icon = strings.TrimSpace(*req.Icon)
	}
	if req.URL != nil {
		app.URL = strings.TrimSpace(*req.URL)
	}
	if req.Description != nil {
		app.Description = *req.Description
	}
	if err := s.validator.Validate(app); err != nil {
		return nil, err
	}

	updated, err := s.store.UpdateApp(ctx, userID, appID, *app)
	if err != nil {
		return nil, mapStoreError(err, "update app")
	}
	s.search.IndexApp(userID, *updated)

	s.logger.Info("app updated", "user_id", userID, "app_id", appID)
	return updated, nil
}

// DeleteApp removes an app and its favorite marker.
func (s *CatalogService) DeleteApp(ctx context.Context, userID, appID string) error {
	if err := s.store.DeleteApp(ctx, userID, appID); err != nil {
		return mapStoreError(err, "delete app")
	}
	s.search.RemoveApp(appID)

	s.logger.Info("app deleted", "user_id", userID, "app_id", appID)
	return nil
}
