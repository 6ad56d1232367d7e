package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/apphub/apphub-server/internal/domain"
	"github.com/apphub/apphub-server/internal/service"
)

func (s *Server) registerCatalogRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listCategories",
		Method:      http.MethodGet,
		Path:        "/api/categories",
		Summary:     "List categories",
		Description: "Returns the current user's categories with their apps",
		Tags:        []string{"Categories"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListCategories)

	huma.Register(s.api, huma.Operation{
		OperationID:   "createCategory",
		Method:        http.MethodPost,
		Path:          "/api/categories",
		Summary:       "Create category",
		Description:   "Creates an empty category",
		Tags:          []string{"Categories"},
		Security:      []map[string][]string{{"bearer": {}}},
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateCategory)

	huma.Register(s.api, huma.Operation{
		OperationID: "getCategory",
		Method:      http.MethodGet,
		Path:        "/api/categories/{id}",
		Summary:     "Get category",
		Description: "Returns a category with its apps",
		Tags:        []string{"Categories"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetCategory)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateCategory",
		Method:      http.MethodPatch,
		Path:        "/api/categories/{id}",
		Summary:     "Update category",
		Description: "Renames a category and optionally replaces its app list",
		Tags:        []string{"Categories"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleUpdateCategory)

	huma.Register(s.api, huma.Operation{
		OperationID:   "deleteCategory",
		Method:        http.MethodDelete,
		Path:          "/api/categories/{id}",
		Summary:       "Delete category",
		Description:   "Deletes a category and every app in it",
		Tags:          []string{"Categories"},
		Security:      []map[string][]string{{"bearer": {}}},
		DefaultStatus: http.StatusNoContent,
	}, s.handleDeleteCategory)

	huma.Register(s.api, huma.Operation{
		OperationID: "listCategoryApps",
		Method:      http.MethodGet,
		Path:        "/api/categories/{id}/apps",
		Summary:     "List apps in category",
		Tags:        []string{"Apps"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListApps)

	huma.Register(s.api, huma.Operation{
		OperationID:   "createApp",
		Method:        http.MethodPost,
		Path:          "/api/categories/{id}/apps",
		Summary:       "Add app to category",
		Tags:          []string{"Apps"},
		Security:      []map[string][]string{{"bearer": {}}},
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateApp)

	huma.Register(s.api, huma.Operation{
		OperationID: "getApp",
		Method:      http.MethodGet,
		Path:        "/api/apps/{id}",
		Summary:     "Get app",
		Tags:        []string{"Apps"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetApp)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateApp",
		Method:      http.MethodPatch,
		Path:        "/api/apps/{id}",
		Summary:     "Update app",
		Description: "Updates app fields; setting categoryId moves the app",
		Tags:        []string{"Apps"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleUpdateApp)

	huma.Register(s.api, huma.Operation{
		OperationID:   "deleteApp",
		Method:        http.MethodDelete,
		Path:          "/api/apps/{id}",
		Summary:       "Delete app",
		Tags:          []string{"Apps"},
		Security:      []map[string][]string{{"bearer": {}}},
		DefaultStatus: http.StatusNoContent,
	}, s.handleDeleteApp)
}

// === DTOs ===

// IDInput identifies a category or app in the path.
type IDInput struct {
	ID string `path:"id" doc:"Resource ID"`
}

// CreateCategoryRequest is the request body for creating a category.
type CreateCategoryRequest struct {
	Name string `json:"name" minLength:"1" maxLength:"100" doc:"Category name"`
}

// CreateCategoryInput wraps the create category request for Huma.
type CreateCategoryInput struct {
	Body CreateCategoryRequest
}

// AppRequest describes an app in request bodies.
type AppRequest struct {
	Name        string `json:"name" minLength:"1" maxLength:"100" doc:"Display name"`
	Icon        string `json:"icon,omitempty" maxLength:"2048" doc:"Icon URL or icon name"`
	URL         string `json:"url" maxLength:"2048" doc:"Link target"`
	Description string `json:"description,omitempty" maxLength:"1000" doc:"Short description"`
}

func (r AppRequest) toService() service.AppRequest {
	return service.AppRequest{
		Name:        r.Name,
		Icon:        r.Icon,
		URL:         r.URL,
		Description: r.Description,
	}
}

// UpdateCategoryRequest is the request body for updating a category.
type UpdateCategoryRequest struct {
	Name *string       `json:"name,omitempty" maxLength:"100" doc:"New name"`
	Apps *[]AppRequest `json:"apps,omitempty" doc:"Replacement app list"`
}

// UpdateCategoryInput wraps the update category request for Huma.
type UpdateCategoryInput struct {
	ID   string `path:"id" doc:"Category ID"`
	Body UpdateCategoryRequest
}

// CreateAppInput wraps the create app request for Huma.
type CreateAppInput struct {
	ID   string `path:"id" doc:"Category ID"`
	Body AppRequest
}

// UpdateAppRequest is the request body for updating an app.
type UpdateAppRequest struct {
	CategoryID  *string `json:"categoryId,omitempty" doc:"Move the app to this category"`
	Name        *string `json:"name,omitempty" maxLength:"100"`
	Icon        *string `json:"icon,omitempty" maxLength:"2048"`
	URL         *string `json:"url,omitempty" maxLength:"2048"`
	Description *string `json:"description,omitempty" maxLength:"1000"`
}

// UpdateAppInput wraps the update app request for Huma.
type UpdateAppInput struct {
	ID   string `path:"id" doc:"App ID"`
	Body UpdateAppRequest
}

// CategoryOutput wraps a category for Huma.
type CategoryOutput struct {
	Body *domain.Category
}

// ListCategoriesOutput wraps the category list for Huma.
type ListCategoriesOutput struct {
	Body []domain.Category
}

// AppOutput wraps an app for Huma.
type AppOutput struct {
	Body *domain.App
}

// ListAppsOutput wraps an app list for Huma.
type ListAppsOutput struct {
	Body []domain.App
}

// === Handlers ===

func (s *Server) handleListCategories(ctx context.Context, _ *struct{}) (*ListCategoriesOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	categories, err := s.services.Catalog.ListCategories(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &ListCategoriesOutput{Body: categories}, nil
}

func (s *Server) handleCreateCategory(ctx context.Context, input *CreateCategoryInput) (*CategoryOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	category, err := s.services.Catalog.CreateCategory(ctx, userID, service.CreateCategoryRequest{Name: input.Body.Name})
	if err != nil {
		return nil, err
	}
	return &CategoryOutput{Body: category}, nil
}

func (s *Server) handleGetCategory(ctx context.Context, input *IDInput) (*CategoryOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	category, err := s.services.Catalog.GetCategory(ctx, userID, input.ID)
	if err != nil {
		return nil, err
	}
	return &CategoryOutput{Body: category}, nil
}

func (s *Server) handleUpdateCategory(ctx context.Context, input *UpdateCategoryInput) (*CategoryOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	req := service.UpdateCategoryRequest{Name: input.Body.Name}
	if input.Body.Apps != nil {
		apps := make([]service.AppRequest, 0, len(*input.Body.Apps))
		for _, a := range *input.Body.Apps {
			apps = append(apps, a.toService())
		}
		req.Apps = &apps
	}

	category, err := s.services.Catalog.UpdateCategory(ctx, userID, input.ID, req)
	if err != nil {
		return nil, err
	}
	return &CategoryOutput{Body: category}, nil
}

func (s *Server) handleDeleteCategory(ctx context.Context, input *IDInput) (*struct{}, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.services.Catalog.DeleteCategory(ctx, userID, input.ID); err != nil {
		return nil, err
	}
	return nil, nil
}

func (s *Server) handleListApps(ctx context.Context, input *IDInput) (*ListAppsOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	apps, err := s.services.Catalog.ListApps(ctx, userID, input.ID)
	if err != nil {
		return nil, err
	}
	return &ListAppsOutput{Body: apps}, nil
}

func (s *Server) handleCreateApp(ctx context.Context, input *CreateAppInput) (*AppOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	app, err := s.services.Catalog.CreateApp(ctx, userID, input.ID, input.Body.toService())
	if err != nil {
		return nil, err
	}
	return &AppOutput{Body: app}, nil
}

func (s *Server) handleGetApp(ctx context.Context, input *IDInput) (*AppOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	app, err := s.services.Catalog.GetApp(ctx, userID, input.ID)
	if err != nil {
		return nil, err
	}
	return &AppOutput{Body: app}, nil
}

func (s *Server) handleUpdateApp(ctx context.Context, input *UpdateAppInput) (*AppOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	app, err := s.services.Catalog.UpdateApp(ctx, userID, input.ID, service.UpdateAppRequest{
		CategoryID:  input.Body.CategoryID,
		Name:        input.Body.Name,
		Icon:        input.Body.Icon,
		URL:         input.Body.URL,
		Description: input.Body.Description,
	})
	if err != nil {
		return nil, err
	}
	return &AppOutput{Body: app}, nil
}

func (s *Server) handleDeleteApp(ctx context.Context, input *IDInput) (*struct{}, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.services.Catalog.DeleteApp(ctx, userID, input.ID); err != nil {
		return nil, err
	}
	return nil, nil
}
