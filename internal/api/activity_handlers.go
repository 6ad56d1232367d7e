package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/apphub/apphub-server/internal/domain"
)

func (s *Server) registerActivityRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listFavorites",
		Method:      http.MethodGet,
		Path:        "/api/favorites",
		Summary:     "List favorites",
		Description: "Returns favorite apps, most recently favorited first",
		Tags:        []string{"Activity"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListFavorites)

	huma.Register(s.api, huma.Operation{
		OperationID: "getFavorite",
		Method:      http.MethodGet,
		Path:        "/api/favorites/{appId}",
		Summary:     "Get favorite state",
		Tags:        []string{"Activity"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetFavorite)

	huma.Register(s.api, huma.Operation{
		OperationID: "setFavorite",
		Method:      http.MethodPut,
		Path:        "/api/favorites/{appId}",
		Summary:     "Set favorite state",
		Description: "Marks or unmarks an app as favorite; repeating a call has no further effect",
		Tags:        []string{"Activity"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleSetFavorite)

	huma.Register(s.api, huma.Operation{
		OperationID:   "recordAccess",
		Method:        http.MethodPost,
		Path:          "/api/apps/{id}/access",
		Summary:       "Record app access",
		Description:   "Appends an entry to the access history",
		Tags:          []string{"Activity"},
		Security:      []map[string][]string{{"bearer": {}}},
		DefaultStatus: http.StatusNoContent,
	}, s.handleRecordAccess)

	huma.Register(s.api, huma.Operation{
		OperationID: "listRecentApps",
		Method:      http.MethodGet,
		Path:        "/api/recent",
		Summary:     "Recently opened apps",
		Description: "Returns distinct apps by last access, newest first",
		Tags:        []string{"Activity"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleRecentApps)

	huma.Register(s.api, huma.Operation{
		OperationID: "getStatistics",
		Method:      http.MethodGet,
		Path:        "/api/statistics",
		Summary:     "Dashboard statistics",
		Description: "Returns counts and the most opened apps",
		Tags:        []string{"Activity"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleStatistics)
}

// === DTOs ===

// AppIDInput identifies an app in the path.
type AppIDInput struct {
	AppID string `path:"appId" doc:"App ID"`
}

// FavoriteRequest is the request body for setting the favorite state.
type FavoriteRequest struct {
	Favorite bool `json:"favorite" doc:"Whether the app is a favorite"`
}

// SetFavoriteInput wraps the favorite request for Huma.
type SetFavoriteInput struct {
	AppID string `path:"appId" doc:"App ID"`
	Body  FavoriteRequest
}

// FavoriteResponse reports the favorite state of an app.
type FavoriteResponse struct {
	AppID    string `json:"appId"`
	Favorite bool   `json:"favorite"`
}

// FavoriteOutput wraps the favorite state for Huma.
type FavoriteOutput struct {
	Body FavoriteResponse
}

// RecentAppsInput contains parameters for listing recent apps.
type RecentAppsInput struct {
	Limit int `query:"limit" minimum:"0" maximum:"100" doc:"Maximum apps (default 10)"`
}

// RecentAppsOutput wraps the recent apps for Huma.
type RecentAppsOutput struct {
	Body []domain.RecentApp
}

// StatisticsOutput wraps the statistics for Huma.
type StatisticsOutput struct {
	Body *domain.Statistics
}

// === Handlers ===

func (s *Server) handleListFavorites(ctx context.Context, _ *struct{}) (*ListAppsOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	apps, err := s.services.Activity.ListFavorites(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &ListAppsOutput{Body: apps}, nil
}

func (s *Server) handleGetFavorite(ctx context.Context, input *AppIDInput) (*FavoriteOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	fav, err := s.services.Activity.IsFavorite(ctx, userID, input.AppID)
	if err != nil {
		return nil, err
	}
	return &FavoriteOutput{Body: FavoriteResponse{AppID: input.AppID, Favorite: fav}}, nil
}

func (s *Server) handleSetFavorite(ctx context.Context, input *SetFavoriteInput) (*FavoriteOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.services.Activity.SetFavorite(ctx, userID, input.AppID, input.Body.Favorite); err != nil {
		return nil, err
	}
	return &FavoriteOutput{Body: FavoriteResponse{AppID: input.AppID, Favorite: input.Body.Favorite}}, nil
}

func (s *Server) handleRecordAccess(ctx context.Context, input *IDInput) (*struct{}, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.services.Activity.RecordAccess(ctx, userID, input.ID); err != nil {
		return nil, err
	}
	return nil, nil
}

func (s *Server) handleRecentApps(ctx context.Context, input *RecentAppsInput) (*RecentAppsOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	recent, err := s.services.Activity.RecentApps(ctx, userID, input.Limit)
	if err != nil {
		return nil, err
	}
	return &RecentAppsOutput{Body: recent}, nil
}

func (s *Server) handleStatistics(ctx context.Context, _ *struct{}) (*StatisticsOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	stats, err := s.services.Activity.Statistics(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &StatisticsOutput{Body: stats}, nil
}
