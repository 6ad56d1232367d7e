package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/apphub/apphub-server/internal/service"
)

func (s *Server) registerSearchRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "searchApps",
		Method:      http.MethodGet,
		Path:        "/api/search",
		Summary:     "Search apps",
		Description: "Finds the current user's apps whose name or description contains the query, ignoring case and accents",
		Tags:        []string{"Search"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleSearchApps)
}

// SearchAppsInput contains the search query parameters.
type SearchAppsInput struct {
	Query      string `query:"q" maxLength:"200" doc:"Search text"`
	CategoryID string `query:"categoryId" doc:"Restrict results to one category"`
	Limit      int    `query:"limit" minimum:"0" maximum:"100" doc:"Maximum results"`
}

func (s *Server) handleSearchApps(ctx context.Context, input *SearchAppsInput) (*ListAppsOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	apps, err := s.services.Search.SearchApps(ctx, userID, service.SearchRequest{
		Query:      input.Query,
		CategoryID: input.CategoryID,
		Limit:      input.Limit,
	})
	if err != nil {
		return nil, err
	}
	return &ListAppsOutput{Body: apps}, nil
}
