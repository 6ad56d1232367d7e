package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/apphub/apphub-server/internal/service"
)

func (s *Server) registerAdminRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "checkConnection",
		Method:      http.MethodGet,
		Path:        "/api/admin/connection",
		Summary:     "Check backend connection",
		Description: "Probes the storage backend with a read and a no-op write (admin only)",
		Tags:        []string{"Admin"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleCheckConnection)

	huma.Register(s.api, huma.Operation{
		OperationID: "reindexSearch",
		Method:      http.MethodPost,
		Path:        "/api/admin/search/reindex",
		Summary:     "Rebuild search index",
		Description: "Rebuilds the search index from the store (admin only)",
		Tags:        []string{"Admin"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleReindexSearch)
}

// ConnectionOutput wraps the connection report for Huma.
type ConnectionOutput struct {
	Body *service.ConnectionReport
}

// ReindexResponse reports the result of a reindex.
type ReindexResponse struct {
	Indexed int  `json:"indexed" doc:"Number of apps indexed"`
	Enabled bool `json:"enabled" doc:"Whether a search index is configured"`
}

// ReindexOutput wraps the reindex result for Huma.
type ReindexOutput struct {
	Body ReindexResponse
}

func (s *Server) handleCheckConnection(ctx context.Context, _ *struct{}) (*ConnectionOutput, error) {
	if _, err := RequireAdmin(ctx); err != nil {
		return nil, err
	}
	return &ConnectionOutput{Body: s.services.Connection.Check(ctx)}, nil
}

func (s *Server) handleReindexSearch(ctx context.Context, _ *struct{}) (*ReindexOutput, error) {
	admin, err := RequireAdmin(ctx)
	if err != nil {
		return nil, err
	}

	n, err := s.services.Search.ReindexAll(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.Info("search index rebuilt on request", "admin_id", admin.ID, "indexed", n)

	return &ReindexOutput{Body: ReindexResponse{Indexed: n, Enabled: s.services.Search.Enabled()}}, nil
}
