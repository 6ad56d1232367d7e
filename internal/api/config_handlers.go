package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/apphub/apphub-server/internal/domain"
	"github.com/apphub/apphub-server/internal/service"
)

func (s *Server) registerConfigRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getAppConfig",
		Method:      http.MethodGet,
		Path:        "/api/config",
		Summary:     "Get app config",
		Description: "Returns global feature flags. Public, so the login page can decide whether to offer registration.",
		Tags:        []string{"Config"},
	}, s.handleGetAppConfig)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateAppConfig",
		Method:      http.MethodPatch,
		Path:        "/api/config",
		Summary:     "Update app config",
		Description: "Updates global feature flags (admin only)",
		Tags:        []string{"Config"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleUpdateAppConfig)
}

// UpdateAppConfigRequest is the request body for updating feature flags.
type UpdateAppConfigRequest struct {
	ShowRegisterTab *bool `json:"showRegisterTab,omitempty" doc:"Whether self-registration is open"`
}

// UpdateAppConfigInput wraps the config update for Huma.
type UpdateAppConfigInput struct {
	Body UpdateAppConfigRequest
}

// AppConfigOutput wraps the app config for Huma.
type AppConfigOutput struct {
	Body *domain.AppConfig
}

func (s *Server) handleGetAppConfig(ctx context.Context, _ *struct{}) (*AppConfigOutput, error) {
	cfg, err := s.services.Settings.GetAppConfig(ctx)
	if err != nil {
		return nil, err
	}
	return &AppConfigOutput{Body: cfg}, nil
}

func (s *Server) handleUpdateAppConfig(ctx context.Context, input *UpdateAppConfigInput) (*AppConfigOutput, error) {
	admin, err := RequireAdmin(ctx)
	if err != nil {
		return nil, err
	}

	cfg, err := s.services.Settings.UpdateAppConfig(ctx, admin.ID, service.UpdateAppConfigRequest{
		ShowRegisterTab: input.Body.ShowRegisterTab,
	})
	if err != nil {
		return nil, err
	}
	return &AppConfigOutput{Body: cfg}, nil
}
