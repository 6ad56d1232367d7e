package api

import (
	"github.com/apphub/apphub-server/internal/service"
)

// Services groups all business logic services used by the API server.
// This reduces the parameter count for NewServer and improves testability.
type Services struct {
	Auth       *service.AuthService
	Catalog    *service.CatalogService
	Activity   *service.ActivityService
	Search     *service.SearchService
	Settings   *service.SettingsService
	Admin      *service.AdminService
	Connection *service.ConnectionService // Backend read/write self-check
}
