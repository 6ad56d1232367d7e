package service

import (
	"context"
	"log/slog"

	"github.com/apphub/apphub-server/internal/domain"
	"github.com/apphub/apphub-server/internal/store"
)

// SettingsService manages the global AppConfig record.
type SettingsService struct {
	store  store.Store
	logger *slog.Logger
}

// NewSettingsService creates a new settings service.
func NewSettingsService(store store.Store, logger *slog.Logger) *SettingsService {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SettingsService{
		store:  store,
		logger: logger,
	}
}

// UpdateAppConfigRequest contains the config fields to change.
type UpdateAppConfigRequest struct {
	ShowRegisterTab *bool `json:"showRegisterTab,omitempty"`
}

// GetAppConfig returns the global config, creating it with defaults on first read.
func (s *SettingsService) GetAppConfig(ctx context.Context) (*domain.AppConfig, error) {
	cfg, err := s.store.GetAppConfig(ctx)
	if err != nil {
		return nil, mapStoreError(err, "get app config")
	}
	return cfg, nil
}

// UpdateAppConfig applies the set fields of req. Concurrent updates are last-write-wins.
func (s *SettingsService) UpdateAppConfig(ctx context.Context, adminUserID string, req UpdateAppConfigRequest) (*domain.AppConfig, error) {
	current, err := s.GetAppConfig(ctx)
	if err != nil {
		return nil, err
	}

	next := *current
	if req.ShowRegisterTab != nil {
		next.ShowRegisterTab = *req.ShowRegisterTab
	}

	updated, err := s.store.UpdateAppConfig(ctx, next)
	if err != nil {
		return nil, mapStoreError(err, "update app config")
	}

	s.logger.Info("app config updated",
		"admin_id", adminUserID,
		"show_register_tab", updated.ShowRegisterTab,
	)
	return updated, nil
}
