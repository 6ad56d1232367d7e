package domain

import "time"

// AppConfig contains global feature flags for the dashboard.
// A single record exists per deployment; it is created with defaults on first read.
type AppConfig struct {
	ShowRegisterTab bool      `json:"showRegisterTab"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// NewAppConfig creates the default configuration.
func NewAppConfig(showRegisterTab bool) *AppConfig {
	return &AppConfig{
		ShowRegisterTab: showRegisterTab,
		UpdatedAt:       time.Now().UTC(),
	}
}
