// Package store defines the persistence contract shared by every storage backend.
//
// Exactly one implementation is constructed at startup, selected by the
// BMS_DATABASE setting. All data except AppConfig is scoped to a user id.
package store

import (
	"context"
	"time"

	"github.com/apphub/apphub-server/internal/domain"
)

// Store defines the interface for all persistence operations.
type Store interface {
	// Lifecycle
	Ping(ctx context.Context) error
	Close() error

	// Categories
	GetCategories(ctx context.Context, userID string) ([]domain.Category, error)
	GetCategory(ctx context.Context, userID, categoryID string) (*domain.Category, error)
	CreateCategory(ctx context.Context, userID, name string) (*domain.Category, error)
	UpdateCategory(ctx context.Context, userID, categoryID string, update domain.CategoryUpdate) (*domain.Category, error)
	DeleteCategory(ctx context.Context, userID, categoryID string) error

	// Apps
	GetApps(ctx context.Context, userID, categoryID string) ([]domain.App, error)
	GetApp(ctx context.Context, userID, appID string) (*domain.App, error)
	CreateApp(ctx context.Context, userID, categoryID string, app domain.App) (*domain.App, error)
	UpdateApp(ctx context.Context, userID, appID string, app domain.App) (*domain.App, error)
	DeleteApp(ctx context.Context, userID, appID string) error
	SearchApps(ctx context.Context, userID, query string) ([]domain.App, error)

	// Favorites
	ToggleFavorite(ctx context.Context, userID, appID string, favorite bool) error
	IsFavorite(ctx context.Context, userID, appID string) (bool, error)
	GetFavorites(ctx context.Context, userID string) ([]domain.App, error)

	// Access history
	RecordAccess(ctx context.Context, userID, appID string) error
	GetRecentApps(ctx context.Context, userID string, limit int) ([]domain.RecentApp, error)
	GetAccessHistory(ctx context.Context, userID string, limit int) ([]domain.AccessEntry, error)
	PruneAccessHistory(ctx context.Context, before time.Time) (int, error)

	// Global configuration
	GetAppConfig(ctx context.Context) (*domain.AppConfig, error)
	UpdateAppConfig(ctx context.Context, cfg domain.AppConfig) (*domain.AppConfig, error)

	// Users
	HasUsers(ctx context.Context) (bool, error)
	GetUsers(ctx context.Context) ([]domain.User, error)
	GetUser(ctx context.Context, userID string) (*domain.User, error)
	UpdateUserRole(ctx context.Context, userID string, role domain.Role) (*domain.User, error)
	SetUserDisabled(ctx context.Context, userID string, disabled bool) (*domain.User, error)
	DeleteUser(ctx context.Context, userID string) error
}

// Credentials is a stored password hash together with its owner.
type Credentials struct {
	User         domain.User
	PasswordHash string
}

// Accounts is implemented by backends that own their user table and can
// therefore register users with a local password. Firebase and Supabase
// delegate accounts to their hosted auth services and do not implement it.
type Accounts interface {
	// CreateUser stores a new user. Returns ErrAlreadyExists when the email is taken.
	CreateUser(ctx context.Context, user domain.User, passwordHash string) (*domain.User, error)
	// GetCredentials looks a user up by email, case-insensitively.
	GetCredentials(ctx context.Context, email string) (*Credentials, error)
}

// DefaultAppConfig supplies the AppConfig written the first time it is read.
type DefaultAppConfig func() domain.AppConfig

// StaticAppConfig returns a DefaultAppConfig that always seeds showRegisterTab.
func StaticAppConfig(showRegisterTab bool) DefaultAppConfig {
	return func() domain.AppConfig {
		return *domain.NewAppConfig(showRegisterTab)
	}
}
