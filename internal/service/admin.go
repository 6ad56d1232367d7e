package service

import (
	"context"
	"log/slog"

	"github.com/apphub/apphub-server/internal/domain"
	domainerrors "github.com/apphub/apphub-server/internal/errors"
	"github.com/apphub/apphub-server/internal/store"
)

// AdminService handles admin-only user management operations.
type AdminService struct {
	store  store.Store
	search *SearchService
	logger *slog.Logger
}

// NewAdminService creates a new admin service. search may be nil.
func NewAdminService(store store.Store, search *SearchService, logger *slog.Logger) *AdminService {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &AdminService{
		store:  store,
		search: search,
		logger: logger,
	}
}

// ListUsers returns every user, oldest first. If the backend cannot list
// accounts, the caller still gets their own record.
func (s *AdminService) ListUsers(ctx context.Context, callerID string) ([]domain.User, error) {
	users, err := s.allUsers(ctx)
	if err == nil {
		return users, nil
	}

	self, selfErr := s.store.GetUser(ctx, callerID)
	if selfErr != nil {
		return nil, err
	}
	s.logger.Warn("user listing failed, returning caller only",
		"user_id", callerID,
		"error", err,
	)
	return []domain.User{*self}, nil
}

func (s *AdminService) allUsers(ctx context.Context) ([]domain.User, error) {
	users, err := s.store.GetUsers(ctx)
	if err != nil {
		return nil, mapStoreError(err, "list users")
	}
	if users == nil {
		users = []domain.User{}
	}
	return users, nil
}

// GetUser returns a user by ID.
func (s *AdminService) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, mapStoreError(err, "get user")
	}
	return user, nil
}

// UpdateUserRole sets a user's role. role must be USER or ADMIN.
// An admin cannot change their own role, and the last admin cannot be demoted.
func (s *AdminService) UpdateUserRole(ctx context.Context, adminUserID, targetUserID, role string) (*domain.User, error) {
	newRole := domain.Role(role)
	if !newRole.Valid() {
		return nil, domainerrors.ValidationWithDetails("invalid role", map[string]string{
			"role": "must be one of: USER ADMIN",
		})
	}

	user, err := s.GetUser(ctx, targetUserID)
	if err != nil {
		return nil, err
	}
	if user.Role == newRole {
		return user, nil
	}
	if adminUserID == targetUserID {
		return nil, domainerrors.Forbidden("cannot change your own role")
	}
	if user.IsAdmin() {
		if err := s.ensureOtherAdminExists(ctx, targetUserID); err != nil {
			return nil, err
		}
	}

	updated, err := s.store.UpdateUserRole(ctx, targetUserID, newRole)
	if err != nil {
		return nil, mapStoreError(err, "update user role")
	}

	s.logger.Info("user role updated by admin",
		"admin_id", adminUserID,
		"user_id", targetUserID,
		"role", newRole,
	)
	return updated, nil
}

// SetUserDisabled enables or disables a user. Disabled users cannot authenticate.
func (s *AdminService) SetUserDisabled(ctx context.Context, adminUserID, targetUserID string, disabled bool) (*domain.User, error) {
	user, err := s.GetUser(ctx, targetUserID)
	if err != nil {
		return nil, err
	}
	if user.Disabled == disabled {
		return user, nil
	}
	if disabled && adminUserID == targetUserID {
		return nil, domainerrors.Forbidden("cannot disable your own account")
	}
	if disabled && user.IsAdmin() {
		if err := s.ensureOtherAdminExists(ctx, targetUserID); err != nil {
			return nil, err
		}
	}

	updated, err := s.store.SetUserDisabled(ctx, targetUserID, disabled)
	if err != nil {
		return nil, mapStoreError(err, "update user status")
	}

	s.logger.Info("user status updated by admin",
		"admin_id", adminUserID,
		"user_id", targetUserID,
		"disabled", disabled,
	)
	return updated, nil
}

// DeleteUser removes a user with all their categories, apps, favorites and history.
func (s *AdminService) DeleteUser(ctx context.Context, adminUserID, targetUserID string) error {
	if adminUserID == targetUserID {
		return domainerrors.Forbidden("cannot delete your own account")
	}

	user, err := s.GetUser(ctx, targetUserID)
	if err != nil {
		return err
	}
	if user.IsAdmin() {
		if err := s.ensureOtherAdminExists(ctx, targetUserID); err != nil {
			return err
		}
	}

	if err := s.store.DeleteUser(ctx, targetUserID); err != nil {
		return mapStoreError(err, "delete user")
	}
	s.search.RemoveUser(ctx, targetUserID)

	s.logger.Info("user deleted by admin",
		"admin_id", adminUserID,
		"user_id", targetUserID,
		"email", user.Email,
	)
	return nil
}

// ensureOtherAdminExists checks that an enabled admin other than excludeUserID remains.
func (s *AdminService) ensureOtherAdminExists(ctx context.Context, excludeUserID string) error {
	users, err := s.allUsers(ctx)
	if err != nil {
		return err
	}

	for _, u := range users {
		if u.ID != excludeUserID && u.IsAdmin() && !u.Disabled {
			return nil
		}
	}

	return domainerrors.Forbidden("cannot remove the last admin")
}
