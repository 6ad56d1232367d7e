package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/apphub/apphub-server/internal/domain"
)

func (s *Server) registerUserRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listUsers",
		Method:      http.MethodGet,
		Path:        "/api/users",
		Summary:     "List users",
		Description: "Returns every account (admin only)",
		Tags:        []string{"Users"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListUsers)

	huma.Register(s.api, huma.Operation{
		OperationID: "getUser",
		Method:      http.MethodGet,
		Path:        "/api/users/{userId}",
		Summary:     "Get user",
		Description: "Returns one account (admin only)",
		Tags:        []string{"Users"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetUser)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateUserRole",
		Method:      http.MethodPatch,
		Path:        "/api/users/{userId}/role",
		Summary:     "Update user role",
		Description: "Sets the role of an account to USER or ADMIN (admin only)",
		Tags:        []string{"Users"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleUpdateUserRole)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateUserStatus",
		Method:      http.MethodPatch,
		Path:        "/api/users/{userId}/status",
		Summary:     "Enable or disable user",
		Description: "Disables or re-enables an account (admin only)",
		Tags:        []string{"Users"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleUpdateUserStatus)

	huma.Register(s.api, huma.Operation{
		OperationID:   "deleteUser",
		Method:        http.MethodDelete,
		Path:          "/api/users/{userId}",
		Summary:       "Delete user",
		Description:   "Deletes an account and all of its dashboard data (admin only)",
		Tags:          []string{"Users"},
		Security:      []map[string][]string{{"bearer": {}}},
		DefaultStatus: http.StatusNoContent,
	}, s.handleDeleteUser)
}

// === DTOs ===

// UserIDInput identifies a user in the path.
type UserIDInput struct {
	UserID string `path:"userId" doc:"User ID"`
}

// UpdateUserRoleRequest is the request body for changing a role.
type UpdateUserRoleRequest struct {
	Role string `json:"role" doc:"USER or ADMIN"`
}

// UpdateUserRoleInput wraps the role update for Huma.
type UpdateUserRoleInput struct {
	UserID string `path:"userId" doc:"User ID"`
	Body   UpdateUserRoleRequest
}

// UpdateUserStatusRequest is the request body for enabling or disabling a user.
type UpdateUserStatusRequest struct {
	Disabled bool `json:"disabled" doc:"Whether the account is disabled"`
}

// UpdateUserStatusInput wraps the status update for Huma.
type UpdateUserStatusInput struct {
	UserID string `path:"userId" doc:"User ID"`
	Body   UpdateUserStatusRequest
}

// ListUsersOutput wraps the user list for Huma.
type ListUsersOutput struct {
	Body []domain.User
}

// === Handlers ===

func (s *Server) handleListUsers(ctx context.Context, _ *struct{}) (*ListUsersOutput, error) {
	admin, err := RequireAdmin(ctx)
	if err != nil {
		return nil, err
	}

	users, err := s.services.Admin.ListUsers(ctx, admin.ID)
	if err != nil {
		return nil, err
	}
	return &ListUsersOutput{Body: users}, nil
}

func (s *Server) handleGetUser(ctx context.Context, input *UserIDInput) (*UserOutput, error) {
	if _, err := RequireAdmin(ctx); err != nil {
		return nil, err
	}

	user, err := s.services.Admin.GetUser(ctx, input.UserID)
	if err != nil {
		return nil, err
	}
	return &UserOutput{Body: user}, nil
}

func (s *Server) handleUpdateUserRole(ctx context.Context, input *UpdateUserRoleInput) (*UserOutput, error) {
	admin, err := RequireAdmin(ctx)
	if err != nil {
		return nil, err
	}

	user, err := s.services.Admin.UpdateUserRole(ctx, admin.ID, input.UserID, input.Body.Role)
	if err != nil {
		return nil, err
	}
	return &UserOutput{Body: user}, nil
}

func (s *Server) handleUpdateUserStatus(ctx context.Context, input *UpdateUserStatusInput) (*UserOutput, error) {
	admin, err := RequireAdmin(ctx)
	if err != nil {
		return nil, err
	}

	user, err := s.services.Admin.SetUserDisabled(ctx, admin.ID, input.UserID, input.Body.Disabled)
	if err != nil {
		return nil, err
	}
	return &UserOutput{Body: user}, nil
}

func (s *Server) handleDeleteUser(ctx context.Context, input *UserIDInput) (*struct{}, error) {
	admin, err := RequireAdmin(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.services.Admin.DeleteUser(ctx, admin.ID, input.UserID); err != nil {
		return nil, err
	}
	return nil, nil
}
