package supabasestore

import (
	"cmp"
	"context"
	"slices"

	"github.com/apphub/apphub-server/internal/domain"
	"github.com/apphub/apphub-server/internal/supabase"
)

type roleRow struct {
	UserID    string `json:"user_id"`
	Role      string `json:"role"`
	UpdatedAt int64  `json:"updated_at"`
}

func (s *Store) toUser(u *supabase.User, role domain.Role) domain.User {
	return domain.User{
		ID:        u.ID,
		Username:  u.Username(),
		Email:     u.Email,
		Role:      role,
		CreatedAt: u.CreatedAt.UTC(),
		Disabled:  u.Banned(s.now()),
	}
}

// HasUsers reports whether GoTrue holds any account.
func (s *Store) HasUsers(ctx context.Context) (bool, error) {
	users, err := s.client.Admin().ListUsers(ctx, 1, 1)
	if err != nil {
		return false, wrap(err, "list users", "user", "")
	}
	return len(users) > 0, nil
}

// GetUsers lists every GoTrue account joined with its role, oldest first.
func (s *Store) GetUsers(ctx context.Context) ([]domain.User, error) {
	users, err := s.client.Admin().AllUsers(ctx, usersPageSize)
	if err != nil {
		return nil, wrap(err, "list users", "user", "")
	}

	var roles []roleRow
	if err := s.client.From(tableRoles).Select("*").Execute(ctx, &roles); err != nil {
		return nil, wrap(err, "list roles", "user", "")
	}
	byUser := make(map[string]domain.Role, len(roles))
	for _, r := range roles {
		byUser[r.UserID] = domain.ParseRole(r.Role)
	}

	out := make([]domain.User, 0, len(users))
	for i := range users {
		role, ok := byUser[users[i].ID]
		if !ok {
			role = domain.RoleUser
		}
		out = append(out, s.toUser(&users[i], role))
	}
	slices.SortFunc(out, func(a, b domain.User) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

// GetUser returns one account.
func (s *Store) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	u, err := s.client.Admin().GetUser(ctx, userID)
	if err != nil {
		return nil, wrap(err, "get user", "user", userID)
	}
	role, err := s.role(ctx, userID)
	if err != nil {
		return nil, err
	}
	user := s.toUser(u, role)
	return &user, nil
}

func (s *Store) role(ctx context.Context, userID string) (domain.Role, error) {
	var rows []roleRow
	if err := s.client.From(tableRoles).Select("*").Eq("user_id", userID).Limit(1).
		Execute(ctx, &rows); err != nil {
		return "", wrap(err, "get role", "user", userID)
	}
	if len(rows) == 0 {
		return domain.RoleUser, nil
	}
	return domain.ParseRole(rows[0].Role), nil
}

// UpdateUserRole writes the role row for an existing GoTrue account.
func (s *Store) UpdateUserRole(ctx context.Context, userID string, role domain.Role) (*domain.User, error) {
	u, err := s.client.Admin().GetUser(ctx, userID)
	if err != nil {
		return nil, wrap(err, "get user", "user", userID)
	}

	row := roleRow{UserID: userID, Role: string(role), UpdatedAt: s.nowMillis()}
	if err := s.client.From(tableRoles).OnConflict("user_id").Upsert(ctx, row, nil); err != nil {
		return nil, wrap(err, "update role", "user", userID)
	}
	user := s.toUser(u, role)
	return &user, nil
}

// SetUserDisabled bans or unbans the GoTrue account.
func (s *Store) SetUserDisabled(ctx context.Context, userID string, disabled bool) (*domain.User, error) {
	u, err := s.client.Admin().SetBanned(ctx, userID, disabled)
	if err != nil {
		return nil, wrap(err, "set user disabled", "user", userID)
	}
	role, err := s.role(ctx, userID)
	if err != nil {
		return nil, err
	}
	user := s.toUser(u, role)
	return &user, nil
}

// DeleteUser removes the user's rows, then the GoTrue account. Rows go first
// so a failure leaves a retryable account rather than orphaned data.
func (s *Store) DeleteUser(ctx context.Context, userID string) error {
	if _, err := s.client.Admin().GetUser(ctx, userID); err != nil {
		return wrap(err, "get user", "user", userID)
	}

	for _, table := range []string{tableHistory, tableFavorites, tableApps, tableCategories, tableRoles} {
		if err := s.client.From(table).Eq("user_id", userID).Delete(ctx, nil); err != nil {
			return wrap(err, "delete user data", "user", userID)
		}
	}

	if err := s.client.Admin().DeleteUser(ctx, userID); err != nil {
		return wrap(err, "delete user", "user", userID)
	}
	s.logger.Info("user deleted", "user_id", userID)
	return nil
}
