package sqlstore

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/apphub/apphub-server/internal/domain"
	"github.com/apphub/apphub-server/internal/store"
)

type userRow struct {
	ID           string `db:"id"`
	Username     string `db:"username"`
	Email        string `db:"email"`
	PasswordHash string `db:"password_hash"`
	Disabled     bool   `db:"disabled"`
	CreatedAt    int64  `db:"created_at"`
	Role         string `db:"role"`
}

func (r userRow) toDomain() domain.User {
	return domain.User{
		ID:        r.ID,
		Username:  r.Username,
		Email:     r.Email,
		Role:      domain.ParseRole(r.Role),
		CreatedAt: fromMillis(r.CreatedAt),
		Disabled:  r.Disabled,
	}
}

// The role lives only in bms_user_roles; a missing row means USER.
const userSelect = `SELECT u.id, u.username, u.email, u.password_hash, u.disabled, u.created_at,
	COALESCE(r.role, 'USER') AS role
	FROM bms_users u
	LEFT JOIN bms_user_roles r ON r.user_id = u.id`

// CreateUser stores a local account and its role in one transaction.
func (s *Store) CreateUser(ctx context.Context, user domain.User, passwordHash string) (*domain.User, error) {
	if user.ID == "" || user.Email == "" {
		return nil, store.ErrInvalidInput.WithMessage("user id and email are required")
	}
	if !user.Role.Valid() {
		user.Role = domain.RoleUser
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	user.CreatedAt = fromMillis(toMillis(user.CreatedAt))

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := s.exec(ctx, tx,
			`INSERT INTO bms_users (id, username, email, email_lower, password_hash, disabled, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			user.ID, user.Username, user.Email, store.NormalizeEmail(user.Email),
			passwordHash, user.Disabled, toMillis(user.CreatedAt)); err != nil {
			if isUniqueViolation(err) {
				return store.ErrAlreadyExists.WithMessage("email already registered").WithCause(err)
			}
			return err
		}
		return s.upsertRole(ctx, tx, user.ID, user.Role)
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetCredentials looks up an account by email.
func (s *Store) GetCredentials(ctx context.Context, email string) (*store.Credentials, error) {
	var row userRow
	if err := s.get(ctx, s.db, &row, userSelect+` WHERE u.email_lower = ?`, store.NormalizeEmail(email)); err != nil {
		return nil, notFoundIfNoRows(err, "user", email)
	}
	return &store.Credentials{User: row.toDomain(), PasswordHash: row.PasswordHash}, nil
}

// HasUsers reports whether any account exists.
func (s *Store) HasUsers(ctx context.Context) (bool, error) {
	var n int
	if err := s.get(ctx, s.db, &n, `SELECT COUNT(*) FROM bms_users`); err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetUsers lists all accounts, oldest first.
func (s *Store) GetUsers(ctx context.Context) ([]domain.User, error) {
	var rows []userRow
	if err := s.sel(ctx, s.db, &rows, userSelect+` ORDER BY u.created_at, u.id`); err != nil {
		return nil, err
	}
	out := make([]domain.User, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// GetUser returns one account.
func (s *Store) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	u, err := s.loadUser(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) loadUser(ctx context.Context, q queryer, userID string) (domain.User, error) {
	var row userRow
	if err := s.get(ctx, q, &row, userSelect+` WHERE u.id = ?`, userID); err != nil {
		return domain.User{}, notFoundIfNoRows(err, "user", userID)
	}
	return row.toDomain(), nil
}

// UpdateUserRole changes an account's role.
func (s *Store) UpdateUserRole(ctx context.Context, userID string, role domain.Role) (*domain.User, error) {
	var out domain.User
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := s.loadUser(ctx, tx, userID); err != nil {
			return err
		}
		if err := s.upsertRole(ctx, tx, userID, role); err != nil {
			return err
		}
		var err error
		out, err = s.loadUser(ctx, tx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) upsertRole(ctx context.Context, q queryer, userID string, role domain.Role) error {
	_, err := s.exec(ctx, q,
		`INSERT INTO bms_user_roles (user_id, role, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET role = excluded.role, updated_at = excluded.updated_at`,
		userID, string(role), nowMillis())
	return err
}

// SetUserDisabled enables or disables an account.
func (s *Store) SetUserDisabled(ctx context.Context, userID string, disabled bool) (*domain.User, error) {
	var out domain.User
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.execOne(ctx, tx, store.NotFound("user", userID),
			`UPDATE bms_users SET disabled = ? WHERE id = ?`, disabled, userID); err != nil {
			return err
		}
		var err error
		out, err = s.loadUser(ctx, tx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteUser removes an account and everything it owns in one transaction.
func (s *Store) DeleteUser(ctx context.Context, userID string) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.execOne(ctx, tx, store.NotFound("user", userID),
			`DELETE FROM bms_users WHERE id = ?`, userID); err != nil {
			return err
		}
		return deleteUserData(ctx, s, tx, userID)
	})
}

// deleteUserData removes rows owned by userID. Children go first so the
// statements also succeed where foreign keys are not enforced.
func deleteUserData(ctx context.Context, s *Store, tx *sqlx.Tx, userID string) error {
	for _, table := range []string{
		"bms_access_history",
		"bms_favorites",
		"bms_apps",
		"bms_categories",
		"bms_user_roles",
	} {
		if _, err := s.exec(ctx, tx, `DELETE FROM `+table+` WHERE user_id = ?`, userID); err != nil {
			return err
		}
	}
	return nil
}
