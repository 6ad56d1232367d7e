package badgerstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/apphub/apphub-server/internal/domain"
	"github.com/apphub/apphub-server/internal/store"
)

// userRecord is the stored form of a local account.
type userRecord struct {
	domain.User
	PasswordHash string `json:"passwordHash"`
}

// GetAppConfig reads the global config, writing the default on first access.
func (s *Store) GetAppConfig(ctx context.Context) (*domain.AppConfig, error) {
	var cfg domain.AppConfig
	err := s.update(ctx, func(txn *badger.Txn) error {
		err := getJSON(txn, []byte(keyAppConfig), &cfg)
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		cfg = s.defaults()
		return setJSON(txn, []byte(keyAppConfig), cfg)
	})
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// UpdateAppConfig overwrites the global config. Last write wins.
func (s *Store) UpdateAppConfig(ctx context.Context, cfg domain.AppConfig) (*domain.AppConfig, error) {
	cfg.UpdatedAt = time.Now().UTC()
	err := s.update(ctx, func(txn *badger.Txn) error {
		return setJSON(txn, []byte(keyAppConfig), cfg)
	})
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// CreateUser stores a local account.
func (s *Store) CreateUser(ctx context.Context, user domain.User, passwordHash string) (*domain.User, error) {
	if user.ID == "" || user.Email == "" {
		return nil, store.ErrInvalidInput.WithMessage("user id and email are required")
	}
	if !user.Role.Valid() {
		user.Role = domain.RoleUser
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	rec := &userRecord{User: user, PasswordHash: passwordHash}
	if err := s.users.Create(ctx, user.ID, rec); err != nil {
		return nil, err
	}
	return &user, nil
}

// GetCredentials looks up an account by email.
func (s *Store) GetCredentials(ctx context.Context, email string) (*store.Credentials, error) {
	rec, err := s.users.GetByIndex(ctx, "email", email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, store.ErrNotFound.WithMessage("user not found")
		}
		return nil, err
	}
	return &store.Credentials{User: rec.User, PasswordHash: rec.PasswordHash}, nil
}

// HasUsers reports whether any account exists.
func (s *Store) HasUsers(ctx context.Context) (bool, error) {
	for _, err := range s.users.List(ctx) {
		if err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

// GetUsers lists all accounts, oldest first.
func (s *Store) GetUsers(ctx context.Context) ([]domain.User, error) {
	users := []domain.User{}
	for rec, err := range s.users.List(ctx) {
		if err != nil {
			return nil, fmt.Errorf("list users: %w", err)
		}
		users = append(users, rec.User)
	}
	sortByCreated(users,
		func(u domain.User) time.Time { return u.CreatedAt },
		func(u domain.User) string { return u.ID })
	return users, nil
}

// GetUser returns one account.
func (s *Store) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	rec, err := s.users.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, store.NotFound("user", userID)
		}
		return nil, err
	}
	return &rec.User, nil
}

// UpdateUserRole changes an account's role.
func (s *Store) UpdateUserRole(ctx context.Context, userID string, role domain.Role) (*domain.User, error) {
	return s.modifyUser(ctx, userID, func(u *userRecord) { u.Role = role })
}

// SetUserDisabled enables or disables an account.
func (s *Store) SetUserDisabled(ctx context.Context, userID string, disabled bool) (*domain.User, error) {
	return s.modifyUser(ctx, userID, func(u *userRecord) { u.Disabled = disabled })
}

func (s *Store) modifyUser(ctx context.Context, userID string, mutate func(*userRecord)) (*domain.User, error) {
	rec, err := s.users.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, store.NotFound("user", userID)
		}
		return nil, err
	}
	mutate(rec)
	if err := s.users.Update(ctx, userID, rec); err != nil {
		return nil, err
	}
	return &rec.User, nil
}

// DeleteUser removes an account and everything it owns in one transaction.
func (s *Store) DeleteUser(ctx context.Context, userID string) error {
	err := s.update(ctx, func(txn *badger.Txn) error {
		if err := s.users.deleteTxn(txn, userID); err != nil {
			return err
		}
		for _, prefix := range []string{prefixCategory, prefixApp, prefixAppCat, prefixFavorite, prefixHistory} {
			n, err := deletePrefix(txn, []byte(userScope(prefix, userID)))
			if err != nil {
				return err
			}
			if n > 0 {
				s.logger.Debug("deleted user data", "user_id", userID, "prefix", prefix, "count", n)
			}
		}
		return nil
	})
	if errors.Is(err, store.ErrNotFound) {
		return store.NotFound("user", userID)
	}
	return err
}
