package firebasestore

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/iterator"

	"github.com/apphub/apphub-server/internal/domain"
	"github.com/apphub/apphub-server/internal/store"
)

// RoleClaim is the custom claim that carries a user's role.
const RoleClaim = "role"

// Directory is the account registry behind the Firestore data. Firebase Auth
// owns role (a custom claim) and disabled state; nothing is mirrored.
type Directory interface {
	User(ctx context.Context, uid string) (domain.User, error)
	Users(ctx context.Context) ([]domain.User, error)
	HasUsers(ctx context.Context) (bool, error)
	SetRole(ctx context.Context, uid string, role domain.Role) (domain.User, error)
	SetDisabled(ctx context.Context, uid string, disabled bool) (domain.User, error)
	Delete(ctx context.Context, uid string) error
}

// AuthDirectory implements Directory with the Firebase Auth admin API.
type AuthDirectory struct {
	client *auth.Client
}

// NewAuthDirectory wraps a Firebase Auth client.
func NewAuthDirectory(client *auth.Client) *AuthDirectory {
	return &AuthDirectory{client: client}
}

// User fetches one account.
func (d *AuthDirectory) User(ctx context.Context, uid string) (domain.User, error) {
	rec, err := d.client.GetUser(ctx, uid)
	if err != nil {
		return domain.User{}, authError(err, uid)
	}
	return userFromRecord(rec), nil
}

// Users pages through every account.
func (d *AuthDirectory) Users(ctx context.Context) ([]domain.User, error) {
	var out []domain.User
	it := d.client.Users(ctx, "")
	for {
		rec, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("list firebase users: %w", err)
		}
		out = append(out, userFromRecord(rec.UserRecord))
	}
}

// HasUsers reports whether at least one account exists.
func (d *AuthDirectory) HasUsers(ctx context.Context) (bool, error) {
	_, err := d.client.Users(ctx, "").Next()
	if errors.Is(err, iterator.Done) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("list firebase users: %w", err)
	}
	return true, nil
}

// SetRole writes the role claim, keeping any other custom claims.
func (d *AuthDirectory) SetRole(ctx context.Context, uid string, role domain.Role) (domain.User, error) {
	rec, err := d.client.GetUser(ctx, uid)
	if err != nil {
		return domain.User{}, authError(err, uid)
	}

	claims := maps.Clone(rec.CustomClaims)
	if claims == nil {
		claims = make(map[string]any, 1)
	}
	claims[RoleClaim] = string(role)
	if err := d.client.SetCustomUserClaims(ctx, uid, claims); err != nil {
		return domain.User{}, authError(err, uid)
	}

	rec.CustomClaims = claims
	return userFromRecord(rec), nil
}

// SetDisabled flips the account's disabled flag.
func (d *AuthDirectory) SetDisabled(ctx context.Context, uid string, disabled bool) (domain.User, error) {
	rec, err := d.client.UpdateUser(ctx, uid, (&auth.UserToUpdate{}).Disabled(disabled))
	if err != nil {
		return domain.User{}, authError(err, uid)
	}
	return userFromRecord(rec), nil
}

// Delete removes the account.
func (d *AuthDirectory) Delete(ctx context.Context, uid string) error {
	return authError(d.client.DeleteUser(ctx, uid), uid)
}

func authError(err error, uid string) error {
	switch {
	case err == nil:
		return nil
	case auth.IsUserNotFound(err):
		return store.ErrNotFound.WithMessagef("user %s not found", uid).WithCause(err)
	default:
		return fmt.Errorf("firebase auth user %s: %w", uid, err)
	}
}

func userFromRecord(rec *auth.UserRecord) domain.User {
	u := domain.User{Disabled: rec.Disabled, Role: domain.RoleUser}
	if rec.UserInfo != nil {
		u.ID = rec.UID
		u.Email = rec.Email
		u.Username = rec.DisplayName
	}
	if role, ok := rec.CustomClaims[RoleClaim].(string); ok {
		u.Role = domain.ParseRole(role)
	}
	if rec.UserMetadata != nil && rec.UserMetadata.CreationTimestamp > 0 {
		u.CreatedAt = time.UnixMilli(rec.UserMetadata.CreationTimestamp).UTC()
	}
	return u
}
