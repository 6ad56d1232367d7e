package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/apphub/apphub-server/internal/domain"
	domainerrors "github.com/apphub/apphub-server/internal/errors"
	"github.com/apphub/apphub-server/internal/service"
)

// ctxKey is the type for context keys to avoid collisions.
type ctxKey string

const (
	// userKey holds the authenticated *domain.User.
	userKey ctxKey = "user"
	// authErrKey holds why a presented token was rejected.
	authErrKey ctxKey = "authErr"
)

// GetUserID returns the authenticated user ID from context.
// Returns 401 error if user is not authenticated.
func GetUserID(ctx context.Context) (string, error) {
	user, err := RequireUser(ctx)
	if err != nil {
		return "", err
	}
	return user.ID, nil
}

// RequireUser returns the authenticated user from context.
// Returns 401 when no valid token was presented and 403 when the account is disabled.
func RequireUser(ctx context.Context) (*domain.User, error) {
	if user, ok := ctx.Value(userKey).(*domain.User); ok && user != nil {
		return user, nil
	}
	if err, ok := ctx.Value(authErrKey).(error); ok && err != nil {
		return nil, err
	}
	return nil, huma.Error401Unauthorized("Authentication required")
}

// RequireAdmin validates the user is authenticated and has admin role.
func RequireAdmin(ctx context.Context) (*domain.User, error) {
	user, err := RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	if !user.IsAdmin() {
		return nil, domainerrors.Forbidden("Admin access required")
	}

	return user, nil
}

// withUser stores the authenticated user in context.
func withUser(ctx context.Context, user *domain.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// authMiddleware returns a middleware that validates Bearer tokens and stores the user in context.
// If no token is present or invalid, continues without user in context.
// Handlers use RequireUser or RequireAdmin to check authentication.
func authMiddleware(auth *service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok || auth == nil {
				next.ServeHTTP(w, r)
				return
			}

			user, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				ctx := context.WithValue(r.Context(), authErrKey, err)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
		})
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
