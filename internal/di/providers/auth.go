package providers

import (
	"context"
	"fmt"

	"github.com/samber/do/v2"

	"github.com/apphub/apphub-server/internal/auth"
	"github.com/apphub/apphub-server/internal/config"
	"github.com/apphub/apphub-server/internal/logger"
	"github.com/apphub/apphub-server/internal/service"
	"github.com/apphub/apphub-server/internal/validation"
)

// AuthKey is the PASETO key that signs local access tokens.
type AuthKey []byte

// ProvideAuthKey loads or generates the authentication key.
func ProvideAuthKey(i do.Injector) (AuthKey, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	key, err := auth.LoadOrGenerateKey(cfg.Storage.DataPath)
	if err != nil {
		return nil, err
	}

	cfg.Auth.AccessTokenKey = key

	log.Info("Authentication key loaded",
		"access_token_duration", cfg.Auth.AccessTokenDuration,
	)

	return AuthKey(key), nil
}

// ProvideTokenService provides the PASETO token service. It returns nil on
// backends whose accounts live in Firebase Auth or Supabase Auth.
func ProvideTokenService(i do.Injector) (*auth.TokenService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	if !cfg.UsesLocalAccounts() {
		return nil, nil
	}

	authKey := do.MustInvoke[AuthKey](i)
	return auth.NewTokenService(authKey, cfg.Auth.AccessTokenDuration)
}

// ProvideVerifier provides the bearer token verifier for the configured backend.
func ProvideVerifier(i do.Injector) (auth.Verifier, error) {
	cfg := do.MustInvoke[*config.Config](i)

	switch cfg.Storage.Backend {
	case config.BackendFirebase:
		app := do.MustInvoke[*FirebaseAppHandle](i)
		client, err := app.Auth(context.Background())
		if err != nil {
			return nil, fmt.Errorf("init firebase auth: %w", err)
		}
		return auth.NewFirebaseVerifier(client), nil

	case config.BackendSupabase:
		return auth.NewSupabaseVerifier(cfg.Supabase.JWTSecret)

	default:
		return do.MustInvoke[*auth.TokenService](i), nil
	}
}

// ProvideValidator provides the shared request validator.
func ProvideValidator(i do.Injector) (*validation.Validator, error) {
	return validation.New(), nil
}

// ProvideAuthService provides the authentication service.
func ProvideAuthService(i do.Injector) (*service.AuthService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	tokenService := do.MustInvoke[*auth.TokenService](i)
	verifier := do.MustInvoke[auth.Verifier](i)
	v := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewAuthService(storeHandle.Store, v, service.AuthOptions{
		Tokens:      tokenService,
		Verifier:    verifier,
		AdminEmails: cfg.Auth.AdminEmails,
	}, log.Logger), nil
}
