package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/apphub/apphub-server/internal/auth"
	"github.com/apphub/apphub-server/internal/domain"
	domainerrors "github.com/apphub/apphub-server/internal/errors"
	"github.com/apphub/apphub-server/internal/id"
	"github.com/apphub/apphub-server/internal/store"
	"github.com/apphub/apphub-server/internal/validation"
)

// AuthService resolves bearer tokens to users and, on backends that own
// their accounts, registers users and logs them in with a password.
type AuthService struct {
	store       store.Store
	accounts    store.Accounts // nil when accounts live in Firebase Auth or Supabase Auth
	tokens      *auth.TokenService
	verifier    auth.Verifier
	validator   *validation.Validator
	adminEmails []string
	logger      *slog.Logger
}

// AuthOptions configures an AuthService.
type AuthOptions struct {
	// Tokens issues local access tokens. Nil disables register and login.
	Tokens *auth.TokenService
	// Verifier checks bearer tokens. Defaults to Tokens.
	Verifier auth.Verifier
	// AdminEmails are granted ADMIN on registration.
	AdminEmails []string
}

// NewAuthService creates a new authentication service.
func NewAuthService(st store.Store, validator *validation.Validator, opts AuthOptions, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &AuthService{
		store:       st,
		tokens:      opts.Tokens,
		verifier:    opts.Verifier,
		validator:   validator,
		adminEmails: opts.AdminEmails,
		logger:      logger,
	}
	if acc, ok := st.(store.Accounts); ok {
		s.accounts = acc
	}
	if s.verifier == nil && s.tokens != nil {
		s.verifier = s.tokens
	}
	return s
}

// RegisterRequest contains the fields of a new local account.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=2,max=50"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=1024"`
}

// LoginRequest contains user credentials.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=1024"`
}

// AuthResponse contains an access token and the user it belongs to.
type AuthResponse struct {
	AccessToken string       `json:"accessToken"`
	TokenType   string       `json:"tokenType"`
	ExpiresAt   time.Time    `json:"expiresAt"`
	User        *domain.User `json:"user"`
}

// LocalAccounts reports whether register and login are available.
func (s *AuthService) LocalAccounts() bool {
	return s.accounts != nil && s.tokens != nil
}

// Register creates a local account while registration is open. The first
// account, and any account whose email is listed in ADMIN_EMAILS, becomes ADMIN.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	if !s.LocalAccounts() {
		return nil, domainerrors.Unsupported("registration is handled by the identity provider")
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = store.NormalizeEmail(req.Email)
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	hasUsers, err := s.store.HasUsers(ctx)
	if err != nil {
		return nil, mapStoreError(err, "check users")
	}
	bootstrap := !hasUsers || s.isAdminEmail(req.Email)

	// A hidden register tab still admits the first account and listed admins.
	if !bootstrap {
		cfg, err := s.store.GetAppConfig(ctx)
		if err != nil {
			return nil, mapStoreError(err, "get app config")
		}
		if !cfg.ShowRegisterTab {
			return nil, domainerrors.ErrRegistrationClosed
		}
	}

	role := domain.RoleUser
	if bootstrap {
		role = domain.RoleAdmin
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	userID, err := id.Generate(id.PrefixUser)
	if err != nil {
		return nil, fmt.Errorf("generate user ID: %w", err)
	}

	user, err := s.accounts.CreateUser(ctx, domain.User{
		ID:        userID,
		Username:  req.Username,
		Email:     req.Email,
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}, passwordHash)
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, domainerrors.AlreadyExists("email already registered")
		}
		return nil, mapStoreError(err, "create user")
	}

	s.logger.Info("user registered",
		"user_id", user.ID,
		"email", user.Email,
		"role", user.Role,
	)
	return s.issue(user)
}

// Login checks an email and password and issues an access token.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	if !s.LocalAccounts() {
		return nil, domainerrors.Unsupported("login is handled by the identity provider")
	}

	req.Email = store.NormalizeEmail(req.Email)
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	creds, err := s.accounts.GetCredentials(ctx, req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Hash anyway so unknown emails take as long as wrong passwords.
			_, _ = auth.HashPassword(req.Password)
			return nil, domainerrors.InvalidCredentials("invalid email or password")
		}
		return nil, mapStoreError(err, "get credentials")
	}

	if !auth.VerifyPassword(creds.PasswordHash, req.Password) {
		s.logger.Warn("failed login attempt", "email", req.Email)
		return nil, domainerrors.InvalidCredentials("invalid email or password")
	}
	if creds.User.Disabled {
		return nil, domainerrors.Forbidden("account is disabled")
	}

	s.logger.Info("user logged in", "user_id", creds.User.ID)
	return s.issue(&creds.User)
}

// Authenticate verifies a bearer token and loads its user. Role and disabled
// state always come from the store, never from token claims.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	if s.verifier == nil {
		return nil, domainerrors.Unauthorized("authentication is not configured")
	}

	ident, err := s.verifier.Verify(ctx, token)
	if err != nil {
		return nil, domainerrors.Unauthorized("invalid or expired token").WithCause(err)
	}

	user, err := s.store.GetUser(ctx, ident.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.Unauthorized("user not found")
		}
		return nil, mapStoreError(err, "get user")
	}
	if user.Disabled {
		return nil, domainerrors.Forbidden("account is disabled")
	}
	return user, nil
}

func (s *AuthService) issue(user *domain.User) (*AuthResponse, error) {
	token, expiresAt, err := s.tokens.GenerateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}
	return &AuthResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt,
		User:        user,
	}, nil
}

func (s *AuthService) isAdminEmail(email string) bool {
	for _, e := range s.adminEmails {
		if strings.EqualFold(strings.TrimSpace(e), email) {
			return true
		}
	}
	return false
}
