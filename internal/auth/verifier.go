package auth

import (
	"context"
	"errors"
	"fmt"

	fbauth "firebase.google.com/go/v4/auth"
	"github.com/golang-jwt/jwt/v5"
)

// Identity providers.
const (
	ProviderLocal    = "local"
	ProviderFirebase = "firebase"
	ProviderSupabase = "supabase"
)

// ErrInvalidToken wraps every verification failure.
var ErrInvalidToken = errors.New("invalid token")

// Identity is the authenticated subject of a bearer token.
type Identity struct {
	UserID   string
	Email    string
	Name     string
	Provider string
}

// Verifier resolves a bearer token to an Identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

// IDTokenVerifier is the part of the Firebase Auth client used here.
type IDTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*fbauth.Token, error)
}

// FirebaseVerifier verifies Firebase ID tokens.
type FirebaseVerifier struct {
	client IDTokenVerifier
}

// NewFirebaseVerifier wraps a Firebase Auth client.
func NewFirebaseVerifier(client IDTokenVerifier) *FirebaseVerifier {
	return &FirebaseVerifier{client: client}
}

// Verify checks the token signature, audience and expiry with the Firebase SDK.
func (v *FirebaseVerifier) Verify(ctx context.Context, raw string) (*Identity, error) {
	tok, err := v.client.VerifyIDToken(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if tok.UID == "" {
		return nil, fmt.Errorf("%w: missing uid", ErrInvalidToken)
	}
	ident := &Identity{UserID: tok.UID, Provider: ProviderFirebase}
	ident.Email, _ = tok.Claims["email"].(string)
	ident.Name, _ = tok.Claims["name"].(string)
	return ident, nil
}

// supabaseAudience is the aud claim GoTrue sets on user sessions.
const supabaseAudience = "authenticated"

type supabaseClaims struct {
	Email        string         `json:"email"`
	Role         string         `json:"role"`
	UserMetadata map[string]any `json:"user_metadata"`
	jwt.RegisteredClaims
}

// SupabaseVerifier verifies Supabase Auth access tokens with the project's JWT secret.
type SupabaseVerifier struct {
	secret []byte
	parser *jwt.Parser
}

// NewSupabaseVerifier creates a verifier for HS256 tokens signed with secret.
func NewSupabaseVerifier(secret string) (*SupabaseVerifier, error) {
	if secret == "" {
		return nil, errors.New("supabase JWT secret is required")
	}
	return &SupabaseVerifier{
		secret: []byte(secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithAudience(supabaseAudience),
			jwt.WithExpirationRequired(),
		),
	}, nil
}

// Verify parses and validates the token.
func (v *SupabaseVerifier) Verify(_ context.Context, raw string) (*Identity, error) {
	var claims supabaseClaims
	_, err := v.parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	ident := &Identity{UserID: claims.Subject, Email: claims.Email, Provider: ProviderSupabase}
	for _, key := range []string{"username", "name", "full_name"} {
		if name, ok := claims.UserMetadata[key].(string); ok && name != "" {
			ident.Name = name
			break
		}
	}
	return ident, nil
}
