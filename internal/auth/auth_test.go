package auth

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	fbauth "firebase.google.com/go/v4/auth"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apphub/apphub-server/internal/domain"
)

func TestHashPassword_RoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=65536,t=3,p=4$"))

	assert.True(t, VerifyPassword(hash, "correct horse battery staple"))
	assert.False(t, VerifyPassword(hash, "Correct horse battery staple"))
}

func TestHashPassword_SaltsDiffer(t *testing.T) {
	a, err := HashPassword("secret")
	require.NoError(t, err)
	b, err := HashPassword("secret")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestHashPassword_Rejects(t *testing.T) {
	_, err := HashPassword("")
	assert.ErrorIs(t, err, ErrEmptyPassword)

	_, err = HashPassword(strings.Repeat("x", MaxPasswordLength+1))
	assert.ErrorIs(t, err, ErrPasswordTooLong)
}

func TestVerifyPassword_MalformedHash(t *testing.T) {
	assert.False(t, VerifyPassword("not-a-hash", "secret"))
	assert.False(t, VerifyPassword("$bcrypt$v=19$m=1,t=1,p=1$c2FsdA$aGFzaA", "secret"))
	assert.False(t, VerifyPassword("$argon2id$v=19$m=1,t=1,p=1$!!$aGFzaA", "secret"))
}

func TestLoadOrGenerateKey(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")

	key, err := LoadOrGenerateKey(dir)
	require.NoError(t, err)
	assert.Len(t, key, keyLength)

	again, err := LoadOrGenerateKey(dir)
	require.NoError(t, err)
	assert.Equal(t, key, again, "key persists across loads")

	info, err := os.Stat(filepath.Join(dir, keyFileName))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoadOrGenerateKey_Corrupt(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, keyFileName), []byte("short"), 0o600))

	_, err := LoadOrGenerateKey(dir)
	assert.Error(t, err)
}

func newTokenService(t *testing.T, d time.Duration) *TokenService {
	t.Helper()
	key := make([]byte, keyLength)
	for i := range key {
		key[i] = byte(i)
	}
	svc, err := NewTokenService(key, d)
	require.NoError(t, err)
	return svc
}

func TestTokenService_RoundTrip(t *testing.T) {
	svc := newTokenService(t, time.Hour)
	user := &domain.User{ID: "usr-1", Email: "ana@example.com", Username: "ana"}

	token, expires, err := svc.GenerateAccessToken(user)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(token, "v4.local."))
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, 5*time.Second)

	ident, err := svc.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, &Identity{UserID: "usr-1", Email: "ana@example.com", Name: "ana", Provider: ProviderLocal}, ident)
}

func TestTokenService_Expired(t *testing.T) {
	svc := newTokenService(t, time.Minute)
	token, _, err := svc.GenerateAccessToken(&domain.User{ID: "usr-1"})
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = svc.Verify(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenService_WrongKey(t *testing.T) {
	token, _, err := newTokenService(t, time.Hour).GenerateAccessToken(&domain.User{ID: "usr-1"})
	require.NoError(t, err)

	other, err := NewTokenService(make([]byte, keyLength), time.Hour)
	require.NoError(t, err)
	_, err = other.Verify(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = other.Verify(context.Background(), "garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewTokenService_KeyLength(t *testing.T) {
	_, err := NewTokenService([]byte("short"), time.Hour)
	assert.Error(t, err)
}

type fakeIDTokens struct {
	token *fbauth.Token
	err   error
}

func (f fakeIDTokens) VerifyIDToken(context.Context, string) (*fbauth.Token, error) {
	return f.token, f.err
}

func TestFirebaseVerifier(t *testing.T) {
	v := NewFirebaseVerifier(fakeIDTokens{token: &fbauth.Token{
		UID:    "fb-uid",
		Claims: map[string]any{"email": "ana@example.com", "name": "Ana"},
	}})
	ident, err := v.Verify(context.Background(), "id-token")
	require.NoError(t, err)
	assert.Equal(t, &Identity{UserID: "fb-uid", Email: "ana@example.com", Name: "Ana", Provider: ProviderFirebase}, ident)

	bad := NewFirebaseVerifier(fakeIDTokens{err: errors.New("expired")})
	_, err = bad.Verify(context.Background(), "id-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

const testSecret = "super-secret-jwt-token-with-at-least-32-characters"

func signSupabase(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return signed
}

func supabaseClaimsFor(sub string, exp time.Time) jwt.MapClaims {
	return jwt.MapClaims{
		"sub":           sub,
		"aud":           "authenticated",
		"exp":           exp.Unix(),
		"email":         "bea@example.com",
		"role":          "authenticated",
		"user_metadata": map[string]any{"full_name": "Bea"},
	}
}

func TestSupabaseVerifier(t *testing.T) {
	v, err := NewSupabaseVerifier(testSecret)
	require.NoError(t, err)

	token := signSupabase(t, jwt.SigningMethodHS256, []byte(testSecret), supabaseClaimsFor("sb-uid", time.Now().Add(time.Hour)))
	ident, err := v.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, &Identity{UserID: "sb-uid", Email: "bea@example.com", Name: "Bea", Provider: ProviderSupabase}, ident)
}

func TestSupabaseVerifier_Rejects(t *testing.T) {
	v, err := NewSupabaseVerifier(testSecret)
	require.NoError(t, err)
	future := time.Now().Add(time.Hour)

	expired := signSupabase(t, jwt.SigningMethodHS256, []byte(testSecret), supabaseClaimsFor("sb-uid", time.Now().Add(-time.Hour)))
	wrongSecret := signSupabase(t, jwt.SigningMethodHS256, []byte("another-secret-another-secret-00"), supabaseClaimsFor("sb-uid", future))
	wrongAlg := signSupabase(t, jwt.SigningMethodHS512, []byte(testSecret), supabaseClaimsFor("sb-uid", future))
	noSubject := signSupabase(t, jwt.SigningMethodHS256, []byte(testSecret), supabaseClaimsFor("", future))

	anonClaims := supabaseClaimsFor("sb-uid", future)
	anonClaims["aud"] = "anon"
	wrongAudience := signSupabase(t, jwt.SigningMethodHS256, []byte(testSecret), anonClaims)

	for name, token := range map[string]string{
		"expired":        expired,
		"wrong secret":   wrongSecret,
		"wrong alg":      wrongAlg,
		"no subject":     noSubject,
		"wrong audience": wrongAudience,
		"garbage":        "not.a.jwt",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(context.Background(), token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestNewSupabaseVerifier_RequiresSecret(t *testing.T) {
	_, err := NewSupabaseVerifier("")
	assert.Error(t, err)
}
