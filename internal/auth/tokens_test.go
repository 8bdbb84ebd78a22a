package auth

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtorresweb/spotlight-server/internal/domain"
)

func newTokenService(t *testing.T, ttl time.Duration) *TokenService {
	t.Helper()
	key, err := LoadOrGenerateKey(t.TempDir())
	require.NoError(t, err)
	s, err := NewTokenService(key, ttl)
	require.NoError(t, err)
	return s
}

func TestLoadOrGenerateKey(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "keys")

	first, err := LoadOrGenerateKey(dir)
	require.NoError(t, err)
	assert.Len(t, first, keyLength)

	second, err := LoadOrGenerateKey(dir)
	require.NoError(t, err)
	assert.Equal(t, first, second, "key is persisted across starts")

	info, err := os.Stat(filepath.Join(dir, keyFile))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoadOrGenerateKey_RejectsCorruptKey(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, keyFile), []byte("zz"), 0o600))

	_, err := LoadOrGenerateKey(dir)
	assert.Error(t, err)
}

func TestNewTokenService_KeyLength(t *testing.T) {
	_, err := NewTokenService([]byte("short"), time.Hour)
	assert.Error(t, err)
}

func TestTokenService_IssueVerify(t *testing.T) {
	s := newTokenService(t, time.Hour)
	p := domain.Principal{ID: "seed|ana", Email: "ana@example.com", Username: "ana", FullName: "Ana", Image: "https://img/ana.png"}

	token, err := s.Issue(p)
	require.NoError(t, err)
	assert.Contains(t, token, "v4.local.")

	got, err := s.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestTokenService_Rejects(t *testing.T) {
	s := newTokenService(t, time.Hour)

	_, err := s.Issue(domain.Principal{})
	assert.Error(t, err)

	_, err = s.Verify(context.Background(), "v4.local.garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)

	// A token from another key does not decrypt.
	other := newTokenService(t, time.Hour)
	token, err := other.Issue(domain.Principal{ID: "p"})
	require.NoError(t, err)
	_, err = s.Verify(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenService_Expired(t *testing.T) {
	s := newTokenService(t, time.Nanosecond)
	token, err := s.Issue(domain.Principal{ID: "p"})
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	_, err = s.Verify(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func signJWT(t *testing.T, secret string, claims jwt.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestJWTVerifier(t *testing.T) {
	v, err := NewJWTVerifier(JWTConfig{Secret: "s3cret", Issuer: "https://idp.example.com", Audience: "spotlight"})
	require.NoError(t, err)

	valid := providerClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "idp|bruno",
			Issuer:    "https://idp.example.com",
			Audience:  jwt.ClaimStrings{"spotlight"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Email:   "bruno@example.com",
		Name:    "Bruno",
		Picture: "https://img/bruno.png",
	}

	got, err := v.Verify(context.Background(), signJWT(t, "s3cret", valid))
	require.NoError(t, err)
	assert.Equal(t, domain.Principal{ID: "idp|bruno", Email: "bruno@example.com", FullName: "Bruno", Image: "https://img/bruno.png"}, got)

	tests := []struct {
		name   string
		secret string
		mutate func(c *providerClaims)
	}{
		{"wrong secret", "other", func(*providerClaims) {}},
		{"wrong issuer", "s3cret", func(c *providerClaims) { c.Issuer = "https://evil" }},
		{"wrong audience", "s3cret", func(c *providerClaims) { c.Audience = jwt.ClaimStrings{"other"} }},
		{"expired", "s3cret", func(c *providerClaims) { c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute)) }},
		{"no expiry", "s3cret", func(c *providerClaims) { c.ExpiresAt = nil }},
		{"no subject", "s3cret", func(c *providerClaims) { c.Subject = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := valid
			tt.mutate(&claims)
			_, err := v.Verify(context.Background(), signJWT(t, tt.secret, claims))
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestJWTVerifier_RejectsOtherAlgorithms(t *testing.T) {
	v, err := NewJWTVerifier(JWTConfig{Secret: "s3cret"})
	require.NoError(t, err)

	claims := jwt.RegisteredClaims{Subject: "x", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = NewJWTVerifier(JWTConfig{})
	assert.Error(t, err)
}

func TestVerifiersImplementInterface(t *testing.T) {
	var _ Verifier = (*TokenService)(nil)
	var _ Verifier = (*JWTVerifier)(nil)
}
