package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"aidanwoods.dev/go-paseto"

	"github.com/mtorresweb/spotlight-server/internal/domain"
	"github.com/mtorresweb/spotlight-server/internal/id"
)

const (
	tokenIssuer   = "spotlight-server"
	tokenAudience = "spotlight-client"
)

// TokenService issues and verifies first-party PASETO v4.local tokens.
type TokenService struct {
	key paseto.V4SymmetricKey
	ttl time.Duration
}

// NewTokenService creates a token service from a 32-byte key.
func NewTokenService(key []byte, ttl time.Duration) (*TokenService, error) {
	if len(key) != keyLength {
		return nil, fmt.Errorf("PASETO v4 key must be exactly %d bytes, got %d", keyLength, len(key))
	}
	symmetric, err := paseto.V4SymmetricKeyFromBytes(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create PASETO symmetric key: %w", err)
	}
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &TokenService{key: symmetric, ttl: ttl}, nil
}

// Issue creates an encrypted token for p.
func (s *TokenService) Issue(p domain.Principal) (string, error) {
	if p.IsZero() {
		return "", fmt.Errorf("principal id is required")
	}

	now := time.Now()
	token := paseto.NewToken()
	token.SetIssuer(tokenIssuer)
	token.SetAudience(tokenAudience)
	token.SetSubject(p.ID)
	token.SetIssuedAt(now)
	token.SetNotBefore(now)
	token.SetExpiration(now.Add(s.ttl))

	jti, err := id.Generate("tok")
	if err != nil {
		return "", fmt.Errorf("generate token ID: %w", err)
	}
	token.SetJti(jti)

	// Set only fails on values that cannot be marshaled.
	_ = token.Set("email", p.Email)
	_ = token.Set("username", p.Username)
	_ = token.Set("name", p.FullName)
	_ = token.Set("picture", p.Image)

	return token.V4Encrypt(s.key, nil), nil
}

// Verify implements Verifier.
func (s *TokenService) Verify(_ context.Context, tokenString string) (domain.Principal, error) {
	parser := paseto.NewParser()
	parser.AddRule(paseto.ForAudience(tokenAudience))
	parser.AddRule(paseto.IssuedBy(tokenIssuer))
	parser.AddRule(paseto.NotExpired())
	parser.AddRule(paseto.ValidAt(time.Now()))

	token, err := parser.ParseV4Local(s.key, tokenString, nil)
	if err != nil {
		return domain.Principal{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	var claims Claims
	if err := json.Unmarshal(token.ClaimsJSON(), &claims); err != nil {
		return domain.Principal{}, fmt.Errorf("%w: parse claims: %w", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return domain.Principal{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	return claims.Principal(), nil
}

// TTL returns the configured token lifetime.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}
