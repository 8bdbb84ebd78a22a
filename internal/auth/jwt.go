package auth

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mtorresweb/spotlight-server/internal/domain"
)

// JWTConfig configures verification of tokens from an external identity
// provider signed with a shared HS256 secret.
type JWTConfig struct {
	Secret   string
	Issuer   string
	Audience string
}

// JWTVerifier verifies identity provider tokens.
type JWTVerifier struct {
	secret []byte
	opts   []jwt.ParserOption
}

type providerClaims struct {
	jwt.RegisteredClaims
	Email    string `json:"email"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Picture  string `json:"picture"`
}

// NewJWTVerifier creates a verifier. Issuer and audience are checked only when set.
func NewJWTVerifier(cfg JWTConfig) (*JWTVerifier, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	return &JWTVerifier{secret: []byte(cfg.Secret), opts: opts}, nil
}

// Verify implements Verifier.
func (v *JWTVerifier) Verify(_ context.Context, tokenString string) (domain.Principal, error) {
	var claims providerClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, v.opts...)
	if err != nil {
		return domain.Principal{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return domain.Principal{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	return Claims{
		Subject:  claims.Subject,
		Email:    claims.Email,
		Username: claims.Username,
		Name:     claims.Name,
		Picture:  claims.Picture,
	}.Principal(), nil
}
