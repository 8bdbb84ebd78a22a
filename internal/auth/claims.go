package auth

import (
	"context"
	"errors"
	"time"

	"github.com/mtorresweb/spotlight-server/internal/domain"
)

// ErrInvalidToken is returned for tokens that fail parsing or validation.
var ErrInvalidToken = errors.New("invalid token")

// Verifier turns a bearer token into the caller's principal.
type Verifier interface {
	Verify(ctx context.Context, token string) (domain.Principal, error)
}

// Claims is the profile carried by both token formats. The subject is the
// principal id.
type Claims struct {
	Subject    string    `json:"sub"`
	Email      string    `json:"email,omitempty"`
	Username   string    `json:"username,omitempty"`
	Name       string    `json:"name,omitempty"`
	Picture    string    `json:"picture,omitempty"`
	Expiration time.Time `json:"exp"`
}

// Principal projects the claims.
func (c Claims) Principal() domain.Principal {
	return domain.Principal{
		ID:       c.Subject,
		Email:    c.Email,
		Username: c.Username,
		FullName: c.Name,
		Image:    c.Picture,
	}
}
