package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/mtorresweb/spotlight-server/internal/auth"
	"github.com/mtorresweb/spotlight-server/internal/domain"
)

// ctxKey is the type for context keys to avoid collisions.
type ctxKey string

// principalKey is the context key for the verified principal.
const principalKey ctxKey = "principal"

// PrincipalFrom returns the principal stored by authMiddleware. A request
// without a valid token yields the zero Principal, which services reject as
// unauthenticated.
func PrincipalFrom(ctx context.Context) domain.Principal {
	p, _ := ctx.Value(principalKey).(domain.Principal)
	return p
}

// withPrincipal stores the principal in context.
func withPrincipal(ctx context.Context, p domain.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// bearerToken extracts the token from an Authorization header.
func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

// authMiddleware returns a middleware that validates Bearer tokens and stores
// the principal in context.
// If no token is present or invalid, continues without a principal.
// Services reject the zero principal where authentication is required.
func authMiddleware(verifier auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			principal, err := verifier.Verify(r.Context(), token)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), principal)))
		})
	}
}
