package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mtorresweb/spotlight-server/internal/domain"
	domainerrors "github.com/mtorresweb/spotlight-server/internal/errors"
	"github.com/mtorresweb/spotlight-server/internal/store"
)

// PrincipalCache remembers which user a principal maps to.
type PrincipalCache interface {
	Get(ctx context.Context, principal string) (userID string, found bool, err error)
	Set(ctx context.Context, principal, userID string) error
	Delete(ctx context.Context, principal string) error
}

// IdentityResolver maps an external principal to its internal user. It never
// creates users; see UserService.SyncUser.
type IdentityResolver struct {
	store  store.Reader
	cache  PrincipalCache
	logger *slog.Logger
}

// NewIdentityResolver creates a resolver. cache may be nil.
func NewIdentityResolver(reader store.Reader, cache PrincipalCache, logger *slog.Logger) *IdentityResolver {
	return &IdentityResolver{store: reader, cache: cache, logger: logger}
}

// Resolve returns the user for p. It fails with UNAUTHENTICATED when p is
// empty and NOT_FOUND when no user has been provisioned for it.
func (r *IdentityResolver) Resolve(ctx context.Context, p domain.Principal) (*domain.User, error) {
	if p.IsZero() {
		return nil, domainerrors.Unauthenticated("authentication required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if user := r.fromCache(ctx, p.ID); user != nil {
		return user, nil
	}

	user, err := r.store.GetUserByPrincipal(ctx, p.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFound("user not provisioned; call sync first")
		}
		return nil, translate(err, "user")
	}

	r.remember(ctx, p.ID, user.ID)
	return user, nil
}

// Viewer resolves p and returns the explicit caller value operations pass
// down to the core.
func (r *IdentityResolver) Viewer(ctx context.Context, p domain.Principal) (domain.Viewer, error) {
	user, err := r.Resolve(ctx, p)
	if err != nil {
		return domain.Viewer{}, err
	}
	return domain.Viewer{UserID: user.ID, Principal: p.ID}, nil
}

// fromCache returns the cached user, or nil on a miss. Stale entries are
// dropped and cache errors only logged.
func (r *IdentityResolver) fromCache(ctx context.Context, principal string) *domain.User {
	if r.cache == nil {
		return nil
	}

	userID, found, err := r.cache.Get(ctx, principal)
	if err != nil {
		r.logger.Warn("identity cache lookup failed", "principal", principal, "error", err)
		return nil
	}
	if !found {
		return nil
	}

	user, err := r.store.GetUser(ctx, userID)
	if err == nil && user.Principal == principal {
		return user
	}
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		r.logger.Warn("cached user lookup failed", "user_id", userID, "error", err)
		return nil
	}

	if err := r.cache.Delete(ctx, principal); err != nil {
		r.logger.Warn("failed to drop stale identity cache entry", "principal", principal, "error", err)
	}
	return nil
}

func (r *IdentityResolver) remember(ctx context.Context, principal, userID string) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Set(ctx, principal, userID); err != nil {
		r.logger.Warn("identity cache store failed", "principal", principal, "error", err)
	}
}
