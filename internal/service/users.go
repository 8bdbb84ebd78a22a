package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/mtorresweb/spotlight-server/internal/domain"
	"github.com/mtorresweb/spotlight-server/internal/dto"
	domainerrors "github.com/mtorresweb/spotlight-server/internal/errors"
	"github.com/mtorresweb/spotlight-server/internal/id"
	"github.com/mtorresweb/spotlight-server/internal/normalize"
	"github.com/mtorresweb/spotlight-server/internal/sse"
	"github.com/mtorresweb/spotlight-server/internal/store"
)

// maxUsernameAttempts bounds the numeric suffixes tried for a new handle.
const maxUsernameAttempts = 100

// UpdateProfileRequest holds the editable profile fields. Nil fields are left
// unchanged.
type UpdateProfileRequest struct {
	FullName *string `json:"fullname,omitempty" validate:"omitnil,notblank,maxrunes=80"`
	Bio      *string `json:"bio,omitempty" validate:"omitnil,maxrunes=500"`
	Username *string `json:"username,omitempty" validate:"omitnil,username"`
}

// Profile is a user as seen by the caller.
type Profile struct {
	User        *dto.User `json:"user"`
	IsFollowing bool      `json:"is_following"`
	IsSelf      bool      `json:"is_self"`
}

// FollowResult is the state after a follow toggle.
type FollowResult struct {
	Following bool  `json:"following"`
	Followers int64 `json:"followers"`
}

// UserService provisions accounts and manages profiles and follows.
type UserService struct {
	store    store.Store
	identity *IdentityResolver
	follows  *RelationStore
	indexer  SearchIndexer
	emitter  EventEmitter
	logger   *slog.Logger
}

// NewUserService creates a UserService. indexer and emitter may be nil.
func NewUserService(s store.Store, identity *IdentityResolver, follows *RelationStore, indexer SearchIndexer, emitter EventEmitter, logger *slog.Logger) *UserService {
	if indexer == nil {
		indexer = NoopIndexer{}
	}
	if emitter == nil {
		emitter = NoopEmitter{}
	}
	return &UserService{
		store:    s,
		identity: identity,
		follows:  follows,
		indexer:  indexer,
		emitter:  emitter,
		logger:   logger,
	}
}

// SyncUser returns the caller's account, creating it from the principal's
// claims on first use. created reports whether this call created it.
func (s *UserService) SyncUser(ctx context.Context, principal domain.Principal) (*dto.Me, bool, error) {
	if principal.IsZero() {
		return nil, false, domainerrors.Unauthenticated("authentication required")
	}

	user, err := s.identity.Resolve(ctx, principal)
	if err == nil {
		return dto.NewMe(user), false, nil
	}
	if !domainerrors.Is(err, domainerrors.ErrNotFound) {
		return nil, false, err
	}

	base := baseUsername(principal)
	userID, err := id.Generate(id.PrefixUser)
	if err != nil {
		return nil, false, err
	}

	var created bool
	err = s.store.Update(ctx, func(tx store.Tx) error {
		created = false
		// Lost a race with a concurrent sync of the same principal.
		existing, err := tx.GetUserByPrincipal(ctx, principal.ID)
		if err == nil {
			user = existing
			return nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		username, err := freeUsername(ctx, tx, base)
		if err != nil {
			return err
		}

		u := &domain.User{
			ID:        userID,
			Principal: principal.ID,
			Email:     principal.Email,
			Username:  username,
			FullName:  strings.TrimSpace(principal.FullName),
			Image:     principal.Image,
		}
		if u.FullName == "" {
			u.FullName = username
		}
		u.InitTimestamps()
		if err := tx.CreateUser(ctx, u); err != nil {
			return err
		}
		user, created = u, true
		return nil
	})
	if errors.Is(err, store.ErrAlreadyExists) {
		// Another request created it between our check and commit.
		user, err = s.store.GetUserByPrincipal(ctx, principal.ID)
		created = false
	}
	if err != nil {
		return nil, false, translate(err, "user")
	}

	if created {
		if err := s.indexer.IndexUser(user); err != nil {
			s.logger.Warn("failed to index user", "user_id", user.ID, "error", err)
		}
		s.logger.Info("user provisioned", "user_id", user.ID, "username", user.Username)
	}
	return dto.NewMe(user), created, nil
}

// baseUsername picks the first usable handle from the principal's claims.
func baseUsername(p domain.Principal) string {
	local, _, _ := strings.Cut(p.Email, "@")
	for _, candidate := range []string{p.Username, local, p.FullName} {
		if name := normalize.Username(candidate); name != "" {
			return name
		}
	}
	return "user"
}

func freeUsername(ctx context.Context, tx store.Tx, base string) (string, error) {
	for n := 1; n <= maxUsernameAttempts; n++ {
		name := base
		if n > 1 {
			name = normalize.UsernameWithSuffix(base, n)
		}
		taken, err := tx.UsernameTaken(ctx, name)
		if err != nil {
			return "", err
		}
		if !taken {
			return name, nil
		}
	}
	return "", domainerrors.Conflictf("no free username derived from %q", base)
}

// GetMe returns the caller's account.
func (s *UserService) GetMe(ctx context.Context, principal domain.Principal) (*dto.Me, error) {
	user, err := s.identity.Resolve(ctx, principal)
	if err != nil {
		return nil, err
	}
	return dto.NewMe(user), nil
}

// GetProfile returns userID's public profile and the caller's relation to it.
func (s *UserService) GetProfile(ctx context.Context, principal domain.Principal, userID string) (*Profile, error) {
	viewer, err := s.identity.Viewer(ctx, principal)
	if err != nil {
		return nil, err
	}
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, translate(err, "user "+userID)
	}

	profile := &Profile{User: dto.NewUser(user), IsSelf: user.ID == viewer.UserID}
	if !profile.IsSelf {
		if profile.IsFollowing, err = s.follows.Exists(ctx, viewer, userID); err != nil {
			return nil, translate(err, "follow")
		}
	}
	return profile, nil
}

// UpdateProfile applies the non-nil fields of req to the caller's profile.
func (s *UserService) UpdateProfile(ctx context.Context, principal domain.Principal, req UpdateProfileRequest) (*dto.Me, error) {
	viewer, err := s.identity.Viewer(ctx, principal)
	if err != nil {
		return nil, err
	}
	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	var user *domain.User
	err = s.store.Update(ctx, func(tx store.Tx) error {
		u, err := tx.GetUser(ctx, viewer.UserID)
		if err != nil {
			return err
		}
		if req.FullName != nil {
			u.FullName = strings.TrimSpace(*req.FullName)
		}
		if req.Bio != nil {
			u.Bio = normalize.Text(*req.Bio)
		}
		if req.Username != nil && *req.Username != u.Username {
			taken, err := tx.UsernameTaken(ctx, *req.Username)
			if err != nil {
				return err
			}
			if taken {
				return domainerrors.Conflictf("username %q is taken", *req.Username)
			}
			u.Username = *req.Username
		}
		u.Touch()
		if err := tx.UpdateUser(ctx, u); err != nil {
			return err
		}
		user = u
		return nil
	})
	if err != nil {
		return nil, translate(err, "user "+viewer.UserID)
	}

	if err := s.indexer.IndexUser(user); err != nil {
		s.logger.Warn("failed to index user", "user_id", user.ID, "error", err)
	}
	s.emitter.Emit(sse.NewUserUpdatedEvent(user))
	return dto.NewMe(user), nil
}

// ToggleFollow flips the caller's follow of userID.
func (s *UserService) ToggleFollow(ctx context.Context, principal domain.Principal, userID string) (*FollowResult, error) {
	viewer, err := s.identity.Viewer(ctx, principal)
	if err != nil {
		return nil, err
	}

	var result FollowResult
	err = s.store.Update(ctx, func(tx store.Tx) error {
		following, err := s.follows.ToggleTx(ctx, tx, viewer, userID)
		if err != nil {
			return err
		}
		target, err := tx.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		result = FollowResult{Following: following, Followers: target.Followers}
		return nil
	})
	if err != nil {
		return nil, translate(err, "user "+userID)
	}

	s.follows.Record(viewer, userID, result.Following)
	return &result, nil
}

// IsFollowing reports whether the caller follows userID.
func (s *UserService) IsFollowing(ctx context.Context, principal domain.Principal, userID string) (bool, error) {
	viewer, err := s.identity.Viewer(ctx, principal)
	if err != nil {
		return false, err
	}
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return false, translate(err, "user "+userID)
	}
	following, err := s.follows.Exists(ctx, viewer, userID)
	if err != nil {
		return false, translate(err, "follow")
	}
	return following, nil
}
