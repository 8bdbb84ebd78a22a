package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/mtorresweb/spotlight-server/internal/dto"
	"github.com/mtorresweb/spotlight-server/internal/service"
)

func (s *Server) registerUserRoutes() {
	bearer := []map[string][]string{{"bearer": {}}}

	huma.Register(s.api, huma.Operation{
		OperationID: "syncUser",
		Method:      http.MethodPost,
		Path:        "/api/v1/users/me",
		Summary:     "Sync current user",
		Description: "Provisions the caller's account on first sign-in; returns the existing account afterwards",
		Tags:        []string{"Users"},
		Security:    bearer,
	}, s.handleSyncUser)

	huma.Register(s.api, huma.Operation{
		OperationID: "getCurrentUser",
		Method:      http.MethodGet,
		Path:        "/api/v1/users/me",
		Summary:     "Get current user",
		Tags:        []string{"Users"},
		Security:    bearer,
	}, s.handleGetMe)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateCurrentUser",
		Method:      http.MethodPatch,
		Path:        "/api/v1/users/me",
		Summary:     "Update profile",
		Description: "Edits fullname, bio or username. Counters are never touched",
		Tags:        []string{"Users"},
		Security:    bearer,
	}, s.handleUpdateProfile)

	huma.Register(s.api, huma.Operation{
		OperationID: "getUser",
		Method:      http.MethodGet,
		Path:        "/api/v1/users/{id}",
		Summary:     "Get user profile",
		Tags:        []string{"Users"},
		Security:    bearer,
	}, s.handleGetProfile)

	huma.Register(s.api, huma.Operation{
		OperationID: "toggleFollow",
		Method:      http.MethodPost,
		Path:        "/api/v1/users/{id}/follow",
		Summary:     "Toggle follow",
		Description: "Follows the user, or unfollows if already following. Returns the new state",
		Tags:        []string{"Users"},
		Security:    bearer,
	}, s.handleToggleFollow)

	huma.Register(s.api, huma.Operation{
		OperationID: "isFollowing",
		Method:      http.MethodGet,
		Path:        "/api/v1/users/{id}/follow",
		Summary:     "Check follow",
		Tags:        []string{"Users"},
		Security:    bearer,
	}, s.handleIsFollowing)
}

// === DTOs ===

// SyncUserResponse is the caller's account and whether it was just created.
type SyncUserResponse struct {
	User    *dto.Me `json:"user"`
	Created bool    `json:"created" doc:"True on first sign-in"`
}

// SyncUserOutput wraps the sync response for Huma.
type SyncUserOutput struct {
	Body SyncUserResponse
}

// MeOutput wraps the caller's account for Huma.
type MeOutput struct {
	Body *dto.Me
}

// UpdateProfileRequest is the request body for editing the caller's profile.
// Omitted fields are left unchanged.
type UpdateProfileRequest struct {
	FullName *string `json:"fullname,omitempty" doc:"Display name, 1 to 80 characters"`
	Bio      *string `json:"bio,omitempty" doc:"Bio, up to 500 characters; HTML is converted to Markdown"`
	Username *string `json:"username,omitempty" doc:"New handle"`
}

// UpdateProfileInput wraps the update request for Huma.
type UpdateProfileInput struct {
	Body UpdateProfileRequest
}

// UserIDInput identifies a user by path.
type UserIDInput struct {
	ID string `path:"id" doc:"User ID"`
}

// ProfileOutput wraps a profile for Huma.
type ProfileOutput struct {
	Body *service.Profile
}

// FollowOutput wraps the follow state for Huma.
type FollowOutput struct {
	Body *service.FollowResult
}

// IsFollowingResponse reports whether the caller follows a user.
type IsFollowingResponse struct {
	Following bool `json:"following"`
}

// IsFollowingOutput wraps the follow check for Huma.
type IsFollowingOutput struct {
	Body IsFollowingResponse
}

// === Handlers ===

func (s *Server) handleSyncUser(ctx context.Context, _ *struct{}) (*SyncUserOutput, error) {
	me, created, err := s.services.Users.SyncUser(ctx, PrincipalFrom(ctx))
	if err != nil {
		return nil, err
	}
	return &SyncUserOutput{Body: SyncUserResponse{User: me, Created: created}}, nil
}

func (s *Server) handleGetMe(ctx context.Context, _ *struct{}) (*MeOutput, error) {
	me, err := s.services.Users.GetMe(ctx, PrincipalFrom(ctx))
	if err != nil {
		return nil, err
	}
	return &MeOutput{Body: me}, nil
}

func (s *Server) handleUpdateProfile(ctx context.Context, input *UpdateProfileInput) (*MeOutput, error) {
	me, err := s.services.Users.UpdateProfile(ctx, PrincipalFrom(ctx), service.UpdateProfileRequest{
		FullName: input.Body.FullName,
		Bio:      input.Body.Bio,
		Username: input.Body.Username,
	})
	if err != nil {
		return nil, err
	}
	return &MeOutput{Body: me}, nil
}

func (s *Server) handleGetProfile(ctx context.Context, input *UserIDInput) (*ProfileOutput, error) {
	profile, err := s.services.Users.GetProfile(ctx, PrincipalFrom(ctx), input.ID)
	if err != nil {
		return nil, err
	}
	return &ProfileOutput{Body: profile}, nil
}

func (s *Server) handleToggleFollow(ctx context.Context, input *UserIDInput) (*FollowOutput, error) {
	result, err := s.services.Users.ToggleFollow(ctx, PrincipalFrom(ctx), input.ID)
	if err != nil {
		return nil, err
	}
	return &FollowOutput{Body: result}, nil
}

func (s *Server) handleIsFollowing(ctx context.Context, input *UserIDInput) (*IsFollowingOutput, error) {
	following, err := s.services.Users.IsFollowing(ctx, PrincipalFrom(ctx), input.ID)
	if err != nil {
		return nil, err
	}
	return &IsFollowingOutput{Body: IsFollowingResponse{Following: following}}, nil
}
