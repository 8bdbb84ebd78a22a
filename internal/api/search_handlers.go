package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/mtorresweb/spotlight-server/internal/dto"
)

func (s *Server) registerSearchRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "searchUsers",
		Method:      http.MethodGet,
		Path:        "/api/v1/search/users",
		Summary:     "Search users",
		Description: "Matches usernames and full names",
		Tags:        []string{"Search"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleSearchUsers)

	huma.Register(s.api, huma.Operation{
		OperationID: "searchPosts",
		Method:      http.MethodGet,
		Path:        "/api/v1/search/posts",
		Summary:     "Search posts",
		Description: "Matches captions and returns feed entries",
		Tags:        []string{"Search"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleSearchPosts)
}

// SearchInput contains search parameters.
type SearchInput struct {
	Query string `query:"q" doc:"Search text"`
	Limit int    `query:"limit" minimum:"0" maximum:"50" doc:"Max results (default 20)"`
}

// UserListOutput wraps a list of users for Huma.
type UserListOutput struct {
	Body []*dto.User
}

func (s *Server) handleSearchUsers(ctx context.Context, input *SearchInput) (*UserListOutput, error) {
	users, err := s.services.Search.SearchUsers(ctx, PrincipalFrom(ctx), input.Query, input.Limit)
	if err != nil {
		return nil, err
	}
	return &UserListOutput{Body: orEmpty(users)}, nil
}

func (s *Server) handleSearchPosts(ctx context.Context, input *SearchInput) (*PostListOutput, error) {
	posts, err := s.services.Search.SearchPosts(ctx, PrincipalFrom(ctx), input.Query, input.Limit)
	if err != nil {
		return nil, err
	}
	return &PostListOutput{Body: orEmpty(posts)}, nil
}
