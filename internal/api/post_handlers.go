package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/mtorresweb/spotlight-server/internal/dto"
	"github.com/mtorresweb/spotlight-server/internal/service"
)

func (s *Server) registerPostRoutes() {
	bearer := []map[string][]string{{"bearer": {}}}

	huma.Register(s.api, huma.Operation{
		OperationID:  "uploadImage",
		Method:       http.MethodPost,
		Path:         "/api/v1/uploads",
		Summary:      "Upload image",
		Description:  "Stores raw image bytes (jpeg, png, gif or webp) and returns the storage id to post with",
		Tags:         []string{"Posts"},
		Security:     bearer,
		MaxBodyBytes: s.maxUpload,
	}, s.handleUpload)

	huma.Register(s.api, huma.Operation{
		OperationID:   "createPost",
		Method:        http.MethodPost,
		Path:          "/api/v1/posts",
		Summary:       "Create post",
		Description:   "Publishes an uploaded image with an optional caption",
		Tags:          []string{"Posts"},
		Security:      bearer,
		DefaultStatus: http.StatusCreated,
	}, s.handleCreatePost)

	huma.Register(s.api, huma.Operation{
		OperationID: "listPosts",
		Method:      http.MethodGet,
		Path:        "/api/v1/posts",
		Summary:     "List posts by user",
		Description: "Returns a user's posts newest first; without user_id, the caller's own",
		Tags:        []string{"Posts"},
		Security:    bearer,
	}, s.handleListPosts)

	huma.Register(s.api, huma.Operation{
		OperationID: "getPost",
		Method:      http.MethodGet,
		Path:        "/api/v1/posts/{id}",
		Summary:     "Get post",
		Tags:        []string{"Posts"},
		Security:    bearer,
	}, s.handleGetPost)

	huma.Register(s.api, huma.Operation{
		OperationID: "deletePost",
		Method:      http.MethodDelete,
		Path:        "/api/v1/posts/{id}",
		Summary:     "Delete post",
		Description: "Deletes an owned post with its likes, bookmarks and comments",
		Tags:        []string{"Posts"},
		Security:    bearer,
	}, s.handleDeletePost)

	huma.Register(s.api, huma.Operation{
		OperationID: "toggleLike",
		Method:      http.MethodPost,
		Path:        "/api/v1/posts/{id}/like",
		Summary:     "Toggle like",
		Description: "Likes the post, or removes the like if present. Returns the new state",
		Tags:        []string{"Posts"},
		Security:    bearer,
	}, s.handleToggleLike)

	huma.Register(s.api, huma.Operation{
		OperationID: "toggleBookmark",
		Method:      http.MethodPost,
		Path:        "/api/v1/posts/{id}/bookmark",
		Summary:     "Toggle bookmark",
		Description: "Bookmarks the post, or removes the bookmark if present. Returns the new state",
		Tags:        []string{"Posts"},
		Security:    bearer,
	}, s.handleToggleBookmark)

	huma.Register(s.api, huma.Operation{
		OperationID: "getFeed",
		Method:      http.MethodGet,
		Path:        "/api/v1/feed",
		Summary:     "Get feed",
		Description: "Returns every post newest first with author and viewer flags",
		Tags:        []string{"Feed"},
		Security:    bearer,
	}, s.handleGetFeed)

	huma.Register(s.api, huma.Operation{
		OperationID: "getBookmarks",
		Method:      http.MethodGet,
		Path:        "/api/v1/bookmarks",
		Summary:     "Get bookmarks",
		Description: "Returns the caller's bookmarked posts, most recently bookmarked first",
		Tags:        []string{"Feed"},
		Security:    bearer,
	}, s.handleGetBookmarks)
}

// === DTOs ===

// UploadInput carries raw image bytes.
type UploadInput struct {
	RawBody []byte `contentType:"application/octet-stream"`
}

// UploadOutput wraps the stored image for Huma.
type UploadOutput struct {
	Body *service.UploadResult
}

// CreatePostRequest is the request body for creating a post.
type CreatePostRequest struct {
	StorageID string `json:"storage_id" doc:"Storage id returned by the upload endpoint"`
	Caption   string `json:"caption,omitempty" doc:"Optional caption; HTML is converted to Markdown"`
	BlurHash  string `json:"blur_hash,omitempty" doc:"Optional placeholder hash; computed from the stored image when omitted"`
}

// CreatePostInput wraps the create post request for Huma.
type CreatePostInput struct {
	Body CreatePostRequest
}

// PostIDInput identifies a post by path.
type PostIDInput struct {
	ID string `path:"id" doc:"Post ID"`
}

// ListPostsInput filters posts by owner.
type ListPostsInput struct {
	UserID string `query:"user_id" doc:"Owner; defaults to the caller"`
}

// PostOutput wraps a single post for Huma.
type PostOutput struct {
	Body *dto.Post
}

// PostListOutput wraps a list of posts for Huma.
type PostListOutput struct {
	Body []*dto.Post
}

// DeletePostResponse confirms a deletion.
type DeletePostResponse struct {
	ID      string `json:"id" doc:"Deleted post ID"`
	Deleted bool   `json:"deleted"`
}

// DeletePostOutput wraps the delete response for Huma.
type DeletePostOutput struct {
	Body DeletePostResponse
}

// LikeOutput wraps the like state for Huma.
type LikeOutput struct {
	Body *service.LikeResult
}

// BookmarkOutput wraps the bookmark state for Huma.
type BookmarkOutput struct {
	Body *service.BookmarkResult
}

// === Handlers ===

func (s *Server) handleUpload(ctx context.Context, input *UploadInput) (*UploadOutput, error) {
	result, err := s.services.Posts.Upload(ctx, PrincipalFrom(ctx), input.RawBody)
	if err != nil {
		return nil, err
	}
	return &UploadOutput{Body: result}, nil
}

func (s *Server) handleCreatePost(ctx context.Context, input *CreatePostInput) (*PostOutput, error) {
	post, err := s.services.Posts.CreatePost(ctx, PrincipalFrom(ctx), service.CreatePostRequest{
		StorageID: input.Body.StorageID,
		Caption:   input.Body.Caption,
		BlurHash:  input.Body.BlurHash,
	})
	if err != nil {
		return nil, err
	}
	return &PostOutput{Body: post}, nil
}

func (s *Server) handleListPosts(ctx context.Context, input *ListPostsInput) (*PostListOutput, error) {
	posts, err := s.services.Posts.GetPostsByUser(ctx, PrincipalFrom(ctx), input.UserID)
	if err != nil {
		return nil, err
	}
	return &PostListOutput{Body: orEmpty(posts)}, nil
}

func (s *Server) handleGetPost(ctx context.Context, input *PostIDInput) (*PostOutput, error) {
	post, err := s.services.Posts.GetPost(ctx, PrincipalFrom(ctx), input.ID)
	if err != nil {
		return nil, err
	}
	return &PostOutput{Body: post}, nil
}

func (s *Server) handleDeletePost(ctx context.Context, input *PostIDInput) (*DeletePostOutput, error) {
	if err := s.services.Posts.DeletePost(ctx, PrincipalFrom(ctx), input.ID); err != nil {
		return nil, err
	}
	return &DeletePostOutput{Body: DeletePostResponse{ID: input.ID, Deleted: true}}, nil
}

func (s *Server) handleToggleLike(ctx context.Context, input *PostIDInput) (*LikeOutput, error) {
	result, err := s.services.Posts.ToggleLike(ctx, PrincipalFrom(ctx), input.ID)
	if err != nil {
		return nil, err
	}
	return &LikeOutput{Body: result}, nil
}

func (s *Server) handleToggleBookmark(ctx context.Context, input *PostIDInput) (*BookmarkOutput, error) {
	result, err := s.services.Posts.ToggleBookmark(ctx, PrincipalFrom(ctx), input.ID)
	if err != nil {
		return nil, err
	}
	return &BookmarkOutput{Body: result}, nil
}

func (s *Server) handleGetFeed(ctx context.Context, _ *struct{}) (*PostListOutput, error) {
	posts, err := s.services.Posts.GetFeedPosts(ctx, PrincipalFrom(ctx))
	if err != nil {
		return nil, err
	}
	return &PostListOutput{Body: orEmpty(posts)}, nil
}

func (s *Server) handleGetBookmarks(ctx context.Context, _ *struct{}) (*PostListOutput, error) {
	posts, err := s.services.Posts.GetBookmarkedPosts(ctx, PrincipalFrom(ctx))
	if err != nil {
		return nil, err
	}
	return &PostListOutput{Body: orEmpty(posts)}, nil
}

// orEmpty keeps empty lists encoding as [] rather than null.
func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
