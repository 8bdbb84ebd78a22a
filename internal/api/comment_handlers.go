package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/mtorresweb/spotlight-server/internal/dto"
)

func (s *Server) registerCommentRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "addComment",
		Method:        http.MethodPost,
		Path:          "/api/v1/posts/{id}/comments",
		Summary:       "Add comment",
		Description:   "Appends a comment to the post and returns it with its author",
		Tags:          []string{"Comments"},
		Security:      []map[string][]string{{"bearer": {}}},
		DefaultStatus: http.StatusCreated,
	}, s.handleAddComment)

	huma.Register(s.api, huma.Operation{
		OperationID: "listComments",
		Method:      http.MethodGet,
		Path:        "/api/v1/posts/{id}/comments",
		Summary:     "List comments",
		Description: "Returns the post's comments oldest first",
		Tags:        []string{"Comments"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListComments)
}

// AddCommentRequest is the request body for adding a comment.
type AddCommentRequest struct {
	Text string `json:"text" doc:"Comment text, 1 to 1000 characters"`
}

// AddCommentInput wraps the add comment request for Huma.
type AddCommentInput struct {
	ID   string `path:"id" doc:"Post ID"`
	Body AddCommentRequest
}

// CommentOutput wraps a single comment for Huma.
type CommentOutput struct {
	Body *dto.Comment
}

// CommentListOutput wraps a list of comments for Huma.
type CommentListOutput struct {
	Body []*dto.Comment
}

func (s *Server) handleAddComment(ctx context.Context, input *AddCommentInput) (*CommentOutput, error) {
	comment, err := s.services.Comments.AddComment(ctx, PrincipalFrom(ctx), input.ID, input.Body.Text)
	if err != nil {
		return nil, err
	}
	return &CommentOutput{Body: comment}, nil
}

func (s *Server) handleListComments(ctx context.Context, input *PostIDInput) (*CommentListOutput, error) {
	comments, err := s.services.Comments.ListComments(ctx, PrincipalFrom(ctx), input.ID)
	if err != nil {
		return nil, err
	}
	return &CommentListOutput{Body: orEmpty(comments)}, nil
}
