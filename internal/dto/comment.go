package dto

import (
	"time"

	"github.com/mtorresweb/spotlight-server/internal/domain"
)

// Comment is a comment joined with its author.
type Comment struct {
	ID        string        `json:"id"`
	PostID    string        `json:"post_id"`
	Text      string        `json:"text"`
	CreatedAt time.Time     `json:"created_at"`
	Author    domain.Author `json:"author"`
}

// NewComment merges a comment with its author.
func NewComment(c *domain.Comment, author *domain.User) *Comment {
	return &Comment{
		ID:        c.ID,
		PostID:    c.PostID,
		Text:      c.Text,
		CreatedAt: c.CreatedAt,
		Author:    author.AsAuthor(),
	}
}
