// Package dto provides Data Transfer Objects for API responses and SSE events.
//
// DTOs carry denormalized fields (author identity, viewer flags) so a client
// can render an entry without further requests, while keeping the normalized
// IDs for relationships.
package dto

import (
	"time"

	"github.com/mtorresweb/spotlight-server/internal/domain"
)

// Post is a feed entry: a post joined with its author and the viewer's
// interaction state.
type Post struct {
	ID           string        `json:"id"`
	UserID       string        `json:"user_id"`
	ImageURL     string        `json:"image_url"`
	StorageID    string        `json:"storage_id"`
	BlurHash     string        `json:"blur_hash,omitempty"`
	Caption      string        `json:"caption,omitempty"`
	Likes        int64         `json:"likes"`
	Comments     int64         `json:"comments"`
	CreatedAt    time.Time     `json:"created_at"`
	IsLiked      bool          `json:"is_liked"`
	IsBookmarked bool          `json:"is_bookmarked"`
	Author       domain.Author `json:"author"`
}

// NewPost merges a post with its author and the viewer's flags.
func NewPost(p *domain.Post, author *domain.User, liked, bookmarked bool) *Post {
	return &Post{
		ID:           p.ID,
		UserID:       p.UserID,
		ImageURL:     p.ImageURL,
		StorageID:    p.StorageID,
		BlurHash:     p.BlurHash,
		Caption:      p.Caption,
		Likes:        p.Likes,
		Comments:     p.Comments,
		CreatedAt:    p.CreatedAt,
		IsLiked:      liked,
		IsBookmarked: bookmarked,
		Author:       author.AsAuthor(),
	}
}
