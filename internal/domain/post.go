package domain

import (
	"fmt"
	"time"
)

// PostCounter names a denormalized count on Post.
type PostCounter string

const (
	PostLikes    PostCounter = "likes"
	PostComments PostCounter = "comments"
)

// Valid reports whether c is a known post counter.
func (c PostCounter) Valid() bool {
	return c == PostLikes || c == PostComments
}

// Post is an image shared by its owner. Image fields are opaque references.
type Post struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	StorageID string    `json:"storage_id"`
	ImageURL  string    `json:"image_url"`
	BlurHash  string    `json:"blur_hash,omitempty"`
	Caption   string    `json:"caption,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Likes     int64     `json:"likes"`
	Comments  int64     `json:"comments"`
}

// OwnedBy reports whether userID owns the post.
func (p *Post) OwnedBy(userID string) bool {
	return userID != "" && p.UserID == userID
}

// Counter returns the current value of c.
func (p *Post) Counter(c PostCounter) int64 {
	switch c {
	case PostLikes:
		return p.Likes
	case PostComments:
		return p.Comments
	default:
		return 0
	}
}

// AddToCounter applies delta to c and returns the new value.
func (p *Post) AddToCounter(c PostCounter, delta int64) (int64, error) {
	switch c {
	case PostLikes:
		p.Likes += delta
		return p.Likes, nil
	case PostComments:
		p.Comments += delta
		return p.Comments, nil
	default:
		return 0, fmt.Errorf("unknown post counter %q", c)
	}
}
