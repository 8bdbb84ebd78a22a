// Package search provides full-text search over users and post captions
// using Bleve.
package search

import (
	"github.com/mtorresweb/spotlight-server/internal/domain"
)

// DocType discriminates documents in the shared index.
type DocType string

// Document types for the search index.
const (
	DocTypeUser DocType = "user"
	DocTypePost DocType = "post"
)

// Document is the indexed form of a user or a post. Field names match the
// mapping.
type Document struct {
	ID        string
	Type      DocType
	Username  string
	FullName  string
	Caption   string
	UserID    string
	CreatedAt int64 // Unix seconds, for recency tie-breaks
}

// UserDocument builds the document for u.
func UserDocument(u *domain.User) *Document {
	return &Document{
		ID:        u.ID,
		Type:      DocTypeUser,
		Username:  u.Username,
		FullName:  u.FullName,
		CreatedAt: u.CreatedAt.Unix(),
	}
}

// PostDocument builds the document for p. Posts without a caption are still
// indexed so deletes stay symmetric.
func PostDocument(p *domain.Post) *Document {
	return &Document{
		ID:        p.ID,
		Type:      DocTypePost,
		Caption:   p.Caption,
		UserID:    p.UserID,
		CreatedAt: p.CreatedAt.Unix(),
	}
}

// ToMap converts the document to the field map Bleve indexes. Empty text
// fields are left out.
func (d *Document) ToMap() map[string]any {
	m := map[string]any{
		"id":         d.ID,
		"type":       string(d.Type),
		"created_at": float64(d.CreatedAt),
	}
	if d.Username != "" {
		m["username"] = d.Username
	}
	if d.FullName != "" {
		m["fullname"] = d.FullName
	}
	if d.Caption != "" {
		m["caption"] = d.Caption
	}
	if d.UserID != "" {
		m["user_id"] = d.UserID
	}
	return m
}
