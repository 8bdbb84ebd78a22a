// Package sse implements Server-Sent Events for live feed updates.
package sse

import (
	"time"

	"github.com/google/uuid"

	"github.com/mtorresweb/spotlight-server/internal/domain"
	"github.com/mtorresweb/spotlight-server/internal/dto"
)

// Events are emitted only after the transaction that caused them commits.
// They are UI hints, not replication: a client that misses one refetches.

// EventType represents the type of SSE Event.
type EventType string

const (
	// EventPostCreated represents a new post.
	EventPostCreated EventType = "post.created"
	// EventPostDeleted represents a deleted post.
	EventPostDeleted EventType = "post.deleted"
	// EventPostLiked represents a like toggle and the new like count.
	EventPostLiked EventType = "post.liked"
	// EventPostBookmarked represents a bookmark toggle.
	// Only sent to the user who toggled it.
	EventPostBookmarked EventType = "post.bookmarked"
	// EventCommentAdded represents a new comment.
	EventCommentAdded EventType = "comment.added"
	// EventUserUpdated represents a profile change.
	EventUserUpdated EventType = "user.updated"

	// EventHeartbeat represents a connection keepalive event.
	EventHeartbeat EventType = "heartbeat"
)

// Event represents an SSE event to be sent to clients.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Type      EventType `json:"type"`

	// UserID restricts delivery to one user. Empty means broadcast.
	UserID string `json:"-"`
}

func newEvent(t EventType, data any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		Data:      data,
		Timestamp: time.Now(),
	}
}

// PostEventData is the data payload for post.created.
type PostEventData struct {
	Post *domain.Post `json:"post"`
}

// PostDeletedEventData is the data payload for post.deleted.
type PostDeletedEventData struct {
	PostID string `json:"post_id"`
	UserID string `json:"user_id"`
}

// PostLikedEventData is the data payload for post.liked.
type PostLikedEventData struct {
	PostID string `json:"post_id"`
	UserID string `json:"user_id"`
	Liked  bool   `json:"liked"`
	Likes  int64  `json:"likes"`
}

// PostBookmarkedEventData is the data payload for post.bookmarked.
type PostBookmarkedEventData struct {
	PostID     string `json:"post_id"`
	Bookmarked bool   `json:"bookmarked"`
}

// CommentAddedEventData is the data payload for comment.added.
type CommentAddedEventData struct {
	Comment  *domain.Comment `json:"comment"`
	Comments int64           `json:"comments"`
}

// UserEventData is the data payload for user events.
type UserEventData struct {
	User *dto.User `json:"user"`
}

// HeartbeatEventData is the data payload for heartbeat events.
type HeartbeatEventData struct {
	ServerTime time.Time `json:"server_time"`
}

// NewPostCreatedEvent creates a post.created event.
func NewPostCreatedEvent(post *domain.Post) Event {
	return newEvent(EventPostCreated, PostEventData{Post: post})
}

// NewPostDeletedEvent creates a post.deleted event.
func NewPostDeletedEvent(postID, userID string) Event {
	return newEvent(EventPostDeleted, PostDeletedEventData{PostID: postID, UserID: userID})
}

// NewPostLikedEvent creates a post.liked event.
func NewPostLikedEvent(postID, userID string, liked bool, likes int64) Event {
	return newEvent(EventPostLiked, PostLikedEventData{
		PostID: postID,
		UserID: userID,
		Liked:  liked,
		Likes:  likes,
	})
}

// NewPostBookmarkedEvent creates a post.bookmarked event addressed to userID.
func NewPostBookmarkedEvent(postID, userID string, bookmarked bool) Event {
	e := newEvent(EventPostBookmarked, PostBookmarkedEventData{PostID: postID, Bookmarked: bookmarked})
	e.UserID = userID
	return e
}

// NewCommentAddedEvent creates a comment.added event.
func NewCommentAddedEvent(comment *domain.Comment, comments int64) Event {
	return newEvent(EventCommentAdded, CommentAddedEventData{Comment: comment, Comments: comments})
}

// NewUserUpdatedEvent creates a user.updated event.
func NewUserUpdatedEvent(user *domain.User) Event {
	return newEvent(EventUserUpdated, UserEventData{User: dto.NewUser(user)})
}

// NewHeartbeatEvent creates a heartbeat event.
func NewHeartbeatEvent() Event {
	return newEvent(EventHeartbeat, HeartbeatEventData{ServerTime: time.Now()})
}
