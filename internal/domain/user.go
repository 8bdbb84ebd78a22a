package domain

import (
	"fmt"
)

// UserCounter names a denormalized count on User.
type UserCounter string

const (
	UserPosts     UserCounter = "posts"
	UserFollowers UserCounter = "followers"
	UserFollowing UserCounter = "following"
)

// Valid reports whether c is a known user counter.
func (c UserCounter) Valid() bool {
	switch c {
	case UserPosts, UserFollowers, UserFollowing:
		return true
	default:
		return false
	}
}

// User is an account mapped one-to-one to an external principal.
type User struct {
	Timestamps
	ID        string `json:"id"`
	Principal string `json:"principal"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	FullName  string `json:"fullname"`
	Bio       string `json:"bio,omitempty"`
	Image     string `json:"image,omitempty"`
	Posts     int64  `json:"posts"`
	Followers int64  `json:"followers"`
	Following int64  `json:"following"`
}

// Counter returns the current value of c.
func (u *User) Counter(c UserCounter) int64 {
	switch c {
	case UserPosts:
		return u.Posts
	case UserFollowers:
		return u.Followers
	case UserFollowing:
		return u.Following
	default:
		return 0
	}
}

// AddToCounter applies delta to c and returns the new value.
func (u *User) AddToCounter(c UserCounter, delta int64) (int64, error) {
	var field *int64
	switch c {
	case UserPosts:
		field = &u.Posts
	case UserFollowers:
		field = &u.Followers
	case UserFollowing:
		field = &u.Following
	default:
		return 0, fmt.Errorf("unknown user counter %q", c)
	}
	*field += delta
	return *field, nil
}

// CopyCounters overwrites u's counters with those of src.
// Profile writes use it so they never clobber counts maintained elsewhere.
func (u *User) CopyCounters(src *User) {
	u.Posts = src.Posts
	u.Followers = src.Followers
	u.Following = src.Following
}

// Author is the public identity embedded in feed entries.
type Author struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	FullName string `json:"fullname,omitempty"`
	Image    string `json:"image,omitempty"`
}

// AsAuthor projects u to its public identity.
func (u *User) AsAuthor() Author {
	return Author{ID: u.ID, Username: u.Username, FullName: u.FullName, Image: u.Image}
}
