package dto

import (
	"time"

	"github.com/mtorresweb/spotlight-server/internal/domain"
)

// User is the public profile of an account. Principal and email stay private.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	FullName  string    `json:"fullname"`
	Bio       string    `json:"bio,omitempty"`
	Image     string    `json:"image,omitempty"`
	Posts     int64     `json:"posts"`
	Followers int64     `json:"followers"`
	Following int64     `json:"following"`
	CreatedAt time.Time `json:"created_at"`
}

// Me is the caller's own account, including private fields.
type Me struct {
	User
	Email string `json:"email,omitempty"`
}

// NewUser projects u to its public profile.
func NewUser(u *domain.User) *User {
	return &User{
		ID:        u.ID,
		Username:  u.Username,
		FullName:  u.FullName,
		Bio:       u.Bio,
		Image:     u.Image,
		Posts:     u.Posts,
		Followers: u.Followers,
		Following: u.Following,
		CreatedAt: u.CreatedAt,
	}
}

// NewMe projects u for its owner.
func NewMe(u *domain.User) *Me {
	return &Me{User: *NewUser(u), Email: u.Email}
}
