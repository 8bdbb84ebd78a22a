package api

import (
	"github.com/mtorresweb/spotlight-server/internal/service"
)

// Services groups all business logic services used by the API server.
// This reduces the parameter count for NewServer and improves testability.
type Services struct {
	Identity *service.IdentityResolver
	Users    *service.UserService
	Posts    *service.PostService
	Comments *service.CommentService
	Search   *service.SearchService
}
