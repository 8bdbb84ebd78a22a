// Package store defines the persistence contract for the spotlight server.
//
// Two backends implement it: badgerstore (embedded key-value, the default)
// and sqlite. Every mutation runs inside Store.Update, which executes the
// callback as one serializable, all-or-nothing transaction; backends retry
// the callback on write conflicts, so callbacks must be free of side effects
// outside the Tx.
package store

import (
	"context"
	"iter"

	"github.com/mtorresweb/spotlight-server/internal/domain"
)

// Store is the full persistence interface.
type Store interface {
	Reader

	// Update runs fn in a read-write transaction. Returning an error from fn
	// discards every write made through the Tx.
	Update(ctx context.Context, fn func(tx Tx) error) error

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Backend names the implementation, e.g. "badger".
	Backend() string

	Close() error
}

// Reader holds snapshot reads outside of a write transaction. List methods
// return lazy sequences; each range re-reads the store.
type Reader interface {
	// Users
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetUserByPrincipal(ctx context.Context, principal string) (*domain.User, error)
	ListUsers(ctx context.Context) iter.Seq2[*domain.User, error]

	// Posts, newest first
	GetPost(ctx context.Context, id string) (*domain.Post, error)
	ListPosts(ctx context.Context) iter.Seq2[*domain.Post, error]
	ListPostsByUser(ctx context.Context, userID string) iter.Seq2[*domain.Post, error]
	CountPostsByUser(ctx context.Context, userID string) (int64, error)

	// Relations
	RelationExists(ctx context.Context, kind domain.RelationKind, userID, targetID string) (bool, error)
	// ListRelationsByUser yields userID's relations of kind, newest first.
	ListRelationsByUser(ctx context.Context, kind domain.RelationKind, userID string) iter.Seq2[*domain.Relation, error]
	CountRelationsByUser(ctx context.Context, kind domain.RelationKind, userID string) (int64, error)
	CountRelationsForTarget(ctx context.Context, kind domain.RelationKind, targetID string) (int64, error)

	// Comments, oldest first
	ListComments(ctx context.Context, postID string) iter.Seq2[*domain.Comment, error]
	CountComments(ctx context.Context, postID string) (int64, error)
}

// Tx is the operation set available inside Store.Update. Reads through a Tx
// observe the transaction's own writes and take part in conflict detection.
type Tx interface {
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetUserByPrincipal(ctx context.Context, principal string) (*domain.User, error)
	UsernameTaken(ctx context.Context, username string) (bool, error)
	// CreateUser fails with ErrAlreadyExists on a duplicate id, principal or username.
	CreateUser(ctx context.Context, user *domain.User) error
	// UpdateUser writes profile fields. Counters are preserved from the stored row.
	UpdateUser(ctx context.Context, user *domain.User) error

	GetPost(ctx context.Context, id string) (*domain.Post, error)
	CreatePost(ctx context.Context, post *domain.Post) error
	DeletePost(ctx context.Context, id string) error

	GetRelation(ctx context.Context, kind domain.RelationKind, userID, targetID string) (*domain.Relation, error)
	// CreateRelation fails with ErrAlreadyExists if the (kind, user, target) row exists.
	CreateRelation(ctx context.Context, rel *domain.Relation) error
	DeleteRelation(ctx context.Context, kind domain.RelationKind, userID, targetID string) error
	DeleteRelationsForTarget(ctx context.Context, kind domain.RelationKind, targetID string) (int64, error)

	// AdjustPostCounter adds delta to the counter and returns the new value.
	AdjustPostCounter(ctx context.Context, postID string, counter domain.PostCounter, delta int64) (int64, error)
	AdjustUserCounter(ctx context.Context, userID string, counter domain.UserCounter, delta int64) (int64, error)

	CreateComment(ctx context.Context, comment *domain.Comment) error
	DeleteCommentsForPost(ctx context.Context, postID string) (int64, error)

	// Counts of the rows behind each denormalized counter.
	CountPostsByUser(ctx context.Context, userID string) (int64, error)
	CountRelationsByUser(ctx context.Context, kind domain.RelationKind, userID string) (int64, error)
	CountRelationsForTarget(ctx context.Context, kind domain.RelationKind, targetID string) (int64, error)
	CountComments(ctx context.Context, postID string) (int64, error)
}

// Collect drains seq into a slice, stopping at the first error.
func Collect[T any](seq iter.Seq2[T, error]) ([]T, error) {
	var out []T
	for v, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
