package badgerstore

import (
	"context"
	"iter"

	"github.com/dgraph-io/badger/v4"

	"github.com/mtorresweb/spotlight-server/internal/domain"
	"github.com/mtorresweb/spotlight-server/internal/store"
)

// GetUser implements store.Reader.
func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	var user *domain.User
	err := s.view(ctx, func(txn *badger.Txn) error {
		var err error
		user, err = s.users.Get(txn, id)
		return err
	})
	return user, err
}

// GetUserByPrincipal implements store.Reader.
func (s *Store) GetUserByPrincipal(ctx context.Context, principal string) (*domain.User, error) {
	var user *domain.User
	err := s.view(ctx, func(txn *badger.Txn) error {
		var err error
		user, err = s.users.GetByUnique(txn, idxPrincipal, principal)
		return err
	})
	return user, err
}

// ListUsers implements store.Reader.
func (s *Store) ListUsers(ctx context.Context) iter.Seq2[*domain.User, error] {
	return s.users.List(ctx, s.db)
}

// GetPost implements store.Reader.
func (s *Store) GetPost(ctx context.Context, id string) (*domain.Post, error) {
	var post *domain.Post
	err := s.view(ctx, func(txn *badger.Txn) error {
		var err error
		post, err = s.posts.Get(txn, id)
		return err
	})
	return post, err
}

// ListPosts implements store.Reader.
func (s *Store) ListPosts(ctx context.Context) iter.Seq2[*domain.Post, error] {
	return s.posts.ListGroup(ctx, s.db, idxCreated, allGroup, true)
}

// ListPostsByUser implements store.Reader.
func (s *Store) ListPostsByUser(ctx context.Context, userID string) iter.Seq2[*domain.Post, error] {
	return s.posts.ListGroup(ctx, s.db, idxUser, userID, true)
}

// CountPostsByUser implements store.Reader.
func (s *Store) CountPostsByUser(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := s.view(ctx, func(txn *badger.Txn) error {
		n = s.posts.CountGroup(txn, idxUser, userID)
		return nil
	})
	return n, err
}

// RelationExists implements store.Reader.
func (s *Store) RelationExists(ctx context.Context, kind domain.RelationKind, userID, targetID string) (bool, error) {
	e, err := s.relationEntity(kind)
	if err != nil {
		return false, err
	}
	var exists bool
	err = s.view(ctx, func(txn *badger.Txn) error {
		var err error
		exists, err = e.Exists(txn, relationID(userID, targetID))
		return err
	})
	return exists, err
}

// ListRelationsByUser implements store.Reader.
func (s *Store) ListRelationsByUser(ctx context.Context, kind domain.RelationKind, userID string) iter.Seq2[*domain.Relation, error] {
	e, err := s.relationEntity(kind)
	if err != nil {
		return errSeq[*domain.Relation](err)
	}
	return e.ListGroup(ctx, s.db, idxUser, userID, true)
}

// CountRelationsByUser implements store.Reader.
func (s *Store) CountRelationsByUser(ctx context.Context, kind domain.RelationKind, userID string) (int64, error) {
	return s.countGroup(ctx, kind, idxUser, userID)
}

// CountRelationsForTarget implements store.Reader.
func (s *Store) CountRelationsForTarget(ctx context.Context, kind domain.RelationKind, targetID string) (int64, error) {
	return s.countGroup(ctx, kind, idxTarget, targetID)
}

func (s *Store) countGroup(ctx context.Context, kind domain.RelationKind, index, group string) (int64, error) {
	e, err := s.relationEntity(kind)
	if err != nil {
		return 0, err
	}
	var n int64
	err = s.view(ctx, func(txn *badger.Txn) error {
		n = e.CountGroup(txn, index, group)
		return nil
	})
	return n, err
}

// ListComments implements store.Reader.
func (s *Store) ListComments(ctx context.Context, postID string) iter.Seq2[*domain.Comment, error] {
	return s.comments.ListGroup(ctx, s.db, idxPost, postID, false)
}

// CountComments implements store.Reader.
func (s *Store) CountComments(ctx context.Context, postID string) (int64, error) {
	var n int64
	err := s.view(ctx, func(txn *badger.Txn) error {
		n = s.comments.CountGroup(txn, idxPost, postID)
		return nil
	})
	return n, err
}

var _ store.Store = (*Store)(nil)
