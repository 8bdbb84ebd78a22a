package badgerstore

import (
	"context"
	"errors"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/mtorresweb/spotlight-server/internal/domain"
	"github.com/mtorresweb/spotlight-server/internal/store"
)

// tx implements store.Tx over one badger read-write transaction.
type tx struct {
	s   *Store
	txn *badger.Txn
}

func (t *tx) GetUser(ctx context.Context, id string) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return t.s.users.Get(t.txn, id)
}

func (t *tx) GetUserByPrincipal(ctx context.Context, principal string) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return t.s.users.GetByUnique(t.txn, idxPrincipal, principal)
}

func (t *tx) UsernameTaken(ctx context.Context, username string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, err := t.s.users.LookupUnique(t.txn, idxUsername, strings.ToLower(username))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, store.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

func (t *tx) CreateUser(ctx context.Context, user *domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return t.s.users.Create(t.txn, user.ID, user)
}

func (t *tx) UpdateUser(ctx context.Context, user *domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	stored, err := t.s.users.Get(t.txn, user.ID)
	if err != nil {
		return err
	}
	next := *user
	next.CopyCounters(stored)
	return t.s.users.Put(t.txn, user.ID, &next)
}

func (t *tx) GetPost(ctx context.Context, id string) (*domain.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return t.s.posts.Get(t.txn, id)
}

func (t *tx) CreatePost(ctx context.Context, post *domain.Post) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return t.s.posts.Create(t.txn, post.ID, post)
}

func (t *tx) DeletePost(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return t.s.posts.Delete(t.txn, id)
}

func (t *tx) GetRelation(ctx context.Context, kind domain.RelationKind, userID, targetID string) (*domain.Relation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e, err := t.s.relationEntity(kind)
	if err != nil {
		return nil, err
	}
	return e.Get(t.txn, relationID(userID, targetID))
}

func (t *tx) CreateRelation(ctx context.Context, rel *domain.Relation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e, err := t.s.relationEntity(rel.Kind)
	if err != nil {
		return err
	}
	return e.Create(t.txn, relationID(rel.UserID, rel.TargetID), rel)
}

func (t *tx) DeleteRelation(ctx context.Context, kind domain.RelationKind, userID, targetID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e, err := t.s.relationEntity(kind)
	if err != nil {
		return err
	}
	return e.Delete(t.txn, relationID(userID, targetID))
}

func (t *tx) DeleteRelationsForTarget(ctx context.Context, kind domain.RelationKind, targetID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	e, err := t.s.relationEntity(kind)
	if err != nil {
		return 0, err
	}
	ids, err := e.GroupIDs(t.txn, idxTarget, targetID)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		if err := e.Delete(t.txn, id); err != nil {
			return 0, err
		}
	}
	return int64(len(ids)), nil
}

func (t *tx) AdjustPostCounter(ctx context.Context, postID string, counter domain.PostCounter, delta int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	post, err := t.s.posts.Get(t.txn, postID)
	if err != nil {
		return 0, err
	}
	n, err := post.AddToCounter(counter, delta)
	if err != nil {
		return 0, err
	}
	return n, t.s.posts.Put(t.txn, postID, post)
}

func (t *tx) AdjustUserCounter(ctx context.Context, userID string, counter domain.UserCounter, delta int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	user, err := t.s.users.Get(t.txn, userID)
	if err != nil {
		return 0, err
	}
	n, err := user.AddToCounter(counter, delta)
	if err != nil {
		return 0, err
	}
	return n, t.s.users.Put(t.txn, userID, user)
}

func (t *tx) CreateComment(ctx context.Context, comment *domain.Comment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return t.s.comments.Create(t.txn, comment.ID, comment)
}

func (t *tx) DeleteCommentsForPost(ctx context.Context, postID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	ids, err := t.s.comments.GroupIDs(t.txn, idxPost, postID)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		if err := t.s.comments.Delete(t.txn, id); err != nil {
			return 0, err
		}
	}
	return int64(len(ids)), nil
}

func (t *tx) CountPostsByUser(ctx context.Context, userID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return t.s.posts.CountGroup(t.txn, idxUser, userID), nil
}

func (t *tx) CountRelationsByUser(ctx context.Context, kind domain.RelationKind, userID string) (int64, error) {
	return t.countRelations(ctx, kind, idxUser, userID)
}

func (t *tx) CountRelationsForTarget(ctx context.Context, kind domain.RelationKind, targetID string) (int64, error) {
	return t.countRelations(ctx, kind, idxTarget, targetID)
}

func (t *tx) countRelations(ctx context.Context, kind domain.RelationKind, index, group string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	e, err := t.s.relationEntity(kind)
	if err != nil {
		return 0, err
	}
	return e.CountGroup(t.txn, index, group), nil
}

func (t *tx) CountComments(ctx context.Context, postID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return t.s.comments.CountGroup(t.txn, idxPost, postID), nil
}

var _ store.Tx = (*tx)(nil)
