package badgerstore

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtorresweb/spotlight-server/internal/domain"
	"github.com/mtorresweb/spotlight-server/internal/store"
	"github.com/mtorresweb/spotlight-server/internal/store/storetest"
)

func setupTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s, err := New("", nil, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return setupTestStore(t)
	})
}

func TestNew_OnDisk(t *testing.T) {
	dir := t.TempDir()

	s, err := New(dir, nil)
	require.NoError(t, err)

	ana := storetest.NewUser("ana")
	storetest.Seed(t, s, []*domain.User{ana}, nil)
	require.NoError(t, s.Close())

	reopened, err := New(dir, nil)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.GetUser(context.Background(), ana.ID)
	require.NoError(t, err)
	assert.Equal(t, ana.Username, got.Username)
	assert.Equal(t, "badger", reopened.Backend())
}

func TestPing_AfterClose(t *testing.T) {
	s, err := New("", nil)
	require.NoError(t, err)

	require.NoError(t, s.Ping(context.Background()))
	require.NoError(t, s.Close())
	assert.Error(t, s.Ping(context.Background()))
}

func TestUpdate_ExhaustedRetriesReturnConflict(t *testing.T) {
	var retries atomic.Int32
	s := setupTestStore(t, WithMaxRetries(3), WithRetryObserver(func() { retries.Add(1) }))

	ana := storetest.NewUser("ana")
	storetest.Seed(t, s, []*domain.User{ana}, nil)

	ctx := context.Background()
	// Every attempt reads and writes the user, then a competing transaction
	// commits a write to the same key before the outer commit.
	err := s.Update(ctx, func(tx store.Tx) error {
		if _, err := tx.AdjustUserCounter(ctx, ana.ID, domain.UserPosts, 1); err != nil {
			return err
		}
		return s.db.Update(func(txn *badger.Txn) error {
			u, err := s.users.Get(txn, ana.ID)
			if err != nil {
				return err
			}
			u.Bio += "y"
			return s.users.Put(txn, ana.ID, u)
		})
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrTxnConflict))
	assert.Equal(t, int32(2), retries.Load())
}

func TestUpdate_ContextCanceled(t *testing.T) {
	s := setupTestStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := s.Update(ctx, func(store.Tx) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestRelationID_TargetsMayContainSeparator(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	ana := storetest.NewUser("ana")
	storetest.Seed(t, s, []*domain.User{ana}, nil)

	rel := &domain.Relation{Kind: domain.RelationFollow, UserID: ana.ID, TargetID: "usr:with:colons", CreatedAt: domain.Now()}
	require.NoError(t, s.Update(ctx, func(tx store.Tx) error { return tx.CreateRelation(ctx, rel) }))

	rels, err := store.Collect(s.ListRelationsByUser(ctx, domain.RelationFollow, ana.ID))
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.Equal(t, "usr:with:colons", rels[0].TargetID)
}
