// Package storetest holds the conformance suite every store.Store backend runs.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtorresweb/spotlight-server/internal/domain"
	"github.com/mtorresweb/spotlight-server/internal/id"
	"github.com/mtorresweb/spotlight-server/internal/store"
)

// Factory opens an empty store that lives for the duration of t.
type Factory func(t *testing.T) store.Store

// Run executes the suite against the backend produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("Users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("UpdateUserPreservesCounters", func(t *testing.T) { testUpdateUserPreservesCounters(t, newStore(t)) })
	t.Run("PostsNewestFirst", func(t *testing.T) { testPostsNewestFirst(t, newStore(t)) })
	t.Run("Relations", func(t *testing.T) { testRelations(t, newStore(t)) })
	t.Run("Counters", func(t *testing.T) { testCounters(t, newStore(t)) })
	t.Run("TxCountsSeeOwnWrites", func(t *testing.T) { testTxCounts(t, newStore(t)) })
	t.Run("CommentsOldestFirst", func(t *testing.T) { testComments(t, newStore(t)) })
	t.Run("CascadeHelpers", func(t *testing.T) { testCascadeHelpers(t, newStore(t)) })
	t.Run("UpdateRollsBackOnError", func(t *testing.T) { testRollback(t, newStore(t)) })
	t.Run("ConcurrentSameViewerToggles", func(t *testing.T) { testConcurrentSameViewer(t, newStore(t)) })
	t.Run("ConcurrentDifferentViewers", func(t *testing.T) { testConcurrentDifferentViewers(t, newStore(t)) })
	t.Run("SequencesAreRestartable", func(t *testing.T) { testRestartable(t, newStore(t)) })
}

// NewUser returns an unsaved user with unique identifiers.
func NewUser(username string) *domain.User {
	u := &domain.User{
		ID:        id.MustGenerate(id.PrefixUser),
		Principal: "principal_" + username,
		Email:     username + "@example.com",
		Username:  username,
		FullName:  username,
	}
	u.InitTimestamps()
	return u
}

// NewPost returns an unsaved post owned by userID created at.
func NewPost(userID string, at time.Time) *domain.Post {
	return &domain.Post{
		ID:        id.MustGenerate(id.PrefixPost),
		UserID:    userID,
		StorageID: "obj-" + userID,
		ImageURL:  "https://cdn.example.com/" + userID,
		CreatedAt: at.UTC().Truncate(time.Microsecond),
	}
}

// Seed writes the given entities in one transaction.
func Seed(t *testing.T, s store.Store, users []*domain.User, posts []*domain.Post) {
	t.Helper()
	err := s.Update(context.Background(), func(tx store.Tx) error {
		for _, u := range users {
			if err := tx.CreateUser(context.Background(), u); err != nil {
				return err
			}
		}
		for _, p := range posts {
			if err := tx.CreatePost(context.Background(), p); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func testUsers(t *testing.T, s store.Store) {
	ctx := context.Background()
	ana := NewUser("ana")
	Seed(t, s, []*domain.User{ana}, nil)

	got, err := s.GetUser(ctx, ana.ID)
	require.NoError(t, err)
	assert.Equal(t, "ana", got.Username)
	assert.True(t, ana.CreatedAt.Equal(got.CreatedAt))

	byPrincipal, err := s.GetUserByPrincipal(ctx, ana.Principal)
	require.NoError(t, err)
	assert.Equal(t, ana.ID, byPrincipal.ID)

	_, err = s.GetUser(ctx, "usr-missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.GetUserByPrincipal(ctx, "nobody")
	assert.ErrorIs(t, err, store.ErrNotFound)

	dup := NewUser("ana2")
	dup.Principal = ana.Principal
	err = s.Update(ctx, func(tx store.Tx) error { return tx.CreateUser(ctx, dup) })
	assert.ErrorIs(t, err, store.ErrAlreadyExists)

	err = s.Update(ctx, func(tx store.Tx) error {
		taken, err := tx.UsernameTaken(ctx, "ANA")
		require.NoError(t, err)
		assert.True(t, taken)

		taken, err = tx.UsernameTaken(ctx, "bruno")
		require.NoError(t, err)
		assert.False(t, taken)
		return nil
	})
	require.NoError(t, err)

	users, err := store.Collect(s.ListUsers(ctx))
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func testUpdateUserPreservesCounters(t *testing.T, s store.Store) {
	ctx := context.Background()
	ana := NewUser("ana")
	Seed(t, s, []*domain.User{ana}, nil)

	err := s.Update(ctx, func(tx store.Tx) error {
		_, err := tx.AdjustUserCounter(ctx, ana.ID, domain.UserFollowers, 4)
		return err
	})
	require.NoError(t, err)

	// Stale copy with zero counters must not overwrite them.
	edited := *ana
	edited.FullName = "Ana Torres"
	edited.Bio = "street photography"
	edited.Username = "ana.t"
	require.NoError(t, s.Update(ctx, func(tx store.Tx) error { return tx.UpdateUser(ctx, &edited) }))

	got, err := s.GetUser(ctx, ana.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ana Torres", got.FullName)
	assert.Equal(t, "street photography", got.Bio)
	assert.Equal(t, int64(4), got.Followers)

	// Username index moved with the rename.
	err = s.Update(ctx, func(tx store.Tx) error {
		oldTaken, err := tx.UsernameTaken(ctx, "ana")
		require.NoError(t, err)
		newTaken, err := tx.UsernameTaken(ctx, "ana.t")
		require.NoError(t, err)
		assert.False(t, oldTaken)
		assert.True(t, newTaken)
		return nil
	})
	require.NoError(t, err)
}

func testPostsNewestFirst(t *testing.T, s store.Store) {
	ctx := context.Background()
	ana, bruno := NewUser("ana"), NewUser("bruno")
	base := time.Now().Add(-time.Hour)

	p1 := NewPost(ana.ID, base)
	p2 := NewPost(bruno.ID, base.Add(time.Minute))
	p3 := NewPost(ana.ID, base.Add(2*time.Minute))
	Seed(t, s, []*domain.User{ana, bruno}, []*domain.Post{p1, p3, p2})

	all, err := store.Collect(s.ListPosts(ctx))
	require.NoError(t, err)
	assert.Equal(t, []string{p3.ID, p2.ID, p1.ID}, postIDs(all))

	mine, err := store.Collect(s.ListPostsByUser(ctx, ana.ID))
	require.NoError(t, err)
	assert.Equal(t, []string{p3.ID, p1.ID}, postIDs(mine))

	none, err := store.Collect(s.ListPostsByUser(ctx, "usr-nobody"))
	require.NoError(t, err)
	assert.Empty(t, none)

	require.NoError(t, s.Update(ctx, func(tx store.Tx) error { return tx.DeletePost(ctx, p3.ID) }))

	_, err = s.GetPost(ctx, p3.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	all, err = store.Collect(s.ListPosts(ctx))
	require.NoError(t, err)
	assert.Equal(t, []string{p2.ID, p1.ID}, postIDs(all))

	err = s.Update(ctx, func(tx store.Tx) error { return tx.DeletePost(ctx, p3.ID) })
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testRelations(t *testing.T, s store.Store) {
	ctx := context.Background()
	ana := NewUser("ana")
	base := time.Now().Add(-time.Hour)
	p1, p2 := NewPost(ana.ID, base), NewPost(ana.ID, base.Add(time.Second))
	Seed(t, s, []*domain.User{ana}, []*domain.Post{p1, p2})

	rel := func(target string, at time.Time) *domain.Relation {
		return &domain.Relation{Kind: domain.RelationBookmark, UserID: ana.ID, TargetID: target, CreatedAt: at.UTC().Truncate(time.Microsecond)}
	}

	require.NoError(t, s.Update(ctx, func(tx store.Tx) error {
		if err := tx.CreateRelation(ctx, rel(p2.ID, base)); err != nil {
			return err
		}
		return tx.CreateRelation(ctx, rel(p1.ID, base.Add(time.Minute)))
	}))

	err := s.Update(ctx, func(tx store.Tx) error { return tx.CreateRelation(ctx, rel(p1.ID, base)) })
	assert.ErrorIs(t, err, store.ErrAlreadyExists)

	exists, err := s.RelationExists(ctx, domain.RelationBookmark, ana.ID, p1.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	// Kinds are independent.
	exists, err = s.RelationExists(ctx, domain.RelationLike, ana.ID, p1.ID)
	require.NoError(t, err)
	assert.False(t, exists)

	rels, err := store.Collect(s.ListRelationsByUser(ctx, domain.RelationBookmark, ana.ID))
	require.NoError(t, err)
	require.Len(t, rels, 2)
	assert.Equal(t, p1.ID, rels[0].TargetID, "most recently bookmarked first")
	assert.Equal(t, p2.ID, rels[1].TargetID)

	n, err := s.CountRelationsByUser(ctx, domain.RelationBookmark, ana.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = s.CountRelationsForTarget(ctx, domain.RelationBookmark, p1.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, s.Update(ctx, func(tx store.Tx) error {
		got, err := tx.GetRelation(ctx, domain.RelationBookmark, ana.ID, p1.ID)
		if err != nil {
			return err
		}
		assert.Equal(t, p1.ID, got.TargetID)
		return tx.DeleteRelation(ctx, domain.RelationBookmark, ana.ID, p1.ID)
	}))

	err = s.Update(ctx, func(tx store.Tx) error {
		_, err := tx.GetRelation(ctx, domain.RelationBookmark, ana.ID, p1.ID)
		return err
	})
	assert.ErrorIs(t, err, store.ErrNotFound)

	err = s.Update(ctx, func(tx store.Tx) error {
		return tx.DeleteRelation(ctx, domain.RelationBookmark, ana.ID, p1.ID)
	})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testCounters(t *testing.T, s store.Store) {
	ctx := context.Background()
	ana := NewUser("ana")
	post := NewPost(ana.ID, time.Now())
	Seed(t, s, []*domain.User{ana}, []*domain.Post{post})

	var likes, comments, posts int64
	require.NoError(t, s.Update(ctx, func(tx store.Tx) error {
		var err error
		if _, err = tx.AdjustPostCounter(ctx, post.ID, domain.PostLikes, 1); err != nil {
			return err
		}
		if likes, err = tx.AdjustPostCounter(ctx, post.ID, domain.PostLikes, 1); err != nil {
			return err
		}
		if comments, err = tx.AdjustPostCounter(ctx, post.ID, domain.PostComments, 3); err != nil {
			return err
		}
		posts, err = tx.AdjustUserCounter(ctx, ana.ID, domain.UserPosts, 1)
		return err
	}))
	assert.Equal(t, int64(2), likes)
	assert.Equal(t, int64(3), comments)
	assert.Equal(t, int64(1), posts)

	got, err := s.GetPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Likes)
	assert.Equal(t, int64(3), got.Comments)

	err = s.Update(ctx, func(tx store.Tx) error {
		_, err := tx.AdjustPostCounter(ctx, "pst-missing", domain.PostLikes, 1)
		return err
	})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testComments(t *testing.T, s store.Store) {
	ctx := context.Background()
	ana := NewUser("ana")
	post := NewPost(ana.ID, time.Now())
	Seed(t, s, []*domain.User{ana}, []*domain.Post{post})

	base := time.Now().UTC().Truncate(time.Microsecond)
	texts := []string{"first", "second", "third"}
	require.NoError(t, s.Update(ctx, func(tx store.Tx) error {
		// Insert out of order; listing sorts by time.
		for _, i := range []int{2, 0, 1} {
			c := &domain.Comment{
				ID:        id.MustGenerate(id.PrefixComment),
				PostID:    post.ID,
				AuthorID:  ana.ID,
				Text:      texts[i],
				CreatedAt: base.Add(time.Duration(i) * time.Second),
			}
			if err := tx.CreateComment(ctx, c); err != nil {
				return err
			}
		}
		return nil
	}))

	list, err := store.Collect(s.ListComments(ctx, post.ID))
	require.NoError(t, err)
	require.Len(t, list, 3)
	for i, c := range list {
		assert.Equal(t, texts[i], c.Text)
	}

	n, err := s.CountComments(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func testCascadeHelpers(t *testing.T, s store.Store) {
	ctx := context.Background()
	ana, bruno := NewUser("ana"), NewUser("bruno")
	post := NewPost(ana.ID, time.Now())
	Seed(t, s, []*domain.User{ana, bruno}, []*domain.Post{post})

	now := domain.Now()
	require.NoError(t, s.Update(ctx, func(tx store.Tx) error {
		for _, u := range []*domain.User{ana, bruno} {
			if err := tx.CreateRelation(ctx, &domain.Relation{Kind: domain.RelationLike, UserID: u.ID, TargetID: post.ID, CreatedAt: now}); err != nil {
				return err
			}
		}
		return tx.CreateComment(ctx, &domain.Comment{ID: id.MustGenerate(id.PrefixComment), PostID: post.ID, AuthorID: bruno.ID, Text: "hi", CreatedAt: now})
	}))

	var removedLikes, removedComments int64
	require.NoError(t, s.Update(ctx, func(tx store.Tx) error {
		var err error
		if removedLikes, err = tx.DeleteRelationsForTarget(ctx, domain.RelationLike, post.ID); err != nil {
			return err
		}
		removedComments, err = tx.DeleteCommentsForPost(ctx, post.ID)
		return err
	}))
	assert.Equal(t, int64(2), removedLikes)
	assert.Equal(t, int64(1), removedComments)

	n, err := s.CountRelationsForTarget(ctx, domain.RelationLike, post.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	liked, err := s.RelationExists(ctx, domain.RelationLike, bruno.ID, post.ID)
	require.NoError(t, err)
	assert.False(t, liked)

	n, err = s.CountRelationsByUser(ctx, domain.RelationLike, bruno.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func testRollback(t *testing.T, s store.Store) {
	ctx := context.Background()
	ana := NewUser("ana")
	post := NewPost(ana.ID, time.Now())
	Seed(t, s, []*domain.User{ana}, []*domain.Post{post})

	boom := errors.New("abort after writes")
	err := s.Update(ctx, func(tx store.Tx) error {
		rel := &domain.Relation{Kind: domain.RelationLike, UserID: ana.ID, TargetID: post.ID, CreatedAt: domain.Now()}
		if err := tx.CreateRelation(ctx, rel); err != nil {
			return err
		}
		if _, err := tx.AdjustPostCounter(ctx, post.ID, domain.PostLikes, 1); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	liked, err := s.RelationExists(ctx, domain.RelationLike, ana.ID, post.ID)
	require.NoError(t, err)
	assert.False(t, liked)

	got, err := s.GetPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Zero(t, got.Likes)
}

// toggleLike is the minimal check-then-act sequence used by the concurrency tests.
func toggleLike(ctx context.Context, s store.Store, userID, postID string) error {
	return s.Update(ctx, func(tx store.Tx) error {
		_, err := tx.GetRelation(ctx, domain.RelationLike, userID, postID)
		switch {
		case err == nil:
			if err := tx.DeleteRelation(ctx, domain.RelationLike, userID, postID); err != nil {
				return err
			}
			_, err = tx.AdjustPostCounter(ctx, postID, domain.PostLikes, -1)
			return err
		case errors.Is(err, store.ErrNotFound):
			rel := &domain.Relation{Kind: domain.RelationLike, UserID: userID, TargetID: postID, CreatedAt: domain.Now()}
			if err := tx.CreateRelation(ctx, rel); err != nil {
				return err
			}
			_, err = tx.AdjustPostCounter(ctx, postID, domain.PostLikes, 1)
			return err
		default:
			return err
		}
	})
}

func testConcurrentSameViewer(t *testing.T, s store.Store) {
	ctx := context.Background()
	ana := NewUser("ana")
	post := NewPost(ana.ID, time.Now())
	Seed(t, s, []*domain.User{ana}, []*domain.Post{post})

	const workers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := toggleLike(ctx, s, ana.ID, post.ID); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			} else {
				// Only exhausted retries are acceptable failures.
				assert.ErrorIs(t, err, store.ErrTxnConflict)
			}
		}()
	}
	wg.Wait()

	require.Positive(t, succeeded)

	liked, err := s.RelationExists(ctx, domain.RelationLike, ana.ID, post.ID)
	require.NoError(t, err)
	assert.Equal(t, succeeded%2 == 1, liked, "state must equal the parity of committed toggles")

	rows, err := s.CountRelationsForTarget(ctx, domain.RelationLike, post.ID)
	require.NoError(t, err)
	assert.LessOrEqual(t, rows, int64(1))

	got, err := s.GetPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, rows, got.Likes)
}

func testConcurrentDifferentViewers(t *testing.T, s store.Store) {
	ctx := context.Background()
	owner := NewUser("owner")
	post := NewPost(owner.ID, time.Now())

	const viewers = 12
	users := []*domain.User{owner}
	for i := range viewers {
		users = append(users, NewUser(fmt.Sprintf("viewer%d", i)))
	}
	Seed(t, s, users, []*domain.Post{post})

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int64
	)
	for _, u := range users[1:] {
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			// Retry exhausted conflicts so every viewer lands exactly once.
			for {
				err := toggleLike(ctx, s, userID, post.ID)
				if errors.Is(err, store.ErrTxnConflict) {
					continue
				}
				assert.NoError(t, err)
				if err == nil {
					mu.Lock()
					succeeded++
					mu.Unlock()
				}
				return
			}
		}(u.ID)
	}
	wg.Wait()

	assert.Equal(t, int64(viewers), succeeded)

	rows, err := s.CountRelationsForTarget(ctx, domain.RelationLike, post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(viewers), rows)

	got, err := s.GetPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(viewers), got.Likes, "no counter update may be lost")
}

func testTxCounts(t *testing.T, s store.Store) {
	ctx := context.Background()
	ana, bruno := NewUser("ana"), NewUser("bruno")
	post := NewPost(ana.ID, time.Now())
	Seed(t, s, []*domain.User{ana, bruno}, []*domain.Post{post})
	now := domain.Now()

	type counts struct{ posts, likes, comments, followers, following int64 }
	read := func(c interface {
		CountPostsByUser(context.Context, string) (int64, error)
		CountRelationsByUser(context.Context, domain.RelationKind, string) (int64, error)
		CountRelationsForTarget(context.Context, domain.RelationKind, string) (int64, error)
		CountComments(context.Context, string) (int64, error)
	}) counts {
		var got counts
		var err error
		got.posts, err = c.CountPostsByUser(ctx, ana.ID)
		require.NoError(t, err)
		got.likes, err = c.CountRelationsForTarget(ctx, domain.RelationLike, post.ID)
		require.NoError(t, err)
		got.comments, err = c.CountComments(ctx, post.ID)
		require.NoError(t, err)
		got.followers, err = c.CountRelationsForTarget(ctx, domain.RelationFollow, ana.ID)
		require.NoError(t, err)
		got.following, err = c.CountRelationsByUser(ctx, domain.RelationFollow, bruno.ID)
		require.NoError(t, err)
		return got
	}

	writes := func(tx store.Tx) error {
		if err := tx.CreateRelation(ctx, &domain.Relation{Kind: domain.RelationLike, UserID: bruno.ID, TargetID: post.ID, CreatedAt: now}); err != nil {
			return err
		}
		if err := tx.CreateRelation(ctx, &domain.Relation{Kind: domain.RelationFollow, UserID: bruno.ID, TargetID: ana.ID, CreatedAt: now}); err != nil {
			return err
		}
		return tx.CreateComment(ctx, &domain.Comment{ID: id.MustGenerate(id.PrefixComment), PostID: post.ID, AuthorID: bruno.ID, Text: "hi", CreatedAt: now})
	}

	// Rolled back writes are never counted.
	errAbort := errors.New("abort")
	err := s.Update(ctx, func(tx store.Tx) error {
		if err := writes(tx); err != nil {
			return err
		}
		assert.Equal(t, counts{1, 1, 1, 1, 1}, read(tx))
		return errAbort
	})
	require.ErrorIs(t, err, errAbort)
	assert.Equal(t, counts{posts: 1}, read(s))

	require.NoError(t, s.Update(ctx, writes))
	assert.Equal(t, counts{1, 1, 1, 1, 1}, read(s))
}

func testRestartable(t *testing.T, s store.Store) {
	ctx := context.Background()
	ana := NewUser("ana")
	post := NewPost(ana.ID, time.Now())
	Seed(t, s, []*domain.User{ana}, []*domain.Post{post})

	require.NoError(t, s.Update(ctx, func(tx store.Tx) error {
		return tx.CreateComment(ctx, &domain.Comment{ID: id.MustGenerate(id.PrefixComment), PostID: post.ID, AuthorID: ana.ID, Text: "one", CreatedAt: domain.Now()})
	}))

	seq := s.ListComments(ctx, post.ID)
	first, err := store.Collect(seq)
	require.NoError(t, err)
	second, err := store.Collect(seq)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// Early exit must not leak resources or error.
	for range s.ListPosts(ctx) {
		break
	}
}

func postIDs(posts []*domain.Post) []string {
	out := make([]string, len(posts))
	for i, p := range posts {
		out[i] = p.ID
	}
	return out
}
