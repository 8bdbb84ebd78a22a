package feed

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtorresweb/spotlight-server/internal/domain"
	"github.com/mtorresweb/spotlight-server/internal/dto"
	"github.com/mtorresweb/spotlight-server/internal/logger"
	"github.com/mtorresweb/spotlight-server/internal/store"
)

type fakeReader struct {
	mu      sync.Mutex
	posts   map[string]*domain.Post
	users   map[string]*domain.User
	userErr map[string]error
	jitter  bool
}

func newFakeReader() *fakeReader {
	return &fakeReader{
		posts:   map[string]*domain.Post{},
		users:   map[string]*domain.User{},
		userErr: map[string]error{},
	}
}

func (r *fakeReader) sleep() {
	if r.jitter {
		time.Sleep(time.Duration(rand.IntN(300)) * time.Microsecond)
	}
}

func (r *fakeReader) GetPost(_ context.Context, id string) (*domain.Post, error) {
	r.sleep()
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return p, nil
}

func (r *fakeReader) GetUser(ctx context.Context, id string) (*domain.User, error) {
	r.sleep()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.userErr[id]; err != nil {
		return nil, err
	}
	u, ok := r.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return u, nil
}

// fakeRelations answers Exists from a set keyed "user|target".
type fakeRelations struct {
	set   map[string]bool
	err   error
	calls int
	mu    sync.Mutex
}

func (f *fakeRelations) Exists(_ context.Context, viewer domain.Viewer, targetID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	return f.set[viewer.UserID+"|"+targetID], nil
}

func seqOf[T any](items ...T) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for _, it := range items {
			if !yield(it, nil) {
				return
			}
		}
	}
}

type fixture struct {
	reader    *fakeReader
	likes     *fakeRelations
	bookmarks *fakeRelations
	assembler *Assembler
	viewer    domain.Viewer
}

func newFixture(t *testing.T, concurrency int) *fixture {
	t.Helper()
	f := &fixture{
		reader:    newFakeReader(),
		likes:     &fakeRelations{set: map[string]bool{}},
		bookmarks: &fakeRelations{set: map[string]bool{}},
		viewer:    domain.Viewer{UserID: "usr-viewer", Principal: "p-viewer"},
	}
	f.assembler = NewAssembler(f.reader, f.likes, f.bookmarks, concurrency, nil, logger.Discard())
	return f
}

func (f *fixture) addUser(id string) *domain.User {
	u := &domain.User{ID: id, Username: "u_" + id}
	f.reader.users[id] = u
	return u
}

func (f *fixture) addPost(id, userID string) *domain.Post {
	p := &domain.Post{ID: id, UserID: userID, ImageURL: "img/" + id, CreatedAt: domain.Now()}
	f.reader.posts[id] = p
	return p
}

func ids(posts []*dto.Post) []string {
	out := make([]string, len(posts))
	for i, p := range posts {
		out[i] = p.ID
	}
	return out
}

func TestAssemble_PreservesOrder(t *testing.T) {
	f := newFixture(t, 3)
	f.reader.jitter = true
	f.addUser("usr-a")

	var posts []*domain.Post
	var want []string
	for i := range 40 {
		p := f.addPost(fmt.Sprintf("pst-%02d", i), "usr-a")
		posts = append(posts, p)
		want = append(want, p.ID)
	}

	got, err := f.assembler.Assemble(context.Background(), f.viewer, seqOf(posts...))
	require.NoError(t, err)
	assert.Equal(t, want, ids(got))
}

func TestAssemble_FlagsAndAuthor(t *testing.T) {
	f := newFixture(t, 0)
	author := f.addUser("usr-a")
	author.FullName = "Ana"
	p1 := f.addPost("pst-1", "usr-a")
	p2 := f.addPost("pst-2", "usr-a")
	f.likes.set[f.viewer.UserID+"|pst-1"] = true
	f.bookmarks.set[f.viewer.UserID+"|pst-2"] = true

	got, err := f.assembler.Assemble(context.Background(), f.viewer, seqOf(p1, p2))
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.True(t, got[0].IsLiked)
	assert.False(t, got[0].IsBookmarked)
	assert.False(t, got[1].IsLiked)
	assert.True(t, got[1].IsBookmarked)
	assert.Equal(t, "Ana", got[0].Author.FullName)
	assert.Equal(t, "usr-a", got[0].Author.ID)
}

func TestAssemble_OmitsPostsWithMissingAuthor(t *testing.T) {
	f := newFixture(t, 0)
	f.addUser("usr-a")
	p1 := f.addPost("pst-1", "usr-a")
	p2 := f.addPost("pst-2", "usr-gone")
	p3 := f.addPost("pst-3", "usr-a")

	got, err := f.assembler.Assemble(context.Background(), f.viewer, seqOf(p1, p2, p3))
	require.NoError(t, err)
	assert.Equal(t, []string{"pst-1", "pst-3"}, ids(got))
}

func TestAssemble_OmitsOnStorageError(t *testing.T) {
	f := newFixture(t, 0)
	f.addUser("usr-a")
	f.addUser("usr-b")
	f.reader.userErr["usr-b"] = errors.New("disk on fire")
	p1 := f.addPost("pst-1", "usr-b")
	p2 := f.addPost("pst-2", "usr-a")

	got, err := f.assembler.Assemble(context.Background(), f.viewer, seqOf(p1, p2))
	require.NoError(t, err)
	assert.Equal(t, []string{"pst-2"}, ids(got))
}

func TestAssemble_BaseSequenceErrorFails(t *testing.T) {
	f := newFixture(t, 0)
	boom := errors.New("scan failed")
	seq := func(yield func(*domain.Post, error) bool) { yield(nil, boom) }

	_, err := f.assembler.Assemble(context.Background(), f.viewer, seq)
	assert.ErrorIs(t, err, boom)
}

func TestAssemble_CanceledContextFails(t *testing.T) {
	f := newFixture(t, 0)
	f.addUser("usr-a")
	p := f.addPost("pst-1", "usr-a")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.assembler.Assemble(ctx, f.viewer, seqOf(p))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAssemble_Empty(t *testing.T) {
	f := newFixture(t, 0)
	got, err := f.assembler.Assemble(context.Background(), f.viewer, seqOf[*domain.Post]())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestAssembleRefs_DropsDeletedPosts(t *testing.T) {
	f := newFixture(t, 2)
	f.addUser("usr-a")
	f.addPost("pst-1", "usr-a")
	f.addPost("pst-3", "usr-a")

	got, err := f.assembler.AssembleRefs(context.Background(), f.viewer, seqOf("pst-3", "pst-2", "pst-1"))
	require.NoError(t, err)
	assert.Equal(t, []string{"pst-3", "pst-1"}, ids(got))
}

func TestAssembleRefs_WithBookmarkedSkipsLookup(t *testing.T) {
	f := newFixture(t, 0)
	f.addUser("usr-a")
	f.addPost("pst-1", "usr-a")
	f.bookmarks.err = errors.New("must not be called")

	got, err := f.assembler.AssembleRefs(context.Background(), f.viewer, seqOf("pst-1"), WithBookmarked(), WithView("bookmarks"))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].IsBookmarked)
	assert.Zero(t, f.bookmarks.calls)
}

func TestResolveOrOmit(t *testing.T) {
	ok := func(context.Context) error { return nil }
	missing := func(context.Context) error { return store.ErrNotFound }
	broken := func(context.Context) error { return errors.New("io") }

	kept, err := ResolveOrOmit(context.Background(), logger.Discard(), nil, "x", ok, ok)
	require.NoError(t, err)
	assert.True(t, kept)

	kept, err = ResolveOrOmit(context.Background(), logger.Discard(), nil, "x", ok, missing)
	require.NoError(t, err)
	assert.False(t, kept)

	kept, err = ResolveOrOmit(context.Background(), logger.Discard(), nil, "x", broken)
	require.NoError(t, err)
	assert.False(t, kept)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = ResolveOrOmit(ctx, logger.Discard(), nil, "x", func(ctx context.Context) error { return ctx.Err() })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsMissing(t *testing.T) {
	assert.True(t, IsMissing(store.ErrNotFound))
	assert.True(t, IsMissing(fmt.Errorf("wrapped: %w", store.ErrNotFound)))
	assert.False(t, IsMissing(errors.New("other")))
	assert.False(t, IsMissing(context.Canceled))
}
