package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mtorresweb/spotlight-server/internal/domain"
	"github.com/mtorresweb/spotlight-server/internal/dto"
	domainerrors "github.com/mtorresweb/spotlight-server/internal/errors"
	"github.com/mtorresweb/spotlight-server/internal/feed"
	"github.com/mtorresweb/spotlight-server/internal/logger"
	"github.com/mtorresweb/spotlight-server/internal/media"
	"github.com/mtorresweb/spotlight-server/internal/search"
	"github.com/mtorresweb/spotlight-server/internal/sse"
	"github.com/mtorresweb/spotlight-server/internal/store"
	"github.com/mtorresweb/spotlight-server/internal/store/badgerstore"
)

// recordingEmitter keeps every emitted event.
type recordingEmitter struct {
	mu     sync.Mutex
	events []sse.Event
}

func (r *recordingEmitter) Emit(e sse.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingEmitter) types() []sse.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]sse.EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

// hidingReader makes selected users look deleted to feed assembly.
type hidingReader struct {
	store.Reader
	mu     sync.Mutex
	hidden map[string]bool
}

func (h *hidingReader) hide(userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hidden[userID] = true
}

func (h *hidingReader) GetUser(ctx context.Context, id string) (*domain.User, error) {
	h.mu.Lock()
	hidden := h.hidden[id]
	h.mu.Unlock()
	if hidden {
		return nil, store.ErrNotFound
	}
	return h.Reader.GetUser(ctx, id)
}

type env struct {
	store     *badgerstore.Store
	reader    *hidingReader
	identity  *IdentityResolver
	likes     *RelationStore
	bookmarks *RelationStore
	follows   *RelationStore
	counters  *CounterMaintainer
	users     *UserService
	posts     *PostService
	comments  *CommentService
	search    *SearchService
	auditor   *Auditor
	index     *search.Index
	objects   *media.LocalStorage
	events    *recordingEmitter
	seed      atomic.Int32
}

func newEnv(t *testing.T) *env {
	t.Helper()
	log := logger.Discard()

	s, err := badgerstore.New("", log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	objects, err := media.NewLocalStorage(t.TempDir(), "http://localhost:8080")
	require.NoError(t, err)

	index, err := search.NewIndex(search.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	e := &env{
		store:   s,
		reader:  &hidingReader{Reader: s, hidden: map[string]bool{}},
		index:   index,
		objects: objects,
		events:  &recordingEmitter{},
	}
	e.counters = NewCounterMaintainer(log)
	e.identity = NewIdentityResolver(s, nil, log)
	e.likes = NewRelationStore(domain.RelationLike, s, e.counters, nil, log)
	e.bookmarks = NewRelationStore(domain.RelationBookmark, s, e.counters, nil, log)
	e.follows = NewRelationStore(domain.RelationFollow, s, e.counters, nil, log)

	assembler := feed.NewAssembler(e.reader, e.likes, e.bookmarks, 4, nil, log)
	thread := NewCommentThread(s, e.counters)

	e.users = NewUserService(s, e.identity, e.follows, index, e.events, log)
	e.posts = NewPostService(PostServiceDeps{
		Store:     s,
		Identity:  e.identity,
		Likes:     e.likes,
		Bookmarks: e.bookmarks,
		Counters:  e.counters,
		Assembler: assembler,
		Objects:   objects,
		Indexer:   index,
		Emitter:   e.events,
		Logger:    log,
	})
	e.comments = NewCommentService(e.reader, e.identity, thread, e.events, nil, log)
	e.search = NewSearchService(s, e.identity, index, assembler, log)
	e.auditor = NewAuditor(s, e.counters, log)
	return e
}

func principalFor(name string) domain.Principal {
	return domain.Principal{
		ID:       "sub|" + name,
		Email:    name + "@example.com",
		FullName: name,
	}
}

// signUp provisions a user and returns its principal and id.
func (e *env) signUp(t *testing.T, name string) (domain.Principal, string) {
	t.Helper()
	p := principalFor(name)
	me, _, err := e.users.SyncUser(context.Background(), p)
	require.NoError(t, err)
	return p, me.ID
}

// publish uploads a distinct image and posts it.
func (e *env) publish(t *testing.T, p domain.Principal, caption string) *dto.Post {
	t.Helper()
	up, err := e.posts.Upload(context.Background(), p, pngBytes(t, int(e.seed.Add(1))))
	require.NoError(t, err)
	post, err := e.posts.CreatePost(context.Background(), p, CreatePostRequest{
		StorageID: up.StorageID,
		Caption:   caption,
		BlurHash:  up.BlurHash,
	})
	require.NoError(t, err)
	return post
}

func (e *env) requireConsistent(t *testing.T) {
	t.Helper()
	report, err := e.auditor.Audit(context.Background())
	require.NoError(t, err)
	require.True(t, report.OK(), "counter drift: %v", report.Drift)
}

// pngBytes returns a small PNG whose pixels depend on seed.
func pngBytes(t *testing.T, seed int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := range 8 {
		for y := range 8 {
			img.Set(x, y, color.RGBA{R: uint8(seed * 17), G: uint8(x * 30), B: uint8(y * 30), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func requireCode(t *testing.T, err error, code domainerrors.Code) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, code, domainerrors.CodeOf(err), "error: %v", err)
}
