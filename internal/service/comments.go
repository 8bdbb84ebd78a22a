package service

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"sync"

	"github.com/mtorresweb/spotlight-server/internal/domain"
	"github.com/mtorresweb/spotlight-server/internal/dto"
	domainerrors "github.com/mtorresweb/spotlight-server/internal/errors"
	"github.com/mtorresweb/spotlight-server/internal/feed"
	"github.com/mtorresweb/spotlight-server/internal/id"
	"github.com/mtorresweb/spotlight-server/internal/metrics"
	"github.com/mtorresweb/spotlight-server/internal/sse"
	"github.com/mtorresweb/spotlight-server/internal/store"
)

// MaxCommentRunes bounds a comment's length after trimming.
const MaxCommentRunes = 1000

// CommentThread appends comments to posts and lists them.
type CommentThread struct {
	store    store.Store
	counters *CounterMaintainer
}

// NewCommentThread creates a CommentThread.
func NewCommentThread(s store.Store, counters *CounterMaintainer) *CommentThread {
	return &CommentThread{store: s, counters: counters}
}

// Add appends a comment in its own transaction and returns it with the post's
// new comment count.
func (c *CommentThread) Add(ctx context.Context, viewer domain.Viewer, postID, text string) (*domain.Comment, int64, error) {
	text, err := checkCommentText(text)
	if err != nil {
		return nil, 0, err
	}

	var (
		comment *domain.Comment
		count   int64
	)
	err = c.store.Update(ctx, func(tx store.Tx) error {
		var err error
		comment, count, err = c.AddTx(ctx, tx, viewer, postID, text)
		return err
	})
	if err != nil {
		return nil, 0, translate(err, "post "+postID)
	}
	return comment, count, nil
}

// AddTx inserts a comment inside tx. text must already be trimmed and checked.
func (c *CommentThread) AddTx(ctx context.Context, tx store.Tx, viewer domain.Viewer, postID, text string) (*domain.Comment, int64, error) {
	if viewer.UserID == "" {
		return nil, 0, domainerrors.Unauthenticated("authentication required")
	}
	if _, err := tx.GetPost(ctx, postID); err != nil {
		return nil, 0, translate(err, "post "+postID)
	}

	commentID, err := id.Generate(id.PrefixComment)
	if err != nil {
		return nil, 0, err
	}
	comment := &domain.Comment{
		ID:        commentID,
		PostID:    postID,
		AuthorID:  viewer.UserID,
		Text:      text,
		CreatedAt: domain.Now(),
	}
	if err := tx.CreateComment(ctx, comment); err != nil {
		return nil, 0, err
	}

	count, err := c.counters.AdjustPost(ctx, tx, postID, domain.PostComments, 1)
	if err != nil {
		return nil, 0, err
	}
	return comment, count, nil
}

// List yields the post's comments oldest first. Each range re-reads the store.
func (c *CommentThread) List(ctx context.Context, postID string) iter.Seq2[*domain.Comment, error] {
	return c.store.ListComments(ctx, postID)
}

var commentTextRule = fmt.Sprintf("notblank,maxrunes=%d", MaxCommentRunes)

func checkCommentText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if err := validate.Var("text", text, commentTextRule); err != nil {
		return "", err
	}
	return text, nil
}

// CommentService exposes comment operations to the transport.
type CommentService struct {
	store    store.Reader
	identity *IdentityResolver
	thread   *CommentThread
	emitter  EventEmitter
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewCommentService creates a CommentService.
func NewCommentService(
	reader store.Reader,
	identity *IdentityResolver,
	thread *CommentThread,
	emitter EventEmitter,
	m *metrics.Metrics,
	logger *slog.Logger,
) *CommentService {
	if emitter == nil {
		emitter = NoopEmitter{}
	}
	return &CommentService{
		store:    reader,
		identity: identity,
		thread:   thread,
		emitter:  emitter,
		metrics:  m,
		logger:   logger,
	}
}

// AddComment adds a comment by the caller to postID.
func (s *CommentService) AddComment(ctx context.Context, principal domain.Principal, postID, text string) (*dto.Comment, error) {
	viewer, err := s.identity.Viewer(ctx, principal)
	if err != nil {
		return nil, err
	}
	author, err := s.store.GetUser(ctx, viewer.UserID)
	if err != nil {
		return nil, translate(err, "user "+viewer.UserID)
	}

	comment, count, err := s.thread.Add(ctx, viewer, postID, text)
	if err != nil {
		return nil, err
	}

	s.metrics.CommentAdded()
	s.emitter.Emit(sse.NewCommentAddedEvent(comment, count))
	s.logger.Info("comment added",
		"comment_id", comment.ID,
		"post_id", postID,
		"user_id", viewer.UserID,
	)
	return dto.NewComment(comment, author), nil
}

// ListComments returns the post's comments oldest first, joined with their
// authors. Comments whose author no longer exists are omitted.
func (s *CommentService) ListComments(ctx context.Context, principal domain.Principal, postID string) ([]*dto.Comment, error) {
	if _, err := s.identity.Viewer(ctx, principal); err != nil {
		return nil, err
	}
	if _, err := s.store.GetPost(ctx, postID); err != nil {
		return nil, translate(err, "post "+postID)
	}

	authors := newAuthorCache(s.store)
	out := []*dto.Comment{}
	for comment, err := range s.thread.List(ctx, postID) {
		if err != nil {
			return nil, translate(err, "comments")
		}

		var author *domain.User
		kept, err := feed.ResolveOrOmit(ctx, s.logger, s.metrics, comment.ID, func(ctx context.Context) error {
			var err error
			author, err = authors.get(ctx, comment.AuthorID)
			return err
		})
		if err != nil {
			return nil, err
		}
		if kept {
			out = append(out, dto.NewComment(comment, author))
		}
	}
	return out, nil
}

// authorCache memoizes user lookups for one listing.
type authorCache struct {
	reader store.Reader
	mu     sync.Mutex
	users  map[string]*domain.User
}

func newAuthorCache(reader store.Reader) *authorCache {
	return &authorCache{reader: reader, users: map[string]*domain.User{}}
}

func (a *authorCache) get(ctx context.Context, userID string) (*domain.User, error) {
	a.mu.Lock()
	u, ok := a.users[userID]
	a.mu.Unlock()
	if ok {
		return u, nil
	}

	u, err := a.reader.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	a.users[userID] = u
	a.mu.Unlock()
	return u, nil
}
