// Package feed joins posts with their authors and the viewer's interaction
// flags. Entries whose post or author no longer exists are dropped instead of
// failing the whole list.
package feed

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mtorresweb/spotlight-server/internal/domain"
	"github.com/mtorresweb/spotlight-server/internal/dto"
	domainerrors "github.com/mtorresweb/spotlight-server/internal/errors"
	"github.com/mtorresweb/spotlight-server/internal/metrics"
	"github.com/mtorresweb/spotlight-server/internal/store"
)

// DefaultConcurrency bounds how many entries resolve at once.
const DefaultConcurrency = 8

// Reader is the subset of the store the assembler reads.
type Reader interface {
	GetPost(ctx context.Context, id string) (*domain.Post, error)
	GetUser(ctx context.Context, id string) (*domain.User, error)
}

// RelationChecker reports whether the viewer holds a relation to a target.
type RelationChecker interface {
	Exists(ctx context.Context, viewer domain.Viewer, targetID string) (bool, error)
}

// Assembler builds enriched post lists for one viewer at a time.
type Assembler struct {
	reader      Reader
	likes       RelationChecker
	bookmarks   RelationChecker
	concurrency int
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// NewAssembler creates an assembler. A non-positive concurrency uses
// DefaultConcurrency.
func NewAssembler(reader Reader, likes, bookmarks RelationChecker, concurrency int, m *metrics.Metrics, logger *slog.Logger) *Assembler {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Assembler{
		reader:      reader,
		likes:       likes,
		bookmarks:   bookmarks,
		concurrency: concurrency,
		metrics:     m,
		logger:      logger,
	}
}

type options struct {
	view       string
	bookmarked bool
}

// Option adjusts a single assembly.
type Option func(*options)

// WithBookmarked marks every entry bookmarked without looking it up. Used when
// the input is the viewer's own bookmark list.
func WithBookmarked() Option {
	return func(o *options) { o.bookmarked = true }
}

// WithView names the list for the assembly duration metric.
func WithView(name string) Option {
	return func(o *options) { o.view = name }
}

type candidate struct {
	id   string
	post *domain.Post // nil when only the id is known
}

// Assemble enriches posts, preserving their order. An error from the input
// sequence or a canceled context fails the call; per-entry failures only drop
// the entry.
func (a *Assembler) Assemble(ctx context.Context, viewer domain.Viewer, posts iter.Seq2[*domain.Post, error], opts ...Option) ([]*dto.Post, error) {
	var candidates []candidate
	for p, err := range posts {
		if err != nil {
			return nil, fmt.Errorf("list posts: %w", err)
		}
		candidates = append(candidates, candidate{id: p.ID, post: p})
	}
	return a.assemble(ctx, viewer, candidates, opts)
}

// AssembleRefs is Assemble for a sequence of post IDs. Each post is loaded as
// part of its entry's lookups, so IDs of deleted posts are dropped.
func (a *Assembler) AssembleRefs(ctx context.Context, viewer domain.Viewer, postIDs iter.Seq2[string, error], opts ...Option) ([]*dto.Post, error) {
	var candidates []candidate
	for postID, err := range postIDs {
		if err != nil {
			return nil, fmt.Errorf("list post refs: %w", err)
		}
		candidates = append(candidates, candidate{id: postID})
	}
	return a.assemble(ctx, viewer, candidates, opts)
}

func (a *Assembler) assemble(ctx context.Context, viewer domain.Viewer, candidates []candidate, opts []Option) ([]*dto.Post, error) {
	o := options{view: "feed"}
	for _, opt := range opts {
		opt(&o)
	}

	start := time.Now()
	defer func() { a.metrics.ObserveAssembly(o.view, time.Since(start)) }()

	results := make([]*dto.Post, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, c := range candidates {
		g.Go(func() error {
			entry, err := a.resolve(gctx, viewer, c, o)
			if err != nil {
				return err
			}
			results[i] = entry
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]*dto.Post, 0, len(results))
	for _, entry := range results {
		if entry != nil {
			out = append(out, entry)
		}
	}

	if dropped := len(candidates) - len(out); dropped > 0 {
		a.logger.Debug("assembled list with omissions",
			"view", o.view,
			"viewer_id", viewer.UserID,
			"kept", len(out),
			"omitted", dropped,
		)
	}
	return out, nil
}

// resolve runs one entry's lookups. It returns (nil, nil) when the entry is
// omitted.
func (a *Assembler) resolve(ctx context.Context, viewer domain.Viewer, c candidate, o options) (*dto.Post, error) {
	var (
		post       = c.post
		author     *domain.User
		liked      bool
		bookmarked = o.bookmarked
	)

	lookups := []func(context.Context) error{
		func(ctx context.Context) error {
			var err error
			liked, err = a.likes.Exists(ctx, viewer, c.id)
			return err
		},
	}
	if !o.bookmarked {
		lookups = append(lookups, func(ctx context.Context) error {
			var err error
			bookmarked, err = a.bookmarks.Exists(ctx, viewer, c.id)
			return err
		})
	}
	if c.post == nil {
		lookups = append(lookups, func(ctx context.Context) error {
			p, err := a.reader.GetPost(ctx, c.id)
			if err != nil {
				return err
			}
			u, err := a.reader.GetUser(ctx, p.UserID)
			if err != nil {
				return err
			}
			post, author = p, u
			return nil
		})
	} else {
		lookups = append(lookups, func(ctx context.Context) error {
			var err error
			author, err = a.reader.GetUser(ctx, c.post.UserID)
			return err
		})
	}

	kept, err := ResolveOrOmit(ctx, a.logger, a.metrics, c.id, lookups...)
	if err != nil || !kept {
		return nil, err
	}
	return dto.NewPost(post, author, liked, bookmarked), nil
}

// ResolveOrOmit runs lookups concurrently and decides the entry's fate. It
// reports false when the entry must be dropped: silently when a lookup found
// nothing, with a warning for any other failure. The only error it returns is
// the context's, which must fail the caller.
func ResolveOrOmit(ctx context.Context, logger *slog.Logger, m *metrics.Metrics, subject string, lookups ...func(context.Context) error) (bool, error) {
	g, gctx := errgroup.WithContext(ctx)
	for _, fn := range lookups {
		g.Go(func() error { return fn(gctx) })
	}
	err := g.Wait()

	switch {
	case err == nil:
		return true, nil
	case ctx.Err() != nil:
		return false, ctx.Err()
	case IsMissing(err):
		m.FeedPostOmitted(metrics.ReasonMissing)
		return false, nil
	default:
		logger.Warn("omitting entry after lookup failure",
			"subject", subject,
			"error", err,
		)
		m.FeedPostOmitted(metrics.ReasonError)
		return false, nil
	}
}

// IsMissing reports whether err means the looked-up entity does not exist.
func IsMissing(err error) bool {
	return domainerrors.Is(err, store.ErrNotFound) || domainerrors.Is(err, domainerrors.ErrNotFound)
}
