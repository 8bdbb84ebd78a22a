package service

import (
	"context"
	"iter"
	"log/slog"

	"github.com/mtorresweb/spotlight-server/internal/domain"
	"github.com/mtorresweb/spotlight-server/internal/dto"
	domainerrors "github.com/mtorresweb/spotlight-server/internal/errors"
	"github.com/mtorresweb/spotlight-server/internal/feed"
	"github.com/mtorresweb/spotlight-server/internal/search"
	"github.com/mtorresweb/spotlight-server/internal/store"
)

// MaxSearchLimit caps the page size of a search.
const MaxSearchLimit = 50

// Searcher runs full-text queries.
type Searcher interface {
	SearchUsers(ctx context.Context, q string, limit int) ([]search.Hit, error)
	SearchPosts(ctx context.Context, q string, limit int) ([]search.Hit, error)
}

// SearchService resolves search hits to current entities. Hits whose entity
// has been deleted are omitted.
type SearchService struct {
	store     store.Reader
	identity  *IdentityResolver
	index     Searcher
	assembler *feed.Assembler
	logger    *slog.Logger
}

// NewSearchService creates a SearchService. A nil index returns no results.
func NewSearchService(reader store.Reader, identity *IdentityResolver, index Searcher, assembler *feed.Assembler, logger *slog.Logger) *SearchService {
	return &SearchService{
		store:     reader,
		identity:  identity,
		index:     index,
		assembler: assembler,
		logger:    logger,
	}
}

// SearchUsers returns users matching q, best match first.
func (s *SearchService) SearchUsers(ctx context.Context, principal domain.Principal, q string, limit int) ([]*dto.User, error) {
	if _, err := s.identity.Viewer(ctx, principal); err != nil {
		return nil, err
	}
	hits, err := s.hits(ctx, q, limit, s.searchUsers)
	if err != nil {
		return nil, err
	}

	users := make([]*dto.User, 0, len(hits))
	for _, hit := range hits {
		u, err := s.store.GetUser(ctx, hit.ID)
		if err != nil {
			if feed.IsMissing(err) {
				continue
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.logger.Warn("omitting search hit after lookup failure", "user_id", hit.ID, "error", err)
			continue
		}
		users = append(users, dto.NewUser(u))
	}
	return users, nil
}

// SearchPosts returns posts whose caption matches q, best match first.
func (s *SearchService) SearchPosts(ctx context.Context, principal domain.Principal, q string, limit int) ([]*dto.Post, error) {
	viewer, err := s.identity.Viewer(ctx, principal)
	if err != nil {
		return nil, err
	}
	hits, err := s.hits(ctx, q, limit, s.searchPosts)
	if err != nil {
		return nil, err
	}

	posts, err := s.assembler.AssembleRefs(ctx, viewer, hitIDs(hits), feed.WithView("search"))
	if err != nil {
		return nil, translate(err, "search")
	}
	return posts, nil
}

func (s *SearchService) searchUsers(ctx context.Context, q string, limit int) ([]search.Hit, error) {
	return s.index.SearchUsers(ctx, q, limit)
}

func (s *SearchService) searchPosts(ctx context.Context, q string, limit int) ([]search.Hit, error) {
	return s.index.SearchPosts(ctx, q, limit)
}

func (s *SearchService) hits(ctx context.Context, q string, limit int, run func(context.Context, string, int) ([]search.Hit, error)) ([]search.Hit, error) {
	if s.index == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = search.DefaultLimit
	}
	limit = min(limit, MaxSearchLimit)
	hits, err := run(ctx, q, limit)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "search failed")
	}
	return hits, nil
}

func hitIDs(hits []search.Hit) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, h := range hits {
			if !yield(h.ID, nil) {
				return
			}
		}
	}
}
