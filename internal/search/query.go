package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// DefaultLimit caps results when the caller passes no limit.
const DefaultLimit = 20

// Hit is one search match. Callers load the entity by ID.
type Hit struct {
	ID    string  `json:"id"`
	Type  DocType `json:"type"`
	Score float64 `json:"score"`
}

// SearchUsers matches q against usernames and full names.
func (s *Index) SearchUsers(ctx context.Context, q string, limit int) ([]Hit, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return []Hit{}, nil
	}

	username := bleve.NewMatchQuery(q)
	username.SetField("username")
	username.SetBoost(3.0)

	fullname := bleve.NewMatchQuery(q)
	fullname.SetField("fullname")
	fullname.SetBoost(2.0)

	fuzzy := bleve.NewFuzzyQuery(strings.ToLower(q))
	fuzzy.SetField("username")
	fuzzy.SetFuzziness(1)
	fuzzy.SetBoost(0.8)

	text := []query.Query{username, fullname, fuzzy}

	// Prefix matching for autocomplete, from two characters up.
	if len(q) >= 2 {
		prefix := bleve.NewPrefixQuery(strings.ToLower(q))
		prefix.SetField("username")
		prefix.SetBoost(1.0)
		text = append(text, prefix)
	}

	return s.search(ctx, DocTypeUser, bleve.NewDisjunctionQuery(text...), limit)
}

// SearchPosts matches q against captions, best match first.
func (s *Index) SearchPosts(ctx context.Context, q string, limit int) ([]Hit, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return []Hit{}, nil
	}

	caption := bleve.NewMatchQuery(q)
	caption.SetField("caption")

	return s.search(ctx, DocTypePost, caption, limit)
}

func (s *Index) search(ctx context.Context, t DocType, text query.Query, limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	typeQuery := bleve.NewTermQuery(string(t))
	typeQuery.SetField("type")

	req := bleve.NewSearchRequestOptions(bleve.NewConjunctionQuery(text, typeQuery), limit, 0, false)
	req.SortBy([]string{"-_score", "-created_at"})

	s.mu.RLock()
	defer s.mu.RUnlock()

	res, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hits = append(hits, Hit{ID: h.ID, Type: t, Score: h.Score})
	}
	return hits, nil
}
