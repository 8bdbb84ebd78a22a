package search

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"

	"github.com/mtorresweb/spotlight-server/internal/domain"
)

// Index wraps a Bleve index of users and posts.
//
// All public methods are safe for concurrent use; the mutex keeps writers
// away while Reindex swaps the underlying index.
type Index struct {
	index  bleve.Index
	path   string
	logger *slog.Logger
	fresh  bool
	mu     sync.RWMutex
}

// Options configures the search index.
type Options struct {
	// DataPath holds the index on disk. Empty keeps it in memory.
	DataPath string
	Logger   *slog.Logger
}

// Source supplies the documents for a full reindex.
type Source interface {
	ListUsers(ctx context.Context) iter.Seq2[*domain.User, error]
	ListPosts(ctx context.Context) iter.Seq2[*domain.Post, error]
}

// NewIndex opens or creates the index. An index with a missing or outdated
// mapping version, or one that fails to open, is removed and recreated;
// Fresh then reports true so the caller can Reindex.
func NewIndex(opts Options) (*Index, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if opts.DataPath == "" {
		index, err := bleve.NewMemOnly(buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create in-memory index: %w", err)
		}
		return &Index{index: index, logger: logger, fresh: true}, nil
	}

	if err := os.MkdirAll(opts.DataPath, 0o755); err != nil {
		return nil, fmt.Errorf("create search directory: %w", err)
	}
	indexPath := filepath.Join(opts.DataPath, "spotlight.bleve")
	versionPath := filepath.Join(opts.DataPath, "spotlight.version")

	var index bleve.Index
	if _, err := os.Stat(indexPath); err == nil {
		existing, readErr := os.ReadFile(versionPath)
		switch {
		case readErr != nil || string(existing) != mappingVersion:
			logger.Info("search index mapping version changed, will rebuild",
				"old_version", string(existing),
				"new_version", mappingVersion,
			)
		default:
			index, err = bleve.Open(indexPath)
			if err != nil {
				logger.Warn("failed to open existing index, will recreate", "path", indexPath, "error", err)
				index = nil
			}
		}
	}

	if index != nil {
		logger.Info("opened existing search index", "path", indexPath)
		return &Index{index: index, path: indexPath, logger: logger}, nil
	}

	index, err := createIndex(indexPath)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(versionPath, []byte(mappingVersion), 0o644); err != nil {
		logger.Warn("failed to write search version file", "error", err)
	}
	logger.Info("created new search index", "path", indexPath, "mapping_version", mappingVersion)

	return &Index{index: index, path: indexPath, logger: logger, fresh: true}, nil
}

func createIndex(path string) (bleve.Index, error) {
	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove old index: %w", err)
	}
	index, err := bleve.New(path, buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}
	return index, nil
}

// Fresh reports whether the index was created empty on open.
func (s *Index) Fresh() bool {
	return s.fresh
}

// Close closes the index and releases resources.
func (s *Index) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Close()
}

// IndexUser adds or replaces u's document.
func (s *Index) IndexUser(u *domain.User) error {
	return s.indexDocument(UserDocument(u))
}

// IndexPost adds or replaces p's document.
func (s *Index) IndexPost(p *domain.Post) error {
	return s.indexDocument(PostDocument(p))
}

// DeletePost removes a post's document. Missing documents are ignored.
func (s *Index) DeletePost(id string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Delete(id)
}

func (s *Index) indexDocument(doc *Document) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Index(doc.ID, doc.ToMap())
}

// IndexDocuments indexes docs in batches.
func (s *Index) IndexDocuments(docs []*Document) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexBatches(docs)
}

const batchSize = 500

func (s *Index) indexBatches(docs []*Document) error {
	for start := 0; start < len(docs); start += batchSize {
		end := min(start+batchSize, len(docs))

		batch := s.index.NewBatch()
		for _, doc := range docs[start:end] {
			if err := batch.Index(doc.ID, doc.ToMap()); err != nil {
				return fmt.Errorf("batch index %s: %w", doc.ID, err)
			}
		}
		if err := s.index.Batch(batch); err != nil {
			return fmt.Errorf("commit batch %d-%d: %w", start, end, err)
		}
	}
	return nil
}

// DocumentCount returns the total number of indexed documents.
func (s *Index) DocumentCount() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.DocCount()
}

// Reindex replaces the index contents with every user and post in src.
// It blocks other operations while it runs.
func (s *Index) Reindex(ctx context.Context, src Source) error {
	var docs []*Document
	for u, err := range src.ListUsers(ctx) {
		if err != nil {
			return fmt.Errorf("list users: %w", err)
		}
		docs = append(docs, UserDocument(u))
	}
	for p, err := range src.ListPosts(ctx) {
		if err != nil {
			return fmt.Errorf("list posts: %w", err)
		}
		docs = append(docs, PostDocument(p))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.index.Close(); err != nil {
		return fmt.Errorf("close index: %w", err)
	}

	var (
		index bleve.Index
		err   error
	)
	if s.path == "" {
		index, err = bleve.NewMemOnly(buildIndexMapping())
	} else {
		index, err = createIndex(s.path)
	}
	if err != nil {
		return err
	}
	s.index = index
	s.fresh = false

	if err := s.indexBatches(docs); err != nil {
		return err
	}

	s.logger.Info("rebuilt search index", "documents", len(docs))
	return nil
}
