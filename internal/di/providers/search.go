package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/mtorresweb/spotlight-server/internal/config"
	"github.com/mtorresweb/spotlight-server/internal/logger"
	"github.com/mtorresweb/spotlight-server/internal/search"
	"github.com/mtorresweb/spotlight-server/internal/service"
)

// SearchIndexHandle wraps the search index with shutdown capability. Index
// is nil when search is disabled.
type SearchIndexHandle struct {
	Index *search.Index
}

// Shutdown implements do.Shutdownable.
func (h *SearchIndexHandle) Shutdown() error {
	if h.Index == nil {
		return nil
	}
	return h.Index.Close()
}

// Indexer returns the index as a service.SearchIndexer, or a no-op one when
// search is disabled.
func (h *SearchIndexHandle) Indexer() service.SearchIndexer {
	if h.Index == nil {
		return service.NoopIndexer{}
	}
	return h.Index
}

// Searcher returns the index for queries, or nil when search is disabled.
func (h *SearchIndexHandle) Searcher() service.Searcher {
	if h.Index == nil {
		return nil
	}
	return h.Index
}

// ProvideSearchIndex provides the Bleve search index.
func ProvideSearchIndex(i do.Injector) (*SearchIndexHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if !cfg.Search.Enabled {
		log.Info("Search disabled by configuration")
		return &SearchIndexHandle{}, nil
	}

	index, err := search.NewIndex(search.Options{
		DataPath: cfg.Search.Path,
		Logger:   log.Logger,
	})
	if err != nil {
		return nil, err
	}

	docCount, _ := index.DocumentCount()
	log.Info("Search index initialized", "documents", docCount, "fresh", index.Fresh())

	return &SearchIndexHandle{Index: index}, nil
}

// TriggerSearchReindexIfNeeded rebuilds a freshly created index from the
// store in the background.
func TriggerSearchReindexIfNeeded(i do.Injector) {
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	if indexHandle.Index == nil || !indexHandle.Index.Fresh() {
		return
	}

	log.Info("Search index is new, triggering reindex")

	go func() {
		if err := indexHandle.Index.Reindex(context.Background(), storeHandle.Store); err != nil {
			log.Error("Search reindex failed", "error", err)
			return
		}
		count, _ := indexHandle.Index.DocumentCount()
		log.Info("Search reindex completed", "documents", count)
	}()
}
