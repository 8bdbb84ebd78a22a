package providers

import (
	"context"
	"fmt"

	"github.com/samber/do/v2"

	"github.com/mtorresweb/spotlight-server/internal/cache"
	"github.com/mtorresweb/spotlight-server/internal/config"
	"github.com/mtorresweb/spotlight-server/internal/logger"
	"github.com/mtorresweb/spotlight-server/internal/metrics"
	"github.com/mtorresweb/spotlight-server/internal/sse"
	"github.com/mtorresweb/spotlight-server/internal/store"
	"github.com/mtorresweb/spotlight-server/internal/store/badgerstore"
	"github.com/mtorresweb/spotlight-server/internal/store/sqlite"
)

// SSEManagerHandle wraps the SSE manager with its context for lifecycle management.
type SSEManagerHandle struct {
	*sse.Manager
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *SSEManagerHandle) Shutdown() error {
	h.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Manager.Shutdown(ctx)
}

// ProvideSSEManager provides the server-sent events manager.
func ProvideSSEManager(i do.Injector) (*SSEManagerHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)
	m := do.MustInvoke[*metrics.Metrics](i)

	manager := sse.NewManager(log.Logger, sse.WithMetrics(m))

	// Start in background
	ctx, cancel := context.WithCancel(context.Background())
	go manager.Start(ctx)

	log.Info("SSE manager started")

	return &SSEManagerHandle{
		Manager: manager,
		cancel:  cancel,
	}, nil
}

// StoreHandle wraps the store with shutdown capability.
type StoreHandle struct {
	store.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore opens the configured backend.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	m := do.MustInvoke[*metrics.Metrics](i)

	var (
		db  store.Store
		err error
	)
	switch cfg.Store.Backend {
	case config.StoreSQLite:
		db, err = sqlite.Open(cfg.Store.Path, log.Logger,
			sqlite.WithMaxRetries(cfg.Store.MaxTxnRetries),
			sqlite.WithRetryObserver(m.TxnRetried(config.StoreSQLite)))
	default:
		db, err = badgerstore.New(cfg.Store.Path, log.Logger,
			badgerstore.WithMaxRetries(cfg.Store.MaxTxnRetries),
			badgerstore.WithRetryObserver(m.TxnRetried(config.StoreBadger)))
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Backend, err)
	}

	log.Info("Database initialized", "backend", db.Backend(), "path", cfg.Store.Path)

	return &StoreHandle{Store: db}, nil
}

// IdentityCacheHandle wraps the Redis identity cache. Cache is nil when no
// Redis URL is configured.
type IdentityCacheHandle struct {
	Cache *cache.IdentityCache
}

// Shutdown implements do.Shutdownable.
func (h *IdentityCacheHandle) Shutdown() error {
	if h.Cache == nil {
		return nil
	}
	return h.Cache.Close()
}

// ProvideIdentityCache connects to Redis when configured. A failed connection
// is logged and the server runs without the cache.
func ProvideIdentityCache(i do.Injector) (*IdentityCacheHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if cfg.Redis.URL == "" {
		log.Info("Identity cache disabled")
		return &IdentityCacheHandle{}, nil
	}

	c, err := cache.NewIdentityCache(cfg.Redis.URL, cfg.Redis.TTL)
	if err != nil {
		log.Warn("Identity cache unavailable, resolving from store", "error", err)
		return &IdentityCacheHandle{}, nil
	}

	log.Info("Identity cache connected", "ttl", cfg.Redis.TTL)
	return &IdentityCacheHandle{Cache: c}, nil
}
