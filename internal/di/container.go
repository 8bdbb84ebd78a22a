// Package di provides dependency injection configuration for the spotlight server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/mtorresweb/spotlight-server/internal/auth"
	"github.com/mtorresweb/spotlight-server/internal/config"
	"github.com/mtorresweb/spotlight-server/internal/di/providers"
	"github.com/mtorresweb/spotlight-server/internal/logger"
	"github.com/mtorresweb/spotlight-server/internal/media"
	"github.com/mtorresweb/spotlight-server/internal/metrics"
	"github.com/mtorresweb/spotlight-server/internal/service"
)

// NewContainer creates and configures the DI container with all providers.
// Configuration is loaded from the process arguments and environment.
func NewContainer() *do.RootScope {
	injector := do.New()
	do.Provide(injector, providers.ProvideConfig)
	register(injector)
	return injector
}

// NewContainerWithConfig is NewContainer with a preloaded configuration, for
// command-line tools that parse their own flags.
func NewContainerWithConfig(cfg *config.Config) *do.RootScope {
	injector := do.New()
	do.ProvideValue(injector, cfg)
	register(injector)
	return injector
}

func register(injector *do.RootScope) {
	// Core infrastructure
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideMetrics)

	// Persistence and caches
	do.Provide(injector, providers.ProvideSSEManager)
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideIdentityCache)
	do.Provide(injector, providers.ProvideObjectStorage)
	do.Provide(injector, providers.ProvideSearchIndex)

	// Auth layer
	do.Provide(injector, providers.ProvideAuthKey)
	do.Provide(injector, providers.ProvideTokenService)
	do.Provide(injector, providers.ProvideVerifier)

	// Core components
	do.Provide(injector, providers.ProvideCounterMaintainer)
	do.Provide(injector, providers.ProvideIdentityResolver)
	do.Provide(injector, providers.ProvideRelations)
	do.Provide(injector, providers.ProvideAssembler)

	// Business services
	do.Provide(injector, providers.ProvideUserService)
	do.Provide(injector, providers.ProvidePostService)
	do.Provide(injector, providers.ProvideCommentService)
	do.Provide(injector, providers.ProvideSearchService)
	do.Provide(injector, providers.ProvideAuditor)

	// Workers
	do.Provide(injector, providers.ProvideCounterAuditJob)
	do.Provide(injector, providers.ProvideRateLimiter)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)
}

// Bootstrap initializes all services and starts the server.
// This triggers lazy initialization of all core services.
func Bootstrap(injector *do.RootScope) error {
	// Invoke core services to trigger initialization; the first failure aborts.
	steps := []func() error{
		invoke[*config.Config](injector),
		invoke[*logger.Logger](injector),
		invoke[*metrics.Metrics](injector),
		invoke[*providers.SSEManagerHandle](injector),
		invoke[*providers.StoreHandle](injector),
		invoke[*providers.IdentityCacheHandle](injector),
		invoke[media.ObjectStorage](injector),
		invoke[*providers.SearchIndexHandle](injector),
		invoke[*auth.TokenService](injector),
		invoke[auth.Verifier](injector),
		invoke[*service.UserService](injector),
		invoke[*service.PostService](injector),
		invoke[*service.CommentService](injector),
		invoke[*service.SearchService](injector),
		invoke[*providers.CounterAuditJob](injector),
		invoke[*providers.HTTPServerHandle](injector),
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}

	// Rebuild the search index if it was just created
	providers.TriggerSearchReindexIfNeeded(injector)

	return nil
}

func invoke[T any](injector do.Injector) func() error {
	return func() error {
		_, err := do.Invoke[T](injector)
		return err
	}
}
