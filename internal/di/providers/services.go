package providers

import (
	"github.com/samber/do/v2"

	"github.com/mtorresweb/spotlight-server/internal/config"
	"github.com/mtorresweb/spotlight-server/internal/domain"
	"github.com/mtorresweb/spotlight-server/internal/feed"
	"github.com/mtorresweb/spotlight-server/internal/logger"
	"github.com/mtorresweb/spotlight-server/internal/media"
	"github.com/mtorresweb/spotlight-server/internal/metrics"
	"github.com/mtorresweb/spotlight-server/internal/service"
)

// Relations groups the three toggle relation stores.
type Relations struct {
	Likes     *service.RelationStore
	Bookmarks *service.RelationStore
	Follows   *service.RelationStore
}

// ProvideCounterMaintainer provides the denormalized counter maintainer.
func ProvideCounterMaintainer(i do.Injector) (*service.CounterMaintainer, error) {
	log := do.MustInvoke[*logger.Logger](i)
	return service.NewCounterMaintainer(log.Logger), nil
}

// ProvideIdentityResolver provides principal resolution, cached in Redis
// when available.
func ProvideIdentityResolver(i do.Injector) (*service.IdentityResolver, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	cacheHandle := do.MustInvoke[*IdentityCacheHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	var principals service.PrincipalCache
	if cacheHandle.Cache != nil {
		principals = cacheHandle.Cache
	}
	return service.NewIdentityResolver(storeHandle.Store, principals, log.Logger), nil
}

// ProvideRelations provides the like, bookmark and follow relation stores.
func ProvideRelations(i do.Injector) (*Relations, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	counters := do.MustInvoke[*service.CounterMaintainer](i)
	m := do.MustInvoke[*metrics.Metrics](i)
	log := do.MustInvoke[*logger.Logger](i)

	return &Relations{
		Likes:     service.NewRelationStore(domain.RelationLike, storeHandle.Store, counters, m, log.Logger),
		Bookmarks: service.NewRelationStore(domain.RelationBookmark, storeHandle.Store, counters, m, log.Logger),
		Follows:   service.NewRelationStore(domain.RelationFollow, storeHandle.Store, counters, m, log.Logger),
	}, nil
}

// ProvideAssembler provides the feed assembler.
func ProvideAssembler(i do.Injector) (*feed.Assembler, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	relations := do.MustInvoke[*Relations](i)
	m := do.MustInvoke[*metrics.Metrics](i)
	log := do.MustInvoke[*logger.Logger](i)

	return feed.NewAssembler(storeHandle.Store, relations.Likes, relations.Bookmarks, cfg.Feed.Concurrency, m, log.Logger), nil
}

// ProvideUserService provides account provisioning, profiles and follows.
func ProvideUserService(i do.Injector) (*service.UserService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	identity := do.MustInvoke[*service.IdentityResolver](i)
	relations := do.MustInvoke[*Relations](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewUserService(storeHandle.Store, identity, relations.Follows, indexHandle.Indexer(), sseHandle.Manager, log.Logger), nil
}

// ProvidePostService provides uploads, posts, toggles and feeds.
func ProvidePostService(i do.Injector) (*service.PostService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	relations := do.MustInvoke[*Relations](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewPostService(service.PostServiceDeps{
		Store:     storeHandle.Store,
		Identity:  do.MustInvoke[*service.IdentityResolver](i),
		Likes:     relations.Likes,
		Bookmarks: relations.Bookmarks,
		Counters:  do.MustInvoke[*service.CounterMaintainer](i),
		Assembler: do.MustInvoke[*feed.Assembler](i),
		Objects:   do.MustInvoke[media.ObjectStorage](i),
		Indexer:   indexHandle.Indexer(),
		Emitter:   sseHandle.Manager,
		Logger:    log.Logger,
	}), nil
}

// ProvideCommentService provides comment append and listing.
func ProvideCommentService(i do.Injector) (*service.CommentService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	identity := do.MustInvoke[*service.IdentityResolver](i)
	counters := do.MustInvoke[*service.CounterMaintainer](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	m := do.MustInvoke[*metrics.Metrics](i)
	log := do.MustInvoke[*logger.Logger](i)

	thread := service.NewCommentThread(storeHandle.Store, counters)
	return service.NewCommentService(storeHandle.Store, identity, thread, sseHandle.Manager, m, log.Logger), nil
}

// ProvideSearchService provides user and caption search.
func ProvideSearchService(i do.Injector) (*service.SearchService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	identity := do.MustInvoke[*service.IdentityResolver](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	assembler := do.MustInvoke[*feed.Assembler](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewSearchService(storeHandle.Store, identity, indexHandle.Searcher(), assembler, log.Logger), nil
}

// ProvideAuditor provides the counter consistency auditor.
func ProvideAuditor(i do.Injector) (*service.Auditor, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	counters := do.MustInvoke[*service.CounterMaintainer](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewAuditor(storeHandle.Store, counters, log.Logger), nil
}
