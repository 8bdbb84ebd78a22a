package providers

import (
	"context"
	"errors"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/mtorresweb/spotlight-server/internal/api"
	"github.com/mtorresweb/spotlight-server/internal/auth"
	"github.com/mtorresweb/spotlight-server/internal/config"
	"github.com/mtorresweb/spotlight-server/internal/logger"
	"github.com/mtorresweb/spotlight-server/internal/media"
	"github.com/mtorresweb/spotlight-server/internal/metrics"
	"github.com/mtorresweb/spotlight-server/internal/service"
)

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// ProvideHTTPServer provides the HTTP server and starts it in the background.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	limiter := do.MustInvoke[*RateLimiterHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	services := &api.Services{
		Identity: do.MustInvoke[*service.IdentityResolver](i),
		Users:    do.MustInvoke[*service.UserService](i),
		Posts:    do.MustInvoke[*service.PostService](i),
		Comments: do.MustInvoke[*service.CommentService](i),
		Search:   do.MustInvoke[*service.SearchService](i),
	}

	handler := api.NewServer(api.Options{
		Store:          storeHandle.Store,
		Services:       services,
		Verifier:       do.MustInvoke[auth.Verifier](i),
		Objects:        do.MustInvoke[media.ObjectStorage](i),
		Search:         indexHandle.Index,
		Events:         sseHandle.Manager,
		Metrics:        do.MustInvoke[*metrics.Metrics](i),
		Limiter:        limiter.KeyedRateLimiter,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		MaxUploadSize:  cfg.Media.MaxUpload,
		Logger:         log.Logger,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start in background
	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
		}
	}()

	log.Info("Server running", "addr", srv.Addr)

	return &HTTPServerHandle{Server: srv}, nil
}
