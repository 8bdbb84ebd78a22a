// Package providers contains dependency injection providers for the spotlight server.
package providers

import (
	"os"

	"github.com/samber/do/v2"

	"github.com/mtorresweb/spotlight-server/internal/config"
	"github.com/mtorresweb/spotlight-server/internal/logger"
	"github.com/mtorresweb/spotlight-server/internal/metrics"
)

// ProvideConfig provides the application configuration from the process
// arguments and environment.
func ProvideConfig(i do.Injector) (*config.Config, error) {
	return config.Load(os.Args[1:])
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		Format:      cfg.Logger.Format,
		AddSource:   cfg.App.Environment == "development",
		Environment: cfg.App.Environment,
	})

	log.Info("Starting spotlight server",
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"data_path", cfg.App.DataPath,
		"store", cfg.Store.Backend,
		"auth", cfg.Auth.Provider,
		"media", cfg.Media.Backend,
	)

	return log, nil
}

// ProvideMetrics provides the Prometheus collectors, or nil when disabled.
func ProvideMetrics(i do.Injector) (*metrics.Metrics, error) {
	cfg := do.MustInvoke[*config.Config](i)
	if !cfg.Metrics.Enabled {
		return nil, nil
	}
	return metrics.New(), nil
}
