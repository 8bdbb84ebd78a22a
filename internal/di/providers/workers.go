package providers

import (
	"context"
	"time"

	"github.com/samber/do/v2"

	"github.com/mtorresweb/spotlight-server/internal/config"
	"github.com/mtorresweb/spotlight-server/internal/logger"
	"github.com/mtorresweb/spotlight-server/internal/ratelimit"
	"github.com/mtorresweb/spotlight-server/internal/service"
)

// CounterAuditJob runs the periodic counter audit.
type CounterAuditJob struct {
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (j *CounterAuditJob) Shutdown() error {
	j.cancel()
	return nil
}

// ProvideCounterAuditJob starts the background audit. Drift is logged, and
// repaired when configured.
func ProvideCounterAuditJob(i do.Injector) (*CounterAuditJob, error) {
	cfg := do.MustInvoke[*config.Config](i)
	auditor := do.MustInvoke[*service.Auditor](i)
	log := do.MustInvoke[*logger.Logger](i)

	ctx, cancel := context.WithCancel(context.Background())
	if cfg.Audit.Interval == 0 {
		log.Info("Counter audit disabled by configuration")
		return &CounterAuditJob{cancel: cancel}, nil
	}

	run := func() {
		report, err := auditor.Audit(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.Warn("Counter audit failed", "error", err)
			}
			return
		}
		if report.OK() {
			log.Debug("Counter audit clean", "users", report.Users, "posts", report.Posts)
			return
		}
		log.Warn("Counter drift detected", "drift", len(report.Drift))
		if !cfg.Audit.Repair {
			return
		}
		fixed, err := auditor.Repair(ctx, report)
		if err != nil {
			log.Error("Counter repair failed", "error", err, "fixed", fixed)
			return
		}
		log.Info("Counter repair completed", "fixed", fixed)
	}

	go func() {
		ticker := time.NewTicker(cfg.Audit.Interval)
		defer ticker.Stop()

		run()
		for {
			select {
			case <-ticker.C:
				run()
			case <-ctx.Done():
				return
			}
		}
	}()

	log.Info("Counter audit job started", "interval", cfg.Audit.Interval, "repair", cfg.Audit.Repair)

	return &CounterAuditJob{cancel: cancel}, nil
}

// RateLimiterHandle wraps the keyed limiter so its eviction loop stops on
// shutdown.
type RateLimiterHandle struct {
	*ratelimit.KeyedRateLimiter
}

// Shutdown implements do.Shutdownable.
func (h *RateLimiterHandle) Shutdown() error {
	h.Stop()
	return nil
}

// ProvideRateLimiter provides the per-principal mutation limiter.
func ProvideRateLimiter(i do.Injector) (*RateLimiterHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	return &RateLimiterHandle{
		KeyedRateLimiter: ratelimit.New(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst),
	}, nil
}
