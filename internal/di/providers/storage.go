package providers

import (
	"context"
	"fmt"

	"github.com/samber/do/v2"

	"github.com/mtorresweb/spotlight-server/internal/config"
	"github.com/mtorresweb/spotlight-server/internal/logger"
	"github.com/mtorresweb/spotlight-server/internal/media"
)

// ProvideObjectStorage provides image storage for the configured backend.
func ProvideObjectStorage(i do.Injector) (media.ObjectStorage, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	publicURL := cfg.Server.PublicURL
	if publicURL == "" {
		publicURL = "http://localhost:" + cfg.Server.Port
	}

	if cfg.Media.Backend == config.MediaS3 {
		s3, err := media.NewS3Storage(media.S3Config{
			Endpoint:  cfg.Media.S3Endpoint,
			Bucket:    cfg.Media.S3Bucket,
			AccessKey: cfg.Media.S3AccessKey,
			SecretKey: cfg.Media.S3SecretKey,
			UseSSL:    cfg.Media.S3UseSSL,
			PublicURL: publicURL,
			URLExpiry: cfg.Media.URLExpiry,
		}, log.Logger)
		if err != nil {
			return nil, fmt.Errorf("s3 storage: %w", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s3.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("s3 bucket: %w", err)
		}

		log.Info("Media storage initialized", "backend", "s3", "bucket", cfg.Media.S3Bucket)
		return s3, nil
	}

	local, err := media.NewLocalStorage(cfg.Media.Path, publicURL)
	if err != nil {
		return nil, fmt.Errorf("local storage: %w", err)
	}

	log.Info("Media storage initialized", "backend", "local", "path", cfg.Media.Path)
	return local, nil
}
