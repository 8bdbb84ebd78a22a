package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Config configures an S3-compatible bucket.
type S3Config struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
	// PublicURL is the server base URL; post image URLs point at its
	// /media route, which redirects to a presigned GET.
	PublicURL string
	// URLExpiry bounds presigned GET URLs.
	URLExpiry time.Duration
}

var (
	_ ObjectStorage = (*S3Storage)(nil)
	_ Presigner     = (*S3Storage)(nil)
)

// S3Storage keeps objects in an S3-compatible bucket.
type S3Storage struct {
	client    *minio.Client
	bucket    string
	publicURL string
	expiry    time.Duration
	logger    *slog.Logger
}

// NewS3Storage creates a client. It does not contact the server; call
// EnsureBucket before first use.
func NewS3Storage(cfg S3Config, logger *slog.Logger) (*S3Storage, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 endpoint and bucket are required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.URLExpiry <= 0 {
		cfg.URLExpiry = 24 * time.Hour
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}

	return &S3Storage{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: strings.TrimRight(cfg.PublicURL, "/"),
		expiry:    cfg.URLExpiry,
		logger:    logger,
	}, nil
}

// EnsureBucket creates the bucket if it does not exist.
func (s *S3Storage) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	s.logger.Info("created media bucket", "bucket", s.bucket)
	return nil
}

// Put implements ObjectStorage.
func (s *S3Storage) Put(ctx context.Context, owner string, data []byte) (Object, error) {
	obj, err := ContentKey(owner, data)
	if err != nil {
		return Object{}, err
	}

	_, err = s.client.PutObject(ctx, s.bucket, obj.Key, bytes.NewReader(data), obj.Size, minio.PutObjectOptions{
		ContentType:  obj.ContentType,
		CacheControl: "public, max-age=31536000, immutable",
	})
	if err != nil {
		return Object{}, fmt.Errorf("put object %s: %w", obj.Key, err)
	}
	return obj, nil
}

// Open implements ObjectStorage.
func (s *S3Storage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if ok, err := s.Exists(ctx, key); err != nil {
		return nil, err
	} else if !ok {
		return nil, ErrObjectNotFound
	}

	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", key, err)
	}
	return obj, nil
}

// Exists implements ObjectStorage.
func (s *S3Storage) Exists(ctx context.Context, key string) (bool, error) {
	if !ValidKey(key) {
		return false, nil
	}
	_, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if isNoSuchKey(err) {
		return false, nil
	}
	return false, fmt.Errorf("stat object %s: %w", key, err)
}

// Delete implements ObjectStorage.
func (s *S3Storage) Delete(ctx context.Context, key string) error {
	if !ValidKey(key) {
		return nil
	}
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil && !isNoSuchKey(err) {
		return fmt.Errorf("remove object %s: %w", key, err)
	}
	return nil
}

// URL implements ObjectStorage. The URL is stable; presigned links are
// minted per request by PresignedURL.
func (s *S3Storage) URL(_ context.Context, key string) (string, error) {
	return s.publicURL + "/media/" + key, nil
}

// PresignedURL returns a short-lived direct GET URL for key.
func (s *S3Storage) PresignedURL(ctx context.Context, key string) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return u.String(), nil
}

func isNoSuchKey(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound
}
