// Package media stores uploaded post images and derives their placeholders.
package media

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/crypto/blake2b"
)

// ErrObjectNotFound is returned when a key has no stored object.
var ErrObjectNotFound = errors.New("object not found")

// ErrUnsupportedType is returned for uploads that are not a supported image.
var ErrUnsupportedType = errors.New("unsupported image type")

// Object describes a stored image.
type Object struct {
	Key         string `json:"storage_id"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// ObjectStorage holds image bytes under content keys.
type ObjectStorage interface {
	// Put stores data uploaded by owner and returns its key. Storing the same
	// bytes twice for one owner yields the same key.
	Put(ctx context.Context, owner string, data []byte) (Object, error)
	// Open returns a reader for key. The caller closes it.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Exists(ctx context.Context, key string) (bool, error)
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// URL returns a URL clients can fetch key from.
	URL(ctx context.Context, key string) (string, error)
}

// Presigner is implemented by backends that can hand out direct,
// short-lived download URLs.
type Presigner interface {
	PresignedURL(ctx context.Context, key string) (string, error)
}

var extensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/webp": "webp",
}

var keyPattern = regexp.MustCompile(`^[0-9a-f]{64}\.(jpg|png|gif|webp)$`)

// DetectType sniffs data and returns its image content type.
func DetectType(data []byte) (string, error) {
	ct := http.DetectContentType(data)
	if _, ok := extensions[ct]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, ct)
	}
	return ct, nil
}

// ContentKey derives the storage key for data uploaded by owner: a blake2b-256
// digest keyed by the owner id, plus the image extension.
func ContentKey(owner string, data []byte) (Object, error) {
	ct, err := DetectType(data)
	if err != nil {
		return Object{}, err
	}

	// blake2b keys are limited to 64 bytes; longer owner ids are hashed first.
	key := []byte(owner)
	if len(key) > blake2b.Size {
		sum := blake2b.Sum512(key)
		key = sum[:]
	}
	h, err := blake2b.New256(key)
	if err != nil {
		return Object{}, fmt.Errorf("init hash: %w", err)
	}
	h.Write(data)

	return Object{
		Key:         hex.EncodeToString(h.Sum(nil)) + "." + extensions[ct],
		ContentType: ct,
		Size:        int64(len(data)),
	}, nil
}

// ValidKey reports whether key has the shape produced by ContentKey.
func ValidKey(key string) bool {
	return keyPattern.MatchString(key)
}

// ContentTypeOf returns the content type implied by key's extension.
func ContentTypeOf(key string) string {
	ext := key[strings.LastIndexByte(key, '.')+1:]
	for ct, e := range extensions {
		if e == ext {
			return ct
		}
	}
	return "application/octet-stream"
}

// LocalStorage keeps objects as files under a directory.
// Thread-safe for concurrent operations.
type LocalStorage struct {
	basePath  string
	publicURL string
	mu        sync.RWMutex
}

// NewLocalStorage creates the directory if needed. URLs are built as
// {publicURL}/media/{key}.
func NewLocalStorage(basePath, publicURL string) (*LocalStorage, error) {
	if basePath == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create media directory: %w", err)
	}
	return &LocalStorage{
		basePath:  basePath,
		publicURL: strings.TrimRight(publicURL, "/"),
	}, nil
}

// Put implements ObjectStorage.
func (s *LocalStorage) Put(ctx context.Context, owner string, data []byte) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}
	obj, err := ContentKey(owner, data)
	if err != nil {
		return Object{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.path(obj.Key)
	if _, err := os.Stat(path); err == nil {
		return obj, nil
	}

	// Write then rename so readers never see a partial file.
	tmp, err := os.CreateTemp(s.basePath, ".upload-*")
	if err != nil {
		return Object{}, fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return Object{}, fmt.Errorf("failed to write image file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return Object{}, fmt.Errorf("failed to write image file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return Object{}, fmt.Errorf("failed to store image file: %w", err)
	}

	return obj, nil
}

// Open implements ObjectStorage.
func (s *LocalStorage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	if !ValidKey(key) {
		return nil, ErrObjectNotFound
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	f, err := os.Open(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to open image file: %w", err)
	}
	return f, nil
}

// Exists implements ObjectStorage.
func (s *LocalStorage) Exists(_ context.Context, key string) (bool, error) {
	if !ValidKey(key) {
		return false, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, err := os.Stat(s.path(key))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat image file: %w", err)
}

// Delete implements ObjectStorage.
func (s *LocalStorage) Delete(_ context.Context, key string) error {
	if !ValidKey(key) {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete image file: %w", err)
	}
	return nil
}

// URL implements ObjectStorage.
func (s *LocalStorage) URL(_ context.Context, key string) (string, error) {
	return s.publicURL + "/media/" + key, nil
}

func (s *LocalStorage) path(key string) string {
	return filepath.Join(s.basePath, key)
}
