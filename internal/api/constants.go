package api

// API limits and constants.
const (
	// MaxUploadSize is the default limit for image uploads (10 MB).
	MaxUploadSize = 10 << 20
)

// Cache-Control header values.
const (
	CacheImmutable = "public, max-age=604800, immutable"
	CacheNoStore   = "no-store"
)
