// Package config loads spotlight server configuration from flags, environment variables and .env files.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "SPOTLIGHT_"

// Store backends.
const (
	StoreBadger = "badger"
	StoreSQLite = "sqlite"
)

// Auth providers.
const (
	AuthPaseto = "paseto"
	AuthJWT    = "jwt"
)

// Media backends.
const (
	MediaLocal = "local"
	MediaS3    = "s3"
)

// Config holds the application configuration.
type Config struct {
	App       AppConfig
	Logger    LoggerConfig
	Server    ServerConfig
	Store     StoreConfig
	Auth      AuthConfig
	Redis     RedisConfig
	Media     MediaConfig
	Search    SearchConfig
	Feed      FeedConfig
	RateLimit RateLimitConfig
	Metrics   MetricsConfig
	Audit     AuditConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
	DataPath    string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level  string
	Format string // json or pretty; empty picks by environment
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port           string
	PublicURL      string
	AllowedOrigins []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
}

// StoreConfig selects and locates the persistence backend.
type StoreConfig struct {
	Backend string
	Path    string
	// MaxTxnRetries bounds reruns of a transaction that lost a write conflict.
	MaxTxnRetries int
}

// AuthConfig configures bearer token verification.
type AuthConfig struct {
	Provider string
	// KeyPath holds the PASETO v4 local key; generated on first start.
	KeyPath  string
	TokenTTL time.Duration
	// JWT settings for an external identity provider.
	JWTSecret   string
	JWTIssuer   string
	JWTAudience string
}

// RedisConfig configures the identity cache. An empty URL disables it.
type RedisConfig struct {
	URL string
	TTL time.Duration
}

// MediaConfig configures image object storage.
type MediaConfig struct {
	Backend     string
	Path        string
	MaxUpload   int64
	S3Endpoint  string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3UseSSL    bool
	URLExpiry   time.Duration
}

// SearchConfig configures the bleve index. An empty Path keeps it in memory.
type SearchConfig struct {
	Enabled bool
	Path    string
}

// FeedConfig tunes feed assembly.
type FeedConfig struct {
	Concurrency int
}

// RateLimitConfig limits mutations per principal.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool
}

// AuditConfig schedules the background counter audit. A zero Interval
// disables it.
type AuditConfig struct {
	Interval time.Duration
	Repair   bool
}

// Load builds the configuration with precedence:
// 1. Command-line flags.
// 2. Environment variables.
// 3. .env file.
// 4. Defaults.
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("spotlight", flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	dataPath := fs.String("data-path", "", "Base directory for persistent data")
	port := fs.String("port", "", "Server port (default: 8080)")
	publicURL := fs.String("public-url", "", "Public base URL used for media links")
	storeBackend := fs.String("store", "", "Store backend (badger, sqlite)")
	authProvider := fs.String("auth-provider", "", "Token verifier (paseto, jwt)")
	redisURL := fs.String("redis-url", "", "Redis URL for the identity cache")
	mediaBackend := fs.String("media", "", "Media backend (local, s3)")
	envFile := fs.String("env-file", ".env", "Path to .env file")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	// Missing .env files are fine; godotenv never overrides variables already set.
	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load env file %s: %w", *envFile, err)
	}

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
			DataPath:    getConfigValue(*dataPath, "DATA_PATH", ""),
		},
		Logger: LoggerConfig{
			Level:  getConfigValue(*logLevel, "LOG_LEVEL", "info"),
			Format: getConfigValue("", "LOG_FORMAT", ""),
		},
		Server: ServerConfig{
			Port:           getConfigValue(*port, "PORT", "8080"),
			PublicURL:      getConfigValue(*publicURL, "PUBLIC_URL", ""),
			AllowedOrigins: getListConfigValue("ALLOWED_ORIGINS", []string{"*"}),
		},
		Store: StoreConfig{
			Backend:       getConfigValue(*storeBackend, "STORE_BACKEND", StoreBadger),
			Path:          getConfigValue("", "STORE_PATH", ""),
			MaxTxnRetries: getIntConfigValue("STORE_MAX_TXN_RETRIES", 100),
		},
		Auth: AuthConfig{
			Provider:    getConfigValue(*authProvider, "AUTH_PROVIDER", AuthPaseto),
			KeyPath:     getConfigValue("", "AUTH_KEY_PATH", ""),
			JWTSecret:   getConfigValue("", "JWT_SECRET", ""),
			JWTIssuer:   getConfigValue("", "JWT_ISSUER", ""),
			JWTAudience: getConfigValue("", "JWT_AUDIENCE", ""),
		},
		Redis: RedisConfig{
			URL: getConfigValue(*redisURL, "REDIS_URL", ""),
		},
		Media: MediaConfig{
			Backend:     getConfigValue(*mediaBackend, "MEDIA_BACKEND", MediaLocal),
			Path:        getConfigValue("", "MEDIA_PATH", ""),
			MaxUpload:   int64(getIntConfigValue("MEDIA_MAX_UPLOAD_BYTES", 10<<20)),
			S3Endpoint:  getConfigValue("", "S3_ENDPOINT", ""),
			S3Bucket:    getConfigValue("", "S3_BUCKET", "spotlight"),
			S3AccessKey: getConfigValue("", "S3_ACCESS_KEY", ""),
			S3SecretKey: getConfigValue("", "S3_SECRET_KEY", ""),
			S3UseSSL:    getBoolConfigValue("S3_USE_SSL", true),
		},
		Search: SearchConfig{
			Enabled: getBoolConfigValue("SEARCH_ENABLED", true),
			Path:    getConfigValue("", "SEARCH_PATH", ""),
		},
		Feed: FeedConfig{
			Concurrency: getIntConfigValue("FEED_CONCURRENCY", 8),
		},
		RateLimit: RateLimitConfig{
			Burst: getIntConfigValue("RATE_LIMIT_BURST", 20),
		},
		Metrics: MetricsConfig{
			Enabled: getBoolConfigValue("METRICS_ENABLED", true),
		},
		Audit: AuditConfig{
			Repair: getBoolConfigValue("AUDIT_REPAIR", false),
		},
	}

	rps, err := strconv.ParseFloat(getConfigValue("", "RATE_LIMIT_RPS", "5"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid rate limit rps: %w", err)
	}
	cfg.RateLimit.RequestsPerSecond = rps

	durations := []struct {
		key, def string
		dst      *time.Duration
	}{
		{"SERVER_READ_TIMEOUT", "15s", &cfg.Server.ReadTimeout},
		{"SERVER_WRITE_TIMEOUT", "30s", &cfg.Server.WriteTimeout},
		{"SERVER_IDLE_TIMEOUT", "60s", &cfg.Server.IdleTimeout},
		{"AUTH_TOKEN_TTL", "720h", &cfg.Auth.TokenTTL},
		{"REDIS_TTL", "1h", &cfg.Redis.TTL},
		{"MEDIA_URL_EXPIRY", "24h", &cfg.Media.URLExpiry},
		{"AUDIT_INTERVAL", "6h", &cfg.Audit.Interval},
	}
	for _, d := range durations {
		raw := getConfigValue("", d.key, d.def)
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s%s %q: %w", EnvPrefix, d.key, raw, err)
		}
		*d.dst = parsed
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks enums and ranges.
func (c *Config) Validate() error {
	switch c.App.Environment {
	case "development", "staging", "production":
	case "":
		return errors.New("environment is required")
	default:
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	switch strings.ToLower(c.Logger.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Store.Backend != StoreBadger && c.Store.Backend != StoreSQLite {
		return fmt.Errorf("invalid store backend: %s (must be badger or sqlite)", c.Store.Backend)
	}
	if c.Store.MaxTxnRetries < 1 {
		return fmt.Errorf("invalid store max txn retries: %d (must be at least 1)", c.Store.MaxTxnRetries)
	}

	switch c.Auth.Provider {
	case AuthPaseto:
	case AuthJWT:
		if c.Auth.JWTSecret == "" {
			return errors.New("jwt auth provider requires a JWT secret")
		}
	default:
		return fmt.Errorf("invalid auth provider: %s (must be paseto or jwt)", c.Auth.Provider)
	}

	switch c.Media.Backend {
	case MediaLocal:
	case MediaS3:
		if c.Media.S3Endpoint == "" || c.Media.S3Bucket == "" {
			return errors.New("s3 media backend requires an endpoint and bucket")
		}
	default:
		return fmt.Errorf("invalid media backend: %s (must be local or s3)", c.Media.Backend)
	}

	if c.Media.MaxUpload <= 0 {
		return errors.New("media max upload must be positive")
	}
	if c.Feed.Concurrency < 1 {
		return errors.New("feed concurrency must be at least 1")
	}
	if c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst < 1 {
		return errors.New("rate limit requires positive rps and burst")
	}
	if c.Audit.Interval < 0 {
		return errors.New("audit interval must not be negative")
	}

	return nil
}

// expandPaths resolves the data directory and derives unset paths from it.
func (c *Config) expandPaths() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	base, err := expandPath(c.App.DataPath, filepath.Join(home, ".spotlight"))
	if err != nil {
		return fmt.Errorf("invalid data path: %w", err)
	}
	c.App.DataPath = base

	storeDefault := filepath.Join(base, "db")
	if c.Store.Backend == StoreSQLite {
		storeDefault = filepath.Join(base, "spotlight.db")
	}

	paths := []struct {
		dst *string
		def string
	}{
		{&c.Store.Path, storeDefault},
		{&c.Auth.KeyPath, filepath.Join(base, "keys")},
		{&c.Media.Path, filepath.Join(base, "media")},
		{&c.Search.Path, filepath.Join(base, "search")},
	}
	for _, p := range paths {
		expanded, err := expandPath(*p.dst, p.def)
		if err != nil {
			return fmt.Errorf("invalid path %q: %w", *p.dst, err)
		}
		*p.dst = expanded
	}
	return nil
}

// expandPath expands ~ and makes path absolute; empty paths take defaultPath.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	if !filepath.IsAbs(path) {
		abs, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = abs
	}

	return filepath.Clean(path), nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if v := os.Getenv(EnvPrefix + envKey); v != "" {
		return v
	}
	return defaultValue
}

// getBoolConfigValue accepts true, 1 and yes (case-insensitive) as true.
func getBoolConfigValue(envKey string, defaultValue bool) bool {
	v := getConfigValue("", envKey, "")
	if v == "" {
		return defaultValue
	}
	switch strings.ToLower(v) {
	case "true", "1", "yes":
		return true
	default:
		return false
	}
}

func getIntConfigValue(envKey string, defaultValue int) int {
	v := getConfigValue("", envKey, "")
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue
	}
	return n
}

// getListConfigValue splits a comma-separated variable.
func getListConfigValue(envKey string, defaultValue []string) []string {
	v := getConfigValue("", envKey, "")
	if v == "" {
		return defaultValue
	}
	var out []string
	for part := range strings.SplitSeq(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
