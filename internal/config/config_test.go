package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		App:       AppConfig{Environment: "development", DataPath: "/data"},
		Logger:    LoggerConfig{Level: "info"},
		Store:     StoreConfig{Backend: StoreBadger, Path: "/data/db", MaxTxnRetries: 100},
		Auth:      AuthConfig{Provider: AuthPaseto},
		Media:     MediaConfig{Backend: MediaLocal, MaxUpload: 1 << 20},
		Feed:      FeedConfig{Concurrency: 4},
		RateLimit: RateLimitConfig{RequestsPerSecond: 5, Burst: 10},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{"empty environment", func(c *Config) { c.App.Environment = "" }, "environment is required"},
		{"unknown environment", func(c *Config) { c.App.Environment = "test" }, "invalid environment"},
		{"bad log level", func(c *Config) { c.Logger.Level = "trace" }, "invalid log level"},
		{"bad store backend", func(c *Config) { c.Store.Backend = "mongo" }, "invalid store backend"},
		{"zero txn retries", func(c *Config) { c.Store.MaxTxnRetries = 0 }, "max txn retries"},
		{"jwt without secret", func(c *Config) { c.Auth.Provider = AuthJWT }, "requires a JWT secret"},
		{"unknown auth provider", func(c *Config) { c.Auth.Provider = "oauth" }, "invalid auth provider"},
		{"s3 without endpoint", func(c *Config) { c.Media.Backend = MediaS3; c.Media.S3Bucket = "b" }, "endpoint and bucket"},
		{"zero concurrency", func(c *Config) { c.Feed.Concurrency = 0 }, "feed concurrency"},
		{"zero burst", func(c *Config) { c.RateLimit.Burst = 0 }, "rate limit"},
		{"zero upload", func(c *Config) { c.Media.MaxUpload = 0 }, "max upload"},
		{"negative audit interval", func(c *Config) { c.Audit.Interval = -time.Second }, "audit interval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv(EnvPrefix+"DATA_PATH", dataDir)

	cfg, err := Load([]string{"-env-file", filepath.Join(dataDir, "missing.env")})
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.App.Environment)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, StoreBadger, cfg.Store.Backend)
	assert.Equal(t, filepath.Join(dataDir, "db"), cfg.Store.Path)
	assert.Equal(t, 100, cfg.Store.MaxTxnRetries)
	assert.Equal(t, filepath.Join(dataDir, "keys"), cfg.Auth.KeyPath)
	assert.Equal(t, filepath.Join(dataDir, "media"), cfg.Media.Path)
	assert.Equal(t, 720*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 8, cfg.Feed.Concurrency)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Empty(t, cfg.Redis.URL)
	assert.Equal(t, 6*time.Hour, cfg.Audit.Interval)
	assert.False(t, cfg.Audit.Repair)
}

func TestLoad_Precedence(t *testing.T) {
	dataDir := t.TempDir()
	envFile := filepath.Join(dataDir, "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte(
		"SPOTLIGHT_PORT=7000\nSPOTLIGHT_LOG_LEVEL=debug\nSPOTLIGHT_FEED_CONCURRENCY=3\n",
	), 0o600))

	t.Setenv(EnvPrefix+"DATA_PATH", dataDir)
	t.Setenv(EnvPrefix+"LOG_LEVEL", "warn")
	t.Setenv(EnvPrefix+"STORE_MAX_TXN_RETRIES", "250")
	// godotenv writes straight to the process environment.
	t.Cleanup(func() {
		os.Unsetenv(EnvPrefix + "PORT")
		os.Unsetenv(EnvPrefix + "FEED_CONCURRENCY")
	})

	cfg, err := Load([]string{"-env-file", envFile, "-store", "sqlite", "-port", "9090"})
	require.NoError(t, err)

	// Flag beats .env.
	assert.Equal(t, "9090", cfg.Server.Port)
	// Real environment beats .env.
	assert.Equal(t, "warn", cfg.Logger.Level)
	// .env beats default.
	assert.Equal(t, 3, cfg.Feed.Concurrency)
	assert.Equal(t, StoreSQLite, cfg.Store.Backend)
	assert.Equal(t, filepath.Join(dataDir, "spotlight.db"), cfg.Store.Path)
	assert.Equal(t, 250, cfg.Store.MaxTxnRetries)
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv(EnvPrefix+"DATA_PATH", t.TempDir())
	t.Setenv(EnvPrefix+"AUTH_TOKEN_TTL", "forever")

	_, err := Load([]string{"-env-file", "nope.env"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AUTH_TOKEN_TTL")
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := expandPath("~/spotlight", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "spotlight"), got)

	got, err = expandPath("", "/default")
	require.NoError(t, err)
	assert.Equal(t, "/default", got)
}

func TestGetListConfigValue(t *testing.T) {
	t.Setenv(EnvPrefix+"ALLOWED_ORIGINS", "https://a.example, https://b.example,,")
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, getListConfigValue("ALLOWED_ORIGINS", nil))
}
