package logger

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONInProduction(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Writer: &buf, Environment: "production", Level: slog.LevelInfo})

	log.Info("post created", "post_id", "pst-1")

	assert.Contains(t, buf.String(), `"msg":"post created"`)
	assert.Contains(t, buf.String(), `"post_id":"pst-1"`)
}

func TestNew_PrettyInDevelopment(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Writer: &buf, Environment: "development", Level: slog.LevelInfo})

	log.Info("feed assembled", "count", 3)

	out := buf.String()
	assert.Contains(t, out, "INF")
	assert.Contains(t, out, "feed assembled")
	assert.Contains(t, out, "count=3")
}

func TestNew_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Writer: &buf, Format: "json", Level: slog.LevelWarn})

	log.Info("hidden")
	log.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "level %q", in)
	}
}

func TestLogger_Helpers(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Writer: &buf, Format: "json", Level: slog.LevelDebug})

	log.WithViewer("usr-1").WithField("post_id", "pst-9").WithError(errors.New("boom")).Info("toggle failed")

	out := buf.String()
	assert.Contains(t, out, `"viewer_id":"usr-1"`)
	assert.Contains(t, out, `"post_id":"pst-9"`)
	assert.Contains(t, out, `"error":"boom"`)
	assert.Same(t, log, log.WithError(nil))
}

func TestPrettyHandler_GroupsAndQuoting(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewPrettyHandler(&buf, nil)).WithGroup("req").With("method", "GET")

	log.Info("served", "path", "/api/v1/feed", "note", "two words")

	out := buf.String()
	assert.Contains(t, out, "req.method=GET")
	assert.Contains(t, out, "req.path=/api/v1/feed")
	assert.Contains(t, out, `req.note="two words"`)
}

func TestContextCarrier(t *testing.T) {
	fallback := Discard()
	assert.Same(t, fallback, FromContext(context.Background(), fallback))

	scoped := Discard().With("request_id", "r1")
	ctx := NewContext(context.Background(), scoped)
	require.NotNil(t, FromContext(ctx, fallback))
	assert.Same(t, scoped, FromContext(ctx, fallback))
}
