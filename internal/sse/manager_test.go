package sse

import (
	"bufio"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtorresweb/spotlight-server/internal/domain"
	"github.com/mtorresweb/spotlight-server/internal/logger"
	"github.com/mtorresweb/spotlight-server/internal/metrics"
)

func startManager(t *testing.T) *Manager {
	t.Helper()
	m := NewManager(logger.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	go m.Start(ctx)
	t.Cleanup(func() {
		cancel()
		_ = m.Shutdown(context.Background())
	})
	return m
}

func receive(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case e := <-c.EventChan:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func assertNoEvent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case e := <-c.EventChan:
		t.Fatalf("unexpected event %s", e.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestManager_BroadcastAndUserFilter(t *testing.T) {
	m := startManager(t)

	ana, err := m.Connect("usr-ana")
	require.NoError(t, err)
	bruno, err := m.Connect("usr-bruno")
	require.NoError(t, err)
	assert.Equal(t, 2, m.ClientCount())

	m.Emit(NewPostLikedEvent("pst-1", "usr-ana", true, 3))
	assert.Equal(t, EventPostLiked, receive(t, ana).Type)
	assert.Equal(t, EventPostLiked, receive(t, bruno).Type)

	m.Emit(NewPostBookmarkedEvent("pst-1", "usr-ana", true))
	got := receive(t, ana)
	assert.Equal(t, EventPostBookmarked, got.Type)
	assert.NotEmpty(t, got.ID)
	assertNoEvent(t, bruno)

	m.Disconnect(bruno)
	assert.Equal(t, 1, m.ClientCount())
}

func TestManager_EmitAfterShutdownIsDropped(t *testing.T) {
	m := NewManager(logger.Discard())
	require.NoError(t, m.Shutdown(context.Background()))

	assert.NotPanics(t, func() {
		m.Emit(NewPostDeletedEvent("pst-1", "usr-1"))
	})
	// Second shutdown is a no-op.
	require.NoError(t, m.Shutdown(context.Background()))
}

func TestNewUserUpdatedEvent_PublicFieldsOnly(t *testing.T) {
	e := NewUserUpdatedEvent(&domain.User{ID: "usr-1", Username: "ana", Email: "ana@example.com", Principal: "sub"})
	data, ok := e.Data.(UserEventData)
	require.True(t, ok)
	assert.Equal(t, "ana", data.User.Username)
}

func TestHandler_StreamsEvents(t *testing.T) {
	m := startManager(t)

	h := NewHandler(m, func(r *http.Request) (string, error) {
		if r.Header.Get("Authorization") == "" {
			return "", errors.New("no token")
		}
		return "usr-ana", nil
	}, logger.Discard())

	srv := httptest.NewServer(h)
	defer srv.Close()

	// Unauthenticated requests are rejected before streaming.
	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer x")

	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	readFrame := func() string {
		var sb strings.Builder
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			if line == "\n" {
				return sb.String()
			}
			sb.WriteString(line)
		}
	}

	assert.Contains(t, readFrame(), "event: connected")

	require.Eventually(t, func() bool { return m.ClientCount() == 1 }, time.Second, 10*time.Millisecond)
	m.Emit(NewPostCreatedEvent(&domain.Post{ID: "pst-9", UserID: "usr-bruno"}))

	frame := readFrame()
	assert.Contains(t, frame, "id: ")
	assert.Contains(t, frame, "event: post.created")
	assert.Contains(t, frame, `"pst-9"`)
}

func TestManager_TargetedEventReachesEveryDevice(t *testing.T) {
	m := startManager(t)

	phone, err := m.Connect("usr-ana")
	require.NoError(t, err)
	laptop, err := m.Connect("usr-ana")
	require.NoError(t, err)
	other, err := m.Connect("usr-bruno")
	require.NoError(t, err)
	assert.Equal(t, 3, m.ClientCount())
	assert.Equal(t, 2, m.UserCount())

	m.Emit(NewPostBookmarkedEvent("pst-1", "usr-ana", true))
	assert.Equal(t, EventPostBookmarked, receive(t, phone).Type)
	assert.Equal(t, EventPostBookmarked, receive(t, laptop).Type)
	assertNoEvent(t, other)

	m.Disconnect(phone)
	m.Disconnect(phone)
	assert.Equal(t, 2, m.ClientCount())
	assert.Equal(t, 2, m.UserCount())

	m.Disconnect(laptop)
	assert.Equal(t, 1, m.UserCount())
}

func TestManager_SlowClientDropsEvents(t *testing.T) {
	mx := metrics.New()
	m := NewManager(logger.Discard(), WithClientBuffer(1), WithMetrics(mx))
	ctx, cancel := context.WithCancel(context.Background())
	go m.Start(ctx)
	t.Cleanup(func() {
		cancel()
		_ = m.Shutdown(context.Background())
	})

	c, err := m.Connect("usr-ana")
	require.NoError(t, err)

	m.Emit(NewPostLikedEvent("pst-1", "usr-bruno", true, 1))
	m.Emit(NewPostLikedEvent("pst-1", "usr-carla", true, 2))

	require.Eventually(t, func() bool {
		n, err := testutil.GatherAndCount(mx.Registry(), "spotlight_sse_events_dropped_total")
		return err == nil && n == 1
	}, time.Second, 10*time.Millisecond)

	first := receive(t, c)
	assert.Equal(t, "usr-bruno", first.Data.(PostLikedEventData).UserID)
	assertNoEvent(t, c)
}

func TestManager_ShutdownClosesStreams(t *testing.T) {
	m := NewManager(logger.Discard())
	go m.Start(context.Background())

	c, err := m.Connect("usr-ana")
	require.NoError(t, err)

	require.NoError(t, m.Shutdown(context.Background()))
	_, open := <-c.Done
	assert.False(t, open)
	assert.Zero(t, m.ClientCount())

	// The handler's deferred Disconnect after shutdown is harmless.
	assert.NotPanics(t, func() { m.Disconnect(c) })
}
