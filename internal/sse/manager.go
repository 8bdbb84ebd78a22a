package sse

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mtorresweb/spotlight-server/internal/id"
	"github.com/mtorresweb/spotlight-server/internal/metrics"
)

const (
	defaultQueueSize    = 1000
	defaultClientBuffer = 100
)

// Client is one open event stream. A user may hold several, one per device.
type Client struct {
	ID          string
	UserID      string
	ConnectedAt time.Time
	EventChan   chan Event
	Done        chan struct{}
}

// Option configures a Manager.
type Option func(*Manager)

// WithQueueSize sets how many emitted events may wait for fan-out.
func WithQueueSize(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.queueSize = n
		}
	}
}

// WithClientBuffer sets how many events a client may fall behind before
// further events to it are dropped.
func WithClientBuffer(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.clientBuffer = n
		}
	}
}

// WithMetrics reports drops and connection counts.
func WithMetrics(mx *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mx }
}

// Manager fans emitted events out to connected clients. Events addressed to a
// user reach only that user's streams; the rest reach everyone.
type Manager struct {
	logger       *slog.Logger
	metrics      *metrics.Metrics
	queueSize    int
	clientBuffer int
	queue        chan Event
	running      sync.WaitGroup

	mu      sync.RWMutex
	byUser  map[string]map[string]*Client
	clients int

	// closeMu guards queue against sends after close.
	closeMu sync.RWMutex
	closed  bool
}

// NewManager creates a Manager. Call Start before emitting.
func NewManager(logger *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		logger:       logger,
		queueSize:    defaultQueueSize,
		clientBuffer: defaultClientBuffer,
		byUser:       make(map[string]map[string]*Client),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.queue = make(chan Event, m.queueSize)
	return m
}

// Start delivers queued events until ctx is done or the manager shuts down.
func (m *Manager) Start(ctx context.Context) {
	m.running.Add(1)
	defer m.running.Done()

	for {
		select {
		case event, ok := <-m.queue:
			if !ok {
				return
			}
			m.deliver(event)
		case <-ctx.Done():
			m.closeAll()
			return
		}
	}
}

// Shutdown stops accepting events, delivers the ones already queued and
// closes every stream.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.closeMu.Lock()
	if m.closed {
		m.closeMu.Unlock()
		return nil
	}
	m.closed = true
	close(m.queue)
	m.closeMu.Unlock()

	drained := make(chan struct{})
	go func() {
		for event := range m.queue {
			m.deliver(event)
		}
		close(drained)
	}()

	select {
	case <-drained:
	case <-ctx.Done():
		m.logger.Warn("event queue not drained before shutdown deadline")
	}

	m.running.Wait()
	m.closeAll()
	m.logger.Info("event streams closed")
	return nil
}

// Emit queues event for delivery. It never blocks; when the queue is full
// the event is dropped.
func (m *Manager) Emit(event Event) {
	m.closeMu.RLock()
	defer m.closeMu.RUnlock()
	if m.closed {
		return
	}

	select {
	case m.queue <- event:
	default:
		m.metrics.SSEDropped(string(event.Type))
		m.logger.Error("event queue full, dropping event", slog.String("event_type", string(event.Type)))
	}
}

// Connect opens a stream for userID.
func (m *Manager) Connect(userID string) (*Client, error) {
	clientID, err := id.Generate("sse")
	if err != nil {
		return nil, err
	}
	c := &Client{
		ID:          clientID,
		UserID:      userID,
		ConnectedAt: time.Now(),
		EventChan:   make(chan Event, m.clientBuffer),
		Done:        make(chan struct{}),
	}

	m.mu.Lock()
	streams, ok := m.byUser[userID]
	if !ok {
		streams = make(map[string]*Client)
		m.byUser[userID] = streams
	}
	streams[c.ID] = c
	m.clients++
	total := m.clients
	m.mu.Unlock()

	m.metrics.SSEClients(total)
	m.logger.Debug("event stream opened",
		slog.String("client_id", c.ID),
		slog.String("user_id", userID),
		slog.Int("clients", total))
	return c, nil
}

// Disconnect closes c. Closing an already closed client does nothing.
func (m *Manager) Disconnect(c *Client) {
	m.mu.Lock()
	streams := m.byUser[c.UserID]
	if _, ok := streams[c.ID]; !ok {
		m.mu.Unlock()
		return
	}
	delete(streams, c.ID)
	if len(streams) == 0 {
		delete(m.byUser, c.UserID)
	}
	m.clients--
	total := m.clients
	m.mu.Unlock()

	close(c.Done)
	close(c.EventChan)

	m.metrics.SSEClients(total)
	m.logger.Debug("event stream closed",
		slog.String("client_id", c.ID),
		slog.Duration("duration", time.Since(c.ConnectedAt)),
		slog.Int("clients", total))
}

// ClientCount returns the number of open streams.
func (m *Manager) ClientCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.clients
}

// UserCount returns the number of users with at least one open stream.
func (m *Manager) UserCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byUser)
}

func (m *Manager) deliver(event Event) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if event.UserID != "" {
		for _, c := range m.byUser[event.UserID] {
			m.send(c, event)
		}
		return
	}
	for _, streams := range m.byUser {
		for _, c := range streams {
			m.send(c, event)
		}
	}
}

// send must be called with mu held so c cannot be closed underneath it.
func (m *Manager) send(c *Client, event Event) {
	select {
	case c.EventChan <- event:
	default:
		m.metrics.SSEDropped(string(event.Type))
		m.logger.Warn("dropped event for slow client",
			slog.String("client_id", c.ID),
			slog.String("event_type", string(event.Type)))
	}
}

func (m *Manager) closeAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, streams := range m.byUser {
		for _, c := range streams {
			close(c.Done)
			close(c.EventChan)
		}
	}
	m.byUser = make(map[string]map[string]*Client)
	m.clients = 0
	m.metrics.SSEClients(0)
}
