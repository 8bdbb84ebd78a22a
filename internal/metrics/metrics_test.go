package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.RelationToggled("like", true)
		m.CommentAdded()
		m.ObserveAssembly("feed", time.Millisecond)
		m.FeedPostOmitted(ReasonMissing)
		m.TxnRetried("badger")()
	})

	h := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTeapot) })
	rec := httptest.NewRecorder()
	m.Middleware(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestCounters(t *testing.T) {
	m := New()

	m.RelationToggled("like", true)
	m.RelationToggled("like", true)
	m.RelationToggled("like", false)
	m.CommentAdded()
	m.FeedPostOmitted(ReasonError)
	m.TxnRetried("sqlite")()
	m.SSEDropped("post.liked")
	m.SSEClients(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.relationToggles.WithLabelValues("like", "added")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.relationToggles.WithLabelValues("like", "removed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.commentsAdded))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.feedOmitted.WithLabelValues(ReasonError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.txnRetries.WithLabelValues("sqlite")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sseDropped.WithLabelValues("post.liked")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.sseClients))
}

func TestMiddleware_LabelsByRoutePattern(t *testing.T) {
	m := New()

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/v1/posts/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Handle("/metrics", m.Handler())

	for _, id := range []string{"pst-1", "pst-2"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/posts/"+id, nil))
		require.Equal(t, http.StatusNotFound, rec.Code)
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "/api/v1/posts/{id}", "404")))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "spotlight_http_requests_total"))
}
