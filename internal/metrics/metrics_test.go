package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"social-connect/internal/social/usecase"
	storeusecase "social-connect/internal/store/usecase"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ storeusecase.Observer = (*Registry)(nil)
	_ usecase.Metrics       = (*Registry)(nil)
)

func TestRegistry_ListenerLifecycle(t *testing.T) {
	r := New()
	r.ListenerOpened("query")
	r.ListenerOpened("query")
	r.ListenerClosed("query")
	r.SnapshotDelivered("query")

	assert.Equal(t, 1.0, testutil.ToFloat64(r.listenersActive.WithLabelValues("query")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.listenersOpened.WithLabelValues("query")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.snapshots.WithLabelValues("query")))
}

func TestRegistry_ComponentCounters(t *testing.T) {
	r := New()
	r.WriteFailed("toggle-like")
	r.WriteRetried("toggle-follow")
	r.WriteRetried("toggle-follow")
	r.StaleDiscarded("feed-assembler")
	r.SnapshotPublished("feed-assembler")
	r.RequestLimited()
	r.SessionsActive(3)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.writesFailed.WithLabelValues("toggle-like")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.writesRetried.WithLabelValues("toggle-follow")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.staleDiscarded.WithLabelValues("feed-assembler")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.published.WithLabelValues("feed-assembler")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.requestsLimited))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.sessionsActive))
}

func TestRegistry_NilIsSafe(t *testing.T) {
	var r *Registry
	assert.NotPanics(t, func() {
		r.ListenerOpened("doc")
		r.ListenerClosed("doc")
		r.SnapshotDelivered("doc")
		r.WriteFailed("x")
		r.WriteRetried("x")
		r.StaleDiscarded("x")
		r.SnapshotPublished("x")
		r.RequestLimited()
		r.SessionsActive(1)
	})
	assert.NotNil(t, r.Handler())
	assert.NotNil(t, r.Gatherer())
}

func TestRegistry_Handler(t *testing.T) {
	r := New()
	r.WriteFailed("send-message")

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `social_connect_writes_failed_total{action="send-message"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
