package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	authmodel "social-connect/internal/auth/domain/model"
	"social-connect/internal/session"
	"social-connect/internal/shared/docpath"
	"social-connect/internal/shared/retry"
	"social-connect/internal/social/live"
	"social-connect/internal/social/notify"
	"social-connect/internal/store/adapter/memory"
	storemodel "social-connect/internal/store/domain/model"

	"github.com/stretchr/testify/require"
)

type countingMetrics struct {
	mu     sync.Mutex
	counts map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{counts: make(map[string]int)}
}

func (m *countingMetrics) inc(key string) {
	m.mu.Lock()
	m.counts[key]++
	m.mu.Unlock()
}

func (m *countingMetrics) get(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[key]
}

func (m *countingMetrics) WriteFailed(action string)          { m.inc("failed:" + action) }
func (m *countingMetrics) WriteRetried(action string)         { m.inc("retried:" + action) }
func (m *countingMetrics) StaleDiscarded(component string)    { m.inc("stale:" + component) }
func (m *countingMetrics) SnapshotPublished(component string) { m.inc("published:" + component) }

type testEnv struct {
	ctx     context.Context
	store   *memory.Store
	notes   *notify.Recorder
	metrics *countingMetrics
	deps    Deps
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store, err := memory.NewStore(nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	notes := &notify.Recorder{}
	metrics := newCountingMetrics()
	return &testEnv{
		ctx:     context.Background(),
		store:   store,
		notes:   notes,
		metrics: metrics,
		deps: Deps{
			Store:    store,
			Notifier: notes,
			Metrics:  metrics,
			Retry:    retry.Policy{MaxAttempts: 3, Delay: time.Millisecond, MaxDelay: 5 * time.Millisecond},
			Backoff:  retry.Policy{Delay: 5 * time.Millisecond, MaxDelay: 20 * time.Millisecond},
		}.withDefaults(),
	}
}

func (e *testEnv) session(id, name string) *session.Session {
	return session.New(&authmodel.Identity{ID: id, Email: id + "@example.com", DisplayName: name}, "token-"+id)
}

func (e *testEnv) seedProfile(t *testing.T, id, name string) {
	t.Helper()
	require.NoError(t, e.store.SetDocument(e.ctx, docpath.User(id), map[string]interface{}{
		"displayName": name,
		"avatarUrl":   "https://img.example.com/" + id,
		"bio":         "",
	}, storemodel.SetOptions{}))
}

func (e *testEnv) seedPost(t *testing.T, id, author string, createdAt time.Time, likers ...string) {
	t.Helper()
	ids := make([]interface{}, len(likers))
	for i, l := range likers {
		ids[i] = l
	}
	require.NoError(t, e.store.SetDocument(e.ctx, docpath.Post(id), map[string]interface{}{
		"authorId":  author,
		"text":      "post " + id,
		"createdAt": createdAt,
		"likerIds":  ids,
	}, storemodel.SetOptions{}))
}

func (e *testEnv) seedComment(t *testing.T, postID, author, text string) {
	t.Helper()
	_, err := e.store.AddDocument(e.ctx, docpath.Comments(postID), map[string]interface{}{
		"authorId":  author,
		"text":      text,
		"createdAt": storemodel.ServerTimestamp,
	})
	require.NoError(t, err)
}

func (e *testEnv) exists(t *testing.T, path string) bool {
	t.Helper()
	_, err := e.store.GetDocument(e.ctx, path)
	return err == nil
}

// waitFor reads s until match accepts a value
func waitFor[T any](t *testing.T, s *live.Stream[T], match func(T) bool) T {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case v, ok := <-s.Updates():
			require.True(t, ok, "stream closed before a matching value arrived")
			if match(v) {
				return v
			}
		case <-deadline:
			t.Fatal("timed out waiting for a matching stream value")
		}
	}
}

func anyValue[T any](T) bool { return true }
