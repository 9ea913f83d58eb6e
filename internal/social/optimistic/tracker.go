package optimistic

import (
	"context"
	"sync"
)

type entry[V comparable] struct {
	value V
	token uint64
}

// Tracker overlays locally applied values on remote state until the remote
// echo agrees, and reverts them when the write fails.
type Tracker[K comparable, V comparable] struct {
	mu        sync.Mutex
	next      uint64
	overlay   map[K]entry[V]
	nextL     uint64
	listeners map[uint64]func(K)
}

// NewTracker creates an empty Tracker
func NewTracker[K comparable, V comparable]() *Tracker[K, V] {
	return &Tracker[K, V]{overlay: make(map[K]entry[V]), listeners: make(map[uint64]func(K))}
}

// OnChange registers fn to run whenever an overlay value appears or is
// rolled back. The returned func unregisters it.
func (t *Tracker[K, V]) OnChange(fn func(K)) func() {
	t.mu.Lock()
	id := t.nextL
	t.nextL++
	t.listeners[id] = fn
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		delete(t.listeners, id)
		t.mu.Unlock()
	}
}

// Apply shows v for key until Settle or Rollback
func (t *Tracker[K, V]) Apply(key K, v V) uint64 {
	t.mu.Lock()
	t.next++
	token := t.next
	t.overlay[key] = entry[V]{value: v, token: token}
	listeners := t.snapshotListeners()
	t.mu.Unlock()

	notify(listeners, key)
	return token
}

// Rollback drops the overlay set by Apply with token. A newer Apply on the
// same key is left alone.
func (t *Tracker[K, V]) Rollback(key K, token uint64) {
	t.mu.Lock()
	e, ok := t.overlay[key]
	if !ok || e.token != token {
		t.mu.Unlock()
		return
	}
	delete(t.overlay, key)
	listeners := t.snapshotListeners()
	t.mu.Unlock()

	notify(listeners, key)
}

// Settle drops the overlay of key once the remote value matches it
func (t *Tracker[K, V]) Settle(key K, remote V) {
	t.mu.Lock()
	e, ok := t.overlay[key]
	if ok && e.value == remote {
		delete(t.overlay, key)
	}
	t.mu.Unlock()
}

// Resolve returns the overlay value of key, or remote when none is pending
func (t *Tracker[K, V]) Resolve(key K, remote V) V {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.overlay[key]; ok {
		return e.value
	}
	return remote
}

// Pending reports whether key has an unconfirmed local value
func (t *Tracker[K, V]) Pending(key K) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.overlay[key]
	return ok
}

// Run applies v, issues write and rolls back when write fails
func (t *Tracker[K, V]) Run(ctx context.Context, key K, v V, write func(ctx context.Context) error) error {
	token := t.Apply(key, v)
	if err := write(ctx); err != nil {
		t.Rollback(key, token)
		return err
	}
	return nil
}

func (t *Tracker[K, V]) snapshotListeners() []func(K) {
	out := make([]func(K), 0, len(t.listeners))
	for _, fn := range t.listeners {
		out = append(out, fn)
	}
	return out
}

func notify[K comparable](listeners []func(K), key K) {
	for _, fn := range listeners {
		fn(key)
	}
}
