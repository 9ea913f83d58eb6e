package live

import "sync"

// Reducer serialises state replacement. Every input is stamped with a
// generation from Next; an input older than the applied state is discarded.
type Reducer[T any] struct {
	mu      sync.Mutex
	issued  uint64
	applied uint64
	state   T
	has     bool
	stale   uint64

	equal   func(a, b T) bool
	onStale func()
}

// ReducerOption configures a Reducer
type ReducerOption[T any] func(*Reducer[T])

// WithEqual suppresses a publish when the new state equals the current one
func WithEqual[T any](equal func(a, b T) bool) ReducerOption[T] {
	return func(r *Reducer[T]) { r.equal = equal }
}

// WithStaleHook runs fn for every discarded input
func WithStaleHook[T any](fn func()) ReducerOption[T] {
	return func(r *Reducer[T]) { r.onStale = fn }
}

// NewReducer creates an empty reducer
func NewReducer[T any](opts ...ReducerOption[T]) *Reducer[T] {
	r := &Reducer[T]{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Next issues a new generation
func (r *Reducer[T]) Next() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.issued++
	return r.issued
}

// Latest returns the newest generation issued so far
func (r *Reducer[T]) Latest() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.issued
}

// Apply installs v computed for generation gen. publish runs under the
// reducer lock, so publishes are never reordered. Apply reports whether v
// became the current state.
func (r *Reducer[T]) Apply(gen uint64, v T, publish func(T)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if gen <= r.applied {
		r.stale++
		if r.onStale != nil {
			r.onStale()
		}
		return false
	}
	r.applied = gen

	if r.has && r.equal != nil && r.equal(r.state, v) {
		return true
	}
	r.state = v
	r.has = true
	if publish != nil {
		publish(v)
	}
	return true
}

// Current returns the applied state and its generation
func (r *Reducer[T]) Current() (T, uint64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state, r.applied, r.has
}

// Stale counts discarded inputs
func (r *Reducer[T]) Stale() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stale
}
