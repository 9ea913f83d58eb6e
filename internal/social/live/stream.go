package live

import (
	"context"
	"sync"
)

// Stream is a cancellable producer of snapshot values. Delivery is latest-wins:
// a consumer that falls behind sees only the newest value.
type Stream[T any] struct {
	mu      sync.Mutex
	updates chan T
	closed  bool

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
	hooks  []func()
}

// NewStream creates a stream that is cancelled together with parent
func NewStream[T any](parent context.Context) *Stream[T] {
	ctx, cancel := context.WithCancel(parent)
	return &Stream[T]{
		updates: make(chan T, 1),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Updates delivers snapshot values until the producer closes the stream
func (s *Stream[T]) Updates() <-chan T { return s.updates }

// Context is done once the stream is cancelled
func (s *Stream[T]) Context() context.Context { return s.ctx }

// Done is closed on cancellation
func (s *Stream[T]) Done() <-chan struct{} { return s.ctx.Done() }

// OnCancel registers fn to run once when the stream is cancelled
func (s *Stream[T]) OnCancel(fn func()) {
	s.mu.Lock()
	s.hooks = append(s.hooks, fn)
	s.mu.Unlock()
}

// Publish replaces any undelivered value with v. It reports false once the
// stream is cancelled or closed.
func (s *Stream[T]) Publish(v T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.ctx.Err() != nil {
		return false
	}
	select {
	case <-s.updates:
	default:
	}
	s.updates <- v
	return true
}

// Cancel stops the producer. It is safe to call more than once.
func (s *Stream[T]) Cancel() {
	s.once.Do(func() {
		s.cancel()
		s.mu.Lock()
		hooks := s.hooks
		s.hooks = nil
		s.mu.Unlock()
		for _, fn := range hooks {
			fn()
		}
	})
}

// Close is called by the producer when it stops; Updates is closed afterwards
func (s *Stream[T]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.updates)
	}
}
