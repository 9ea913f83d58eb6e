package session

import (
	"sync"
	"time"

	"social-connect/internal/auth/domain/model"
	"social-connect/internal/shared/errors"
)

// Canceler is the cancellation handle of a live subscription
type Canceler interface {
	Cancel()
}

// Session is the authenticated context every sync component is built with.
// Ending it cancels every subscription tracked under it.
type Session struct {
	identity  model.Identity
	token     string
	startedAt time.Time

	mu     sync.Mutex
	ended  bool
	nextID uint64
	subs   map[uint64]Canceler
	done   chan struct{}
}

// New starts a session for identity
func New(identity *model.Identity, token string) *Session {
	return &Session{
		identity:  *identity,
		token:     token,
		startedAt: time.Now().UTC(),
		subs:      make(map[uint64]Canceler),
		done:      make(chan struct{}),
	}
}

// Identity returns the signed-in identity, or an AuthError once the session ended
func (s *Session) Identity() (*model.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return nil, errors.NotSignedIn()
	}
	id := s.identity
	return &id, nil
}

// IdentityID is Identity().ID
func (s *Session) IdentityID() (string, error) {
	identity, err := s.Identity()
	if err != nil {
		return "", err
	}
	return identity.ID, nil
}

func (s *Session) Token() string        { return s.token }
func (s *Session) StartedAt() time.Time { return s.startedAt }

// Done is closed when the session ends
func (s *Session) Done() <-chan struct{} { return s.done }

// Active reports whether End has not been called yet
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.ended
}

// Track registers c for cancellation at teardown. The returned func removes it
// again. Tracking on an ended session cancels c immediately.
func (s *Session) Track(c Canceler) (untrack func()) {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		c.Cancel()
		return func() {}
	}
	id := s.nextID
	s.nextID++
	s.subs[id] = c
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Subscriptions returns the number of tracked subscriptions
func (s *Session) Subscriptions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// End tears the session down. It is safe to call more than once.
func (s *Session) End() {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	subs := s.subs
	s.subs = make(map[uint64]Canceler)
	close(s.done)
	s.mu.Unlock()

	for _, c := range subs {
		c.Cancel()
	}
}
