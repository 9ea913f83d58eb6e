package http

import (
	"sync"

	"social-connect/internal/metrics"
	"social-connect/internal/session"
	"social-connect/internal/social"
)

// clientRegistry keeps one social client per live session. A client is
// dropped when its session ends.
type clientRegistry struct {
	mu      sync.Mutex
	module  *social.SocialModule
	metrics *metrics.Registry
	clients map[*session.Session]*social.Client
}

func newClientRegistry(module *social.SocialModule, m *metrics.Registry) *clientRegistry {
	return &clientRegistry{
		module:  module,
		metrics: m,
		clients: make(map[*session.Session]*social.Client),
	}
}

func (r *clientRegistry) get(sess *session.Session) *social.Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	if client, ok := r.clients[sess]; ok {
		return client
	}
	client := r.module.Client(sess)
	r.clients[sess] = client
	r.metrics.SessionsActive(len(r.clients))

	go func() {
		<-sess.Done()
		r.drop(sess)
	}()
	return client
}

func (r *clientRegistry) drop(sess *session.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, sess)
	r.metrics.SessionsActive(len(r.clients))
}

func (r *clientRegistry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

func (r *clientRegistry) clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients = make(map[*session.Session]*social.Client)
	r.metrics.SessionsActive(0)
}
