package session

import (
	"context"
	"strings"
	"sync"

	"social-connect/internal/auth/domain/model"
	"social-connect/internal/auth/usecase"
	"social-connect/internal/shared/docpath"
	"social-connect/internal/shared/errors"
	"social-connect/internal/shared/eventbus"
	"social-connect/internal/shared/logger"
	"social-connect/internal/shared/retry"
	storemodel "social-connect/internal/store/domain/model"
	"social-connect/internal/store/domain/repository"
)

// Reconciler repairs follow edges of an identity, treating the store as ground truth
type Reconciler interface {
	Reconcile(ctx context.Context, identityID string) error
}

// Manager opens and closes sessions around an auth Provider. It implements
// usecase.Provider itself so the auth routes open sessions as a side effect.
type Manager struct {
	provider usecase.Provider
	store    repository.DocumentStore
	bus      eventbus.EventBusInterface
	log      logger.Logger
	policy   retry.Policy

	mu         sync.RWMutex
	reconciler Reconciler
	sessions   map[string]*Session
	current    *Session
	hooks      []func(*Session)
}

var _ usecase.Provider = (*Manager)(nil)

// Option configures a Manager
type Option func(*Manager)

// WithReconciler runs follow reconciliation whenever a session starts
func WithReconciler(r Reconciler) Option {
	return func(m *Manager) { m.reconciler = r }
}

// WithEventBus publishes session.started and session.ended events
func WithEventBus(bus eventbus.EventBusInterface) Option {
	return func(m *Manager) { m.bus = bus }
}

// WithRetryPolicy bounds profile document writes
func WithRetryPolicy(p retry.Policy) Option {
	return func(m *Manager) { m.policy = p }
}

// NewManager creates a Manager
func NewManager(provider usecase.Provider, store repository.DocumentStore, log logger.Logger, opts ...Option) *Manager {
	if log == nil {
		log = logger.NewNopLogger()
	}
	m := &Manager{
		provider: provider,
		store:    store,
		log:      log.WithComponent("session"),
		policy:   retry.DefaultPolicy(),
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetReconciler installs the reconciler after construction
func (m *Manager) SetReconciler(r Reconciler) {
	m.mu.Lock()
	m.reconciler = r
	m.mu.Unlock()
}

// OnChange registers fn to run after a session starts or ends
func (m *Manager) OnChange(fn func(*Session)) {
	m.mu.Lock()
	m.hooks = append(m.hooks, fn)
	m.mu.Unlock()
}

// SignUp registers the account and writes its profile document
func (m *Manager) SignUp(ctx context.Context, req usecase.SignUpRequest) (*model.Identity, string, error) {
	identity, token, err := m.provider.SignUp(ctx, req)
	if err != nil {
		return nil, "", err
	}
	if err := m.writeProfile(ctx, identity, false); err != nil {
		return nil, "", err
	}
	m.start(ctx, identity, token)
	return identity, token, nil
}

// SignIn verifies credentials and opens a session
func (m *Manager) SignIn(ctx context.Context, req usecase.SignInRequest) (*model.Identity, string, error) {
	identity, token, err := m.provider.SignIn(ctx, req)
	if err != nil {
		return nil, "", err
	}
	if err := m.writeProfile(ctx, identity, true); err != nil {
		m.log.WithContext(ctx).Warnf("ensure profile of %s: %v", identity.ID, err)
	}
	m.start(ctx, identity, token)
	return identity, token, nil
}

// SignOut ends the session behind token. The local session is torn down even
// when the provider rejects the call.
func (m *Manager) SignOut(ctx context.Context, token string) error {
	m.evict(ctx, token)
	return m.provider.SignOut(ctx, token)
}

// CurrentIdentity resolves token through Resume
func (m *Manager) CurrentIdentity(ctx context.Context, token string) (*model.Identity, error) {
	sess, err := m.Resume(ctx, token)
	if err != nil {
		return nil, err
	}
	return sess.Identity()
}

func (m *Manager) RequestPasswordReset(ctx context.Context, email string) error {
	return m.provider.RequestPasswordReset(ctx, email)
}

// ResetPassword applies the reset, then ends every open session whose token
// the provider no longer accepts
func (m *Manager) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	if err := m.provider.ResetPassword(ctx, resetToken, newPassword); err != nil {
		return err
	}
	if n := m.Revalidate(ctx); n > 0 {
		m.log.WithContext(ctx).Infof("password reset ended %d sessions", n)
	}
	return nil
}

// Resume returns the live session for token. The provider checks the token on
// every call; a rejected token ends its cached session.
func (m *Manager) Resume(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, errors.NotSignedIn()
	}
	identity, err := m.provider.CurrentIdentity(ctx, token)
	if err != nil {
		if errors.IsAuth(err) {
			m.evict(ctx, token)
		}
		return nil, err
	}

	m.mu.RLock()
	sess, ok := m.sessions[token]
	m.mu.RUnlock()
	if ok && sess.Active() {
		return sess, nil
	}
	return m.start(ctx, identity, token), nil
}

// Revalidate asks the provider about every open session and ends those whose
// token it rejects. Provider outages leave sessions alone. It returns the
// number of sessions ended.
func (m *Manager) Revalidate(ctx context.Context) int {
	m.mu.RLock()
	tokens := make([]string, 0, len(m.sessions))
	for token := range m.sessions {
		tokens = append(tokens, token)
	}
	m.mu.RUnlock()

	ended := 0
	for _, token := range tokens {
		if _, err := m.provider.CurrentIdentity(ctx, token); err != nil && errors.IsAuth(err) {
			if m.evict(ctx, token) {
				ended++
			}
		}
	}
	return ended
}

// Current returns the most recently started session
func (m *Manager) Current() (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil || !m.current.Active() {
		return nil, errors.NotSignedIn()
	}
	return m.current, nil
}

// Active returns the number of open sessions
func (m *Manager) Active() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Close ends every session
func (m *Manager) Close() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.current = nil
	m.mu.Unlock()

	for _, s := range sessions {
		m.end(context.Background(), s)
	}
}

func (m *Manager) start(ctx context.Context, identity *model.Identity, token string) *Session {
	sess := New(identity, token)

	m.mu.Lock()
	if prev, ok := m.sessions[token]; ok && prev.Active() {
		m.mu.Unlock()
		return prev
	}
	m.sessions[token] = sess
	m.current = sess
	reconciler := m.reconciler
	hooks := append([]func(*Session){}, m.hooks...)
	m.mu.Unlock()

	m.log.WithFields(map[string]interface{}{"identity_id": identity.ID}).Info("session started")
	if m.bus != nil {
		m.bus.PublishAndForget(ctx, eventbus.NewEvent(eventbus.EventTypeSessionStarted, "session", identity.ID))
	}
	if reconciler != nil {
		if err := reconciler.Reconcile(ctx, identity.ID); err != nil {
			m.log.WithContext(ctx).Warnf("follow reconciliation for %s failed: %v", identity.ID, err)
		}
	}
	for _, fn := range hooks {
		fn(sess)
	}
	return sess
}

// evict drops the session behind token and tears it down
func (m *Manager) evict(ctx context.Context, token string) bool {
	m.mu.Lock()
	sess, ok := m.sessions[token]
	delete(m.sessions, token)
	if ok && m.current == sess {
		m.current = nil
	}
	m.mu.Unlock()

	if ok {
		m.end(ctx, sess)
	}
	return ok
}

func (m *Manager) end(ctx context.Context, sess *Session) {
	identityID := sess.identity.ID
	sess.End()

	m.mu.RLock()
	hooks := append([]func(*Session){}, m.hooks...)
	m.mu.RUnlock()

	m.log.WithFields(map[string]interface{}{"identity_id": identityID}).Info("session ended")
	if m.bus != nil {
		m.bus.PublishAndForget(ctx, eventbus.NewEvent(eventbus.EventTypeSessionEnded, "session", identityID))
	}
	for _, fn := range hooks {
		fn(sess)
	}
}

// writeProfile creates user/{id}. With onlyIfMissing an existing profile is left alone.
func (m *Manager) writeProfile(ctx context.Context, identity *model.Identity, onlyIfMissing bool) error {
	path := docpath.User(identity.ID)
	if onlyIfMissing {
		_, err := m.store.GetDocument(ctx, path)
		if err == nil {
			return nil
		}
		if !errors.IsNotFound(err) {
			return errors.Wrap(err, "read profile")
		}
	}

	profile := map[string]interface{}{
		"displayName": strings.TrimSpace(identity.DisplayName),
		"avatarUrl":   "",
		"bio":         "",
		"createdAt":   storemodel.ServerTimestamp,
	}
	err := retry.Do(ctx, m.policy, func(ctx context.Context, attempt int) error {
		return m.store.SetDocument(ctx, path, profile, storemodel.SetOptions{Merge: true})
	})
	if err != nil {
		return errors.NewRemoteError("create profile failed").WithCode(errors.CodeUnknown).WithCause(err)
	}
	return nil
}
