package usecase

import (
	"context"
	"sync"
	"time"

	"social-connect/internal/shared/docpath"
	"social-connect/internal/shared/errors"
	"social-connect/internal/shared/logger"
	"social-connect/internal/store/domain/model"
	"social-connect/internal/store/domain/repository"

	"github.com/google/uuid"
)

// Reader is the read side a listener re-runs after every relevant change
type Reader interface {
	GetDocument(ctx context.Context, path string) (*model.Document, error)
	RunQuery(ctx context.Context, query model.Query) ([]*model.Document, error)
}

// Observer receives listener lifecycle counts. Implemented by the metrics registry.
type Observer interface {
	ListenerOpened(kind string)
	ListenerClosed(kind string)
	SnapshotDelivered(kind string)
}

const (
	kindQuery    = "query"
	kindDocument = "document"
)

// ListenerHub turns change feed events into full snapshots for every
// registered listener. A listener re-reads its query or document whenever a
// change touches it; changes arriving while a read or a delivery is pending
// coalesce into one re-read, so consumers always receive the newest state.
type ListenerHub struct {
	reader   Reader
	log      logger.Logger
	observer Observer

	mu        sync.RWMutex
	listeners map[string]*listener
	closed    bool

	ctx    context.Context
	cancel context.CancelFunc
}

// HubOption configures a ListenerHub
type HubOption func(*ListenerHub)

// WithObserver reports listener activity to o
func WithObserver(o Observer) HubOption {
	return func(h *ListenerHub) { h.observer = o }
}

// NewListenerHub wires a hub to the change feed. The hub stops listening on Close.
func NewListenerHub(reader Reader, feed repository.ChangeFeed, log logger.Logger, opts ...HubOption) (*ListenerHub, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	h := &ListenerHub{
		reader:    reader,
		log:       log.WithComponent("listener-hub"),
		listeners: make(map[string]*listener),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(h)
	}
	if err := feed.Listen(ctx, h.onChange); err != nil {
		cancel()
		return nil, errors.Wrap(err, "listen on change feed")
	}
	return h, nil
}

// Subscribe registers a query listener. The first snapshot is delivered as soon as it is read.
func (h *ListenerHub) Subscribe(ctx context.Context, query model.Query) (repository.Subscription, error) {
	if err := query.Validate(); err != nil {
		return nil, errors.NewValidationError(err.Error())
	}
	if err := docpath.ValidateCollectionPath(query.Collection); err != nil {
		return nil, err
	}
	return h.register(ctx, &listener{kind: kindQuery, query: query})
}

// SubscribeDocument registers a single-document listener
func (h *ListenerHub) SubscribeDocument(ctx context.Context, path string) (repository.Subscription, error) {
	if err := docpath.ValidateDocumentPath(path); err != nil {
		return nil, err
	}
	return h.register(ctx, &listener{kind: kindDocument, path: path})
}

func (h *ListenerHub) register(ctx context.Context, l *listener) (repository.Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, errors.Wrap(errors.ErrStoreClosed, "subscribe")
	}

	l.id = uuid.NewString()
	l.hub = h
	l.dirty = make(chan struct{}, 1)
	l.out = make(chan model.Snapshot, 1)
	l.ctx, l.cancel = context.WithCancel(ctx)
	h.listeners[l.id] = l

	if h.observer != nil {
		h.observer.ListenerOpened(l.kind)
	}
	h.log.Debugf("listener %s registered (%s %s)", l.id, l.kind, l.target())

	l.markDirty()
	go l.run()
	return l, nil
}

// ActiveListeners returns the number of registered listeners
func (h *ListenerHub) ActiveListeners() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners)
}

// Close cancels every listener and detaches from the change feed
func (h *ListenerHub) Close() {
	h.mu.Lock()
	h.closed = true
	listeners := make([]*listener, 0, len(h.listeners))
	for _, l := range h.listeners {
		listeners = append(listeners, l)
	}
	h.mu.Unlock()

	for _, l := range listeners {
		l.Cancel()
	}
	h.cancel()
}

func (h *ListenerHub) onChange(ev model.ChangeEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, l := range h.listeners {
		if l.affectedBy(ev) {
			l.markDirty()
		}
	}
}

func (h *ListenerHub) remove(l *listener) {
	h.mu.Lock()
	_, ok := h.listeners[l.id]
	delete(h.listeners, l.id)
	h.mu.Unlock()

	if ok && h.observer != nil {
		h.observer.ListenerClosed(l.kind)
	}
}

type listener struct {
	id    string
	kind  string
	query model.Query
	path  string

	hub    *ListenerHub
	dirty  chan struct{}
	out    chan model.Snapshot
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

func (l *listener) ID() string                       { return l.id }
func (l *listener) Snapshots() <-chan model.Snapshot { return l.out }

// Cancel stops the listener; the snapshot channel is closed shortly after
func (l *listener) Cancel() {
	l.once.Do(func() {
		l.cancel()
		l.hub.remove(l)
	})
}

func (l *listener) target() string {
	if l.kind == kindDocument {
		return l.path
	}
	return l.query.Collection
}

func (l *listener) affectedBy(ev model.ChangeEvent) bool {
	if l.kind == kindDocument {
		return ev.Path == l.path
	}
	collection := ev.Collection
	if collection == "" {
		collection = docpath.Parent(ev.Path)
	}
	return collection == l.query.Collection
}

func (l *listener) markDirty() {
	select {
	case l.dirty <- struct{}{}:
	default:
	}
}

func (l *listener) run() {
	defer close(l.out)
	defer l.Cancel()

	for {
		select {
		case <-l.ctx.Done():
			return
		case <-l.dirty:
		}

		snap := l.read()

		select {
		case <-l.ctx.Done():
			return
		case l.out <- snap:
			if l.hub.observer != nil {
				l.hub.observer.SnapshotDelivered(l.kind)
			}
		case <-l.dirty:
			// consumer is behind and the data moved on: re-read instead of delivering stale state
			l.markDirty()
		}
	}
}

func (l *listener) read() model.Snapshot {
	ctx, cancel := context.WithTimeout(l.ctx, 10*time.Second)
	defer cancel()

	if l.kind == kindDocument {
		d, err := l.hub.reader.GetDocument(ctx, l.path)
		switch {
		case err == nil:
			return model.Snapshot{Documents: []*model.Document{d}, ReadTime: time.Now()}
		case errors.IsNotFound(err):
			return model.Snapshot{Documents: []*model.Document{}, ReadTime: time.Now()}
		default:
			l.hub.log.Warnf("listener %s read %s failed: %v", l.id, l.path, err)
			return model.Snapshot{Err: errors.Wrap(err, "listen "+l.path), ReadTime: time.Now()}
		}
	}

	docs, err := l.hub.reader.RunQuery(ctx, l.query)
	if err != nil {
		l.hub.log.Warnf("listener %s query %s failed: %v", l.id, l.query.Collection, err)
		return model.Snapshot{Err: errors.Wrap(err, "listen "+l.query.Collection), ReadTime: time.Now()}
	}
	return model.Snapshot{Documents: docs, ReadTime: time.Now()}
}
