package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"social-connect/internal/shared/docpath"
	"social-connect/internal/shared/errors"
	"social-connect/internal/shared/logger"
	"social-connect/internal/store/domain/model"
	"social-connect/internal/store/domain/repository"
	"social-connect/internal/store/usecase"

	"github.com/oklog/ulid/v2"
)

// Op names a store operation for fault injection
type Op string

const (
	OpGet    Op = "get"
	OpSet    Op = "set"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
	OpAdd    Op = "add"
	OpQuery  Op = "query"
	OpCount  Op = "count"
)

type fault struct {
	op     Op
	prefix string
	err    error
	left   int
}

// Store is an in-process DocumentStore. It backs tests and single-node deployments.
type Store struct {
	mu     sync.RWMutex
	docs   map[string]*model.Document
	lastTS time.Time
	closed bool

	clock    func() time.Time
	feed     repository.ChangeFeed
	hub      *usecase.ListenerHub
	hubOpts  []usecase.HubOption
	log      logger.Logger
	faultMu  sync.Mutex
	faults   []*fault
	ownsFeed bool
}

var _ repository.DocumentStore = (*Store)(nil)

// Option configures a Store
type Option func(*Store)

// WithClock overrides the server clock
func WithClock(clock func() time.Time) Option {
	return func(s *Store) { s.clock = clock }
}

// WithChangeFeed publishes writes on feed instead of a private in-process feed
func WithChangeFeed(feed repository.ChangeFeed) Option {
	return func(s *Store) { s.feed = feed }
}

// WithHubOptions forwards options to the listener hub
func WithHubOptions(opts ...usecase.HubOption) Option {
	return func(s *Store) { s.hubOpts = append(s.hubOpts, opts...) }
}

// NewStore creates an empty store
func NewStore(log logger.Logger, opts ...Option) (*Store, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}
	s := &Store{
		docs:  make(map[string]*model.Document),
		clock: time.Now,
		log:   log.WithComponent("memory-store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.feed == nil {
		s.feed = NewChangeFeed(nil, log)
		s.ownsFeed = true
	}
	hub, err := usecase.NewListenerHub(s, s.feed, log, s.hubOpts...)
	if err != nil {
		return nil, err
	}
	s.hub = hub
	return s, nil
}

// FailOn makes the next times operations of kind op on paths starting with
// prefix fail with err. times <= 0 fails until ClearFaults.
func (s *Store) FailOn(op Op, prefix string, err error, times int) {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	s.faults = append(s.faults, &fault{op: op, prefix: prefix, err: err, left: times})
}

// ClearFaults removes every injected fault
func (s *Store) ClearFaults() {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	s.faults = nil
}

func (s *Store) injected(op Op, path string) error {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	for i, f := range s.faults {
		if f.op != op || !strings.HasPrefix(path, f.prefix) {
			continue
		}
		if f.left > 0 {
			f.left--
			if f.left == 0 {
				s.faults = append(s.faults[:i], s.faults[i+1:]...)
			}
		}
		return f.err
	}
	return nil
}

// now returns a strictly increasing server timestamp
func (s *Store) now() time.Time {
	t := s.clock().UTC()
	if !t.After(s.lastTS) {
		t = s.lastTS.Add(time.Microsecond)
	}
	s.lastTS = t
	return t
}

func (s *Store) GetDocument(ctx context.Context, path string) (*model.Document, error) {
	if err := docpath.ValidateDocumentPath(path); err != nil {
		return nil, err
	}
	if err := s.injected(OpGet, path); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errors.ErrStoreClosed
	}
	doc, ok := s.docs[path]
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, errors.ErrDocumentNotFound)
	}
	return doc.Clone(), nil
}

func (s *Store) SetDocument(ctx context.Context, path string, data map[string]interface{}, opts model.SetOptions) error {
	if err := docpath.ValidateDocumentPath(path); err != nil {
		return err
	}
	if err := s.injected(OpSet, path); err != nil {
		return err
	}
	ev, err := s.write(path, func(*model.Document) (map[string]interface{}, error) {
		return data, nil
	}, opts.Merge)
	if err != nil {
		return err
	}
	return s.publish(ctx, ev)
}

func (s *Store) UpdateFields(ctx context.Context, path string, fields map[string]interface{}) error {
	if err := docpath.ValidateDocumentPath(path); err != nil {
		return err
	}
	if err := s.injected(OpUpdate, path); err != nil {
		return err
	}
	ev, err := s.write(path, func(existing *model.Document) (map[string]interface{}, error) {
		if existing == nil {
			return nil, fmt.Errorf("%s: %w", path, errors.ErrDocumentNotFound)
		}
		return fields, nil
	}, true)
	if err != nil {
		return err
	}
	return s.publish(ctx, ev)
}

// write commits fields onto path under the write lock. merge keeps existing fields.
func (s *Store) write(path string, fields func(existing *model.Document) (map[string]interface{}, error), merge bool) (model.ChangeEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return model.ChangeEvent{}, errors.ErrStoreClosed
	}

	existing := s.docs[path]
	incoming, err := fields(existing)
	if err != nil {
		return model.ChangeEvent{}, err
	}

	now := s.now()
	var base map[string]interface{}
	if merge && existing != nil {
		base = existing.Data
	}
	doc := &model.Document{
		ID:         docpath.ID(path),
		Path:       path,
		Data:       model.ApplyWrite(base, incoming, now),
		CreateTime: now,
		UpdateTime: now,
	}
	changeType := model.ChangeCreated
	if existing != nil {
		doc.CreateTime = existing.CreateTime
		changeType = model.ChangeUpdated
	}
	s.docs[path] = doc
	return model.ChangeEvent{Type: changeType, Path: path, Collection: docpath.Parent(path), At: now}, nil
}

func (s *Store) DeleteDocument(ctx context.Context, path string) error {
	if err := docpath.ValidateDocumentPath(path); err != nil {
		return err
	}
	if err := s.injected(OpDelete, path); err != nil {
		return err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.ErrStoreClosed
	}
	_, existed := s.docs[path]
	delete(s.docs, path)
	now := s.now()
	s.mu.Unlock()

	if !existed {
		return nil
	}
	return s.publish(ctx, model.ChangeEvent{Type: model.ChangeDeleted, Path: path, Collection: docpath.Parent(path), At: now})
}

func (s *Store) AddDocument(ctx context.Context, collectionPath string, data map[string]interface{}) (string, error) {
	if err := docpath.ValidateCollectionPath(collectionPath); err != nil {
		return "", err
	}
	if err := s.injected(OpAdd, collectionPath); err != nil {
		return "", err
	}
	id := ulid.Make().String()
	path := docpath.Join(collectionPath, id)
	ev, err := s.write(path, func(*model.Document) (map[string]interface{}, error) { return data, nil }, false)
	if err != nil {
		return "", err
	}
	return id, s.publish(ctx, ev)
}

func (s *Store) RunQuery(ctx context.Context, query model.Query) ([]*model.Document, error) {
	if err := query.Validate(); err != nil {
		return nil, errors.NewValidationError(err.Error())
	}
	if err := docpath.ValidateCollectionPath(query.Collection); err != nil {
		return nil, err
	}
	if err := s.injected(OpQuery, query.Collection); err != nil {
		return nil, err
	}

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, errors.ErrStoreClosed
	}
	candidates := make([]*model.Document, 0)
	for path, doc := range s.docs {
		if docpath.Parent(path) == query.Collection {
			candidates = append(candidates, doc)
		}
	}
	matched := query.Apply(candidates)
	out := make([]*model.Document, len(matched))
	for i, d := range matched {
		out[i] = d.Clone()
	}
	s.mu.RUnlock()
	return out, nil
}

func (s *Store) CountDocuments(ctx context.Context, collectionPath string) (int, error) {
	if err := docpath.ValidateCollectionPath(collectionPath); err != nil {
		return 0, err
	}
	if err := s.injected(OpCount, collectionPath); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, errors.ErrStoreClosed
	}
	n := 0
	for path := range s.docs {
		if docpath.Parent(path) == collectionPath {
			n++
		}
	}
	return n, nil
}

func (s *Store) Subscribe(ctx context.Context, query model.Query) (repository.Subscription, error) {
	return s.hub.Subscribe(ctx, query)
}

func (s *Store) SubscribeDocument(ctx context.Context, path string) (repository.Subscription, error) {
	return s.hub.SubscribeDocument(ctx, path)
}

// ActiveListeners reports open subscriptions
func (s *Store) ActiveListeners() int {
	return s.hub.ActiveListeners()
}

// Close cancels every subscription. Later calls fail with ErrStoreClosed.
func (s *Store) Close() error {
	s.hub.Close()
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	if s.ownsFeed {
		return s.feed.Close()
	}
	return nil
}

func (s *Store) publish(ctx context.Context, ev model.ChangeEvent) error {
	if err := s.feed.Publish(ctx, ev); err != nil {
		s.log.Warnf("publish change %s %s: %v", ev.Type, ev.Path, err)
	}
	return nil
}
