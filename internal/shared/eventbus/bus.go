package eventbus

import (
	"context"
	"sync"
	"time"

	"social-connect/internal/shared/logger"
	"social-connect/internal/shared/retry"

	"golang.org/x/sync/errgroup"
)

// Event types published by the sync core
const (
	// EventTypeDocumentChanged carries a store change (create, update or delete)
	EventTypeDocumentChanged = "document.changed"
	// EventTypeSessionStarted carries the identity id of a session that opened
	EventTypeSessionStarted = "session.started"
	// EventTypeSessionEnded carries the identity id of a session that closed
	EventTypeSessionEnded = "session.ended"
)

// Event represents a generic event
type Event interface {
	Type() string
	Data() interface{}
	Timestamp() time.Time
	Source() string
}

// Handler defines the event handler function type
type Handler func(ctx context.Context, event Event) error

// EventBusInterface is the in-process pub/sub the store change feed and the
// session lifecycle run on
type EventBusInterface interface {
	// Subscribe registers handler; calling the returned func removes it again
	Subscribe(eventType string, handler Handler) (unsubscribe func())
	Publish(ctx context.Context, event Event) error
	PublishAndForget(ctx context.Context, event Event)
}

// BusConfig holds configuration for the event bus
type BusConfig struct {
	AsyncProcessing bool
	MaxRetries      int
	RetryDelay      time.Duration
}

// DefaultBusConfig returns default configuration
func DefaultBusConfig() BusConfig {
	return BusConfig{
		MaxRetries: 3,
		RetryDelay: 100 * time.Millisecond,
	}
}

type subscriber struct {
	id      uint64
	handler Handler
}

// EventBus delivers events to the handlers of their type. Handlers of one
// event run in subscription order, or concurrently with AsyncProcessing.
type EventBus struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[string][]subscriber
	logger   logger.Logger
	config   BusConfig
}

var _ EventBusInterface = (*EventBus)(nil)

// NewEventBus creates a new event bus instance
func NewEventBus(log logger.Logger) *EventBus {
	return NewEventBusWithConfig(log, DefaultBusConfig())
}

// NewEventBusWithConfig creates a new event bus with custom configuration
func NewEventBusWithConfig(log logger.Logger, config BusConfig) *EventBus {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &EventBus{
		handlers: make(map[string][]subscriber),
		logger:   log.WithComponent("eventbus"),
		config:   config,
	}
}

func (eb *EventBus) Subscribe(eventType string, handler Handler) func() {
	eb.mu.Lock()
	eb.nextID++
	id := eb.nextID
	eb.handlers[eventType] = append(eb.handlers[eventType], subscriber{id: id, handler: handler})
	eb.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { eb.remove(eventType, id) })
	}
}

func (eb *EventBus) remove(eventType string, id uint64) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	subs := eb.handlers[eventType]
	for i, s := range subs {
		if s.id != id {
			continue
		}
		rest := make([]subscriber, 0, len(subs)-1)
		rest = append(rest, subs[:i]...)
		rest = append(rest, subs[i+1:]...)
		if len(rest) == 0 {
			delete(eb.handlers, eventType)
		} else {
			eb.handlers[eventType] = rest
		}
		return
	}
}

// Publish hands event to every handler of its type and returns the first
// handler error left after retries
func (eb *EventBus) Publish(ctx context.Context, event Event) error {
	eb.mu.RLock()
	subs := eb.handlers[event.Type()]
	eb.mu.RUnlock()

	if len(subs) == 0 {
		return nil
	}

	if !eb.config.AsyncProcessing {
		for _, s := range subs {
			if err := eb.deliver(ctx, event, s); err != nil {
				return err
			}
		}
		return nil
	}

	var g errgroup.Group
	for _, s := range subs {
		s := s
		g.Go(func() error { return eb.deliver(ctx, event, s) })
	}
	return g.Wait()
}

func (eb *EventBus) deliver(ctx context.Context, event Event, s subscriber) error {
	policy := retry.Policy{MaxAttempts: eb.config.MaxRetries + 1, Delay: eb.config.RetryDelay}
	return retry.Do(ctx, policy, func(ctx context.Context, attempt int) error {
		err := s.handler(ctx, event)
		if err != nil {
			eb.logger.Warnf("handler %d failed for %s (attempt %d/%d): %v",
				s.id, event.Type(), attempt, policy.MaxAttempts, err)
		}
		return err
	})
}

// PublishAndForget publishes on a goroutine. Delivery outlives cancellation of ctx.
func (eb *EventBus) PublishAndForget(ctx context.Context, event Event) {
	ctx = context.WithoutCancel(ctx)
	go func() {
		if err := eb.Publish(ctx, event); err != nil {
			eb.logger.Errorf("publish %s: %v", event.Type(), err)
		}
	}()
}

// BasicEvent implements the Event interface
type BasicEvent struct {
	eventType string
	data      interface{}
	timestamp time.Time
	source    string
}

// NewEvent creates an event of eventType raised by source
func NewEvent(eventType, source string, data interface{}) Event {
	return &BasicEvent{
		eventType: eventType,
		data:      data,
		timestamp: time.Now(),
		source:    source,
	}
}

func (e *BasicEvent) Type() string         { return e.eventType }
func (e *BasicEvent) Data() interface{}    { return e.data }
func (e *BasicEvent) Timestamp() time.Time { return e.timestamp }
func (e *BasicEvent) Source() string       { return e.source }

// IdentityID returns the identity id carried by a session event
func IdentityID(event Event) (string, bool) {
	id, ok := event.Data().(string)
	return id, ok && id != ""
}
