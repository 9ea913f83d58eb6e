package memory

import (
	"context"
	"fmt"

	"social-connect/internal/shared/eventbus"
	"social-connect/internal/shared/logger"
	"social-connect/internal/store/domain/model"
)

const feedSource = "memory-store"

// ChangeFeed delivers change events to listeners of the same process over the event bus
type ChangeFeed struct {
	bus eventbus.EventBusInterface
	log logger.Logger
}

// NewChangeFeed creates an in-process change feed. A nil bus gets a private synchronous one.
func NewChangeFeed(bus eventbus.EventBusInterface, log logger.Logger) *ChangeFeed {
	if log == nil {
		log = logger.NewNopLogger()
	}
	if bus == nil {
		bus = eventbus.NewEventBusWithConfig(log, eventbus.BusConfig{MaxRetries: 0})
	}
	return &ChangeFeed{bus: bus, log: log.WithComponent("memory-change-feed")}
}

// Publish hands the event to every listener before returning
func (f *ChangeFeed) Publish(ctx context.Context, event model.ChangeEvent) error {
	return f.bus.Publish(ctx, eventbus.NewEvent(eventbus.EventTypeDocumentChanged, feedSource, event))
}

// Listen registers fn until ctx is done
func (f *ChangeFeed) Listen(ctx context.Context, fn func(model.ChangeEvent)) error {
	unsubscribe := f.bus.Subscribe(eventbus.EventTypeDocumentChanged, func(_ context.Context, e eventbus.Event) error {
		if ctx.Err() != nil {
			return nil
		}
		ev, ok := e.Data().(model.ChangeEvent)
		if !ok {
			return fmt.Errorf("unexpected change payload %T", e.Data())
		}
		fn(ev)
		return nil
	})
	go func() {
		<-ctx.Done()
		unsubscribe()
	}()
	return nil
}

// Close is a no-op; the bus outlives the feed
func (f *ChangeFeed) Close() error { return nil }
