package redis

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"social-connect/internal/shared/logger"
	"social-connect/internal/store/domain/model"

	"github.com/redis/go-redis/v9"
)

// DefaultStream is the stream key used when none is configured
const DefaultStream = "social-connect:changes"

// ChangeFeed shares change events between processes through a Redis stream.
// Every process appends with XADD and tails the stream with a blocking XREAD.
type ChangeFeed struct {
	client *redis.Client
	stream string
	maxLen int64
	block  time.Duration
	log    logger.Logger

	wg     sync.WaitGroup
	cancel context.CancelFunc
	ctx    context.Context
}

// NewChangeFeed creates a feed on stream. maxLen caps the stream length (approximate trim).
func NewChangeFeed(client *redis.Client, stream string, maxLen int64, log logger.Logger) *ChangeFeed {
	if stream == "" {
		stream = DefaultStream
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &ChangeFeed{
		client: client,
		stream: stream,
		maxLen: maxLen,
		block:  2 * time.Second,
		log:    log.WithComponent("redis-change-feed"),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Publish appends the event to the stream
func (f *ChangeFeed) Publish(ctx context.Context, event model.ChangeEvent) error {
	args := &redis.XAddArgs{
		Stream: f.stream,
		Values: eventValues(event),
	}
	if f.maxLen > 0 {
		args.MaxLen = f.maxLen
		args.Approx = true
	}
	if err := f.client.XAdd(ctx, args).Err(); err != nil {
		f.log.Errorf("append change %s to %s: %v", event.Path, f.stream, err)
		return err
	}
	return nil
}

// Listen tails the stream from its current end until ctx is done or the feed is closed
func (f *ChangeFeed) Listen(ctx context.Context, fn func(model.ChangeEvent)) error {
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		f.tail(ctx, fn)
	}()
	return nil
}

func (f *ChangeFeed) tail(ctx context.Context, fn func(model.ChangeEvent)) {
	lastID := "$"
	for {
		if ctx.Err() != nil || f.ctx.Err() != nil {
			return
		}
		res, err := f.client.XRead(f.ctx, &redis.XReadArgs{
			Streams: []string{f.stream, lastID},
			Count:   500,
			Block:   f.block,
		}).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			if f.ctx.Err() != nil {
				return
			}
			f.log.Warnf("read %s: %v", f.stream, err)
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return
			case <-f.ctx.Done():
				return
			}
			continue
		}
		for _, stream := range res {
			for _, msg := range stream.Messages {
				lastID = msg.ID
				ev, err := parseChangeEvent(msg)
				if err != nil {
					f.log.Warnf("skip change %s: %v", msg.ID, err)
					continue
				}
				if ctx.Err() == nil {
					fn(ev)
				}
			}
		}
	}
}

// Close stops every tail loop
func (f *ChangeFeed) Close() error {
	f.cancel()
	f.wg.Wait()
	return nil
}

func eventValues(ev model.ChangeEvent) map[string]interface{} {
	return map[string]interface{}{
		"type":       string(ev.Type),
		"path":       ev.Path,
		"collection": ev.Collection,
		"at":         ev.At.UnixNano(),
	}
}

// parseChangeEvent converts a stream entry back into a ChangeEvent
func parseChangeEvent(msg redis.XMessage) (model.ChangeEvent, error) {
	ev := model.ChangeEvent{}

	path, ok := msg.Values["path"].(string)
	if !ok || path == "" {
		return ev, fmt.Errorf("entry %s has no path", msg.ID)
	}
	ev.Path = path

	if t, ok := msg.Values["type"].(string); ok {
		ev.Type = model.ChangeType(t)
	}
	if c, ok := msg.Values["collection"].(string); ok {
		ev.Collection = c
	}
	if at, ok := msg.Values["at"].(string); ok {
		if nanos, err := strconv.ParseInt(at, 10, 64); err == nil {
			ev.At = time.Unix(0, nanos).UTC()
		}
	}
	return ev, nil
}
