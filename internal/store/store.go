// Package store opens the document store backend selected by configuration.
package store

import (
	"context"
	"fmt"

	"social-connect/internal/shared/eventbus"
	"social-connect/internal/shared/logger"
	"social-connect/internal/store/adapter/memory"
	"social-connect/internal/store/adapter/mongodb"
	redisfeed "social-connect/internal/store/adapter/redis"
	"social-connect/internal/store/domain/repository"
	"social-connect/internal/store/usecase"
)

// Backend names
const (
	BackendMemory  = "memory"
	BackendMongoDB = "mongodb"
	FeedMemory     = "memory"
	FeedRedis      = "redis"
)

// Options selects and configures the backend and its change feed
type Options struct {
	Backend       string
	MongoURI      string
	MongoDatabase string

	Feed        string
	Redis       redisfeed.ClientConfig
	RedisStream string
	RedisMaxLen int64

	Observer usecase.Observer
}

type closingStore struct {
	repository.DocumentStore
	closers []func() error
}

func (c *closingStore) Close() error {
	err := c.DocumentStore.Close()
	for _, closeFn := range c.closers {
		if cerr := closeFn(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// Open builds the configured store. bus carries in-process change events when
// the memory feed is selected.
func Open(ctx context.Context, opts Options, bus eventbus.EventBusInterface, log logger.Logger) (repository.DocumentStore, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}

	var hubOpts []usecase.HubOption
	if opts.Observer != nil {
		hubOpts = append(hubOpts, usecase.WithObserver(opts.Observer))
	}

	var (
		feed    repository.ChangeFeed
		closers []func() error
	)
	switch opts.Feed {
	case "", FeedMemory:
		feed = memory.NewChangeFeed(bus, log)
	case FeedRedis:
		client := redisfeed.NewClient(opts.Redis)
		if err := redisfeed.Ping(ctx, client); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("connect redis change feed: %w", err)
		}
		rf := redisfeed.NewChangeFeed(client, opts.RedisStream, opts.RedisMaxLen, log)
		feed = rf
		closers = append(closers, rf.Close, client.Close)
	default:
		return nil, fmt.Errorf("unknown change feed %q", opts.Feed)
	}

	var (
		store repository.DocumentStore
		err   error
	)
	switch opts.Backend {
	case "", BackendMemory:
		store, err = memory.NewStore(log, memory.WithChangeFeed(feed), memory.WithHubOptions(hubOpts...))
	case BackendMongoDB:
		store, err = mongodb.Connect(ctx, opts.MongoURI, opts.MongoDatabase, feed, log, hubOpts...)
	default:
		err = fmt.Errorf("unknown store backend %q", opts.Backend)
	}
	if err != nil {
		for _, closeFn := range closers {
			_ = closeFn()
		}
		return nil, err
	}

	log.Infof("document store ready (backend=%s, feed=%s)", orDefault(opts.Backend, BackendMemory), orDefault(opts.Feed, FeedMemory))
	return &closingStore{DocumentStore: store, closers: closers}, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
