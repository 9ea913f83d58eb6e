// Package config loads the process configuration from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"time"

	authconfig "social-connect/internal/auth/config"
	"social-connect/internal/shared/retry"
	"social-connect/internal/store"
	redisfeed "social-connect/internal/store/adapter/redis"

	"github.com/adhocore/gronx"
	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// ServerConfig holds the HTTP listener settings
type ServerConfig struct {
	Host            string        `env:"SERVER_HOST" envDefault:"localhost"`
	Port            string        `env:"SERVER_PORT" envDefault:"3000"`
	CORSOrigins     string        `env:"CORS_ORIGINS" envDefault:"*"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

// Addr returns host:port
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, s.Port)
}

// StoreConfig selects the document store backend and its change feed
type StoreConfig struct {
	Backend       string `env:"STORE_BACKEND" envDefault:"memory"`
	MongoURI      string `env:"MONGODB_URI" envDefault:"mongodb://localhost:27017"`
	MongoDatabase string `env:"MONGODB_DATABASE" envDefault:"social_connect"`

	Feed          string        `env:"CHANGE_FEED" envDefault:"memory"`
	RedisHost     string        `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     string        `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	RedisPoolSize int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	RedisTLS      bool          `env:"REDIS_TLS" envDefault:"false"`
	RedisIdle     time.Duration `env:"REDIS_CONN_MAX_IDLE_TIME" envDefault:"30m"`
	RedisStream   string        `env:"REDIS_STREAM" envDefault:"social-connect:changes"`
	RedisMaxLen   int64         `env:"REDIS_STREAM_MAXLEN" envDefault:"10000"`
}

// SyncConfig tunes the sync components
type SyncConfig struct {
	RetryAttempts   int           `env:"WRITE_RETRY_ATTEMPTS" envDefault:"3"`
	RetryDelay      time.Duration `env:"WRITE_RETRY_DELAY" envDefault:"100ms"`
	RetryMaxDelay   time.Duration `env:"WRITE_RETRY_MAX_DELAY" envDefault:"2s"`
	BackoffDelay    time.Duration `env:"RESUBSCRIBE_DELAY" envDefault:"200ms"`
	BackoffMaxDelay time.Duration `env:"RESUBSCRIBE_MAX_DELAY" envDefault:"10s"`
	FanOut          int           `env:"FEED_FANOUT" envDefault:"8"`
	ReconcileCron   string        `env:"RECONCILE_CRON" envDefault:"*/15 * * * *"`
	ReconcileWindow time.Duration `env:"RECONCILE_WINDOW" envDefault:"24h"`
}

// RealtimeConfig holds the WebSocket settings of the gateway
type RealtimeConfig struct {
	WebSocketPath           string `env:"WEBSOCKET_PATH" envDefault:"/ws/listen"`
	ClientSendChannelBuffer int    `env:"CLIENT_SEND_CHANNEL_BUFFER" envDefault:"16"`
}

// RateLimitConfig bounds writes per identity and credential attempts per address
type RateLimitConfig struct {
	WriteRPS   float64       `env:"WRITE_RATE_RPS" envDefault:"10"`
	WriteBurst int           `env:"WRITE_RATE_BURST" envDefault:"20"`
	AuthMax    int           `env:"AUTH_RATE_MAX" envDefault:"20"`
	AuthWindow time.Duration `env:"AUTH_RATE_WINDOW" envDefault:"1m"`
}

// Config is the full process configuration
type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	Sync      SyncConfig
	Realtime  RealtimeConfig
	RateLimit RateLimitConfig
	Auth      authconfig.Config
}

// Load reads envFiles (".env" when none are given) and parses the
// environment. A missing .env file is not an error.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read env file: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, errors.New("failed to load configuration from environment: " + err.Error())
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values the components cannot repair themselves
func (c *Config) Validate() error {
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	switch c.Store.Backend {
	case store.BackendMemory, store.BackendMongoDB:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.Store.Backend)
	}
	switch c.Store.Feed {
	case store.FeedMemory, store.FeedRedis:
	default:
		return fmt.Errorf("unknown CHANGE_FEED %q", c.Store.Feed)
	}
	if c.Store.Backend == store.BackendMongoDB && c.Store.MongoURI == "" {
		return errors.New("MONGODB_URI is required for the mongodb backend")
	}
	if c.Sync.RetryAttempts < 1 {
		return errors.New("WRITE_RETRY_ATTEMPTS must be at least 1")
	}
	if c.Sync.FanOut < 1 {
		return errors.New("FEED_FANOUT must be at least 1")
	}
	if !gronx.IsValid(c.Sync.ReconcileCron) {
		return fmt.Errorf("invalid RECONCILE_CRON %q", c.Sync.ReconcileCron)
	}
	if c.RateLimit.WriteRPS <= 0 || c.RateLimit.WriteBurst < 1 {
		return errors.New("write rate limit must be positive")
	}
	if c.Realtime.ClientSendChannelBuffer <= 0 {
		c.Realtime.ClientSendChannelBuffer = 16
	}
	return nil
}

// StoreOptions converts the store section for store.Open
func (c *Config) StoreOptions() store.Options {
	return store.Options{
		Backend:       c.Store.Backend,
		MongoURI:      c.Store.MongoURI,
		MongoDatabase: c.Store.MongoDatabase,
		Feed:          c.Store.Feed,
		Redis: redisfeed.ClientConfig{
			Addr:            net.JoinHostPort(c.Store.RedisHost, c.Store.RedisPort),
			Password:        c.Store.RedisPassword,
			Database:        c.Store.RedisDB,
			PoolSize:        c.Store.RedisPoolSize,
			EnableTLS:       c.Store.RedisTLS,
			ConnMaxIdleTime: c.Store.RedisIdle,
		},
		RedisStream: c.Store.RedisStream,
		RedisMaxLen: c.Store.RedisMaxLen,
	}
}

// RetryPolicy is the policy for second-step writes
func (c *Config) RetryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts: c.Sync.RetryAttempts,
		Delay:       c.Sync.RetryDelay,
		MaxDelay:    c.Sync.RetryMaxDelay,
	}
}

// BackoffPolicy is the resubscribe backoff of live streams
func (c *Config) BackoffPolicy() retry.Policy {
	return retry.Policy{
		Delay:    c.Sync.BackoffDelay,
		MaxDelay: c.Sync.BackoffMaxDelay,
	}
}
