package redis

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/redis/go-redis/v9"
)

// ClientConfig holds the connection settings of the change feed client
type ClientConfig struct {
	Addr            string
	Password        string
	Database        int
	PoolSize        int
	EnableTLS       bool
	ConnMaxIdleTime time.Duration
}

// NewClient builds a go-redis client. The read timeout leaves room for blocking XREADs.
func NewClient(cfg ClientConfig) *redis.Client {
	idle := cfg.ConnMaxIdleTime
	if idle == 0 {
		idle = 30 * time.Minute
	}
	opts := &redis.Options{
		Addr:            cfg.Addr,
		Password:        cfg.Password,
		DB:              cfg.Database,
		PoolSize:        cfg.PoolSize,
		MaxRetries:      3,
		DialTimeout:     5 * time.Second,
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    3 * time.Second,
		ConnMaxIdleTime: idle,
	}
	if cfg.EnableTLS {
		host := cfg.Addr
		for i := len(host) - 1; i >= 0; i-- {
			if host[i] == ':' {
				host = host[:i]
				break
			}
		}
		opts.TLSConfig = &tls.Config{ServerName: host}
	}
	return redis.NewClient(opts)
}

// Ping checks the connection
func Ping(ctx context.Context, client *redis.Client) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return client.Ping(ctx).Err()
}
