// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package redis connects the shared OTP throttling store.

Every API instance increments the same fixed-window counters here, so a
client cannot multiply its OTP budget by spreading calls across replicas.
The connection is optional: without REDIS_URL the limiter stays in-process.
*/
package redis

import (
	stdctx "context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Pool and timeouts sized for the counter workload.
const (
	poolSize     = 8
	minIdleConns = 1
	dialTimeout  = 2 * time.Second
	ioTimeout    = 500 * time.Millisecond
	pingTimeout  = 2 * time.Second
)

/*
NewClient parses redisURL, applies the limiter pool settings and pings once.

Parameters:
  - context: Context for the initial ping
  - redisURL: redis:// or rediss:// URL, credentials included
  - logger: Structured logger for connection events

Returns:
  - *redis.Client: A connected client
  - error: Invalid URL or unreachable server
*/
func NewClient(context stdctx.Context, redisURL string, logger *slog.Logger) (*redis.Client, error) {
	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis: invalid URL: %w", err)
	}

	options.PoolSize = poolSize
	options.MinIdleConns = minIdleConns
	options.DialTimeout = dialTimeout
	options.ReadTimeout = ioTimeout
	options.WriteTimeout = ioTimeout
	options.ContextTimeoutEnabled = true

	client := redis.NewClient(options)

	if err := Ping(context, client); err != nil {
		_ = client.Close()
		return nil, err
	}

	// Never log the URL itself: it carries the password.
	logger.Info("redis client connected",
		slog.String("addr", options.Addr),
		slog.Int("db", options.DB),
		slog.Bool("tls", options.TLSConfig != nil),
	)

	return client, nil
}

// Ping verifies that the Redis server answers within [pingTimeout].
func Ping(context stdctx.Context, client redis.UniversalClient) error {
	pingCtx, cancel := stdctx.WithTimeout(context, pingTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("redis: ping failed: %w", err)
	}

	return nil
}
