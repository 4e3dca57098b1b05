// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a fixed window counter stored under prefix+key.
type Redis struct {
	client redis.UniversalClient
	prefix string
	limit  int64
	window time.Duration
}

// NewRedis allows limit events per window for each key.
func NewRedis(client redis.UniversalClient, prefix string, limit int, window time.Duration) *Redis {
	return &Redis{
		client: client,
		prefix: prefix,
		limit:  int64(limit),
		window: window,
	}
}

// Allow implements [Limiter].
func (limiter *Redis) Allow(ctx context.Context, key string) (Decision, error) {
	redisKey := limiter.prefix + key

	count, err := limiter.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit: incr failed: %w", err)
	}

	// The first hit opens the window.
	if count == 1 {
		if err := limiter.client.Expire(ctx, redisKey, limiter.window).Err(); err != nil {
			return Decision{}, fmt.Errorf("ratelimit: expire failed: %w", err)
		}
	}

	if count <= limiter.limit {
		return Decision{Allowed: true}, nil
	}

	ttl, err := limiter.client.PTTL(ctx, redisKey).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit: pttl failed: %w", err)
	}

	// A key without expiry would block forever; reopen the window.
	if ttl < 0 {
		_ = limiter.client.Expire(ctx, redisKey, limiter.window).Err()
		ttl = limiter.window
	}

	return Decision{Allowed: false, RetryAfter: ttl}, nil
}
