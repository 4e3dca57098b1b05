// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/taibuivan/riyamaga/internal/platform/constants"
)

type memoryClient struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Memory keeps one token bucket per key.
type Memory struct {
	limit rate.Limit
	burst int
	now   func() time.Time

	mu      sync.Mutex
	clients map[string]*memoryClient
}

// NewMemory creates a limiter refilling at limit with the given burst.
//
// A background goroutine drops idle keys until ctx is cancelled.
func NewMemory(ctx context.Context, limit rate.Limit, burst int) *Memory {
	memory := &Memory{
		limit:   limit,
		burst:   burst,
		now:     time.Now,
		clients: make(map[string]*memoryClient),
	}

	go memory.cleanup(ctx)

	return memory
}

// Allow implements [Limiter]. It never returns an error.
func (memory *Memory) Allow(_ context.Context, key string) (Decision, error) {
	now := memory.now()

	memory.mu.Lock()
	defer memory.mu.Unlock()

	client, found := memory.clients[key]
	if !found {
		client = &memoryClient{limiter: rate.NewLimiter(memory.limit, memory.burst)}
		memory.clients[key] = client
	}
	client.lastSeen = now

	reservation := client.limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return Decision{Allowed: false, RetryAfter: time.Second}, nil
	}

	if delay := reservation.DelayFrom(now); delay > 0 {
		// Give the token back; the caller is rejected, not queued.
		reservation.CancelAt(now)
		return Decision{Allowed: false, RetryAfter: delay}, nil
	}

	return Decision{Allowed: true}, nil
}

func (memory *Memory) cleanup(ctx context.Context) {
	ticker := time.NewTicker(constants.RateLimitCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			memory.evictIdle(constants.RateLimitClientTTL)
		case <-ctx.Done():
			return
		}
	}
}

func (memory *Memory) evictIdle(ttl time.Duration) {
	now := memory.now()

	memory.mu.Lock()
	defer memory.mu.Unlock()

	for key, client := range memory.clients {
		if now.Sub(client.lastSeen) > ttl {
			delete(memory.clients, key)
		}
	}
}
