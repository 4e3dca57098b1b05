// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/taibuivan/riyamaga/internal/platform/constants"
)

type windowCounter struct {
	start time.Time
	count int
}

// Window counts events per key in fixed windows, local to the process.
//
// It is the in-memory twin of [Redis]: a window opens on the first event for
// a key and admits at most limit events until it closes.
type Window struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu       sync.Mutex
	counters map[string]*windowCounter
}

// NewWindow creates a fixed window limiter admitting limit events per window.
//
// A background goroutine drops closed windows until ctx is cancelled.
func NewWindow(ctx context.Context, limit int, window time.Duration) *Window {
	limiter := &Window{
		limit:    limit,
		window:   window,
		now:      time.Now,
		counters: make(map[string]*windowCounter),
	}

	go limiter.cleanup(ctx)

	return limiter
}

// Allow implements [Limiter]. It never returns an error.
func (limiter *Window) Allow(_ context.Context, key string) (Decision, error) {
	now := limiter.now()

	limiter.mu.Lock()
	defer limiter.mu.Unlock()

	counter, found := limiter.counters[key]
	if !found || !now.Before(counter.start.Add(limiter.window)) {
		counter = &windowCounter{start: now}
		limiter.counters[key] = counter
	}

	// Rejected events still count, as INCR does on the Redis side.
	counter.count++
	if counter.count > limiter.limit {
		return Decision{Allowed: false, RetryAfter: counter.start.Add(limiter.window).Sub(now)}, nil
	}

	return Decision{Allowed: true}, nil
}

func (limiter *Window) cleanup(ctx context.Context) {
	ticker := time.NewTicker(constants.RateLimitCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			limiter.evictClosed()
		case <-ctx.Done():
			return
		}
	}
}

func (limiter *Window) evictClosed() {
	now := limiter.now()

	limiter.mu.Lock()
	defer limiter.mu.Unlock()

	for key, counter := range limiter.counters {
		if !now.Before(counter.start.Add(limiter.window)) {
			delete(limiter.counters, key)
		}
	}
}
