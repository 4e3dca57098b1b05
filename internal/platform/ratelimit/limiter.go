// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package ratelimit provides keyed request throttling.

Two backends exist:

  - Memory: token buckets from golang.org/x/time/rate, one per key, local to
    the process. Used for the global per-IP guard.
  - Redis: a fixed window counter (INCR + EXPIRE) shared by every instance.
  - Window: the same fixed window kept in process memory. Used as the OTP
    fallback when Redis is not configured.
*/
package ratelimit

import (
	"context"
	"time"
)

// Decision is the outcome of a single [Limiter.Allow] call.
type Decision struct {
	Allowed bool

	// RetryAfter is how long the caller should wait. Zero when allowed.
	RetryAfter time.Duration
}

// Limiter throttles events per key.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// RetryAfterSeconds rounds a wait up to whole seconds, minimum one.
func (d Decision) RetryAfterSeconds() int {
	seconds := int((d.RetryAfter + time.Second - 1) / time.Second)
	return max(seconds, 1)
}
