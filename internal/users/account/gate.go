// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package account

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/taibuivan/riyamaga/internal/platform/apperr"
	"github.com/taibuivan/riyamaga/internal/platform/events"
	"github.com/taibuivan/riyamaga/internal/platform/middleware"
	"github.com/taibuivan/riyamaga/internal/platform/sec"
	"github.com/taibuivan/riyamaga/internal/users/auth"
)

// StatusGate resolves the live identity behind an access token.
//
// It implements [middleware.StatusResolver]. Nothing is cached: a ban takes
// effect on the next request regardless of outstanding tokens.
type StatusGate struct {
	repository AccountRepository
	publisher  events.Publisher
	logger     *slog.Logger
	now        func() time.Time
}

// NewStatusGate constructs a [StatusGate].
func NewStatusGate(repository AccountRepository, publisher events.Publisher, logger *slog.Logger) *StatusGate {
	return &StatusGate{
		repository: repository,
		publisher:  publisher,
		logger:     logger,
		now:        time.Now,
	}
}

// WithClock replaces the time source. Used by tests.
func (gate *StatusGate) WithClock(now func() time.Time) *StatusGate {
	gate.now = now
	return gate
}

/*
Resolve loads the account and decides whether the request may proceed.

Description:
  - BANNED: ACCOUNT_BANNED.
  - SUSPENDED and suspended_until has passed: healed to ACTIVE inline, proceeds.
  - SUSPENDED otherwise (including no end date): ACCOUNT_SUSPENDED.
  - ACTIVE: proceeds.

A token for a user that no longer exists yields TOKEN_INVALID.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - *sec.Identity: Live values for downstream authorization
  - error: The refusal above, or storage failures
*/
func (gate *StatusGate) Resolve(context context.Context, userID string) (*sec.Identity, error) {
	user, err := gate.load(context, userID)
	if err != nil {
		return nil, err
	}

	now := gate.now()
	if user.Status == sec.StatusSuspended && suspensionElapsed(user, now) {
		cleared, err := gate.repository.ClearExpiredSuspension(context, user.ID, now)
		if err != nil {
			return nil, fmt.Errorf("account_gate_unsuspend_failed: %w", err)
		}

		if cleared {
			gate.logger.InfoContext(context, "account_unsuspended", slog.String("user_id", user.ID))
			gate.publish(context, events.Event{
				Type:       events.TypeAccountUnsuspended,
				UserID:     user.ID,
				Phone:      user.Phone,
				OccurredAt: now,
			})
			user.Status = sec.StatusActive
			user.SuspendedUntil = nil
		} else {
			// Someone else moved the row first; decide on what is stored now.
			if user, err = gate.load(context, userID); err != nil {
				return nil, err
			}
		}
	}

	switch user.Status {
	case sec.StatusActive:
		return user.Identity(), nil
	case sec.StatusBanned:
		return nil, auth.ErrAccountBanned
	case sec.StatusSuspended:
		return nil, auth.ErrAccountSuspended
	default:
		return nil, apperr.Forbidden("Account is not active")
	}
}

func (gate *StatusGate) load(context context.Context, userID string) (*auth.User, error) {
	user, err := gate.repository.FindByID(context, userID)
	if err != nil {
		if apperr.HasCode(err, "NOT_FOUND") {
			return nil, middleware.ErrTokenInvalid
		}
		return nil, fmt.Errorf("account_gate_load_failed: %w", err)
	}
	return user, nil
}

func (gate *StatusGate) publish(context context.Context, event events.Event) {
	if err := gate.publisher.Publish(context, event); err != nil {
		gate.logger.WarnContext(context, "security_event_publish_failed",
			slog.String("type", event.Type),
			slog.Any("error", err),
		)
	}
}

func suspensionElapsed(user *auth.User, now time.Time) bool {
	return user.SuspendedUntil != nil && !user.SuspendedUntil.After(now)
}
