// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package account owns the live standing of marketplace accounts.

It provides the status gate consulted on every authenticated request,
the caller's own profile, and the administrative status controls.

# Architecture

  - Gate: Re-reads status per request and heals elapsed suspensions.
  - Domain: Depends on the auth package for the User entity.
  - Audit: Every administrative status change writes an admin_actions row.
*/
package account

import (
	"context"
	"time"

	"github.com/taibuivan/riyamaga/internal/platform/sec"
	"github.com/taibuivan/riyamaga/internal/users/auth"
	"github.com/taibuivan/riyamaga/pkg/pagination"
)

// # Domain Entities

// UserSummary is the admin listing projection.
type UserSummary struct {
	ID             string            `json:"id"`
	Phone          string            `json:"phone"`
	Role           sec.UserRole      `json:"role"`
	Status         sec.AccountStatus `json:"status"`
	SuspendedUntil *time.Time        `json:"suspended_until"`
	CreatedAt      time.Time         `json:"created_at"`
}

// ListFilter narrows the admin user listing.
type ListFilter struct {
	// Query matches a phone substring.
	Query  string
	Status sec.AccountStatus
	pagination.Params
}

// StatusChange is one administrative transition together with its audit entry.
type StatusChange struct {
	UserID         string
	Status         sec.AccountStatus
	SuspendedUntil *time.Time
	AdminID        string
	Note           *string
	At             time.Time
}

// Action is the audit verb recorded for the change, e.g. "BANNED_USER".
func (change StatusChange) Action() string {
	return string(change.Status) + "_USER"
}

// TargetTypeUser is the admin_actions.target_type for account changes.
const TargetTypeUser = "USER"

// # Repository Contracts

// AccountRepository defines the persistence contract for account standing.
type AccountRepository interface {
	/*
		FindByID retrieves a user record by their unique ID.

		Parameters:
		  - context: context.Context
		  - id: string (UUID)

		Returns:
		  - *auth.User: Loaded account entity
		  - error: apperr.NotFound or storage failures
	*/
	FindByID(context context.Context, id string) (*auth.User, error)

	/*
		ClearExpiredSuspension returns a SUSPENDED account to ACTIVE if its
		suspension ended at or before now. The condition is part of the write.

		Parameters:
		  - context: context.Context
		  - id: string
		  - now: time.Time

		Returns:
		  - bool: true when this call performed the transition
		  - error: Storage failures
	*/
	ClearExpiredSuspension(context context.Context, id string, now time.Time) (bool, error)

	/*
		List returns one page of users, newest first, and the total match count.

		Parameters:
		  - context: context.Context
		  - filter: ListFilter

		Returns:
		  - []UserSummary: Page items
		  - int: Total rows matching the filter
		  - error: Storage failures
	*/
	List(context context.Context, filter ListFilter) ([]UserSummary, int, error)

	/*
		ApplyStatusChange updates the account and records the audit row atomically.

		Parameters:
		  - context: context.Context
		  - change: StatusChange

		Returns:
		  - error: apperr.NotFound when the user does not exist, or storage failures
	*/
	ApplyStatusChange(context context.Context, change StatusChange) error
}
