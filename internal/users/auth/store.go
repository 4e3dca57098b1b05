// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"time"
)

// # Repository Contracts

// OTPRepository defines the persistence contract for issued login codes.
type OTPRepository interface {
	/*
		Latest returns the most recent code issued for a phone.

		Ordering is by the strictly increasing row id, never by timestamp, so
		concurrent issuances cannot make an older row authoritative.

		Parameters:
		  - context: context.Context
		  - phone: string

		Returns:
		  - *OTPRequest: The authoritative row, or nil when the phone has none
		  - error: Storage failures
	*/
	Latest(context context.Context, phone string) (*OTPRequest, error)

	/*
		Create persists a new code and assigns its ID.

		Parameters:
		  - context: context.Context
		  - otp: *OTPRequest

		Returns:
		  - error: Storage failures
	*/
	Create(context context.Context, otp *OTPRequest) error

	/*
		Consume marks a row as used if and only if it is still unused.

		Parameters:
		  - context: context.Context
		  - id: int64
		  - at: time.Time

		Returns:
		  - bool: true when this caller performed the transition
		  - error: Storage failures
	*/
	Consume(context context.Context, id int64, at time.Time) (bool, error)
}

// UserRepository defines the persistence contract used by the login flow.
type UserRepository interface {
	/*
		UpsertVerifiedByPhone creates a BUYER for an unseen phone or marks an
		existing account as phone-verified, in a single statement.

		Parameters:
		  - context: context.Context
		  - phone: string
		  - newID: string (used only when the row is created)
		  - now: time.Time

		Returns:
		  - *User: The stored account after the write
		  - error: Storage failures
	*/
	UpsertVerifiedByPhone(context context.Context, phone, newID string, now time.Time) (*User, error)

	/*
		FindByID retrieves a user by primary key.

		Parameters:
		  - context: context.Context
		  - id: string (UUID)

		Returns:
		  - *User: Loaded account
		  - error: apperr.NotFound or storage failures
	*/
	FindByID(context context.Context, id string) (*User, error)
}
