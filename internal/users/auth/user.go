// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"time"

	"github.com/taibuivan/riyamaga/internal/platform/sec"
)

// # Domain Entities

// User is the marketplace account as seen by the identity core.
//
// Phone is the unique external identity. Role and Status are the only
// authorization-relevant fields.
type User struct {
	ID              string
	Phone           string
	Email           *string
	FullName        *string
	Role            sec.UserRole
	Status          sec.AccountStatus
	SuspendedUntil  *time.Time
	IsPhoneVerified bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Subject returns the claims embedded in tokens issued for this user.
func (user *User) Subject() sec.Subject {
	return sec.Subject{ID: user.ID, Role: user.Role, Phone: user.Phone}
}

// Identity returns the live request identity built from stored values.
func (user *User) Identity() *sec.Identity {
	return &sec.Identity{
		ID:             user.ID,
		Role:           user.Role,
		Phone:          user.Phone,
		Status:         user.Status,
		SuspendedUntil: user.SuspendedUntil,
	}
}

// Public returns the sanitised projection sent to clients.
func (user *User) Public() *PublicUser {
	return &PublicUser{
		ID:              user.ID,
		Phone:           user.Phone,
		Email:           user.Email,
		FullName:        user.FullName,
		Role:            user.Role,
		IsPhoneVerified: user.IsPhoneVerified,
		CreatedAt:       user.CreatedAt,
	}
}

// PublicUser is the client-facing user projection.
type PublicUser struct {
	ID              string       `json:"id"`
	Phone           string       `json:"phone"`
	Email           *string      `json:"email"`
	FullName        *string      `json:"full_name"`
	Role            sec.UserRole `json:"role"`
	IsPhoneVerified bool         `json:"is_phone_verified"`
	CreatedAt       time.Time    `json:"created_at"`
}

// OTPRequest is one issued login code. Only OTPHash is stored, never the code.
//
// For a phone, the row with the highest ID is authoritative; older rows are
// inert history. ConsumedAt is written at most once.
type OTPRequest struct {
	ID         int64
	Phone      string
	OTPHash    string
	Purpose    string
	CreatedAt  time.Time
	ExpiresAt  time.Time
	ConsumedAt *time.Time
	RequestIP  string
}

// IsConsumed reports whether the code was already exchanged for tokens.
func (otp *OTPRequest) IsConsumed() bool {
	return otp.ConsumedAt != nil
}

// IsExpired reports whether now is past the expiry instant.
func (otp *OTPRequest) IsExpired(now time.Time) bool {
	return now.After(otp.ExpiresAt)
}

// # Field Identifiers

const (
	FieldPhone = "phone"
	FieldOTP   = "otp"
)
