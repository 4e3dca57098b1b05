// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

import (
	"strings"
	"time"
)

// # User Roles

// UserRole represents the marketplace persona granted to an account.
type UserRole string

const (
	// Marketplace operator with moderation powers
	RoleAdmin UserRole = "ADMIN"

	// Professional seller managing inventory at scale
	RoleDealer UserRole = "DEALER"

	// Private seller listing their own vehicles
	RoleSeller UserRole = "SELLER"

	// Default role assigned on first OTP login
	RoleBuyer UserRole = "BUYER"
)

// ParseRole normalises a role name. ok is false for unknown roles.
func ParseRole(raw string) (role UserRole, ok bool) {
	switch UserRole(strings.ToUpper(strings.TrimSpace(raw))) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleDealer:
		return RoleDealer, true
	case RoleSeller:
		return RoleSeller, true
	case RoleBuyer:
		return RoleBuyer, true
	default:
		return "", false
	}
}

// In reports whether the role is one of allowed, ignoring case.
func (r UserRole) In(allowed ...UserRole) bool {
	for _, candidate := range allowed {
		if strings.EqualFold(string(r), string(candidate)) {
			return true
		}
	}
	return false
}

// # Account Standing

// AccountStatus is the moderation state of an account.
type AccountStatus string

const (
	StatusActive    AccountStatus = "ACTIVE"
	StatusSuspended AccountStatus = "SUSPENDED"
	StatusBanned    AccountStatus = "BANNED"
)

// ParseStatus normalises a status name. ok is false for unknown values.
func ParseStatus(raw string) (status AccountStatus, ok bool) {
	switch AccountStatus(strings.ToUpper(strings.TrimSpace(raw))) {
	case StatusActive:
		return StatusActive, true
	case StatusSuspended:
		return StatusSuspended, true
	case StatusBanned:
		return StatusBanned, true
	default:
		return "", false
	}
}

// Identity is the live view of the caller attached to authenticated requests.
//
// Role and Status come from the account store, never from token claims.
type Identity struct {
	ID             string        `json:"id"`
	Role           UserRole      `json:"role"`
	Phone          string        `json:"phone"`
	Status         AccountStatus `json:"status"`
	SuspendedUntil *time.Time    `json:"suspended_until"`
}
