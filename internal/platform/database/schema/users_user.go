// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package schema names the tables and columns used by the repositories.
package schema

// UserTable represents the 'users' table
type UserTable struct {
	Table           string
	ID              string
	Phone           string
	Email           string
	FullName        string
	Role            string
	Status          string
	SuspendedUntil  string
	IsPhoneVerified string
	CreatedAt       string
	UpdatedAt       string
}

// User is the schema definition for users
var User = UserTable{
	Table:           "users",
	ID:              "id",
	Phone:           "phone",
	Email:           "email",
	FullName:        "full_name",
	Role:            "role",
	Status:          "status",
	SuspendedUntil:  "suspended_until",
	IsPhoneVerified: "is_phone_verified",
	CreatedAt:       "created_at",
	UpdatedAt:       "updated_at",
}

// Columns returns the projection read by every user query, in scan order.
func (t UserTable) Columns() []string {
	return []string{
		t.ID, t.Phone, t.Email, t.FullName, t.Role, t.Status,
		t.SuspendedUntil, t.IsPhoneVerified, t.CreatedAt, t.UpdatedAt,
	}
}

// OTPRequestTable represents the 'otp_requests' table
type OTPRequestTable struct {
	Table      string
	ID         string
	Phone      string
	OTPHash    string
	Purpose    string
	CreatedAt  string
	ExpiresAt  string
	ConsumedAt string
	RequestIP  string
}

// OTPRequest is the schema definition for otp_requests
var OTPRequest = OTPRequestTable{
	Table:      "otp_requests",
	ID:         "id",
	Phone:      "phone",
	OTPHash:    "otp_hash",
	Purpose:    "purpose",
	CreatedAt:  "created_at",
	ExpiresAt:  "expires_at",
	ConsumedAt: "consumed_at",
	RequestIP:  "request_ip",
}

// Columns returns all standard column names
func (t OTPRequestTable) Columns() []string {
	return []string{
		t.ID, t.Phone, t.OTPHash, t.Purpose, t.CreatedAt,
		t.ExpiresAt, t.ConsumedAt, t.RequestIP,
	}
}
