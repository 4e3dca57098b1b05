// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import "time"

// # Input Constraints

const (
	// PhoneMinLength and PhoneMaxLength bound the raw phone input.
	PhoneMinLength = 7
	PhoneMaxLength = 20

	// OTPMinLength and OTPMaxLength bound the submitted code.
	// Issued codes are always six digits; the wider window keeps dev overrides usable.
	OTPMinLength = 4
	OTPMaxLength = 10
)

// # Defaults

const (
	// DefaultOTPTTL is how long an issued code stays verifiable.
	DefaultOTPTTL = 5 * time.Minute

	// DefaultOTPCooldown is the minimum gap between two issuances for one phone.
	DefaultOTPCooldown = 30 * time.Second
)
