// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package uuid generates the time-ordered identifiers used for new user
// rows and request correlation IDs.
package uuid

import "github.com/google/uuid"

// New returns a UUIDv7 string, falling back to a random v4 if the v7
// generator fails.
func New() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
