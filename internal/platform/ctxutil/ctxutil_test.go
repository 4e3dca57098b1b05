// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package ctxutil_test

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/riyamaga/internal/platform/ctxutil"
	"github.com/taibuivan/riyamaga/internal/platform/sec"
)

/*
TestContext_RequestID verifies that Request IDs can be injected and retrieved.
*/
func TestContext_RequestID(t *testing.T) {
	ctx := context.Background()
	requestID := "test-request-id"

	// 1. Initially should be empty
	assert.Empty(t, ctxutil.GetRequestID(ctx))

	// 2. Inject and retrieve
	ctx = ctxutil.WithRequestID(ctx, requestID)
	assert.Equal(t, requestID, ctxutil.GetRequestID(ctx))
}

/*
TestContext_Logger verifies that a custom logger can be stored in context.
*/
func TestContext_Logger(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// 1. Initially should return the default logger
	assert.Equal(t, slog.Default(), ctxutil.GetLogger(ctx))

	// 2. Inject and retrieve
	ctx = ctxutil.WithLogger(ctx, logger)
	assert.Equal(t, logger, ctxutil.GetLogger(ctx))
}

/*
TestContext_Identity verifies that the live identity can be stored in context.
*/
func TestContext_Identity(t *testing.T) {
	ctx := context.Background()
	identity := &sec.Identity{
		ID:     "user-123",
		Role:   sec.RoleAdmin,
		Phone:  "+94770000001",
		Status: sec.StatusActive,
	}

	// 1. Initially should be nil
	assert.Nil(t, ctxutil.GetIdentity(ctx))

	// 2. Inject and retrieve
	ctx = ctxutil.WithIdentity(ctx, identity)
	retrieved := ctxutil.GetIdentity(ctx)

	require.NotNil(t, retrieved)
	assert.Equal(t, "user-123", retrieved.ID)
	assert.Equal(t, sec.RoleAdmin, retrieved.Role)
}

/*
TestContext_IdentitySlot lets an outer layer observe an identity attached deeper in.
*/
func TestContext_IdentitySlot(t *testing.T) {
	outer, slot := ctxutil.WithIdentitySlot(context.Background())
	assert.Nil(t, slot.Identity())

	inner := ctxutil.WithIdentity(outer, &sec.Identity{ID: "user-9"})

	require.NotNil(t, slot.Identity())
	assert.Equal(t, "user-9", slot.Identity().ID)
	assert.Nil(t, ctxutil.GetIdentity(outer))
	assert.Equal(t, "user-9", ctxutil.GetIdentity(inner).ID)

	var missing *ctxutil.IdentitySlot
	assert.Nil(t, missing.Identity())
}
