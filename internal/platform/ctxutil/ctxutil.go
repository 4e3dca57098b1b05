// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package ctxutil carries per-request values through [context.Context]:
// the correlation ID, the request logger and the live account identity.
//
// Keys are unexported so no other package can read or overwrite them.
package ctxutil

import (
	"context"
	"log/slog"

	"github.com/taibuivan/riyamaga/internal/platform/sec"
)

type key int

const (
	keyRequestID key = iota
	keyLogger
	keyIdentity
	keyIdentitySlot
)

// # Request Tracing

// WithRequestID returns a new context with the provided request ID attached.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, keyRequestID, id)
}

// GetRequestID retrieves the request ID from the context, or "".
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(keyRequestID).(string)
	return id
}

// # Structured Logging

// WithLogger returns a new context with the provided logger attached.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, keyLogger, logger)
}

// GetLogger retrieves the request logger, falling back to [slog.Default].
func GetLogger(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(keyLogger).(*slog.Logger); ok && logger != nil {
		return logger
	}
	return slog.Default()
}

// # Identity & Access

// WithIdentity attaches the live account identity.
//
// If an outer middleware installed an [IdentitySlot], it is filled as well.
func WithIdentity(ctx context.Context, identity *sec.Identity) context.Context {
	if slot, ok := ctx.Value(keyIdentitySlot).(*IdentitySlot); ok {
		slot.identity = identity
	}
	return context.WithValue(ctx, keyIdentity, identity)
}

// GetIdentity retrieves the [*sec.Identity]. Returns nil for anonymous requests.
func GetIdentity(ctx context.Context) *sec.Identity {
	identity, _ := ctx.Value(keyIdentity).(*sec.Identity)
	return identity
}

// IdentitySlot lets an outer middleware read the identity that an inner,
// route-level middleware attached after the outer one called next.
type IdentitySlot struct {
	identity *sec.Identity
}

// Identity returns the identity recorded in the slot, or nil.
func (slot *IdentitySlot) Identity() *sec.Identity {
	if slot == nil {
		return nil
	}
	return slot.identity
}

// WithIdentitySlot installs an empty [IdentitySlot].
func WithIdentitySlot(ctx context.Context) (context.Context, *IdentitySlot) {
	slot := &IdentitySlot{}
	return context.WithValue(ctx, keyIdentitySlot, slot), slot
}
