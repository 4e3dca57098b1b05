// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package events publishes security events (logins, refreshes, OTP issuance,
status changes) for downstream auditing.

Events never carry OTP codes or tokens. Phone numbers are masked.
*/
package events

import (
	"context"
	"log/slog"
	"time"
)

// Event types emitted by the identity service.
const (
	TypeOTPRequested        = "otp.requested"
	TypeLogin               = "auth.login"
	TypeRefreshed           = "auth.refreshed"
	TypeAccountUnsuspended  = "account.unsuspended"
	TypeAccountStatusChange = "account.status_changed"
)

// Event is one security-relevant occurrence.
type Event struct {
	Type       string            `json:"type"`
	UserID     string            `json:"user_id,omitempty"`
	Phone      string            `json:"phone,omitempty"`
	IP         string            `json:"ip,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Publisher delivers events. Implementations must not block the request path
// for long; failures are reported, never retried by callers.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// MaskPhone keeps the last four digits of a phone number.
func MaskPhone(phone string) string {
	const visible = 4
	if len(phone) <= visible {
		return phone
	}
	masked := make([]byte, len(phone))
	for i := range phone {
		if i >= len(phone)-visible || phone[i] == '+' {
			masked[i] = phone[i]
		} else {
			masked[i] = '*'
		}
	}
	return string(masked)
}

// # Logger Publisher

// LogPublisher writes events to the structured log. Used when no brokers are configured.
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher creates a [LogPublisher].
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// Publish implements [Publisher].
func (publisher *LogPublisher) Publish(ctx context.Context, event Event) error {
	publisher.logger.InfoContext(ctx, "security_event",
		slog.String("type", event.Type),
		slog.String("user_id", event.UserID),
		slog.String("phone", MaskPhone(event.Phone)),
		slog.String("ip", event.IP),
		slog.Time("occurred_at", event.OccurredAt),
		slog.Any("attributes", event.Attributes),
	)
	return nil
}
