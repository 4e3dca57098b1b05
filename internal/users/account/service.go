// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package account

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/taibuivan/riyamaga/internal/platform/events"
	"github.com/taibuivan/riyamaga/internal/platform/sec"
	"github.com/taibuivan/riyamaga/internal/platform/validate"
	"github.com/taibuivan/riyamaga/internal/users/auth"
	"github.com/taibuivan/riyamaga/pkg/pagination"
)

// NoteMaxLength bounds the free-text audit note.
const NoteMaxLength = 2000

// Field identifiers for validation errors.
const (
	FieldID             = "id"
	FieldStatus         = "status"
	FieldSuspendedUntil = "suspended_until"
	FieldNote           = "note"
)

// # Service Layer

// Service covers the caller's profile and administrative account control.
type Service struct {
	accountRepository AccountRepository
	publisher         events.Publisher
	logger            *slog.Logger
	now               func() time.Time
}

// NewService constructs a new [Service] with its dependencies.
func NewService(accountRepo AccountRepository, publisher events.Publisher, logger *slog.Logger) *Service {
	return &Service{
		accountRepository: accountRepo,
		publisher:         publisher,
		logger:            logger,
		now:               time.Now,
	}
}

// WithClock replaces the time source. Used by tests.
func (service *Service) WithClock(now func() time.Time) *Service {
	service.now = now
	return service
}

// # Profile

/*
GetProfile retrieves the account of the authenticated caller.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - *auth.User: The stored account
  - error: Not found or execution failures
*/
func (service *Service) GetProfile(context context.Context, userID string) (*auth.User, error) {
	user, err := service.accountRepository.FindByID(context, userID)
	if err != nil {
		return nil, fmt.Errorf("account_service_get_profile_failed: %w", err)
	}
	return user, nil
}

// # Administration

// ListUsers returns one page of accounts with pagination metadata.
func (service *Service) ListUsers(context context.Context, filter ListFilter) ([]UserSummary, pagination.Meta, error) {
	items, total, err := service.accountRepository.List(context, filter)
	if err != nil {
		return nil, pagination.Meta{}, fmt.Errorf("account_service_list_failed: %w", err)
	}
	return items, pagination.NewMeta(filter.Page, filter.Limit, total), nil
}

// StatusInput is the administrative request to move an account.
type StatusInput struct {
	Status         string
	SuspendedUntil *time.Time
	Note           *string
}

/*
UpdateStatus moves an account to ACTIVE, SUSPENDED or BANNED.

Description: SUSPENDED requires a future end instant; the other statuses
clear it. Admins cannot change their own status. The change and its audit
row are written together.

Parameters:
  - context: context.Context
  - admin: *sec.Identity (the caller)
  - userID: string (target)
  - input: StatusInput

Returns:
  - error: VALIDATION_ERROR, NOT_FOUND or storage failures
*/
func (service *Service) UpdateStatus(context context.Context, admin *sec.Identity, userID string, input StatusInput) error {
	now := service.now()

	status, ok := sec.ParseStatus(input.Status)

	validator := &validate.Validator{}
	validator.Custom(FieldID, admin.ID == userID, "You cannot change your own status").
		Custom(FieldStatus, !ok, "Must be one of: ACTIVE, SUSPENDED, BANNED")

	if status == sec.StatusSuspended {
		validator.Custom(FieldSuspendedUntil, input.SuspendedUntil == nil, "Required when status is SUSPENDED")
		if input.SuspendedUntil != nil {
			validator.Future(FieldSuspendedUntil, *input.SuspendedUntil, now)
		}
	}
	if input.Note != nil {
		validator.MaxLen(FieldNote, *input.Note, NoteMaxLength)
	}

	if err := validator.Err(); err != nil {
		return err
	}

	change := StatusChange{
		UserID:  userID,
		Status:  status,
		AdminID: admin.ID,
		Note:    input.Note,
		At:      now,
	}
	if status == sec.StatusSuspended {
		until := input.SuspendedUntil.UTC()
		change.SuspendedUntil = &until
	}

	if err := service.accountRepository.ApplyStatusChange(context, change); err != nil {
		return fmt.Errorf("account_service_update_status_failed: %w", err)
	}

	service.logger.InfoContext(context, "account_status_changed",
		slog.String("user_id", userID),
		slog.String("admin_id", admin.ID),
		slog.String("status", string(status)),
	)

	attributes := map[string]string{"status": string(status), "admin_id": admin.ID}
	if change.SuspendedUntil != nil {
		attributes["suspended_until"] = change.SuspendedUntil.Format(time.RFC3339)
	}
	if err := service.publisher.Publish(context, events.Event{
		Type:       events.TypeAccountStatusChange,
		UserID:     userID,
		OccurredAt: now,
		Attributes: attributes,
	}); err != nil {
		service.logger.WarnContext(context, "security_event_publish_failed",
			slog.String("type", events.TypeAccountStatusChange),
			slog.Any("error", err),
		)
	}

	return nil
}
