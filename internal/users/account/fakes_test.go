// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package account_test

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/taibuivan/riyamaga/internal/platform/apperr"
	"github.com/taibuivan/riyamaga/internal/platform/events"
	"github.com/taibuivan/riyamaga/internal/platform/sec"
	"github.com/taibuivan/riyamaga/internal/users/account"
	"github.com/taibuivan/riyamaga/internal/users/auth"
)

type memoryAccounts struct {
	mu      sync.Mutex
	users   map[string]*auth.User
	changes []account.StatusChange

	// beforeClear runs inside ClearExpiredSuspension to simulate a concurrent writer.
	beforeClear func(users map[string]*auth.User)
	clearCalls  int
}

func newMemoryAccounts(users ...*auth.User) *memoryAccounts {
	store := &memoryAccounts{users: map[string]*auth.User{}}
	for _, user := range users {
		store.users[user.ID] = user
	}
	return store
}

func (store *memoryAccounts) FindByID(_ context.Context, id string) (*auth.User, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	user, ok := store.users[id]
	if !ok {
		return nil, apperr.NotFound("User")
	}
	copied := *user
	return &copied, nil
}

func (store *memoryAccounts) ClearExpiredSuspension(_ context.Context, id string, now time.Time) (bool, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	store.clearCalls++
	if store.beforeClear != nil {
		store.beforeClear(store.users)
	}

	user, ok := store.users[id]
	if !ok || user.Status != sec.StatusSuspended || user.SuspendedUntil == nil || user.SuspendedUntil.After(now) {
		return false, nil
	}
	user.Status = sec.StatusActive
	user.SuspendedUntil = nil
	return true, nil
}

func (store *memoryAccounts) List(_ context.Context, filter account.ListFilter) ([]account.UserSummary, int, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	matched := make([]account.UserSummary, 0)
	for _, user := range store.users {
		if filter.Query != "" && !strings.Contains(user.Phone, filter.Query) {
			continue
		}
		if filter.Status != "" && user.Status != filter.Status {
			continue
		}
		matched = append(matched, account.UserSummary{
			ID:             user.ID,
			Phone:          user.Phone,
			Role:           user.Role,
			Status:         user.Status,
			SuspendedUntil: user.SuspendedUntil,
			CreatedAt:      user.CreatedAt,
		})
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	start := min(filter.Offset(), len(matched))
	end := min(start+filter.Limit, len(matched))
	return matched[start:end], len(matched), nil
}

func (store *memoryAccounts) ApplyStatusChange(_ context.Context, change account.StatusChange) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	user, ok := store.users[change.UserID]
	if !ok {
		return apperr.NotFound("User")
	}
	user.Status = change.Status
	user.SuspendedUntil = change.SuspendedUntil
	store.changes = append(store.changes, change)
	return nil
}

func (store *memoryAccounts) get(id string) auth.User {
	store.mu.Lock()
	defer store.mu.Unlock()
	return *store.users[id]
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (publisher *recordingPublisher) Publish(_ context.Context, event events.Event) error {
	publisher.mu.Lock()
	defer publisher.mu.Unlock()
	publisher.events = append(publisher.events, event)
	return nil
}

func (publisher *recordingPublisher) count(eventType string) int {
	publisher.mu.Lock()
	defer publisher.mu.Unlock()

	n := 0
	for _, event := range publisher.events {
		if event.Type == eventType {
			n++
		}
	}
	return n
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var referenceTime = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

func at(offset time.Duration) *time.Time {
	t := referenceTime.Add(offset)
	return &t
}
