// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/taibuivan/riyamaga/internal/platform/apperr"
	"github.com/taibuivan/riyamaga/internal/platform/events"
	"github.com/taibuivan/riyamaga/internal/platform/sec"
	"github.com/taibuivan/riyamaga/internal/users/auth"
)

// memoryOTPs serialises every call so Consume behaves like the conditional UPDATE.
type memoryOTPs struct {
	mu     sync.Mutex
	rows   []auth.OTPRequest
	nextID int64
}

func (store *memoryOTPs) Latest(_ context.Context, phone string) (*auth.OTPRequest, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	for i := len(store.rows) - 1; i >= 0; i-- {
		if store.rows[i].Phone == phone {
			row := store.rows[i]
			return &row, nil
		}
	}
	return nil, nil
}

func (store *memoryOTPs) Create(_ context.Context, otp *auth.OTPRequest) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	store.nextID++
	otp.ID = store.nextID
	store.rows = append(store.rows, *otp)
	return nil
}

func (store *memoryOTPs) Consume(_ context.Context, id int64, at time.Time) (bool, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	for i := range store.rows {
		if store.rows[i].ID == id && store.rows[i].ConsumedAt == nil {
			store.rows[i].ConsumedAt = &at
			return true, nil
		}
	}
	return false, nil
}

func (store *memoryOTPs) count(phone string) int {
	store.mu.Lock()
	defer store.mu.Unlock()

	n := 0
	for _, row := range store.rows {
		if row.Phone == phone {
			n++
		}
	}
	return n
}

type memoryUsers struct {
	mu      sync.Mutex
	byPhone map[string]*auth.User
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{byPhone: map[string]*auth.User{}}
}

func (store *memoryUsers) UpsertVerifiedByPhone(_ context.Context, phone, newID string, now time.Time) (*auth.User, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	user, ok := store.byPhone[phone]
	if !ok {
		user = &auth.User{
			ID:        newID,
			Phone:     phone,
			Role:      sec.RoleBuyer,
			Status:    sec.StatusActive,
			CreatedAt: now,
			UpdatedAt: now,
		}
		store.byPhone[phone] = user
	}
	user.IsPhoneVerified = true

	copied := *user
	return &copied, nil
}

func (store *memoryUsers) FindByID(_ context.Context, id string) (*auth.User, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	for _, user := range store.byPhone {
		if user.ID == id {
			copied := *user
			return &copied, nil
		}
	}
	return nil, apperr.NotFound("User")
}

func (store *memoryUsers) put(user *auth.User) {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.byPhone[user.Phone] = user
}

func (store *memoryUsers) update(phone string, mutate func(*auth.User)) {
	store.mu.Lock()
	defer store.mu.Unlock()
	mutate(store.byPhone[phone])
}

type recordingSender struct {
	mu    sync.Mutex
	codes map[string]string
	err   error
}

func (sender *recordingSender) SendOTP(_ context.Context, phone, code string) error {
	sender.mu.Lock()
	defer sender.mu.Unlock()

	if sender.codes == nil {
		sender.codes = map[string]string{}
	}
	sender.codes[phone] = code
	return sender.err
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

func (publisher *recordingPublisher) types() []string {
	publisher.mu.Lock()
	defer publisher.mu.Unlock()

	types := make([]string, 0, len(publisher.events))
	for _, event := range publisher.events {
		types = append(types, event.Type)
	}
	return types
}

var errBroken = errors.New("broken pipe")

// fixture wires a Service on in-memory stores with a controllable clock.
type fixture struct {
	service   *auth.Service
	otps      *memoryOTPs
	users     *memoryUsers
	sender    *recordingSender
	publisher *recordingPublisher
	tokens    *sec.TokenService
	hasher    *sec.OTPHasher
	now       *time.Time
}

func newFixture(t *testing.T, cfg auth.Config) *fixture {
	t.Helper()

	now := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	tokens, err := sec.NewTokenService(sec.TokenConfig{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    30 * 24 * time.Hour,
		Issuer:        "riyamaga.api",
	})
	require.NoError(t, err)
	tokens = tokens.WithClock(clock)

	hasher, err := sec.NewOTPHasher("")
	require.NoError(t, err)

	if cfg.OTPTTL == 0 {
		cfg.OTPTTL = 5 * time.Minute
	}
	if cfg.OTPCooldown == 0 {
		cfg.OTPCooldown = 30 * time.Second
	}

	f := &fixture{
		otps:      &memoryOTPs{},
		users:     newMemoryUsers(),
		sender:    &recordingSender{},
		publisher: &recordingPublisher{},
		tokens:    tokens,
		hasher:    hasher,
		now:       &now,
	}
	f.service = auth.NewService(f.otps, f.users, tokens, hasher, f.sender, f.publisher, cfg, discardLogger()).
		WithClock(clock)
	return f
}

func (f *fixture) advance(d time.Duration) {
	*f.now = f.now.Add(d)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var devConfig = auth.Config{DevOTP: "123456", ExposeDevOTP: true, RotateRefresh: true}
