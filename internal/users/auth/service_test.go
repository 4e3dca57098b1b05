// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/riyamaga/internal/platform/apperr"
	"github.com/taibuivan/riyamaga/internal/platform/events"
	"github.com/taibuivan/riyamaga/internal/platform/sec"
	"github.com/taibuivan/riyamaga/internal/users/auth"
)

const phone = "+94770000001"

var meta = auth.ClientMeta{IP: "203.0.113.9"}

/*
TestRequestOTP_Cooldown checks that a second request inside the window never
creates a row and reports the remaining wait.
*/
func TestRequestOTP_Cooldown(t *testing.T) {
	f := newFixture(t, devConfig)
	ctx := context.Background()

	first, err := f.service.RequestOTP(ctx, phone, meta)
	require.NoError(t, err)
	assert.True(t, first.Issued)
	assert.Equal(t, 30, first.CooldownSeconds)
	assert.Equal(t, "123456", first.DevOTP)

	f.advance(10*time.Second + 400*time.Millisecond)
	second, err := f.service.RequestOTP(ctx, phone, meta)
	require.NoError(t, err)
	assert.False(t, second.Issued)
	assert.Equal(t, 20, second.CooldownSeconds)
	assert.Empty(t, second.DevOTP)
	assert.Equal(t, 1, f.otps.count(phone))

	f.advance(20 * time.Second)
	third, err := f.service.RequestOTP(ctx, phone, meta)
	require.NoError(t, err)
	assert.True(t, third.Issued)
	assert.Equal(t, 2, f.otps.count(phone))

	assert.Equal(t, []string{events.TypeOTPRequested, events.TypeOTPRequested}, f.publisher.types())
}

/*
TestRequestOTP_RandomCode checks issued codes are 6 digits, stored hashed, and
only exposed when configured.
*/
func TestRequestOTP_RandomCode(t *testing.T) {
	tests := []struct {
		name   string
		expose bool
	}{
		{"development", true},
		{"production", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, auth.Config{ExposeDevOTP: tt.expose})

			challenge, err := f.service.RequestOTP(context.Background(), phone, meta)
			require.NoError(t, err)

			sent := f.sender.codes[phone]
			require.Len(t, sent, sec.OTPDigits)
			assert.GreaterOrEqual(t, sent, "100000")

			row, err := f.otps.Latest(context.Background(), phone)
			require.NoError(t, err)
			assert.Equal(t, f.hasher.Hash(sent), row.OTPHash)
			assert.NotEqual(t, sent, row.OTPHash)
			assert.Equal(t, "203.0.113.9", row.RequestIP)
			assert.Equal(t, f.now.Add(5*time.Minute), row.ExpiresAt)

			if tt.expose {
				assert.Equal(t, sent, challenge.DevOTP)
			} else {
				assert.Empty(t, challenge.DevOTP)
			}
		})
	}
}

// TestRequestOTP_DeliveryFailure keeps the issued row when SMS fails.
func TestRequestOTP_DeliveryFailure(t *testing.T) {
	f := newFixture(t, devConfig)
	f.sender.err = errBroken

	challenge, err := f.service.RequestOTP(context.Background(), phone, meta)
	require.NoError(t, err)
	assert.True(t, challenge.Issued)
	assert.Equal(t, 1, f.otps.count(phone))
}

/*
TestVerifyOTP_Failures covers each rejection, applied in order against the
latest row.
*/
func TestVerifyOTP_Failures(t *testing.T) {
	tests := []struct {
		name     string
		prepare  func(f *fixture)
		code     string
		wantCode string
	}{
		{
			name:     "not_found",
			prepare:  func(*fixture) {},
			code:     "123456",
			wantCode: "OTP_NOT_FOUND",
		},
		{
			name: "mismatch",
			prepare: func(f *fixture) {
				_, _ = f.service.RequestOTP(context.Background(), phone, meta)
			},
			code:     "654321",
			wantCode: "OTP_MISMATCH",
		},
		{
			name: "expired",
			prepare: func(f *fixture) {
				_, _ = f.service.RequestOTP(context.Background(), phone, meta)
				f.advance(5*time.Minute + time.Second)
			},
			code:     "123456",
			wantCode: "OTP_EXPIRED",
		},
		{
			name: "already_used",
			prepare: func(f *fixture) {
				_, _ = f.service.RequestOTP(context.Background(), phone, meta)
				_, _ = f.service.VerifyOTP(context.Background(), phone, "123456", meta)
			},
			code:     "123456",
			wantCode: "OTP_ALREADY_USED",
		},
		{
			name: "consumed_beats_expired",
			prepare: func(f *fixture) {
				_, _ = f.service.RequestOTP(context.Background(), phone, meta)
				_, _ = f.service.VerifyOTP(context.Background(), phone, "123456", meta)
				f.advance(time.Hour)
			},
			code:     "123456",
			wantCode: "OTP_ALREADY_USED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, devConfig)
			tt.prepare(f)

			session, err := f.service.VerifyOTP(context.Background(), phone, tt.code, meta)
			assert.Nil(t, session)

			appErr := apperr.As(err)
			require.NotNil(t, appErr)
			assert.Equal(t, tt.wantCode, appErr.Code)
			assert.Equal(t, 400, appErr.HTTPStatus)
		})
	}
}

// TestVerifyOTP_MismatchKeepsRow checks a wrong code never consumes the row.
func TestVerifyOTP_MismatchKeepsRow(t *testing.T) {
	f := newFixture(t, devConfig)
	ctx := context.Background()

	_, err := f.service.RequestOTP(ctx, phone, meta)
	require.NoError(t, err)

	for range 3 {
		_, err = f.service.VerifyOTP(ctx, phone, "000000", meta)
		assert.ErrorIs(t, err, auth.ErrOTPMismatch)
	}

	session, err := f.service.VerifyOTP(ctx, phone, "123456", meta)
	require.NoError(t, err)
	assert.NotEmpty(t, session.AccessToken)
}

// TestVerifyOTP_GenericErrors hides the failure reason in hardened mode.
func TestVerifyOTP_GenericErrors(t *testing.T) {
	cfg := devConfig
	cfg.GenericOTPErrors = true
	f := newFixture(t, cfg)

	_, err := f.service.VerifyOTP(context.Background(), phone, "123456", meta)
	assert.True(t, apperr.HasCode(err, "OTP_INVALID"))

	_, err = f.service.RequestOTP(context.Background(), phone, meta)
	require.NoError(t, err)
	_, err = f.service.VerifyOTP(context.Background(), phone, "999999", meta)
	assert.True(t, apperr.HasCode(err, "OTP_INVALID"))
}

/*
TestVerifyOTP_CreatesBuyer checks the lazy account creation and the token
pair contents.
*/
func TestVerifyOTP_CreatesBuyer(t *testing.T) {
	f := newFixture(t, devConfig)
	ctx := context.Background()

	_, err := f.service.RequestOTP(ctx, phone, meta)
	require.NoError(t, err)

	session, err := f.service.VerifyOTP(ctx, phone, "123456", meta)
	require.NoError(t, err)

	assert.Equal(t, sec.RoleBuyer, session.User.Role)
	assert.True(t, session.User.IsPhoneVerified)
	assert.Equal(t, phone, session.User.Phone)
	assert.Equal(t, f.now.Add(30*24*time.Hour), session.RefreshExpiresAt)

	access, err := f.tokens.VerifyAccess(session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, sec.Subject{ID: session.User.ID, Role: sec.RoleBuyer, Phone: phone}, access.Subject())

	refresh, err := f.tokens.VerifyRefresh(session.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, refresh.UserID)

	assert.Contains(t, f.publisher.types(), events.TypeLogin)
}

// TestVerifyOTP_ExistingUserKeepsRole flips verification without touching the role.
func TestVerifyOTP_ExistingUserKeepsRole(t *testing.T) {
	f := newFixture(t, devConfig)
	f.users.put(&auth.User{ID: "dealer-1", Phone: phone, Role: sec.RoleDealer, Status: sec.StatusActive})

	_, err := f.service.RequestOTP(context.Background(), phone, meta)
	require.NoError(t, err)

	session, err := f.service.VerifyOTP(context.Background(), phone, "123456", meta)
	require.NoError(t, err)
	assert.Equal(t, "dealer-1", session.User.ID)
	assert.Equal(t, sec.RoleDealer, session.User.Role)
	assert.True(t, session.User.IsPhoneVerified)
}

// TestVerifyOTP_LatestRowWins checks an older code is inert once a newer one exists.
func TestVerifyOTP_LatestRowWins(t *testing.T) {
	f := newFixture(t, auth.Config{})
	ctx := context.Background()

	_, err := f.service.RequestOTP(ctx, phone, meta)
	require.NoError(t, err)
	old := f.sender.codes[phone]

	f.advance(31 * time.Second)
	_, err = f.service.RequestOTP(ctx, phone, meta)
	require.NoError(t, err)
	fresh := f.sender.codes[phone]

	if old != fresh {
		_, err = f.service.VerifyOTP(ctx, phone, old, meta)
		assert.ErrorIs(t, err, auth.ErrOTPMismatch)
	}

	_, err = f.service.VerifyOTP(ctx, phone, fresh, meta)
	assert.NoError(t, err)
}

/*
TestVerifyOTP_BannedBurnsCode checks a banned account is refused after its
code has been consumed.
*/
func TestVerifyOTP_BannedBurnsCode(t *testing.T) {
	f := newFixture(t, devConfig)
	f.users.put(&auth.User{ID: "banned-1", Phone: phone, Role: sec.RoleBuyer, Status: sec.StatusBanned})
	ctx := context.Background()

	_, err := f.service.RequestOTP(ctx, phone, meta)
	require.NoError(t, err)

	_, err = f.service.VerifyOTP(ctx, phone, "123456", meta)
	assert.ErrorIs(t, err, auth.ErrAccountBanned)

	row, err := f.otps.Latest(ctx, phone)
	require.NoError(t, err)
	assert.True(t, row.IsConsumed())

	_, err = f.service.VerifyOTP(ctx, phone, "123456", meta)
	assert.ErrorIs(t, err, auth.ErrOTPAlreadyUsed)
}

/*
TestVerifyOTP_ConcurrentSubmit races identical submissions: exactly one wins,
every other caller sees OTP_ALREADY_USED.
*/
func TestVerifyOTP_ConcurrentSubmit(t *testing.T) {
	f := newFixture(t, devConfig)
	ctx := context.Background()

	_, err := f.service.RequestOTP(ctx, phone, meta)
	require.NoError(t, err)

	const callers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		failures  []error
	)

	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.VerifyOTP(ctx, phone, "123456", meta)

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
				return
			}
			failures = append(failures, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	require.Len(t, failures, callers-1)
	for _, err := range failures {
		assert.True(t, errors.Is(err, auth.ErrOTPAlreadyUsed), "unexpected error: %v", err)
	}
}

/*
TestRefresh walks the refresh failure modes and the rotation policy.
*/
func TestRefresh(t *testing.T) {
	f := newFixture(t, devConfig)
	ctx := context.Background()

	_, err := f.service.RequestOTP(ctx, phone, meta)
	require.NoError(t, err)
	session, err := f.service.VerifyOTP(ctx, phone, "123456", meta)
	require.NoError(t, err)

	t.Run("missing", func(t *testing.T) {
		_, err := f.service.Refresh(ctx, "", meta)
		assert.True(t, apperr.HasCode(err, "NO_REFRESH"))
	})

	t.Run("garbled", func(t *testing.T) {
		_, err := f.service.Refresh(ctx, "garbage", meta)
		assert.True(t, apperr.HasCode(err, "UNAUTHORIZED"))
	})

	t.Run("access_token_rejected", func(t *testing.T) {
		_, err := f.service.Refresh(ctx, session.AccessToken, meta)
		assert.True(t, apperr.HasCode(err, "UNAUTHORIZED"))
	})

	t.Run("unknown_user", func(t *testing.T) {
		orphan, err := f.tokens.IssueRefresh(sec.Subject{ID: "ghost", Role: sec.RoleBuyer})
		require.NoError(t, err)
		_, err = f.service.Refresh(ctx, orphan, meta)
		assert.True(t, apperr.HasCode(err, "UNAUTHORIZED"))
	})

	t.Run("rotates_and_reads_live_role", func(t *testing.T) {
		f.users.update(phone, func(user *auth.User) { user.Role = sec.RoleSeller })

		refreshed, err := f.service.Refresh(ctx, session.RefreshToken, meta)
		require.NoError(t, err)
		require.NotEmpty(t, refreshed.RefreshToken)

		claims, err := f.tokens.VerifyAccess(refreshed.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, sec.RoleSeller, claims.Role)
		assert.Equal(t, f.now.Add(15*time.Minute).Unix(), claims.ExpiresAt.Unix())

		_, err = f.tokens.VerifyRefresh(refreshed.RefreshToken)
		assert.NoError(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		f.advance(31 * 24 * time.Hour)
		defer f.advance(-31 * 24 * time.Hour)

		_, err := f.service.Refresh(ctx, session.RefreshToken, meta)
		assert.True(t, apperr.HasCode(err, "UNAUTHORIZED"))
	})

	t.Run("banned", func(t *testing.T) {
		f.users.update(phone, func(user *auth.User) { user.Status = sec.StatusBanned })

		_, err := f.service.Refresh(ctx, session.RefreshToken, meta)
		assert.ErrorIs(t, err, auth.ErrAccountBanned)
	})
}

// TestRefresh_WithoutRotation keeps the existing cookie untouched.
func TestRefresh_WithoutRotation(t *testing.T) {
	cfg := devConfig
	cfg.RotateRefresh = false
	f := newFixture(t, cfg)
	ctx := context.Background()

	_, err := f.service.RequestOTP(ctx, phone, meta)
	require.NoError(t, err)
	session, err := f.service.VerifyOTP(ctx, phone, "123456", meta)
	require.NoError(t, err)

	refreshed, err := f.service.Refresh(ctx, session.RefreshToken, meta)
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)
	assert.Empty(t, refreshed.RefreshToken)
}
