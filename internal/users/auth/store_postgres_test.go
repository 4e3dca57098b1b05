// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/riyamaga/internal/platform/apperr"
	"github.com/taibuivan/riyamaga/internal/platform/sec"
	"github.com/taibuivan/riyamaga/internal/users/auth"
)

var otpColumns = []string{"id", "phone", "otp_hash", "purpose", "created_at", "expires_at", "consumed_at", "request_ip"}

var userColumns = []string{
	"id", "phone", "email", "full_name", "role", "status",
	"suspended_until", "is_phone_verified", "created_at", "updated_at",
}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return mock
}

/*
TestPostgresOTPRepository_Latest checks the ordering contract and the
no-row case.
*/
func TestPostgresOTPRepository_Latest(t *testing.T) {
	created := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	ip := "203.0.113.9"

	t.Run("found", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(regexp.QuoteMeta("FROM otp_requests WHERE phone = $1 ORDER BY id DESC LIMIT 1")).
			WithArgs(phone).
			WillReturnRows(pgxmock.NewRows(otpColumns).AddRow(
				int64(7), phone, "digest", "LOGIN", created, created.Add(5*time.Minute), (*time.Time)(nil), &ip,
			))

		otp, err := auth.NewOTPRepository(mock).Latest(context.Background(), phone)
		require.NoError(t, err)
		require.NotNil(t, otp)
		assert.Equal(t, int64(7), otp.ID)
		assert.Equal(t, "digest", otp.OTPHash)
		assert.False(t, otp.IsConsumed())
		assert.Equal(t, ip, otp.RequestIP)
	})

	t.Run("none", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(regexp.QuoteMeta("ORDER BY id DESC LIMIT 1")).
			WithArgs(phone).
			WillReturnError(pgx.ErrNoRows)

		otp, err := auth.NewOTPRepository(mock).Latest(context.Background(), phone)
		require.NoError(t, err)
		assert.Nil(t, otp)
	})

	t.Run("failure", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(regexp.QuoteMeta("FROM otp_requests")).
			WithArgs(phone).
			WillReturnError(errors.New("connection reset"))

		_, err := auth.NewOTPRepository(mock).Latest(context.Background(), phone)
		assert.ErrorContains(t, err, "postgres_otp_repo_latest_failed")
	})
}

// TestPostgresOTPRepository_Create writes back the generated id.
func TestPostgresOTPRepository_Create(t *testing.T) {
	mock := newMock(t)
	now := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO otp_requests (phone, otp_hash, purpose, created_at, expires_at, request_ip)")).
		WithArgs(phone, "digest", "LOGIN", now, now.Add(5*time.Minute), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(42)))

	otp := &auth.OTPRequest{
		Phone:     phone,
		OTPHash:   "digest",
		CreatedAt: now,
		ExpiresAt: now.Add(5 * time.Minute),
		RequestIP: "203.0.113.9",
	}
	require.NoError(t, auth.NewOTPRepository(mock).Create(context.Background(), otp))
	assert.Equal(t, int64(42), otp.ID)
	assert.Equal(t, "LOGIN", otp.Purpose)
}

/*
TestPostgresOTPRepository_Consume checks the conditional update reports
whether this caller won.
*/
func TestPostgresOTPRepository_Consume(t *testing.T) {
	at := time.Date(2026, 6, 1, 10, 1, 0, 0, time.UTC)

	tests := []struct {
		name     string
		affected int64
		want     bool
	}{
		{"won", 1, true},
		{"lost", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMock(t)
			mock.ExpectExec(regexp.QuoteMeta("UPDATE otp_requests SET consumed_at = $2 WHERE id = $1 AND consumed_at IS NULL")).
				WithArgs(int64(7), at).
				WillReturnResult(pgxmock.NewResult("UPDATE", tt.affected))

			won, err := auth.NewOTPRepository(mock).Consume(context.Background(), 7, at)
			require.NoError(t, err)
			assert.Equal(t, tt.want, won)
		})
	}
}

// TestPostgresUserRepository_Upsert relies on the phone unique key.
func TestPostgresUserRepository_Upsert(t *testing.T) {
	mock := newMock(t)
	now := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (phone) DO UPDATE SET is_phone_verified = TRUE")).
		WithArgs("new-id", phone, "BUYER", "ACTIVE", now).
		WillReturnRows(pgxmock.NewRows(userColumns).AddRow(
			"existing-id", phone, (*string)(nil), (*string)(nil), "SELLER", "ACTIVE",
			(*time.Time)(nil), true, now.Add(-time.Hour), now,
		))

	user, err := auth.NewUserRepository(mock).UpsertVerifiedByPhone(context.Background(), phone, "new-id", now)
	require.NoError(t, err)
	assert.Equal(t, "existing-id", user.ID)
	assert.Equal(t, sec.RoleSeller, user.Role)
	assert.Equal(t, sec.StatusActive, user.Status)
	assert.True(t, user.IsPhoneVerified)
	assert.Nil(t, user.Email)
}

// TestPostgresUserRepository_FindByID maps missing rows to NOT_FOUND.
func TestPostgresUserRepository_FindByID(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = $1")).
		WithArgs("ghost").
		WillReturnError(pgx.ErrNoRows)

	_, err := auth.NewUserRepository(mock).FindByID(context.Background(), "ghost")
	assert.True(t, apperr.HasCode(err, "NOT_FOUND"))
}
