// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/taibuivan/riyamaga/internal/platform/constants"
	"github.com/taibuivan/riyamaga/internal/platform/database/schema"
	"github.com/taibuivan/riyamaga/internal/platform/dberr"
	"github.com/taibuivan/riyamaga/internal/platform/postgres"
	"github.com/taibuivan/riyamaga/internal/platform/sec"
)

// UserColumns is the user projection shared by every repository, in [ScanUser] order.
var UserColumns = strings.Join(schema.User.Columns(), ", ")

// ScanUser hydrates a [User] from a row selected with [UserColumns].
func ScanUser(row pgx.Row) (*User, error) {
	var (
		user   User
		role   string
		status string
	)

	err := row.Scan(
		&user.ID,
		&user.Phone,
		&user.Email,
		&user.FullName,
		&role,
		&status,
		&user.SuspendedUntil,
		&user.IsPhoneVerified,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	user.Role = sec.UserRole(role)
	user.Status = sec.AccountStatus(status)
	return &user, nil
}

// # OTP Repository

// PostgresOTPRepository implements [OTPRepository] on the otp_requests table.
type PostgresOTPRepository struct {
	db postgres.DBTX
}

// NewOTPRepository creates a PostgreSQL implementation of [OTPRepository].
func NewOTPRepository(db postgres.DBTX) *PostgresOTPRepository {
	return &PostgresOTPRepository{db: db}
}

// Latest fetches the single row with the highest id for phone.
func (repository *PostgresOTPRepository) Latest(context context.Context, phone string) (*OTPRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1 ORDER BY %s DESC LIMIT 1`,
		strings.Join(schema.OTPRequest.Columns(), ", "),
		schema.OTPRequest.Table, schema.OTPRequest.Phone, schema.OTPRequest.ID)

	var (
		otp       OTPRequest
		requestIP *string
	)

	err := repository.db.QueryRow(context, query, phone).Scan(
		&otp.ID,
		&otp.Phone,
		&otp.OTPHash,
		&otp.Purpose,
		&otp.CreatedAt,
		&otp.ExpiresAt,
		&otp.ConsumedAt,
		&requestIP,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres_otp_repo_latest_failed: %w", err)
	}

	if requestIP != nil {
		otp.RequestIP = *requestIP
	}
	return &otp, nil
}

// Create inserts a new code and writes the generated id back into otp.
func (repository *PostgresOTPRepository) Create(context context.Context, otp *OTPRequest) error {
	query := fmt.Sprintf(`INSERT INTO %s (%s, %s, %s, %s, %s, %s) VALUES ($1, $2, $3, $4, $5, $6) RETURNING %s`,
		schema.OTPRequest.Table,
		schema.OTPRequest.Phone, schema.OTPRequest.OTPHash, schema.OTPRequest.Purpose,
		schema.OTPRequest.CreatedAt, schema.OTPRequest.ExpiresAt, schema.OTPRequest.RequestIP,
		schema.OTPRequest.ID)

	if otp.Purpose == "" {
		otp.Purpose = constants.OTPPurposeLogin
	}

	var requestIP *string
	if otp.RequestIP != "" {
		requestIP = &otp.RequestIP
	}

	err := repository.db.QueryRow(context, query,
		otp.Phone,
		otp.OTPHash,
		otp.Purpose,
		otp.CreatedAt,
		otp.ExpiresAt,
		requestIP,
	).Scan(&otp.ID)
	if err != nil {
		return fmt.Errorf("postgres_otp_repo_create_failed: %w", err)
	}

	return nil
}

// Consume is a conditional update; of two concurrent callers exactly one
// observes an affected row.
func (repository *PostgresOTPRepository) Consume(context context.Context, id int64, at time.Time) (bool, error) {
	query := fmt.Sprintf(`UPDATE %s SET %s = $2 WHERE %s = $1 AND %s IS NULL`,
		schema.OTPRequest.Table, schema.OTPRequest.ConsumedAt,
		schema.OTPRequest.ID, schema.OTPRequest.ConsumedAt)

	tag, err := repository.db.Exec(context, query, id, at)
	if err != nil {
		return false, fmt.Errorf("postgres_otp_repo_consume_failed: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// # User Repository

// PostgresUserRepository implements [UserRepository] on the users table.
type PostgresUserRepository struct {
	db postgres.DBTX
}

// NewUserRepository creates a PostgreSQL implementation of [UserRepository].
func NewUserRepository(db postgres.DBTX) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

/*
UpsertVerifiedByPhone inserts a BUYER or flips is_phone_verified on the
existing row, relying on the users_phone_key unique constraint.

Parameters:
  - context: context.Context
  - phone: string
  - newID: string
  - now: time.Time

Returns:
  - *User: Row as stored after the write
  - error: Storage failures
*/
func (repository *PostgresUserRepository) UpsertVerifiedByPhone(context context.Context, phone, newID string, now time.Time) (*User, error) {
	query := fmt.Sprintf(`
		INSERT INTO %[1]s (%[2]s, %[3]s, %[4]s, %[5]s, %[6]s, %[7]s, %[8]s)
		VALUES ($1, $2, $3, $4, TRUE, $5, $5)
		ON CONFLICT (%[3]s) DO UPDATE
		SET %[6]s = TRUE,
		    %[8]s = CASE WHEN %[1]s.%[6]s THEN %[1]s.%[8]s ELSE EXCLUDED.%[8]s END
		RETURNING %[9]s`,
		schema.User.Table,
		schema.User.ID, schema.User.Phone, schema.User.Role, schema.User.Status,
		schema.User.IsPhoneVerified, schema.User.CreatedAt, schema.User.UpdatedAt,
		UserColumns)

	user, err := ScanUser(repository.db.QueryRow(context, query,
		newID, phone, string(sec.RoleBuyer), string(sec.StatusActive), now,
	))
	if err != nil {
		return nil, fmt.Errorf("postgres_user_repo_upsert_failed: %w", err)
	}

	return user, nil
}

// FindByID loads a user by primary key.
func (repository *PostgresUserRepository) FindByID(context context.Context, id string) (*User, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1`,
		UserColumns, schema.User.Table, schema.User.ID)

	user, err := ScanUser(repository.db.QueryRow(context, query, id))
	if err != nil {
		return nil, dberr.Wrap(err, "User")
	}

	return user, nil
}
