// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package dberr provides a bridge between low-level database errors and
// higher-level application errors.
package dberr

import (
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/taibuivan/riyamaga/internal/platform/apperr"
)

// IsNotFound reports whether err means the query matched no rows.
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// IsInvalidText reports whether a parameter failed to parse as its column
// type, e.g. a malformed UUID.
func IsInvalidText(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.InvalidTextRepresentation
}

// IsUniqueViolation reports whether err is a Postgres unique constraint failure.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// Wrap inspects a database error and wraps it into a meaningful [apperr.AppError].
// It hides internal database details from the client while classifying the error type.
func Wrap(err error, resource string) error {
	if err == nil {
		return nil
	}

	// 1. Not Found mapping; an unparseable key cannot match a row either
	if IsNotFound(err) || IsInvalidText(err) {
		return apperr.NotFound(resource)
	}

	// 2. Duplicate keys
	if IsUniqueViolation(err) {
		conflict := apperr.Conflict(resource + " already exists")
		conflict.Cause = err
		return conflict
	}

	// 3. Unknown query errors become Internal Server Errors
	return apperr.Internal(err)
}
