// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package account

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/taibuivan/riyamaga/internal/platform/database/schema"
	"github.com/taibuivan/riyamaga/internal/platform/dberr"
	"github.com/taibuivan/riyamaga/internal/platform/postgres"
	"github.com/taibuivan/riyamaga/internal/platform/sec"
	"github.com/taibuivan/riyamaga/internal/users/auth"
)

// PostgresAccountRepository implements [AccountRepository] using pgx.
type PostgresAccountRepository struct {
	db postgres.DBTX
}

// NewAccountRepository creates a new PostgreSQL implementation of [AccountRepository].
func NewAccountRepository(db postgres.DBTX) *PostgresAccountRepository {
	return &PostgresAccountRepository{db: db}
}

// FindByID loads the full account row.
func (repository *PostgresAccountRepository) FindByID(context context.Context, id string) (*auth.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1`,
		auth.UserColumns, schema.User.Table, schema.User.ID)

	user, err := auth.ScanUser(repository.db.QueryRow(context, query, id))
	if err != nil {
		return nil, dberr.Wrap(err, "User")
	}

	return user, nil
}

/*
ClearExpiredSuspension flips SUSPENDED to ACTIVE when the end instant has passed.

Description: The status and time checks live in the WHERE clause so that a
concurrent admin change is never overwritten.

Parameters:
  - context: context.Context
  - id: string
  - now: time.Time

Returns:
  - bool: Whether a row was updated
  - error: Storage failures
*/
func (repository *PostgresAccountRepository) ClearExpiredSuspension(context context.Context, id string, now time.Time) (bool, error) {
	query := fmt.Sprintf(`
		UPDATE %[1]s
		SET %[2]s = '%[5]s', %[3]s = NULL, %[4]s = $2
		WHERE %[6]s = $1 AND %[2]s = '%[7]s' AND %[3]s IS NOT NULL AND %[3]s <= $2`,
		schema.User.Table,
		schema.User.Status, schema.User.SuspendedUntil, schema.User.UpdatedAt,
		sec.StatusActive, schema.User.ID, sec.StatusSuspended)

	tag, err := repository.db.Exec(context, query, id, now)
	if err != nil {
		return false, fmt.Errorf("postgres_account_repo_unsuspend_failed: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// List runs a count and a page query sharing the same filter.
func (repository *PostgresAccountRepository) List(context context.Context, filter ListFilter) ([]UserSummary, int, error) {
	var (
		where []string
		args  []any
	)

	if q := strings.TrimSpace(filter.Query); q != "" {
		args = append(args, q)
		where = append(where, fmt.Sprintf("strpos(%s, $%d) > 0", schema.User.Phone, len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("%s = $%d", schema.User.Status, len(args)))
	}

	whereSQL := ""
	if len(where) > 0 {
		whereSQL = "WHERE " + strings.Join(where, " AND ")
	}

	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM %s %s`, schema.User.Table, whereSQL)

	var total int
	if err := repository.db.QueryRow(context, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, dberr.Wrap(err, "count_users")
	}

	pageQuery := fmt.Sprintf(`SELECT %s, %s, %s, %s, %s, %s FROM %s %s ORDER BY %s DESC LIMIT $%d OFFSET $%d`,
		schema.User.ID, schema.User.Phone, schema.User.Role, schema.User.Status,
		schema.User.SuspendedUntil, schema.User.CreatedAt,
		schema.User.Table, whereSQL, schema.User.CreatedAt,
		len(args)+1, len(args)+2)

	rows, err := repository.db.Query(context, pageQuery, append(args, filter.Limit, filter.Offset())...)
	if err != nil {
		return nil, 0, dberr.Wrap(err, "list_users")
	}
	defer rows.Close()

	items := make([]UserSummary, 0, filter.Limit)
	for rows.Next() {
		var (
			item   UserSummary
			role   string
			status string
		)
		if err := rows.Scan(&item.ID, &item.Phone, &role, &status, &item.SuspendedUntil, &item.CreatedAt); err != nil {
			return nil, 0, dberr.Wrap(err, "scan_user")
		}
		item.Role = sec.UserRole(role)
		item.Status = sec.AccountStatus(status)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, dberr.Wrap(err, "list_users")
	}

	return items, total, nil
}

/*
ApplyStatusChange updates the user and inserts the audit row in one statement.

Description: The insert selects from the UPDATE's RETURNING set, so a
missing user produces no audit row and surfaces as NOT_FOUND.

Parameters:
  - context: context.Context
  - change: StatusChange

Returns:
  - error: apperr.NotFound or storage failures
*/
func (repository *PostgresAccountRepository) ApplyStatusChange(context context.Context, change StatusChange) error {
	query := fmt.Sprintf(`
		WITH updated AS (
			UPDATE %[1]s SET %[2]s = $2, %[3]s = $3::timestamptz, %[4]s = $4::timestamptz
			WHERE %[5]s = $1
			RETURNING %[5]s
		)
		INSERT INTO %[6]s (%[7]s, %[8]s, %[9]s, %[10]s, %[11]s, %[12]s)
		SELECT $5::uuid, $6::varchar, $7::varchar, %[5]s::text, $8::text, $4::timestamptz FROM updated
		RETURNING %[13]s`,
		schema.User.Table, schema.User.Status, schema.User.SuspendedUntil, schema.User.UpdatedAt, schema.User.ID,
		schema.AdminAction.Table,
		schema.AdminAction.AdminID, schema.AdminAction.Action, schema.AdminAction.TargetType,
		schema.AdminAction.TargetID, schema.AdminAction.Note, schema.AdminAction.CreatedAt,
		schema.AdminAction.ID)

	var actionID int64
	err := repository.db.QueryRow(context, query,
		change.UserID,
		string(change.Status),
		change.SuspendedUntil,
		change.At,
		change.AdminID,
		change.Action(),
		TargetTypeUser,
		change.Note,
	).Scan(&actionID)
	if err != nil {
		return dberr.Wrap(err, "User")
	}

	return nil
}
