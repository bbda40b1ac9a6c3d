// Package users provides the PostgreSQL repository for per-user sync state.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/keepsync/internal/common"
	"github.com/dmitrijs2005/keepsync/internal/dbx"
	"github.com/dmitrijs2005/keepsync/internal/worker/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetSyncState(ctx context.Context, userID string) (*models.User, error) {
	query :=
		`SELECT id, "keepEmail", "keepMasterToken", "syncStatus", "syncError", "lastSyncAt" FROM "User"
		 WHERE id = $1
		 `

	var (
		user       models.User
		email      sql.NullString
		token      sql.NullString
		status     sql.NullString
		syncError  sql.NullString
		lastSyncAt sql.NullTime
	)

	err := r.db.QueryRowContext(ctx, query, userID).Scan(&user.ID, &email, &token, &status, &syncError, &lastSyncAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	user.KeepEmail = nullString(email)
	user.MasterToken = nullString(token)
	user.SyncStatus = models.SyncStatus(status.String)
	user.SyncError = nullString(syncError)
	if lastSyncAt.Valid {
		t := lastSyncAt.Time
		user.LastSyncAt = &t
	}

	return &user, nil
}

// SaveCredentials stores the Keep account and its master token, and resets
// the sync status to IDLE with no error.
func (r *PostgresRepository) SaveCredentials(ctx context.Context, userID, email, masterToken string) error {
	query :=
		`UPDATE "User" SET "keepEmail" = $2, "keepMasterToken" = $3, "syncStatus" = $4, "syncError" = NULL
		 WHERE id = $1
		 `
	return r.exec(ctx, query, userID, email, masterToken, string(models.SyncIdle))
}

// SaveMasterToken stores the master token and sets IDLE, leaving syncError as is.
func (r *PostgresRepository) SaveMasterToken(ctx context.Context, userID, masterToken string) error {
	query :=
		`UPDATE "User" SET "keepMasterToken" = $2, "syncStatus" = $3
		 WHERE id = $1
		 `
	return r.exec(ctx, query, userID, masterToken, string(models.SyncIdle))
}

func (r *PostgresRepository) SetSyncFailed(ctx context.Context, userID, message string) error {
	query :=
		`UPDATE "User" SET "syncStatus" = $2, "syncError" = $3
		 WHERE id = $1
		 `
	return r.exec(ctx, query, userID, string(models.SyncFailed), message)
}

func (r *PostgresRepository) SetSyncSucceeded(ctx context.Context, userID string, at time.Time) error {
	query :=
		`UPDATE "User" SET "syncStatus" = $2, "lastSyncAt" = $3, "syncError" = NULL
		 WHERE id = $1
		 `
	return r.exec(ctx, query, userID, string(models.SyncSuccess), at)
}

// LockForSync takes a transaction-scoped advisory lock keyed on the user, so
// two sync runs for the same user serialize. It must be called inside a tx.
func (r *PostgresRepository) LockForSync(ctx context.Context, userID string) error {
	query := `SELECT pg_advisory_xact_lock(hashtext($1))`

	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("advisory lock error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
