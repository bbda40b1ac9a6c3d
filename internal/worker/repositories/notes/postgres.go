// Package notes provides the PostgreSQL repository for synced notes.
package notes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/keepsync/internal/common"
	"github.com/dmitrijs2005/keepsync/internal/dbx"
	"github.com/dmitrijs2005/keepsync/internal/worker/models"
)

// PostgresRepository implements note storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) FindByKeepID(ctx context.Context, userID, keepID string) (*models.Note, error) {
	query := `
		SELECT id, "processingStatus", "createdAt" FROM "Note"
		WHERE "userId" = $1 AND "keepId" = $2
	`

	note := &models.Note{UserID: userID, KeepID: keepID}
	var status string

	err := r.db.QueryRowContext(ctx, query, userID, keepID).Scan(&note.ID, &status, &note.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	note.ProcessingStatus = models.ProcessingStatus(status)

	return note, nil
}

// Create inserts a new note. The (userId, keepId) unique index rejects
// duplicates.
func (r *PostgresRepository) Create(ctx context.Context, note *models.Note) error {
	query := `
		INSERT INTO "Note" (
			id, "userId", "keepId", title, content,
			labels, "isPinned", "isArchived", "isTrashed",
			color, source, "processingStatus",
			"keepCreatedAt", "keepUpdatedAt",
			"createdAt", "updatedAt"
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11, $12,
			$13, $14,
			$15, $16
		)
	`
	_, err := r.db.ExecContext(ctx, query,
		note.ID, note.UserID, note.KeepID, note.Title, note.Content,
		labels(note.Labels), note.IsPinned, note.IsArchived, note.IsTrashed,
		note.Color, note.Source, string(note.ProcessingStatus),
		note.KeepCreatedAt, note.KeepUpdatedAt,
		note.CreatedAt, note.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Update leaves processingStatus, keepCreatedAt and createdAt untouched.
func (r *PostgresRepository) Update(ctx context.Context, note *models.Note) error {
	query := `
		UPDATE "Note"
		SET title = $2,
			content = $3,
			labels = $4,
			"isPinned" = $5,
			"isArchived" = $6,
			"isTrashed" = $7,
			color = $8,
			"keepUpdatedAt" = $9,
			"updatedAt" = $10
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query,
		note.ID, note.Title, note.Content, labels(note.Labels),
		note.IsPinned, note.IsArchived, note.IsTrashed,
		note.Color, note.KeepUpdatedAt, note.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrorNotFound
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}

// labels never sends NULL into the NOT NULL text[] column.
func labels(l []string) []string {
	if l == nil {
		return []string{}
	}
	return l
}
