// Package synclogs provides the append-only PostgreSQL sync log.
package synclogs

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/keepsync/internal/dbx"
	"github.com/dmitrijs2005/keepsync/internal/worker/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, entry *models.SyncLog) error {
	query := `
		INSERT INTO "SyncLog" (
			id, "userId", "startedAt", "completedAt",
			status, "notesFound", "notesCreated", "notesUpdated"
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		entry.ID, entry.UserID, entry.StartedAt, entry.CompletedAt,
		entry.Status, entry.NotesFound, entry.NotesCreated, entry.NotesUpdated,
	)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
