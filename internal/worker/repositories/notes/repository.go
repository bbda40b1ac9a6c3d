package notes

import (
	"context"

	"github.com/dmitrijs2005/keepsync/internal/worker/models"
)

type Repository interface {
	// FindByKeepID returns the stored note for (userID, keepID) or
	// common.ErrorNotFound. Only identity and local audit fields are loaded.
	FindByKeepID(ctx context.Context, userID, keepID string) (*models.Note, error)
	Create(ctx context.Context, note *models.Note) error
	// Update overwrites the remote-sourced fields and the local updatedAt.
	Update(ctx context.Context, note *models.Note) error
}
