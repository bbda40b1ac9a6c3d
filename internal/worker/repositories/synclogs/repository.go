package synclogs

import (
	"context"

	"github.com/dmitrijs2005/keepsync/internal/worker/models"
)

// Repository appends sync log entries. Entries are never updated.
type Repository interface {
	Create(ctx context.Context, entry *models.SyncLog) error
}
