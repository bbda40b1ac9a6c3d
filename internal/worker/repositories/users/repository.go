package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/keepsync/internal/worker/models"
)

// Repository covers the sync-related columns of the "User" table. Rows are
// created elsewhere; every write reports common.ErrorNotFound when the row
// does not exist.
type Repository interface {
	GetSyncState(ctx context.Context, userID string) (*models.User, error)
	SaveCredentials(ctx context.Context, userID, email, masterToken string) error
	SaveMasterToken(ctx context.Context, userID, masterToken string) error
	SetSyncFailed(ctx context.Context, userID, message string) error
	SetSyncSucceeded(ctx context.Context, userID string, at time.Time) error
	LockForSync(ctx context.Context, userID string) error
}
