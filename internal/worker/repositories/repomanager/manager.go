package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/keepsync/internal/dbx"
	"github.com/dmitrijs2005/keepsync/internal/worker/repositories/notes"
	"github.com/dmitrijs2005/keepsync/internal/worker/repositories/synclogs"
	"github.com/dmitrijs2005/keepsync/internal/worker/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Notes(db dbx.DBTX) notes.Repository
	SyncLogs(db dbx.DBTX) synclogs.Repository
}
