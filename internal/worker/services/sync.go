package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/keepsync/internal/common"
	"github.com/dmitrijs2005/keepsync/internal/dbx"
	"github.com/dmitrijs2005/keepsync/internal/worker/keep"
	"github.com/dmitrijs2005/keepsync/internal/worker/models"
	"github.com/dmitrijs2005/keepsync/internal/worker/repositories/notes"
	"github.com/dmitrijs2005/keepsync/internal/worker/repositories/repomanager"
	"github.com/google/uuid"
)

type SyncOptions struct {
	IncludeArchived bool
	IncludeTrashed  bool
}

type SyncResult struct {
	Created int
	Updated int
	Total   int
}

// SyncService reconciles a fetched note collection into the note table.
type SyncService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	options     SyncOptions

	now   func() time.Time
	newID func() string
}

func NewSyncService(db *sql.DB, repomanager repomanager.RepositoryManager, options SyncOptions) *SyncService {
	return &SyncService{
		db:          db,
		repomanager: repomanager,
		options:     options,
		now:         func() time.Time { return time.Now().UTC() },
		newID:       func() string { return uuid.NewString() },
	}
}

func (s *SyncService) Options() SyncOptions {
	return s.options
}

// Filter drops empty notes, and archived or trashed ones unless included.
func (s *SyncService) Filter(remote []keep.Note) []keep.Note {
	kept := make([]keep.Note, 0, len(remote))
	for _, n := range remote {
		if n.Empty() {
			continue
		}
		if n.Archived && !s.options.IncludeArchived {
			continue
		}
		if n.Trashed && !s.options.IncludeTrashed {
			continue
		}
		kept = append(kept, n)
	}
	return kept
}

// Reconcile upserts remote notes for userID, appends a SUCCESS sync log and
// marks the user synced, all in one transaction. Concurrent runs for the same
// user are serialized by an advisory lock.
func (s *SyncService) Reconcile(ctx context.Context, userID string, remote []keep.Note) (*SyncResult, error) {
	startedAt := s.now()
	kept := s.Filter(remote)

	var result SyncResult

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		userRepo := s.repomanager.Users(tx)
		noteRepo := s.repomanager.Notes(tx)
		logRepo := s.repomanager.SyncLogs(tx)

		if err := userRepo.LockForSync(ctx, userID); err != nil {
			return err
		}

		result = SyncResult{Total: len(kept)}
		for _, rn := range kept {
			created, err := s.apply(ctx, noteRepo, userID, rn)
			if err != nil {
				return fmt.Errorf("note %s: %w", rn.RemoteID, err)
			}
			if created {
				result.Created++
			} else {
				result.Updated++
			}
		}

		completedAt := s.now()
		entry := &models.SyncLog{
			ID:           s.newID(),
			UserID:       userID,
			StartedAt:    startedAt,
			CompletedAt:  completedAt,
			Status:       models.SyncLogSuccess,
			NotesFound:   result.Total,
			NotesCreated: result.Created,
			NotesUpdated: result.Updated,
		}
		if err := logRepo.Create(ctx, entry); err != nil {
			return err
		}

		return userRepo.SetSyncSucceeded(ctx, userID, completedAt)
	})
	if err != nil {
		return nil, err
	}

	return &result, nil
}

// apply updates the stored note for rn or creates it. It reports whether a
// row was created.
func (s *SyncService) apply(ctx context.Context, repo notes.Repository, userID string, rn keep.Note) (bool, error) {
	now := s.now()

	existing, err := repo.FindByKeepID(ctx, userID, rn.RemoteID)
	switch {
	case err == nil:
		existing.Title = rn.Title
		existing.Content = rn.Content
		existing.Labels = rn.Labels
		existing.IsPinned = rn.Pinned
		existing.IsArchived = rn.Archived
		existing.IsTrashed = rn.Trashed
		existing.Color = rn.Color
		existing.KeepUpdatedAt = rn.UpdatedAt
		existing.UpdatedAt = now
		return false, repo.Update(ctx, existing)

	case errors.Is(err, common.ErrorNotFound):
		note := &models.Note{
			ID:               s.newID(),
			UserID:           userID,
			KeepID:           rn.RemoteID,
			Title:            rn.Title,
			Content:          rn.Content,
			Labels:           rn.Labels,
			IsPinned:         rn.Pinned,
			IsArchived:       rn.Archived,
			IsTrashed:        rn.Trashed,
			Color:            rn.Color,
			Source:           common.NoteSourceKeep,
			ProcessingStatus: models.ProcessingPending,
			KeepCreatedAt:    rn.CreatedAt,
			KeepUpdatedAt:    rn.UpdatedAt,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		return true, repo.Create(ctx, note)

	default:
		return false, err
	}
}
