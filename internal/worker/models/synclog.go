package models

import "time"

const SyncLogSuccess = "SUCCESS"

// SyncLog is an append-only record of one completed sync run.
type SyncLog struct {
	ID           string
	UserID       string
	StartedAt    time.Time
	CompletedAt  time.Time
	Status       string
	NotesFound   int
	NotesCreated int
	NotesUpdated int
}
