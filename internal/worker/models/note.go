package models

import "time"

// ProcessingStatus of a stored note in the downstream pipeline.
type ProcessingStatus string

const ProcessingPending ProcessingStatus = "PENDING"

// Note is a persisted note, unique per (UserID, KeepID).
type Note struct {
	ID               string
	UserID           string
	KeepID           string
	Title            string
	Content          string
	Labels           []string
	IsPinned         bool
	IsArchived       bool
	IsTrashed        bool
	Color            *string
	Source           string
	ProcessingStatus ProcessingStatus
	KeepCreatedAt    *time.Time
	KeepUpdatedAt    *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
