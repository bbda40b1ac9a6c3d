package models

import "time"

// SyncStatus values written by the worker. The enqueuing side also writes
// transient values such as "SYNCING".
type SyncStatus string

const (
	SyncIdle    SyncStatus = "IDLE"
	SyncSyncing SyncStatus = "SYNCING"
	SyncFailed  SyncStatus = "FAILED"
	SyncSuccess SyncStatus = "SUCCESS"
)

// User holds the sync-related columns of the "User" row. MasterToken is a
// secret and must never be logged.
type User struct {
	ID          string
	KeepEmail   *string
	MasterToken *string
	SyncStatus  SyncStatus
	SyncError   *string
	LastSyncAt  *time.Time
}

// Connected reports whether a master credential is stored.
func (u *User) Connected() bool {
	return u != nil && u.MasterToken != nil && *u.MasterToken != ""
}
