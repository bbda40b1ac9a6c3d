// Package queue isolates the durable job queue behind a narrow interface.
// The Redis implementation is wire-compatible with Bull's key layout.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/keepsync/internal/worker/models"
)

// ErrUnavailable wraps errors caused by losing the connection to the store.
var ErrUnavailable = errors.New("queue store unavailable")

// ErrMalformedJob marks a job record whose payload cannot be decoded.
var ErrMalformedJob = errors.New("malformed job record")

// Store is the queue protocol used by the consumer.
//
// ClaimNext atomically pops one job id from the waiting list, blocking up to
// timeout. It returns (nil, nil) when nothing arrived in time or when the
// popped id has no payload any more. A popped job whose record cannot be
// decoded is moved to the failed set before ErrMalformedJob is returned.
type Store interface {
	ClaimNext(ctx context.Context, timeout time.Duration) (*models.Job, error)
	MarkActive(ctx context.Context, id string) error
	MarkCompleted(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id, reason string) error
}

// Record is the operator view of one job's recorded state.
type Record struct {
	ID           string
	State        models.JobState
	FailedReason string
	ProcessedOn  *time.Time
	FinishedOn   *time.Time
}
