// Package consumer runs the queue consumption loop.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/keepsync/internal/logging"
	"github.com/dmitrijs2005/keepsync/internal/worker/models"
	"github.com/dmitrijs2005/keepsync/internal/worker/queue"
)

// Handler processes one claimed job.
type Handler interface {
	Dispatch(ctx context.Context, job *models.Job) error
}

type Options struct {
	BlockTimeout     time.Duration
	ReconnectBackoff time.Duration
	ErrorBackoff     time.Duration
}

const unknownFailure = "unknown error"

// Consumer claims one job at a time and records its terminal state.
type Consumer struct {
	store   queue.Store
	handler Handler
	logger  logging.Logger
	opts    Options

	sleep func(ctx context.Context, d time.Duration)
}

func NewConsumer(store queue.Store, handler Handler, logger logging.Logger, opts Options) *Consumer {
	return &Consumer{
		store:   store,
		handler: handler,
		logger:  logger,
		opts:    opts,
		sleep:   sleepContext,
	}
}

// Run loops until ctx is cancelled. Errors never stop the loop; losing the
// queue store waits ReconnectBackoff, anything else waits ErrorBackoff.
// Cancellation is observed between jobs only.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info(ctx, "consumer started", "block_timeout", c.opts.BlockTimeout.String())

	for {
		select {
		case <-ctx.Done():
			c.logger.Info(ctx, "consumer stopped")
			return nil
		default:
		}

		err := c.Step(ctx)
		if err == nil || ctx.Err() != nil {
			continue
		}

		if errors.Is(err, queue.ErrUnavailable) {
			c.logger.Error(ctx, "queue store connection error", "error", err.Error())
			c.sleep(ctx, c.opts.ReconnectBackoff)
			continue
		}

		c.logger.Error(ctx, "worker error", "error", err.Error())
		c.sleep(ctx, c.opts.ErrorBackoff)
	}
}

// Step claims at most one job and processes it. Job failures are recorded
// on the queue and are not returned; only queue-level errors are.
func (c *Consumer) Step(ctx context.Context) error {
	job, err := c.store.ClaimNext(ctx, c.opts.BlockTimeout)
	if err != nil {
		return err
	}
	if job == nil {
		return nil
	}

	// A claimed job runs to completion even if shutdown was requested.
	return c.process(context.WithoutCancel(ctx), job)
}

func (c *Consumer) process(ctx context.Context, job *models.Job) error {
	log := c.logger.With("job_id", job.ID, "action", string(job.Action))

	if err := c.store.MarkActive(ctx, job.ID); err != nil {
		err = fmt.Errorf("job %s: mark active: %w", job.ID, err)
		if errors.Is(err, queue.ErrUnavailable) {
			return err
		}
		// the id is already off the waiting list; record it rather than drop it
		if ferr := c.store.MarkFailed(ctx, job.ID, err.Error()); ferr != nil {
			return errors.Join(err, fmt.Errorf("job %s: mark failed: %w", job.ID, ferr))
		}
		return err
	}
	log.Info(ctx, "processing job")

	started := time.Now()
	if derr := c.handler.Dispatch(ctx, job); derr != nil {
		reason := strings.TrimSpace(derr.Error())
		if reason == "" {
			reason = unknownFailure
		}
		log.Error(ctx, "job failed", "reason", reason)

		if err := c.store.MarkFailed(ctx, job.ID, reason); err != nil {
			return fmt.Errorf("job %s: mark failed: %w", job.ID, err)
		}
		return nil
	}

	if err := c.store.MarkCompleted(ctx, job.ID); err != nil {
		return fmt.Errorf("job %s: mark completed: %w", job.ID, err)
	}
	log.Info(ctx, "job completed", "duration", time.Since(started).String())
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
