package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/keepsync/internal/common"
	"github.com/dmitrijs2005/keepsync/internal/logging"
	"github.com/dmitrijs2005/keepsync/internal/worker/classifier"
	"github.com/dmitrijs2005/keepsync/internal/worker/keep"
	"github.com/dmitrijs2005/keepsync/internal/worker/models"
	"github.com/dmitrijs2005/keepsync/internal/worker/repositories/repomanager"
)

// JobError is returned by Dispatch for any failed job. Error returns the
// classified, user-facing message; Unwrap returns the original cause.
type JobError struct {
	Category classifier.Category
	Message  string
	Err      error
}

func (e *JobError) Error() string {
	return e.Message
}

func (e *JobError) Unwrap() error {
	return e.Err
}

// Dispatcher routes decoded jobs to the note-service adapter and the
// reconciliation engine, and records per-user sync status.
type Dispatcher struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	keep        keep.Client
	sync        *SyncService
	logger      logging.Logger
}

func NewDispatcher(db *sql.DB, repomanager repomanager.RepositoryManager, client keep.Client, sync *SyncService, logger logging.Logger) *Dispatcher {
	return &Dispatcher{
		db:          db,
		repomanager: repomanager,
		keep:        client,
		sync:        sync,
		logger:      logger,
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, job *models.Job) error {
	log := d.logger.With("job_id", job.ID, "action", string(job.Action))
	if userID := job.UserID(); userID != "" {
		log = log.With("user_id", userID)
	}
	log.Debug(ctx, "dispatching job", "payload", Redact(job.Payload))

	err := d.route(ctx, log, job)
	if err == nil {
		return nil
	}
	return d.fail(ctx, log, job, err)
}

func (d *Dispatcher) route(ctx context.Context, log logging.Logger, job *models.Job) error {
	switch job.Action {
	case models.ActionExchangeToken:
		return d.exchangeToken(ctx, log, job)
	case models.ActionLoginPassword:
		return d.loginPassword(ctx, log, job)
	case models.ActionAuthenticate:
		return d.authenticate(ctx, log, job)
	case models.ActionSync:
		return d.syncNotes(ctx, log, job)
	default:
		return fmt.Errorf("%w: %q", common.ErrorUnrecognizedAction, string(job.Action))
	}
}

// fail classifies cause and stores it on the user. A failure to store the
// status is logged and does not replace cause.
func (d *Dispatcher) fail(ctx context.Context, log logging.Logger, job *models.Job, cause error) error {
	res := classifier.Classify(cause)
	log.Error(ctx, "job failed", "category", string(res.Category), "error", cause.Error())

	if userID := job.UserID(); userID != "" {
		if err := d.repomanager.Users(d.db).SetSyncFailed(ctx, userID, res.Message); err != nil {
			log.Error(ctx, "could not record sync failure", "error", err.Error())
		}
	}

	return &JobError{Category: res.Category, Message: res.Message, Err: cause}
}

func (d *Dispatcher) exchangeToken(ctx context.Context, log logging.Logger, job *models.Job) error {
	f, err := requireFields(job, "userId", "email", "oauthToken")
	if err != nil {
		return err
	}

	token, err := d.keep.ExchangeToken(ctx, f["email"], f["oauthToken"])
	if err != nil {
		return err
	}
	if err := d.repomanager.Users(d.db).SaveCredentials(ctx, f["userId"], f["email"], token); err != nil {
		return err
	}

	log.Info(ctx, "token exchanged")
	return nil
}

func (d *Dispatcher) loginPassword(ctx context.Context, log logging.Logger, job *models.Job) error {
	f, err := requireFields(job, "userId", "email", "appPassword")
	if err != nil {
		return err
	}

	token, err := d.keep.MasterLogin(ctx, f["email"], f["appPassword"])
	if err != nil {
		return err
	}
	if err := d.repomanager.Users(d.db).SaveCredentials(ctx, f["userId"], f["email"], token); err != nil {
		return err
	}

	log.Info(ctx, "logged in with app password")
	return nil
}

func (d *Dispatcher) authenticate(ctx context.Context, log logging.Logger, job *models.Job) error {
	f, err := requireFields(job, "userId", "email", "password")
	if err != nil {
		return err
	}

	token, err := d.keep.Authenticate(ctx, f["email"], f["password"])
	if err != nil {
		return err
	}
	if err := d.repomanager.Users(d.db).SaveMasterToken(ctx, f["userId"], token); err != nil {
		return err
	}

	log.Info(ctx, "authenticated")
	return nil
}

func (d *Dispatcher) syncNotes(ctx context.Context, log logging.Logger, job *models.Job) error {
	f, err := requireFields(job, "userId")
	if err != nil {
		return err
	}
	userID := f["userId"]

	user, err := d.repomanager.Users(d.db).GetSyncState(ctx, userID)
	if errors.Is(err, common.ErrorNotFound) {
		return fmt.Errorf("user %s: %w", userID, common.ErrorNotConnected)
	}
	if err != nil {
		return err
	}
	if !user.Connected() {
		return fmt.Errorf("user %s: %w", userID, common.ErrorNotConnected)
	}

	var email string
	if user.KeepEmail != nil {
		email = *user.KeepEmail
	}

	session, err := d.keep.Resume(ctx, email, *user.MasterToken)
	if err != nil {
		return err
	}

	opts := d.sync.Options()
	remote, err := d.keep.FetchNotes(ctx, session, keep.FetchOptions{
		IncludeArchived: opts.IncludeArchived,
		IncludeTrashed:  opts.IncludeTrashed,
	})
	if err != nil {
		return err
	}

	result, err := d.sync.Reconcile(ctx, userID, remote)
	if err != nil {
		return err
	}

	log.Info(ctx, "sync completed",
		"fetched", len(remote),
		"total", result.Total,
		"created", result.Created,
		"updated", result.Updated,
	)
	return nil
}

// requireFields returns the trimmed payload values for names, or a
// validation error listing every missing one.
func requireFields(job *models.Job, names ...string) (map[string]string, error) {
	values := make(map[string]string, len(names))
	var missing []string
	for _, name := range names {
		v, ok := job.String(name)
		if !ok {
			missing = append(missing, name)
			continue
		}
		values[name] = v
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", common.ErrorValidation, strings.Join(missing, ", "))
	}
	return values, nil
}

var secretFields = map[string]struct{}{
	"masterToken": {},
	"password":    {},
	"appPassword": {},
	"oauthToken":  {},
}

// Redact returns a copy of payload safe for logging.
func Redact(payload map[string]any) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		if _, secret := secretFields[k]; secret {
			out[k] = common.RedactedValue
			continue
		}
		out[k] = v
	}
	return out
}
