package services

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"strconv"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/keepsync/internal/common"
	"github.com/dmitrijs2005/keepsync/internal/dbx"
	"github.com/dmitrijs2005/keepsync/internal/logging"
	"github.com/dmitrijs2005/keepsync/internal/worker/keep"
	"github.com/dmitrijs2005/keepsync/internal/worker/models"
	"github.com/dmitrijs2005/keepsync/internal/worker/repositories/notes"
	"github.com/dmitrijs2005/keepsync/internal/worker/repositories/repomanager"
	"github.com/dmitrijs2005/keepsync/internal/worker/repositories/synclogs"
	"github.com/dmitrijs2005/keepsync/internal/worker/repositories/users"
)

// -------- test fakes --------

type fakeUsersRepo struct {
	users.Repository

	state  map[string]*models.User
	getErr error

	lockErr      error
	locked       []string
	failErr      error
	failed       map[string]string
	succeeded    map[string]time.Time
	succeedErr   error
	credentials  map[string][2]string
	masterTokens map[string]string
}

func newFakeUsersRepo() *fakeUsersRepo {
	return &fakeUsersRepo{
		state:        map[string]*models.User{},
		failed:       map[string]string{},
		succeeded:    map[string]time.Time{},
		credentials:  map[string][2]string{},
		masterTokens: map[string]string{},
	}
}

func (f *fakeUsersRepo) GetSyncState(ctx context.Context, userID string) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.state[userID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return u, nil
}

func (f *fakeUsersRepo) SaveCredentials(ctx context.Context, userID, email, masterToken string) error {
	f.credentials[userID] = [2]string{email, masterToken}
	return nil
}

func (f *fakeUsersRepo) SaveMasterToken(ctx context.Context, userID, masterToken string) error {
	f.masterTokens[userID] = masterToken
	return nil
}

func (f *fakeUsersRepo) SetSyncFailed(ctx context.Context, userID, message string) error {
	if f.failErr != nil {
		return f.failErr
	}
	f.failed[userID] = message
	return nil
}

func (f *fakeUsersRepo) SetSyncSucceeded(ctx context.Context, userID string, at time.Time) error {
	if f.succeedErr != nil {
		return f.succeedErr
	}
	f.succeeded[userID] = at
	return nil
}

func (f *fakeUsersRepo) LockForSync(ctx context.Context, userID string) error {
	if f.lockErr != nil {
		return f.lockErr
	}
	f.locked = append(f.locked, userID)
	return nil
}

var errDuplicateKey = errors.New("duplicate key value violates unique constraint")

// fakeNotesRepo is an in-memory note table keyed by (userId, keepId).
type fakeNotesRepo struct {
	notes.Repository

	rows      map[[2]string]*models.Note
	createErr error
	creates   int
	updates   int
}

func newFakeNotesRepo() *fakeNotesRepo {
	return &fakeNotesRepo{rows: map[[2]string]*models.Note{}}
}

func (f *fakeNotesRepo) FindByKeepID(ctx context.Context, userID, keepID string) (*models.Note, error) {
	n, ok := f.rows[[2]string{userID, keepID}]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *n
	return &cp, nil
}

func (f *fakeNotesRepo) Create(ctx context.Context, note *models.Note) error {
	if f.createErr != nil {
		return f.createErr
	}
	key := [2]string{note.UserID, note.KeepID}
	if _, exists := f.rows[key]; exists {
		return errDuplicateKey
	}
	cp := *note
	f.rows[key] = &cp
	f.creates++
	return nil
}

func (f *fakeNotesRepo) Update(ctx context.Context, note *models.Note) error {
	key := [2]string{note.UserID, note.KeepID}
	if _, ok := f.rows[key]; !ok {
		return common.ErrorNotFound
	}
	cp := *note
	f.rows[key] = &cp
	f.updates++
	return nil
}

type fakeSyncLogsRepo struct {
	synclogs.Repository
	entries []*models.SyncLog
	err     error
}

func (f *fakeSyncLogsRepo) Create(ctx context.Context, entry *models.SyncLog) error {
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, entry)
	return nil
}

type fakeRepoManager struct {
	repomanager.RepositoryManager
	u *fakeUsersRepo
	n *fakeNotesRepo
	l *fakeSyncLogsRepo
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{u: newFakeUsersRepo(), n: newFakeNotesRepo(), l: &fakeSyncLogsRepo{}}
}

func (m *fakeRepoManager) Users(db dbx.DBTX) users.Repository       { return m.u }
func (m *fakeRepoManager) Notes(db dbx.DBTX) notes.Repository       { return m.n }
func (m *fakeRepoManager) SyncLogs(db dbx.DBTX) synclogs.Repository { return m.l }

type fakeKeep struct {
	keep.Client

	token    string
	err      error
	notes    []keep.Note
	fetchErr error

	gotEmail   string
	gotSecret  string
	gotOptions keep.FetchOptions
	gotSession *keep.Session
}

func (f *fakeKeep) login(email, secret string) (string, error) {
	f.gotEmail, f.gotSecret = email, secret
	if f.err != nil {
		return "", f.err
	}
	return f.token, nil
}

func (f *fakeKeep) Authenticate(ctx context.Context, email, password string) (string, error) {
	return f.login(email, password)
}

func (f *fakeKeep) ExchangeToken(ctx context.Context, email, oauthToken string) (string, error) {
	return f.login(email, oauthToken)
}

func (f *fakeKeep) MasterLogin(ctx context.Context, email, appPassword string) (string, error) {
	return f.login(email, appPassword)
}

func (f *fakeKeep) Resume(ctx context.Context, email, masterToken string) (*keep.Session, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &keep.Session{Email: email, MasterToken: masterToken}, nil
}

func (f *fakeKeep) FetchNotes(ctx context.Context, s *keep.Session, opts keep.FetchOptions) ([]keep.Note, error) {
	f.gotSession, f.gotOptions = s, opts
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.notes, nil
}

// -------- helpers --------

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

var fixedNow = time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)

func newSyncService(db *sql.DB, m *fakeRepoManager, opts SyncOptions) *SyncService {
	s := NewSyncService(db, m, opts)
	seq := 0
	s.now = func() time.Time { return fixedNow }
	s.newID = func() string {
		seq++
		return "id-" + strconv.Itoa(seq)
	}
	return s
}

func newTestLogger() logging.Logger {
	return logging.NewJSONLogger(io.Discard, "debug")
}

func strPtr(s string) *string { return &s }
