package worker

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/dmitrijs2005/keepsync/internal/worker/config"
	"github.com/dmitrijs2005/keepsync/internal/worker/repositories/repomanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepoManager struct {
	repomanager.RepositoryManager
	migrated bool
	err      error
}

func (m *fakeRepoManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	m.migrated = true
	return m.err
}

func testConfig() *config.Config {
	c := &config.Config{}
	c.LoadDefaults()
	return c
}

func TestNewApp_InvalidConfig(t *testing.T) {
	c := testConfig()
	c.DatabaseDSN = ""

	_, err := NewApp(c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config error")
}

func TestNewApp_BadRedisURL(t *testing.T) {
	c := testConfig()
	c.RedisURL = "ftp://nowhere"

	_, err := NewApp(c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "queue init error")
}

func TestRun_StopsOnCancelledContext(t *testing.T) {
	app, err := NewApp(testConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.NoError(t, app.Run(ctx))
}

func TestRun_MigrationsGate(t *testing.T) {
	c := testConfig()
	c.RunMigrations = true

	app, err := NewApp(c)
	require.NoError(t, err)
	rm := &fakeRepoManager{err: errors.New("no database")}
	app.repomanager = rm

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = app.Run(ctx)
	require.Error(t, err)
	assert.True(t, rm.migrated)
	assert.Contains(t, err.Error(), "migrations")
}

func TestRun_LogFile(t *testing.T) {
	c := testConfig()
	c.LogFile = t.TempDir() + "/worker.log"

	app, err := NewApp(c)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, app.Run(ctx))
}
