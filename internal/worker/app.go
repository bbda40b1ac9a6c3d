// Package worker wires the keepsync worker: configuration, logging, the
// relational store, the queue store, the note-service adapter, the
// dispatcher and the consumer loop.
package worker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/keepsync/internal/logging"
	"github.com/dmitrijs2005/keepsync/internal/worker/config"
	"github.com/dmitrijs2005/keepsync/internal/worker/consumer"
	"github.com/dmitrijs2005/keepsync/internal/worker/keep"
	"github.com/dmitrijs2005/keepsync/internal/worker/queue"
	"github.com/dmitrijs2005/keepsync/internal/worker/repositories/repomanager"
	"github.com/dmitrijs2005/keepsync/internal/worker/services"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const (
	logMaxSizeMB  = 100
	logMaxBackups = 5
	logMaxAgeDays = 28
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	logCloser   io.Closer
	db          *sql.DB
	store       *queue.RedisStore
	repomanager repomanager.RepositoryManager
	consumer    *consumer.Consumer
}

func NewApp(c *config.Config) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	w, closer := logging.NewWriter(logging.FileOptions{
		Path:       c.LogFile,
		MaxSizeMB:  logMaxSizeMB,
		MaxBackups: logMaxBackups,
		MaxAgeDays: logMaxAgeDays,
	})
	logger := logging.NewJSONLogger(w, c.LogLevel)

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		_ = closer.Close()
		return nil, fmt.Errorf("db init error: %w", err)
	}

	store, err := queue.NewRedisStoreFromURL(c.RedisURL, c.QueuePrefix, c.QueueName)
	if err != nil {
		_ = db.Close()
		_ = closer.Close()
		return nil, fmt.Errorf("queue init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	client := keep.NewBridgeClient(c.KeepBridgeURL, c.KeepTimeout)
	syncService := services.NewSyncService(db, rm, services.SyncOptions{
		IncludeArchived: c.IncludeArchived,
		IncludeTrashed:  c.IncludeTrashed,
	})
	dispatcher := services.NewDispatcher(db, rm, client, syncService, logger)
	cons := consumer.NewConsumer(store, dispatcher, logger, consumer.Options{
		BlockTimeout:     c.BlockTimeout,
		ReconnectBackoff: c.ReconnectBackoff,
		ErrorBackoff:     c.ErrorBackoff,
	})

	return &App{
		config:      c,
		logger:      logger,
		logCloser:   closer,
		db:          db,
		store:       store,
		repomanager: rm,
		consumer:    cons,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run blocks until a shutdown signal arrives or ctx is cancelled, then
// releases every resource.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.initSignalHandler(cancelFunc)

	app.logger.Info(ctx, "Starting keepsync worker...",
		"queue", app.config.QueuePrefix+":"+app.config.QueueName,
		"keep_bridge", app.config.KeepBridgeURL,
	)

	if app.config.RunMigrations {
		if err := app.repomanager.RunMigrations(ctx, app.db); err != nil {
			app.logger.Error(ctx, "migrations failed", "error", err.Error())
			return errors.Join(fmt.Errorf("migrations: %w", err), app.close())
		}
		app.logger.Info(ctx, "migrations applied")
	}

	err := app.consumer.Run(ctx)

	app.logger.Info(ctx, "Shutting down...")
	return errors.Join(err, app.close())
}

func (app *App) close() error {
	var errs []error
	if err := app.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("redis close: %w", err))
	}
	if err := app.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("db close: %w", err))
	}
	if err := app.logCloser.Close(); err != nil {
		errs = append(errs, fmt.Errorf("log close: %w", err))
	}
	return errors.Join(errs...)
}
