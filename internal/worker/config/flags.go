package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/keepsync/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-r string   Redis URL of the queue store
//	-d string   PostgreSQL DSN
//	-p string   queue key prefix (e.g., "bull")
//	-q string   queue name (e.g., "keep-sync")
//	-t int      blocking claim timeout, seconds
//	-k string   Keep bridge base URL
//	-l string   log level
//	-archived   include archived notes
//	-trashed    include trashed notes
//	-m          run embedded migrations on startup
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:],
		[]string{"-r", "-d", "-p", "-q", "-t", "-k", "-l"},
		"-archived", "-trashed", "-m")

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.RedisURL, "r", config.RedisURL, "redis URL")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.QueuePrefix, "p", config.QueuePrefix, "queue key prefix")
	fs.StringVar(&config.QueueName, "q", config.QueueName, "queue name")

	blockTimeout := fs.Int("t", int(config.BlockTimeout.Seconds()), "blocking claim timeout (in seconds)")

	fs.StringVar(&config.KeepBridgeURL, "k", config.KeepBridgeURL, "Keep bridge URL")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.BoolVar(&config.IncludeArchived, "archived", config.IncludeArchived, "include archived notes")
	fs.BoolVar(&config.IncludeTrashed, "trashed", config.IncludeTrashed, "include trashed notes")
	fs.BoolVar(&config.RunMigrations, "m", config.RunMigrations, "run migrations on startup")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	// -t overrides earlier layers only when given, so sub-second values from
	// env or JSON survive.
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "t" {
			config.BlockTimeout = time.Duration(*blockTimeout) * time.Second
		}
	})
}
