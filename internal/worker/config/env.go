package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// envConfig mirrors the environment contract of the worker. Pointer fields
// stay nil when the variable is unset, so earlier layers are kept.
type envConfig struct {
	RedisURL         *string        `env:"REDIS_URL"`
	DatabaseDSN      *string        `env:"DATABASE_URL"`
	QueuePrefix      *string        `env:"QUEUE_PREFIX"`
	QueueName        *string        `env:"QUEUE_NAME"`
	BlockTimeout     *time.Duration `env:"QUEUE_BLOCK_TIMEOUT"`
	ReconnectBackoff *time.Duration `env:"QUEUE_RECONNECT_BACKOFF"`
	ErrorBackoff     *time.Duration `env:"QUEUE_ERROR_BACKOFF"`
	KeepBridgeURL    *string        `env:"KEEP_BRIDGE_URL"`
	KeepTimeout      *time.Duration `env:"KEEP_TIMEOUT"`
	IncludeArchived  *bool          `env:"KEEP_INCLUDE_ARCHIVED"`
	IncludeTrashed   *bool          `env:"KEEP_INCLUDE_TRASHED"`
	RunMigrations    *bool          `env:"RUN_MIGRATIONS"`
	LogLevel         *string        `env:"LOG_LEVEL"`
	LogFile          *string        `env:"LOG_FILE"`
}

func parseEnv(config *Config) {
	parseEnvFrom(config, nil)
}

// parseEnvFrom overlays config with variables from environ, or from the
// process environment when environ is nil. Malformed values panic.
func parseEnvFrom(config *Config, environ map[string]string) {
	var e envConfig

	opts := env.Options{}
	if environ != nil {
		opts.Environment = environ
	}

	if err := env.ParseWithOptions(&e, opts); err != nil {
		panic(err)
	}

	overlay(&config.RedisURL, e.RedisURL)
	overlay(&config.DatabaseDSN, e.DatabaseDSN)
	overlay(&config.QueuePrefix, e.QueuePrefix)
	overlay(&config.QueueName, e.QueueName)
	overlay(&config.BlockTimeout, e.BlockTimeout)
	overlay(&config.ReconnectBackoff, e.ReconnectBackoff)
	overlay(&config.ErrorBackoff, e.ErrorBackoff)
	overlay(&config.KeepBridgeURL, e.KeepBridgeURL)
	overlay(&config.KeepTimeout, e.KeepTimeout)
	overlay(&config.IncludeArchived, e.IncludeArchived)
	overlay(&config.IncludeTrashed, e.IncludeTrashed)
	overlay(&config.RunMigrations, e.RunMigrations)
	overlay(&config.LogLevel, e.LogLevel)
	overlay(&config.LogFile, e.LogFile)
}

func overlay[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
