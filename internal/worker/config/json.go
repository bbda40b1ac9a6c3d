package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/keepsync/internal/flagx"
	"github.com/dmitrijs2005/keepsync/internal/timex"
)

// JsonConfig is the on-disk shape of the optional config file. Durations
// accept both "5s"-style strings and integer nanoseconds.
type JsonConfig struct {
	RedisURL         string         `json:"redis_url"`
	DatabaseDSN      string         `json:"database_dsn"`
	QueuePrefix      string         `json:"queue_prefix"`
	QueueName        string         `json:"queue_name"`
	BlockTimeout     timex.Duration `json:"block_timeout"`
	ReconnectBackoff timex.Duration `json:"reconnect_backoff"`
	ErrorBackoff     timex.Duration `json:"error_backoff"`
	KeepBridgeURL    string         `json:"keep_bridge_url"`
	KeepTimeout      timex.Duration `json:"keep_timeout"`
	IncludeArchived  *bool          `json:"include_archived"`
	IncludeTrashed   *bool          `json:"include_trashed"`
	RunMigrations    *bool          `json:"run_migrations"`
	LogLevel         string         `json:"log_level"`
	LogFile          string         `json:"log_file"`
}

// parseJson loads configuration values from the file named by -c/-config.
// Only keys present in the file override the current values. An unreadable
// or malformed file panics, as startup cannot continue with a half-read config.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.RedisURL, c.RedisURL)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.QueuePrefix, c.QueuePrefix)
	setString(&config.QueueName, c.QueueName)
	setString(&config.KeepBridgeURL, c.KeepBridgeURL)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.LogFile, c.LogFile)

	if c.BlockTimeout.Duration > 0 {
		config.BlockTimeout = c.BlockTimeout.Duration
	}
	if c.ReconnectBackoff.Duration > 0 {
		config.ReconnectBackoff = c.ReconnectBackoff.Duration
	}
	if c.ErrorBackoff.Duration > 0 {
		config.ErrorBackoff = c.ErrorBackoff.Duration
	}
	if c.KeepTimeout.Duration > 0 {
		config.KeepTimeout = c.KeepTimeout.Duration
	}

	if c.IncludeArchived != nil {
		config.IncludeArchived = *c.IncludeArchived
	}
	if c.IncludeTrashed != nil {
		config.IncludeTrashed = *c.IncludeTrashed
	}
	if c.RunMigrations != nil {
		config.RunMigrations = *c.RunMigrations
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
