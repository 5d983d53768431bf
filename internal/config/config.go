// Package config loads process configuration from environment variables,
// flags, and an optional config file, using viper the way the teacher's
// cmd package does.
package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/taskgraph/engine/internal/fileutil"
)

// ConfigDir is the default directory searched for a config file, mirroring
// the teacher's $HOME/.config/<app> convention.
var ConfigDir = filepath.Join(fileutil.MustGetUserHomeDir(), ".config", "taskgraph")

// Config holds the resolved process configuration.
type Config struct {
	// DBURL is the DSN for the durable state store: empty or "memory"
	// selects the in-memory store, anything else is opened as SQLite.
	DBURL string

	// RedisURL is the connection string for the distributed queue and
	// breaker backend. Empty selects the in-memory implementations.
	RedisURL string

	// AppEnv is "development", "staging", or "production".
	AppEnv string

	// LogLevel is "debug", "info", "warn", or "error".
	LogLevel string

	// LogFormat is "text" or "json".
	LogFormat string

	// DAGsDir is where DAG YAML documents are loaded from.
	DAGsDir string

	// QueuePollInterval is the configured queue poll interval. No queue
	// implementation reads it: redisqueue polls at its own PollInterval.
	QueuePollInterval time.Duration
}

// IsProduction reports whether AppEnv is "production".
func (c *Config) IsProduction() bool { return c.AppEnv == "production" }

func setDefaults(v *viper.Viper) {
	v.SetDefault("db_url", "file:taskgraph.db?cache=shared&_pragma=busy_timeout(5000)")
	v.SetDefault("redis_url", "")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("dags_dir", filepath.Join(ConfigDir, "dags"))
	v.SetDefault("queue_poll_interval", "500ms")
}

// Load reads configuration from the optional config file at cfgFile (if
// non-empty), environment variables (prefixed TASKGRAPH_), and defaults.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("taskgraph")
	v.AutomaticEnv()

	// Bind the unprefixed environment variables the spec names directly,
	// so DB_URL works the same as TASKGRAPH_DB_URL.
	for key, env := range map[string]string{
		"db_url":    "DB_URL",
		"redis_url": "REDIS_URL",
		"app_env":   "APP_ENV",
		"log_level": "LOG_LEVEL",
		"dags_dir":  "DAGS_DIR",
	} {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", cfgFile, err)
		}
	} else {
		v.AddConfigPath(ConfigDir)
		v.SetConfigType("yaml")
		v.SetConfigName("config")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	pollInterval, err := time.ParseDuration(v.GetString("queue_poll_interval"))
	if err != nil {
		return nil, fmt.Errorf("parse queue_poll_interval: %w", err)
	}

	return &Config{
		DBURL:             v.GetString("db_url"),
		RedisURL:          v.GetString("redis_url"),
		AppEnv:            v.GetString("app_env"),
		LogLevel:          v.GetString("log_level"),
		LogFormat:         v.GetString("log_format"),
		DAGsDir:           v.GetString("dags_dir"),
		QueuePollInterval: pollInterval,
	}, nil
}
