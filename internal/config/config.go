// Package config provides configuration loading, validation, and defaults
// for the HostPilot service. Configuration is read from config.yaml with
// HOSTPILOT_* environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config defines the application configuration for all components of the
// HostPilot service: logging, HTTP server, database, AI integration,
// auto-pilot behavior, conversation polling, and scheduled tasks.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	AI        AIConfig        `mapstructure:"ai"`
	AutoPilot AutoPilotConfig `mapstructure:"autopilot"`
	Poll      PollConfig      `mapstructure:"poll"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// LogConfig controls log verbosity and output format.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Listen          string        `mapstructure:"listen" validate:"required"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=1s,max=1m"`
}

// DatabaseConfig holds the SQLite database settings. An empty Path puts
// the service into demo mode: reads are served from a seeded in-memory
// dataset and all writes fail.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// AIConfig holds the language-model backend settings plus the reply style
// configuration rendered into the prompt. An empty APIKey selects the
// canned-response generator (demo mode).
type AIConfig struct {
	APIKey            string        `mapstructure:"api_key"`
	Model             string        `mapstructure:"model" validate:"required"`
	Language          string        `mapstructure:"language"`
	Tone              string        `mapstructure:"tone"`
	IncludeEmoji      bool          `mapstructure:"include_emoji"`
	MaxResponseLength int           `mapstructure:"max_response_length" validate:"min=1,max=4096"`
	Timeout           time.Duration `mapstructure:"timeout" validate:"min=1s,max=10m"`
}

// AutoPilotConfig controls the automatic reply pipeline.
type AutoPilotConfig struct {
	// DefaultEnabled sets the auto-pilot flag on conversations created by
	// webhook ingestion, where no host is present to toggle it.
	DefaultEnabled bool `mapstructure:"default_enabled"`
}

// PollConfig controls the conversation sync loop.
type PollConfig struct {
	Interval time.Duration `mapstructure:"interval" validate:"min=500ms,max=1m"`
}

// SchedulerConfig holds scheduled background tasks keyed by task name.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks"`
}

// TaskConfig configures a single scheduled task.
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}

// Load loads and validates configuration from:
// 1. Default values
// 2. config.yaml file (optional)
// 3. HOSTPILOT_* environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("HOSTPILOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !notFound && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Missing config file is fine, defaults and env apply.
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", true)

	v.SetDefault("server.listen", ":8080")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.path", "hostpilot.db")

	v.SetDefault("ai.model", "gemini-2.0-flash")
	v.SetDefault("ai.language", "fr")
	v.SetDefault("ai.tone", "friendly")
	v.SetDefault("ai.include_emoji", false)
	v.SetDefault("ai.max_response_length", 150)
	v.SetDefault("ai.timeout", 2*time.Minute)

	v.SetDefault("autopilot.default_enabled", false)

	v.SetDefault("poll.interval", 3*time.Second)

	v.SetDefault("scheduler.tasks.store_maintenance.enabled", true)
	v.SetDefault("scheduler.tasks.store_maintenance.schedule", "0 0 4 * * *")
	v.SetDefault("scheduler.tasks.conversation_archive.enabled", false)
	v.SetDefault("scheduler.tasks.conversation_archive.schedule", "0 30 4 * * *")
}
