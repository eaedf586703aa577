// Package config provides configuration structures and loading logic for agenttrace.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the root configuration structure for the trace query engine.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Store     StoreConfig     `mapstructure:"store"`
	Query     QueryConfig     `mapstructure:"query"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// AppConfig defines application-level settings such as host and port.
type AppConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`
}

// StoreConfig locates the span records and the event log written by the tracing producer.
type StoreConfig struct {
	Backend     string `mapstructure:"backend"`
	TraceDir    string `mapstructure:"trace_dir"`
	RunsDir     string `mapstructure:"runs_dir"`
	EventsFile  string `mapstructure:"events_file"`
	SQLitePath  string `mapstructure:"sqlite_path"`
	LoadWorkers int    `mapstructure:"load_workers"`
}

// QueryConfig holds the default bounds applied when a caller omits limit.
type QueryConfig struct {
	RunsLimit   int `mapstructure:"runs_limit"`
	EventsLimit int `mapstructure:"events_limit"`
}

// TelemetryConfig controls export of the engine's own OpenTelemetry spans.
type TelemetryConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	Insecure     bool   `mapstructure:"insecure"`
	ServiceName  string `mapstructure:"service_name"`
}

// GetRunsDir returns the span directory, defaulting to <trace_dir>/runs.
func (c *StoreConfig) GetRunsDir() string {
	if c.RunsDir != "" {
		return c.RunsDir
	}
	return filepath.Join(c.TraceDir, "runs")
}

// GetEventsFile returns the event log path, defaulting to <trace_dir>/events/queue.jsonl.
func (c *StoreConfig) GetEventsFile() string {
	if c.EventsFile != "" {
		return c.EventsFile
	}
	return filepath.Join(c.TraceDir, "events", "queue.jsonl")
}

// SlogLevel maps log_level onto a slog.Level, defaulting to info.
func (c *AppConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Load loads configuration from configFile, or from config.yaml on the search
// path when configFile is empty. AGENTTRACE_* environment variables override both.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/agenttrace")
	}

	// Allow environment variables to override config
	v.SetEnvPrefix("agenttrace")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set defaults
	v.SetDefault("app.host", "127.0.0.1")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.log_level", "info")
	v.SetDefault("store.backend", "dir")
	v.SetDefault("store.trace_dir", "./agent-trace")
	v.SetDefault("store.runs_dir", "")
	v.SetDefault("store.events_file", "")
	v.SetDefault("store.sqlite_path", "")
	v.SetDefault("store.load_workers", 8)
	v.SetDefault("query.runs_limit", 20)
	v.SetDefault("query.events_limit", 20)
	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.insecure", false)
	v.SetDefault("telemetry.service_name", "agenttrace")

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Query.RunsLimit <= 0 {
		cfg.Query.RunsLimit = 20
	}
	if cfg.Query.EventsLimit <= 0 {
		cfg.Query.EventsLimit = 20
	}

	return &cfg, nil
}
