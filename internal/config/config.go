// Package config loads eventsys configuration.
//
// Configuration is read from a TOML or YAML file chosen by extension, then
// overridden by EVENTSYS_* environment variables, then validated:
//
//	[events]
//	abstract = true
//
//	[[events.types]]
//	name = "editor.save"
//	parents = ["editor.any"]
//
//	[logging]
//	level = "debug"
//	format = "console"
//
// Apply installs the event settings into the process and must run before any
// executor is created.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/dshills/eventsys/internal/event/execution"
	"github.com/dshills/eventsys/internal/logging"
)

// Config is the complete eventsys configuration.
type Config struct {
	Events  EventsConfig  `toml:"events" yaml:"events"`
	Logging LoggingConfig `toml:"logging" yaml:"logging"`
	Metrics MetricsConfig `toml:"metrics" yaml:"metrics"`
	Plugins PluginsConfig `toml:"plugins" yaml:"plugins"`
}

// EventsConfig holds dispatch settings.
type EventsConfig struct {
	// Abstract enables abstract event dispatch for the whole process.
	Abstract bool `toml:"abstract" yaml:"abstract"`

	// Types declares event types that scripts and the CLI can fire.
	Types []TypeDecl `toml:"types" yaml:"types"`

	// DefaultPriority is used by script handlers that set no priority.
	DefaultPriority string `toml:"default_priority" yaml:"default_priority"`
}

// TypeDecl declares one event type.
type TypeDecl struct {
	Name     string   `toml:"name" yaml:"name"`
	Parents  []string `toml:"parents" yaml:"parents"`
	Abstract bool     `toml:"abstract" yaml:"abstract"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"`
}

// MetricsConfig holds admin HTTP settings.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled" yaml:"enabled"`
	Addr    string `toml:"addr" yaml:"addr"`
}

// PluginsConfig holds Lua plugin settings.
type PluginsConfig struct {
	// Paths lists script files loaded at startup.
	Paths []string `toml:"paths" yaml:"paths"`

	// Watch reloads a script when its file changes.
	Watch bool `toml:"watch" yaml:"watch"`

	// Debounce is the quiet period before a change triggers a reload.
	Debounce string `toml:"debounce" yaml:"debounce"`

	// Timeout bounds each script invocation. Empty means unlimited.
	Timeout string `toml:"timeout" yaml:"timeout"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Events: EventsConfig{
			DefaultPriority: "default",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: string(logging.FormatJSON),
		},
		Metrics: MetricsConfig{
			Addr: "127.0.0.1:9477",
		},
		Plugins: PluginsConfig{
			Debounce: "200ms",
			Timeout:  "2s",
		},
	}
}

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	if _, err := execution.ParsePriority(c.Events.DefaultPriority); err != nil {
		return &ValidationError{Field: "events.default_priority", Message: err.Error()}
	}

	seen := make(map[string]bool, len(c.Events.Types))
	for i, decl := range c.Events.Types {
		field := fmt.Sprintf("events.types[%d]", i)
		if strings.TrimSpace(decl.Name) == "" {
			return &ValidationError{Field: field + ".name", Message: "must not be empty"}
		}
		if seen[decl.Name] {
			return &ValidationError{Field: field + ".name", Message: "duplicate type " + decl.Name}
		}
		seen[decl.Name] = true
		for _, p := range decl.Parents {
			if p == decl.Name {
				return &ValidationError{Field: field + ".parents", Message: "type cannot be its own parent"}
			}
		}
	}

	switch logging.Format(c.Logging.Format) {
	case logging.FormatJSON, logging.FormatConsole:
	default:
		return &ValidationError{Field: "logging.format", Message: fmt.Sprintf("unknown format %q", c.Logging.Format)}
	}

	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return &ValidationError{Field: "metrics.addr", Message: "required when metrics are enabled"}
	}

	if _, err := c.Plugins.DebounceDuration(); err != nil {
		return &ValidationError{Field: "plugins.debounce", Message: err.Error()}
	}
	if _, err := c.Plugins.TimeoutDuration(); err != nil {
		return &ValidationError{Field: "plugins.timeout", Message: err.Error()}
	}
	return nil
}

// DebounceDuration parses Debounce. An empty value yields zero.
func (p PluginsConfig) DebounceDuration() (time.Duration, error) {
	return parseDuration(p.Debounce)
}

// TimeoutDuration parses Timeout. An empty value yields zero.
func (p PluginsConfig) TimeoutDuration() (time.Duration, error) {
	return parseDuration(p.Timeout)
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %s", d)
	}
	return d, nil
}

// DefaultPriority returns the parsed default handler priority.
func (c Config) DefaultPriority() execution.Priority {
	p, err := execution.ParsePriority(c.Events.DefaultPriority)
	if err != nil {
		return execution.PriorityDefault
	}
	return p
}

// LoggerConfig converts the logging section for logging.New.
func (c Config) LoggerConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.ParseLevel(c.Logging.Level)
	cfg.Format = logging.Format(c.Logging.Format)
	return cfg
}
