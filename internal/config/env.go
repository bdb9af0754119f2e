package config

import (
	"os"
	"strconv"
	"strings"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "EVENTSYS_"

// envSetters maps environment variables (without prefix) to settings.
var envSetters = map[string]func(*Config, string) error{
	"EVENTS_ABSTRACT": func(c *Config, v string) error {
		b, err := parseBool(v)
		c.Events.Abstract = b
		return err
	},
	"EVENTS_DEFAULT_PRIORITY": func(c *Config, v string) error {
		c.Events.DefaultPriority = v
		return nil
	},
	"LOG_LEVEL": func(c *Config, v string) error {
		c.Logging.Level = v
		return nil
	},
	"LOGGING_LEVEL": func(c *Config, v string) error {
		c.Logging.Level = v
		return nil
	},
	"LOGGING_FORMAT": func(c *Config, v string) error {
		c.Logging.Format = strings.ToLower(v)
		return nil
	},
	"METRICS_ENABLED": func(c *Config, v string) error {
		b, err := parseBool(v)
		c.Metrics.Enabled = b
		return err
	},
	"METRICS_ADDR": func(c *Config, v string) error {
		c.Metrics.Addr = v
		return nil
	},
	"PLUGINS_PATHS": func(c *Config, v string) error {
		c.Plugins.Paths = splitList(v)
		return nil
	},
	"PLUGINS_WATCH": func(c *Config, v string) error {
		b, err := parseBool(v)
		c.Plugins.Watch = b
		return err
	},
	"PLUGINS_DEBOUNCE": func(c *Config, v string) error {
		c.Plugins.Debounce = v
		return nil
	},
	"PLUGINS_TIMEOUT": func(c *Config, v string) error {
		c.Plugins.Timeout = v
		return nil
	},
}

// ApplyEnv overrides cfg with EVENTSYS_* variables found through lookup,
// typically os.LookupEnv. Empty values are treated as set.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	for name, set := range envSetters {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			continue
		}
		if err := set(cfg, strings.TrimSpace(v)); err != nil {
			return &EnvError{Var: EnvPrefix + name, Value: v, Err: err}
		}
	}
	return nil
}

// parseBool accepts the usual shell spellings of a boolean.
func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true", "yes", "on", "1":
		return true, nil
	case "false", "no", "off", "0", "":
		return false, nil
	default:
		return strconv.ParseBool(s)
	}
}

// splitList splits a path list on the OS list separator or commas.
func splitList(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == os.PathListSeparator
	})
	out := fields[:0]
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
