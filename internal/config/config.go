// Package config loads the application configuration. Precedence, lowest to
// highest: flag defaults, YAML config file, VERVE_* environment variables,
// explicitly set command-line flags.
package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	flag "github.com/spf13/pflag"
)

// envPrefix namespaces the environment variables, e.g. VERVE_LOG_LEVEL.
const envPrefix = "VERVE_"

// Config holds the runtime settings of the server.
type Config struct {
	// Addr is the HTTP listen address.
	Addr string `koanf:"addr"`
	// DBPath is the SQLite database file.
	DBPath string `koanf:"db"`
	// ReposDir is where git import sources are cloned.
	ReposDir string `koanf:"repos_dir"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
}

// Flags returns the flag set the config loader understands, with the
// defaults baked in. The caller parses it before Load.
func Flags() *flag.FlagSet {
	f := flag.NewFlagSet("verve", flag.ContinueOnError)
	f.String("addr", ":8080", "HTTP listen address")
	f.String("db", "verve.db", "Path to the SQLite database file")
	f.String("repos-dir", "repos", "Directory for clones of git import sources")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("config", "", "Path to a YAML config file")
	return f
}

// Load merges the config file (if any), environment and parsed flags into a
// Config.
func Load(f *flag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path, _ := f.GetString("config"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	// VERVE_LOG_LEVEL -> log_level
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	// Flags win over everything; their dashed names are folded onto the
	// underscore keys the file and env use.
	if err := k.Load(posflag.ProviderWithValue(f, ".", k, func(key, value string) (string, interface{}) {
		return strings.ReplaceAll(key, "-", "_"), value
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load flags: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// SlogLevel maps the configured level name onto a slog level; unknown names
// fall back to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
