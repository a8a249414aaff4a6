// Package config loads the application configuration from a YAML file plus
// environment overrides. Absent file and absent keys both fall back to
// defaults; a present but malformed file is an error.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root application configuration.
type Config struct {
	Logging LoggingConfig `yaml:"logging"`
	Fitter  FitterConfig  `yaml:"fitter"`
	Journal JournalConfig `yaml:"journal"`
	Watch   WatchConfig   `yaml:"watch"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig controls the slog setup.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug|info|warn|error
	Format string `yaml:"format"` // text|json
}

// FitterConfig selects and bounds the fit engine.
type FitterConfig struct {
	Kind      string `yaml:"kind"` // auto|wls
	MaxIter   int    `yaml:"max_iter"`
	Ephemeris string `yaml:"ephemeris"` // recorded on sources that name none
}

// JournalConfig controls the mutation journal.
type JournalConfig struct {
	Path string `yaml:"path"` // empty disables persistence; ":memory:" for ephemeral
}

// WatchConfig controls source-file watching.
type WatchConfig struct {
	Enabled    bool `yaml:"enabled"`
	DebounceMS int  `yaml:"debounce_ms"`
}

// MetricsConfig controls the in-process Prometheus recorder.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Fitter:  FitterConfig{Kind: "auto", MaxIter: 10, Ephemeris: "DE421"},
		Journal: JournalConfig{Path: ""},
		Watch:   WatchConfig{Enabled: false, DebounceMS: 500},
		Metrics: MetricsConfig{Enabled: true},
	}
}

// Load reads the configuration file at path, layering environment overrides
// on top. A missing file yields the defaults; loading also consults .env and
// .env.local without overriding the process environment.
func Load(path string) (Config, error) {
	// Best effort; absence of a .env file is the normal case.
	_ = godotenv.Load(".env", ".env.local")

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Defaults apply.
	case err != nil:
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PLK_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("PLK_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("PLK_FITTER"); v != "" {
		cfg.Fitter.Kind = v
	}
	if v := os.Getenv("PLK_JOURNAL_PATH"); v != "" {
		cfg.Journal.Path = v
	}
	if v := os.Getenv("PLK_FIT_MAX_ITER"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Fitter.MaxIter = n
		}
	}
	if v := os.Getenv("PLK_EPHEMERIS"); v != "" {
		cfg.Fitter.Ephemeris = v
	}
	if v := os.Getenv("PLK_METRICS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Metrics.Enabled = b
		}
	}
}

func (c Config) validate() error {
	switch NormalizeFitterKind(c.Fitter.Kind) {
	case FitterAuto, FitterWLS:
	default:
		return fmt.Errorf("fitter.kind %q: must be auto or wls", c.Fitter.Kind)
	}
	if c.Fitter.MaxIter < 1 || c.Fitter.MaxIter > 1000 {
		return fmt.Errorf("fitter.max_iter %d: must be between 1 and 1000", c.Fitter.MaxIter)
	}
	if c.Watch.DebounceMS < 0 {
		return fmt.Errorf("watch.debounce_ms %d: must not be negative", c.Watch.DebounceMS)
	}
	return nil
}
