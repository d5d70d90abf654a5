package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// ConfigError wraps a failure to load or validate the configuration file.
// It is always fatal: the process cannot proceed without a usable config.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Load reads and parses a YAML config file, fills in defaults for absent
// keys, validates the result, and returns the resulting Config.
func Load(path string, logger *slog.Logger) (*Config, error) {
	logger.Debug("loading config file", "path", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: fmt.Errorf("reading config file: %w", err)}
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &ConfigError{Path: path, Err: fmt.Errorf("parsing config file: %w", err)}
	}

	if err := Validate(cfg); err != nil {
		return nil, &ConfigError{Path: path, Err: fmt.Errorf("validation failed: %w", err)}
	}

	logger.Debug("config file parsed successfully",
		"path", path,
		"local_root", cfg.LocalRoot,
		"num_daily", cfg.NumDaily,
		"num_weekly", cfg.NumWeekly,
		"num_monthly", cfg.NumMonthly,
	)

	return cfg, nil
}

// IsConfigError reports whether err is, or wraps, a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError

	return errors.As(err, &ce)
}
