package app

import (
	"errors"
	"fmt"
	"slices"
)

// Mode selects what the App does once it is built.
type Mode int

const (
	// ModeServe runs the HTTP API until the context is cancelled.
	ModeServe Mode = iota
	// ModeCheck loads configuration and the seed graph, reports, and exits.
	ModeCheck
)

// Config holds the command-line level settings of an App. Empty string
// fields leave the value from the configuration files in place.
type Config struct {
	Mode        Mode
	ConfigPaths []string // hcl files or directories

	Listen       string
	LogFormat    string
	LogLevel     string
	SnapshotPath string
}

var (
	validLevels  = []string{"debug", "info", "warn", "error"}
	validFormats = []string{"text", "json"}
)

// NewConfig validates cfg and returns a copy of it.
func NewConfig(cfg Config) (*Config, error) {
	if len(cfg.ConfigPaths) == 0 {
		return nil, errors.New("at least one configuration path is required")
	}
	if cfg.LogLevel != "" && !slices.Contains(validLevels, cfg.LogLevel) {
		return nil, fmt.Errorf("invalid log-level %q: must be one of %v", cfg.LogLevel, validLevels)
	}
	if cfg.LogFormat != "" && !slices.Contains(validFormats, cfg.LogFormat) {
		return nil, fmt.Errorf("invalid log-format %q: must be one of %v", cfg.LogFormat, validFormats)
	}
	return &cfg, nil
}
