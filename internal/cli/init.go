// Package cli provides common CLI initialization utilities shared by
// cmd/splitter and cmd/splitter-worker.
package cli

import (
	"io"
	"os"

	"github.com/joho/godotenv"

	"github.com/nivanenko/shared-expenses-tracker/internal/config"
	"github.com/nivanenko/shared-expenses-tracker/internal/log"
)

// SetupLogger initializes structured logging at the given level and format
// ("text" or "json") and sets it as the default logger. Unknown levels fall
// back to info and unknown formats to text, each with a warning.
func SetupLogger(level, format, component string, w io.Writer) *log.Logger {
	lvl, levelErr := log.ParseLevel(level)
	json, formatErr := log.ParseFormat(format)
	logger := log.New(log.Config{
		Level:     lvl,
		Component: component,
		Output:    w,
		JSON:      json,
	})
	log.SetDefault(logger)
	if levelErr != nil {
		logger.Warn("Falling back to info logging", "error", levelErr)
	}
	if formatErr != nil {
		logger.Warn("Falling back to text logging", "error", formatErr)
	}
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it with validate,
// which is usually (*config.Config).Validate or ValidateWorker.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *log.Logger, validate func(*config.Config) error) *config.Config {
	cfg := config.Load()
	if err := validate(cfg); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}
