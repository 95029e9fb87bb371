// loader.go implements the configuration loading lifecycle.
//
// The loading sequence is:
//  1. Enforce UTC timezone to prevent drift bugs.
//  2. Load .env file via godotenv (non-fatal if absent).
//  3. Use envconfig to process struct tags and populate the Config struct.
//  4. Validate the struct using go-playground/validator.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ConfigErrorType classifies configuration failures.
type ConfigErrorType string

const (
	// ErrParsing indicates the environment could not be parsed into the
	// Config struct (bad number, bad duration, etc).
	ErrParsing ConfigErrorType = "parsing"
	// ErrValidation indicates the parsed Config failed validation.
	ErrValidation ConfigErrorType = "validation"
)

// ConfigError is a diagnostic error type returned by LoadConfig to aid
// debugging.
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// LoadConfig loads and validates the swellwatch configuration.
func LoadConfig() (*Config, error) {
	// Enforce UTC to prevent drift bugs; forecast data is UTC throughout
	// and only report rendering converts to the alert timezone.
	time.Local = time.UTC

	// Load .env file (non-fatal if absent). godotenv does not override
	// existing environment variables, preserving the priority chain.
	_ = godotenv.Load()

	// The empty prefix means envconfig uses the exact tag values
	// (e.g., envconfig:"WAVE_THRESHOLD" reads WAVE_THRESHOLD directly).
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrParsing,
			Message: "failed to process environment configuration",
			Err:     err,
		}
	}

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrValidation,
			Message: "configuration validation failed",
			Err:     err,
		}
	}

	return &cfg, nil
}
