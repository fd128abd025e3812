// Package config provides YAML-based configuration loading with environment
// variable expansion and overrides.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Validator is an interface for configuration validation.
type Validator interface {
	Validate() error
}

type loadOptions struct {
	envPrefix    string
	allowMissing bool
}

// Option tunes Load.
type Option func(*loadOptions)

// WithEnvPrefix applies environment overrides named PREFIX_SECTION_FIELD
// after the file is parsed.
func WithEnvPrefix(prefix string) Option {
	return func(o *loadOptions) {
		o.envPrefix = prefix
	}
}

// AllowMissing keeps the target's defaults when the file does not exist.
func AllowMissing() Option {
	return func(o *loadOptions) {
		o.allowMissing = true
	}
}

// Load fills target from a YAML file with ${VAR} expansion, then from the
// environment, then validates it. The precedence is defaults < file < env.
func Load[T any](filename string, target *T, opts ...Option) error {
	var o loadOptions
	for _, opt := range opts {
		opt(&o)
	}

	if err := loadFile(filename, target, o.allowMissing); err != nil {
		return err
	}

	if o.envPrefix != "" {
		if err := envconfig.Process(o.envPrefix, target); err != nil {
			return fmt.Errorf("failed to apply environment overrides: %w", err)
		}
	}

	if validator, ok := any(target).(Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}
	}

	return nil
}

func loadFile[T any](filename string, target *T, allowMissing bool) error {
	if filename == "" && allowMissing {
		return nil
	}
	data, err := os.ReadFile(filename)
	if err != nil {
		if allowMissing && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	expandedData := os.ExpandEnv(string(data))

	if err := yaml.Unmarshal([]byte(expandedData), target); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", filename, err)
	}
	return nil
}
