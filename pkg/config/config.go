// Package config provides YAML-based configuration loading with environment
// variable expansion and overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// Validator is an interface for configuration validation.
type Validator interface {
	Validate() error
}

// EnvOverrider is implemented by configurations that read individual
// settings from the environment after the file has been decoded.
type EnvOverrider interface {
	ApplyEnv(lookup func(string) (string, bool)) error
}

// Load decodes the YAML file into target, expanding ${VAR} references, then
// applies environment overrides and validation.
func Load[T any](filename string, target *T) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", filename, err)
	}
	if err := decode(filename, data, target); err != nil {
		return err
	}
	return finish(target)
}

// LoadOptional behaves like Load but keeps target's defaults when filename
// is empty or does not exist.
func LoadOptional[T any](filename string, target *T) error {
	if filename != "" {
		data, err := os.ReadFile(filename)
		switch {
		case err == nil:
			if err := decode(filename, data, target); err != nil {
				return err
			}
		case !errors.Is(err, fs.ErrNotExist):
			return fmt.Errorf("failed to read config file %s: %w", filename, err)
		}
	}
	return finish(target)
}

func decode[T any](filename string, data []byte, target *T) error {
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), target); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", filename, err)
	}
	return nil
}

func finish[T any](target *T) error {
	if o, ok := any(target).(EnvOverrider); ok {
		if err := o.ApplyEnv(os.LookupEnv); err != nil {
			return fmt.Errorf("config environment override failed: %w", err)
		}
	}
	if validator, ok := any(target).(Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}
	}
	return nil
}
