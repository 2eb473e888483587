// Copyright (c) 2025 Matt Pollard
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/mpollard/chatkeep/internal/cloud"
)

// =============================================================================
// CONFIG STRUCTURE
// =============================================================================

// Config represents the complete chatkeep configuration.
type Config struct {
	// DefaultModel is the model new discussions start with.
	DefaultModel string `toml:"default_model"`
	// TokenLimit is the working transcript budget for new discussions.
	TokenLimit int `toml:"token_limit"`
	// SystemPrompt, when set, seeds every new discussion's system turn.
	SystemPrompt string `toml:"system_prompt"`
	// DiscussionsDir overrides the saved-discussion directory
	// (empty = default ~/.chatkeep/discussions).
	DiscussionsDir string `toml:"discussions_dir"`
	// APIKey is the completion provider key. The OPENAI_API_KEY
	// environment variable takes precedence.
	APIKey string `toml:"api_key"`
	// Markdown renders assistant replies as terminal markdown.
	Markdown bool `toml:"markdown"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `toml:"log_level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DefaultModel: cloud.DefaultModel,
		TokenLimit:   cloud.DefaultTokenLimit,
		Markdown:     true,
		LogLevel:     "warn",
	}
}

// =============================================================================
// PATHS
// =============================================================================

// ConfigDir returns the chatkeep configuration directory.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".chatkeep"), nil
}

// ConfigPath returns the path to the config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// ensureSecurePermissions tightens the config file to 0600. The file may
// hold the API key.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD AND SAVE
// =============================================================================

// Load reads the config file, falling back to defaults when it is absent.
// Environment overrides are applied last, then the result is validated.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath reads configuration from an explicit path. A missing file
// is not an error; defaults are used.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		if err := ensureSecurePermissions(path); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
		}
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
	}

	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration to the default path.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveToPath(cfg, path)
}

// SaveToPath writes the configuration as TOML with 0600 permissions.
func SaveToPath(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	if err := os.Chmod(path, 0600); err != nil {
		return fmt.Errorf("failed to set config file permissions: %w", err)
	}

	fmt.Fprintln(file, "# chatkeep configuration file")
	fmt.Fprintln(file, "")

	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variables over the loaded values.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv("CHATKEEP_MODEL"); v != "" {
		c.DefaultModel = v
	}
	if v := os.Getenv("CHATKEEP_TOKEN_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.TokenLimit = n
		}
	}
	if v := os.Getenv("CHATKEEP_LOG"); v != "" {
		c.LogLevel = strings.ToLower(v)
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if err := cloud.ValidateModel(c.DefaultModel); err != nil {
		errs = append(errs, ValidationError{
			Field: "default_model",
			Message: fmt.Sprintf("unsupported model '%s', must be one of: %s",
				c.DefaultModel, strings.Join(cloud.SupportedModels(), ", ")),
		})
	}

	if c.TokenLimit <= 0 {
		errs = append(errs, ValidationError{
			Field:   "token_limit",
			Message: fmt.Sprintf("must be positive, got %d", c.TokenLimit),
		})
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, ValidationError{
			Field:   "log_level",
			Message: fmt.Sprintf("invalid level '%s', must be one of: debug, info, warn, error", c.LogLevel),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
