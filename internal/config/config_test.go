// Copyright (c) 2025 Matt Pollard
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// clearEnv neutralizes the override variables for tests that exercise
// file loading.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"OPENAI_API_KEY", "CHATKEEP_MODEL", "CHATKEEP_TOKEN_LIMIT", "CHATKEEP_LOG"} {
		t.Setenv(key, "")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.DefaultModel != "gpt-3.5-turbo" {
		t.Errorf("DefaultModel = %q, want gpt-3.5-turbo", cfg.DefaultModel)
	}
	if cfg.TokenLimit != 4096 {
		t.Errorf("TokenLimit = %d, want 4096", cfg.TokenLimit)
	}
	if !cfg.Markdown {
		t.Error("Markdown should default to true")
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want warn", cfg.LogLevel)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadFromPath(filepath.Join(t.TempDir(), "config.toml"))
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if cfg.DefaultModel != Default().DefaultModel {
		t.Errorf("missing file should yield defaults, got model %q", cfg.DefaultModel)
	}
}

func TestLoadFromPath(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
default_model = "gpt-4"
token_limit = 2048
system_prompt = "be brief"
markdown = false
log_level = "debug"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if cfg.DefaultModel != "gpt-4" {
		t.Errorf("DefaultModel = %q, want gpt-4", cfg.DefaultModel)
	}
	if cfg.TokenLimit != 2048 {
		t.Errorf("TokenLimit = %d, want 2048", cfg.TokenLimit)
	}
	if cfg.SystemPrompt != "be brief" {
		t.Errorf("SystemPrompt = %q", cfg.SystemPrompt)
	}
	if cfg.Markdown {
		t.Error("Markdown should be false")
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
default_model = "davinci"
token_limit = -5
log_level = "loud"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	_, err := LoadFromPath(path)
	if err == nil {
		t.Fatal("expected validation failure")
	}
	var verrs ValidateErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected ValidateErrors, got %T: %v", err, err)
	}
	if len(verrs) != 3 {
		t.Errorf("got %d validation errors, want 3: %v", len(verrs), verrs)
	}
	fields := make(map[string]bool)
	for _, e := range verrs {
		fields[e.Field] = true
	}
	for _, field := range []string{"default_model", "token_limit", "log_level"} {
		if !fields[field] {
			t.Errorf("missing validation error for %s", field)
		}
	}
}

func TestSaveRoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := Default()
	cfg.DefaultModel = "gpt-4o"
	cfg.TokenLimit = 8192
	cfg.SystemPrompt = "always answer in haiku"

	if err := SaveToPath(cfg, path); err != nil {
		t.Fatalf("SaveToPath failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("config file mode = %o, want 0600", perm)
	}

	loaded, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if loaded.DefaultModel != "gpt-4o" || loaded.TokenLimit != 8192 ||
		loaded.SystemPrompt != "always answer in haiku" {
		t.Errorf("round trip mismatch: %+v", loaded)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test-override")
	t.Setenv("CHATKEEP_MODEL", "gpt-4o-mini")
	t.Setenv("CHATKEEP_TOKEN_LIMIT", "1234")
	t.Setenv("CHATKEEP_LOG", "DEBUG")

	cfg := Default()
	cfg.APIKey = "sk-from-file"
	cfg.ApplyEnvOverrides()

	if cfg.APIKey != "sk-test-override" {
		t.Errorf("APIKey = %q, want env override", cfg.APIKey)
	}
	if cfg.DefaultModel != "gpt-4o-mini" {
		t.Errorf("DefaultModel = %q, want gpt-4o-mini", cfg.DefaultModel)
	}
	if cfg.TokenLimit != 1234 {
		t.Errorf("TokenLimit = %d, want 1234", cfg.TokenLimit)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
}

func TestEnvOverrideIgnoresBadInt(t *testing.T) {
	t.Setenv("CHATKEEP_TOKEN_LIMIT", "lots")

	cfg := Default()
	cfg.ApplyEnvOverrides()
	if cfg.TokenLimit != 4096 {
		t.Errorf("TokenLimit = %d, want the default kept", cfg.TokenLimit)
	}
}

func TestLoadTightensPermissions(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("token_limit = 4096\n"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if _, err := LoadFromPath(path); err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("config file mode = %o, want tightened to 0600", perm)
	}
}

func TestValidationErrorText(t *testing.T) {
	err := ValidateErrors{
		{Field: "token_limit", Message: "must be positive, got -1"},
	}
	if !strings.Contains(err.Error(), "token_limit") {
		t.Errorf("error text = %q, want the field name", err.Error())
	}
}
