// Copyright (c) 2025 Matt Pollard
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/mpollard/chatkeep/internal/config"
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// PromptCLI provides input history and line editing for the prompt loop.
type PromptCLI struct {
	line        *liner.State
	historyFile string
}

// NewPromptCLI creates a PromptCLI with input history support.
func NewPromptCLI() *PromptCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	configDir, err := config.ConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}

	cli := &PromptCLI{
		line:        line,
		historyFile: filepath.Join(configDir, "history"),
	}
	cli.LoadHistory()
	return cli
}

// LoadHistory loads input history from file.
func (c *PromptCLI) LoadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput reads a line of input with the given prompt. Non-empty lines
// are added to the history.
func (c *PromptCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// SaveHistory persists input history with owner-only permissions.
func (c *PromptCLI) SaveHistory() {
	if err := config.EnsureConfigDir(); err != nil {
		return
	}
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	c.line.WriteHistory(f)
}

// Close saves history and closes the liner.
func (c *PromptCLI) Close() {
	c.SaveHistory()
	c.line.Close()
}
