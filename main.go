// Copyright (c) 2025 Matt Pollard
// SPDX-License-Identifier: AGPL-3.0-or-later

// chatkeep is a terminal chat client that keeps every discussion on disk.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/mpollard/chatkeep/internal/cli"
	"github.com/mpollard/chatkeep/internal/cloud"
	"github.com/mpollard/chatkeep/internal/config"
	"github.com/mpollard/chatkeep/internal/discussion"
	"github.com/mpollard/chatkeep/internal/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := newLogger(cfg.LogLevel)

	apiKey := cfg.APIKey
	if apiKey == "" && cli.IsStdinTTY() {
		apiKey, err = cli.PromptAPIKey()
		if err != nil {
			return err
		}
	}

	client := cloud.NewClient(apiKey, cloud.WithLogger(log))

	engine, err := discussion.New(client,
		discussion.WithModel(cfg.DefaultModel),
		discussion.WithTokenLimit(cfg.TokenLimit),
		discussion.WithLogger(log),
	)
	if err != nil {
		return err
	}
	if cfg.SystemPrompt != "" {
		engine.SetSystemContent(cfg.SystemPrompt)
	}

	var store *storage.Store
	if cfg.DiscussionsDir != "" {
		store, err = storage.NewStoreWithDir(cfg.DiscussionsDir)
	} else {
		store, err = storage.NewStore()
	}
	if err != nil {
		return err
	}

	return cli.New(cfg, client, engine, store, log).Run()
}

// newLogger builds a console logger on stderr at the configured level.
// Unknown levels fall back to warn so a bad config value never silences
// errors entirely.
func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.WarnLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(lvl).
		With().Timestamp().Logger()
}
