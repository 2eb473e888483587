// Copyright (c) 2025 Matt Pollard
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads and saves the chatkeep configuration.
//
// Configuration lives in ~/.chatkeep/config.toml with built-in defaults
// for every setting. Environment variables override file values:
//
//   - OPENAI_API_KEY        API key for the completion provider
//   - CHATKEEP_MODEL        default model
//   - CHATKEEP_TOKEN_LIMIT  working transcript token budget
//   - CHATKEEP_LOG          log level (debug, info, warn, error)
//
// The config file is kept at mode 0600 because it may hold the API key.
package config
