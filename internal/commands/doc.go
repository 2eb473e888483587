// Copyright (c) 2025 Matt Pollard
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package commands provides the bang command system for the chat prompt.
//
// Input starting with "!" is a command; everything else is a question for
// the model. Commands are registered once in a Registry, looked up by name
// or alias, parsed with quote-aware argument splitting, and executed
// against a shared Context holding the open discussion, the store, and
// the configuration. Handlers return a Result describing what to print
// and whether to quit; they never print themselves.
package commands
