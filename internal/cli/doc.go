// Copyright (c) 2025 Matt Pollard
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the interactive chatkeep prompt.
//
// The prompt loop reads lines with history and editing support, dispatches
// bang commands through the commands package, and sends everything else to
// the open discussion. Assistant replies render as terminal markdown when
// stdout is a TTY; remote failures are reported as one-line messages and
// never terminate the loop.
package cli
