// Copyright (c) 2025 Matt Pollard
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cloud wraps the OpenAI chat completions API behind a narrow
// contract: send an ordered list of turns, get back one assistant reply or a
// classified failure.
//
// The client owns its credential (passed at construction, never mutated
// through a shared handle) and performs exactly one blocking request per
// call: no retry, no backoff. Failures are distinguishable with errors.Is
// against the package sentinels (ErrAuthFailed, ErrProvider, ErrTimeout,
// ErrUnexpected).
package cloud
