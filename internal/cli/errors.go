// Copyright (c) 2025 Matt Pollard
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"

	"github.com/mpollard/chatkeep/internal/cloud"
	"github.com/mpollard/chatkeep/internal/discussion"
	"github.com/mpollard/chatkeep/internal/storage"
)

// FormatError turns an error from the engine, the store, or a command
// handler into a one-line message for the prompt. Classified remote
// failures get actionable text; anything else falls back to the error's
// own message.
func FormatError(err error) string {
	switch {
	case errors.Is(err, cloud.ErrNotConfigured):
		return "No API key configured. Set OPENAI_API_KEY or add api_key to the config file."
	case errors.Is(err, cloud.ErrAuthFailed):
		return "Authentication failed. Check your API key."
	case errors.Is(err, cloud.ErrTimeout):
		return "The request timed out. Try again."
	case errors.Is(err, cloud.ErrProvider):
		return "The provider returned an error: " + err.Error()
	case errors.Is(err, cloud.ErrUnexpected):
		return "Unexpected failure talking to the provider: " + err.Error()
	case errors.Is(err, discussion.ErrNotFound),
		errors.Is(err, storage.ErrDiscussionNotFound):
		return "No such discussion."
	default:
		return err.Error()
	}
}
