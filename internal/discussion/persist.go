// Copyright (c) 2025 Matt Pollard
// SPDX-License-Identifier: AGPL-3.0-or-later

package discussion

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/mpollard/chatkeep/internal/cloud"
	"github.com/mpollard/chatkeep/internal/transcript"
	"github.com/mpollard/chatkeep/internal/util"
)

// =============================================================================
// DOCUMENT SCHEMA
// =============================================================================

// document is the persisted form of a discussion, one JSON file each.
// Key names are the storage format and must not change.
type document struct {
	Title           string            `json:"title,omitempty"`
	CreatedDate     string            `json:"created_date"`
	ModifiedDate    string            `json:"modified_date"`
	CompleteMessage []transcript.Turn `json:"complete_message"`
	ResumeMessage   []transcript.Turn `json:"resume_message"`
	TokenLimit      int               `json:"token_limit"`
	Model           string            `json:"model"`
}

// timestampLayouts are accepted on load. Files written by this program use
// RFC 3339; older files carry naive ISO-8601 timestamps without a zone.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// =============================================================================
// DUMP
// =============================================================================

// Dump writes the discussion document to path. created_date is stamped with
// the current time if it was never set; modified_date always advances to
// the current time. The write is atomic.
func (e *Engine) Dump(path string) error {
	// Timestamps are stamped into locals first; the engine keeps its old
	// values when the write fails.
	now := time.Now()
	createdAt := e.createdAt
	if createdAt.IsZero() {
		createdAt = now
	}

	doc := document{
		Title:           e.title,
		CreatedDate:     createdAt.Format(time.RFC3339Nano),
		ModifiedDate:    now.Format(time.RFC3339Nano),
		CompleteMessage: e.complete.Turns(),
		ResumeMessage:   e.working.Turns(),
		TokenLimit:      e.tokenLimit,
		Model:           e.model,
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode discussion: %w", err)
	}

	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write discussion: %w", err)
	}
	e.createdAt = createdAt
	e.modifiedAt = now

	e.log.Debug().
		Str("path", path).
		Int("complete_turns", e.complete.Len()).
		Int("working_turns", e.working.Len()).
		Msg("discussion saved")
	return nil
}

// =============================================================================
// LOAD
// =============================================================================

// Load replaces the engine state with the document at path. The engine is
// cleared before the file is read, so a failed load leaves it empty rather
// than holding the previous discussion. A missing file fails with
// ErrNotFound; missing model or token_limit keys fall back to the defaults.
func (e *Engine) Load(path string) error {
	e.Clear()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return fmt.Errorf("failed to read discussion: %w", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to decode discussion: %w", err)
	}

	if doc.Model == "" {
		doc.Model = cloud.DefaultModel
	}
	if doc.TokenLimit == 0 {
		doc.TokenLimit = cloud.DefaultTokenLimit
	}
	if err := e.SetModel(doc.Model); err != nil {
		return err
	}
	if err := e.SetTokenLimit(doc.TokenLimit); err != nil {
		return err
	}

	complete, err := transcript.FromTurns(doc.CompleteMessage)
	if err != nil {
		return fmt.Errorf("%w: complete_message: %w", ErrInvalidArgument, err)
	}
	working, err := transcript.FromTurns(doc.ResumeMessage)
	if err != nil {
		return fmt.Errorf("%w: resume_message: %w", ErrInvalidArgument, err)
	}
	e.complete = complete
	e.working = working

	e.title = doc.Title
	if doc.CreatedDate != "" {
		if e.createdAt, err = parseTimestamp(doc.CreatedDate); err != nil {
			return fmt.Errorf("created_date: %w", err)
		}
	}
	if doc.ModifiedDate != "" {
		if e.modifiedAt, err = parseTimestamp(doc.ModifiedDate); err != nil {
			return fmt.Errorf("modified_date: %w", err)
		}
	}

	e.log.Debug().
		Str("path", path).
		Str("model", e.model).
		Int("complete_turns", e.complete.Len()).
		Msg("discussion loaded")
	return nil
}
