// Copyright (c) 2025 Matt Pollard
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package transcript holds the ordered message history of a discussion.
//
// A transcript is a sequence of role-tagged turns in conversational order,
// in the shape expected by chat completion APIs. At most one system turn may
// exist, and it is always pinned to index 0.
package transcript

import (
	"errors"
	"fmt"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role identifies the sender of a turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the supported roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// ErrInvalidRole is returned when a turn carries an unsupported role.
// Use errors.Is(err, ErrInvalidRole) to check for this error.
var ErrInvalidRole = errors.New("invalid role")

// =============================================================================
// TURN TYPE
// =============================================================================

// Turn is a single role-tagged message. The json tags define the wire and
// persistence format, so they must not change.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// =============================================================================
// TRANSCRIPT TYPE
// =============================================================================

// Transcript is an ordered, mutable sequence of turns. The zero value is not
// usable; construct with New or FromTurns.
type Transcript struct {
	turns []Turn
}

// New returns an empty transcript.
func New() *Transcript {
	return &Transcript{turns: make([]Turn, 0)}
}

// FromTurns builds a transcript from a restored turn sequence. It rejects
// unsupported roles and any system turn outside index 0, so a transcript
// loaded from disk satisfies the same invariants as one built through Append.
func FromTurns(turns []Turn) (*Transcript, error) {
	t := New()
	for i, turn := range turns {
		if !turn.Role.Valid() {
			return nil, fmt.Errorf("%w: %q at index %d", ErrInvalidRole, turn.Role, i)
		}
		if turn.Role == RoleSystem && i != 0 {
			return nil, fmt.Errorf("%w: system turn at index %d, must be first", ErrInvalidRole, i)
		}
		t.turns = append(t.turns, turn)
	}
	return t, nil
}

// Append adds a turn to the end of the transcript. A system-role append is
// routed through SetSystemContent, so it updates the pinned system turn
// instead of growing the sequence.
func (t *Transcript) Append(role Role, content string) error {
	if !role.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	if role == RoleSystem {
		t.SetSystemContent(content)
		return nil
	}
	t.turns = append(t.turns, Turn{Role: role, Content: content})
	return nil
}

// SetSystemContent inserts or replaces the system turn at index 0. Existing
// non-system turns are pushed to index 1 at most once; there is never more
// than one system turn.
func (t *Transcript) SetSystemContent(content string) {
	if len(t.turns) > 0 && t.turns[0].Role == RoleSystem {
		t.turns[0].Content = content
		return
	}
	t.turns = append([]Turn{{Role: RoleSystem, Content: content}}, t.turns...)
}

// ClearSystemContent removes the system turn if one is set. No-op otherwise.
func (t *Transcript) ClearSystemContent() {
	if len(t.turns) > 0 && t.turns[0].Role == RoleSystem {
		t.turns = t.turns[1:]
	}
}

// SystemContent returns the content of the system turn, if one is set.
func (t *Transcript) SystemContent() (string, bool) {
	if len(t.turns) > 0 && t.turns[0].Role == RoleSystem {
		return t.turns[0].Content, true
	}
	return "", false
}

// Clear empties the transcript, including the system turn.
func (t *Transcript) Clear() {
	t.turns = t.turns[:0]
}

// ClearExceptSystem discards every turn except the system turn. On a
// transcript with no system turn it behaves like Clear.
func (t *Transcript) ClearExceptSystem() {
	if len(t.turns) > 0 && t.turns[0].Role == RoleSystem {
		t.turns = t.turns[:1]
		return
	}
	t.Clear()
}

// Turns returns a snapshot of the turn sequence in conversational order.
// The caller may retain or modify the slice freely.
func (t *Transcript) Turns() []Turn {
	out := make([]Turn, len(t.turns))
	copy(out, t.turns)
	return out
}

// Len returns the number of turns, system turn included.
func (t *Transcript) Len() int {
	return len(t.turns)
}

// ContentLength returns the total byte length of all turn contents,
// system turn included.
func (t *Transcript) ContentLength() int {
	total := 0
	for _, turn := range t.turns {
		total += len(turn.Content)
	}
	return total
}
