// Copyright (c) 2025 Matt Pollard
// SPDX-License-Identifier: AGPL-3.0-or-later

// End-to-end lifecycle coverage: a discussion is carried through several
// exchanges, dumped, reloaded into a fresh engine, and continued.
package discussion

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mpollard/chatkeep/internal/transcript"
)

// TestLifecycleDumpLoadContinue walks the full save/restore cycle a user
// goes through when closing and reopening a discussion.
func TestLifecycleDumpLoadContinue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lifecycle.json")
	ctx := context.Background()

	stub := &stubCompleter{replies: []string{"four", "eight"}}
	e := newEngine(t, stub, WithModel("gpt-4"), WithTokenLimit(2000))
	e.SetSystemContent("You are a calculator.")
	e.SetTitle("arithmetic")

	reply, err := e.AddUserTurn(ctx, "What is 2+2?")
	require.NoError(t, err)
	require.Equal(t, "four", reply)

	reply, err = e.AddUserTurn(ctx, "And doubled?")
	require.NoError(t, err)
	require.Equal(t, "eight", reply)

	require.NoError(t, e.Dump(path))
	require.False(t, e.CreatedAt().IsZero(), "Dump should stamp created_date")

	// Restore into a fresh engine, as reopening does.
	restored := newEngine(t, &stubCompleter{replies: []string{"sixteen"}})
	require.NoError(t, restored.Load(path))

	require.Equal(t, "gpt-4", restored.Model())
	require.Equal(t, 2000, restored.TokenLimit())
	require.Equal(t, "arithmetic", restored.Title())
	require.True(t, e.CreatedAt().Equal(restored.CreatedAt()),
		"created_date must survive the round trip")

	sys, ok := restored.SystemContent()
	require.True(t, ok)
	require.Equal(t, "You are a calculator.", sys)

	// System turn plus two full exchanges.
	require.Equal(t, e.CompleteTurns(), restored.CompleteTurns())
	require.Len(t, restored.CompleteTurns(), 5)
	require.Equal(t, e.WorkingTurns(), restored.WorkingTurns())

	// The restored discussion keeps working where the old one left off.
	reply, err = restored.AddUserTurn(ctx, "Doubled again?")
	require.NoError(t, err)
	require.Equal(t, "sixteen", reply)

	turns := restored.CompleteTurns()
	require.Equal(t, transcript.RoleAssistant, turns[len(turns)-1].Role)
	require.Equal(t, "sixteen", turns[len(turns)-1].Content)
}

// TestLifecycleResaveAdvancesModified saves twice and checks the metadata
// the listing relies on moves the way the store expects.
func TestLifecycleResaveAdvancesModified(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resave.json")
	ctx := context.Background()

	e := newEngine(t, &stubCompleter{})
	_, err := e.AddUserTurn(ctx, "hello")
	require.NoError(t, err)

	require.NoError(t, e.Dump(path))
	created := e.CreatedAt()
	firstModified := e.ModifiedAt()

	_, err = e.AddUserTurn(ctx, "more")
	require.NoError(t, err)
	require.NoError(t, e.Dump(path))

	require.Equal(t, created, e.CreatedAt(), "created_date must be stamped once")
	require.False(t, e.ModifiedAt().Before(firstModified))

	require.NoError(t, e.Load(path))
	require.Len(t, e.CompleteTurns(), 4)
}
