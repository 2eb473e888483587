// Copyright (c) 2025 Matt Pollard
// SPDX-License-Identifier: AGPL-3.0-or-later

package discussion

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDumpLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "discussion.json")

	stub := &stubCompleter{replies: []string{"Hi there"}}
	src := newEngine(t, stub, WithModel("gpt-4"), WithTokenLimit(2048))
	src.SetTitle("greeting")
	src.SetSystemContent("be brief")
	if _, err := src.AddUserTurn(context.Background(), "Hello"); err != nil {
		t.Fatalf("AddUserTurn failed: %v", err)
	}

	if err := src.Dump(path); err != nil {
		t.Fatalf("Dump failed: %v", err)
	}

	dst := newEngine(t, &stubCompleter{})
	if err := dst.Load(path); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if dst.Model() != "gpt-4" {
		t.Errorf("model = %q, want gpt-4", dst.Model())
	}
	if dst.TokenLimit() != 2048 {
		t.Errorf("token limit = %d, want 2048", dst.TokenLimit())
	}
	if dst.Title() != "greeting" {
		t.Errorf("title = %q, want greeting", dst.Title())
	}
	if sys, ok := dst.SystemContent(); !ok || sys != "be brief" {
		t.Errorf("system content = %q/%v, want be brief", sys, ok)
	}

	srcComplete, dstComplete := src.CompleteTurns(), dst.CompleteTurns()
	if len(srcComplete) != len(dstComplete) {
		t.Fatalf("complete turns = %d, want %d", len(dstComplete), len(srcComplete))
	}
	for i := range srcComplete {
		if srcComplete[i] != dstComplete[i] {
			t.Errorf("complete[%d] = %+v, want %+v", i, dstComplete[i], srcComplete[i])
		}
	}
	srcWorking, dstWorking := src.WorkingTurns(), dst.WorkingTurns()
	if len(srcWorking) != len(dstWorking) {
		t.Fatalf("working turns = %d, want %d", len(dstWorking), len(srcWorking))
	}
	for i := range srcWorking {
		if srcWorking[i] != dstWorking[i] {
			t.Errorf("working[%d] = %+v, want %+v", i, dstWorking[i], srcWorking[i])
		}
	}

	if !src.CreatedAt().Equal(dst.CreatedAt()) {
		t.Errorf("created = %v, want %v", dst.CreatedAt(), src.CreatedAt())
	}
	if !src.ModifiedAt().Equal(dst.ModifiedAt()) {
		t.Errorf("modified = %v, want %v", dst.ModifiedAt(), src.ModifiedAt())
	}
}

func TestDumpSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "discussion.json")

	stub := &stubCompleter{replies: []string{"Hi there"}}
	e := newEngine(t, stub)
	e.AddUserTurn(context.Background(), "Hello")
	if err := e.Dump(path); err != nil {
		t.Fatalf("Dump failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	for _, key := range []string{
		"created_date", "modified_date", "complete_message",
		"resume_message", "token_limit", "model",
	} {
		if _, ok := raw[key]; !ok {
			t.Errorf("missing key %q", key)
		}
	}
	// An unset title is omitted, not written as an empty string.
	if _, ok := raw["title"]; ok {
		t.Error("unset title should be omitted from the document")
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file mode = %o, want 0600", perm)
	}
}

func TestDumpStampsTimestamps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "discussion.json")
	e := newEngine(t, &stubCompleter{})

	before := time.Now()
	if err := e.Dump(path); err != nil {
		t.Fatalf("Dump failed: %v", err)
	}
	created := e.CreatedAt()
	if created.Before(before) {
		t.Error("created_date should be stamped on first dump")
	}

	firstModified := e.ModifiedAt()
	time.Sleep(10 * time.Millisecond)
	if err := e.Dump(path); err != nil {
		t.Fatalf("second Dump failed: %v", err)
	}
	if !e.CreatedAt().Equal(created) {
		t.Error("created_date must not change on later dumps")
	}
	if !e.ModifiedAt().After(firstModified) {
		t.Error("modified_date should advance on every dump")
	}
}

func TestDumpFailureKeepsTimestamps(t *testing.T) {
	// A regular file where the parent directory should be makes the write
	// fail after the document is assembled.
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	badPath := filepath.Join(blocker, "discussion.json")

	e := newEngine(t, &stubCompleter{})
	if err := e.Dump(badPath); err == nil {
		t.Fatal("Dump into an unwritable path should fail")
	}
	if !e.CreatedAt().IsZero() || !e.ModifiedAt().IsZero() {
		t.Error("failed dump must not stamp timestamps")
	}

	// After a successful dump, a later failed dump keeps the saved stamps.
	goodPath := filepath.Join(t.TempDir(), "discussion.json")
	if err := e.Dump(goodPath); err != nil {
		t.Fatalf("Dump failed: %v", err)
	}
	created, modified := e.CreatedAt(), e.ModifiedAt()

	if err := e.Dump(badPath); err == nil {
		t.Fatal("Dump into an unwritable path should fail")
	}
	if !e.CreatedAt().Equal(created) || !e.ModifiedAt().Equal(modified) {
		t.Error("failed dump must leave the previous timestamps in place")
	}
}

func TestLoadMissingFile(t *testing.T) {
	e := newEngine(t, &stubCompleter{})
	err := e.Load(filepath.Join(t.TempDir(), "no-such-file.json"))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestLoadDefaultsForMissingKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "discussion.json")
	doc := `{
  "created_date": "2024-01-02T03:04:05",
  "modified_date": "2024-01-02T03:04:05",
  "complete_message": [],
  "resume_message": []
}`
	if err := os.WriteFile(path, []byte(doc), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	e := newEngine(t, &stubCompleter{}, WithModel("gpt-4"), WithTokenLimit(99))
	if err := e.Load(path); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if e.Model() != "gpt-3.5-turbo" {
		t.Errorf("model = %q, want the default", e.Model())
	}
	if e.TokenLimit() != 4096 {
		t.Errorf("token limit = %d, want the default", e.TokenLimit())
	}
}

func TestLoadNaiveTimestamps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "discussion.json")
	doc := `{
  "created_date": "2023-06-01T10:20:30.123456",
  "modified_date": "2023-06-02T11:21:31",
  "complete_message": [],
  "resume_message": [],
  "token_limit": 4096,
  "model": "gpt-3.5-turbo"
}`
	if err := os.WriteFile(path, []byte(doc), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	e := newEngine(t, &stubCompleter{})
	if err := e.Load(path); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if e.CreatedAt().Year() != 2023 || e.CreatedAt().Month() != time.June {
		t.Errorf("created = %v, want June 2023", e.CreatedAt())
	}
}

func TestLoadClearsBeforeReading(t *testing.T) {
	stub := &stubCompleter{replies: []string{"reply"}}
	e := newEngine(t, stub)
	e.SetTitle("old")
	e.AddUserTurn(context.Background(), "old question")

	// A load that fails after the clear leaves the engine empty rather
	// than still holding the previous discussion.
	path := filepath.Join(t.TempDir(), "corrupt.json")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := e.Load(path); err == nil {
		t.Fatal("expected decode error")
	}

	if len(e.CompleteTurns()) != 0 || len(e.WorkingTurns()) != 0 {
		t.Error("failed load should leave the engine cleared")
	}
	if e.Title() != "" {
		t.Error("failed load should leave the title cleared")
	}
}

func TestLoadRejectsBadTurns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "discussion.json")
	doc := `{
  "created_date": "2024-01-02T03:04:05",
  "modified_date": "2024-01-02T03:04:05",
  "complete_message": [{"role": "oracle", "content": "hm"}],
  "resume_message": [],
  "token_limit": 4096,
  "model": "gpt-3.5-turbo"
}`
	if err := os.WriteFile(path, []byte(doc), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	e := newEngine(t, &stubCompleter{})
	if err := e.Load(path); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for unknown role, got %v", err)
	}
}
