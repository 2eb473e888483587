// Copyright (c) 2025 Matt Pollard
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/mpollard/chatkeep/internal/cloud"
	"github.com/mpollard/chatkeep/internal/discussion"
	"github.com/mpollard/chatkeep/internal/storage"
)

func TestFormatError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"not configured", cloud.ErrNotConfigured, "No API key configured"},
		{"auth failed", fmt.Errorf("%w: status 401", cloud.ErrAuthFailed), "Authentication failed"},
		{"timeout", cloud.ErrTimeout, "timed out"},
		{"provider", fmt.Errorf("%w: status 500", cloud.ErrProvider), "provider returned an error"},
		{"unexpected", cloud.ErrUnexpected, "Unexpected failure"},
		{"discussion missing", fmt.Errorf("%w: /tmp/x.json", discussion.ErrNotFound), "No such discussion"},
		{"store missing", storage.ErrDiscussionNotFound, "No such discussion"},
		{"plain", errors.New("disk full"), "disk full"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatError(tt.err)
			if !strings.Contains(got, tt.want) {
				t.Errorf("FormatError(%v) = %q, want substring %q", tt.err, got, tt.want)
			}
		})
	}
}

func TestCancelHandoff(t *testing.T) {
	r := &REPL{}

	if cancel := r.takeCancel(); cancel != nil {
		t.Error("takeCancel on an idle loop should return nil")
	}

	called := 0
	r.setCancel(func() { called++ })

	cancel := r.takeCancel()
	if cancel == nil {
		t.Fatal("takeCancel should return the installed function")
	}
	cancel()
	if called != 1 {
		t.Errorf("cancel calls = %d, want 1", called)
	}
	if again := r.takeCancel(); again != nil {
		t.Error("second takeCancel should return nil, the first taker owns the call")
	}
}

func TestCancelConcurrentAccess(t *testing.T) {
	r := &REPL{}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			r.setCancel(func() {})
			r.setCancel(nil)
		}()
		go func() {
			defer wg.Done()
			if cancel := r.takeCancel(); cancel != nil {
				cancel()
			}
		}()
	}
	wg.Wait()
}

func TestRenderMarkdownFallback(t *testing.T) {
	// Whatever the renderer state, content must never be lost.
	content := "# Heading\n\nSome **bold** text."
	got := renderMarkdown(content)
	if got == "" {
		t.Error("renderMarkdown returned empty output")
	}
	if !strings.Contains(got, "Heading") {
		t.Errorf("rendered output lost the heading: %q", got)
	}
}
