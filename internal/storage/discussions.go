// Copyright (c) 2025 Matt Pollard
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mpollard/chatkeep/internal/transcript"
	"github.com/mpollard/chatkeep/internal/util"
)

// =============================================================================
// CODES
// =============================================================================

// CodeLength is the length of a discussion code.
const CodeLength = 10

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// ValidCode reports whether s is a well-formed discussion code.
func ValidCode(s string) bool {
	if len(s) != CodeLength {
		return false
	}
	for _, r := range s {
		if !strings.ContainsRune(codeAlphabet, r) {
			return false
		}
	}
	return true
}

func randomCode() (string, error) {
	alphabetLen := big.NewInt(int64(len(codeAlphabet)))
	buf := make([]byte, CodeLength)
	for i := range buf {
		// rand.Int draws uniformly; reducing a raw byte mod 36 would skew
		// toward the start of the alphabet.
		n, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", fmt.Errorf("failed to generate discussion code: %w", err)
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return string(buf), nil
}

// =============================================================================
// STORE
// =============================================================================

// Meta is the lightweight listing view of a saved discussion.
type Meta struct {
	Code       string
	Title      string
	Model      string
	CreatedAt  time.Time
	ModifiedAt time.Time
	TurnCount  int
	Preview    string // first user turn, truncated
}

// Store manages the discussion files under a single directory.
type Store struct {
	// BaseDir is the directory holding <code>.json files.
	// Default: ~/.chatkeep/discussions/
	BaseDir string
}

// NewStore creates a store rooted at the default directory.
func NewStore() (*Store, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return NewStoreWithDir(filepath.Join(homeDir, ".chatkeep", "discussions"))
}

// NewStoreWithDir creates a store rooted at a custom directory.
func NewStoreWithDir(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, err
	}
	return &Store{BaseDir: baseDir}, nil
}

// Path returns the file path for a discussion code.
func (s *Store) Path(code string) string {
	return filepath.Join(s.BaseDir, code+".json")
}

// Exists reports whether a discussion with the given code is saved.
func (s *Store) Exists(code string) bool {
	_, err := os.Stat(s.Path(code))
	return err == nil
}

// GenerateCode returns a fresh code not used by any file in the store.
func (s *Store) GenerateCode() (string, error) {
	for attempt := 0; attempt < 100; attempt++ {
		code, err := randomCode()
		if err != nil {
			return "", err
		}
		if !s.Exists(code) {
			return code, nil
		}
	}
	return "", fmt.Errorf("failed to generate a unique discussion code")
}

// =============================================================================
// LIST OPERATIONS
// =============================================================================

// discussionDoc is the slice of the discussion document the store needs for
// listing. Key names follow the storage format.
type discussionDoc struct {
	Title           string            `json:"title"`
	CreatedDate     string            `json:"created_date"`
	ModifiedDate    string            `json:"modified_date"`
	CompleteMessage []transcript.Turn `json:"complete_message"`
	Model           string            `json:"model"`
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

func parseTimestamp(s string) time.Time {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts
		}
	}
	return time.Time{}
}

// List returns metadata for all saved discussions, most recently modified
// first. Files that fail to parse are skipped.
func (s *Store) List() ([]Meta, error) {
	entries, err := os.ReadDir(s.BaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Meta{}, nil
		}
		return nil, err
	}

	var metas []Meta
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		code := strings.TrimSuffix(entry.Name(), ".json")
		if !ValidCode(code) {
			continue
		}

		meta, err := s.readMeta(code)
		if err != nil {
			continue // skip corrupted files
		}
		metas = append(metas, meta)
	}

	sort.Slice(metas, func(i, j int) bool {
		return metas[i].ModifiedAt.After(metas[j].ModifiedAt)
	})
	return metas, nil
}

func (s *Store) readMeta(code string) (Meta, error) {
	data, err := os.ReadFile(s.Path(code))
	if err != nil {
		return Meta{}, err
	}

	var doc discussionDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return Meta{}, err
	}

	preview := ""
	for _, turn := range doc.CompleteMessage {
		if turn.Role == transcript.RoleUser && turn.Content != "" {
			preview = util.Truncate(util.Flatten(turn.Content), 80)
			break
		}
	}

	return Meta{
		Code:       code,
		Title:      doc.Title,
		Model:      doc.Model,
		CreatedAt:  parseTimestamp(doc.CreatedDate),
		ModifiedAt: parseTimestamp(doc.ModifiedDate),
		TurnCount:  len(doc.CompleteMessage),
		Preview:    preview,
	}, nil
}

// =============================================================================
// SEARCH OPERATIONS
// =============================================================================

// Search returns discussions whose title or preview contains the query,
// case-insensitively.
func (s *Store) Search(query string) ([]Meta, error) {
	all, err := s.List()
	if err != nil {
		return nil, err
	}

	query = strings.ToLower(query)
	var results []Meta
	for _, meta := range all {
		if strings.Contains(strings.ToLower(meta.Title), query) ||
			strings.Contains(strings.ToLower(meta.Preview), query) {
			results = append(results, meta)
		}
	}
	return results, nil
}

// SearchTurns returns discussions where any turn's content contains the
// query, case-insensitively. An empty query matches everything.
func (s *Store) SearchTurns(query string) ([]Meta, error) {
	if query == "" {
		return s.List()
	}

	all, err := s.List()
	if err != nil {
		return nil, err
	}

	query = strings.ToLower(query)
	var results []Meta
	for _, meta := range all {
		data, err := os.ReadFile(s.Path(meta.Code))
		if err != nil {
			continue
		}
		var doc discussionDoc
		if err := json.Unmarshal(data, &doc); err != nil {
			continue
		}
		for _, turn := range doc.CompleteMessage {
			if strings.Contains(strings.ToLower(turn.Content), query) {
				results = append(results, meta)
				break
			}
		}
	}
	return results, nil
}

// =============================================================================
// DELETE OPERATIONS
// =============================================================================

// Delete removes the discussion with the given code.
func (s *Store) Delete(code string) error {
	if err := os.Remove(s.Path(code)); err != nil {
		if os.IsNotExist(err) {
			return ErrDiscussionNotFound
		}
		return err
	}
	return nil
}

// DeleteAll removes every saved discussion.
func (s *Store) DeleteAll() error {
	entries, err := os.ReadDir(s.BaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".json") {
			os.Remove(filepath.Join(s.BaseDir, entry.Name()))
		}
	}
	return nil
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrDiscussionNotFound is returned when a discussion doesn't exist.
// Use errors.Is(err, ErrDiscussionNotFound) to check for this error.
var ErrDiscussionNotFound = &DiscussionError{Message: "discussion not found"}

// DiscussionError represents a storage-related error.
type DiscussionError struct {
	Message string
}

// Error implements the error interface.
func (e *DiscussionError) Error() string {
	return e.Message
}

// Is implements errors.Is support for comparing discussion errors.
func (e *DiscussionError) Is(target error) bool {
	t, ok := target.(*DiscussionError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}

// =============================================================================
// LIST FORMATTING
// =============================================================================

// FormatList renders discussion metadata as a plain table for display.
func FormatList(metas []Meta) string {
	if len(metas) == 0 {
		return "No saved discussions."
	}

	var sb strings.Builder
	sb.WriteString(formatPadded("Code", 12) + formatPadded("Modified", 18) +
		formatPadded("Turns", 7) + formatPadded("Title", 22) + "Preview\n")
	sb.WriteString(strings.Repeat("-", 88) + "\n")

	for _, m := range metas {
		modified := ""
		if !m.ModifiedAt.IsZero() {
			modified = m.ModifiedAt.Format("2006-01-02 15:04")
		}
		sb.WriteString(formatPadded(m.Code, 12) +
			formatPadded(modified, 18) +
			formatPadded(fmt.Sprintf("%d", m.TurnCount), 7) +
			formatPadded(util.Truncate(m.Title, 20), 22) +
			util.Truncate(m.Preview, 30) + "\n")
	}
	return sb.String()
}

func formatPadded(s string, width int) string {
	runes := []rune(s)
	if len(runes) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(runes))
}
