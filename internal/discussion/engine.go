// Copyright (c) 2025 Matt Pollard
// SPDX-License-Identifier: AGPL-3.0-or-later

package discussion

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/mpollard/chatkeep/internal/cloud"
	"github.com/mpollard/chatkeep/internal/transcript"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrInvalidArgument is returned by setters when a value violates its
	// validation rule. State is left unchanged on rejection.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound is returned by Load when the document does not exist.
	ErrNotFound = errors.New("discussion not found")
)

// =============================================================================
// TOKEN ESTIMATION
// =============================================================================

// TokenEstimator approximates the token count of a turn sequence.
type TokenEstimator func(turns []transcript.Turn) int

// EstimateTokens is the default estimator: total content characters divided
// by four, floored. A crude stand-in for a real tokenizer, but the budget is
// a soft ceiling and the division keeps the behavior stable across models.
func EstimateTokens(turns []transcript.Turn) int {
	total := 0
	for _, turn := range turns {
		total += utf8.RuneCountInString(turn.Content)
	}
	return total / 4
}

// summarizingSystemContent temporarily replaces the system turn while the
// model is asked to produce a summary.
const summarizingSystemContent = "Summarizing the conversation..."

// =============================================================================
// ENGINE
// =============================================================================

// Engine drives one discussion: it maintains the complete and working
// transcripts, runs completion round-trips, enforces the token budget, and
// persists itself as a JSON document.
type Engine struct {
	complete *transcript.Transcript
	working  *transcript.Transcript

	completer  cloud.Completer
	model      string
	tokenLimit int
	estimate   TokenEstimator

	title      string
	createdAt  time.Time
	modifiedAt time.Time

	log zerolog.Logger
}

// Option configures an Engine at construction.
type Option func(*Engine)

// WithModel sets the initial model. Validated by New.
func WithModel(model string) Option {
	return func(e *Engine) { e.model = model }
}

// WithTokenLimit sets the initial token budget. Validated by New.
func WithTokenLimit(limit int) Option {
	return func(e *Engine) { e.tokenLimit = limit }
}

// WithEstimator swaps the token estimation heuristic.
func WithEstimator(estimate TokenEstimator) Option {
	return func(e *Engine) { e.estimate = estimate }
}

// WithLogger attaches a logger.
func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// New creates an empty engine talking through the given completer.
// Defaults: model gpt-3.5-turbo, token budget 4096.
func New(completer cloud.Completer, opts ...Option) (*Engine, error) {
	e := &Engine{
		complete:   transcript.New(),
		working:    transcript.New(),
		completer:  completer,
		model:      cloud.DefaultModel,
		tokenLimit: cloud.DefaultTokenLimit,
		estimate:   EstimateTokens,
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := cloud.ValidateModel(e.model); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	if e.tokenLimit <= 0 {
		return nil, fmt.Errorf("%w: token limit must be a positive integer, got %d",
			ErrInvalidArgument, e.tokenLimit)
	}
	return e, nil
}

// =============================================================================
// ACCESSORS AND SETTERS
// =============================================================================

// Model returns the current model identifier.
func (e *Engine) Model() string { return e.model }

// SetModel switches the model after checking the allow-list. On rejection
// the previous model stays in effect.
func (e *Engine) SetModel(model string) error {
	if err := cloud.ValidateModel(model); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	e.model = model
	return nil
}

// TokenLimit returns the token budget of the working transcript.
func (e *Engine) TokenLimit() int { return e.tokenLimit }

// SetTokenLimit updates the token budget. Must be a positive integer.
func (e *Engine) SetTokenLimit(limit int) error {
	if limit <= 0 {
		return fmt.Errorf("%w: token limit must be a positive integer, got %d",
			ErrInvalidArgument, limit)
	}
	e.tokenLimit = limit
	return nil
}

// Title returns the discussion title, empty when unset.
func (e *Engine) Title() string { return e.title }

// SetTitle sets the discussion title.
func (e *Engine) SetTitle(title string) { e.title = title }

// ClearTitle unsets the discussion title; the persisted document then omits
// the title key.
func (e *Engine) ClearTitle() { e.title = "" }

// CreatedAt returns the creation timestamp, zero when unset.
func (e *Engine) CreatedAt() time.Time { return e.createdAt }

// ModifiedAt returns the last-saved timestamp, zero when unset.
func (e *Engine) ModifiedAt() time.Time { return e.modifiedAt }

// SystemContent returns the system message shared by both transcripts.
func (e *Engine) SystemContent() (string, bool) {
	return e.working.SystemContent()
}

// SetSystemContent sets the system message on both transcripts, keeping
// them in sync.
func (e *Engine) SetSystemContent(content string) {
	e.working.SetSystemContent(content)
	e.complete.SetSystemContent(content)
}

// ClearSystemContent removes the system message from both transcripts.
func (e *Engine) ClearSystemContent() {
	e.working.ClearSystemContent()
	e.complete.ClearSystemContent()
}

// CompleteTurns returns a snapshot of the unabridged history.
func (e *Engine) CompleteTurns() []transcript.Turn { return e.complete.Turns() }

// WorkingTurns returns a snapshot of the transcript sent to the model.
func (e *Engine) WorkingTurns() []transcript.Turn { return e.working.Turns() }

// EstimatedTokens returns the estimated token size of the working transcript.
func (e *Engine) EstimatedTokens() int {
	return e.estimate(e.working.Turns())
}

// LastAssistantContent returns the most recent assistant reply from the
// complete history.
func (e *Engine) LastAssistantContent() (string, bool) {
	turns := e.complete.Turns()
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == transcript.RoleAssistant {
			return turns[i].Content, true
		}
	}
	return "", false
}

// Clear resets the engine to its empty state: both transcripts emptied,
// title and timestamps unset. Model and token budget are kept, matching
// the behavior of switching away from a discussion.
func (e *Engine) Clear() {
	e.complete.Clear()
	e.working.Clear()
	e.title = ""
	e.createdAt = time.Time{}
	e.modifiedAt = time.Time{}
}

// =============================================================================
// COMPLETION ROUND-TRIP
// =============================================================================

// AddUserTurn records a user question, obtains the assistant reply, and
// returns it. The question is appended to both transcripts before the
// remote call, so the complete record never loses a turn that was actually
// sent. On remote failure the classified error is returned and no assistant
// turn is appended; the discussion stays open and usable.
//
// After a successful exchange, if the working transcript exceeds the token
// budget it is summarized down to a two-turn distilled state.
func (e *Engine) AddUserTurn(ctx context.Context, question string) (string, error) {
	if err := e.complete.Append(transcript.RoleUser, question); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	if err := e.working.Append(transcript.RoleUser, question); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	reply, err := e.completer.Complete(ctx, e.model, e.working.Turns())
	if err != nil {
		return "", err
	}

	e.complete.Append(transcript.RoleAssistant, reply)
	e.working.Append(transcript.RoleAssistant, reply)

	if used := e.estimate(e.working.Turns()); used > e.tokenLimit {
		e.log.Debug().
			Int("estimated_tokens", used).
			Int("token_limit", e.tokenLimit).
			Msg("working transcript over budget, summarizing")
		e.summarize(ctx)
	}

	return reply, nil
}

// summarize compacts the working transcript to a two-turn distilled state:
// a user turn recording the summary request and an assistant turn holding
// the summary, under the preserved system message. The complete transcript
// is never touched.
//
// The summary request is built on a scratch transcript and the working
// transcript is swapped only once the replacement is fully assembled, so a
// mid-flight failure cannot leave it half-rewritten. One remote call is
// made; if it fails, the classified error text stands in as the summary, a
// degraded but bounded outcome.
func (e *Engine) summarize(ctx context.Context) {
	sysContent, hadSystem := e.working.SystemContent()
	budget := e.tokenLimit / 4

	request := transcript.New()
	for _, turn := range e.working.Turns() {
		if turn.Role == transcript.RoleSystem {
			continue
		}
		request.Append(turn.Role, turn.Content)
	}
	request.SetSystemContent(summarizingSystemContent)
	request.Append(transcript.RoleUser,
		fmt.Sprintf("Summarize the conversation less than %d tokens.", budget))

	summary, err := e.completer.Complete(ctx, e.model, request.Turns())
	if err != nil {
		e.log.Warn().Err(err).Msg("summarization failed, recording error text as summary")
		summary = err.Error()
	}

	fresh := transcript.New()
	if hadSystem {
		fresh.SetSystemContent(sysContent)
	}
	fresh.Append(transcript.RoleUser,
		fmt.Sprintf("Summarize the previous conversation less than %d tokens.", budget))
	fresh.Append(transcript.RoleAssistant, summary)

	e.working = fresh
}
