// Copyright (c) 2025 Matt Pollard
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"github.com/mpollard/chatkeep/internal/transcript"
)

// =============================================================================
// MODELS
// =============================================================================

// DefaultModel is used when a discussion does not name a model.
const DefaultModel = "gpt-3.5-turbo"

// DefaultTokenLimit is the token budget applied when a persisted discussion
// does not carry one.
const DefaultTokenLimit = 4096

// DefaultTimeout bounds a single completion request. A hung remote call
// surfaces as ErrTimeout instead of blocking the session forever.
const DefaultTimeout = 120 * time.Second

// supportedModels is the fixed allow-list of model identifiers. Assigning
// any other model fails before a network call is attempted.
var supportedModels = map[string]bool{
	"gpt-3.5-turbo": true,
	"gpt-4":         true,
	"gpt-4-turbo":   true,
	"gpt-4o":        true,
	"gpt-4o-mini":   true,
}

// SupportedModels returns the model allow-list in sorted order, for help
// text and error messages.
func SupportedModels() []string {
	models := make([]string, 0, len(supportedModels))
	for m := range supportedModels {
		models = append(models, m)
	}
	sort.Strings(models)
	return models
}

// ValidateModel checks model against the allow-list.
func ValidateModel(model string) error {
	if !supportedModels[model] {
		return fmt.Errorf("%w: %q (supported: %s)", ErrUnknownModel, model,
			strings.Join(SupportedModels(), ", "))
	}
	return nil
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNotConfigured indicates the API key is not set.
	ErrNotConfigured = errors.New("API key not configured")

	// ErrUnknownModel indicates the model is not in the allow-list.
	ErrUnknownModel = errors.New("unknown model")

	// ErrAuthFailed indicates the provider rejected the credential.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrProvider indicates a provider-side failure (bad request, rate
	// limit, overloaded, server error).
	ErrProvider = errors.New("provider error")

	// ErrTimeout indicates the request deadline elapsed before a reply.
	ErrTimeout = errors.New("request timed out")

	// ErrUnexpected covers everything the other kinds do not.
	ErrUnexpected = errors.New("unexpected error")
)

// =============================================================================
// COMPLETER CONTRACT
// =============================================================================

// Completer is the contract the conversation engine consumes: the full turn
// list in, one assistant reply out. Tests substitute a stub.
type Completer interface {
	Complete(ctx context.Context, model string, turns []transcript.Turn) (string, error)
}

// =============================================================================
// CLIENT
// =============================================================================

// Client is a Completer backed by the OpenAI chat completions API.
type Client struct {
	api         *openai.Client
	configured  bool
	fingerprint string
	timeout     time.Duration
	log         zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout overrides the per-request deadline. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithBaseURL points the client at a different API endpoint. Used by tests
// and proxy setups.
func WithBaseURL(apiKey, baseURL string) Option {
	return func(c *Client) {
		cfg := openai.DefaultConfig(apiKey)
		cfg.BaseURL = baseURL
		c.api = openai.NewClientWithConfig(cfg)
	}
}

// WithLogger attaches a logger. Requests are logged by outcome and duration
// only; the credential never appears in log output.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// NewClient creates a client owning the given API key.
func NewClient(apiKey string, opts ...Option) *Client {
	apiKey = strings.TrimSpace(apiKey)
	c := &Client{
		api:         openai.NewClient(apiKey),
		configured:  apiKey != "",
		fingerprint: keyFingerprint(apiKey),
		timeout:     DefaultTimeout,
		log:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsConfigured reports whether an API key was supplied.
func (c *Client) IsConfigured() bool {
	return c.configured
}

// KeyFingerprint returns a short hash of the API key, safe for logs and
// status output.
func (c *Client) KeyFingerprint() string {
	return c.fingerprint
}

func keyFingerprint(apiKey string) string {
	if apiKey == "" {
		return "none"
	}
	h := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(h[:4])
}

// Complete sends the ordered turns to the given model and returns the
// assistant reply content. It performs exactly one request; a failure is
// returned classified, never retried.
func (c *Client) Complete(ctx context.Context, model string, turns []transcript.Turn) (string, error) {
	if !c.configured {
		return "", ErrNotConfigured
	}
	if err := ValidateModel(model); err != nil {
		return "", err
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(turns))
	for _, turn := range turns {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    string(turn.Role),
			Content: turn.Content,
		})
	}

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
	})
	duration := time.Since(start)

	if err != nil {
		kind := classify(err)
		c.log.Warn().
			Str("model", model).
			Dur("duration", duration).
			Str("kind", kind.Error()).
			Err(err).
			Msg("completion failed")
		return "", fmt.Errorf("%w: %v", kind, err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: response contained no choices", ErrUnexpected)
	}

	c.log.Debug().
		Str("model", model).
		Dur("duration", duration).
		Int("turns", len(turns)).
		Int("completion_tokens", resp.Usage.CompletionTokens).
		Msg("completion ok")

	return resp.Choices[0].Message.Content, nil
}

// classify maps a transport or API error onto one of the failure sentinels.
func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == 401 {
			return ErrAuthFailed
		}
		return ErrProvider
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode == 401 {
			return ErrAuthFailed
		}
		return ErrProvider
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}

	return ErrUnexpected
}
