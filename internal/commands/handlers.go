// Copyright (c) 2025 Matt Pollard
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/atotto/clipboard"

	"github.com/mpollard/chatkeep/internal/cloud"
	"github.com/mpollard/chatkeep/internal/discussion"
	"github.com/mpollard/chatkeep/internal/storage"
	"github.com/mpollard/chatkeep/internal/transcript"
)

// minTokenLimit is the smallest accepted token limit. Below this the
// summarization budget (a quarter of the limit) is too small to hold a
// usable summary.
const minTokenLimit = 1000

// =============================================================================
// SAVE AND RESET HELPERS
// =============================================================================

// SaveCurrent persists the open discussion if it has any content, assigning
// a fresh code on first save. Returns the code, or "" when there was
// nothing to save.
func (c *Context) SaveCurrent() (string, error) {
	if c.Engine == nil || len(c.Engine.CompleteTurns()) == 0 {
		return "", nil
	}
	if c.Code == "" {
		code, err := c.Store.GenerateCode()
		if err != nil {
			return "", err
		}
		c.Code = code
	}
	if err := c.Engine.Dump(c.Store.Path(c.Code)); err != nil {
		return "", err
	}
	c.Log.Info().Str("code", c.Code).Msg("discussion saved")
	return c.Code, nil
}

// resetDiscussion clears the engine back to a fresh discussion, reseeding
// the configured system prompt.
func (c *Context) resetDiscussion() {
	c.Engine.Clear()
	c.Code = ""
	if c.Config != nil && c.Config.SystemPrompt != "" {
		c.Engine.SetSystemContent(c.Config.SystemPrompt)
	}
}

func validTitle(title string) bool {
	if title == "" {
		return false
	}
	for _, r := range title {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != ' ' && r != '-' && r != '_' {
			return false
		}
	}
	return true
}

func normalizeCode(arg string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(arg))
	if !storage.ValidCode(code) {
		return "", fmt.Errorf("%w: malformed discussion code %q", discussion.ErrInvalidArgument, arg)
	}
	return code, nil
}

// =============================================================================
// NAVIGATION HANDLERS
// =============================================================================

// HandleHelp lists the available commands.
func HandleHelp(ctx *Context, args []string) (Result, error) {
	reg := ctx.Registry
	if reg == nil {
		reg = NewRegistry()
	}

	var sb strings.Builder
	sb.WriteString("Commands:\n")
	for _, cmd := range reg.All() {
		name := cmd.Name
		if len(cmd.Aliases) > 0 {
			name += " (" + strings.Join(cmd.Aliases, ", ") + ")"
		}
		sb.WriteString(fmt.Sprintf("  %-28s %s\n", name, cmd.Description))
	}
	sb.WriteString("\nAnything not starting with ! is sent to the model.")
	return Result{Output: sb.String()}, nil
}

// HandleExit saves the open discussion and signals the loop to quit.
func HandleExit(ctx *Context, args []string) (Result, error) {
	code, err := ctx.SaveCurrent()
	if err != nil {
		return Result{}, err
	}
	out := "Bye."
	if code != "" {
		out = fmt.Sprintf("Saved discussion %s. Bye.", code)
	}
	return Result{Output: out, Quit: true}, nil
}

// =============================================================================
// DISCUSSION LIFECYCLE HANDLERS
// =============================================================================

// HandleNew saves the open discussion and starts a fresh one.
func HandleNew(ctx *Context, args []string) (Result, error) {
	code, err := ctx.SaveCurrent()
	if err != nil {
		return Result{}, err
	}
	ctx.resetDiscussion()

	out := "Started a new discussion."
	if code != "" {
		out = fmt.Sprintf("Saved discussion %s. %s", code, out)
	}
	return Result{Output: out}, nil
}

// HandleOpen opens a saved discussion by code, or lists the saved
// discussions when called without arguments.
func HandleOpen(ctx *Context, args []string) (Result, error) {
	if len(args) == 0 {
		metas, err := ctx.Store.List()
		if err != nil {
			return Result{}, err
		}
		return Result{Output: storage.FormatList(metas)}, nil
	}

	code, err := normalizeCode(args[0])
	if err != nil {
		return Result{}, err
	}

	// The current discussion is saved before it is replaced.
	if _, err := ctx.SaveCurrent(); err != nil {
		return Result{}, err
	}
	if err := ctx.Engine.Load(ctx.Store.Path(code)); err != nil {
		return Result{}, err
	}
	ctx.Code = code

	title := ctx.Engine.Title()
	if title == "" {
		title = "untitled"
	}
	return Result{Output: fmt.Sprintf("Opened discussion %s (%s, %d turns).",
		code, title, len(ctx.Engine.CompleteTurns()))}, nil
}

// HandleClose saves and closes the open discussion.
func HandleClose(ctx *Context, args []string) (Result, error) {
	code, err := ctx.SaveCurrent()
	if err != nil {
		return Result{}, err
	}
	ctx.resetDiscussion()

	if code == "" {
		return Result{Output: "Nothing to close."}, nil
	}
	return Result{Output: fmt.Sprintf("Saved and closed discussion %s.", code)}, nil
}

// HandleDelete deletes a saved discussion by code.
func HandleDelete(ctx *Context, args []string) (Result, error) {
	code, err := normalizeCode(args[0])
	if err != nil {
		return Result{}, err
	}
	if err := ctx.Store.Delete(code); err != nil {
		return Result{}, err
	}
	if code == ctx.Code {
		// The open discussion lost its file; the next save gets a new code.
		ctx.Code = ""
	}
	return Result{Output: fmt.Sprintf("Deleted discussion %s.", code)}, nil
}

// HandleDeleteAll deletes every saved discussion.
func HandleDeleteAll(ctx *Context, args []string) (Result, error) {
	if err := ctx.Store.DeleteAll(); err != nil {
		return Result{}, err
	}
	ctx.Code = ""
	return Result{Output: "Deleted all saved discussions."}, nil
}

// =============================================================================
// DISCUSSION SETTING HANDLERS
// =============================================================================

// HandleModel shows or switches the model.
func HandleModel(ctx *Context, args []string) (Result, error) {
	if len(args) == 0 {
		return Result{Output: fmt.Sprintf("Model: %s\nSupported: %s",
			ctx.Engine.Model(), strings.Join(cloud.SupportedModels(), ", "))}, nil
	}
	if err := ctx.Engine.SetModel(args[0]); err != nil {
		return Result{}, err
	}
	return Result{Output: fmt.Sprintf("Model set to %s.", args[0])}, nil
}

// HandleTitle sets the discussion title.
func HandleTitle(ctx *Context, args []string) (Result, error) {
	title := strings.Join(args, " ")
	if !validTitle(title) {
		return Result{}, fmt.Errorf("%w: title must be letters, digits, spaces, - or _",
			discussion.ErrInvalidArgument)
	}
	ctx.Engine.SetTitle(title)
	return Result{Output: fmt.Sprintf("Title set to %q.", title)}, nil
}

// HandleSystem shows, sets, or clears the system prompt.
func HandleSystem(ctx *Context, args []string) (Result, error) {
	if len(args) == 0 {
		content, ok := ctx.Engine.SystemContent()
		if !ok {
			return Result{Output: "No system prompt set."}, nil
		}
		return Result{Output: "System prompt: " + content}, nil
	}
	if len(args) == 1 && strings.EqualFold(args[0], "clear") {
		ctx.Engine.ClearSystemContent()
		return Result{Output: "System prompt cleared."}, nil
	}
	prompt := strings.Join(args, " ")
	ctx.Engine.SetSystemContent(prompt)
	return Result{Output: "System prompt set."}, nil
}

// HandleTokenLimit shows or sets the token limit.
func HandleTokenLimit(ctx *Context, args []string) (Result, error) {
	if len(args) == 0 {
		return Result{Output: fmt.Sprintf("Token limit: %d (estimated usage: %d)",
			ctx.Engine.TokenLimit(), ctx.Engine.EstimatedTokens())}, nil
	}
	limit, err := strconv.Atoi(args[0])
	if err != nil {
		return Result{}, fmt.Errorf("%w: token limit must be a number, got %q",
			discussion.ErrInvalidArgument, args[0])
	}
	if limit < minTokenLimit {
		return Result{}, fmt.Errorf("%w: token limit must be at least %d",
			discussion.ErrInvalidArgument, minTokenLimit)
	}
	if err := ctx.Engine.SetTokenLimit(limit); err != nil {
		return Result{}, err
	}
	return Result{Output: fmt.Sprintf("Token limit set to %d.", limit)}, nil
}

// =============================================================================
// INSPECTION HANDLERS
// =============================================================================

// HandleInfo shows the open discussion's details.
func HandleInfo(ctx *Context, args []string) (Result, error) {
	e := ctx.Engine

	code := ctx.Code
	if code == "" {
		code = "(unsaved)"
	}
	title := e.Title()
	if title == "" {
		title = "(untitled)"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Code:            %s\n", code)
	fmt.Fprintf(&sb, "Title:           %s\n", title)
	fmt.Fprintf(&sb, "Model:           %s\n", e.Model())
	fmt.Fprintf(&sb, "Token limit:     %d\n", e.TokenLimit())
	fmt.Fprintf(&sb, "Estimated usage: %d\n", e.EstimatedTokens())
	fmt.Fprintf(&sb, "Turns:           %d complete, %d working", len(e.CompleteTurns()), len(e.WorkingTurns()))
	if !e.CreatedAt().IsZero() {
		fmt.Fprintf(&sb, "\nCreated:         %s", e.CreatedAt().Format("2006-01-02 15:04"))
	}
	return Result{Output: sb.String()}, nil
}

// HandleHistory shows the full discussion history.
func HandleHistory(ctx *Context, args []string) (Result, error) {
	turns := ctx.Engine.CompleteTurns()
	if len(turns) == 0 {
		return Result{Output: "No history yet."}, nil
	}

	var sb strings.Builder
	for _, turn := range turns {
		switch turn.Role {
		case transcript.RoleSystem:
			sb.WriteString("**System:** ")
		case transcript.RoleUser:
			sb.WriteString("**You:** ")
		case transcript.RoleAssistant:
			sb.WriteString("**Assistant:** ")
		}
		sb.WriteString(turn.Content)
		sb.WriteString("\n\n")
	}
	return Result{Output: strings.TrimRight(sb.String(), "\n"), Markdown: true}, nil
}

// HandleCopy copies the last assistant reply to the clipboard.
func HandleCopy(ctx *Context, args []string) (Result, error) {
	content, ok := ctx.Engine.LastAssistantContent()
	if !ok {
		return Result{Output: "Nothing to copy yet."}, nil
	}
	if err := clipboard.WriteAll(content); err != nil {
		return Result{}, fmt.Errorf("failed to copy to clipboard: %w", err)
	}
	return Result{Output: "Copied last reply to the clipboard."}, nil
}

// HandleSearch searches saved discussions by content.
func HandleSearch(ctx *Context, args []string) (Result, error) {
	query := strings.Join(args, " ")
	metas, err := ctx.Store.SearchTurns(query)
	if err != nil {
		return Result{}, err
	}
	if len(metas) == 0 {
		return Result{Output: fmt.Sprintf("No discussions match %q.", query)}, nil
	}
	return Result{Output: storage.FormatList(metas)}, nil
}
