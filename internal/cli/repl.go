// Copyright (c) 2025 Matt Pollard
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/charmbracelet/glamour"
	"github.com/peterh/liner"
	"github.com/rs/zerolog"

	"github.com/mpollard/chatkeep/internal/cloud"
	"github.com/mpollard/chatkeep/internal/commands"
	"github.com/mpollard/chatkeep/internal/config"
	"github.com/mpollard/chatkeep/internal/discussion"
	"github.com/mpollard/chatkeep/internal/storage"
)

// =============================================================================
// MARKDOWN RENDERING
// =============================================================================

var markdownRenderer *glamour.TermRenderer

func init() {
	var err error
	markdownRenderer, err = glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		markdownRenderer = nil
	}
}

// renderMarkdown renders markdown content for terminal display. Returns the
// original content if the renderer is unavailable or fails.
func renderMarkdown(content string) string {
	if markdownRenderer == nil {
		return content
	}
	rendered, err := markdownRenderer.Render(content)
	if err != nil {
		return content
	}
	return rendered
}

// =============================================================================
// PROMPT LOOP
// =============================================================================

// REPL is the interactive chatkeep prompt.
type REPL struct {
	cfg    *config.Config
	client *cloud.Client
	ctx    *commands.Context
	parser *commands.Parser
	input  *PromptCLI
	log    zerolog.Logger

	// cancelMu guards cancel, which is set on the prompt goroutine and
	// taken by the signal handler goroutine.
	cancelMu sync.Mutex
	cancel   context.CancelFunc
}

// setCancel installs the cancel function for the in-flight remote request.
// A nil argument clears it.
func (r *REPL) setCancel(cancel context.CancelFunc) {
	r.cancelMu.Lock()
	r.cancel = cancel
	r.cancelMu.Unlock()
}

// takeCancel removes and returns the installed cancel function, or nil when
// no request is in flight. The taker owns the single call to it.
func (r *REPL) takeCancel() context.CancelFunc {
	r.cancelMu.Lock()
	cancel := r.cancel
	r.cancel = nil
	r.cancelMu.Unlock()
	return cancel
}

// New creates a prompt loop over the given discussion, store, and client.
func New(cfg *config.Config, client *cloud.Client, engine *discussion.Engine, store *storage.Store, log zerolog.Logger) *REPL {
	registry := commands.NewRegistry()
	ctx := commands.NewContext(cfg, engine, store)
	ctx.Registry = registry
	ctx.Log = log

	return &REPL{
		cfg:    cfg,
		client: client,
		ctx:    ctx,
		parser: commands.NewParser(registry),
		input:  NewPromptCLI(),
		log:    log,
	}
}

// Run runs the prompt loop until the user exits.
func (r *REPL) Run() error {
	defer r.input.Close()

	// Ctrl+C during a request cancels it instead of killing the program.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		for range sigChan {
			if cancel := r.takeCancel(); cancel != nil {
				cancel()
				fmt.Fprintln(os.Stderr, "\n"+warningStyle.Render("[Cancelled]"))
			}
		}
	}()

	r.printWelcome()

	for {
		input, err := r.input.ReadInput(promptStyle.Render("chatkeep> "))
		if err != nil {
			// Ctrl+C at the prompt or EOF (Ctrl+D) exits gracefully.
			if err != liner.ErrPromptAborted {
				fmt.Println()
			}
			return r.exit()
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if commands.IsCommand(input) {
			quit := r.runCommand(input)
			if quit {
				return nil
			}
			continue
		}

		r.ask(input)
	}
}

// exit saves the open discussion and prints a goodbye.
func (r *REPL) exit() error {
	code, err := r.ctx.SaveCurrent()
	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("[Error] ")+FormatError(err))
		return err
	}
	if code != "" {
		fmt.Println(infoStyle.Render(fmt.Sprintf("Saved discussion %s.", code)))
	}
	fmt.Println(infoStyle.Render("Goodbye!"))
	return nil
}

// =============================================================================
// COMMAND DISPATCH
// =============================================================================

// runCommand parses and executes a bang command. Returns true when the
// loop should exit.
func (r *REPL) runCommand(input string) bool {
	result := r.parser.Parse(input)
	if result.Command == nil {
		fmt.Fprintf(os.Stderr, "%s unknown command: %s (type !help for commands)\n",
			errorStyle.Render("[Error]"), result.CommandName)
		return false
	}
	if err := commands.ValidateArgs(result.Command, result.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%s %s\n", errorStyle.Render("[Error]"), err)
		return false
	}

	res, err := result.Command.Handler(r.ctx, result.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %s\n", errorStyle.Render("[Error]"), FormatError(err))
		return false
	}

	if res.Output != "" {
		if res.Markdown && r.useMarkdown() {
			fmt.Print(renderMarkdown(res.Output))
		} else {
			fmt.Println(res.Output)
		}
	}
	return res.Quit
}

// =============================================================================
// QUESTIONS
// =============================================================================

// ask sends a question to the open discussion and prints the reply.
func (r *REPL) ask(question string) {
	ctx, cancel := context.WithCancel(context.Background())
	r.setCancel(cancel)
	defer func() {
		r.setCancel(nil)
		cancel()
	}()

	reply, err := r.ctx.Engine.AddUserTurn(ctx, question)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %s\n", errorStyle.Render("[Error]"), FormatError(err))
		return
	}

	fmt.Println()
	if r.useMarkdown() {
		fmt.Print(renderMarkdown(reply))
	} else {
		fmt.Println(reply)
	}
	fmt.Println()
}

func (r *REPL) useMarkdown() bool {
	return r.cfg.Markdown && IsStdoutTTY()
}

// =============================================================================
// WELCOME BANNER
// =============================================================================

func (r *REPL) printWelcome() {
	fmt.Println()
	fmt.Println(welcomeStyle.Render("chatkeep"))
	fmt.Println(infoStyle.Render(strings.Repeat("─", 30)))
	fmt.Printf("%s %s\n",
		infoStyle.Render("Model:"),
		commandStyle.Render(r.ctx.Engine.Model()))
	fmt.Printf("%s %d tokens\n",
		infoStyle.Render("Limit:"),
		r.ctx.Engine.TokenLimit())

	if r.client.IsConfigured() {
		fmt.Printf("%s %s\n",
			infoStyle.Render("Key:"),
			commandStyle.Render("configured ("+r.client.KeyFingerprint()+")"))
	} else {
		fmt.Printf("%s %s\n",
			infoStyle.Render("Key:"),
			warningStyle.Render("not configured"))
	}

	fmt.Println()
	fmt.Println(infoStyle.Render("Type a question and press Enter. Commands: !help, !exit"))
	fmt.Println()
}
