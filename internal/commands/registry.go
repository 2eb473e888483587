// Copyright (c) 2025 Matt Pollard
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/mpollard/chatkeep/internal/config"
	"github.com/mpollard/chatkeep/internal/discussion"
	"github.com/mpollard/chatkeep/internal/storage"
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

// Command represents a bang command that can be executed.
type Command struct {
	// Name is the primary command name (e.g., "!help")
	Name string

	// Aliases are alternative names (e.g., "!h", "!?")
	Aliases []string

	// Description is shown in help
	Description string

	// Usage shows argument syntax (e.g., "!model <name>")
	Usage string

	// Args defines the expected arguments
	Args []ArgDef

	// Handler executes the command
	Handler func(ctx *Context, args []string) (Result, error)
}

// ArgDef defines an argument for a command.
type ArgDef struct {
	// Name of the argument
	Name string

	// Required indicates if the argument must be provided
	Required bool

	// Description explains the argument
	Description string
}

// Result is what a handler hands back to the prompt loop.
type Result struct {
	// Output is printed to the user (may be empty)
	Output string

	// Markdown indicates Output should go through the markdown renderer
	Markdown bool

	// Quit signals the prompt loop to exit
	Quit bool
}

// =============================================================================
// COMMAND REGISTRY
// =============================================================================

// Registry holds all registered commands.
type Registry struct {
	commands map[string]*Command
	aliases  map[string]*Command
}

// NewRegistry creates a new command registry with all built-in commands.
func NewRegistry() *Registry {
	r := &Registry{
		commands: make(map[string]*Command),
		aliases:  make(map[string]*Command),
	}
	r.registerBuiltins()
	return r
}

// Register adds a command to the registry.
func (r *Registry) Register(cmd *Command) {
	r.commands[cmd.Name] = cmd
	for _, alias := range cmd.Aliases {
		r.aliases[alias] = cmd
	}
}

// Get retrieves a command by name or alias.
func (r *Registry) Get(name string) *Command {
	if cmd, ok := r.commands[name]; ok {
		return cmd
	}
	if cmd, ok := r.aliases[name]; ok {
		return cmd
	}
	return nil
}

// All returns all registered commands sorted by name.
func (r *Registry) All() []*Command {
	cmds := make([]*Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		cmds = append(cmds, cmd)
	}
	sort.Slice(cmds, func(i, j int) bool {
		return cmds[i].Name < cmds[j].Name
	})
	return cmds
}

// =============================================================================
// BUILT-IN COMMANDS
// =============================================================================

func (r *Registry) registerBuiltins() {
	r.Register(&Command{
		Name:        "!help",
		Aliases:     []string{"!?"},
		Description: "Show available commands",
		Handler:     HandleHelp,
	})

	r.Register(&Command{
		Name:        "!exit",
		Aliases:     []string{"!q"},
		Description: "Save the open discussion and exit",
		Handler:     HandleExit,
	})

	r.Register(&Command{
		Name:        "!new",
		Aliases:     []string{"!n"},
		Description: "Save the open discussion and start a new one",
		Handler:     HandleNew,
	})

	r.Register(&Command{
		Name:        "!open",
		Aliases:     []string{"!o"},
		Description: "Open a saved discussion, or list them",
		Usage:       "!open [code]",
		Args: []ArgDef{
			{Name: "code", Required: false, Description: "Discussion code to open"},
		},
		Handler: HandleOpen,
	})

	r.Register(&Command{
		Name:        "!close",
		Aliases:     []string{"!x"},
		Description: "Save and close the open discussion",
		Handler:     HandleClose,
	})

	r.Register(&Command{
		Name:        "!model",
		Aliases:     []string{"!m"},
		Description: "Show or switch the model",
		Usage:       "!model [name]",
		Args: []ArgDef{
			{Name: "name", Required: false, Description: "Model to switch to"},
		},
		Handler: HandleModel,
	})

	r.Register(&Command{
		Name:        "!title",
		Aliases:     []string{"!t"},
		Description: "Set the discussion title",
		Usage:       "!title <title>",
		Args: []ArgDef{
			{Name: "title", Required: true, Description: "New title"},
		},
		Handler: HandleTitle,
	})

	r.Register(&Command{
		Name:        "!delete",
		Aliases:     []string{"!d"},
		Description: "Delete a saved discussion",
		Usage:       "!delete <code>",
		Args: []ArgDef{
			{Name: "code", Required: true, Description: "Discussion code to delete"},
		},
		Handler: HandleDelete,
	})

	r.Register(&Command{
		Name:        "!delete_all",
		Aliases:     []string{"!da"},
		Description: "Delete every saved discussion",
		Handler:     HandleDeleteAll,
	})

	r.Register(&Command{
		Name:        "!history",
		Aliases:     []string{"!h"},
		Description: "Show the full discussion history",
		Handler:     HandleHistory,
	})

	r.Register(&Command{
		Name:        "!copy",
		Aliases:     []string{"!c"},
		Description: "Copy the last reply to the clipboard",
		Handler:     HandleCopy,
	})

	r.Register(&Command{
		Name:        "!search",
		Aliases:     []string{"!f"},
		Description: "Search saved discussions",
		Usage:       "!search <query>",
		Args: []ArgDef{
			{Name: "query", Required: true, Description: "Text to search for"},
		},
		Handler: HandleSearch,
	})

	r.Register(&Command{
		Name:        "!info",
		Aliases:     []string{"!i"},
		Description: "Show the open discussion's details",
		Handler:     HandleInfo,
	})

	r.Register(&Command{
		Name:        "!system",
		Aliases:     []string{"!sys"},
		Description: "Show, set, or clear the system prompt",
		Usage:       "!system [prompt|clear]",
		Args: []ArgDef{
			{Name: "prompt", Required: false, Description: "New system prompt, or 'clear'"},
		},
		Handler: HandleSystem,
	})

	r.Register(&Command{
		Name:        "!token_limit",
		Aliases:     []string{"!tl"},
		Description: "Show or set the token limit",
		Usage:       "!token_limit [limit]",
		Args: []ArgDef{
			{Name: "limit", Required: false, Description: "New token limit"},
		},
		Handler: HandleTokenLimit,
	})
}

// =============================================================================
// CONTEXT TYPE
// =============================================================================

// Context provides access to application state for command handlers.
type Context struct {
	// Config is the loaded application configuration
	Config *config.Config

	// Engine is the open discussion
	Engine *discussion.Engine

	// Store handles discussion persistence
	Store *storage.Store

	// Code is the open discussion's storage code, empty until first save
	Code string

	// Registry lets handlers enumerate commands (for help)
	Registry *Registry

	// Log is the command logger
	Log zerolog.Logger
}

// NewContext creates a command context.
func NewContext(cfg *config.Config, engine *discussion.Engine, store *storage.Store) *Context {
	return &Context{
		Config: cfg,
		Engine: engine,
		Store:  store,
		Log:    zerolog.Nop(),
	}
}
