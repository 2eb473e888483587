// Copyright (c) 2025 Matt Pollard
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import "github.com/charmbracelet/lipgloss"

// =============================================================================
// COLORS
// =============================================================================

var (
	colorCyan      = lipgloss.AdaptiveColor{Light: "#0E7490", Dark: "#22D3EE"}
	colorPurple    = lipgloss.AdaptiveColor{Light: "#7E22CE", Dark: "#C084FC"}
	colorEmerald   = lipgloss.AdaptiveColor{Light: "#047857", Dark: "#34D399"}
	colorAmber     = lipgloss.AdaptiveColor{Light: "#B45309", Dark: "#FBBF24"}
	colorRose      = lipgloss.AdaptiveColor{Light: "#BE123C", Dark: "#FB7185"}
	colorSecondary = lipgloss.AdaptiveColor{Light: "#52525B", Dark: "#A1A1AA"}
)

// =============================================================================
// STYLES
// =============================================================================

var (
	// Prompt style
	promptStyle = lipgloss.NewStyle().
			Foreground(colorCyan).
			Bold(true)

	// Welcome banner style
	welcomeStyle = lipgloss.NewStyle().
			Foreground(colorPurple).
			Bold(true)

	// Info style
	infoStyle = lipgloss.NewStyle().
			Foreground(colorSecondary)

	// Command output style
	commandStyle = lipgloss.NewStyle().
			Foreground(colorEmerald)

	// Warning style
	warningStyle = lipgloss.NewStyle().
			Foreground(colorAmber)

	// Error style
	errorStyle = lipgloss.NewStyle().
			Foreground(colorRose)
)
