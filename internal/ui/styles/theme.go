// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds the styles used by the chat screen.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	ColorProfile termenv.Profile

	// ==========================================================================
	// LAYOUT
	// ==========================================================================

	Header  lipgloss.Style
	Sidebar lipgloss.Style
	Main    lipgloss.Style

	// ==========================================================================
	// SIDEBAR
	// ==========================================================================

	SidebarTitle    lipgloss.Style
	SidebarItem     lipgloss.Style
	SidebarSelected lipgloss.Style

	// ==========================================================================
	// MESSAGES
	// ==========================================================================

	UserBubble      lipgloss.Style
	AssistantBubble lipgloss.Style
	ErrorBubble     lipgloss.Style
	RoleLabel       lipgloss.Style
	EmptyHint       lipgloss.Style

	// ==========================================================================
	// INPUT AND STATUS
	// ==========================================================================

	InputContainer lipgloss.Style
	InputPrompt    lipgloss.Style
	StatusBar      lipgloss.Style
	StatusIdle     lipgloss.Style
	StatusPending  lipgloss.Style
	StatusError    lipgloss.Style
	HelpKey        lipgloss.Style
	HelpDesc       lipgloss.Style
}

// NewTheme detects the terminal and builds the theme. NO_COLOR or noColor
// forces the ASCII profile.
func NewTheme(noColor bool) *Theme {
	profile := termenv.ColorProfile()
	if noColor || os.Getenv("NO_COLOR") != "" {
		profile = termenv.Ascii
		lipgloss.SetColorProfile(termenv.Ascii)
	}

	t := &Theme{
		IsDark:       termenv.HasDarkBackground(),
		ColorProfile: profile,
	}
	t.initStyles()
	return t
}

// initStyles initializes all the lip gloss styles.
func (t *Theme) initStyles() {
	// Layout
	t.Header = lipgloss.NewStyle().
		Bold(true).
		Foreground(Blue).
		Padding(0, 1)

	t.Sidebar = lipgloss.NewStyle().
		Background(SurfaceDim).
		BorderStyle(lipgloss.NormalBorder()).
		BorderRight(true).
		BorderForeground(Border).
		Padding(0, 1)

	t.Main = lipgloss.NewStyle().Padding(0, 1)

	// Sidebar
	t.SidebarTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(TextMuted).
		MarginBottom(1)

	t.SidebarItem = lipgloss.NewStyle().
		Foreground(TextPrimary)

	t.SidebarSelected = lipgloss.NewStyle().
		Bold(true).
		Foreground(Blue).
		Background(SelectionBg)

	// Messages: the user's on the right, the assistant's on the left
	t.UserBubble = lipgloss.NewStyle().
		Foreground(TextPrimary).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Blue).
		Padding(0, 1)

	t.AssistantBubble = lipgloss.NewStyle().
		Foreground(TextPrimary).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Violet).
		Padding(0, 1)

	t.ErrorBubble = t.AssistantBubble.
		BorderForeground(Red).
		Foreground(Red)

	t.RoleLabel = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)

	t.EmptyHint = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true).
		Padding(1, 2)

	// Input and status
	t.InputContainer = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(true).
		BorderForeground(Border)

	t.InputPrompt = lipgloss.NewStyle().
		Foreground(Blue).
		Bold(true)

	t.StatusBar = lipgloss.NewStyle().
		Background(SurfaceDim).
		Foreground(TextMuted).
		Padding(0, 1)

	t.StatusIdle = lipgloss.NewStyle().Foreground(Green)
	t.StatusPending = lipgloss.NewStyle().Foreground(Yellow).Bold(true)
	t.StatusError = lipgloss.NewStyle().Foreground(Red).Bold(true)

	t.HelpKey = lipgloss.NewStyle().Foreground(Blue)
	t.HelpDesc = lipgloss.NewStyle().Foreground(TextMuted)
}

// BubbleWidth returns the maximum bubble width for a message area of the
// given width.
func BubbleWidth(areaWidth int) int {
	w := areaWidth * 3 / 4
	if w < 20 {
		w = areaWidth
	}
	return w
}
