// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import "github.com/charmbracelet/lipgloss"

// =============================================================================
// ACCENT COLORS
// =============================================================================

// Blue - Brand color, user messages, focus
var Blue = lipgloss.AdaptiveColor{Light: "#1A73E8", Dark: "#8AB4F8"}

// Violet - Assistant messages
var Violet = lipgloss.AdaptiveColor{Light: "#7B4FD6", Dark: "#C58AF9"}

// Green - Success, idle state
var Green = lipgloss.AdaptiveColor{Light: "#188038", Dark: "#81C995"}

// Red - Errors
var Red = lipgloss.AdaptiveColor{Light: "#D93025", Dark: "#F28B82"}

// Yellow - Pending replies, warnings
var Yellow = lipgloss.AdaptiveColor{Light: "#B06000", Dark: "#FDD663"}

// =============================================================================
// SURFACE AND TEXT
// =============================================================================

// SurfaceDim - Sidebar and status bar background
var SurfaceDim = lipgloss.AdaptiveColor{Light: "#F1F3F4", Dark: "#202124"}

// Border - Separators and bubble borders
var Border = lipgloss.AdaptiveColor{Light: "#DADCE0", Dark: "#3C4043"}

// SelectionBg - Highlighted sidebar entry
var SelectionBg = lipgloss.AdaptiveColor{Light: "#D2E3FC", Dark: "#394457"}

// TextPrimary - Body text
var TextPrimary = lipgloss.AdaptiveColor{Light: "#202124", Dark: "#E8EAED"}

// TextMuted - Hints, labels
var TextMuted = lipgloss.AdaptiveColor{Light: "#5F6368", Dark: "#9AA0A6"}

// =============================================================================
// STATUS INDICATORS
// =============================================================================

// Status indicators carry a shape so state is readable without color.
const (
	IndicatorActive  = "[*]"
	IndicatorPending = "[~]"
	IndicatorError   = "[X]"
)
