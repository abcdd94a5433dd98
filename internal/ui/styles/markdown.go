// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
)

// Markdown renders assistant replies with glamour. Renderers are cached per
// wrap width; a failed render returns the text unchanged.
type Markdown struct {
	noColor bool

	mu        sync.Mutex
	renderers map[int]*glamour.TermRenderer
}

// NewMarkdown creates a renderer. noColor selects glamour's plain style.
func NewMarkdown(noColor bool) *Markdown {
	return &Markdown{noColor: noColor, renderers: make(map[int]*glamour.TermRenderer)}
}

// Render formats text for a column width. Surrounding blank lines added by
// glamour are trimmed.
func (m *Markdown) Render(text string, width int) string {
	if m == nil || strings.TrimSpace(text) == "" {
		return text
	}
	if width < 10 {
		width = 10
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	r, err := m.renderer(width)
	if err != nil {
		return text
	}
	out, err := r.Render(text)
	if err != nil {
		return text
	}
	return strings.Trim(out, "\n")
}

// renderer must be called with mu held.
func (m *Markdown) renderer(width int) (*glamour.TermRenderer, error) {
	if r, ok := m.renderers[width]; ok {
		return r, nil
	}

	style := glamour.WithAutoStyle()
	if m.noColor {
		style = glamour.WithStandardStyle("notty")
	}
	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width))
	if err != nil {
		return nil, err
	}
	m.renderers[width] = r
	return r, nil
}
