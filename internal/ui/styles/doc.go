// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling for the gemini-bot TUI.

All colors use Lip Gloss AdaptiveColor for automatic light/dark terminal
detection. NewTheme inspects the terminal with termenv and honors NO_COLOR.

# Colors (colors.go)

	Blue   - brand, user messages
	Violet - assistant messages
	Yellow - pending reply indicator
	Red    - error replies

# Theme (theme.go)

	theme := styles.NewTheme(cfg.UI.NoColor)
	bubble := theme.UserBubble.Render(text)

# Markdown (markdown.go)

Markdown wraps glamour and caches one renderer per wrap width:

	md := styles.NewMarkdown(false)
	out := md.Render(reply, 60)
*/
package styles
