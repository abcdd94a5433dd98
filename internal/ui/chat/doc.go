// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat provides the chat screen for the gemini-bot TUI.

The screen is a Bubble Tea model over a controller.Controller. The
conversation list sits on the left with "Chat HH:MM:SS" labels, the active
conversation on the right (user messages right-aligned, replies
left-aligned and rendered as markdown), and the input line at the bottom.

# Sending

Enter records the message synchronously through Controller.Begin, so it is
visible and persisted at once, then waits for the reply in a tea.Cmd. Several
sends may be in flight; each reply lands in the conversation it was sent from
even if the user has switched away.

# Keys

	enter        send
	ctrl+n       new conversation
	ctrl+j/k     next / previous conversation
	pgup/pgdn    scroll
	esc, ctrl+c  quit

# External changes

When Options.Changes is set (see storage.Watcher), a signal reloads the
history from the store and shows a notice in the header.
*/
package chat
