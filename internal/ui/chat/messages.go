// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/danhackerowner-jpg/gemini-bot/internal/controller"
	"github.com/danhackerowner-jpg/gemini-bot/internal/model"
)

// =============================================================================
// MESSAGES
// =============================================================================

// ReplyMsg is delivered when a send has been answered and the reply (or the
// error reply) has been recorded.
type ReplyMsg struct {
	SendID         string
	ConversationID model.ConversationID
	Reply          model.Message
}

// HistoryChangedMsg reports that another process rewrote the history.
type HistoryChangedMsg struct{}

// =============================================================================
// COMMAND CREATORS
// =============================================================================

// awaitReply waits for the provider off the UI goroutine.
func awaitReply(send *controller.Send) tea.Cmd {
	return func() tea.Msg {
		reply := send.Await(context.Background())
		return ReplyMsg{
			SendID:         send.ID,
			ConversationID: send.ConversationID,
			Reply:          reply,
		}
	}
}

// waitForChange blocks until the watcher signals. A closed or nil channel
// ends the subscription.
func waitForChange(changes <-chan struct{}) tea.Cmd {
	if changes == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-changes; !ok {
			return nil
		}
		return HistoryChangedMsg{}
	}
}
