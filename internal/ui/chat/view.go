// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/danhackerowner-jpg/gemini-bot/internal/controller"
	"github.com/danhackerowner-jpg/gemini-bot/internal/model"
	"github.com/danhackerowner-jpg/gemini-bot/internal/ui/styles"
	"github.com/danhackerowner-jpg/gemini-bot/internal/util"
)

// View renders the chat screen.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top,
		m.renderSidebar(),
		m.theme.Main.Render(m.viewport.View()),
	)

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		body,
		m.theme.InputContainer.Width(m.width).Render(m.input.View()),
		m.help.View(m.keys),
	)
}

// =============================================================================
// HEADER
// =============================================================================

func (m Model) renderHeader() string {
	var status string
	switch m.ctrl.State() {
	case controller.AwaitingReply:
		status = m.theme.StatusPending.Render(fmt.Sprintf("%s %s (%d)",
			m.spinner.View(), m.ctrl.State(), m.ctrl.Pending()))
	default:
		status = m.theme.StatusIdle.Render(styles.IndicatorActive + " " + m.ctrl.State().String())
	}

	left := m.theme.Header.Render("Gemini Bot")
	right := status
	if m.notice != "" {
		right = m.theme.RoleLabel.Render(m.notice) + "  " + status
	}

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		return util.TruncateWidth(left+" "+right, m.width)
	}
	return left + strings.Repeat(" ", gap) + right
}

// =============================================================================
// SIDEBAR
// =============================================================================

func (m Model) renderSidebar() string {
	sessions := m.ctrl.Session()
	activeID, hasActive := sessions.ActiveID()
	inner := max(1, m.sidebarWidth-3) // border + padding

	var b strings.Builder
	b.WriteString(m.theme.SidebarTitle.Render("Conversations"))
	b.WriteString("\n")

	list := sessions.Conversations()
	if len(list) == 0 {
		b.WriteString(m.theme.RoleLabel.Render("none yet"))
	}
	for i, conv := range list {
		if i > 0 {
			b.WriteString("\n")
		}
		label := conv.ID.Label()
		if m.awaiting[conv.ID] > 0 {
			label += " " + styles.IndicatorPending
		}
		label = util.PadWidth(util.TruncateWidth(label, inner), inner)

		if hasActive && conv.ID == activeID {
			b.WriteString(m.theme.SidebarSelected.Render(label))
		} else {
			b.WriteString(m.theme.SidebarItem.Render(label))
		}
	}

	return m.theme.Sidebar.
		Width(m.sidebarWidth - 1).
		Height(m.viewport.Height).
		Render(b.String())
}

// =============================================================================
// CONVERSATION
// =============================================================================

// renderConversation renders the active conversation for a given width.
func (m Model) renderConversation(width int) string {
	sessions := m.ctrl.Session()
	messages := sessions.ActiveMessages()

	if len(messages) == 0 {
		return m.theme.EmptyHint.Render("Say hello to start a conversation.")
	}

	blocks := make([]string, 0, len(messages)+1)
	for _, msg := range messages {
		blocks = append(blocks, m.renderMessage(msg, width))
	}
	if m.Awaiting() > 0 {
		blocks = append(blocks, m.theme.RoleLabel.Render(m.spinner.View()+" Gemini is thinking..."))
	}
	return strings.Join(blocks, "\n")
}

// renderMessage renders one bubble: user messages on the right, assistant
// messages on the left.
func (m Model) renderMessage(msg model.Message, width int) string {
	bubbleWidth := styles.BubbleWidth(width)
	contentWidth := max(1, bubbleWidth-4) // border + padding

	style := m.theme.AssistantBubble
	text := msg.Text
	switch {
	case msg.Role.IsUser():
		style = m.theme.UserBubble
	case msg.Text == controller.ErrorReply:
		style = m.theme.ErrorBubble
	case m.md != nil:
		text = m.md.Render(msg.Text, contentWidth)
	}

	textWidth := 0
	for _, line := range strings.Split(text, "\n") {
		textWidth = max(textWidth, lipgloss.Width(line))
	}
	bubble := style.Width(min(textWidth, contentWidth) + 2).Render(text)
	label := m.theme.RoleLabel.Render(msg.Role.DisplayName())

	pos := lipgloss.Left
	if msg.Role.IsUser() {
		pos = lipgloss.Right
	}
	return lipgloss.PlaceHorizontal(width, pos, lipgloss.JoinVertical(pos, label, bubble))
}
