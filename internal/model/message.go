// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

import (
	"strings"

	"github.com/danhackerowner-jpg/gemini-bot/internal/util"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
//
// Only RoleUser and RoleAssistant are produced by this client, but roles read
// back from disk are kept verbatim (older records used "bot").
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// IsUser reports whether the message was written by the human.
func (r Role) IsUser() bool {
	return r == RoleUser
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	if r == RoleUser {
		return "You"
	}
	return "Gemini"
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message is a single chat turn. Messages are never modified after being
// appended to a conversation.
type Message struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// NewUserMessage creates a user message.
func NewUserMessage(text string) Message {
	return Message{Role: RoleUser, Text: text}
}

// NewAssistantMessage creates an assistant message.
func NewAssistantMessage(text string) Message {
	return Message{Role: RoleAssistant, Text: text}
}

// IsBlank reports whether the text is empty after trimming whitespace.
func IsBlank(text string) bool {
	return strings.TrimSpace(text) == ""
}

// Preview returns a single-line, width-limited preview of the message text.
func (m Message) Preview(maxWidth int) string {
	line := strings.Join(strings.Fields(m.Text), " ")
	return util.TruncateWidth(line, maxWidth)
}
