// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

import (
	"strconv"
	"time"
)

// =============================================================================
// CONVERSATION ID
// =============================================================================

// ConversationID identifies a conversation by its creation time in Unix
// milliseconds. It is serialized as a JSON number.
type ConversationID int64

// Time returns the creation time encoded in the id.
func (id ConversationID) Time() time.Time {
	return time.UnixMilli(int64(id))
}

// String returns the decimal form of the id.
func (id ConversationID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// Label returns the sidebar label for the conversation, e.g. "Chat 15:04:05".
func (id ConversationID) Label() string {
	return "Chat " + id.Time().Local().Format("15:04:05")
}

// ParseConversationID parses the decimal form produced by String.
func ParseConversationID(s string) (ConversationID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return ConversationID(n), nil
}

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation is one ordered sequence of chat turns.
type Conversation struct {
	ID       ConversationID `json:"id"`
	Messages []Message      `json:"messages"`
}

// NewConversation creates an empty conversation with the given id.
func NewConversation(id ConversationID) Conversation {
	return Conversation{ID: id, Messages: []Message{}}
}

// Append adds a message to the end of the conversation.
func (c *Conversation) Append(msg Message) {
	c.Messages = append(c.Messages, msg)
}

// MessageCount returns the number of messages.
func (c Conversation) MessageCount() int {
	return len(c.Messages)
}

// IsEmpty returns true if there are no messages.
func (c Conversation) IsEmpty() bool {
	return len(c.Messages) == 0
}

// LastMessage returns the most recent message, or false if empty.
func (c Conversation) LastMessage() (Message, bool) {
	if len(c.Messages) == 0 {
		return Message{}, false
	}
	return c.Messages[len(c.Messages)-1], true
}

// FirstUserMessage returns the first message written by the user.
func (c Conversation) FirstUserMessage() (Message, bool) {
	for _, msg := range c.Messages {
		if msg.Role.IsUser() {
			return msg, true
		}
	}
	return Message{}, false
}

// Clone returns a deep copy; the copy never shares its message slice.
func (c Conversation) Clone() Conversation {
	msgs := make([]Message, len(c.Messages))
	copy(msgs, c.Messages)
	return Conversation{ID: c.ID, Messages: msgs}
}

// =============================================================================
// CONVERSATION LIST
// =============================================================================

// List holds all conversations in creation order.
type List []Conversation

// IndexOf returns the position of the conversation with the given id, or -1.
func (l List) IndexOf(id ConversationID) int {
	for i := range l {
		if l[i].ID == id {
			return i
		}
	}
	return -1
}

// Last returns the most recently created conversation.
func (l List) Last() (Conversation, bool) {
	if len(l) == 0 {
		return Conversation{}, false
	}
	return l[len(l)-1], true
}

// MaxID returns the largest id in the list, or 0 for an empty list.
func (l List) MaxID() ConversationID {
	var max ConversationID
	for _, c := range l {
		if c.ID > max {
			max = c.ID
		}
	}
	return max
}

// Clone returns a deep copy of the list.
func (l List) Clone() List {
	out := make(List, len(l))
	for i, c := range l {
		out[i] = c.Clone()
	}
	return out
}

// NextID derives a fresh conversation id from now. Ids come from the clock in
// milliseconds but never repeat or go backwards relative to the list.
func (l List) NextID(now time.Time) ConversationID {
	id := ConversationID(now.UnixMilli())
	if max := l.MaxID(); id <= max {
		id = max + 1
	}
	return id
}
