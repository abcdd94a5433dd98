// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// # Key Types
//
//   - Message: a role-tagged chat turn
//   - Conversation: an id plus an append-only message sequence
//   - List: every conversation, in creation order
//   - ConversationID: creation time in Unix milliseconds
//
// # Usage
//
//	var list model.List
//	conv := model.NewConversation(list.NextID(time.Now()))
//	conv.Append(model.NewUserMessage("hi"))
//	list = append(list, conv)
package model
