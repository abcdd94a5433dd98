// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session owns the in-memory conversation list and keeps it in sync
// with the durable history record.
//
// # Key Types
//
//   - Manager: conversation list, active conversation, write-through saves
//
// # Usage
//
//	mgr := session.NewManager(store)
//	mgr.Initialize()
//
//	id, err := mgr.Append(model.RoleUser, "hello")
//	_ = mgr.AppendTo(id, model.RoleAssistant, reply)
//
// Switching conversations:
//
//	mgr.StartNew()
//	if !mgr.SwitchTo(id) {
//	    // unknown id, nothing changed
//	}
//
// # Persistence
//
// Each mutation saves the whole list before returning. A failed save is
// logged and the session continues in memory; the next successful save
// writes everything.
package session
