// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides durable persistence of the conversation list.
//
// The whole list is one record, named by a key (DefaultKey is
// "chatHistoryList"), and every save replaces the record.
//
// # Key Types
//
//   - HistoryStore: Load/Save contract shared by all backends
//   - FileStore: JSON file written atomically, with foreign-write detection
//   - SQLiteStore: single-row key/value table (modernc.org/sqlite)
//   - MemoryStore: process-local store for tests and throwaway sessions
//   - Watcher: fsnotify watcher reporting foreign writes to the file
//
// # Usage
//
//	store, err := storage.Open(storage.Options{Backend: "file", Dir: dir})
//	list, err := store.Load()   // list is never nil
//	err = store.Save(list)
//
// # Record Format
//
//	[{"id": 1712345678901, "messages": [{"role": "user", "text": "hi"}]}]
package storage
