// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides durable persistence of the conversation list.
package storage

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/danhackerowner-jpg/gemini-bot/internal/model"
)

// DefaultKey is the name of the single record holding the conversation list.
const DefaultKey = "chatHistoryList"

// =============================================================================
// HISTORY STORE CONTRACT
// =============================================================================

// HistoryStore persists the whole conversation list as one record.
//
// Load always returns a usable list, even alongside an error: a missing
// record is an empty list with no error, a malformed record is an empty list
// with an error wrapping ErrMalformedRecord. Save replaces the record
// atomically; readers see the previous or the new list, never a mix.
type HistoryStore interface {
	Load() (model.List, error)
	Save(list model.List) error
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrMalformedRecord is returned by Load when the record is not a valid
	// JSON conversation list.
	ErrMalformedRecord = errors.New("malformed history record")

	// ErrUnknownBackend is returned by Open for an unsupported backend name.
	ErrUnknownBackend = errors.New("unknown storage backend")
)

// =============================================================================
// RECORD CODEC
// =============================================================================

// Encode serializes a list in the record format:
//
//	[ {"id": <number>, "messages": [{"role": "...", "text": "..."}]} ]
//
// A nil list encodes as "[]".
func Encode(list model.List) ([]byte, error) {
	if list == nil {
		list = model.List{}
	}
	for i := range list {
		if list[i].Messages == nil {
			list = list.Clone()
			break
		}
	}
	data, err := json.Marshal(list)
	if err != nil {
		return nil, errors.Wrap(err, "encode history")
	}
	return data, nil
}

// Decode parses a record. Empty input and JSON null decode to an empty list.
func Decode(data []byte) (model.List, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return model.List{}, nil
	}

	var list model.List
	if err := json.Unmarshal(data, &list); err != nil {
		return model.List{}, errors.Wrapf(ErrMalformedRecord, "decode history: %v", err)
	}
	if list == nil {
		return model.List{}, nil
	}
	for i := range list {
		if list[i].Messages == nil {
			list[i].Messages = []model.Message{}
		}
	}
	return list, nil
}

// =============================================================================
// BACKEND FACTORY
// =============================================================================

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Options selects and configures a HistoryStore backend.
type Options struct {
	// Backend is one of BackendFile, BackendSQLite, BackendMemory.
	Backend string
	// Dir holds the history file or database.
	Dir string
	// Key is the record name; DefaultKey when empty.
	Key string
}

// Open creates the configured HistoryStore. Stores that hold resources
// (SQLite) also implement io.Closer.
func Open(opts Options) (HistoryStore, error) {
	key := opts.Key
	if key == "" {
		key = DefaultKey
	}

	switch strings.ToLower(opts.Backend) {
	case "", BackendFile:
		return NewFileStore(opts.Dir, key)
	case BackendSQLite:
		return OpenSQLiteStore(filepath.Join(opts.Dir, "history.db"), key)
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, errors.Wrapf(ErrUnknownBackend, "%q", opts.Backend)
	}
}
