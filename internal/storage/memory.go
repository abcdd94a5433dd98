// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"sync"

	"github.com/danhackerowner-jpg/gemini-bot/internal/model"
)

// MemoryStore is a HistoryStore that lives only as long as the process.
// It stores the encoded record, so Load/Save go through the same codec as
// the durable backends.
type MemoryStore struct {
	mu    sync.Mutex
	data  []byte
	saves int

	// FailSaves, when non-nil, is returned from every Save.
	FailSaves error
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load decodes the stored record.
func (s *MemoryStore) Load() (model.List, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Decode(s.data)
}

// Save encodes and keeps the list.
func (s *MemoryStore) Save(list model.List) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailSaves != nil {
		return s.FailSaves
	}
	data, err := Encode(list)
	if err != nil {
		return err
	}
	s.data = data
	s.saves++
	return nil
}

// SetRaw replaces the stored record with raw bytes.
func (s *MemoryStore) SetRaw(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = append([]byte(nil), data...)
}

// Raw returns a copy of the stored record.
func (s *MemoryStore) Raw() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.data...)
}

// Saves returns how many times Save succeeded.
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}
