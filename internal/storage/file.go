// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"crypto/sha256"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/danhackerowner-jpg/gemini-bot/internal/model"
	"github.com/danhackerowner-jpg/gemini-bot/internal/util"
)

// =============================================================================
// FILE STORE
// =============================================================================

// FileStore keeps the conversation list in <dir>/<key>.json.
//
// It remembers the digest of the content it last read or wrote so that
// writes by another process can be detected (see ExternallyModified).
type FileStore struct {
	mu   sync.Mutex
	path string

	digest    [sha256.Size]byte
	hasDigest bool
}

// NewFileStore creates a file-backed store, creating dir if needed.
func NewFileStore(dir, key string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("storage directory is required")
	}
	if key == "" {
		key = DefaultKey
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(err, "create storage directory")
	}
	return &FileStore{path: filepath.Join(dir, key+".json")}, nil
}

// Path returns the location of the history file.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the history file. A missing file is an empty list.
func (s *FileStore) Load() (model.List, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.hasDigest = false
			return model.List{}, nil
		}
		return model.List{}, errors.Wrap(err, "read history file")
	}

	s.digest = sha256.Sum256(data)
	s.hasDigest = true

	list, err := Decode(data)
	if err != nil {
		log.Warn().Str("path", s.path).Err(err).Msg("history file is malformed, starting empty")
		return list, err
	}
	return list, nil
}

// Save replaces the history file atomically.
func (s *FileStore) Save(list model.List) error {
	data, err := Encode(list)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Record the digest before the rename so a concurrent watcher never
	// mistakes our own write for a foreign one.
	prevDigest, prevHas := s.digest, s.hasDigest
	s.digest = sha256.Sum256(data)
	s.hasDigest = true

	if err := util.AtomicWriteFile(s.path, data, 0600); err != nil {
		s.digest, s.hasDigest = prevDigest, prevHas
		return errors.Wrap(err, "write history file")
	}

	log.Debug().Str("path", s.path).Int("conversations", len(list)).Msg("history saved")
	return nil
}

// ExternallyModified reports whether the file on disk differs from what this
// store last read or wrote.
func (s *FileStore) ExternallyModified() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		// Deleted underneath us counts as a change.
		return os.IsNotExist(err) && s.hasDigest
	}
	if !s.hasDigest {
		return true
	}
	return sha256.Sum256(data) != s.digest
}
