// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/danhackerowner-jpg/gemini-bot/internal/model"
)

// =============================================================================
// SQLITE STORE
// =============================================================================

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS records (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at INTEGER NOT NULL DEFAULT 0
)`

const sqliteUpsert = `
INSERT INTO records (key, value, updated_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

// SQLiteStore keeps the conversation list as one row of a key/value table.
// Each Save is a single-row upsert, so a reader always sees a complete list.
type SQLiteStore struct {
	db  *sql.DB
	key string
}

// OpenSQLiteStore opens (or creates) the database at path.
func OpenSQLiteStore(path, key string) (*SQLiteStore, error) {
	if key == "" {
		key = DefaultKey
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.Wrap(err, "create database directory")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}

	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, errors.Wrapf(err, "set %s", pragma)
		}
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "initialize schema")
	}

	return &SQLiteStore{db: db, key: key}, nil
}

// Load reads the record. A missing row is an empty list.
func (s *SQLiteStore) Load() (model.List, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM records WHERE key = ?`, s.key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.List{}, nil
		}
		return model.List{}, errors.Wrap(err, "query history")
	}

	list, err := Decode([]byte(value))
	if err != nil {
		log.Warn().Str("key", s.key).Err(err).Msg("history row is malformed, starting empty")
	}
	return list, err
}

// Save upserts the record.
func (s *SQLiteStore) Save(list model.List) error {
	data, err := Encode(list)
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(sqliteUpsert, s.key, string(data), time.Now().UnixMilli()); err != nil {
		return errors.Wrap(err, "save history")
	}
	return nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// putRaw stores an arbitrary value under the key; tests use it to plant
// malformed records.
func (s *SQLiteStore) putRaw(value string) error {
	_, err := s.db.Exec(sqliteUpsert, s.key, value, time.Now().UnixMilli())
	return err
}
