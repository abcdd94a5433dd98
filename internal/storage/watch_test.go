// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danhackerowner-jpg/gemini-bot/internal/model"
)

func TestFileStore_ExternallyModified(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), DefaultKey)
	require.NoError(t, err)

	assert.False(t, store.ExternallyModified(), "no file and nothing read")

	require.NoError(t, store.Save(sampleList()))
	assert.False(t, store.ExternallyModified(), "own write")

	require.NoError(t, os.WriteFile(store.Path(), []byte(`[]`), 0600))
	assert.True(t, store.ExternallyModified(), "foreign write")

	_, err = store.Load()
	require.NoError(t, err)
	assert.False(t, store.ExternallyModified(), "reload resyncs")

	require.NoError(t, os.Remove(store.Path()))
	assert.True(t, store.ExternallyModified(), "deleted underneath")
}

func TestWatcher_ReportsForeignWrites(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), DefaultKey)
	require.NoError(t, err)
	require.NoError(t, store.Save(sampleList()))

	var calls atomic.Int32
	w, err := NewWatcher(store, 20*time.Millisecond, func() { calls.Add(1) })
	require.NoError(t, err)
	require.NoError(t, w.Watch())
	defer w.Close()

	// Our own writes are not reported.
	require.NoError(t, store.Save(model.List{}))
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())

	require.NoError(t, os.WriteFile(store.Path(), []byte(`[{"id":9,"messages":[]}]`), 0600))
	assert.Eventually(t, func() bool { return calls.Load() > 0 }, 3*time.Second, 20*time.Millisecond)
}

func TestWatcher_CloseWithoutWatch(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), DefaultKey)
	require.NoError(t, err)

	w, err := NewWatcher(store, 0, nil)
	require.NoError(t, err)
	assert.NoError(t, w.Close())
}

func TestNewWatcher_RequiresStore(t *testing.T) {
	_, err := NewWatcher(nil, 0, nil)
	assert.Error(t, err)
}
