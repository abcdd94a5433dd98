// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session owns the in-memory conversation list and keeps it in sync
// with the durable history record.
package session

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/danhackerowner-jpg/gemini-bot/internal/model"
	"github.com/danhackerowner-jpg/gemini-bot/internal/storage"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrEmptyText is returned when a message is empty after trimming.
	ErrEmptyText = errors.New("message text is empty")

	// ErrConversationNotFound is returned for an unknown conversation id.
	ErrConversationNotFound = errors.New("conversation not found")
)

// =============================================================================
// SESSION MANAGER
// =============================================================================

// Manager holds the conversation list and the active conversation.
//
// Every mutation is written through to the store before the call returns.
// Store failures are logged and absorbed; the session keeps working from
// memory.
type Manager struct {
	mu sync.Mutex

	store         storage.HistoryStore
	conversations model.List
	activeID      model.ConversationID
	hasActive     bool

	now func() time.Time

	// Called after each successful mutation, outside the lock.
	onChange func()
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the time source used for conversation ids.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithOnChange registers a callback run after every mutation.
func WithOnChange(fn func()) Option {
	return func(m *Manager) { m.onChange = fn }
}

// NewManager creates a manager backed by store. Call Initialize before use.
func NewManager(store storage.HistoryStore, opts ...Option) *Manager {
	m := &Manager{
		store:         store,
		conversations: model.List{},
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// Initialize replaces the in-memory list with the stored one. The most
// recently created conversation becomes active.
func (m *Manager) Initialize() {
	list, err := m.store.Load()
	if err != nil {
		log.Warn().Err(err).Msg("could not load history, continuing with what was readable")
	}
	if list == nil {
		list = model.List{}
	}

	m.mu.Lock()
	m.conversations = list
	m.hasActive = false
	m.activeID = 0
	if last, ok := list.Last(); ok {
		m.activeID = last.ID
		m.hasActive = true
	}
	m.mu.Unlock()

	log.Debug().Int("conversations", len(list)).Msg("history loaded")
}

// Reload is Initialize under another name, for front-ends reacting to a
// foreign write of the history record.
func (m *Manager) Reload() {
	m.Initialize()
	m.notify()
}

// =============================================================================
// MUTATIONS
// =============================================================================

// StartNew appends an empty conversation, makes it active and persists.
func (m *Manager) StartNew() model.ConversationID {
	m.mu.Lock()
	id := m.startNewLocked()
	m.persistLocked()
	m.mu.Unlock()

	m.notify()
	return id
}

func (m *Manager) startNewLocked() model.ConversationID {
	id := m.conversations.NextID(m.now())
	m.conversations = append(m.conversations, model.NewConversation(id))
	m.activeID = id
	m.hasActive = true
	return id
}

// Append adds a message to the active conversation, starting one if none is
// active, and persists. The text is stored verbatim.
func (m *Manager) Append(role model.Role, text string) (model.ConversationID, error) {
	if model.IsBlank(text) {
		return 0, ErrEmptyText
	}

	m.mu.Lock()
	idx := -1
	if m.hasActive {
		idx = m.conversations.IndexOf(m.activeID)
	}
	if idx < 0 {
		m.startNewLocked()
		idx = len(m.conversations) - 1
	}
	m.conversations[idx].Append(model.Message{Role: role, Text: text})
	id := m.conversations[idx].ID
	m.persistLocked()
	m.mu.Unlock()

	m.notify()
	return id, nil
}

// AppendTo adds a message to a specific conversation, active or not.
func (m *Manager) AppendTo(id model.ConversationID, role model.Role, text string) error {
	if model.IsBlank(text) {
		return ErrEmptyText
	}

	m.mu.Lock()
	idx := m.conversations.IndexOf(id)
	if idx < 0 {
		m.mu.Unlock()
		return errors.Wrapf(ErrConversationNotFound, "id %s", id)
	}
	m.conversations[idx].Append(model.Message{Role: role, Text: text})
	m.persistLocked()
	m.mu.Unlock()

	m.notify()
	return nil
}

// SwitchTo activates the conversation with the given id. It returns false,
// changing nothing, when no such conversation exists.
func (m *Manager) SwitchTo(id model.ConversationID) bool {
	m.mu.Lock()
	if m.conversations.IndexOf(id) < 0 {
		m.mu.Unlock()
		return false
	}
	m.activeID = id
	m.hasActive = true
	m.mu.Unlock()

	m.notify()
	return true
}

// persistLocked writes the whole list through. Caller holds m.mu.
func (m *Manager) persistLocked() {
	if err := m.store.Save(m.conversations); err != nil {
		log.Warn().Err(err).Int("conversations", len(m.conversations)).
			Msg("could not save history, keeping it in memory")
	}
}

func (m *Manager) notify() {
	if m.onChange != nil {
		m.onChange()
	}
}

// =============================================================================
// QUERIES
// =============================================================================

// ActiveID returns the active conversation id, or false when none is active.
func (m *Manager) ActiveID() (model.ConversationID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeID, m.hasActive
}

// ActiveMessages returns a copy of the active conversation's messages.
func (m *Manager) ActiveMessages() []model.Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.hasActive {
		return []model.Message{}
	}
	return m.messagesLocked(m.activeID)
}

// Messages returns a copy of the messages of the given conversation.
func (m *Manager) Messages(id model.ConversationID) ([]model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conversations.IndexOf(id) < 0 {
		return nil, errors.Wrapf(ErrConversationNotFound, "id %s", id)
	}
	return m.messagesLocked(id), nil
}

func (m *Manager) messagesLocked(id model.ConversationID) []model.Message {
	idx := m.conversations.IndexOf(id)
	if idx < 0 {
		return []model.Message{}
	}
	return m.conversations[idx].Clone().Messages
}

// Conversations returns a deep copy of all conversations in creation order.
func (m *Manager) Conversations() model.List {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conversations.Clone()
}

// Len returns the number of conversations.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.conversations)
}
