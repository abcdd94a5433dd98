// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package controller runs one chat send: record the user's message, ask the
// provider, record the reply.
package controller

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/danhackerowner-jpg/gemini-bot/internal/cloud"
	"github.com/danhackerowner-jpg/gemini-bot/internal/model"
	"github.com/danhackerowner-jpg/gemini-bot/internal/session"
)

// ErrorReply is the assistant message recorded when the provider fails.
const ErrorReply = "❌ Error fetching response."

// Provider completes a conversation history with a reply.
type Provider interface {
	Complete(ctx context.Context, history []model.Message) (string, error)
}

// State is the controller's send state.
type State int

const (
	// Idle means no send is waiting for a reply.
	Idle State = iota
	// AwaitingReply means at least one send is in flight.
	AwaitingReply
)

// String returns a readable state name.
func (s State) String() string {
	if s == AwaitingReply {
		return "awaiting reply"
	}
	return "idle"
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller connects user input, the session and a Provider.
//
// Sends are not serialized. Each reply is appended to the conversation its
// send started in, in the order the replies arrive.
type Controller struct {
	sessions *session.Manager
	provider Provider
	pending  atomic.Int32
}

// New creates a controller.
func New(sessions *session.Manager, provider Provider) *Controller {
	return &Controller{sessions: sessions, provider: provider}
}

// Session returns the underlying session manager.
func (c *Controller) Session() *session.Manager {
	return c.sessions
}

// Pending returns the number of sends waiting for a reply.
func (c *Controller) Pending() int {
	return int(c.pending.Load())
}

// State reports whether any send is in flight.
func (c *Controller) State() State {
	if c.pending.Load() > 0 {
		return AwaitingReply
	}
	return Idle
}

// SendMessage records text, waits for the provider and records the reply.
// Blank text is ignored and reported with ok=false.
func (c *Controller) SendMessage(ctx context.Context, text string) (model.Message, bool) {
	send, ok := c.Begin(text)
	if !ok {
		return model.Message{}, false
	}
	return send.Await(ctx), true
}

// Begin records the user's message and returns the send to complete. The
// message is persisted before Begin returns, so it survives a crash during
// the provider call.
func (c *Controller) Begin(text string) (*Send, bool) {
	if model.IsBlank(text) {
		return nil, false
	}

	convID, err := c.sessions.Append(model.RoleUser, text)
	if err != nil {
		return nil, false
	}
	history, err := c.sessions.Messages(convID)
	if err != nil {
		return nil, false
	}

	c.pending.Add(1)
	send := &Send{
		ID:             uuid.New().String(),
		ConversationID: convID,
		History:        history,
		ctrl:           c,
	}
	log.Debug().Str("send_id", send.ID).Str("conversation_id", convID.String()).
		Int("messages", len(history)).Msg("send started")
	return send, true
}

// =============================================================================
// SEND
// =============================================================================

// Send is one in-flight request.
type Send struct {
	// ID correlates the send across log lines.
	ID string
	// ConversationID is where the reply will be appended.
	ConversationID model.ConversationID
	// History is the conversation as it was sent, ending with the user's
	// message.
	History []model.Message

	ctrl  *Controller
	once  sync.Once
	reply model.Message
}

// Await calls the provider and appends the reply, or ErrorReply on failure,
// to the send's conversation, then returns the appended message. Later calls
// return the same message without contacting the provider again.
func (s *Send) Await(ctx context.Context) model.Message {
	s.once.Do(func() {
		defer s.ctrl.pending.Add(-1)
		s.reply = s.complete(ctx)
	})
	return s.reply
}

func (s *Send) complete(ctx context.Context) model.Message {
	start := time.Now()
	text, err := s.ctrl.provider.Complete(ctx, s.History)
	switch {
	case err != nil:
		log.Warn().Err(err).Str("send_id", s.ID).Dur("duration", time.Since(start)).
			Msg("reply failed")
		text = ErrorReply
	case model.IsBlank(text):
		text = cloud.FallbackReply
	default:
		log.Debug().Str("send_id", s.ID).Dur("duration", time.Since(start)).Msg("reply received")
	}

	reply := model.NewAssistantMessage(text)
	if err := s.ctrl.sessions.AppendTo(s.ConversationID, reply.Role, reply.Text); err != nil {
		log.Warn().Err(err).Str("send_id", s.ID).Msg("could not record reply")
	}
	return reply
}
