// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/danhackerowner-jpg/gemini-bot/internal/model"
)

// Adapter completes a conversation history through a Transport.
// It makes exactly one request per call and never retries.
type Adapter struct {
	transport Transport
}

// NewAdapter creates an adapter over the given transport.
func NewAdapter(transport Transport) *Adapter {
	return &Adapter{transport: transport}
}

// Complete sends the history and returns the reply text. Every error is a
// *ProviderError.
func (a *Adapter) Complete(ctx context.Context, history []model.Message) (string, error) {
	payload, err := json.Marshal(BuildRequest(history))
	if err != nil {
		return "", MapTransportFailure(errors.Wrap(err, "encode request"))
	}

	raw, err := a.transport.Post(ctx, payload)
	if err != nil {
		pe := MapTransportFailure(err)
		log.Warn().Err(pe.Cause).Int("status", pe.Status).Int("messages", len(history)).
			Msg("provider call failed")
		return "", pe
	}

	reply, err := ParseResponse(raw)
	if err != nil {
		pe := MapTransportFailure(err)
		log.Warn().Err(pe.Cause).Msg("provider returned an undecodable body")
		return "", pe
	}
	return reply, nil
}
