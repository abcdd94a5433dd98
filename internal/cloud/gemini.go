// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cloud translates conversations to and from the Gemini
// generateContent API.
package cloud

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"

	"github.com/danhackerowner-jpg/gemini-bot/internal/model"
)

// Configuration constants for the Gemini API.
const (
	// DefaultEndpoint is the generateContent endpoint the client talks to.
	DefaultEndpoint = "https://generativelanguage.googleapis.com/v1beta/models/gemini-1.5-flash-latest:generateContent"

	// FallbackReply is the reply used when the response has no text.
	FallbackReply = "No response"

	// MaxResponseSize is the maximum accepted response body size.
	// SECURITY: Response size limit prevents memory exhaustion.
	MaxResponseSize = 10 * 1024 * 1024 // 10MB limit
)

// Provider role tokens. Gemini knows only these two.
const (
	ProviderRoleUser  = "user"
	ProviderRoleModel = "model"
)

// =============================================================================
// WIRE TYPES
// =============================================================================

// Request is the generateContent request body.
type Request struct {
	Contents []Content `json:"contents"`
}

// Content is one turn in a Request.
type Content struct {
	Role  string `json:"role"`
	Parts []Part `json:"parts"`
}

// Part is a text fragment of a Content.
type Part struct {
	Text string `json:"text"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrProviderUnavailable matches every ProviderError via errors.Is.
var ErrProviderUnavailable = errors.New("provider unavailable")

// ProviderError is the single failure kind surfaced by this package.
// The cause is kept for logs; callers should not show it to users.
type ProviderError struct {
	// Status is the HTTP status, or 0 when no response was received.
	Status int
	Cause  error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("provider unavailable (HTTP %d): %v", e.Status, e.Cause)
	}
	if e.Cause != nil {
		return fmt.Sprintf("provider unavailable: %v", e.Cause)
	}
	return "provider unavailable"
}

// Unwrap returns the underlying cause.
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is ErrProviderUnavailable.
func (e *ProviderError) Is(target error) bool {
	return target == ErrProviderUnavailable
}

// MapTransportFailure collapses any transport, HTTP or body failure into a
// *ProviderError. A nil error maps to nil.
func MapTransportFailure(err error) *ProviderError {
	if err == nil {
		return nil
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe
	}
	return &ProviderError{Cause: err}
}

// =============================================================================
// TRANSLATION
// =============================================================================

// BuildRequest converts a history into a Request. Order and count are
// preserved; "user" stays "user" and every other role becomes "model".
func BuildRequest(history []model.Message) Request {
	contents := make([]Content, 0, len(history))
	for _, msg := range history {
		role := ProviderRoleModel
		if msg.Role == model.RoleUser {
			role = ProviderRoleUser
		}
		contents = append(contents, Content{
			Role:  role,
			Parts: []Part{{Text: msg.Text}},
		})
	}
	return Request{Contents: contents}
}

// ParseResponse extracts candidates[0].content.parts[0].text.
//
// Any missing or mistyped field, and an empty text, yields FallbackReply with
// a nil error. Only a body that is not JSON at all is an error.
func ParseResponse(raw []byte) (string, error) {
	var body any
	if err := json.Unmarshal(raw, &body); err != nil {
		return "", &ProviderError{Cause: errors.Wrap(err, "decode provider response")}
	}

	text, ok := firstText(body)
	if !ok || text == "" {
		return FallbackReply, nil
	}
	return text, nil
}

func firstText(body any) (string, bool) {
	root, ok := body.(map[string]any)
	if !ok {
		return "", false
	}
	candidate, ok := firstObject(root["candidates"])
	if !ok {
		return "", false
	}
	content, ok := candidate["content"].(map[string]any)
	if !ok {
		return "", false
	}
	part, ok := firstObject(content["parts"])
	if !ok {
		return "", false
	}
	text, ok := part["text"].(string)
	return text, ok
}

func firstObject(v any) (map[string]any, bool) {
	list, ok := v.([]any)
	if !ok || len(list) == 0 {
		return nil, false
	}
	obj, ok := list[0].(map[string]any)
	return obj, ok
}
