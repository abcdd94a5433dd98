// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"time"

	"github.com/danhackerowner-jpg/gemini-bot/internal/model"
)

// =============================================================================
// JSON EXPORTER
// =============================================================================

// jsonDocument is the exported shape. Messages keep the stored role/text
// fields so an export can be fed back to the proxy as a history.
type jsonDocument struct {
	ID        model.ConversationID `json:"id"`
	Title     string               `json:"title"`
	Created   time.Time            `json:"created"`
	Exported  *time.Time           `json:"exported,omitempty"`
	Generator string               `json:"generator,omitempty"`
	Messages  []model.Message      `json:"messages"`
}

// JSONExporter exports conversations to JSON format.
type JSONExporter struct {
	options *Options
}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter(opts *Options) *JSONExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &JSONExporter{options: opts}
}

// Export converts a conversation to indented JSON. Metadata fields other
// than id, title and created are only written with IncludeMetadata.
func (e *JSONExporter) Export(conv model.Conversation) ([]byte, error) {
	if err := validate(conv); err != nil {
		return nil, err
	}

	doc := jsonDocument{
		ID:       conv.ID,
		Title:    conv.ID.Label(),
		Created:  conv.ID.Time().UTC(),
		Messages: conv.Messages,
	}
	if e.options.IncludeMetadata {
		exported := e.options.now().UTC()
		doc.Exported = &exported
		doc.Generator = Generator
	}
	return json.MarshalIndent(doc, "", "  ")
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return ".json"
}

// MimeType returns the MIME type for JSON.
func (e *JSONExporter) MimeType() string {
	return "application/json"
}
