// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/danhackerowner-jpg/gemini-bot/internal/model"
	"github.com/danhackerowner-jpg/gemini-bot/internal/util"
)

// Generator is written into export metadata.
const Generator = "gemini-bot"

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Exporter converts a conversation into a document format.
type Exporter interface {
	// Export renders the conversation.
	Export(conv model.Conversation) ([]byte, error)

	// FileExtension returns the extension including the dot, e.g. ".md".
	FileExtension() string

	// MimeType returns the MIME type of the rendered document.
	MimeType() string
}

// ErrEmptyConversation is returned when exporting a conversation without
// messages.
var ErrEmptyConversation = errors.New("conversation has no messages")

// =============================================================================
// EXPORT OPTIONS
// =============================================================================

// Options configures export behavior.
type Options struct {
	// OutputDir is where ExportToFile writes. Default: current directory.
	OutputDir string

	// IncludeMetadata adds a header with id, creation time and counts.
	IncludeMetadata bool

	// Now stamps the export. Defaults to time.Now.
	Now func() time.Time
}

// DefaultOptions returns default export options.
func DefaultOptions() *Options {
	return &Options{
		OutputDir:       ".",
		IncludeMetadata: true,
		Now:             time.Now,
	}
}

func (o *Options) now() time.Time {
	if o == nil || o.Now == nil {
		return time.Now()
	}
	return o.Now()
}

// =============================================================================
// FORMATS
// =============================================================================

// Formats lists the names accepted by ForFormat.
var Formats = []string{"markdown", "json", "html"}

// ForFormat returns the exporter for a format name ("markdown"/"md",
// "json" or "html").
func ForFormat(name string, opts *Options) (Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "markdown", "md":
		return NewMarkdownExporter(opts), nil
	case "json":
		return NewJSONExporter(opts), nil
	case "html", "htm":
		return NewHTMLExporter(opts), nil
	default:
		return nil, errors.Errorf("unknown export format %q (want %s)", name, strings.Join(Formats, ", "))
	}
}

// =============================================================================
// EXPORT FUNCTIONS
// =============================================================================

// FileName returns the default file name for an export of conv.
func FileName(conv model.Conversation, exporter Exporter, at time.Time) string {
	return fmt.Sprintf("conversation_%s_%s%s",
		sanitizeFilename(conv.ID.Label()),
		at.Format("20060102_150405"),
		exporter.FileExtension(),
	)
}

// ExportToFile renders conv and writes it into opts.OutputDir. It returns the
// path written.
func ExportToFile(conv model.Conversation, exporter Exporter, opts *Options) (string, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	content, err := exporter.Export(conv)
	if err != nil {
		return "", errors.Wrap(err, "export failed")
	}

	dir := opts.OutputDir
	if dir == "" {
		dir = "."
	}
	outputPath := filepath.Join(dir, FileName(conv, exporter, opts.now()))
	if err := util.AtomicWriteFile(outputPath, content, 0644); err != nil {
		return "", errors.Wrap(err, "write file")
	}
	return outputPath, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func validate(conv model.Conversation) error {
	if conv.IsEmpty() {
		return ErrEmptyConversation
	}
	return nil
}

// sanitizeFilename removes or replaces characters that are invalid in filenames.
func sanitizeFilename(s string) string {
	s = util.TruncateRunes(s, 50)

	var b strings.Builder
	for _, r := range s {
		switch {
		case strings.ContainsRune(`/\:*?"<>|`, r):
			b.WriteRune('-')
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			b.WriteRune('_')
		case r < 32 || r == 127:
			b.WriteRune('-')
		default:
			b.WriteRune(r)
		}
	}

	if b.Len() == 0 {
		return "conversation"
	}
	return b.String()
}

// formatTimestamp formats a timestamp for display.
func formatTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}
