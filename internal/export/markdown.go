// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/danhackerowner-jpg/gemini-bot/internal/model"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// frontMatter is the YAML header of a Markdown export.
type frontMatter struct {
	Title     string `yaml:"title"`
	ID        string `yaml:"id"`
	Created   string `yaml:"created"`
	Messages  int    `yaml:"messages"`
	Exported  string `yaml:"exported"`
	Generator string `yaml:"generator"`
}

// MarkdownExporter exports conversations to Markdown format.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a new Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// Export converts a conversation to Markdown. Message text is written as-is
// since Gemini replies are already Markdown.
func (e *MarkdownExporter) Export(conv model.Conversation) ([]byte, error) {
	if err := validate(conv); err != nil {
		return nil, err
	}

	var sb strings.Builder
	created := conv.ID.Time()

	if e.options.IncludeMetadata {
		// yaml.v3 takes care of quoting titles with ':' and newlines.
		header, err := yaml.Marshal(frontMatter{
			Title:     conv.ID.Label(),
			ID:        conv.ID.String(),
			Created:   created.Format(time.RFC3339),
			Messages:  conv.MessageCount(),
			Exported:  e.options.now().Format(time.RFC3339),
			Generator: Generator,
		})
		if err != nil {
			return nil, errors.Wrap(err, "encode front matter")
		}
		sb.WriteString("---\n")
		sb.Write(header)
		sb.WriteString("---\n\n")
	}

	fmt.Fprintf(&sb, "# %s\n\n", escapeMarkdown(conv.ID.Label()))
	if e.options.IncludeMetadata {
		fmt.Fprintf(&sb, "- **Started**: %s\n", formatTimestamp(created))
		fmt.Fprintf(&sb, "- **Messages**: %d\n\n", conv.MessageCount())
	}

	for i, msg := range conv.Messages {
		fmt.Fprintf(&sb, "### %s\n\n", roleLabel(msg.Role))
		sb.WriteString(strings.TrimSpace(msg.Text))
		sb.WriteString("\n\n")
		if i < len(conv.Messages)-1 {
			sb.WriteString("---\n\n")
		}
	}

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// MimeType returns the MIME type for Markdown.
func (e *MarkdownExporter) MimeType() string {
	return "text/markdown"
}

// =============================================================================
// FORMATTING HELPERS
// =============================================================================

// roleLabel returns the heading for a message's sender.
func roleLabel(role model.Role) string {
	if role == "" {
		return "Unknown"
	}
	return role.DisplayName()
}

// escapeMarkdown escapes characters that would break formatting in headings.
func escapeMarkdown(s string) string {
	r := strings.NewReplacer(
		"#", `\#`,
		"*", `\*`,
		"_", `\_`,
		"[", `\[`,
		"]", `\]`,
	)
	return r.Replace(s)
}
