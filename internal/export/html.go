// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/danhackerowner-jpg/gemini-bot/internal/model"
)

// =============================================================================
// HTML EXPORTER
// =============================================================================

var (
	codeBlockRegex  = regexp.MustCompile("(?s)```([a-zA-Z0-9_+-]*)\n(.*?)```")
	inlineCodeRegex = regexp.MustCompile("`([^`\n]+)`")
)

const htmlStyle = `  <style>
    body { font-family: system-ui, sans-serif; background: #1a1b26; color: #c0caf5; margin: 0; }
    .container { max-width: 860px; margin: 0 auto; padding: 24px; }
    header { border-bottom: 1px solid #3b4261; margin-bottom: 16px; }
    .meta { color: #737aa2; font-size: 0.9em; }
    .message { border-radius: 8px; padding: 8px 14px; margin: 12px 0; max-width: 75%; }
    .message.user { background: #3d59a1; margin-left: auto; }
    .message.assistant { background: #24283b; }
    .role { font-weight: bold; font-size: 0.85em; color: #7dcfff; }
    pre { background: #16161e; padding: 10px; overflow-x: auto; border-radius: 6px; }
    code.inline { background: #16161e; padding: 1px 4px; border-radius: 4px; }
    .code-lang { font-size: 0.75em; color: #737aa2; }
  </style>
`

// HTMLExporter exports conversations to a standalone HTML page.
type HTMLExporter struct {
	options *Options
}

// NewHTMLExporter creates a new HTML exporter.
func NewHTMLExporter(opts *Options) *HTMLExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &HTMLExporter{options: opts}
}

// Export converts a conversation to HTML. All message text is escaped.
func (e *HTMLExporter) Export(conv model.Conversation) ([]byte, error) {
	if err := validate(conv); err != nil {
		return nil, err
	}

	title := html.EscapeString(conv.ID.Label())
	var sb strings.Builder

	sb.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n")
	sb.WriteString("  <meta charset=\"UTF-8\">\n")
	fmt.Fprintf(&sb, "  <title>%s</title>\n", title)
	fmt.Fprintf(&sb, "  <meta name=\"generator\" content=\"%s\">\n", Generator)
	sb.WriteString(htmlStyle)
	sb.WriteString("</head>\n<body>\n<div class=\"container\">\n")

	fmt.Fprintf(&sb, "<header>\n  <h1>%s</h1>\n", title)
	if e.options.IncludeMetadata {
		fmt.Fprintf(&sb, "  <p class=\"meta\">Started %s, %d messages, exported %s</p>\n",
			formatTimestamp(conv.ID.Time()), conv.MessageCount(),
			e.options.now().Format(time.RFC3339))
	}
	sb.WriteString("</header>\n<main>\n")

	for _, msg := range conv.Messages {
		class := "assistant"
		if msg.Role.IsUser() {
			class = "user"
		}
		fmt.Fprintf(&sb, "<div class=\"message %s\">\n  <div class=\"role\">%s</div>\n%s\n</div>\n",
			class, html.EscapeString(roleLabel(msg.Role)), formatContent(msg.Text))
	}

	sb.WriteString("</main>\n</div>\n</body>\n</html>\n")
	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for HTML.
func (e *HTMLExporter) FileExtension() string {
	return ".html"
}

// MimeType returns the MIME type for HTML.
func (e *HTMLExporter) MimeType() string {
	return "text/html"
}

// formatContent escapes text and turns fenced and inline code into HTML.
// Remaining paragraphs are split on blank lines.
func formatContent(text string) string {
	var sb strings.Builder
	rest := strings.TrimSpace(text)

	for {
		loc := codeBlockRegex.FindStringSubmatchIndex(rest)
		if loc == nil {
			writeParagraphs(&sb, rest)
			break
		}
		writeParagraphs(&sb, rest[:loc[0]])

		lang := rest[loc[2]:loc[3]]
		code := rest[loc[4]:loc[5]]
		if lang != "" {
			fmt.Fprintf(&sb, "<div class=\"code-lang\">%s</div>\n", html.EscapeString(lang))
		}
		fmt.Fprintf(&sb, "<pre><code>%s</code></pre>\n", html.EscapeString(strings.TrimRight(code, "\n")))

		rest = rest[loc[1]:]
	}
	return strings.TrimRight(sb.String(), "\n")
}

func writeParagraphs(sb *strings.Builder, text string) {
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		escaped := html.EscapeString(para)
		escaped = inlineCodeRegex.ReplaceAllString(escaped, `<code class="inline">$1</code>`)
		escaped = strings.ReplaceAll(escaped, "\n", "<br>\n")
		fmt.Fprintf(sb, "<p>%s</p>\n", escaped)
	}
}
