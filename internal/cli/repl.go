// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/danhackerowner-jpg/gemini-bot/internal/config"
	"github.com/danhackerowner-jpg/gemini-bot/internal/controller"
	"github.com/danhackerowner-jpg/gemini-bot/internal/model"
	"github.com/danhackerowner-jpg/gemini-bot/internal/ui/styles"
	"github.com/danhackerowner-jpg/gemini-bot/internal/util"
)

const replHelp = `Commands:
  /new          start a new conversation
  /list         list conversations
  /switch <id>  switch to a conversation
  /show         print the active conversation
  /help         show this help
  /quit         exit (also Ctrl+D)`

func newREPLCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Line-oriented chat with input history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			r := &replSession{ctrl: a.ctrl, out: cmd.OutOrStdout(), width: GetTerminalWidth()}
			if a.cfg.UI.Markdown && isTerminalWriter(cmd.OutOrStdout()) {
				r.md = styles.NewMarkdown(a.cfg.UI.NoColor)
			}
			return runREPL(cmd.Context(), r)
		},
	}
}

// =============================================================================
// INPUT HISTORY
// =============================================================================

// lineReader provides line editing and persistent input history.
type lineReader struct {
	line        *liner.State
	historyFile string
}

func newLineReader() *lineReader {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	configDir, err := config.ConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}
	r := &lineReader{line: line, historyFile: filepath.Join(configDir, "repl_history")}

	if f, err := os.Open(r.historyFile); err == nil {
		_, _ = r.line.ReadHistory(f)
		f.Close()
	}
	return r
}

// ReadInput reads a line; non-blank input is added to the history.
func (r *lineReader) ReadInput(prompt string) (string, error) {
	input, err := r.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if !model.IsBlank(input) {
		r.line.AppendHistory(input)
	}
	return input, nil
}

// Close saves the history (0600) and restores the terminal.
func (r *lineReader) Close() {
	if err := os.MkdirAll(filepath.Dir(r.historyFile), 0700); err == nil {
		if f, err := os.OpenFile(r.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			_, _ = r.line.WriteHistory(f)
			f.Close()
		}
	}
	r.line.Close()
}

// =============================================================================
// REPL LOOP
// =============================================================================

func runREPL(ctx context.Context, r *replSession) error {
	reader := newLineReader()
	defer reader.Close()

	fmt.Fprintln(r.out, "gemini-bot "+Version+", /help for commands")
	r.printActive()

	for {
		input, err := reader.ReadInput("you> ")
		if err != nil {
			// Ctrl+C at the prompt or Ctrl+D.
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(r.out)
				return nil
			}
			return errors.Wrap(err, "read input")
		}

		if !r.handle(ctx, input) {
			return nil
		}
	}
}

// =============================================================================
// SESSION
// =============================================================================

// replSession executes REPL input against a controller.
type replSession struct {
	ctrl  *controller.Controller
	out   io.Writer
	md    *styles.Markdown
	width int
}

// handle processes one line of input. It returns false when the user asked
// to quit.
func (r *replSession) handle(ctx context.Context, input string) bool {
	input = strings.TrimSpace(input)
	if input == "" {
		return true
	}
	if strings.HasPrefix(input, "/") {
		return r.command(input)
	}

	// Ctrl+C while waiting abandons the request; the error reply is recorded.
	sendCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	reply, ok := r.ctrl.SendMessage(sendCtx, input)
	if ok {
		fmt.Fprint(r.out, "gemini> ")
		printReply(r.out, reply.Text, r.md, r.width)
	}
	return true
}

func (r *replSession) command(input string) bool {
	fields := strings.Fields(input)
	sessions := r.ctrl.Session()

	switch fields[0] {
	case "/quit", "/exit", "/q":
		return false

	case "/help", "/?":
		fmt.Fprintln(r.out, replHelp)

	case "/new":
		id := sessions.StartNew()
		fmt.Fprintf(r.out, "Started %s (%s)\n", id.Label(), id)

	case "/list":
		writeConversationList(r.out, sessions.Conversations(), activeOrZero(r.ctrl))

	case "/switch":
		if len(fields) != 2 {
			fmt.Fprintln(r.out, "Usage: /switch <id>")
			return true
		}
		id, err := model.ParseConversationID(fields[1])
		if err != nil || !sessions.SwitchTo(id) {
			fmt.Fprintf(r.out, "No conversation %q\n", fields[1])
			return true
		}
		r.printActive()

	case "/show":
		r.printActive()

	default:
		fmt.Fprintf(r.out, "Unknown command %s, /help for commands\n", fields[0])
	}
	return true
}

// printActive prints the active conversation's label and messages.
func (r *replSession) printActive() {
	id, ok := r.ctrl.Session().ActiveID()
	if !ok {
		fmt.Fprintln(r.out, "No conversations yet; type a message to start one.")
		return
	}
	fmt.Fprintf(r.out, "-- %s (%s) --\n", id.Label(), id)
	for _, msg := range r.ctrl.Session().ActiveMessages() {
		fmt.Fprintf(r.out, "%s: %s\n", msg.Role.DisplayName(), msg.Text)
	}
}

// =============================================================================
// SHARED OUTPUT
// =============================================================================

func activeOrZero(ctrl *controller.Controller) model.ConversationID {
	id, _ := ctrl.Session().ActiveID()
	return id
}

// writeConversationList prints one line per conversation, marking the
// active one with '*'.
func writeConversationList(w io.Writer, list model.List, active model.ConversationID) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No conversations.")
		return
	}
	for _, conv := range list {
		marker := " "
		if conv.ID == active {
			marker = "*"
		}
		preview := ""
		if first, ok := conv.FirstUserMessage(); ok {
			preview = first.Preview(48)
		}
		fmt.Fprintf(w, "%s %s  %s  %3d  %s\n", marker, conv.ID, util.PadWidth(conv.ID.Label(), 13),
			conv.MessageCount(), preview)
	}
}
