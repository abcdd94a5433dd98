// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/danhackerowner-jpg/gemini-bot/internal/ui/styles"
)

func newAskCmd(opts *globalOptions) *cobra.Command {
	var newChat bool

	cmd := &cobra.Command{
		Use:   "ask <message...>",
		Short: "Send one message and print the reply",
		Long: "Send one message in the most recent conversation (or a new one with\n" +
			"--new) and print the reply. Both are saved to the history.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			text := strings.Join(args, " ")
			if newChat {
				a.sessions.StartNew()
			}

			reply, ok := a.ctrl.SendMessage(cmd.Context(), text)
			if !ok {
				return errors.New("message is empty")
			}

			var md *styles.Markdown
			if a.cfg.UI.Markdown && isTerminalWriter(cmd.OutOrStdout()) {
				md = styles.NewMarkdown(a.cfg.UI.NoColor)
			}
			printReply(cmd.OutOrStdout(), reply.Text, md, GetTerminalWidth())
			return nil
		},
	}

	cmd.Flags().BoolVar(&newChat, "new", false, "start a new conversation")
	return cmd
}

// printReply writes a reply, rendered as markdown when md is set.
func printReply(w io.Writer, text string, md *styles.Markdown, width int) {
	if md != nil {
		text = md.Render(text, width)
	}
	fmt.Fprintln(w, text)
}

// isTerminalWriter reports whether w is this process's terminal stdout.
func isTerminalWriter(w io.Writer) bool {
	type fder interface{ Fd() uintptr }
	f, ok := w.(fder)
	return ok && f.Fd() == uintptr(1) && IsStdoutTTY()
}
