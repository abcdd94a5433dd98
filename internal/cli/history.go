// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/danhackerowner-jpg/gemini-bot/internal/export"
	"github.com/danhackerowner-jpg/gemini-bot/internal/model"
	"github.com/danhackerowner-jpg/gemini-bot/internal/session"
)

func newHistoryCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect and manage saved conversations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List conversations (* marks the most recent)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			writeConversationList(cmd.OutOrStdout(), a.sessions.Conversations(), activeOrZero(a.ctrl))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show [id]",
		Short: "Print a conversation (default: the most recent)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			conv, err := resolveConversation(a, args)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "-- %s (%s) --\n", conv.ID.Label(), conv.ID)
			for _, msg := range conv.Messages {
				fmt.Fprintf(out, "%s: %s\n", msg.Role.DisplayName(), msg.Text)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "new",
		Short: "Start an empty conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			id := a.sessions.StartNew()
			fmt.Fprintf(cmd.OutOrStdout(), "Started %s (%s)\n", id.Label(), id)
			return nil
		},
	})

	cmd.AddCommand(newHistoryExportCmd(opts))
	return cmd
}

func newHistoryExportCmd(opts *globalOptions) *cobra.Command {
	var (
		format    string
		outputDir string
		toStdout  bool
		noMeta    bool
	)

	cmd := &cobra.Command{
		Use:   "export [id]",
		Short: "Export a conversation to Markdown, JSON or HTML (default: the most recent)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			exportOpts := export.DefaultOptions()
			exportOpts.OutputDir = outputDir
			exportOpts.IncludeMetadata = !noMeta

			exporter, err := export.ForFormat(format, exportOpts)
			if err != nil {
				return err
			}

			a, err := newApp(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			conv, err := resolveConversation(a, args)
			if err != nil {
				return err
			}

			if toStdout {
				data, err := exporter.Export(conv)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}

			path, err := export.ExportToFile(conv, exporter, exportOpts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %s to %s\n", conv.ID.Label(), path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "markdown", "export format: "+strings.Join(export.Formats, ", "))
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", ".", "directory to write the export into")
	cmd.Flags().BoolVar(&toStdout, "stdout", false, "write the export to stdout instead of a file")
	cmd.Flags().BoolVar(&noMeta, "no-metadata", false, "omit the metadata header")
	return cmd
}

// resolveConversation returns the conversation named by args[0], or the
// most recent one when no id is given.
func resolveConversation(a *app, args []string) (model.Conversation, error) {
	id, ok := a.sessions.ActiveID()
	if len(args) == 1 {
		parsed, err := model.ParseConversationID(args[0])
		if err != nil {
			return model.Conversation{}, errors.Wrapf(err, "invalid conversation id %q", args[0])
		}
		id, ok = parsed, true
	}
	if !ok {
		return model.Conversation{}, errors.New("no conversations")
	}

	messages, err := a.sessions.Messages(id)
	if errors.Is(err, session.ErrConversationNotFound) {
		return model.Conversation{}, errors.Errorf("no conversation %s", id)
	}
	if err != nil {
		return model.Conversation{}, err
	}
	return model.Conversation{ID: id, Messages: messages}, nil
}
