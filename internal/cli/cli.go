// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set at build time)
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// globalOptions holds the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	logLevel   string
	store      string
}

// NewRootCmd builds the gemini-bot command tree. Without a subcommand it
// starts the terminal UI.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "gemini-bot",
		Short: "Chat with Gemini from the terminal",
		Long: "gemini-bot keeps a local history of conversations with Google Gemini.\n" +
			"Run without a command for the full-screen chat, or use 'repl' and 'ask'\n" +
			"for line-oriented use. 'serve' runs a proxy that holds the API key.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, opts)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "config file (default ~/.gemini-bot/config.toml)")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&opts.store, "store", "", "history backend: file, sqlite, memory")

	cmd.AddCommand(newAskCmd(opts))
	cmd.AddCommand(newREPLCmd(opts))
	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newHistoryCmd(opts))
	cmd.AddCommand(newConfigCmd(opts))
	cmd.AddCommand(newVersionCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "gemini-bot %s (commit: %s, built: %s)\n", Version, GitCommit, BuildDate)
		},
	}
}

// Execute runs the root command with os.Args and returns the exit code.
func Execute() int {
	return execute(NewRootCmd(), os.Stderr)
}

func execute(cmd *cobra.Command, stderr io.Writer) int {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
