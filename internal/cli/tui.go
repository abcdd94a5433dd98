// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/danhackerowner-jpg/gemini-bot/internal/logging"
	"github.com/danhackerowner-jpg/gemini-bot/internal/storage"
	"github.com/danhackerowner-jpg/gemini-bot/internal/ui/chat"
	"github.com/danhackerowner-jpg/gemini-bot/internal/ui/styles"
)

// runTUI starts the full-screen chat. The TUI owns the terminal, so logs go
// to a file only.
func runTUI(cmd *cobra.Command, opts *globalOptions) error {
	if err := RequiresTTY("start the chat screen"); err != nil {
		return err
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	if cfg.Log.File == "" {
		if cfg.Log.File, err = logging.DefaultFile(); err != nil {
			return err
		}
	}

	a, err := newAppWithConfig(cfg, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	var changes chan struct{}
	if fs, ok := a.store.(*storage.FileStore); ok && cfg.Storage.Watch {
		changes = make(chan struct{}, 1)
		watcher, err := storage.NewWatcher(fs, storage.DefaultWatchDebounce, func() {
			select {
			case changes <- struct{}{}:
			default:
			}
		})
		if err == nil {
			err = watcher.Watch()
		}
		if err != nil {
			log.Warn().Err(err).Msg("history watcher unavailable")
			changes = nil
		} else {
			defer watcher.Close()
		}
	}

	var md *styles.Markdown
	if cfg.UI.Markdown {
		md = styles.NewMarkdown(cfg.UI.NoColor)
	}

	m := chat.New(a.ctrl, chat.Options{
		Theme:        styles.NewTheme(cfg.UI.NoColor),
		Markdown:     md,
		SidebarWidth: cfg.UI.SidebarWidth,
		Changes:      changes,
	})

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return errors.Wrap(err, "run chat screen")
	}
	return nil
}
