// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/danhackerowner-jpg/gemini-bot/internal/cloud"
	"github.com/danhackerowner-jpg/gemini-bot/internal/config"
	"github.com/danhackerowner-jpg/gemini-bot/internal/controller"
	"github.com/danhackerowner-jpg/gemini-bot/internal/logging"
	"github.com/danhackerowner-jpg/gemini-bot/internal/server"
	"github.com/danhackerowner-jpg/gemini-bot/internal/session"
	"github.com/danhackerowner-jpg/gemini-bot/internal/storage"
)

// =============================================================================
// CONFIGURATION
// =============================================================================

// loadConfig loads the config file (or defaults), then applies flags.
func loadConfig(opts *globalOptions) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.configPath != "" {
		cfg, err = config.LoadFromPath(opts.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if opts.store != "" {
		cfg.Storage.Backend = opts.store
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid flags")
	}

	config.SetGlobal(cfg)
	return cfg, nil
}

// =============================================================================
// APPLICATION WIRING
// =============================================================================

// app is the wired object graph shared by the front-ends:
// config -> logging -> store -> session manager -> provider -> controller.
type app struct {
	cfg      *config.Config
	store    storage.HistoryStore
	sessions *session.Manager
	provider controller.Provider
	ctrl     *controller.Controller

	closers []io.Closer
}

// newApp wires the application. console receives log output; nil sends logs
// only to the configured file.
func newApp(opts *globalOptions, console io.Writer) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	return newAppWithConfig(cfg, console)
}

func newAppWithConfig(cfg *config.Config, console io.Writer) (*app, error) {
	a := &app{cfg: cfg}

	logCloser, err := logging.Init(cfg.Log, console)
	if err != nil {
		return nil, errors.Wrap(err, "init logging")
	}
	a.closers = append(a.closers, logCloser)

	dir, err := cfg.HistoryDir()
	if err != nil {
		a.Close()
		return nil, err
	}
	store, err := storage.Open(storage.Options{
		Backend: cfg.Storage.Backend,
		Dir:     dir,
		Key:     cfg.Storage.Key,
	})
	if err != nil {
		a.Close()
		return nil, errors.Wrap(err, "open history")
	}
	a.store = store
	if c, ok := store.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}

	a.sessions = session.NewManager(store)
	a.sessions.Initialize()

	a.provider = newProvider(cfg)
	a.ctrl = controller.New(a.sessions, a.provider)

	log.Debug().Str("backend", cfg.Storage.Backend).Str("dir", dir).
		Str("mode", cfg.Provider.Mode).Int("conversations", a.sessions.Len()).Msg("application ready")
	return a, nil
}

// Close releases the store and the log file, newest first.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			log.Debug().Err(err).Msg("close")
		}
	}
	a.closers = nil
}

// newProvider returns the proxy client in proxy mode and the Gemini adapter
// otherwise.
func newProvider(cfg *config.Config) controller.Provider {
	if strings.EqualFold(cfg.Provider.Mode, config.ModeProxy) {
		return server.NewClient(cfg.Provider.ProxyURL, cfg.Timeout())
	}
	return newDirectProvider(cfg)
}

// newDirectProvider always talks to Gemini; the proxy server uses it
// regardless of the configured mode.
func newDirectProvider(cfg *config.Config) *cloud.Adapter {
	if cfg.Provider.APIKey == "" {
		log.Warn().Msg("no API key configured (set GEMINI_API_KEY); Gemini will reject requests")
	}
	transport := cloud.NewGeminiTransport(cfg.Provider.Endpoint, cfg.Provider.APIKey, cfg.Timeout())
	return cloud.NewAdapter(transport)
}
