// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging configures the process-wide zerolog logger.
//
// Console output goes to the writer the caller picks (stderr for the
// line-oriented commands, nothing for the TUI, which owns the terminal).
// When a log file is configured it is written through lumberjack with
// rotation.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/danhackerowner-jpg/gemini-bot/internal/config"
)

// Rotation limits for the log file.
const (
	MaxSizeMB  = 10
	MaxBackups = 3
	MaxAgeDays = 28
)

// ParseLevel maps a config level name to a zerolog level.
func ParseLevel(level string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel, nil
	case "", "info":
		return zerolog.InfoLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	default:
		return zerolog.InfoLevel, errors.Errorf("unknown log level %q", level)
	}
}

// New builds a logger from cfg. console may be nil, in which case only the
// log file (if any) receives output. The returned closer releases the file.
func New(cfg config.LogConfig, console io.Writer) (zerolog.Logger, io.Closer, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), nopCloser{}, err
	}

	var writers []io.Writer
	if console != nil {
		if strings.EqualFold(cfg.Format, "json") {
			writers = append(writers, console)
		} else {
			writers = append(writers, zerolog.ConsoleWriter{Out: console, NoColor: !isTerminal(console)})
		}
	}

	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0700); err != nil {
			return zerolog.Nop(), nopCloser{}, errors.Wrap(err, "create log directory")
		}
		rotating := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    MaxSizeMB,
			MaxBackups: MaxBackups,
			MaxAge:     MaxAgeDays,
		}
		closer = rotating
		if strings.EqualFold(cfg.Format, "json") {
			writers = append(writers, rotating)
		} else {
			writers = append(writers, zerolog.ConsoleWriter{Out: rotating, NoColor: true})
		}
	}

	if len(writers) == 0 {
		return zerolog.Nop(), closer, nil
	}
	logger := zerolog.New(io.MultiWriter(writers...)).Level(level).With().Timestamp().Logger()
	return logger, closer, nil
}

// Init installs the logger built by New as the global zerolog logger.
func Init(cfg config.LogConfig, console io.Writer) (io.Closer, error) {
	logger, closer, err := New(cfg, console)
	if err != nil {
		return closer, err
	}
	log.Logger = logger
	zerolog.SetGlobalLevel(logger.GetLevel())
	return closer, nil
}

// DefaultFile returns the log file used when the TUI runs without one.
func DefaultFile() (string, error) {
	dir, err := config.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "gemini-bot.log"), nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	return ok && term.IsTerminal(int(f.Fd()))
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
