// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for gemini-bot.
//
// Supports TOML, JSON and YAML configuration files, with defaults,
// environment variable overrides, and validation.
//
// # Key Types
//
//   - Config: Main configuration structure
//   - ProviderConfig: direct Gemini access or a running proxy
//   - StorageConfig: history backend, directory and record key
//   - ServerConfig: proxy listen address, route and rate limits
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Command-line flags (applied by the cli package)
//   - Environment variables (GEMINI_API_KEY, GEMINI_BOT_*)
//   - ~/.gemini-bot/config.toml, config.json or config.yaml
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	dir, _ := cfg.HistoryDir()
package config
