// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides the gemini-bot command line, built with cobra.
//
// Every front-end shares the same wiring (app.go): configuration, logging,
// the history store, the session manager, the provider (direct Gemini or a
// proxy) and the chat controller.
//
// # Commands
//
//	gemini-bot                  full-screen chat (requires a terminal)
//	gemini-bot repl             line-oriented chat with input history
//	gemini-bot ask <message>    one message, reply on stdout
//	gemini-bot serve            run the proxy server
//	gemini-bot history list     list conversations
//	gemini-bot history show     print a conversation
//	gemini-bot history new      start an empty conversation
//	gemini-bot history export   write a conversation as Markdown, JSON or HTML
//	gemini-bot config show      print the effective configuration
//	gemini-bot config init      write the default config file
//	gemini-bot version          print version information
//
// Global flags: --config, --log-level, --store.
package cli
