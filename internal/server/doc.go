// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server provides the HTTP proxy that relays conversations to the
// provider so the API key never leaves the server.
//
// # Endpoints
//
//   - POST /api/gemini - {"history":[{"role","text"}]} -> {"reply": "..."}
//   - GET  /health     - {"status":"ok"}
//
// Any other method on the proxy route gets 405
// {"error":"Only POST requests allowed"}. Every failure after that
// (bad body, transport, provider) is 500 {"error":"Error calling Gemini API"};
// the cause goes to the log only.
//
// # Middleware
//
//   - Panic recovery (500 JSON)
//   - Security headers
//   - Request logging (zerolog, no bodies)
//   - Per-client-IP rate limiting (golang.org/x/time/rate), 429 JSON
//
// # Usage
//
//	srv := server.NewServer(server.Config{Addr: "127.0.0.1:8787"}, adapter)
//	go srv.Start()
//	defer srv.Shutdown(ctx)
//
// Client is the matching HTTP client; it implements controller.Provider.
package server
