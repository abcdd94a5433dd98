// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cloud translates conversations to and from the Gemini
// generateContent API.
//
// # Key Types
//
//   - Request, Content, Part: generateContent request body
//   - GeminiTransport: HTTP POST with the x-goog-api-key header
//   - Adapter: history in, reply text out (one request, no retries)
//   - ProviderError: the only failure kind; matches ErrProviderUnavailable
//
// # Usage
//
//	transport := cloud.NewGeminiTransport(cloud.DefaultEndpoint, apiKey, 0)
//	adapter := cloud.NewAdapter(transport)
//	reply, err := adapter.Complete(ctx, history)
//	if errors.Is(err, cloud.ErrProviderUnavailable) {
//	    // show a fixed error message; err.Error() is for logs only
//	}
//
// # Response Shape
//
// The reply is candidates[0].content.parts[0].text. A response without it
// yields FallbackReply ("No response"); only a non-JSON body is an error.
//
// # Security
//
// The API key is never logged. Logs carry KeyFingerprint instead.
package cloud
