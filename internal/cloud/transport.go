// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/danhackerowner-jpg/gemini-bot/internal/util"
)

// PERFORMANCE: Connection pooling reduces TCP handshake overhead.
// Shared transport for all provider requests; TLS 1.2 minimum.
var sharedTransport = &http.Transport{
	Proxy:               http.ProxyFromEnvironment,
	MaxIdleConns:        100,
	MaxIdleConnsPerHost: 10,
	IdleConnTimeout:     90 * time.Second,
	TLSHandshakeTimeout: 10 * time.Second,
	TLSClientConfig: &tls.Config{
		MinVersion: tls.VersionTLS12,
	},
}

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Transport posts an encoded request and returns the raw response body.
type Transport interface {
	Post(ctx context.Context, body []byte) ([]byte, error)
}

// =============================================================================
// GEMINI TRANSPORT
// =============================================================================

// GeminiTransport posts JSON payloads to a generateContent endpoint.
type GeminiTransport struct {
	endpoint string
	apiKey   string
	client   Doer
}

// NewGeminiTransport creates a transport. A zero timeout means none; the
// call then lasts as long as ctx allows.
func NewGeminiTransport(endpoint, apiKey string, timeout time.Duration) *GeminiTransport {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &GeminiTransport{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Transport: sharedTransport, Timeout: timeout},
	}
}

// WithClient replaces the HTTP client (tests use httptest servers).
func (t *GeminiTransport) WithClient(client Doer) *GeminiTransport {
	t.client = client
	return t
}

// Endpoint returns the configured URL.
func (t *GeminiTransport) Endpoint() string {
	return t.endpoint
}

// KeyFingerprint identifies the configured key in logs.
func (t *GeminiTransport) KeyFingerprint() string {
	return KeyFingerprint(t.apiKey)
}

// Post sends the body. Network failures and non-2xx statuses are returned
// as *ProviderError. The key is sent as-is; an empty or wrong key is the
// provider's to reject.
func (t *GeminiTransport) Post(ctx context.Context, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &ProviderError{Cause: errors.Wrap(err, "create request")}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", t.apiKey)

	start := time.Now()
	resp, err := t.client.Do(req)

	// SECURITY: drop the credential so nothing downstream can log it.
	req.Header.Del("x-goog-api-key")

	if err != nil {
		return nil, &ProviderError{Cause: errors.Wrap(err, "request failed")}
	}
	defer resp.Body.Close()

	log.Debug().
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Str("key_fingerprint", t.KeyFingerprint()).
		Msg("provider response")

	raw, err := readResponse(resp)
	if err != nil {
		return nil, &ProviderError{Status: resp.StatusCode, Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ProviderError{
			Status: resp.StatusCode,
			Cause:  errors.Errorf("unexpected status: %s", util.TruncateRunes(string(raw), 200)),
		}
	}
	return raw, nil
}

// readResponse reads the body with a size limit.
//
// SECURITY: Response size limit prevents memory exhaustion.
func readResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, errors.Wrap(err, "read response")
	}
	if int64(len(body)) > MaxResponseSize {
		return nil, errors.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

// KeyFingerprint returns the first 8 hex characters of the key's SHA-256,
// or "none" for an empty key. The key itself must never be logged.
func KeyFingerprint(key string) string {
	if key == "" {
		return "none"
	}
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:4])
}
