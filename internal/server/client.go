// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/danhackerowner-jpg/gemini-bot/internal/cloud"
	"github.com/danhackerowner-jpg/gemini-bot/internal/model"
)

// Client talks to a running proxy. It satisfies controller.Provider, so a
// front-end can use a proxy instead of holding the API key itself.
type Client struct {
	url    string
	client *http.Client
}

// NewClient creates a client for the proxy route at url
// (e.g. "http://127.0.0.1:8787/api/gemini"). A zero timeout means none.
func NewClient(url string, timeout time.Duration) *Client {
	return &Client{url: url, client: &http.Client{Timeout: timeout}}
}

// Complete posts the history and returns the proxy's reply. Any failure is
// a *cloud.ProviderError.
func (c *Client) Complete(ctx context.Context, history []model.Message) (string, error) {
	if history == nil {
		history = []model.Message{}
	}
	payload, err := json.Marshal(ProxyRequest{History: history})
	if err != nil {
		return "", cloud.MapTransportFailure(errors.Wrap(err, "encode proxy request"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return "", cloud.MapTransportFailure(errors.Wrap(err, "create proxy request"))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", cloud.MapTransportFailure(errors.Wrap(err, "proxy request failed"))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, cloud.MaxResponseSize))
	if err != nil {
		return "", &cloud.ProviderError{Status: resp.StatusCode, Cause: errors.Wrap(err, "read proxy response")}
	}
	if resp.StatusCode != http.StatusOK {
		var e errorResponse
		_ = json.Unmarshal(body, &e)
		return "", &cloud.ProviderError{Status: resp.StatusCode, Cause: errors.Errorf("proxy error: %q", e.Error)}
	}

	var out ProxyResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", &cloud.ProviderError{Status: resp.StatusCode, Cause: errors.Wrap(err, "decode proxy response")}
	}
	if out.Reply == "" {
		return cloud.FallbackReply, nil
	}
	return out.Reply, nil
}
