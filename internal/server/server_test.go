// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danhackerowner-jpg/gemini-bot/internal/cloud"
	"github.com/danhackerowner-jpg/gemini-bot/internal/model"
)

// stubProvider records calls and returns a canned reply.
type stubProvider struct {
	mu      sync.Mutex
	reply   string
	err     error
	panics  bool
	calls   int
	history []model.Message
}

func (p *stubProvider) Complete(ctx context.Context, history []model.Message) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.history = history
	if p.panics {
		panic("provider exploded")
	}
	return p.reply, p.err
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var out map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body: %s", rec.Body.String())
	return out
}

// =============================================================================
// PROXY ROUTE TESTS
// =============================================================================

func TestProxy_Success(t *testing.T) {
	provider := &stubProvider{reply: "hello"}
	srv := NewServer(Config{}, provider)

	rec := doRequest(t, srv.Handler(), http.MethodPost, "/api/gemini",
		`{"history":[{"role":"user","text":"hi"},{"role":"bot","text":"yo"},{"role":"user","text":"again"}]}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, map[string]string{"reply": "hello"}, decodeBody(t, rec))

	require.Len(t, provider.history, 3)
	assert.Equal(t, model.Role("bot"), provider.history[1].Role)
}

func TestProxy_NonPostMethods(t *testing.T) {
	provider := &stubProvider{reply: "never"}
	srv := NewServer(Config{}, provider)

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete, http.MethodPatch, http.MethodOptions} {
		rec := doRequest(t, srv.Handler(), method, "/api/gemini", "")
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, method)
		assert.Equal(t, map[string]string{"error": "Only POST requests allowed"}, decodeBody(t, rec))
	}
	assert.Equal(t, 0, provider.calls)
}

func TestProxy_Failures(t *testing.T) {
	testCases := []struct {
		name     string
		provider *stubProvider
		body     string
		calls    int
	}{
		{"provider error", &stubProvider{err: &cloud.ProviderError{Status: 503, Cause: errors.New("down")}}, `{"history":[{"role":"user","text":"hi"}]}`, 1},
		{"not json", &stubProvider{reply: "x"}, `not json`, 0},
		{"missing history", &stubProvider{reply: "x"}, `{}`, 0},
		{"history wrong type", &stubProvider{reply: "x"}, `{"history":"hi"}`, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			srv := NewServer(Config{}, tc.provider)
			rec := doRequest(t, srv.Handler(), http.MethodPost, "/api/gemini", tc.body)

			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.Equal(t, map[string]string{"error": "Error calling Gemini API"}, decodeBody(t, rec))
			assert.Equal(t, tc.calls, tc.provider.calls)
		})
	}
}

func TestProxy_ErrorDetailNeverLeaks(t *testing.T) {
	provider := &stubProvider{err: errors.New("API key AIza-secret rejected")}
	srv := NewServer(Config{}, provider)

	rec := doRequest(t, srv.Handler(), http.MethodPost, "/api/gemini", `{"history":[]}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "AIza")
}

func TestProxy_EmptyHistoryIsForwarded(t *testing.T) {
	provider := &stubProvider{reply: cloud.FallbackReply}
	srv := NewServer(Config{}, provider)

	rec := doRequest(t, srv.Handler(), http.MethodPost, "/api/gemini", `{"history":[]}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, provider.calls)
}

func TestProxy_BodyTooLarge(t *testing.T) {
	provider := &stubProvider{reply: "x"}
	srv := NewServer(Config{}, provider)

	big := `{"history":[{"role":"user","text":"` + strings.Repeat("a", MaxRequestBodySize) + `"}]}`
	rec := doRequest(t, srv.Handler(), http.MethodPost, "/api/gemini", big)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 0, provider.calls)
}

func TestProxy_CustomRoute(t *testing.T) {
	srv := NewServer(Config{Route: "/relay"}, &stubProvider{reply: "ok"})

	rec := doRequest(t, srv.Handler(), http.MethodPost, "/relay", `{"history":[]}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, srv.Handler(), http.MethodPost, "/api/gemini", `{"history":[]}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProxy_PanicRecovered(t *testing.T) {
	srv := NewServer(Config{}, &stubProvider{panics: true})

	rec := doRequest(t, srv.Handler(), http.MethodPost, "/api/gemini", `{"history":[]}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, map[string]string{"error": "Error calling Gemini API"}, decodeBody(t, rec))
}

// =============================================================================
// MIDDLEWARE TESTS
// =============================================================================

func TestHealth(t *testing.T) {
	srv := NewServer(Config{}, &stubProvider{})
	rec := doRequest(t, srv.Handler(), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]string{"status": "ok"}, decodeBody(t, rec))
}

func TestSecurityHeaders(t *testing.T) {
	srv := NewServer(Config{}, &stubProvider{})
	rec := doRequest(t, srv.Handler(), http.MethodGet, "/health", "")
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestRateLimit(t *testing.T) {
	srv := NewServer(Config{RateLimitRPS: 0.001, RateLimitBurst: 2}, &stubProvider{reply: "ok"})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := doRequest(t, srv.Handler(), http.MethodPost, "/api/gemini", `{"history":[]}`)
		codes = append(codes, rec.Code)
		if rec.Code == http.StatusTooManyRequests {
			assert.Equal(t, map[string]string{"error": "Too many requests"}, decodeBody(t, rec))
			assert.NotEmpty(t, rec.Header().Get("Retry-After"))
		}
	}
	assert.Equal(t, []int{200, 200, 429}, codes)
}

func TestRateLimiter_PerIP(t *testing.T) {
	rl := NewRateLimiter(0.001, 1)
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.2"), "other clients have their own bucket")
}

func TestRateLimiter_Defaults(t *testing.T) {
	rl := NewRateLimiter(0, 0)
	assert.Equal(t, DefaultRateLimitBurst, rl.burst)
}

func TestGetClientIP(t *testing.T) {
	testCases := []struct {
		name       string
		remoteAddr string
		xff        string
		want       string
	}{
		{"direct", "203.0.113.7:1234", "", "203.0.113.7"},
		{"untrusted peer cannot spoof", "203.0.113.7:1234", "1.2.3.4", "203.0.113.7"},
		{"trusted proxy forwards", "127.0.0.1:5555", "198.51.100.9, 10.0.0.1", "198.51.100.9"},
		{"invalid forwarded value", "127.0.0.1:5555", "not-an-ip", "127.0.0.1"},
		{"no port", "198.51.100.1", "", "198.51.100.1"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tc.remoteAddr
			if tc.xff != "" {
				r.Header.Set("X-Forwarded-For", tc.xff)
			}
			assert.Equal(t, tc.want, GetClientIP(r))
		})
	}
}

func TestChainOrder(t *testing.T) {
	var order []string
	mw := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := Chain(mw("a"), mw("b"), mw("c"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

// =============================================================================
// LIFECYCLE AND CLIENT TESTS
// =============================================================================

func TestServeAndShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := NewServer(Config{}, &stubProvider{reply: "pong"})
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	client := NewClient("http://"+ln.Addr().String()+DefaultRoute, 5*time.Second)
	require.Eventually(t, func() bool {
		_, err := client.Complete(context.Background(), nil)
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)

	reply, err := client.Complete(context.Background(), []model.Message{model.NewUserMessage("ping")})
	require.NoError(t, err)
	assert.Equal(t, "pong", reply)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	assert.NoError(t, <-errCh)
}

func TestShutdownBeforeStart(t *testing.T) {
	srv := NewServer(Config{}, &stubProvider{})
	assert.NoError(t, srv.Shutdown(context.Background()))

	// Serving after shutdown returns at once and releases the listener.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	assert.NoError(t, srv.Serve(ln))
	_, err = ln.Accept()
	assert.Error(t, err)
}

func TestClient_Failures(t *testing.T) {
	testCases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"500", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error":"Error calling Gemini API"}`))
		}},
		{"405", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusMethodNotAllowed)
		}},
		{"not json", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("<html>"))
		}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ts := httptest.NewServer(tc.handler)
			defer ts.Close()

			_, err := NewClient(ts.URL, 0).Complete(context.Background(), []model.Message{model.NewUserMessage("hi")})
			assert.True(t, errors.Is(err, cloud.ErrProviderUnavailable), "got %v", err)
		})
	}
}

func TestClient_EmptyReplyUsesFallback(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer ts.Close()

	reply, err := NewClient(ts.URL, 0).Complete(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, cloud.FallbackReply, reply)
}

func TestClient_AgainstProxyWithAdapter(t *testing.T) {
	// Full chain: Client -> proxy -> Adapter -> fake Gemini endpoint.
	var gotKey string
	gemini := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-goog-api-key")
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"relayed"}]}}]}`))
	}))
	defer gemini.Close()

	adapter := cloud.NewAdapter(cloud.NewGeminiTransport(gemini.URL, "server-key", 0))
	proxy := httptest.NewServer(NewServer(Config{}, adapter).Handler())
	defer proxy.Close()

	reply, err := NewClient(proxy.URL+DefaultRoute, 0).
		Complete(context.Background(), []model.Message{model.NewUserMessage("hi")})
	require.NoError(t, err)
	assert.Equal(t, "relayed", reply)
	assert.Equal(t, "server-key", gotKey)
}
