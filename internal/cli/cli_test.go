// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danhackerowner-jpg/gemini-bot/internal/config"
	"github.com/danhackerowner-jpg/gemini-bot/internal/controller"
	"github.com/danhackerowner-jpg/gemini-bot/internal/model"
	"github.com/danhackerowner-jpg/gemini-bot/internal/server"
	"github.com/danhackerowner-jpg/gemini-bot/internal/session"
	"github.com/danhackerowner-jpg/gemini-bot/internal/storage"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// isolate gives the test its own config directory and clears overrides.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("GEMINI_BOT_HOME", dir)
	for _, name := range []string{
		"GEMINI_API_KEY", "GEMINI_BOT_ENDPOINT", "GEMINI_BOT_MODE", "GEMINI_BOT_PROXY_URL",
		"GEMINI_BOT_TIMEOUT", "GEMINI_BOT_STORE", "GEMINI_BOT_LOG_LEVEL", "GEMINI_BOT_ADDR",
	} {
		t.Setenv(name, "")
	}
	config.ResetGlobalForTesting()
	t.Cleanup(config.ResetGlobalForTesting)
	return dir
}

// fakeGemini answers generateContent requests with "re: <last text>".
func fakeGemini(t *testing.T, fail bool) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if fail {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var req struct {
			Contents []struct {
				Role  string `json:"role"`
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"contents"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Contents) == 0 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		last := req.Contents[len(req.Contents)-1].Parts[0].Text
		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []any{map[string]any{
				"content": map[string]any{"parts": []any{map[string]any{"text": "re: " + last}}},
			}},
		})
	}))
	t.Cleanup(srv.Close)
	t.Setenv("GEMINI_BOT_ENDPOINT", srv.URL)
	t.Setenv("GEMINI_API_KEY", "test-key")
	return srv, &calls
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// =============================================================================
// ROOT AND VERSION
// =============================================================================

func TestVersionCmd(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "gemini-bot dev")
	assert.Contains(t, out, "commit: unknown")
}

func TestRootCmdHelp(t *testing.T) {
	out, err := run(t, "--help")
	require.NoError(t, err)
	for _, sub := range []string{"ask", "repl", "serve", "history", "config", "version", "--store", "--log-level"} {
		assert.Contains(t, out, sub)
	}
}

func TestRootCmd_RequiresTerminal(t *testing.T) {
	if IsTTY() && IsStdoutTTY() {
		t.Skip("running in a terminal")
	}
	isolate(t)

	_, err := run(t)
	var ttyErr *TTYRequiredError
	require.ErrorAs(t, err, &ttyErr)
	assert.Contains(t, err.Error(), "not a terminal")
}

func TestExecute_ReportsErrors(t *testing.T) {
	isolate(t)
	cmd := NewRootCmd()
	cmd.SetArgs([]string{"history", "list", "--store", "tape"})
	cmd.SetOut(io.Discard)

	var stderr bytes.Buffer
	assert.Equal(t, 1, execute(cmd, &stderr))
	assert.Contains(t, stderr.String(), "storage.backend")
}

// =============================================================================
// ASK
// =============================================================================

func TestAsk_PersistsBothMessages(t *testing.T) {
	dir := isolate(t)
	_, calls := fakeGemini(t, false)

	out, err := run(t, "ask", "hello", "there")
	require.NoError(t, err)
	assert.Equal(t, "re: hello there\n", out)
	assert.Equal(t, int32(1), calls.Load())

	store, err := storage.NewFileStore(filepath.Join(dir, "history"), storage.DefaultKey)
	require.NoError(t, err)
	list, err := store.Load()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, []model.Message{
		model.NewUserMessage("hello there"),
		model.NewAssistantMessage("re: hello there"),
	}, list[0].Messages)
}

func TestAsk_ContinuesAndStartsConversations(t *testing.T) {
	dir := isolate(t)
	fakeGemini(t, false)

	_, err := run(t, "ask", "one")
	require.NoError(t, err)
	_, err = run(t, "ask", "two")
	require.NoError(t, err)
	_, err = run(t, "ask", "--new", "three")
	require.NoError(t, err)

	store, err := storage.NewFileStore(filepath.Join(dir, "history"), storage.DefaultKey)
	require.NoError(t, err)
	list, err := store.Load()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Len(t, list[0].Messages, 4)
	assert.Len(t, list[1].Messages, 2)
}

func TestAsk_ProviderFailurePrintsErrorReply(t *testing.T) {
	isolate(t)
	fakeGemini(t, true)

	out, err := run(t, "ask", "hi")
	require.NoError(t, err)
	assert.Equal(t, controller.ErrorReply+"\n", out)
}

func TestAsk_BlankMessage(t *testing.T) {
	isolate(t)
	_, calls := fakeGemini(t, false)

	_, err := run(t, "ask", "   ")
	assert.Error(t, err)
	assert.Zero(t, calls.Load())
}

func TestAsk_SQLiteBackend(t *testing.T) {
	dir := isolate(t)
	fakeGemini(t, false)

	_, err := run(t, "--store", "sqlite", "ask", "stored in sqlite")
	require.NoError(t, err)

	store, err := storage.OpenSQLiteStore(filepath.Join(dir, "history", "history.db"), storage.DefaultKey)
	require.NoError(t, err)
	defer store.Close()
	list, err := store.Load()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "re: stored in sqlite", list[0].Messages[1].Text)
}

func TestAsk_ProxyMode(t *testing.T) {
	isolate(t)
	_, calls := fakeGemini(t, false)

	// A proxy backed by the fake Gemini, reached through proxy mode.
	cfg := config.Default()
	cfg.Provider.Endpoint = os.Getenv("GEMINI_BOT_ENDPOINT")
	cfg.Provider.APIKey = "test-key"
	proxy := httptest.NewServer(newProxyServer(cfg).Handler())
	defer proxy.Close()

	t.Setenv("GEMINI_BOT_MODE", config.ModeProxy)
	t.Setenv("GEMINI_BOT_PROXY_URL", proxy.URL+server.DefaultRoute)
	t.Setenv("GEMINI_API_KEY", "")

	out, err := run(t, "ask", "via proxy")
	require.NoError(t, err)
	assert.Equal(t, "re: via proxy\n", out)
	assert.Equal(t, int32(1), calls.Load())
}

// =============================================================================
// HISTORY
// =============================================================================

func TestHistory_NewListShow(t *testing.T) {
	isolate(t)
	fakeGemini(t, false)

	out, err := run(t, "history", "list")
	require.NoError(t, err)
	assert.Equal(t, "No conversations.\n", out)

	_, err = run(t, "ask", "first question")
	require.NoError(t, err)

	out, err = run(t, "history", "new")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Started Chat "), out)

	out, err = run(t, "history", "list")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], " "), "older conversation is not active: %q", lines[0])
	assert.Contains(t, lines[0], "first question")
	assert.True(t, strings.HasPrefix(lines[1], "*"), "newest conversation is active: %q", lines[1])

	firstID := strings.Fields(lines[0])[0]
	out, err = run(t, "history", "show", firstID)
	require.NoError(t, err)
	assert.Contains(t, out, "You: first question")
	assert.Contains(t, out, "Gemini: re: first question")
}

func TestHistory_ShowErrors(t *testing.T) {
	isolate(t)

	_, err := run(t, "history", "show")
	assert.EqualError(t, err, "no conversations")

	_, err = run(t, "history", "show", "not-a-number")
	assert.Error(t, err)

	_, err = run(t, "history", "show", "12345")
	assert.EqualError(t, err, "no conversation 12345")
}

func TestHistory_MemoryStoreIsEphemeral(t *testing.T) {
	isolate(t)

	_, err := run(t, "--store", "memory", "history", "new")
	require.NoError(t, err)

	out, err := run(t, "--store", "memory", "history", "list")
	require.NoError(t, err)
	assert.Equal(t, "No conversations.\n", out)
}

func TestHistory_ExportStdout(t *testing.T) {
	isolate(t)
	fakeGemini(t, false)

	_, err := run(t, "ask", "export me")
	require.NoError(t, err)

	out, err := run(t, "history", "export", "--format", "json", "--stdout")
	require.NoError(t, err)

	var doc struct {
		Messages []model.Message `json:"messages"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, []model.Message{
		model.NewUserMessage("export me"),
		model.NewAssistantMessage("re: export me"),
	}, doc.Messages)
}

func TestHistory_ExportToDir(t *testing.T) {
	isolate(t)
	fakeGemini(t, false)
	outDir := t.TempDir()

	_, err := run(t, "ask", "to a file")
	require.NoError(t, err)

	out, err := run(t, "history", "export", "-o", outDir)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Exported Chat "), out)

	matches, err := filepath.Glob(filepath.Join(outDir, "conversation_*.md"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "### You\n\nto a file")
}

func TestHistory_ExportErrors(t *testing.T) {
	isolate(t)

	_, err := run(t, "history", "export", "--format", "pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown export format")

	_, err = run(t, "history", "export")
	assert.EqualError(t, err, "no conversations")

	_, err = run(t, "history", "new")
	require.NoError(t, err)
	_, err = run(t, "history", "export", "--stdout")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no messages")
}

// =============================================================================
// CONFIG
// =============================================================================

func TestConfigShow_RedactsKey(t *testing.T) {
	isolate(t)
	t.Setenv("GEMINI_API_KEY", "AIza-very-secret")

	out, err := run(t, "config", "show")
	require.NoError(t, err)
	assert.NotContains(t, out, "very-secret")
	assert.Contains(t, out, "REDACTED")
}

func TestConfigInit(t *testing.T) {
	dir := isolate(t)

	out, err := run(t, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(dir, "config.toml"))

	_, err = run(t, "config", "init")
	assert.Error(t, err)

	_, err = run(t, "config", "init", "--force")
	assert.NoError(t, err)

	cfg, err := config.LoadFromPath(filepath.Join(dir, "config.toml"))
	require.NoError(t, err)
	assert.Equal(t, config.Default().Storage.Key, cfg.Storage.Key)
}

func TestGlobalFlags_Override(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "custom.toml")
	require.NoError(t, os.WriteFile(path, []byte("[log]\nlevel = \"warn\"\n"), 0600))

	cfg, err := loadConfig(&globalOptions{configPath: path, logLevel: "debug", store: "memory"})
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, storage.BackendMemory, cfg.Storage.Backend)
	assert.Same(t, cfg, config.Global())

	_, err = loadConfig(&globalOptions{logLevel: "shout"})
	assert.Error(t, err)
}

// =============================================================================
// REPL
// =============================================================================

type scriptedProvider struct{ fail bool }

func (p scriptedProvider) Complete(_ context.Context, history []model.Message) (string, error) {
	if p.fail {
		return "", errors.New("boom")
	}
	return "reply to " + history[len(history)-1].Text, nil
}

func newTestREPL(t *testing.T, provider controller.Provider) (*replSession, *bytes.Buffer) {
	t.Helper()
	clock := time.UnixMilli(1_700_000_000_000)
	sessions := session.NewManager(storage.NewMemoryStore(), session.WithClock(func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}))
	sessions.Initialize()
	var out bytes.Buffer
	return &replSession{ctrl: controller.New(sessions, provider), out: &out, width: 80}, &out
}

func TestREPL_SendAndCommands(t *testing.T) {
	r, out := newTestREPL(t, scriptedProvider{})
	ctx := context.Background()

	assert.True(t, r.handle(ctx, "   "))
	assert.Empty(t, out.String())

	assert.True(t, r.handle(ctx, "hi"))
	assert.Equal(t, "gemini> reply to hi\n", out.String())

	out.Reset()
	assert.True(t, r.handle(ctx, "/new"))
	assert.Contains(t, out.String(), "Started Chat ")

	out.Reset()
	assert.True(t, r.handle(ctx, "/list"))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[1], "*"))

	firstID := strings.Fields(lines[0])[0]
	out.Reset()
	assert.True(t, r.handle(ctx, "/switch "+firstID))
	assert.Contains(t, out.String(), "You: hi")
	assert.Contains(t, out.String(), "Gemini: reply to hi")

	out.Reset()
	assert.True(t, r.handle(ctx, "/switch 42"))
	assert.Equal(t, "No conversation \"42\"\n", out.String())

	out.Reset()
	assert.True(t, r.handle(ctx, "/switch"))
	assert.Contains(t, out.String(), "Usage")

	out.Reset()
	assert.True(t, r.handle(ctx, "/bogus"))
	assert.Contains(t, out.String(), "Unknown command /bogus")

	assert.False(t, r.handle(ctx, "/quit"))
}

func TestREPL_ProviderFailure(t *testing.T) {
	r, out := newTestREPL(t, scriptedProvider{fail: true})

	assert.True(t, r.handle(context.Background(), "hello"))
	assert.Equal(t, "gemini> "+controller.ErrorReply+"\n", out.String())
}

func TestREPL_ShowEmpty(t *testing.T) {
	r, out := newTestREPL(t, scriptedProvider{})
	r.handle(context.Background(), "/show")
	assert.Contains(t, out.String(), "No conversations yet")
}

// =============================================================================
// SERVE
// =============================================================================

func TestServe_StopsOnCancel(t *testing.T) {
	isolate(t)
	cfg := config.Default()
	cfg.Server.Addr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, newProxyServer(cfg)) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}

func TestServe_ListenError(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Addr = "256.0.0.1:99999"

	err := serve(context.Background(), newProxyServer(cfg))
	assert.Error(t, err)
}
