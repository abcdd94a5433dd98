// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/pkg/errors"

	"github.com/danhackerowner-jpg/gemini-bot/internal/model"
)

// =============================================================================
// BUILD REQUEST TESTS
// =============================================================================

func TestBuildRequest_PreservesOrderAndCount(t *testing.T) {
	history := []model.Message{
		model.NewUserMessage("hi"),
		model.NewAssistantMessage("hello"),
		{Role: "bot", Text: "legacy"},
		{Role: "system", Text: "odd"},
		model.NewUserMessage("again"),
	}

	req := BuildRequest(history)
	if len(req.Contents) != len(history) {
		t.Fatalf("len(Contents) = %d, want %d", len(req.Contents), len(history))
	}

	wantRoles := []string{"user", "model", "model", "model", "user"}
	for i, c := range req.Contents {
		if c.Role != wantRoles[i] {
			t.Errorf("Contents[%d].Role = %q, want %q", i, c.Role, wantRoles[i])
		}
		if len(c.Parts) != 1 || c.Parts[0].Text != history[i].Text {
			t.Errorf("Contents[%d].Parts = %+v, want one part %q", i, c.Parts, history[i].Text)
		}
	}
}

func TestBuildRequest_WireFormat(t *testing.T) {
	data, err := json.Marshal(BuildRequest([]model.Message{model.NewUserMessage("hi")}))
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	want := `{"contents":[{"role":"user","parts":[{"text":"hi"}]}]}`
	if string(data) != want {
		t.Errorf("wire format = %s, want %s", data, want)
	}
}

func TestBuildRequest_Empty(t *testing.T) {
	data, err := json.Marshal(BuildRequest(nil))
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != `{"contents":[]}` {
		t.Errorf("empty history = %s", data)
	}
}

// =============================================================================
// PARSE RESPONSE TESTS
// =============================================================================

func TestParseResponse(t *testing.T) {
	testCases := []struct {
		name string
		body string
		want string
	}{
		{"ok", `{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`, "ok"},
		{"first candidate wins", `{"candidates":[{"content":{"parts":[{"text":"a"},{"text":"b"}]}},{"content":{"parts":[{"text":"c"}]}}]}`, "a"},
		{"missing candidates", `{}`, FallbackReply},
		{"empty candidates", `{"candidates":[]}`, FallbackReply},
		{"missing content", `{"candidates":[{}]}`, FallbackReply},
		{"missing parts", `{"candidates":[{"content":{}}]}`, FallbackReply},
		{"empty parts", `{"candidates":[{"content":{"parts":[]}}]}`, FallbackReply},
		{"missing text", `{"candidates":[{"content":{"parts":[{}]}}]}`, FallbackReply},
		{"empty text", `{"candidates":[{"content":{"parts":[{"text":""}]}}]}`, FallbackReply},
		{"text wrong type", `{"candidates":[{"content":{"parts":[{"text":42}]}}]}`, FallbackReply},
		{"candidates wrong type", `{"candidates":"nope"}`, FallbackReply},
		{"array root", `[1,2,3]`, FallbackReply},
		{"null", `null`, FallbackReply},
		{"provider error object", `{"error":{"code":400,"message":"API key not valid"}}`, FallbackReply},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseResponse([]byte(tc.body))
			if err != nil {
				t.Fatalf("ParseResponse returned error: %v", err)
			}
			if got != tc.want {
				t.Errorf("ParseResponse = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestParseResponse_NotJSON(t *testing.T) {
	for _, body := range []string{"", "<html>", "{"} {
		_, err := ParseResponse([]byte(body))
		if !errors.Is(err, ErrProviderUnavailable) {
			t.Errorf("ParseResponse(%q) error = %v, want ErrProviderUnavailable", body, err)
		}
	}
}

// =============================================================================
// ERROR MAPPING TESTS
// =============================================================================

func TestMapTransportFailure(t *testing.T) {
	if MapTransportFailure(nil) != nil {
		t.Error("nil error should map to nil")
	}

	cause := errors.New("connection refused")
	pe := MapTransportFailure(cause)
	if !errors.Is(pe, ErrProviderUnavailable) {
		t.Error("mapped error should match ErrProviderUnavailable")
	}
	if !errors.Is(pe, cause) {
		t.Error("mapped error should keep its cause")
	}

	// Already-mapped errors pass through unchanged.
	orig := &ProviderError{Status: 503, Cause: cause}
	if got := MapTransportFailure(errors.Wrap(orig, "context")); got != orig {
		t.Errorf("MapTransportFailure re-wrapped a ProviderError: %v", got)
	}
}

func TestMapTransportFailure_ContextCanceled(t *testing.T) {
	pe := MapTransportFailure(context.Canceled)
	if !errors.Is(pe, ErrProviderUnavailable) || !errors.Is(pe, context.Canceled) {
		t.Errorf("canceled context should map to a ProviderError wrapping it, got %v", pe)
	}
}

func TestProviderError_Message(t *testing.T) {
	pe := &ProviderError{Status: 500, Cause: errors.New("boom")}
	if got := pe.Error(); got != "provider unavailable (HTTP 500): boom" {
		t.Errorf("Error() = %q", got)
	}
	if got := (&ProviderError{}).Error(); got != "provider unavailable" {
		t.Errorf("Error() = %q", got)
	}
}
