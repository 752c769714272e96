package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"
)

const completionBody = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "gpt-4o-mini",
  "choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "{\"chunk_summary\":\"ok\"}"}}],
  "usage": {"prompt_tokens": 11, "completion_tokens": 7, "total_tokens": 18}
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) (*OpenAIClient, *Stats) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	stats := NewStats(time.Hour)
	client := NewOpenAIClient(Config{
		APIKey:     "test-key",
		BaseURL:    srv.URL + "/v1/",
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
		Stats:      stats,
	})
	return client, stats
}

func TestOpenAIClient_CompleteSendsJSONMode(t *testing.T) {
	var body map[string]any
	client, stats := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected authorization header %q", got)
		}
		raw, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(raw, &body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, completionBody)
	})

	resp, err := client.Complete(context.Background(), Request{
		SystemPrompt: "system",
		UserPrompt:   "user",
		Temperature:  0.1,
		MaxTokens:    4000,
		JSONMode:     true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != `{"chunk_summary":"ok"}` {
		t.Errorf("unexpected content %q", resp.Content)
	}
	if resp.PromptTokens != 11 || resp.CompletionTokens != 7 {
		t.Errorf("unexpected usage %+v", resp)
	}

	rf, _ := body["response_format"].(map[string]any)
	if rf["type"] != "json_object" {
		t.Errorf("expected json_object response format, got %v", body["response_format"])
	}
	if body["max_tokens"] != float64(4000) {
		t.Errorf("expected max_tokens=4000, got %v", body["max_tokens"])
	}
	msgs, _ := body["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}

	if snap := stats.Snapshot(); snap.Count != 1 || snap.TotalTokens != 18 {
		t.Errorf("expected one recorded call with 18 tokens, got %+v", snap)
	}
}

func TestOpenAIClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			io.WriteString(w, `{"error":{"message":"overloaded","type":"server_error"}}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, completionBody)
	})

	if _, err := client.Complete(context.Background(), Request{UserPrompt: "x"}); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 calls, got %d", calls.Load())
	}
}

func TestOpenAIClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	client, stats := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error":{"message":"bad request","type":"invalid_request_error"}}`)
	})

	if _, err := client.Complete(context.Background(), Request{UserPrompt: "x"}); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 call, got %d", calls.Load())
	}
	if snap := stats.Snapshot(); snap.Failures != 1 {
		t.Errorf("expected 1 recorded failure, got %+v", snap)
	}
}

func TestOpenAIClient_EmptyContent(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"x","object":"chat.completion","created":1,"model":"m","choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":""}}]}`)
	})

	_, err := client.Complete(context.Background(), Request{UserPrompt: "x"})
	if err != ErrEmptyResponse {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"retryable", &RetryableError{StatusCode: 429}, true},
		{"canceled", context.Canceled, false},
		{"plain", io.ErrUnexpectedEOF, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestRetryableErrorTruncatesOnRuneBoundary(t *testing.T) {
	msg := strings.Repeat("ñ", 250)
	got := (&RetryableError{StatusCode: 503, Message: msg}).Error()
	if !utf8.ValidString(got) {
		t.Fatalf("error text is not valid UTF-8: %q", got)
	}
	if want := "retryable error (status 503): " + strings.Repeat("ñ", 200) + "..."; got != want {
		t.Errorf("unexpected error text: %q", got)
	}
}
