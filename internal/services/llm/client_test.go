package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func completionServer(t *testing.T, handler func(calls int32, w http.ResponseWriter, r *http.Request)) *httptest.Server {
	t.Helper()
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler(calls.Add(1), w, r)
	}))
	t.Cleanup(server.Close)
	return server
}

func writeChoice(t *testing.T, w http.ResponseWriter, content string) {
	t.Helper()
	payload := map[string]any{
		"model": "served-model",
		"choices": []any{
			map[string]any{
				"finish_reason": "stop",
				"message":       map[string]any{"content": content},
			},
		},
		"usage": map[string]any{"prompt_tokens": 120, "completion_tokens": 30},
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

func TestCompleteSendsHeadersAndReturnsUsage(t *testing.T) {
	server := completionServer(t, func(_ int32, w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("authorization = %q", got)
		}
		if got := r.Header.Get("X-Title"); got != "captioner" {
			t.Errorf("x-title = %q", got)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Content != "list terms" {
			t.Errorf("unexpected messages %+v", req.Messages)
		}
		if req.ResponseFormat != nil {
			t.Errorf("free-text completion should not request json, got %v", req.ResponseFormat)
		}
		writeChoice(t, w, "Khaleesi, Westeros")
	})

	client := NewClient(Config{APIKey: "secret", BaseURL: server.URL, Model: "demo", Title: "captioner"})
	completion, err := client.Complete(context.Background(), "be brief", "list terms")
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if completion.Content != "Khaleesi, Westeros" {
		t.Fatalf("content = %q", completion.Content)
	}
	if completion.TotalTokens() != 150 || completion.Model != "served-model" {
		t.Fatalf("unexpected usage %+v", completion)
	}
}

func TestCompleteRequiresAPIKey(t *testing.T) {
	client := NewClient(Config{Model: "demo"})
	if _, err := client.Complete(context.Background(), "", "hello"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		content string
		wantErr bool
	}{
		{name: "plain", status: http.StatusOK, content: `{"ok":true}`},
		{name: "code fence", status: http.StatusOK, content: "```json\n{\"ok\":true}\n```"},
		{name: "not ok", status: http.StatusOK, content: `{"ok":false}`, wantErr: true},
		{name: "unauthorized", status: http.StatusUnauthorized, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := completionServer(t, func(_ int32, w http.ResponseWriter, _ *http.Request) {
				if tt.status != http.StatusOK {
					w.WriteHeader(tt.status)
					_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
					return
				}
				writeChoice(t, w, tt.content)
			})
			client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo"})
			err := client.HealthCheck(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("HealthCheck err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCompleteRetriesOnHTTP429(t *testing.T) {
	var seen atomic.Int32
	server := completionServer(t, func(calls int32, w http.ResponseWriter, _ *http.Request) {
		seen.Store(calls)
		if calls == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		writeChoice(t, w, "Dothraki")
	})

	var slept []time.Duration
	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo"},
		WithSleeper(func(d time.Duration) { slept = append(slept, d) }),
		WithRetryBackoff(0, 10*time.Second),
	)
	completion, err := client.Complete(context.Background(), "", "terms")
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if completion.Content != "Dothraki" || seen.Load() != 2 {
		t.Fatalf("content=%q calls=%d", completion.Content, seen.Load())
	}
	if len(slept) != 1 || slept[0] != time.Second {
		t.Fatalf("expected single sleep of 1s, got %v", slept)
	}
}

func TestCompleteRetriesOnEmptyContent(t *testing.T) {
	var seen atomic.Int32
	server := completionServer(t, func(calls int32, w http.ResponseWriter, _ *http.Request) {
		seen.Store(calls)
		content := ""
		if calls >= 3 {
			content = "Valyrian"
		}
		writeChoice(t, w, content)
	})

	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo"},
		WithRetryBackoff(0, 0),
		WithSleeper(func(time.Duration) {}),
	)
	completion, err := client.Complete(context.Background(), "", "terms")
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if completion.Content != "Valyrian" || seen.Load() != 3 {
		t.Fatalf("content=%q calls=%d", completion.Content, seen.Load())
	}
}

func TestCompleteDoesNotRetryClientErrors(t *testing.T) {
	var seen atomic.Int32
	server := completionServer(t, func(calls int32, w http.ResponseWriter, _ *http.Request) {
		seen.Store(calls)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("bad model"))
	})

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo"}, WithSleeper(func(time.Duration) {}))
	_, err := client.Complete(context.Background(), "", "terms")
	if err == nil || !strings.Contains(err.Error(), "http 400") {
		t.Fatalf("expected http 400 error, got %v", err)
	}
	if seen.Load() != 1 {
		t.Fatalf("expected one call, got %d", seen.Load())
	}
}

func TestStripCodeFence(t *testing.T) {
	tests := map[string]string{
		"Khaleesi,Westeros":                      "Khaleesi,Westeros",
		"```\nKhaleesi,Westeros\n```":            "Khaleesi,Westeros",
		"```text\nKhaleesi, Westeros\n```":       "Khaleesi, Westeros",
		"```json\n{\"ok\":true}\n```":            `{"ok":true}`,
		"  ```\nJon Snow, Iron Throne\n```  \n": "Jon Snow, Iron Throne",
	}
	for input, want := range tests {
		if got := StripCodeFence(input); got != want {
			t.Errorf("StripCodeFence(%q) = %q, want %q", input, got, want)
		}
	}
}
