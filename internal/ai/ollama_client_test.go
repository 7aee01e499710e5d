package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"
)

func TestOllamaChatSuccess(t *testing.T) {
	var got ollamaChatRequest
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message":           map[string]any{"role": "assistant", "content": "hello from ollama"},
			"done":              true,
			"prompt_eval_count": 12,
			"eval_count":        3,
		})
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, 2*time.Second, RetryPolicy{MaxAttempts: 1})
	msgs := []Message{{Role: RoleSystem, Content: "You are a procurement data assistant."}, {Role: RoleUser, Content: "hi"}}
	resp, err := c.Chat(context.Background(), ChatRequest{Model: "llama3.1:8b-instruct", Messages: msgs, MaxTokens: 16})
	if err != nil {
		t.Fatalf("Chat error: %v", err)
	}
	if resp.Text() != "hello from ollama" || resp.Usage.TotalTokens != 15 || resp.RequestID == "" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != RoleSystem || got.Options["num_predict"] != float64(16) {
		t.Fatalf("request not forwarded intact: %+v", got)
	}
}

func TestOllamaMissingModelAndEmptyMessages(t *testing.T) {
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": "model 'x' not found, try pulling it first"})
	}))
	defer srv.Close()
	c := NewOllamaClient(srv.URL, 2*time.Second, RetryPolicy{MaxAttempts: 1})
	_, err := c.Chat(context.Background(), ChatRequest{Model: "x", Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	var mnf *ModelNotFoundError
	if !errors.As(err, &mnf) {
		t.Fatalf("expected ModelNotFoundError, got %T %v", err, err)
	}
	if _, err := c.Chat(context.Background(), ChatRequest{Model: "x"}); err == nil || err.Error() != "messages cannot be empty" {
		t.Fatalf("expected empty messages error, got %v", err)
	}
}

func TestOllamaStream(t *testing.T) {
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"a"},"done":false}`)
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"b"},"done":true}`)
	}))
	defer srv.Close()
	c := NewOllamaClient(srv.URL, 2*time.Second, RetryPolicy{})
	out := ""
	err := c.ChatStream(context.Background(), ChatRequest{Model: "m", Messages: []Message{{Role: RoleUser, Content: "hi"}}}, func(s string) { out += s })
	if err != nil || out != "ab" {
		t.Fatalf("stream = %q, %v", out, err)
	}
}

func TestOllamaUnreachable(t *testing.T) {
	c := NewOllamaClient("http://127.0.0.1:1", time.Second, RetryPolicy{MaxAttempts: 1})
	_, err := c.Chat(context.Background(), ChatRequest{Model: "m", Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	var ue *UnreachableError
	if !errors.As(err, &ue) {
		t.Fatalf("expected UnreachableError, got %T %v", err, err)
	}
}
