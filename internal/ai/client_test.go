package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"syscall"
	"testing"
	"time"
)

type ipv4Server struct {
	URL string
	srv *http.Server
	ln  net.Listener
}

func newIPv4Server(t *testing.T, handler http.Handler) *ipv4Server {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		if errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EPERM) {
			t.Skipf("skipping test: cannot open local listener (%v)", err)
		}
		t.Fatalf("listen tcp4: %v", err)
	}
	srv := &http.Server{Handler: handler}
	s := &ipv4Server{URL: "http://" + ln.Addr().String(), srv: srv, ln: ln}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			panic(fmt.Sprintf("test server serve: %v", err))
		}
	}()
	return s
}

func (s *ipv4Server) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = s.srv.Shutdown(ctx)
}

func testClient(url string, attempts int) *Client {
	return NewClient(ClientOptions{
		APIKey:      "test",
		BaseURL:     url,
		HTTPTimeout: 2 * time.Second,
		Retry:       RetryPolicy{MaxAttempts: attempts, BaseDelay: 10 * time.Millisecond, MaxDelay: 50 * time.Millisecond},
	})
}

func chatReq() ChatRequest {
	return ChatRequest{Model: "gpt-4o", Messages: []Message{{Role: RoleUser, Content: "hi"}}, MaxTokens: 1}
}

func TestChatRetriesOn429Then200(t *testing.T) {
	var calls int32
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer test" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "slow down"}})
			return
		}
		_ = json.NewEncoder(w).Encode(ChatResponse{Choices: []Choice{{Message: Message{Role: RoleAssistant, Content: "ok"}}}})
	}))
	defer srv.Close()

	resp, err := testClient(srv.URL, 3).Chat(context.Background(), chatReq())
	if err != nil {
		t.Fatalf("Chat returned error: %v", err)
	}
	if resp.Text() != "ok" || atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("unexpected response %+v after %d calls", resp, calls)
	}
}

func TestChatClassifiesErrors(t *testing.T) {
	cases := []struct {
		status int
		body   map[string]any
		check  func(error) bool
	}{
		{http.StatusUnauthorized, map[string]any{"error": map[string]any{"message": "bad key"}}, func(err error) bool { var e *AuthError; return errors.As(err, &e) }},
		{http.StatusNotFound, map[string]any{"error": map[string]any{"message": "model not found", "code": "model_not_found"}}, func(err error) bool { var e *ModelNotFoundError; return errors.As(err, &e) }},
		{http.StatusTooManyRequests, map[string]any{"error": map[string]any{"message": "no credit", "code": "insufficient_quota"}}, func(err error) bool { var e *QuotaExceededError; return errors.As(err, &e) }},
		{http.StatusBadGateway, map[string]any{"error": "upstream"}, func(err error) bool { var e *ServerError; return errors.As(err, &e) }},
	}
	for _, tc := range cases {
		srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_ = json.NewEncoder(w).Encode(tc.body)
		}))
		_, err := testClient(srv.URL, 1).Chat(context.Background(), chatReq())
		srv.Close()
		if err == nil || !tc.check(err) {
			t.Fatalf("status %d: unexpected error type %T: %v", tc.status, err, err)
		}
	}
}

func TestErrorIncludesRequestID(t *testing.T) {
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Request-Id", "req_test_123")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "bad req", "code": "bad_request"}})
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, 1).Chat(context.Background(), chatReq())
	if err == nil || !strings.Contains(err.Error(), "req_test_123") {
		t.Fatalf("expected request id in error, got: %v", err)
	}
}

func TestChatRequiresKeyAndMessages(t *testing.T) {
	c := NewClient(ClientOptions{})
	if c.BaseURL() != OpenAIBaseURL {
		t.Fatalf("default base url = %s", c.BaseURL())
	}
	if _, err := c.Chat(context.Background(), chatReq()); err == nil || !strings.Contains(err.Error(), "API key") {
		t.Fatalf("expected missing key error, got %v", err)
	}
	c = NewClient(ClientOptions{APIKey: "k"})
	if _, err := c.Chat(context.Background(), ChatRequest{Model: "gpt-4o"}); err == nil {
		t.Fatalf("expected empty messages error")
	}
}

func TestChatStreamParsesDeltas(t *testing.T) {
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":\"hello \"}}]}\n\n")
		fmt.Fprintf(w, ": keep-alive\n\n")
		fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":\"world\"}}]}\n\n")
		fmt.Fprintf(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	var out strings.Builder
	err := testClient(srv.URL, 1).ChatStream(context.Background(), chatReq(), func(d string) { out.WriteString(d) })
	if err != nil {
		t.Fatalf("ChatStream error: %v", err)
	}
	if out.String() != "hello world" {
		t.Fatalf("unexpected stream accumulation: %q", out.String())
	}
}

func TestRegistryBuildsProviders(t *testing.T) {
	for _, p := range []string{ProviderOpenAI, ProviderOpenRouter, ProviderOllama} {
		rt, err := NewRuntime(p, RuntimeConfig{APIKey: "k"})
		if err != nil || rt == nil {
			t.Fatalf("provider %s: %v", p, err)
		}
	}
	rt, _ := NewRuntime(ProviderOpenRouter, RuntimeConfig{})
	if c, ok := rt.(*Client); !ok || c.BaseURL() != OpenRouterBaseURL {
		t.Fatalf("openrouter runtime = %#v", rt)
	}
	if _, err := NewRuntime("nope", RuntimeConfig{}); err == nil {
		t.Fatalf("expected unknown provider error")
	}
}

func TestEstimateCost(t *testing.T) {
	cost, ok := EstimateCostUSD("gpt-4o", 1000, 1000)
	if !ok || cost <= 0 {
		t.Fatalf("cost = %v,%v", cost, ok)
	}
	MergeCatalog(map[string]ModelInfo{"custom": {Name: "custom", InputPerK: 1, OutputPerK: 2}})
	if cost, ok := EstimateCostUSD("custom", 500, 500); !ok || cost != 1.5 {
		t.Fatalf("custom cost = %v,%v", cost, ok)
	}
	if _, ok := EstimateCostUSD("unknown-model", 1, 1); ok {
		t.Fatalf("expected unknown model")
	}
}
