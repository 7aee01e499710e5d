package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/KaramelBytes/spendloom-cli/internal/ai"
	cfgpkg "github.com/KaramelBytes/spendloom-cli/internal/config"
)

type stubRuntime struct{}

func (stubRuntime) Chat(context.Context, ai.ChatRequest) (*ai.ChatResponse, error) {
	return nil, nil
}

type stubStreamRuntime struct {
	called int
	err    error
}

func (s *stubStreamRuntime) Chat(context.Context, ai.ChatRequest) (*ai.ChatResponse, error) {
	return nil, nil
}

func (s *stubStreamRuntime) ChatStream(ctx context.Context, req ai.ChatRequest, onDelta func(string)) error {
	s.called++
	onDelta("chunk-1 ")
	onDelta("chunk-2")
	return s.err
}

func TestSelectModelPrecedence(t *testing.T) {
	c := &cfgpkg.Global{DefaultModel: "cfg-model"}
	if got := selectModel(c, "cli-model"); got != "cli-model" {
		t.Fatalf("expected CLI model, got %q", got)
	}
	if got := selectModel(c, ""); got != "cfg-model" {
		t.Fatalf("expected config model, got %q", got)
	}
	if got := selectModel(nil, ""); got != ai.DefaultModel {
		t.Fatalf("expected fallback model, got %q", got)
	}
}

func TestResolveProvider(t *testing.T) {
	if got := resolveProvider(nil, ""); got != ai.ProviderOpenAI {
		t.Fatalf("default provider = %q", got)
	}
	if got := resolveProvider(nil, "local"); got != ai.ProviderOllama {
		t.Fatalf("local alias = %q", got)
	}
	c := &cfgpkg.Global{DefaultProvider: "OpenRouter"}
	if got := resolveProvider(c, ""); got != ai.ProviderOpenRouter {
		t.Fatalf("config provider = %q", got)
	}
	if _, _, err := buildRuntime(nil, runtimeOptions{ProviderFlag: "nope"}); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
	rt, name, err := buildRuntime(nil, runtimeOptions{ProviderFlag: "ollama", OllamaHost: "http://127.0.0.1:1"})
	if err != nil || name != ai.ProviderOllama || rt == nil {
		t.Fatalf("ollama runtime: %v %q", err, name)
	}
}

func TestEnforceBudget(t *testing.T) {
	if err := enforceBudget(0.0, 1.0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := enforceBudget(2.0, 0); err != nil {
		t.Fatalf("no limit should pass: %v", err)
	}
	if err := enforceBudget(2.0, 1.0); err == nil {
		t.Fatal("expected error when cost exceeds budget")
	}
}

func TestHandleStreamingHappyPath(t *testing.T) {
	runtime := &stubStreamRuntime{}
	buf := &bytes.Buffer{}
	delta := &bytes.Buffer{}

	text, handled, err := handleStreaming(context.Background(), runtime, ai.ChatRequest{}, streamingOptions{
		Enabled:     true,
		Writer:      buf,
		DeltaWriter: delta,
	})
	if err != nil {
		t.Fatalf("handleStreaming returned error: %v", err)
	}
	if !handled || runtime.called != 1 {
		t.Fatalf("handled=%v called=%d", handled, runtime.called)
	}
	if text != "chunk-1 chunk-2" || !strings.Contains(delta.String(), "chunk-2") {
		t.Fatalf("text=%q delta=%q", text, delta.String())
	}
	if out := buf.String(); !strings.Contains(out, "(streaming)") {
		t.Fatalf("expected streaming log output, got %q", out)
	}
}

func TestHandleStreamingFallbackAndError(t *testing.T) {
	buf := &bytes.Buffer{}
	_, handled, err := handleStreaming(context.Background(), stubRuntime{}, ai.ChatRequest{}, streamingOptions{
		Enabled: true,
		Writer:  buf,
	})
	if err != nil || handled {
		t.Fatalf("expected fallback, handled=%v err=%v", handled, err)
	}
	if out := buf.String(); !strings.Contains(out, "Streaming not supported") {
		t.Fatalf("expected fallback message, got %q", out)
	}

	boom := errors.New("boom")
	_, handled, err = handleStreaming(context.Background(), &stubStreamRuntime{err: boom}, ai.ChatRequest{}, streamingOptions{
		Enabled:     true,
		Quiet:       true,
		DeltaWriter: &bytes.Buffer{},
	})
	if !handled || !errors.Is(err, boom) {
		t.Fatalf("handled=%v err=%v", handled, err)
	}
}

func TestExplainLLMErrorHints(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{&ai.AuthError{APIError: &ai.APIError{StatusCode: 401}}, "authentication failed"},
		{&ai.RateLimitError{APIError: &ai.APIError{StatusCode: 429}, RetryAfter: 3 * time.Second}, "try again in ~3s"},
		{&ai.UnreachableError{Host: "http://127.0.0.1:1", Err: errors.New("refused")}, "Ollama not reachable"},
		{errors.New("other"), "generation failed"},
	}
	for _, tc := range cases {
		got := explainLLMError(tc.err, ai.ProviderOllama, "m")
		if !strings.Contains(got.Error(), tc.want) {
			t.Fatalf("explain(%T) = %q, want %q", tc.err, got, tc.want)
		}
		if !errors.Is(got, tc.err) {
			t.Fatalf("explain(%T) does not wrap the cause", tc.err)
		}
	}
}

func TestFormatAndWriteOutputJSONFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "summary.json")
	w := &bytes.Buffer{}
	err := formatAndWriteOutput("- bullet", outputOptions{
		Quiet:        true,
		Kind:         "summary",
		Source:       "po.xlsx",
		Model:        "gpt-4o",
		OutputPath:   path,
		OutputFormat: "json",
		Writer:       w,
	})
	if err != nil {
		t.Fatalf("write output: %v", err)
	}
	if strings.TrimSpace(w.String()) != "- bullet" {
		t.Fatalf("stdout = %q", w.String())
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if m["content"] != "- bullet" || m["source"] != "po.xlsx" {
		t.Fatalf("envelope = %v", m)
	}
	if err := formatAndWriteOutput("x", outputOptions{Quiet: true, OutputPath: path, OutputFormat: "pdf", Writer: w}); err == nil {
		t.Fatalf("expected unsupported format error")
	}
}
