package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OllamaClient is a chat client for a local Ollama runtime.
type OllamaClient struct {
	httpClient *http.Client
	host       string
	retry      RetryPolicy
}

// NewOllamaClient targets host (e.g. http://127.0.0.1:11434).
func NewOllamaClient(host string, httpTimeout time.Duration, retry RetryPolicy) *OllamaClient {
	if host == "" {
		host = OllamaHost
	}
	if httpTimeout <= 0 {
		httpTimeout = 60 * time.Second
	}
	return &OllamaClient{
		httpClient: &http.Client{Timeout: httpTimeout},
		host:       strings.TrimRight(host, "/"),
		retry:      retry.withDefaults(2, 200*time.Millisecond, time.Second),
	}
}

type ollamaChatRequest struct {
	Model    string         `json:"model"`
	Messages []Message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message         Message `json:"message"`
	Done            bool    `json:"done"`
	PromptEvalCount int     `json:"prompt_eval_count"`
	EvalCount       int     `json:"eval_count"`
}

func (c *OllamaClient) body(req ChatRequest, stream bool) ([]byte, error) {
	if req.Model == "" {
		return nil, errors.New("model cannot be empty")
	}
	if len(req.Messages) == 0 {
		return nil, errors.New("messages cannot be empty")
	}
	oreq := ollamaChatRequest{Model: req.Model, Messages: req.Messages, Stream: stream, Options: map[string]any{}}
	if req.Temperature > 0 {
		oreq.Options["temperature"] = req.Temperature
	}
	if req.MaxTokens > 0 {
		oreq.Options["num_predict"] = req.MaxTokens
	}
	b, err := json.Marshal(oreq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	return b, nil
}

func (c *OllamaClient) post(ctx context.Context, payload []byte) (*http.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	return c.httpClient.Do(httpReq)
}

// ollamaError maps Ollama's flat {"error": "..."} bodies. A 404 means the
// model has not been pulled.
func ollamaError(resp *http.Response) error {
	apiErr := decodeAPIError(resp)
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return &ModelNotFoundError{APIError: apiErr}
	case resp.StatusCode == http.StatusBadRequest:
		return &BadRequestError{APIError: apiErr}
	case resp.StatusCode >= 500:
		return &ServerError{APIError: apiErr}
	}
	return apiErr
}

// Chat sends a non-streaming request to /api/chat.
func (c *OllamaClient) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	payload, err := c.body(req, false)
	if err != nil {
		return nil, err
	}
	var lastErr error
	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		resp, err := c.post(ctx, payload)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = &UnreachableError{Host: c.host, Err: err}
			if isRetryableNetErr(err) && attempt < c.retry.MaxAttempts {
				if err := sleepCtx(ctx, c.retry.delay(attempt)); err != nil {
					return nil, err
				}
				continue
			}
			return nil, lastErr
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			lastErr = ollamaError(resp)
			resp.Body.Close()
			if resp.StatusCode >= 500 && attempt < c.retry.MaxAttempts {
				if err := sleepCtx(ctx, c.retry.delay(attempt)); err != nil {
					return nil, err
				}
				continue
			}
			return nil, lastErr
		}
		var oresp ollamaChatResponse
		err = json.NewDecoder(resp.Body).Decode(&oresp)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		return &ChatResponse{
			Choices: []Choice{{Message: Message{Role: RoleAssistant, Content: oresp.Message.Content}}},
			Usage: Usage{
				PromptTokens:     oresp.PromptEvalCount,
				CompletionTokens: oresp.EvalCount,
				TotalTokens:      oresp.PromptEvalCount + oresp.EvalCount,
			},
			RequestID: fmt.Sprintf("ollama_%d", time.Now().UnixNano()),
		}, nil
	}
	return nil, lastErr
}

// ChatStream reads Ollama's newline-delimited JSON stream.
func (c *OllamaClient) ChatStream(ctx context.Context, req ChatRequest, onDelta func(string)) error {
	payload, err := c.body(req, true)
	if err != nil {
		return err
	}
	resp, err := c.post(ctx, payload)
	if err != nil {
		return &UnreachableError{Host: c.host, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ollamaError(resp)
	}
	dec := json.NewDecoder(resp.Body)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var chunk ollamaChatResponse
		if err := dec.Decode(&chunk); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("decode stream: %w", err)
		}
		if chunk.Message.Content != "" {
			onDelta(chunk.Message.Content)
		}
		if chunk.Done {
			return nil
		}
	}
}
