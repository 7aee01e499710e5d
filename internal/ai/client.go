package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ClientOptions configures an OpenAI-compatible chat client.
type ClientOptions struct {
	APIKey      string
	BaseURL     string
	HTTPTimeout time.Duration
	Retry       RetryPolicy
	// Referer and Title are sent as OpenRouter attribution headers when set.
	Referer string
	Title   string
}

// Client talks to any /chat/completions endpoint that follows the OpenAI
// wire format (OpenAI itself, OpenRouter, gateways).
type Client struct {
	httpClient *http.Client
	opts       ClientOptions
}

// NewClient builds a client; zero options fall back to OpenAI defaults.
func NewClient(opts ClientOptions) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = OpenAIBaseURL
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.HTTPTimeout <= 0 {
		opts.HTTPTimeout = 60 * time.Second
	}
	opts.Retry = opts.Retry.withDefaults(3, 500*time.Millisecond, 4*time.Second)
	return &Client{httpClient: &http.Client{Timeout: opts.HTTPTimeout}, opts: opts}
}

// BaseURL returns the configured endpoint root.
func (c *Client) BaseURL() string { return c.opts.BaseURL }

func (c *Client) validate(req ChatRequest) error {
	if c.opts.APIKey == "" {
		return errors.New("API key is missing (set OPENAI_API_KEY or api_key in config)")
	}
	if req.Model == "" {
		return errors.New("model cannot be empty")
	}
	if len(req.Messages) == 0 {
		return errors.New("messages cannot be empty")
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, body []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.opts.APIKey)
	req.Header.Set("Content-Type", "application/json")
	if c.opts.Referer != "" {
		req.Header.Set("HTTP-Referer", c.opts.Referer)
	}
	if c.opts.Title != "" {
		req.Header.Set("X-Title", c.opts.Title)
	}
	return req, nil
}

// Chat sends a non-streaming completion request with retries on 429, 5xx
// and transient network errors.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if err := c.validate(req); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	p := c.opts.Retry
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		httpReq, err := c.newRequest(ctx, payload)
		if err != nil {
			return nil, err
		}
		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("http request: %w", err)
			if isRetryableNetErr(err) && attempt < p.MaxAttempts {
				if err := sleepCtx(ctx, p.delay(attempt)); err != nil {
					return nil, err
				}
				continue
			}
			return nil, lastErr
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			apiErr := decodeAPIError(resp)
			resp.Body.Close()
			lastErr = classifyAPIError(apiErr, resp)
			if isRetryableStatus(resp.StatusCode) && attempt < p.MaxAttempts {
				wait := retryAfter(resp)
				if wait <= 0 {
					wait = p.delay(attempt)
				}
				if err := sleepCtx(ctx, wait); err != nil {
					return nil, err
				}
				continue
			}
			return nil, lastErr
		}
		var out ChatResponse
		err = json.NewDecoder(resp.Body).Decode(&out)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		out.RequestID = extractRequestID(resp)
		return &out, nil
	}
	return nil, lastErr
}

// ChatStream streams content deltas from an SSE response.
func (c *Client) ChatStream(ctx context.Context, req ChatRequest, onDelta func(string)) error {
	if err := c.validate(req); err != nil {
		return err
	}
	payload := map[string]any{
		"model":    req.Model,
		"messages": req.Messages,
		"stream":   true,
	}
	if req.MaxTokens > 0 {
		payload["max_tokens"] = req.MaxTokens
	}
	if req.Temperature > 0 {
		payload["temperature"] = req.Temperature
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := c.newRequest(ctx, b)
	if err != nil {
		return err
	}
	httpReq.Header.Set("Accept", "text/event-stream")
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return classifyAPIError(decodeAPIError(resp), resp)
	}

	type streamChunk struct {
		Choices []struct {
			Delta struct {
				Content string `json:"content"`
			} `json:"delta"`
		} `json:"choices"`
	}
	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := sc.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			break
		}
		var chunk streamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			onDelta(chunk.Choices[0].Delta.Content)
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("stream read: %w", err)
	}
	return nil
}
