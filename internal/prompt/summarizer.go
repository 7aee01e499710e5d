package prompt

import (
	"context"
	"errors"
	"fmt"

	"github.com/KaramelBytes/spendloom-cli/internal/ai"
	"github.com/KaramelBytes/spendloom-cli/internal/analysis"
)

// ErrEmptyResponse is returned when the model sends no choices.
var ErrEmptyResponse = errors.New("no content returned from model")

// Summarizer sends prompts to a runtime. It holds no global client; callers
// build the runtime from config per invocation.
type Summarizer struct {
	Runtime     ai.Runtime
	Model       string
	MaxTokens   int
	Temperature float64
}

// Request builds the chat request for p.
func (s *Summarizer) Request(p Prompt) ai.ChatRequest {
	model := s.Model
	if model == "" {
		model = ai.DefaultModel
	}
	return ai.ChatRequest{
		Model:       model,
		Messages:    p.Messages(),
		MaxTokens:   s.MaxTokens,
		Temperature: s.Temperature,
	}
}

// Complete sends p and returns the raw response.
func (s *Summarizer) Complete(ctx context.Context, p Prompt) (*ai.ChatResponse, error) {
	if s.Runtime == nil {
		return nil, errors.New("no runtime configured")
	}
	resp, err := s.Runtime.Chat(ctx, s.Request(p))
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}
	return resp, nil
}

func (s *Summarizer) text(ctx context.Context, p Prompt) (string, error) {
	resp, err := s.Complete(ctx, p)
	if err != nil {
		return "", fmt.Errorf("%s prompt: %w", p.Kind, err)
	}
	return resp.Text(), nil
}

// Summarize returns the five-bullet strategic summary.
func (s *Summarizer) Summarize(ctx context.Context, res *analysis.Result) (string, error) {
	return s.text(ctx, BuildSummary(res))
}

// Risk returns recommendations for high-risk groups.
func (s *Summarizer) Risk(ctx context.Context, res *analysis.Result) (string, error) {
	p, err := BuildRisk(res)
	if err != nil {
		return "", err
	}
	return s.text(ctx, p)
}

// Ask answers question against the insights.
func (s *Summarizer) Ask(ctx context.Context, res *analysis.Result, question string) (string, error) {
	p, err := BuildAsk(res, question)
	if err != nil {
		return "", err
	}
	return s.text(ctx, p)
}
