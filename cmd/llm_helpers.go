package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/KaramelBytes/spendloom-cli/internal/ai"
	cfgpkg "github.com/KaramelBytes/spendloom-cli/internal/config"
	"github.com/KaramelBytes/spendloom-cli/internal/utils"
)

type runtimeOptions struct {
	ProviderFlag string
	OllamaHost   string
}

// resolveProvider maps flag/config aliases onto a registered provider name.
func resolveProvider(cfg *cfgpkg.Global, flag string) string {
	name := strings.ToLower(strings.TrimSpace(flag))
	if name == "" && cfg != nil && cfg.DefaultProvider != "" {
		name = strings.ToLower(cfg.DefaultProvider)
	}
	switch name {
	case "":
		return ai.ProviderOpenAI
	case "local":
		return ai.ProviderOllama
	}
	return name
}

func buildRuntime(cfg *cfgpkg.Global, opts runtimeOptions) (ai.Runtime, string, error) {
	providerName := resolveProvider(cfg, opts.ProviderFlag)
	var rc ai.RuntimeConfig
	if cfg != nil {
		rc = cfg.RuntimeConfig(providerName)
	}
	if rc.APIKey == "" {
		switch providerName {
		case ai.ProviderOpenRouter:
			rc.APIKey = os.Getenv("OPENROUTER_API_KEY")
		case ai.ProviderOpenAI:
			rc.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}
	if providerName == ai.ProviderOllama {
		if h := strings.TrimSpace(opts.OllamaHost); h != "" {
			rc.Host = h
		}
		if rc.Host == "" {
			rc.Host = ai.OllamaHost
		}
	}
	rt, err := ai.NewRuntime(providerName, rc)
	if err != nil {
		return nil, providerName, err
	}
	return rt, providerName, nil
}

func selectModel(cfg *cfgpkg.Global, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if cfg != nil && cfg.DefaultModel != "" {
		return cfg.DefaultModel
	}
	return ai.DefaultModel
}

func enforceBudget(estCost, limit float64) error {
	if limit > 0 && estCost > 0 && estCost > limit {
		return fmt.Errorf("✗ Estimated cost ~$%.4f exceeds budget limit ~$%.4f", estCost, limit)
	}
	return nil
}

// explainLLMError adds a user-facing hint to typed provider errors.
func explainLLMError(err error, providerName, model string) error {
	var (
		authErr *ai.AuthError
		rlErr   *ai.RateLimitError
		nfErr   *ai.ModelNotFoundError
		brErr   *ai.BadRequestError
		qErr    *ai.QuotaExceededError
		sErr    *ai.ServerError
		unreach *ai.UnreachableError
	)
	switch {
	case errors.As(err, &unreach):
		if providerName == ai.ProviderOllama {
			return fmt.Errorf("Ollama not reachable at %s. Ensure Ollama is running and the host is correct (SPENDLOOM_OLLAMA_HOST or config 'ollama_host'). Detail: %w", unreach.Host, err)
		}
		return fmt.Errorf("endpoint unreachable. Check your network and provider settings: %w", err)
	case errors.As(err, &authErr):
		return fmt.Errorf("authentication failed: set OPENAI_API_KEY (or OPENROUTER_API_KEY) or add api_key in ~/.spendloom/config.yaml: %w", err)
	case errors.As(err, &rlErr):
		if rlErr.RetryAfter > 0 {
			return fmt.Errorf("rate limited, try again in ~%ds: %w", int(rlErr.RetryAfter.Seconds()), err)
		}
		return fmt.Errorf("rate limited by provider, please retry: %w", err)
	case errors.As(err, &nfErr):
		if providerName == ai.ProviderOllama {
			return fmt.Errorf("local model not available (%s). Install it with 'ollama pull %s' or choose another model. %w", model, model, err)
		}
		return fmt.Errorf("model not found (%s). Verify the model name or check 'spendloom models show': %w", model, err)
	case errors.As(err, &brErr):
		return fmt.Errorf("request invalid. Try reducing max-tokens: %w", err)
	case errors.As(err, &qErr):
		return fmt.Errorf("quota/billing issue. Check your provider account: %w", err)
	case errors.As(err, &sErr):
		return fmt.Errorf("provider appears unavailable (server error). Please retry later: %w", err)
	default:
		return fmt.Errorf("generation failed: %w", err)
	}
}

type streamingOptions struct {
	Enabled     bool
	Quiet       bool
	Writer      io.Writer
	DeltaWriter io.Writer
}

// handleStreaming streams req when enabled and supported. It returns the
// collected text and whether streaming handled the request.
func handleStreaming(ctx context.Context, runtime ai.Runtime, req ai.ChatRequest, opts streamingOptions) (string, bool, error) {
	if !opts.Enabled {
		return "", false, nil
	}
	logWriter := opts.Writer
	if logWriter == nil {
		logWriter = os.Stderr
	}
	deltaWriter := opts.DeltaWriter
	if deltaWriter == nil {
		deltaWriter = os.Stdout
	}

	sr, ok := runtime.(ai.StreamRuntime)
	if !ok {
		if !opts.Quiet {
			fmt.Fprintln(logWriter, "⚠ Streaming not supported for this provider; falling back to non-streaming.")
		}
		return "", false, nil
	}
	if !opts.Quiet {
		fmt.Fprintln(logWriter, "(streaming)")
	}
	var sb strings.Builder
	if err := sr.ChatStream(ctx, req, func(delta string) {
		sb.WriteString(delta)
		fmt.Fprint(deltaWriter, delta)
	}); err != nil {
		return sb.String(), true, fmt.Errorf("streaming generation failed: %w", err)
	}
	fmt.Fprintln(deltaWriter)
	return sb.String(), true, nil
}

type outputOptions struct {
	JSON         bool
	Quiet        bool
	Streamed     bool
	Kind         string
	Source       string
	Model        string
	MaxTokens    int
	Temperature  float64
	PromptTokens int
	OutputPath   string
	OutputFormat string
	Writer       io.Writer
}

func (o outputOptions) envelope(content string) map[string]any {
	return map[string]any{
		"kind":          o.Kind,
		"source":        o.Source,
		"model":         o.Model,
		"max_tokens":    o.MaxTokens,
		"temperature":   o.Temperature,
		"prompt_tokens": o.PromptTokens,
		"content":       content,
	}
}

func formatAndWriteOutput(content string, opts outputOptions) error {
	w := opts.Writer
	if w == nil {
		w = os.Stdout
	}

	switch {
	case opts.JSON:
		b, err := json.MarshalIndent(opts.envelope(content), "", "  ")
		if err != nil {
			return fmt.Errorf("marshal output: %w", err)
		}
		fmt.Fprintln(w, string(b))
	case opts.Streamed:
		// already printed as it arrived
	case opts.Quiet:
		fmt.Fprintln(w, content)
	default:
		fmt.Fprintln(w, "\n=== AI Response ===")
		fmt.Fprintln(w, content)
	}

	if opts.OutputPath == "" {
		return nil
	}
	switch opts.OutputFormat {
	case "", "text", "markdown", "md":
		if err := utils.SafeWriteFile(opts.OutputPath, []byte(content)); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
	case "json":
		b, err := json.MarshalIndent(opts.envelope(content), "", "  ")
		if err != nil {
			return fmt.Errorf("marshal output: %w", err)
		}
		if err := utils.SafeWriteFile(opts.OutputPath, b); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
	default:
		return fmt.Errorf("unsupported --format: %s (use text|markdown|json)", opts.OutputFormat)
	}
	if !opts.Quiet {
		fmt.Fprintf(os.Stderr, "\n💾 Saved output to %s\n", opts.OutputPath)
	}
	return nil
}
