package ai

import (
	"fmt"
	"sort"
	"time"
)

// RuntimeFactory builds a Runtime from RuntimeConfig.
type RuntimeFactory func(RuntimeConfig) Runtime

// RuntimeConfig carries the knobs shared by all runtimes.
type RuntimeConfig struct {
	HTTPTimeout time.Duration
	Retry       RetryPolicy
	// Hosted providers
	APIKey  string
	BaseURL string
	// Ollama
	Host string
}

var registry = map[string]RuntimeFactory{}

// RegisterRuntime registers a provider name with its factory.
func RegisterRuntime(name string, f RuntimeFactory) { registry[name] = f }

// GetRuntime creates a Runtime for the given provider if registered.
func GetRuntime(name string, cfg RuntimeConfig) (Runtime, bool) {
	if f, ok := registry[name]; ok {
		return f(cfg), true
	}
	return nil, false
}

// NewRuntime is GetRuntime with an error for unknown providers.
func NewRuntime(name string, cfg RuntimeConfig) (Runtime, error) {
	rt, ok := GetRuntime(name, cfg)
	if !ok {
		return nil, fmt.Errorf("unknown provider %q (available: %v)", name, Providers())
	}
	return rt, nil
}

// Providers lists registered provider names.
func Providers() []string {
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func hosted(defaultBase string) RuntimeFactory {
	return func(c RuntimeConfig) Runtime {
		base := c.BaseURL
		if base == "" {
			base = defaultBase
		}
		return NewClient(ClientOptions{
			APIKey:      c.APIKey,
			BaseURL:     base,
			HTTPTimeout: c.HTTPTimeout,
			Retry:       c.Retry,
			Referer:     "https://github.com/KaramelBytes/spendloom-cli",
			Title:       "Spendloom CLI",
		})
	}
}

func init() {
	RegisterRuntime(ProviderOpenAI, hosted(OpenAIBaseURL))
	RegisterRuntime(ProviderOpenRouter, hosted(OpenRouterBaseURL))
	RegisterRuntime(ProviderOllama, func(c RuntimeConfig) Runtime {
		return NewOllamaClient(c.Host, c.HTTPTimeout, c.Retry)
	})
}
