package ai

import (
	"encoding/json"
	"os"
	"sync"
)

// ModelInfo carries context size and pricing used for budget warnings.
// Prices are USD per 1K tokens and only approximate.
type ModelInfo struct {
	Name          string
	ContextTokens int
	InputPerK     float64
	OutputPerK    float64
}

// DefaultModel is the chat model used when none is configured.
const DefaultModel = "gpt-4o"

var (
	catalogMu sync.RWMutex
	models    = builtinCatalog()
)

func builtinCatalog() map[string]ModelInfo {
	entries := []ModelInfo{
		// OpenAI direct
		{"gpt-4o", 128000, 0.0025, 0.01},
		{"gpt-4o-mini", 128000, 0.00015, 0.0006},
		{"gpt-4.1", 1047576, 0.002, 0.008},
		{"gpt-4.1-mini", 1047576, 0.0004, 0.0016},
		// OpenRouter names
		{"openai/gpt-4o", 128000, 0.0025, 0.01},
		{"openai/gpt-4o-mini", 128000, 0.00015, 0.0006},
		{"anthropic/claude-3.5-sonnet", 200000, 0.003, 0.015},
		{"google/gemini-1.5-flash", 1000000, 0.000075, 0.0003},
		{"meta-llama/llama-3.1-70b-instruct", 131072, 0.0004, 0.0004},
		// Local Ollama tags
		{"llama3.1:8b-instruct", 8192, 0, 0},
		{"mistral:7b-instruct", 8192, 0, 0},
		{"qwen2.5:7b-instruct", 32768, 0, 0},
	}
	m := make(map[string]ModelInfo, len(entries))
	for _, e := range entries {
		m[e.Name] = e
	}
	return m
}

// LookupModel returns ModelInfo and ok flag.
func LookupModel(name string) (ModelInfo, bool) {
	catalogMu.RLock()
	defer catalogMu.RUnlock()
	mi, ok := models[name]
	return mi, ok
}

// EstimateCostUSD estimates cost for the given token counts. Unknown models
// return 0,false.
func EstimateCostUSD(model string, promptTokens, completionTokens int) (float64, bool) {
	mi, ok := LookupModel(model)
	if !ok {
		return 0, false
	}
	return float64(promptTokens)/1000*mi.InputPerK + float64(completionTokens)/1000*mi.OutputPerK, true
}

// LoadCatalogFromJSON reads a map[string]ModelInfo from path, e.g.
// {"gpt-4o":{"Name":"gpt-4o","ContextTokens":128000,"InputPerK":0.0025,"OutputPerK":0.01}}
func LoadCatalogFromJSON(path string) (map[string]ModelInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var m map[string]ModelInfo
	if err := json.NewDecoder(f).Decode(&m); err != nil {
		return nil, err
	}
	return m, nil
}

// OverrideCatalog replaces the in-memory catalog.
func OverrideCatalog(m map[string]ModelInfo) {
	if m == nil {
		return
	}
	catalogMu.Lock()
	models = m
	catalogMu.Unlock()
}

// MergeCatalog adds or replaces entries.
func MergeCatalog(m map[string]ModelInfo) {
	catalogMu.Lock()
	defer catalogMu.Unlock()
	for k, v := range m {
		models[k] = v
	}
}

// Catalog returns a copy of the current catalog.
func Catalog() map[string]ModelInfo {
	catalogMu.RLock()
	defer catalogMu.RUnlock()
	out := make(map[string]ModelInfo, len(models))
	for k, v := range models {
		out[k] = v
	}
	return out
}
