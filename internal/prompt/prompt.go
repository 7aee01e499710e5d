// Package prompt turns analysis results into LLM chat prompts.
package prompt

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/KaramelBytes/spendloom-cli/internal/ai"
	"github.com/KaramelBytes/spendloom-cli/internal/analysis"
	"github.com/KaramelBytes/spendloom-cli/internal/utils"
)

// Prompt kinds.
const (
	KindSummary = "summary"
	KindRisk    = "risk"
	KindAsk     = "ask"
)

// TopItems is how many variance and fragmentation rows a prompt carries.
const TopItems = 5

var (
	ErrNoHighRisk    = errors.New("no high-risk material groups")
	ErrEmptyQuestion = errors.New("question is empty")
	ErrUnknownKind   = errors.New("unknown prompt kind")
)

// Prompt is a system/user message pair.
type Prompt struct {
	Kind   string `json:"kind"`
	System string `json:"system"`
	User   string `json:"user"`
}

// Messages returns the chat messages for p.
func (p Prompt) Messages() []ai.Message {
	return []ai.Message{
		{Role: ai.RoleSystem, Content: p.System},
		{Role: ai.RoleUser, Content: p.User},
	}
}

// Tokens estimates the prompt size.
func (p Prompt) Tokens() int {
	return utils.CountTokens(p.System) + utils.CountTokens(p.User)
}

// String renders both messages, used for dry runs.
func (p Prompt) String() string {
	return "[SYSTEM]\n" + p.System + "\n\n[USER]\n" + p.User
}

type varianceItem struct {
	ShortText   string  `json:"short_text"`
	VariancePct float64 `json:"variance_pct"`
}

type fragmentItem struct {
	ShortText       string `json:"short_text"`
	UniqueSuppliers int    `json:"unique_suppliers"`
}

type riskItem struct {
	MaterialGroup   string `json:"material_group"`
	UniqueSuppliers int    `json:"unique_suppliers"`
}

// compact renders v as single-line JSON without HTML escaping, so ">" in
// insight text reaches the model as written.
func compact(v any) string {
	var b bytes.Buffer
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "[]"
	}
	return strings.TrimRight(b.String(), "\n")
}

func topVariance(res *analysis.Result) string {
	items := []varianceItem{}
	for _, v := range res.TopVariance(TopItems) {
		items = append(items, varianceItem{ShortText: v.ShortText, VariancePct: math.Round(v.VariancePct*10) / 10})
	}
	return compact(items)
}

func topFragmentation(res *analysis.Result) string {
	items := []fragmentItem{}
	for _, f := range res.TopFragmentation(TopItems) {
		items = append(items, fragmentItem{ShortText: f.ShortText, UniqueSuppliers: f.UniqueSuppliers})
	}
	return compact(items)
}

func insights(res *analysis.Result) string {
	if len(res.Insights) == 0 {
		return "[]"
	}
	return compact(res.Insights)
}

// BuildSummary asks for a five-bullet strategic summary of res.
func BuildSummary(res *analysis.Result) Prompt {
	var b strings.Builder
	b.WriteString("You are a senior procurement consultant. Based on the data below, generate a 5-bullet strategic summary:\n")
	fmt.Fprintf(&b, "- Core insights: %s\n", insights(res))
	fmt.Fprintf(&b, "- Top price variance items: %s\n", topVariance(res))
	fmt.Fprintf(&b, "- Top fragmented items: %s\n\n", topFragmentation(res))
	b.WriteString("Use business-friendly language. Suggest opportunities or risks. Avoid technical jargon.")
	return Prompt{
		Kind:   KindSummary,
		System: "You are a helpful procurement assistant.",
		User:   b.String(),
	}
}

// BuildRisk asks for recommendations on the High concentration groups.
// It returns ErrNoHighRisk when there are none.
func BuildRisk(res *analysis.Result) (Prompt, error) {
	groups := res.HighRisk()
	if len(groups) == 0 {
		return Prompt{}, ErrNoHighRisk
	}
	items := make([]riskItem, 0, len(groups))
	for _, g := range groups {
		items = append(items, riskItem{MaterialGroup: g.MaterialGroup, UniqueSuppliers: g.UniqueSuppliers})
	}
	return Prompt{
		Kind:   KindRisk,
		System: "You are a senior procurement advisor.",
		User: "You are a senior procurement strategist. Review these high-risk material groups and write a 5-bullet strategic recommendation:\n" +
			compact(items),
	}, nil
}

// BuildAsk answers a free-form question against the insights.
func BuildAsk(res *analysis.Result, question string) (Prompt, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Prompt{}, ErrEmptyQuestion
	}
	var b strings.Builder
	fmt.Fprintf(&b, "You are a helpful procurement analyst. Based on these insights:\n%s\n\n", insights(res))
	b.WriteString("And data flags:\n")
	fmt.Fprintf(&b, "- Top price variance items: %s\n", topVariance(res))
	fmt.Fprintf(&b, "- Top fragmented items: %s\n\n", topFragmentation(res))
	fmt.Fprintf(&b, "Answer the user's question:\n%s", question)
	return Prompt{
		Kind:   KindAsk,
		System: "You are a procurement data assistant.",
		User:   b.String(),
	}, nil
}

// Build dispatches on kind. question is only used by KindAsk.
func Build(kind string, res *analysis.Result, question string) (Prompt, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", KindSummary:
		return BuildSummary(res), nil
	case KindRisk:
		return BuildRisk(res)
	case KindAsk:
		return BuildAsk(res, question)
	default:
		return Prompt{}, fmt.Errorf("%w: %s (use summary|risk|ask)", ErrUnknownKind, kind)
	}
}
