package cmd

import (
	"context"
	"crypto/sha1"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/KaramelBytes/spendloom-cli/internal/ai"
	"github.com/KaramelBytes/spendloom-cli/internal/analysis"
	"github.com/KaramelBytes/spendloom-cli/internal/archive"
	"github.com/KaramelBytes/spendloom-cli/internal/log"
	"github.com/KaramelBytes/spendloom-cli/internal/prompt"
	"github.com/spf13/cobra"
)

// llmFlags are shared by summarize and ask.
type llmFlags struct {
	Model       string
	Provider    string
	MaxTokens   int
	Temp        float64
	DryRun      bool
	Quiet       bool
	JSON        bool
	BudgetLimit float64
	OutputPath  string
	OutputFmt   string
	Stream      bool
	OllamaHost  string
	TimeoutSec  int
	RunID       string
}

func (f *llmFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.Model, "model", "", "override model (default from config, gpt-4o)")
	cmd.Flags().StringVar(&f.Provider, "provider", "", "LLM provider: openai|openrouter|ollama (default from config)")
	cmd.Flags().IntVar(&f.MaxTokens, "max-tokens", 0, "max tokens for response")
	cmd.Flags().Float64Var(&f.Temp, "temp", 0, "sampling temperature")
	cmd.Flags().BoolVar(&f.DryRun, "dry-run", false, "build the prompt and print it with a token estimate without calling the API")
	cmd.Flags().BoolVar(&f.Quiet, "quiet", false, "suppress non-essential output")
	cmd.Flags().BoolVar(&f.JSON, "json", false, "emit response as JSON to stdout")
	cmd.Flags().Float64Var(&f.BudgetLimit, "budget-limit", 0, "fail if estimated max cost (USD) exceeds this budget")
	cmd.Flags().StringVar(&f.OutputPath, "output", "", "optional path to write the response (skips in --dry-run)")
	cmd.Flags().StringVar(&f.OutputFmt, "format", "text", "output format: text|markdown|json")
	cmd.Flags().BoolVar(&f.Stream, "stream", false, "stream responses if supported by the provider")
	cmd.Flags().StringVar(&f.OllamaHost, "ollama-host", "", "override Ollama host (e.g., http://127.0.0.1:11434)")
	cmd.Flags().IntVar(&f.TimeoutSec, "timeout-sec", 180, "request timeout in seconds")
	cmd.Flags().StringVar(&f.RunID, "run-id", "", "archived run id to attach the response to")
}

// reset clears values that would otherwise leak between invocations in
// the same process.
func (f *llmFlags) reset() {
	*f = llmFlags{OutputFmt: "text", TimeoutSec: 180}
}

var (
	sumInput inputFlags
	sumLLM   llmFlags
	sumKind  string
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize <file>",
	Short: "Ask an LLM for a strategic summary of a purchase-order export",
	Example: `  spendloom summarize po_export.xlsx --dry-run
  spendloom summarize po_export.xlsx --kind risk --model gpt-4o-mini
  spendloom summarize po.csv --budget-limit 0.05 --output summary.md`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := analyzeFile(args[0], &sumInput)
		if err != nil {
			return err
		}
		p, err := prompt.Build(sumKind, res, "")
		if err != nil {
			return err
		}
		return runPrompt(cmd.Context(), res, p, &sumLLM)
	},
}

// runPrompt prices, optionally previews, sends and writes one prompt.
func runPrompt(ctx context.Context, res *analysis.Result, p prompt.Prompt, fl *llmFlags) error {
	if fl.JSON {
		fl.Quiet = true
	}
	model := selectModel(cfg, fl.Model)
	maxTokens := fl.MaxTokens
	if maxTokens == 0 && cfg != nil && cfg.MaxTokens > 0 {
		maxTokens = cfg.MaxTokens
	}
	if maxTokens == 0 {
		maxTokens = 800
	}
	temp := fl.Temp
	if temp == 0 && cfg != nil && cfg.Temperature > 0 {
		temp = cfg.Temperature
	}
	if temp == 0 {
		temp = 0.7
	}

	tokens := p.Tokens()
	if !fl.Quiet {
		fmt.Fprintf(os.Stderr, "Tokens: prompt≈%d, max response %d\n", tokens, maxTokens)
	}
	var estCost float64
	if mi, ok := ai.LookupModel(model); ok {
		if tokens+maxTokens > mi.ContextTokens && !fl.Quiet {
			fmt.Fprintf(os.Stderr, "⚠ Prompt (%d tokens) + max-tokens (%d) exceeds %s context window (~%d tokens).\n",
				tokens, maxTokens, mi.Name, mi.ContextTokens)
		}
		if cost, ok := ai.EstimateCostUSD(model, tokens, maxTokens); ok {
			estCost = cost
			if !fl.Quiet {
				fmt.Fprintf(os.Stderr, "Estimated max cost: ~$%.4f (in %.4f/out %.4f per 1K tokens)\n", cost, mi.InputPerK, mi.OutputPerK)
			}
		}
	}
	if err := enforceBudget(estCost, fl.BudgetLimit); err != nil {
		return err
	}

	if fl.DryRun {
		if !fl.Quiet {
			sum := sha1.Sum([]byte(p.User))
			fmt.Fprintln(os.Stderr, "\n--dry-run: no API call will be made. Prompt preview below --")
			fmt.Fprintf(os.Stderr, "Request ID (dry-run): sim_%x\n", sum[:6])
		}
		fmt.Println(p.String())
		return nil
	}

	rt, providerName, err := buildRuntime(cfg, runtimeOptions{ProviderFlag: fl.Provider, OllamaHost: fl.OllamaHost})
	if err != nil {
		return err
	}
	timeout := time.Duration(fl.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 180 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	s := &prompt.Summarizer{Runtime: rt, Model: model, MaxTokens: maxTokens, Temperature: temp}
	llmLog := logger.WithComponent(log.ComponentLLM)
	llmLog.Debug("sending prompt", "kind", p.Kind, log.FieldModel, model, log.FieldProvider, providerName)
	if !fl.Quiet {
		fmt.Fprintf(os.Stderr, "⚙ Generating with model=%s (prompt tokens≈%d) ...\n", model, tokens)
	}

	start := time.Now()
	content, streamed, err := handleStreaming(ctx, rt, s.Request(p), streamingOptions{
		Enabled: fl.Stream && !fl.JSON,
		Quiet:   fl.Quiet,
		Writer:  os.Stderr,
	})
	if err != nil {
		return explainLLMError(err, providerName, model)
	}
	if !streamed {
		resp, err := s.Complete(ctx, p)
		if err != nil {
			return explainLLMError(err, providerName, model)
		}
		if resp.RequestID != "" && !fl.Quiet {
			fmt.Fprintf(os.Stderr, "Request ID: %s\n", resp.RequestID)
		}
		content = resp.Text()
	}
	llmLog.Info("prompt completed", "kind", p.Kind, log.FieldModel, model, log.FieldDuration, time.Since(start).Milliseconds())

	if fl.RunID != "" {
		if err := attachSummary(ctx, fl.RunID, content); err != nil {
			return err
		}
	}
	return formatAndWriteOutput(content, outputOptions{
		JSON:         fl.JSON,
		Quiet:        fl.Quiet,
		Streamed:     streamed,
		Kind:         p.Kind,
		Source:       res.Source,
		Model:        model,
		MaxTokens:    maxTokens,
		Temperature:  temp,
		PromptTokens: tokens,
		OutputPath:   fl.OutputPath,
		OutputFormat: strings.ToLower(fl.OutputFmt),
		Writer:       os.Stdout,
	})
}

func attachSummary(ctx context.Context, id, content string) error {
	st, err := openArchive()
	if err != nil {
		return err
	}
	defer st.Close()
	if err := st.SetSummary(ctx, id, content); err != nil {
		if errors.Is(err, archive.ErrNotFound) {
			return fmt.Errorf("run %s not found in archive", id)
		}
		return err
	}
	return nil
}

func init() {
	rootCmd.AddCommand(summarizeCmd)
	sumInput.register(summarizeCmd)
	sumLLM.register(summarizeCmd)
	summarizeCmd.Flags().StringVar(&sumKind, "kind", prompt.KindSummary, "prompt kind: summary|risk")
}
