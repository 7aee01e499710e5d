package cmd

import (
	"strings"

	"github.com/KaramelBytes/spendloom-cli/internal/prompt"
	"github.com/spf13/cobra"
)

var (
	askInput inputFlags
	askLLM   llmFlags
)

var askCmd = &cobra.Command{
	Use:   "ask <file> <question...>",
	Short: "Ask a free-form question about a purchase-order export",
	Example: `  spendloom ask po_export.xlsx "Which categories should we tender first?"
  spendloom ask po.csv why is bolt pricing inconsistent --dry-run`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := analyzeFile(args[0], &askInput)
		if err != nil {
			return err
		}
		p, err := prompt.BuildAsk(res, strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		return runPrompt(cmd.Context(), res, p, &askLLM)
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
	askInput.register(askCmd)
	askLLM.register(askCmd)
}
