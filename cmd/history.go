package cmd

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/spendloom-cli/internal/analysis"
	"github.com/KaramelBytes/spendloom-cli/internal/utils"
	"github.com/spf13/cobra"
)

var (
	histLimit int
	histJSON  bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect archived analysis runs",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived runs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openArchive()
		if err != nil {
			return err
		}
		defer st.Close()
		runs, err := st.List(cmd.Context(), histLimit)
		if err != nil {
			return err
		}
		if histJSON {
			b, err := utils.PrettyJSON(runs)
			if err != nil {
				return err
			}
			fmt.Println(string(b))
			return nil
		}
		if len(runs) == 0 {
			fmt.Println("No archived runs")
			return nil
		}
		for _, r := range runs {
			fmt.Printf("%s  %s  %-30s %6d lines  %s %s\n",
				r.ID, r.CreatedAt.Local().Format("2006-01-02 15:04"), r.Source, r.Rows,
				r.BaseCurrency, analysis.FormatMoney(r.TotalSpend))
		}
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one archived run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openArchive()
		if err != nil {
			return err
		}
		defer st.Close()
		r, err := st.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if histJSON {
			b, err := utils.PrettyJSON(r)
			if err != nil {
				return err
			}
			fmt.Println(string(b))
			return nil
		}
		var b strings.Builder
		fmt.Fprintf(&b, "Run: %s\nFile: %s\nCreated: %s\nLines: %d\nTotal spend: %s %s\n",
			r.ID, r.Source, r.CreatedAt.Local().Format("2006-01-02 15:04:05"), r.Rows,
			r.BaseCurrency, analysis.FormatMoney(r.TotalSpend))
		b.WriteString("\n[INSIGHTS]\n")
		for _, s := range r.Insights {
			b.WriteString("- " + s + "\n")
		}
		if len(r.Warnings) > 0 {
			b.WriteString("\n[WARNINGS]\n")
			for _, w := range r.Warnings {
				b.WriteString("- " + w + "\n")
			}
		}
		if r.Summary != "" {
			b.WriteString("\n[AI SUMMARY]\n" + r.Summary + "\n")
		}
		fmt.Print(b.String())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.PersistentFlags().BoolVar(&histJSON, "json", false, "emit JSON")
	historyListCmd.Flags().IntVar(&histLimit, "limit", 20, "maximum runs to list")
}
