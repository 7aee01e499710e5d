package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/spendloom-cli/internal/analysis"
	"github.com/KaramelBytes/spendloom-cli/internal/export"
	"github.com/KaramelBytes/spendloom-cli/internal/utils"
	"github.com/spf13/cobra"
)

var (
	anaInput       inputFlags
	anaOutputPath  string
	anaJSON        bool
	anaExportPath  string
	anaCSVDir      string
	anaVarianceMin float64
	anaVarianceMax float64
	anaTop         int
	anaArchive     bool
	anaQuiet       bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Analyze a purchase-order export (XLSX/CSV) and report fragmentation, price variance and category spend",
	Example: `  spendloom analyze po_export.xlsx
  spendloom analyze po_export.xlsx --export po_export_Output.xlsx
  spendloom analyze po.csv --variance-min 20 --variance-max 200 --top 20
  spendloom analyze po.csv --json --archive`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("variance-max") && anaVarianceMax >= 0 && anaVarianceMax < anaVarianceMin {
			return fmt.Errorf("--variance-max (%.2f) is below --variance-min (%.2f)", anaVarianceMax, anaVarianceMin)
		}
		res, err := analyzeFile(args[0], &anaInput)
		if err != nil {
			return err
		}

		if anaJSON {
			b, err := utils.PrettyJSON(res)
			if err != nil {
				return err
			}
			fmt.Println(string(b))
		} else {
			md := res.Markdown(analysis.ReportOptions{
				MaxRows:     anaTop,
				VarianceMin: anaVarianceMin,
				VarianceMax: anaVarianceMax,
			})
			if anaOutputPath != "" {
				if err := utils.SafeWriteFile(anaOutputPath, []byte(md)); err != nil {
					return fmt.Errorf("write output: %w", err)
				}
				fmt.Printf("✓ Wrote analysis to %s\n", anaOutputPath)
			} else {
				fmt.Println(md)
			}
		}

		eo := export.Options{VarianceMin: anaVarianceMin, VarianceMax: anaVarianceMax}
		if anaExportPath != "" {
			if err := export.WriteXLSX(res, anaExportPath, eo); err != nil {
				return err
			}
			if !anaQuiet {
				fmt.Fprintf(os.Stderr, "✓ Exported workbook to %s\n", anaExportPath)
			}
		}
		if anaCSVDir != "" {
			base := filepath.Base(args[0])
			prefix := strings.TrimSuffix(base, filepath.Ext(base)) + "_"
			paths, err := export.WriteCSVs(res, anaCSVDir, prefix, eo)
			if err != nil {
				return err
			}
			if !anaQuiet {
				fmt.Fprintf(os.Stderr, "✓ Wrote %d CSV files to %s\n", len(paths), anaCSVDir)
			}
		}

		id, err := recordRun(cmd.Context(), res, anaArchive)
		if err != nil {
			return err
		}
		if id != "" && !anaQuiet {
			fmt.Fprintf(os.Stderr, "✓ Archived run %s\n", id)
		}
		if !anaQuiet {
			for _, w := range res.Warnings {
				fmt.Fprintf(os.Stderr, "⚠ Warning: %s\n", w)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	anaInput.register(analyzeCmd)
	analyzeCmd.Flags().StringVarP(&anaOutputPath, "output", "o", "", "optional path to write the report (Markdown)")
	analyzeCmd.Flags().BoolVar(&anaJSON, "json", false, "emit the full result as JSON")
	analyzeCmd.Flags().StringVar(&anaExportPath, "export", "", "write an XLSX workbook with Raw_Data, Fragmentation, Price_Variance, Category_Spend and Summary sheets")
	analyzeCmd.Flags().StringVar(&anaCSVDir, "csv-dir", "", "write one CSV per table into this directory")
	analyzeCmd.Flags().Float64Var(&anaVarianceMin, "variance-min", 0, "only show/export price variance rows at or above this percentage")
	analyzeCmd.Flags().Float64Var(&anaVarianceMax, "variance-max", -1, "only show/export price variance rows at or below this percentage (-1 = no cap)")
	analyzeCmd.Flags().IntVar(&anaTop, "top", 10, "rows per report section")
	analyzeCmd.Flags().BoolVar(&anaArchive, "archive", false, "store the run in the SQLite archive (also enabled by archive_enabled)")
	analyzeCmd.Flags().BoolVar(&anaQuiet, "quiet", false, "suppress progress and warnings on stderr")
}
