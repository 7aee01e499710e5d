package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/KaramelBytes/spendloom-cli/internal/analysis"
	"github.com/KaramelBytes/spendloom-cli/internal/export"
	"github.com/KaramelBytes/spendloom-cli/internal/parser"
	"github.com/KaramelBytes/spendloom-cli/internal/utils"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	abInput       inputFlags
	abOutDir      string
	abExport      bool
	abJobs        int
	abTop         int
	abArchive     bool
	abContinueErr bool
	abQuiet       bool
)

type batchResult struct {
	path string
	res  *analysis.Result
	err  error
}

// expandInputs resolves globs and literal paths, drops duplicates and our
// own exports, and sorts the result.
func expandInputs(args []string) []string {
	var files []string
	seen := map[string]struct{}{}
	for _, arg := range args {
		matches, _ := filepath.Glob(arg)
		if len(matches) == 0 {
			if _, err := os.Stat(arg); err == nil {
				matches = []string{arg}
			}
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			if parser.IsOutputFile(m) || !parser.Supported(m) {
				continue
			}
			files = append(files, m)
		}
	}
	sort.Strings(files)
	return files
}

// reportBase derives a unique output stem per input so files with the same
// base name in different directories do not overwrite each other.
func reportBase(path string, used map[string]int) string {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	used[stem]++
	if n := used[stem]; n > 1 {
		return fmt.Sprintf("%s__%d", stem, n)
	}
	return stem
}

var analyzeBatchCmd = &cobra.Command{
	Use:   "analyze-batch <files...>",
	Short: "Analyze many purchase-order exports in parallel",
	Example: `  spendloom analyze-batch "exports/*.xlsx" --out-dir reports --export
  spendloom analyze-batch a.csv b.csv --jobs 2 --archive`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files := expandInputs(args)
		if len(files) == 0 {
			return fmt.Errorf("no input files matched")
		}
		jobs := abJobs
		if jobs <= 0 {
			jobs = runtime.NumCPU()
		}

		// Each file is independent; results land in their own slot.
		results := make([]batchResult, len(files))
		g, ctx := errgroup.WithContext(cmd.Context())
		g.SetLimit(jobs)
		for i, path := range files {
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				res, err := analyzeFile(path, &abInput)
				results[i] = batchResult{path: path, res: res, err: err}
				if err != nil && !abContinueErr {
					return fmt.Errorf("%s: %w", filepath.Base(path), err)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		return writeBatch(cmd.Context(), results)
	},
}

func writeBatch(ctx context.Context, results []batchResult) error {
	if abOutDir != "" {
		if err := os.MkdirAll(abOutDir, 0o755); err != nil {
			return err
		}
	}
	used := map[string]int{}
	failed := 0
	total := len(results)
	for i, r := range results {
		if r.err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "✗ [%d/%d] %s: %v\n", i+1, total, filepath.Base(r.path), r.err)
			continue
		}
		if !abQuiet {
			fmt.Fprintf(os.Stderr, "[%d/%d] %s: %d lines, %d fragmented, %d with variance\n",
				i+1, total, filepath.Base(r.path), r.res.KPIs.Lines, len(r.res.Fragmentation), len(r.res.Variance))
		}
		md := r.res.Markdown(analysis.ReportOptions{MaxRows: abTop, VarianceMax: -1})
		if abOutDir == "" {
			fmt.Println(md)
		} else {
			stem := reportBase(r.path, used)
			if err := utils.SafeWriteFile(filepath.Join(abOutDir, stem+".report.md"), []byte(md)); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			if abExport {
				if err := export.WriteXLSX(r.res, filepath.Join(abOutDir, stem+"_Output.xlsx"), export.DefaultOptions()); err != nil {
					return err
				}
			}
		}
		if _, err := recordRun(ctx, r.res, abArchive); err != nil {
			return err
		}
	}
	if !abQuiet {
		fmt.Fprintf(os.Stderr, "✓ Analyzed %d/%d files\n", total-failed, total)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, total)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(analyzeBatchCmd)
	abInput.register(analyzeBatchCmd)
	analyzeBatchCmd.Flags().StringVar(&abOutDir, "out-dir", "", "write <name>.report.md per input into this directory (default: stdout)")
	analyzeBatchCmd.Flags().BoolVar(&abExport, "export", false, "with --out-dir, also write <name>_Output.xlsx per input")
	analyzeBatchCmd.Flags().IntVar(&abJobs, "jobs", 0, "files analyzed in parallel (0 = number of CPUs)")
	analyzeBatchCmd.Flags().IntVar(&abTop, "top", 10, "rows per report section")
	analyzeBatchCmd.Flags().BoolVar(&abArchive, "archive", false, "store every run in the SQLite archive")
	analyzeBatchCmd.Flags().BoolVar(&abContinueErr, "keep-going", false, "report failing files and continue with the rest")
	analyzeBatchCmd.Flags().BoolVar(&abQuiet, "quiet", false, "suppress progress output")
}
