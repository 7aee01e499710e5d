package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/KaramelBytes/spendloom-cli/internal/ai"
	"github.com/spf13/cobra"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Inspect or load the model catalog used for cost estimates",
	Example: `  spendloom models show
  spendloom models sync --file ./models.json --merge
  spendloom models fetch --url https://example.com/models.json --output models.json`,
}

var modelsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current model catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		cat := ai.Catalog()
		keys := make([]string, 0, len(cat))
		for k := range cat {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			mi := cat[k]
			fmt.Printf("%-36s ctx=%-8d in=$%.5f/1K out=$%.5f/1K\n", k, mi.ContextTokens, mi.InputPerK, mi.OutputPerK)
		}
		return nil
	},
}

var (
	syncPath  string
	syncMerge bool
)

var modelsSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Load model catalog/pricing from a JSON file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if syncPath == "" {
			return fmt.Errorf("--file is required")
		}
		m, err := ai.LoadCatalogFromJSON(syncPath)
		if err != nil {
			return fmt.Errorf("load catalog: %w", err)
		}
		if syncMerge {
			ai.MergeCatalog(m)
			fmt.Printf("Merged %d models from file\n", len(m))
		} else {
			ai.OverrideCatalog(m)
			fmt.Printf("Replaced model catalog with %d models from file\n", len(m))
		}
		return nil
	},
}

var (
	fetchURL    string
	fetchOutput string
	fetchMerge  bool
)

var modelsFetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch model catalog/pricing JSON from a URL and apply it",
	RunE: func(cmd *cobra.Command, args []string) error {
		url := fetchURL
		if url == "" && cfg != nil {
			url = cfg.ModelsCatalogURL
		}
		if url == "" {
			return fmt.Errorf("--url is required (or set models_catalog_url)")
		}
		merge := fetchMerge
		if !cmd.Flags().Changed("merge") && cfg != nil {
			merge = cfg.ModelsMerge
		}
		m, err := fetchAndApplyCatalog(url, merge)
		if err != nil {
			return err
		}
		if fetchOutput != "" {
			data, err := json.MarshalIndent(m, "", "  ")
			if err != nil {
				return fmt.Errorf("marshal: %w", err)
			}
			if err := os.WriteFile(fetchOutput, data, 0o644); err != nil {
				return fmt.Errorf("write file: %w", err)
			}
			fmt.Printf("Saved catalog to %s\n", fetchOutput)
		}
		fmt.Printf("Applied %d models from %s\n", len(m), url)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.AddCommand(modelsShowCmd)
	modelsCmd.AddCommand(modelsSyncCmd)
	modelsCmd.AddCommand(modelsFetchCmd)
	modelsSyncCmd.Flags().StringVar(&syncPath, "file", "", "path to catalog JSON")
	modelsSyncCmd.Flags().BoolVar(&syncMerge, "merge", false, "merge into the built-in catalog instead of replacing it")
	modelsFetchCmd.Flags().StringVar(&fetchURL, "url", "", "catalog JSON URL (default: models_catalog_url)")
	modelsFetchCmd.Flags().StringVar(&fetchOutput, "output", "", "also save the fetched catalog to this file")
	modelsFetchCmd.Flags().BoolVar(&fetchMerge, "merge", true, "merge into the catalog instead of replacing it")
}
