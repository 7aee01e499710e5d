package cmd

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/KaramelBytes/spendloom-cli/internal/ai"
	cfgpkg "github.com/KaramelBytes/spendloom-cli/internal/config"
	"github.com/KaramelBytes/spendloom-cli/internal/fx"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set Spendloom configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			fmt.Println("No config loaded")
			return nil
		}
		fmt.Printf("api_key: %s\n", mask(cfg.APIKey))
		fmt.Printf("default_provider: %s\n", cfg.DefaultProvider)
		fmt.Printf("default_model: %s\n", cfg.DefaultModel)
		fmt.Printf("max_tokens: %d\n", cfg.MaxTokens)
		fmt.Printf("temperature: %.3f\n", cfg.Temperature)
		fmt.Printf("base_currency: %s\n", fx.NormalizeCode(cfg.BaseCurrency))
		fmt.Println("currency_rates:")
		codes := make([]string, 0, len(cfg.CurrencyRates))
		for c := range cfg.CurrencyRates {
			codes = append(codes, c)
		}
		sort.Strings(codes)
		for _, c := range codes {
			fmt.Printf("  %s: %g\n", strings.ToUpper(c), cfg.CurrencyRates[c])
		}
		fmt.Printf("strict_currency: %t\n", cfg.StrictCurrency)
		fmt.Printf("fragmentation_min_suppliers: %d\n", cfg.FragmentationMinSuppliers)
		fmt.Printf("high_variance_pct: %g\n", cfg.HighVariancePct)
		fmt.Printf("pareto_cut_pct: %g\n", cfg.ParetoCutPct)
		fmt.Printf("archive_enabled: %t\n", cfg.ArchiveEnabled)
		fmt.Printf("archive_path: %s\n", cfg.ArchivePath)
		if cfg.AMQPURL != "" {
			fmt.Printf("amqp_url: %s\n", mask(cfg.AMQPURL))
			fmt.Printf("amqp_exchange: %s\n", cfg.AMQPExchange)
			fmt.Printf("amqp_routing_key: %s\n", cfg.AMQPRoutingKey)
		}
		fmt.Printf("server_addr: %s\n", cfg.ServerAddr)
		return nil
	},
}

func parseBool(key, val string) (bool, error) {
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("invalid bool for %s: %v", key, val)
	}
	return b, nil
}

func parsePositive(key, val string) (float64, error) {
	f, err := strconv.ParseFloat(val, 64)
	if err != nil || f <= 0 {
		return 0, fmt.Errorf("invalid positive number for %s: %v", key, val)
	}
	return f, nil
}

// applyConfigValue sets one key on c. rate.<CODE> edits currency_rates.
func applyConfigValue(c *cfgpkg.Global, key, val string) error {
	if strings.HasPrefix(key, "rate.") {
		code := fx.NormalizeCode(strings.TrimPrefix(key, "rate."))
		if code == "" {
			return fmt.Errorf("missing currency code in %s", key)
		}
		f, err := parsePositive(key, val)
		if err != nil {
			return err
		}
		if c.CurrencyRates == nil {
			c.CurrencyRates = fx.DefaultRates()
		}
		// viper lower-cases map keys on load
		for k := range c.CurrencyRates {
			if fx.NormalizeCode(k) == code {
				delete(c.CurrencyRates, k)
			}
		}
		c.CurrencyRates[code] = f
		return nil
	}
	var err error
	switch key {
	case "api_key":
		c.APIKey = val
	case "base_url":
		c.BaseURL = val
	case "default_model":
		c.DefaultModel = val
	case "default_provider":
		p := resolveProvider(nil, val)
		switch p {
		case ai.ProviderOpenAI, ai.ProviderOpenRouter, ai.ProviderOllama:
			c.DefaultProvider = p
		default:
			return fmt.Errorf("invalid default_provider: %s (use openai, openrouter or ollama)", val)
		}
	case "max_tokens":
		i, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid int for max_tokens: %w", err)
		}
		c.MaxTokens = i
	case "temperature":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("invalid float for temperature: %w", err)
		}
		c.Temperature = f
	case "ollama_host":
		c.OllamaHost = val
	case "base_currency":
		code := fx.NormalizeCode(val)
		if code == "" {
			return fmt.Errorf("base_currency cannot be empty")
		}
		old, err := c.RateTable()
		if err != nil {
			return err
		}
		nt, err := old.Rebase(code)
		if err != nil {
			return fmt.Errorf("%w (set rate.%s first)", err, code)
		}
		c.BaseCurrency = code
		c.CurrencyRates = nt.Rates()
	case "strict_currency":
		c.StrictCurrency, err = parseBool(key, val)
	case "fragmentation_min_suppliers":
		i, err := strconv.Atoi(val)
		if err != nil || i < 1 {
			return fmt.Errorf("invalid int for fragmentation_min_suppliers: %v", val)
		}
		c.FragmentationMinSuppliers = i
	case "high_variance_pct":
		c.HighVariancePct, err = parsePositive(key, val)
	case "pareto_cut_pct":
		c.ParetoCutPct, err = parsePositive(key, val)
	case "archive_enabled":
		c.ArchiveEnabled, err = parseBool(key, val)
	case "archive_path":
		c.ArchivePath = val
	case "amqp_url":
		c.AMQPURL = val
	case "amqp_exchange":
		c.AMQPExchange = val
	case "amqp_routing_key":
		c.AMQPRoutingKey = val
	case "server_addr":
		c.ServerAddr = val
	case "log_level":
		c.LogLevel = val
	case "log_format":
		c.LogFormat = val
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return err
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Example: `  spendloom config set base_currency USD
  spendloom config set rate.SAR 0.98
  spendloom config set default_model gpt-4o-mini`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			c, err := cfgpkg.Load(cfgFile)
			if err != nil {
				return err
			}
			cfg = c
		}
		if err := applyConfigValue(cfg, args[0], args[1]); err != nil {
			return err
		}
		if _, err := cfg.RateTable(); err != nil {
			return err
		}
		if err := cfgpkg.Save(cfg, cfgFile); err != nil {
			return err
		}
		fmt.Println("✓ Saved config")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 6 {
		return "******"
	}
	return s[:3] + "****" + s[len(s)-3:]
}
