package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/KaramelBytes/spendloom-cli/internal/ai"
	"github.com/KaramelBytes/spendloom-cli/internal/analysis"
	"github.com/KaramelBytes/spendloom-cli/internal/fx"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix namespaces environment overrides, e.g. SPENDLOOM_BASE_CURRENCY.
const EnvPrefix = "SPENDLOOM"

// Global configuration structure.
type Global struct {
	APIKey          string  `mapstructure:"api_key" yaml:"api_key"`
	BaseURL         string  `mapstructure:"base_url" yaml:"base_url"`
	DefaultModel    string  `mapstructure:"default_model" yaml:"default_model"`
	DefaultProvider string  `mapstructure:"default_provider" yaml:"default_provider"`
	MaxTokens       int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature     float64 `mapstructure:"temperature" yaml:"temperature"`

	// Models catalog
	ModelsCatalogURL string `mapstructure:"models_catalog_url" yaml:"models_catalog_url"`
	ModelsMerge      bool   `mapstructure:"models_merge" yaml:"models_merge"`

	// HTTP/Retry configuration
	HTTPTimeoutSec   int `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	RetryMaxAttempts int `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts"`
	RetryBaseDelayMs int `mapstructure:"retry_base_delay_ms" yaml:"retry_base_delay_ms"`
	RetryMaxDelayMs  int `mapstructure:"retry_max_delay_ms" yaml:"retry_max_delay_ms"`

	// Local runtimes (Ollama)
	OllamaHost       string `mapstructure:"ollama_host" yaml:"ollama_host"`
	OllamaTimeoutSec int    `mapstructure:"ollama_timeout_sec" yaml:"ollama_timeout_sec"`

	// Analysis
	BaseCurrency              string             `mapstructure:"base_currency" yaml:"base_currency"`
	CurrencyRates             map[string]float64 `mapstructure:"currency_rates" yaml:"currency_rates"`
	StrictCurrency            bool               `mapstructure:"strict_currency" yaml:"strict_currency"`
	FragmentationMinSuppliers int                `mapstructure:"fragmentation_min_suppliers" yaml:"fragmentation_min_suppliers"`
	HighVariancePct           float64            `mapstructure:"high_variance_pct" yaml:"high_variance_pct"`
	ParetoCutPct              float64            `mapstructure:"pareto_cut_pct" yaml:"pareto_cut_pct"`

	// Run archive (SQLite)
	ArchiveEnabled bool   `mapstructure:"archive_enabled" yaml:"archive_enabled"`
	ArchivePath    string `mapstructure:"archive_path" yaml:"archive_path"`

	// Event publishing (AMQP)
	AMQPURL        string `mapstructure:"amqp_url" yaml:"amqp_url"`
	AMQPExchange   string `mapstructure:"amqp_exchange" yaml:"amqp_exchange"`
	AMQPRoutingKey string `mapstructure:"amqp_routing_key" yaml:"amqp_routing_key"`

	// HTTP API
	ServerAddr string `mapstructure:"server_addr" yaml:"server_addr"`

	// Logging
	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`
}

// Dir returns ~/.spendloom.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".spendloom"), nil
}

// Save writes c to cfgFile, or to ~/.spendloom/config.yaml when empty.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := Dir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api_key", "")
	v.SetDefault("base_url", "")
	v.SetDefault("default_model", ai.DefaultModel)
	v.SetDefault("default_provider", ai.ProviderOpenAI)
	v.SetDefault("max_tokens", 800)
	v.SetDefault("temperature", 0.7)
	v.SetDefault("models_catalog_url", "")
	v.SetDefault("models_merge", true)
	v.SetDefault("http_timeout_sec", 60)
	v.SetDefault("retry_max_attempts", 3)
	v.SetDefault("retry_base_delay_ms", 500)
	v.SetDefault("retry_max_delay_ms", 4000)
	v.SetDefault("ollama_host", ai.OllamaHost)
	v.SetDefault("ollama_timeout_sec", 60)

	d := analysis.DefaultOptions()
	v.SetDefault("base_currency", fx.DefaultBase)
	v.SetDefault("currency_rates", fx.DefaultRates())
	v.SetDefault("strict_currency", false)
	v.SetDefault("fragmentation_min_suppliers", d.FragmentationMinSuppliers)
	v.SetDefault("high_variance_pct", d.HighVariancePct)
	v.SetDefault("pareto_cut_pct", d.ParetoCutPct)

	v.SetDefault("archive_enabled", false)
	v.SetDefault("archive_path", "")
	v.SetDefault("amqp_url", "")
	v.SetDefault("amqp_exchange", "spendloom")
	v.SetDefault("amqp_routing_key", "analysis.completed")
	v.SetDefault("server_addr", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
}

// Load reads .env (if present), then defaults < config file < env.
func Load(cfgFile string) (*Global, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	c.resolveAPIKey()
	if c.ArchivePath == "" {
		if dir, err := Dir(); err == nil {
			c.ArchivePath = filepath.Join(dir, "runs.db")
		}
	}
	return &c, nil
}

// resolveAPIKey falls back to the provider's conventional variable.
func (c *Global) resolveAPIKey() {
	if c.APIKey != "" {
		return
	}
	switch c.DefaultProvider {
	case ai.ProviderOpenRouter:
		c.APIKey = os.Getenv("OPENROUTER_API_KEY")
	default:
		c.APIKey = os.Getenv("OPENAI_API_KEY")
	}
}

// RateTable builds the currency table from base_currency and currency_rates.
func (c *Global) RateTable() (*fx.Table, error) {
	rates := c.CurrencyRates
	if len(rates) == 0 {
		rates = fx.DefaultRates()
	}
	return fx.New(c.BaseCurrency, rates)
}

// AnalysisOptions maps config onto analysis.Options.
func (c *Global) AnalysisOptions() (analysis.Options, error) {
	opt := analysis.DefaultOptions()
	rt, err := c.RateTable()
	if err != nil {
		return opt, err
	}
	opt.Rates = rt
	opt.StrictCurrency = c.StrictCurrency
	if c.FragmentationMinSuppliers > 0 {
		opt.FragmentationMinSuppliers = c.FragmentationMinSuppliers
	}
	if c.HighVariancePct > 0 {
		opt.HighVariancePct = c.HighVariancePct
	}
	if c.ParetoCutPct > 0 {
		opt.ParetoCutPct = c.ParetoCutPct
	}
	return opt, nil
}

// RuntimeConfig maps config onto ai.RuntimeConfig for the given provider.
func (c *Global) RuntimeConfig(provider string) ai.RuntimeConfig {
	rc := ai.RuntimeConfig{
		HTTPTimeout: time.Duration(c.HTTPTimeoutSec) * time.Second,
		Retry: ai.RetryPolicy{
			MaxAttempts: c.RetryMaxAttempts,
			BaseDelay:   time.Duration(c.RetryBaseDelayMs) * time.Millisecond,
			MaxDelay:    time.Duration(c.RetryMaxDelayMs) * time.Millisecond,
		},
		APIKey:  c.APIKey,
		BaseURL: c.BaseURL,
		Host:    c.OllamaHost,
	}
	if provider == ai.ProviderOllama && c.OllamaTimeoutSec > 0 {
		rc.HTTPTimeout = time.Duration(c.OllamaTimeoutSec) * time.Second
	}
	if provider == ai.ProviderOpenRouter && c.APIKey == "" {
		rc.APIKey = os.Getenv("OPENROUTER_API_KEY")
	}
	return rc
}
