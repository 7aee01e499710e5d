package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/KaramelBytes/spendloom-cli/internal/analysis"
	"github.com/KaramelBytes/spendloom-cli/internal/archive"
	"github.com/KaramelBytes/spendloom-cli/internal/log"
	"github.com/KaramelBytes/spendloom-cli/internal/notify"
	"github.com/KaramelBytes/spendloom-cli/internal/parser"
	"github.com/spf13/cobra"
)

// inputFlags are the loading/parsing flags shared by analyze, analyze-batch,
// summarize and ask.
type inputFlags struct {
	SheetName      string
	SheetIndex     int
	Delimiter      string
	Decimal        string
	Thousands      string
	MaxRows        int
	StrictCurrency bool
}

func (f *inputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.SheetName, "sheet-name", "", "XLSX: sheet name to analyze")
	cmd.Flags().IntVar(&f.SheetIndex, "sheet-index", 0, "XLSX: 1-based sheet index (used if --sheet-name not provided)")
	cmd.Flags().StringVar(&f.Delimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab' (sniffed if omitted)")
	cmd.Flags().StringVar(&f.Decimal, "decimal", "", "decimal separator for numbers: '.'|'comma' (auto-detect if omitted)")
	cmd.Flags().StringVar(&f.Thousands, "thousands", "", "thousands separator for numbers: ','|'.'|'space' (auto-detect if omitted)")
	cmd.Flags().IntVar(&f.MaxRows, "max-rows", 0, "maximum rows to load (0 = unlimited)")
	cmd.Flags().BoolVar(&f.StrictCurrency, "strict-currency", false, "fail on currency codes without a configured rate")
}

func (f *inputFlags) parserOptions() (parser.Options, error) {
	po := parser.Options{SheetName: f.SheetName, SheetIndex: f.SheetIndex, MaxRows: f.MaxRows}
	switch f.Delimiter {
	case "":
	case ",":
		po.Delimiter = ','
	case "\t", "tab":
		po.Delimiter = '\t'
	case ";":
		po.Delimiter = ';'
	default:
		return po, fmt.Errorf("unsupported --delimiter: %s", f.Delimiter)
	}
	return po, nil
}

func (f *inputFlags) analysisOptions() (analysis.Options, error) {
	opt := analysis.DefaultOptions()
	if cfg != nil {
		o, err := cfg.AnalysisOptions()
		if err != nil {
			return opt, err
		}
		opt = o
	}
	if f.StrictCurrency {
		opt.StrictCurrency = true
	}
	switch strings.ToLower(strings.TrimSpace(f.Decimal)) {
	case ",", "comma":
		opt.DecimalSeparator = ','
	case ".", "dot":
		opt.DecimalSeparator = '.'
	case "":
	default:
		return opt, fmt.Errorf("unsupported --decimal: %s (use '.'|'comma')", f.Decimal)
	}
	switch strings.ToLower(strings.TrimSpace(f.Thousands)) {
	case ",":
		opt.ThousandsSeparator = ','
	case ".":
		opt.ThousandsSeparator = '.'
	case "space", " ":
		opt.ThousandsSeparator = ' '
	case "":
	default:
		return opt, fmt.Errorf("unsupported --thousands: %s (use ','|'.'|'space')", f.Thousands)
	}
	return opt, nil
}

// analyzeFile loads path and runs the pipeline with flag and config options.
func analyzeFile(path string, f *inputFlags) (*analysis.Result, error) {
	po, err := f.parserOptions()
	if err != nil {
		return nil, err
	}
	opt, err := f.analysisOptions()
	if err != nil {
		return nil, err
	}
	start := time.Now()
	t, err := parser.LoadFile(path, po)
	if err != nil {
		return nil, err
	}
	res, err := analysis.Run(t, opt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", t.Name, err)
	}
	logger.WithComponent(log.ComponentAnalysis).Debug("analyzed",
		log.FieldFile, t.Name,
		log.FieldRows, res.KPIs.Lines,
		log.FieldDuration, time.Since(start).Milliseconds(),
	)
	return res, nil
}

// openArchive opens the configured SQLite archive.
func openArchive() (*archive.Store, error) {
	if cfg == nil || cfg.ArchivePath == "" {
		return nil, fmt.Errorf("archive path not configured")
	}
	return archive.Open(cfg.ArchivePath)
}

// openPublisher dials AMQP when amqp_url is set, otherwise returns notify.Nop.
func openPublisher() (notify.Publisher, error) {
	if cfg == nil || cfg.AMQPURL == "" {
		return notify.Nop{}, nil
	}
	return notify.Dial(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey, logger)
}

// recordRun archives res (when requested or enabled in config) and
// publishes the completion event. It returns the run id when archived.
func recordRun(ctx context.Context, res *analysis.Result, forceArchive bool) (string, error) {
	run := archive.FromResult(res, time.Now())
	archived := false
	if forceArchive || (cfg != nil && cfg.ArchiveEnabled) {
		st, err := openArchive()
		if err != nil {
			return "", err
		}
		defer st.Close()
		if err := st.Save(ctx, run); err != nil {
			return "", err
		}
		archived = true
		logger.WithComponent(log.ComponentArchive).Info("archived run", log.FieldRunID, run.ID, log.FieldFile, run.Source)
	}
	pub, err := openPublisher()
	if err != nil {
		logger.Warn("event publisher unavailable", log.FieldError, err)
	} else {
		defer pub.Close()
		if err := pub.Publish(ctx, notify.NewAnalysisCompleted(run.ID, res, run.CreatedAt)); err != nil {
			logger.Warn("publish analysis event", log.FieldRunID, run.ID, log.FieldError, err)
		}
	}
	if !archived {
		return "", nil
	}
	return run.ID, nil
}
