package analysis

import (
	"time"

	"github.com/KaramelBytes/spendloom-cli/internal/fx"
)

// Options controls normalization and the thresholds used by the analyzers.
type Options struct {
	// Rates converts purchase-order currencies into the reporting currency.
	// Nil means fx.DefaultRates with fx.DefaultBase.
	Rates *fx.Table
	// StrictCurrency turns an unknown currency code into an error instead
	// of a 1.0 conversion plus warning.
	StrictCurrency bool
	// FragmentationMinSuppliers: materials with more distinct suppliers than
	// this are reported as fragmented.
	FragmentationMinSuppliers int
	// HighVariancePct is the threshold used by the variance insight.
	HighVariancePct float64
	// ParetoCutPct is the cumulative share cut used by the category insight.
	ParetoCutPct float64
	// TopSuppliers bounds the supplier ranking.
	TopSuppliers int
	// Numeric parsing locale. If DecimalSeparator is 0, auto-detect per value.
	DecimalSeparator   rune
	ThousandsSeparator rune
	// Now supplies the fallback year for rows without a posting date.
	Now func() time.Time
}

// DefaultOptions returns sensible defaults for procurement exports.
func DefaultOptions() Options {
	return Options{
		FragmentationMinSuppliers: 2,
		HighVariancePct:           10,
		ParetoCutPct:              80,
		TopSuppliers:              10,
		Now:                       time.Now,
	}
}

// withDefaults fills zero values so callers can pass a partial Options.
func (o Options) withDefaults() (Options, error) {
	d := DefaultOptions()
	if o.Rates == nil {
		t, err := fx.New(fx.DefaultBase, fx.DefaultRates())
		if err != nil {
			return o, err
		}
		o.Rates = t
	}
	if o.FragmentationMinSuppliers <= 0 {
		o.FragmentationMinSuppliers = d.FragmentationMinSuppliers
	}
	if o.HighVariancePct <= 0 {
		o.HighVariancePct = d.HighVariancePct
	}
	if o.ParetoCutPct <= 0 {
		o.ParetoCutPct = d.ParetoCutPct
	}
	if o.TopSuppliers <= 0 {
		o.TopSuppliers = d.TopSuppliers
	}
	if o.Now == nil {
		o.Now = d.Now
	}
	return o, nil
}
