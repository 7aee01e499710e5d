package analysis

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/KaramelBytes/spendloom-cli/internal/fx"
	"github.com/shopspring/decimal"
)

var (
	// ErrMissingColumn is returned when the table lacks a header or a column
	// the analyzers cannot do without.
	ErrMissingColumn = errors.New("missing required column")
	// ErrUnknownCurrency is returned in strict mode for codes absent from
	// the rate table.
	ErrUnknownCurrency = errors.New("unknown currency")
)

// Column names after header normalization.
const (
	ColMaterial      = "material"
	ColShortText     = "short_text"
	ColSupplier      = "supplier"
	ColSupplierAlias = "supplier/supplying_plant"
	ColMaterialGroup = "material_group"
	ColCurrency      = "currency"
	ColNetOrderValue = "net_order_value"
	ColOrderQuantity = "order_quantity"
	ColNetPrice      = "net_price"
	ColPostingDate   = "posting_date"
	ColTotalSpend    = "total_spend"
	ColYear          = "year"
)

// UnknownGroup labels rows without a material group.
const UnknownGroup = "Unknown"

// PurchaseRecord is one purchase-order line as it appears in the export.
type PurchaseRecord struct {
	Material      string  `json:"material"`
	ShortText     string  `json:"short_text"`
	Supplier      string  `json:"supplier"`
	MaterialGroup string  `json:"material_group"`
	Currency      string  `json:"currency"`
	NetOrderValue float64 `json:"net_order_value"`
	PostingDate   string  `json:"posting_date,omitempty"`
}

// Record is a PurchaseRecord with spend expressed in the base currency.
type Record struct {
	PurchaseRecord
	RateToBase float64   `json:"rate_to_base"`
	RateKnown  bool      `json:"rate_known"`
	TotalSpend float64   `json:"total_spend"`
	Year       int       `json:"year"`
	PostedAt   time.Time `json:"posted_at,omitzero"`
	// Cells keeps the original row aligned with Normalized.Columns.
	Cells []string `json:"-"`
}

// CurrencyWarning reports a code that had no configured rate.
type CurrencyWarning struct {
	Code string `json:"code"`
	Rows int    `json:"rows"`
}

// Normalized is the output of the Row Normalizer.
type Normalized struct {
	BaseCurrency string   `json:"base_currency"`
	Columns      []string `json:"columns"`
	Records      []Record `json:"records"`
	// UnknownCurrencies is sorted by code.
	UnknownCurrencies []CurrencyWarning `json:"unknown_currencies,omitempty"`
	// UnparsedValues counts non-empty net_order_value cells that were not numbers.
	UnparsedValues int      `json:"unparsed_values,omitempty"`
	Warnings       []string `json:"warnings,omitempty"`
}

// NormalizeColumns applies header normalization and the supplier alias.
func NormalizeColumns(header []string) []string {
	cols := make([]string, len(header))
	hasSupplier := false
	for i, h := range header {
		cols[i] = NormalizeHeader(h)
		if cols[i] == ColSupplier {
			hasSupplier = true
		}
	}
	if !hasSupplier {
		for i, c := range cols {
			if c == ColSupplierAlias {
				cols[i] = ColSupplier
				break
			}
		}
	}
	return cols
}

// Normalize cleans a raw table into records with base-currency spend.
// Rows are neither dropped nor reordered.
func Normalize(t *Table, opt Options) (*Normalized, error) {
	if t == nil || len(t.Header) == 0 {
		return nil, fmt.Errorf("%w: table has no header row", ErrMissingColumn)
	}
	opt, err := opt.withDefaults()
	if err != nil {
		return nil, err
	}
	cols := NormalizeColumns(t.Header)
	ci := buildColumnIndex(cols)
	if !ci.has(ColSupplier) {
		return nil, fmt.Errorf("%w: %q (or %q)", ErrMissingColumn, ColSupplier, ColSupplierAlias)
	}
	deriveValue := !ci.has(ColNetOrderValue) && ci.has(ColOrderQuantity) && ci.has(ColNetPrice)

	out := &Normalized{
		BaseCurrency: opt.Rates.Base(),
		Columns:      cols,
		Records:      make([]Record, 0, len(t.Rows)),
	}
	unknown := map[string]int{}
	fallbackYear := opt.Now().Year()

	for _, row := range t.Rows {
		pr := PurchaseRecord{
			Material:      ci.cell(row, ColMaterial),
			ShortText:     ci.cell(row, ColShortText),
			Supplier:      ci.cell(row, ColSupplier),
			MaterialGroup: ci.cell(row, ColMaterialGroup),
			Currency:      fx.NormalizeCode(ci.cell(row, ColCurrency)),
			PostingDate:   ci.cell(row, ColPostingDate),
		}
		if pr.MaterialGroup == "" {
			pr.MaterialGroup = UnknownGroup
		}
		if pr.Currency == "" {
			pr.Currency = out.BaseCurrency
		}
		if deriveValue {
			q, okQ := parseNumeric(ci.cell(row, ColOrderQuantity), opt.DecimalSeparator, opt.ThousandsSeparator)
			p, okP := parseNumeric(ci.cell(row, ColNetPrice), opt.DecimalSeparator, opt.ThousandsSeparator)
			if okQ && okP {
				pr.NetOrderValue = decimal.NewFromFloat(q).Mul(decimal.NewFromFloat(p)).InexactFloat64()
			}
		} else if raw := ci.cell(row, ColNetOrderValue); raw != "" {
			v, ok := parseNumeric(raw, opt.DecimalSeparator, opt.ThousandsSeparator)
			if ok {
				pr.NetOrderValue = v
			} else {
				out.UnparsedValues++
			}
		}

		total, rate, known := opt.Rates.Convert(pr.NetOrderValue, pr.Currency)
		if !known {
			if opt.StrictCurrency {
				return nil, fmt.Errorf("%w: %s (row %d)", ErrUnknownCurrency, pr.Currency, len(out.Records)+1)
			}
			unknown[pr.Currency]++
		}
		rec := Record{
			PurchaseRecord: pr,
			RateToBase:     rate,
			RateKnown:      known,
			TotalSpend:     total,
			Year:           fallbackYear,
			Cells:          row,
		}
		if ts, ok := parseTimeMaybe(pr.PostingDate); ok {
			rec.PostedAt = ts
			rec.Year = ts.Year()
		}
		out.Records = append(out.Records, rec)
	}

	if len(unknown) > 0 {
		codes := make([]string, 0, len(unknown))
		for c := range unknown {
			codes = append(codes, c)
		}
		sort.Strings(codes)
		for _, c := range codes {
			out.UnknownCurrencies = append(out.UnknownCurrencies, CurrencyWarning{Code: c, Rows: unknown[c]})
			out.Warnings = append(out.Warnings, fmt.Sprintf("currency %s has no rate to %s; %d row(s) converted at 1.0", c, out.BaseCurrency, unknown[c]))
		}
	}
	if out.UnparsedValues > 0 {
		out.Warnings = append(out.Warnings, fmt.Sprintf("%d net_order_value cell(s) were not numeric and counted as 0", out.UnparsedValues))
	}
	return out, nil
}
