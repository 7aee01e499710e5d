// Package fx holds the editable currency table used to bring purchase-order
// values into one reporting currency.
package fx

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultBase is the reporting currency used when none is configured.
const DefaultBase = "AED"

// DefaultRates returns the stock multipliers into DefaultBase.
// Update them through config (currency_rates) rather than here.
func DefaultRates() map[string]float64 {
	return map[string]float64{
		"AED": 1.0,
		"USD": 3.67,
		"EUR": 4.00,
		"GBP": 4.89,
	}
}

// Table maps ISO currency codes to a multiplier into the base currency.
type Table struct {
	base  string
	rates map[string]decimal.Decimal
}

// NormalizeCode trims and upper-cases a currency code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// New builds a Table. Rates must be positive; the base currency always
// converts at exactly 1 and is added when missing.
func New(base string, rates map[string]float64) (*Table, error) {
	base = NormalizeCode(base)
	if base == "" {
		base = DefaultBase
	}
	t := &Table{base: base, rates: make(map[string]decimal.Decimal, len(rates)+1)}
	for code, r := range rates {
		c := NormalizeCode(code)
		if c == "" {
			continue
		}
		if r <= 0 {
			return nil, fmt.Errorf("invalid rate for %s: %v (must be > 0)", c, r)
		}
		t.rates[c] = decimal.NewFromFloat(r)
	}
	if r, ok := t.rates[base]; ok && !r.Equal(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("rate for base currency %s must be 1, got %s", base, r.String())
	}
	t.rates[base] = decimal.NewFromInt(1)
	return t, nil
}

// Base returns the reporting currency code.
func (t *Table) Base() string { return t.base }

// Lookup returns the multiplier for code and whether the code is known.
// An empty code resolves to the base currency.
func (t *Table) Lookup(code string) (decimal.Decimal, bool) {
	c := NormalizeCode(code)
	if c == "" {
		c = t.base
	}
	r, ok := t.rates[c]
	if !ok {
		return decimal.NewFromInt(1), false
	}
	return r, true
}

// Convert returns amount expressed in the base currency, the multiplier that
// was applied, and whether the code was known. Unknown codes convert at 1.
func (t *Table) Convert(amount float64, code string) (total, rate float64, known bool) {
	r, known := t.Lookup(code)
	total = decimal.NewFromFloat(amount).Mul(r).InexactFloat64()
	return total, r.InexactFloat64(), known
}

// Codes lists configured currency codes in sorted order.
func (t *Table) Codes() []string {
	out := make([]string, 0, len(t.rates))
	for c := range t.rates {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Rates returns a float copy of the table, suitable for config round-trips.
func (t *Table) Rates() map[string]float64 {
	out := make(map[string]float64, len(t.rates))
	for c, r := range t.rates {
		out[c] = r.InexactFloat64()
	}
	return out
}

// Rebase re-expresses every rate against newBase, which must already be in
// the table.
func (t *Table) Rebase(newBase string) (*Table, error) {
	nb := NormalizeCode(newBase)
	r, ok := t.rates[nb]
	if !ok {
		return nil, fmt.Errorf("cannot rebase to %s: no rate to %s configured", nb, t.base)
	}
	out := &Table{base: nb, rates: make(map[string]decimal.Decimal, len(t.rates))}
	for c, v := range t.rates {
		out.rates[c] = v.DivRound(r, 8)
	}
	out.rates[nb] = decimal.NewFromInt(1)
	return out, nil
}
