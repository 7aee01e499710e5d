package analysis

import (
	"math"
	"sort"
)

// VarianceRow summarizes the spread of line spend for an item bought more
// than once. Prices are in the base currency.
type VarianceRow struct {
	ItemKey
	PurchaseCount int     `json:"purchase_count"`
	MinPrice      float64 `json:"min_price"`
	MaxPrice      float64 `json:"max_price"`
	AvgPrice      float64 `json:"avg_price"`
	VariancePct   float64 `json:"variance_pct"`
}

type varAcc struct {
	n             int
	sum, min, max float64
}

// AnalyzePriceVariance groups records by item over TotalSpend. Items bought
// once are skipped. Items whose minimum is zero or negative (credit lines)
// have no meaningful variance; they are excluded and their number is
// returned alongside the rows.
func AnalyzePriceVariance(recs []Record) ([]VarianceRow, int) {
	groups := map[ItemKey]*varAcc{}
	for _, r := range recs {
		k := ItemKey{Material: r.Material, ShortText: r.ShortText}
		a, ok := groups[k]
		if !ok {
			a = &varAcc{min: math.Inf(1), max: math.Inf(-1)}
			groups[k] = a
		}
		a.n++
		a.sum += r.TotalSpend
		a.min = math.Min(a.min, r.TotalSpend)
		a.max = math.Max(a.max, r.TotalSpend)
	}
	out := make([]VarianceRow, 0)
	zeroMin := 0
	for k, a := range groups {
		if a.n <= 1 {
			continue
		}
		if a.min <= 0 {
			zeroMin++
			continue
		}
		out = append(out, VarianceRow{
			ItemKey:       k,
			PurchaseCount: a.n,
			MinPrice:      a.min,
			MaxPrice:      a.max,
			AvgPrice:      a.sum / float64(a.n),
			VariancePct:   (a.max - a.min) / a.min * 100,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].VariancePct != out[j].VariancePct {
			return out[i].VariancePct > out[j].VariancePct
		}
		return out[i].less(out[j].ItemKey)
	})
	return out, zeroMin
}

// FilterVariance keeps rows whose VariancePct lies in [minPct, maxPct].
// A negative maxPct means no upper bound.
func FilterVariance(rows []VarianceRow, minPct, maxPct float64) []VarianceRow {
	out := make([]VarianceRow, 0, len(rows))
	for _, r := range rows {
		if r.VariancePct < minPct {
			continue
		}
		if maxPct >= 0 && r.VariancePct > maxPct {
			continue
		}
		out = append(out, r)
	}
	return out
}
