package analysis

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
)

const paretoEpsilon = 1e-9

// FormatMoney renders an amount as "#,###.##".
func FormatMoney(v float64) string {
	return humanize.FormatFloat("#,###.##", v)
}

func pct(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

// HighVarianceCount counts rows above the variance threshold.
func HighVarianceCount(rows []VarianceRow, threshold float64) int {
	n := 0
	for _, r := range rows {
		if r.VariancePct > threshold {
			n++
		}
	}
	return n
}

// ParetoCount counts leading categories whose cumulative share is within cut.
func ParetoCount(cats []CategoryRow, cut float64) int {
	n := 0
	for _, c := range cats {
		if c.CumulativeShare <= cut+paretoEpsilon {
			n++
		}
	}
	return n
}

// FormatInsights returns exactly four sentences in fixed order:
// fragmentation, variance, top category, Pareto cut.
func FormatInsights(frag []FragmentationRow, variance []VarianceRow, cats []CategoryRow, baseCurrency string, opt Options) []string {
	if opt.FragmentationMinSuppliers <= 0 {
		opt.FragmentationMinSuppliers = DefaultOptions().FragmentationMinSuppliers
	}
	if opt.HighVariancePct <= 0 {
		opt.HighVariancePct = DefaultOptions().HighVariancePct
	}
	if opt.ParetoCutPct <= 0 {
		opt.ParetoCutPct = DefaultOptions().ParetoCutPct
	}
	out := make([]string, 0, 4)
	out = append(out, fmt.Sprintf("%d materials are purchased from >%d suppliers; consider consolidation.",
		len(frag), opt.FragmentationMinSuppliers))
	out = append(out, fmt.Sprintf("%d materials show >%s%% price variance; review pricing consistency.",
		HighVarianceCount(variance, opt.HighVariancePct), pct(opt.HighVariancePct)))
	if len(cats) > 0 {
		out = append(out, fmt.Sprintf("Top category: %s with %s %s spend.",
			cats[0].MaterialGroup, baseCurrency, FormatMoney(cats[0].TotalSpend)))
	} else {
		out = append(out, "Top category: none (no spend recorded).")
	}
	out = append(out, fmt.Sprintf("%d categories account for %s%% of spend; focus sourcing strategy.",
		ParetoCount(cats, opt.ParetoCutPct), pct(opt.ParetoCutPct)))
	return out
}
