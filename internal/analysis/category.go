package analysis

import "sort"

// CategoryRow is one material group in the Pareto table.
type CategoryRow struct {
	MaterialGroup   string  `json:"material_group"`
	TotalSpend      float64 `json:"total_spend"`
	SpendSharePct   float64 `json:"spend_share_pct"`
	CumulativeShare float64 `json:"cumulative_share"`
}

// SummarizeCategories sums spend per material group, sorts descending and
// fills share and running cumulative share. Shares are taken over the
// positive group totals only: a group whose credits outweigh its spend gets
// a zero share, so the cumulative share never decreases. A zero grand total
// yields zero shares.
func SummarizeCategories(recs []Record) []CategoryRow {
	sums := map[string]float64{}
	for _, r := range recs {
		sums[r.MaterialGroup] += r.TotalSpend
	}
	out := make([]CategoryRow, 0, len(sums))
	for g, s := range sums {
		out = append(out, CategoryRow{MaterialGroup: g, TotalSpend: s})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalSpend != out[j].TotalSpend {
			return out[i].TotalSpend > out[j].TotalSpend
		}
		return out[i].MaterialGroup < out[j].MaterialGroup
	})
	// Summed in sorted order so repeated runs are bit-identical.
	grand := 0.0
	for _, c := range out {
		if c.TotalSpend > 0 {
			grand += c.TotalSpend
		}
	}
	if grand == 0 {
		return out
	}
	cum := 0.0
	for i := range out {
		if out[i].TotalSpend > 0 {
			out[i].SpendSharePct = out[i].TotalSpend / grand * 100
		}
		cum += out[i].SpendSharePct
		out[i].CumulativeShare = cum
	}
	return out
}

// NegativeGroups counts categories whose total is below zero.
func NegativeGroups(cats []CategoryRow) int {
	n := 0
	for _, c := range cats {
		if c.TotalSpend < 0 {
			n++
		}
	}
	return n
}
