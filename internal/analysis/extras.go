package analysis

import "sort"

// Risk levels for supplier concentration inside a material group.
const (
	RiskHigh   = "High"
	RiskMedium = "Medium"
	RiskLow    = "Low"
)

// KPIs are headline figures for a run.
type KPIs struct {
	TotalSpend      float64 `json:"total_spend"`
	Lines           int     `json:"lines"`
	UniqueMaterials int     `json:"unique_materials"`
	UniqueSuppliers int     `json:"unique_suppliers"`
}

// SupplierSpend is a supplier's total spend in the base currency.
type SupplierSpend struct {
	Supplier   string  `json:"supplier"`
	TotalSpend float64 `json:"total_spend"`
}

// GroupConcentration is the number of distinct suppliers per material group.
type GroupConcentration struct {
	MaterialGroup   string `json:"material_group"`
	UniqueSuppliers int    `json:"unique_suppliers"`
	RiskLevel       string `json:"risk_level"`
}

// MonthVolume is the number of PO lines posted in a calendar month.
type MonthVolume struct {
	Month string `json:"month"` // YYYY-MM
	Lines int    `json:"lines"`
}

// ComputeKPIs returns spend totals and distinct counts. Empty material and
// supplier values are not counted.
func ComputeKPIs(recs []Record) KPIs {
	mats := map[string]struct{}{}
	sups := map[string]struct{}{}
	k := KPIs{Lines: len(recs)}
	for _, r := range recs {
		k.TotalSpend += r.TotalSpend
		if r.Material != "" {
			mats[r.Material] = struct{}{}
		}
		if r.Supplier != "" {
			sups[r.Supplier] = struct{}{}
		}
	}
	k.UniqueMaterials = len(mats)
	k.UniqueSuppliers = len(sups)
	return k
}

// TopSuppliers ranks suppliers by spend and returns at most n.
func TopSuppliers(recs []Record, n int) []SupplierSpend {
	sums := map[string]float64{}
	for _, r := range recs {
		if r.Supplier == "" {
			continue
		}
		sums[r.Supplier] += r.TotalSpend
	}
	out := make([]SupplierSpend, 0, len(sums))
	for s, v := range sums {
		out = append(out, SupplierSpend{Supplier: s, TotalSpend: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalSpend != out[j].TotalSpend {
			return out[i].TotalSpend > out[j].TotalSpend
		}
		return out[i].Supplier < out[j].Supplier
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// RiskLevel classifies a supplier count: more than 5 is High, more than 2
// is Medium.
func RiskLevel(suppliers int) string {
	switch {
	case suppliers > 5:
		return RiskHigh
	case suppliers > 2:
		return RiskMedium
	default:
		return RiskLow
	}
}

// SupplierConcentration counts distinct suppliers per material group,
// sorted by count desc then group name.
func SupplierConcentration(recs []Record) []GroupConcentration {
	seen := map[string]map[string]struct{}{}
	for _, r := range recs {
		s, ok := seen[r.MaterialGroup]
		if !ok {
			s = map[string]struct{}{}
			seen[r.MaterialGroup] = s
		}
		if r.Supplier != "" {
			s[r.Supplier] = struct{}{}
		}
	}
	out := make([]GroupConcentration, 0, len(seen))
	for g, s := range seen {
		out = append(out, GroupConcentration{MaterialGroup: g, UniqueSuppliers: len(s), RiskLevel: RiskLevel(len(s))})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UniqueSuppliers != out[j].UniqueSuppliers {
			return out[i].UniqueSuppliers > out[j].UniqueSuppliers
		}
		return out[i].MaterialGroup < out[j].MaterialGroup
	})
	return out
}

// HighRiskGroups filters concentration rows down to RiskHigh.
func HighRiskGroups(rows []GroupConcentration) []GroupConcentration {
	var out []GroupConcentration
	for _, r := range rows {
		if r.RiskLevel == RiskHigh {
			out = append(out, r)
		}
	}
	return out
}

// MonthlyVolume counts lines per posting month. Rows without a parseable
// posting date are skipped; the result is sorted chronologically.
func MonthlyVolume(recs []Record) []MonthVolume {
	counts := map[string]int{}
	for _, r := range recs {
		if r.PostedAt.IsZero() {
			continue
		}
		counts[r.PostedAt.Format("2006-01")]++
	}
	out := make([]MonthVolume, 0, len(counts))
	for m, n := range counts {
		out = append(out, MonthVolume{Month: m, Lines: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}
