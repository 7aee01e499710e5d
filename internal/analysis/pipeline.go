package analysis

import "fmt"

// Result is everything a single analysis run produces.
type Result struct {
	Source        string               `json:"source,omitempty"`
	BaseCurrency  string               `json:"base_currency"`
	Normalized    *Normalized          `json:"-"`
	KPIs          KPIs                 `json:"kpis"`
	Fragmentation []FragmentationRow   `json:"fragmentation"`
	Variance      []VarianceRow        `json:"price_variance"`
	ZeroMinItems  int                  `json:"zero_min_items,omitempty"`
	Categories    []CategoryRow        `json:"categories"`
	TopSuppliers  []SupplierSpend      `json:"top_suppliers"`
	Concentration []GroupConcentration `json:"supplier_concentration"`
	Monthly       []MonthVolume        `json:"monthly_volume,omitempty"`
	Insights      []string             `json:"insights"`
	Warnings      []string             `json:"warnings,omitempty"`
}

// Run normalizes t and computes every derived table. It does not mutate t.
func Run(t *Table, opt Options) (*Result, error) {
	opt, err := opt.withDefaults()
	if err != nil {
		return nil, err
	}
	norm, err := Normalize(t, opt)
	if err != nil {
		return nil, err
	}
	recs := norm.Records
	res := &Result{
		Source:       t.Name,
		BaseCurrency: norm.BaseCurrency,
		Normalized:   norm,
		KPIs:         ComputeKPIs(recs),
	}
	res.Fragmentation = AnalyzeFragmentation(recs, opt.FragmentationMinSuppliers)
	res.Variance, res.ZeroMinItems = AnalyzePriceVariance(recs)
	res.Categories = SummarizeCategories(recs)
	res.TopSuppliers = TopSuppliers(recs, opt.TopSuppliers)
	res.Concentration = SupplierConcentration(recs)
	res.Monthly = MonthlyVolume(recs)
	res.Insights = FormatInsights(res.Fragmentation, res.Variance, res.Categories, res.BaseCurrency, opt)

	res.Warnings = append(res.Warnings, norm.Warnings...)
	if res.ZeroMinItems > 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%d item(s) with a zero minimum or credit lines were left out of price variance", res.ZeroMinItems))
	}
	if n := NegativeGroups(res.Categories); n > 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%d material group(s) have a negative total; their spend share is reported as 0", n))
	}
	return res, nil
}

// TopVariance returns at most n variance rows.
func (r *Result) TopVariance(n int) []VarianceRow {
	if n <= 0 || len(r.Variance) <= n {
		return r.Variance
	}
	return r.Variance[:n]
}

// TopFragmentation returns at most n fragmentation rows.
func (r *Result) TopFragmentation(n int) []FragmentationRow {
	if n <= 0 || len(r.Fragmentation) <= n {
		return r.Fragmentation
	}
	return r.Fragmentation[:n]
}

// HighRisk returns material groups with a High concentration risk.
func (r *Result) HighRisk() []GroupConcentration {
	return HighRiskGroups(r.Concentration)
}
