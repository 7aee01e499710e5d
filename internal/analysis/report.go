package analysis

import (
	"fmt"
	"strings"
)

// ReportOptions limits how many rows each section prints.
type ReportOptions struct {
	MaxRows int
	// Variance range shown in the variance section; VarianceMax < 0 means no cap.
	VarianceMin float64
	VarianceMax float64
}

// DefaultReportOptions shows ten rows per section and every variance row.
func DefaultReportOptions() ReportOptions {
	return ReportOptions{MaxRows: 10, VarianceMin: 0, VarianceMax: -1}
}

func safeVal(s string) string {
	s = strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/")
	if strings.TrimSpace(s) == "" {
		return "(blank)"
	}
	return s
}

func itemLabel(k ItemKey) string {
	switch {
	case k.Material != "" && k.ShortText != "":
		return fmt.Sprintf("%s %s", safeVal(k.Material), safeVal(k.ShortText))
	case k.ShortText != "":
		return safeVal(k.ShortText)
	default:
		return safeVal(k.Material)
	}
}

// Markdown renders the result as a compact plain-text report.
func (r *Result) Markdown(ro ReportOptions) string {
	if ro.MaxRows <= 0 {
		ro.MaxRows = DefaultReportOptions().MaxRows
	}
	lim := func(n int) int {
		if n > ro.MaxRows {
			return ro.MaxRows
		}
		return n
	}
	cur := r.BaseCurrency
	var b strings.Builder
	b.WriteString("[SPEND SUMMARY]\n")
	if r.Source != "" {
		b.WriteString(fmt.Sprintf("File: %s\n", r.Source))
	}
	b.WriteString(fmt.Sprintf("Lines: %d\n", r.KPIs.Lines))
	b.WriteString(fmt.Sprintf("Total spend: %s %s\n", cur, FormatMoney(r.KPIs.TotalSpend)))
	b.WriteString(fmt.Sprintf("Materials: %d, suppliers: %d\n\n", r.KPIs.UniqueMaterials, r.KPIs.UniqueSuppliers))

	b.WriteString("[INSIGHTS]\n")
	for _, s := range r.Insights {
		b.WriteString("- " + s + "\n")
	}

	if len(r.Warnings) > 0 {
		b.WriteString("\n[WARNINGS]\n")
		for _, w := range r.Warnings {
			b.WriteString("- " + w + "\n")
		}
	}

	b.WriteString("\n[FRAGMENTATION]\n")
	if len(r.Fragmentation) == 0 {
		b.WriteString("- none\n")
	}
	for _, f := range r.Fragmentation[:lim(len(r.Fragmentation))] {
		b.WriteString(fmt.Sprintf("- %s: %d suppliers\n", itemLabel(f.ItemKey), f.UniqueSuppliers))
	}

	b.WriteString("\n[PRICE VARIANCE]\n")
	vr := FilterVariance(r.Variance, ro.VarianceMin, ro.VarianceMax)
	if len(vr) == 0 {
		b.WriteString("- none\n")
	}
	for _, v := range vr[:lim(len(vr))] {
		b.WriteString(fmt.Sprintf("- %s: %.1f%% (n=%d, min %s, max %s, avg %s)\n",
			itemLabel(v.ItemKey), v.VariancePct, v.PurchaseCount,
			FormatMoney(v.MinPrice), FormatMoney(v.MaxPrice), FormatMoney(v.AvgPrice)))
	}

	b.WriteString("\n[CATEGORY SPEND]\n")
	for _, c := range r.Categories[:lim(len(r.Categories))] {
		b.WriteString(fmt.Sprintf("- %s: %s %s (%.1f%%, cumulative %.1f%%)\n",
			safeVal(c.MaterialGroup), cur, FormatMoney(c.TotalSpend), c.SpendSharePct, c.CumulativeShare))
	}

	if len(r.TopSuppliers) > 0 {
		b.WriteString("\n[TOP SUPPLIERS]\n")
		for _, s := range r.TopSuppliers[:lim(len(r.TopSuppliers))] {
			b.WriteString(fmt.Sprintf("- %s: %s %s\n", safeVal(s.Supplier), cur, FormatMoney(s.TotalSpend)))
		}
	}

	if len(r.Concentration) > 0 {
		b.WriteString("\n[SUPPLIER CONCENTRATION]\n")
		for _, g := range r.Concentration[:lim(len(r.Concentration))] {
			b.WriteString(fmt.Sprintf("- %s: %d suppliers (%s)\n", safeVal(g.MaterialGroup), g.UniqueSuppliers, g.RiskLevel))
		}
	}

	if len(r.Monthly) > 0 {
		b.WriteString("\n[MONTHLY VOLUME]\n")
		for _, m := range r.Monthly {
			b.WriteString(fmt.Sprintf("- %s: %d\n", m.Month, m.Lines))
		}
	}
	return b.String()
}
