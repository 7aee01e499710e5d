package analysis

import (
	"math"
	"reflect"
	"strings"
	"testing"
)

func rec(material, text, supplier, group string, spend float64) Record {
	return Record{
		PurchaseRecord: PurchaseRecord{Material: material, ShortText: text, Supplier: supplier, MaterialGroup: group},
		RateToBase:     1,
		RateKnown:      true,
		TotalSpend:     spend,
	}
}

func TestExamplePipelineFragmentationAndVariance(t *testing.T) {
	res, err := Run(exampleTable(), testOptions(t))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Fragmentation) != 1 || res.Fragmentation[0].UniqueSuppliers != 3 || res.Fragmentation[0].Material != "M1" {
		t.Fatalf("fragmentation = %+v", res.Fragmentation)
	}
	if len(res.Variance) != 1 {
		t.Fatalf("variance = %+v", res.Variance)
	}
	v := res.Variance[0]
	if v.MinPrice != 367 || v.MaxPrice != 734 || v.VariancePct != 100 || v.PurchaseCount != 3 {
		t.Fatalf("variance row = %+v", v)
	}
	if math.Abs(v.AvgPrice-550.5) > 1e-9 {
		t.Fatalf("avg = %v", v.AvgPrice)
	}
}

func TestFragmentationThresholdAndEmptySupplier(t *testing.T) {
	recs := []Record{
		rec("M1", "A", "S1", "G", 1), rec("M1", "A", "S2", "G", 1),
		rec("M1", "A", "", "G", 1), rec("M1", "A", "S2", "G", 1),
		rec("M2", "B", "S1", "G", 1), rec("M2", "B", "S2", "G", 1),
		rec("M2", "B", "S3", "G", 1), rec("M2", "B", "S4", "G", 1),
		rec("M3", "C", "S1", "G", 1), rec("M3", "C", "S2", "G", 1), rec("M3", "C", "S3", "G", 1),
	}
	got := AnalyzeFragmentation(recs, 2)
	if len(got) != 2 {
		t.Fatalf("rows = %+v", got)
	}
	if got[0].Material != "M2" || got[0].UniqueSuppliers != 4 || got[1].Material != "M3" {
		t.Fatalf("order = %+v", got)
	}
	for _, r := range got {
		if r.UniqueSuppliers <= 2 {
			t.Fatalf("row at or below threshold: %+v", r)
		}
	}
}

func TestVarianceSkipsSingletonsAndZeroMinimum(t *testing.T) {
	recs := []Record{
		rec("M1", "A", "S1", "G", 10), rec("M1", "A", "S2", "G", 15),
		rec("M2", "B", "S1", "G", 50),
		rec("M3", "C", "S1", "G", 0), rec("M3", "C", "S2", "G", 5),
		rec("M4", "D", "S1", "G", 4), rec("M4", "D", "S1", "G", 8),
	}
	rows, zero := AnalyzePriceVariance(recs)
	if zero != 1 {
		t.Fatalf("zero-min count = %d", zero)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %+v", rows)
	}
	if rows[0].Material != "M4" || rows[0].VariancePct != 100 || rows[1].Material != "M1" || rows[1].VariancePct != 50 {
		t.Fatalf("order = %+v", rows)
	}
	for _, r := range rows {
		if r.PurchaseCount <= 1 || math.IsInf(r.VariancePct, 0) || math.IsNaN(r.VariancePct) {
			t.Fatalf("bad row %+v", r)
		}
	}
	if got := FilterVariance(rows, 60, -1); len(got) != 1 || got[0].Material != "M4" {
		t.Fatalf("filter min = %+v", got)
	}
	if got := FilterVariance(rows, 10, 60); len(got) != 1 || got[0].Material != "M1" {
		t.Fatalf("filter range = %+v", got)
	}
}

func TestZeroMinimumSurfacesAsWarning(t *testing.T) {
	tbl := &Table{
		Header: []string{"material", "supplier", "net_order_value"},
		Rows:   [][]string{{"M1", "S1", "0"}, {"M1", "S2", "10"}},
	}
	res, err := Run(tbl, testOptions(t))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.ZeroMinItems != 1 || len(res.Variance) != 0 {
		t.Fatalf("zero=%d variance=%+v", res.ZeroMinItems, res.Variance)
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "zero minimum") {
		t.Fatalf("warnings = %v", res.Warnings)
	}
}

func TestCategorySingleGroupIsWholeSpend(t *testing.T) {
	recs := []Record{rec("M1", "A", "S1", "G1", 400), rec("M2", "B", "S1", "G1", 600)}
	got := SummarizeCategories(recs)
	if len(got) != 1 || got[0].TotalSpend != 1000 || got[0].SpendSharePct != 100 || got[0].CumulativeShare != 100 {
		t.Fatalf("categories = %+v", got)
	}
}

func TestCategoryCumulativeShareMonotone(t *testing.T) {
	recs := []Record{
		rec("", "", "S", "C", 33.3), rec("", "", "S", "A", 100.1), rec("", "", "S", "B", 70.7),
		rec("", "", "S", "D", 0.9), rec("", "", "S", "E", 33.3), rec("", "", "S", "A", 1.7),
	}
	got := SummarizeCategories(recs)
	prev := 0.0
	for i, c := range got {
		if c.CumulativeShare < prev {
			t.Fatalf("cumulative share decreased at %d: %+v", i, got)
		}
		prev = c.CumulativeShare
	}
	if math.Abs(prev-100) > 1e-9 {
		t.Fatalf("final cumulative share = %v", prev)
	}
	if got[0].MaterialGroup != "A" || got[2].MaterialGroup != "C" || got[3].MaterialGroup != "E" {
		t.Fatalf("order = %+v", got)
	}
}

func TestCategoryZeroGrandTotal(t *testing.T) {
	got := SummarizeCategories([]Record{rec("", "", "S", "G1", 0), rec("", "", "S", "G2", 0)})
	for _, c := range got {
		if c.SpendSharePct != 0 || c.CumulativeShare != 0 {
			t.Fatalf("expected zero shares: %+v", got)
		}
	}
}

func TestFormatInsightsShapes(t *testing.T) {
	res, err := Run(exampleTable(), testOptions(t))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	want := []string{
		"1 materials are purchased from >2 suppliers; consider consolidation.",
		"1 materials show >10% price variance; review pricing consistency.",
		"Top category: G1 with AED 1,651.50 spend.",
		"0 categories account for 80% of spend; focus sourcing strategy.",
	}
	if !reflect.DeepEqual(res.Insights, want) {
		t.Fatalf("insights:\n%q\nwant\n%q", res.Insights, want)
	}

	empty := FormatInsights(nil, nil, nil, "AED", DefaultOptions())
	if len(empty) != 4 || !strings.HasPrefix(empty[2], "Top category: none") {
		t.Fatalf("empty insights = %q", empty)
	}
}

func TestParetoCountToleratesRounding(t *testing.T) {
	cats := []CategoryRow{{CumulativeShare: 50}, {CumulativeShare: 80.00000000001}, {CumulativeShare: 100}}
	if got := ParetoCount(cats, 80); got != 2 {
		t.Fatalf("pareto = %d", got)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	tbl := &Table{
		Header: []string{"Material", "Short Text", "Supplier", "Material Group", "Currency", "Net Order Value", "Posting Date"},
		Rows: [][]string{
			{"M1", "Bolt", "S1", "G1", "USD", "100.10", "2024-01-03"},
			{"M1", "Bolt", "S2", "G1", "EUR", "220.35", "2024-02-03"},
			{"M2", "Nut", "S3", "G2", "GBP", "13.33", "2024-02-09"},
			{"M2", "Nut", "S1", "G2", "AED", "70.01", ""},
			{"M3", "Pipe", "S4", "G3", "USD", "1,000.00", "2023-12-30"},
			{"M3", "Pipe", "S5", "G3", "JPY", "900", "2023-12-31"},
		},
	}
	opt := testOptions(t)
	a, err := Run(tbl, opt)
	if err != nil {
		t.Fatalf("run a: %v", err)
	}
	b, err := Run(tbl, opt)
	if err != nil {
		t.Fatalf("run b: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("runs differ")
	}
	if len(a.Normalized.Records) != len(tbl.Rows) {
		t.Fatalf("row count changed")
	}
	if len(a.Monthly) != 3 || a.Monthly[0].Month != "2023-12" || a.Monthly[0].Lines != 2 {
		t.Fatalf("monthly = %+v", a.Monthly)
	}
}

func TestExtrasConcentrationAndSuppliers(t *testing.T) {
	var recs []Record
	for i, s := range []string{"S1", "S2", "S3", "S4", "S5", "S6"} {
		recs = append(recs, rec("M", "X", s, "Steel", float64(10*(i+1))))
	}
	recs = append(recs, rec("M", "Y", "S1", "Paint", 5), rec("M", "Y", "S2", "Paint", 5), rec("M", "Y", "S3", "Paint", 5))
	recs = append(recs, rec("M", "Z", "S1", "Paper", 1))

	conc := SupplierConcentration(recs)
	levels := map[string]string{}
	for _, c := range conc {
		levels[c.MaterialGroup] = c.RiskLevel
	}
	if levels["Steel"] != RiskHigh || levels["Paint"] != RiskMedium || levels["Paper"] != RiskLow {
		t.Fatalf("levels = %v", levels)
	}
	if hr := HighRiskGroups(conc); len(hr) != 1 || hr[0].MaterialGroup != "Steel" {
		t.Fatalf("high risk = %+v", hr)
	}
	top := TopSuppliers(recs, 2)
	if len(top) != 2 || top[0].Supplier != "S6" || top[1].Supplier != "S5" {
		t.Fatalf("top suppliers = %+v", top)
	}
	k := ComputeKPIs(recs)
	if k.UniqueSuppliers != 6 || k.UniqueMaterials != 1 || k.Lines != 10 {
		t.Fatalf("kpis = %+v", k)
	}
}

func TestMarkdownReportSections(t *testing.T) {
	res, err := Run(exampleTable(), testOptions(t))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	md := res.Markdown(DefaultReportOptions())
	for _, want := range []string{"[SPEND SUMMARY]", "[INSIGHTS]", "[FRAGMENTATION]", "[PRICE VARIANCE]", "[CATEGORY SPEND]", "M1 Bolt: 3 suppliers", "AED 1,651.50"} {
		if !strings.Contains(md, want) {
			t.Fatalf("report missing %q:\n%s", want, md)
		}
	}
}

func TestCreditLinesStayOutOfVarianceAndShares(t *testing.T) {
	recs := []Record{
		rec("M1", "A", "S1", "Steel", -20), rec("M1", "A", "S2", "Steel", 50),
		rec("M2", "B", "S1", "Paint", 40), rec("M2", "B", "S2", "Paint", 60),
		rec("M3", "C", "S1", "Returns", -30),
	}
	rows, skipped := AnalyzePriceVariance(recs)
	if skipped != 1 || len(rows) != 1 || rows[0].Material != "M2" {
		t.Fatalf("rows=%+v skipped=%d", rows, skipped)
	}
	for _, r := range rows {
		if r.VariancePct < 0 {
			t.Fatalf("negative variance %+v", r)
		}
	}

	cats := SummarizeCategories(recs)
	prev := 0.0
	for i, c := range cats {
		if c.CumulativeShare < prev {
			t.Fatalf("cumulative share decreased at %d: %+v", i, cats)
		}
		prev = c.CumulativeShare
	}
	last := cats[len(cats)-1]
	if last.MaterialGroup != "Returns" || last.SpendSharePct != 0 || math.Abs(last.CumulativeShare-100) > 1e-9 {
		t.Fatalf("negative group row = %+v", last)
	}
	if NegativeGroups(cats) != 1 {
		t.Fatalf("negative groups = %d", NegativeGroups(cats))
	}
}

func TestRunWarnsAboutNegativeGroups(t *testing.T) {
	tbl := &Table{
		Header: []string{"material", "supplier", "material group", "net_order_value"},
		Rows:   [][]string{{"M1", "S1", "G1", "100"}, {"M2", "S1", "G2", "-40"}},
	}
	res, err := Run(tbl, testOptions(t))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	found := false
	for _, w := range res.Warnings {
		if strings.Contains(w, "negative total") {
			found = true
		}
	}
	if !found {
		t.Fatalf("warnings = %v", res.Warnings)
	}
}
