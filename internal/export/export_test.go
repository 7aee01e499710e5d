package export

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/KaramelBytes/spendloom-cli/internal/analysis"
	"github.com/KaramelBytes/spendloom-cli/internal/fx"
	"github.com/xuri/excelize/v2"
)

func sampleResult(t *testing.T) *analysis.Result {
	t.Helper()
	rates, err := fx.New("AED", fx.DefaultRates())
	if err != nil {
		t.Fatalf("rates: %v", err)
	}
	opt := analysis.DefaultOptions()
	opt.Rates = rates
	tbl := &analysis.Table{
		Name:   "po.xlsx",
		Header: []string{"Material", "Short Text", "Supplier", "Material Group", "Currency", "Net Order Value"},
		Rows: [][]string{
			{"M1", "Bolt", "S1", "G1", "USD", "100"},
			{"M1", "Bolt", "S2", "G1", "USD", "200"},
			{"M1", "Bolt", "S3", "G1", "USD", "150"},
			{"M2", "Nut", "S1", "G2", "AED", "10"},
		},
	}
	res, err := analysis.Run(tbl, opt)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	return res
}

func TestWorkbookHasAllSheets(t *testing.T) {
	res := sampleResult(t)
	var buf bytes.Buffer
	opt := DefaultOptions()
	opt.Summary = "- consolidate bolts"
	if err := WriteXLSXTo(res, &buf, opt); err != nil {
		t.Fatalf("write: %v", err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	got := f.GetSheetList()
	want := []string{SheetRaw, SheetFragmentation, SheetVariance, SheetCategory, SheetSummary}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("sheets = %v", got)
	}
	raw, err := f.GetRows(SheetRaw)
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(raw) != 5 || raw[0][len(raw[0])-2] != "total_spend" || raw[1][len(raw[1])-2] != "367" {
		t.Fatalf("raw sheet = %q", raw)
	}
	sum, _ := f.GetRows(SheetSummary)
	if len(sum) < 5 || sum[len(sum)-1][0] != "- consolidate bolts" {
		t.Fatalf("summary sheet = %q", sum)
	}
}

func TestVarianceRangeFilter(t *testing.T) {
	res := sampleResult(t)
	opt := DefaultOptions()
	opt.VarianceMin = 150
	for _, s := range Sheets(res, opt) {
		if s.Name == SheetVariance && len(s.Rows) != 0 {
			t.Fatalf("expected filtered variance sheet, got %v", s.Rows)
		}
	}
}

func TestWriteCSVs(t *testing.T) {
	res := sampleResult(t)
	dir := t.TempDir()
	paths, err := WriteCSVs(res, dir, "po_", DefaultOptions())
	if err != nil {
		t.Fatalf("csv: %v", err)
	}
	if len(paths) != 5 {
		t.Fatalf("paths = %v", paths)
	}
	b, err := os.ReadFile(filepath.Join(dir, "po_Category_Spend.csv"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	if lines[0] != "material_group,total_spend,spend_share_pct,cumulative_share" || !strings.HasPrefix(lines[1], "G1,1651.5,") {
		t.Fatalf("category csv = %q", lines)
	}
}
