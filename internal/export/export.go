// Package export writes analysis results as a multi-sheet workbook or as
// flat CSV files.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/KaramelBytes/spendloom-cli/internal/analysis"
	"github.com/xuri/excelize/v2"
)

// Sheet names in the exported workbook, in order.
const (
	SheetRaw           = "Raw_Data"
	SheetFragmentation = "Fragmentation"
	SheetVariance      = "Price_Variance"
	SheetCategory      = "Category_Spend"
	SheetSummary       = "Summary"
)

// Options tweaks what gets exported.
type Options struct {
	// Variance rows outside [VarianceMin, VarianceMax] are left out.
	// VarianceMax < 0 means no upper bound.
	VarianceMin float64
	VarianceMax float64
	// Summary is optional LLM prose appended to the Summary sheet.
	Summary string
}

// DefaultOptions exports every row.
func DefaultOptions() Options { return Options{VarianceMax: -1} }

// Sheet is one exported table.
type Sheet struct {
	Name   string
	Header []string
	Rows   [][]any
}

// Sheets builds the five export tables from a result.
func Sheets(res *analysis.Result, opt Options) []Sheet {
	return []Sheet{
		rawSheet(res),
		fragmentationSheet(res),
		varianceSheet(res, opt),
		categorySheet(res),
		summarySheet(res, opt),
	}
}

func rawSheet(res *analysis.Result) Sheet {
	s := Sheet{Name: SheetRaw}
	if res.Normalized == nil {
		return s
	}
	cols := res.Normalized.Columns
	s.Header = append(append([]string{}, cols...), "currency_normalized", "rate_to_base", analysis.ColTotalSpend, analysis.ColYear)
	for _, r := range res.Normalized.Records {
		row := make([]any, 0, len(s.Header))
		for i := range cols {
			if i < len(r.Cells) {
				row = append(row, r.Cells[i])
			} else {
				row = append(row, "")
			}
		}
		row = append(row, r.Currency, r.RateToBase, r.TotalSpend, r.Year)
		s.Rows = append(s.Rows, row)
	}
	return s
}

func fragmentationSheet(res *analysis.Result) Sheet {
	s := Sheet{Name: SheetFragmentation, Header: []string{"material", "short_text", "unique_suppliers"}}
	for _, f := range res.Fragmentation {
		s.Rows = append(s.Rows, []any{f.Material, f.ShortText, f.UniqueSuppliers})
	}
	return s
}

func varianceSheet(res *analysis.Result, opt Options) Sheet {
	s := Sheet{Name: SheetVariance, Header: []string{"material", "short_text", "purchase_count", "min_price", "max_price", "avg_price", "variance_pct"}}
	for _, v := range analysis.FilterVariance(res.Variance, opt.VarianceMin, opt.VarianceMax) {
		s.Rows = append(s.Rows, []any{v.Material, v.ShortText, v.PurchaseCount, v.MinPrice, v.MaxPrice, v.AvgPrice, v.VariancePct})
	}
	return s
}

func categorySheet(res *analysis.Result) Sheet {
	s := Sheet{Name: SheetCategory, Header: []string{"material_group", "total_spend", "spend_share_pct", "cumulative_share"}}
	for _, c := range res.Categories {
		s.Rows = append(s.Rows, []any{c.MaterialGroup, c.TotalSpend, c.SpendSharePct, c.CumulativeShare})
	}
	return s
}

func summarySheet(res *analysis.Result, opt Options) Sheet {
	s := Sheet{Name: SheetSummary, Header: []string{"Key Insights"}}
	for _, in := range res.Insights {
		s.Rows = append(s.Rows, []any{in})
	}
	for _, w := range res.Warnings {
		s.Rows = append(s.Rows, []any{"Warning: " + w})
	}
	if opt.Summary != "" {
		s.Rows = append(s.Rows, []any{""}, []any{"AI Summary"}, []any{opt.Summary})
	}
	return s
}

// Workbook renders the result into a new excelize file. Callers close it.
func Workbook(res *analysis.Result, opt Options) (*excelize.File, error) {
	f := excelize.NewFile()
	for i, s := range Sheets(res, opt) {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), s.Name); err != nil {
				f.Close()
				return nil, fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(s.Name); err != nil {
			f.Close()
			return nil, fmt.Errorf("new sheet %s: %w", s.Name, err)
		}
		if err := writeSheet(f, s); err != nil {
			f.Close()
			return nil, err
		}
	}
	return f, nil
}

func writeSheet(f *excelize.File, s Sheet) error {
	for i, h := range s.Header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(s.Name, cell, h); err != nil {
			return fmt.Errorf("%s header: %w", s.Name, err)
		}
	}
	for r, row := range s.Rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(s.Name, cell, v); err != nil {
				return fmt.Errorf("%s %s: %w", s.Name, cell, err)
			}
		}
	}
	return nil
}

// WriteXLSX saves the workbook to path, creating parent directories.
func WriteXLSX(res *analysis.Result, path string, opt Options) error {
	f, err := Workbook(res, opt)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return f.SaveAs(path)
}

// WriteXLSXTo streams the workbook to w.
func WriteXLSXTo(res *analysis.Result, w io.Writer, opt Options) error {
	f, err := Workbook(res, opt)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteTo(w)
	return err
}

// WriteCSVs writes one CSV per sheet into dir, prefixed with prefix, and
// returns the paths written.
func WriteCSVs(res *analysis.Result, dir, prefix string, opt Options) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	var paths []string
	for _, s := range Sheets(res, opt) {
		p := filepath.Join(dir, prefix+s.Name+".csv")
		if err := writeCSV(p, s); err != nil {
			return paths, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

func writeCSV(path string, s Sheet) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write(s.Header); err != nil {
		return err
	}
	rec := make([]string, 0, len(s.Header))
	for _, row := range s.Rows {
		rec = rec[:0]
		for _, v := range row {
			rec = append(rec, cellText(v))
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func cellText(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	default:
		return fmt.Sprint(x)
	}
}
