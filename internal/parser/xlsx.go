package parser

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/spendloom-cli/internal/analysis"
	"github.com/xuri/excelize/v2"
)

type xlsxLoader struct{}

func (xlsxLoader) CanParse(filename string) bool {
	name := strings.ToLower(filename)
	return strings.HasSuffix(name, ".xlsx") || strings.HasSuffix(name, ".xlsm")
}

func (xlsxLoader) Load(path string, opt Options) (*analysis.Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheet, err := pickSheet(f, opt)
	if err != nil {
		return nil, fmt.Errorf("%w (workbook %s)", err, filepath.Base(path))
	}
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	t := &analysis.Table{Name: filepath.Base(path)}
	if len(rows) == 0 {
		return t, nil
	}
	t.Header = rows[0]
	data := trimTrailingEmpty(rows[1:])
	if opt.MaxRows > 0 && len(data) > opt.MaxRows {
		data = data[:opt.MaxRows]
	}
	t.Rows = data
	if opt.SheetName != "" || opt.SheetIndex > 1 {
		t.Name = fmt.Sprintf("%s (sheet: %s)", t.Name, sheet)
	}
	return t, nil
}

func pickSheet(f *excelize.File, opt Options) (string, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return "", fmt.Errorf("workbook has no sheets")
	}
	if opt.SheetName != "" {
		for _, s := range sheets {
			if strings.EqualFold(s, opt.SheetName) {
				return s, nil
			}
		}
		return "", fmt.Errorf("sheet '%s' not found; available sheets: %s", opt.SheetName, strings.Join(sheets, ", "))
	}
	idx := opt.SheetIndex
	if idx <= 0 {
		idx = 1
	}
	if idx > len(sheets) {
		return "", fmt.Errorf("sheet index %d out of range (workbook has %d sheets)", idx, len(sheets))
	}
	return sheets[idx-1], nil
}
