package analysis

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// Table is a raw spreadsheet as read from disk: one header row followed by
// data rows, all kept as cell text.
type Table struct {
	Name   string
	Header []string
	Rows   [][]string
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// NormalizeHeader trims, lower-cases and replaces spaces with underscores.
func NormalizeHeader(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}

// columnIndex maps normalized column names to their first position.
type columnIndex map[string]int

func buildColumnIndex(cols []string) columnIndex {
	idx := make(columnIndex, len(cols))
	for i, c := range cols {
		if _, dup := idx[c]; dup {
			continue
		}
		idx[c] = i
	}
	return idx
}

func (ci columnIndex) has(name string) bool {
	_, ok := ci[name]
	return ok
}

// cell returns the trimmed value of column name in row, or "" when absent.
func (ci columnIndex) cell(row []string, name string) string {
	i, ok := ci[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// parseNumeric parses a locale-formatted number. With dec == 0 the decimal
// separator is guessed from the last ',' or '.' in the value.
func parseNumeric(s string, dec, thou rune) (float64, bool) {
	raw := strings.TrimSpace(s)
	raw = strings.ReplaceAll(raw, "\u00A0", " ")
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	if dec == 0 {
		cpos := strings.LastIndex(raw, ",")
		dpos := strings.LastIndex(raw, ".")
		switch {
		case cpos >= 0 && dpos >= 0:
			if cpos > dpos {
				dec, thou = ',', '.'
			} else {
				dec, thou = '.', ','
			}
		case cpos >= 0:
			// "1,234" is a thousands group, "12,5" a decimal comma.
			if len(raw)-cpos-1 == 3 && strings.Count(raw, ",") >= 1 && !strings.HasPrefix(raw, "0,") {
				dec, thou = '.', ','
			} else {
				dec = ','
			}
		default:
			dec = '.'
		}
	}
	if thou == 0 {
		for _, sep := range []rune{',', '.', ' '} {
			if sep != dec {
				raw = strings.ReplaceAll(raw, string(sep), "")
			}
		}
	} else if thou != dec {
		raw = strings.ReplaceAll(raw, string(thou), "")
	}
	if dec != '.' {
		raw = strings.ReplaceAll(raw, string(dec), ".")
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Slash dates are read month-first; day-first only when that cannot parse.
var dateLayouts = []string{
	time.RFC3339, "2006-01-02", "2006/01/02", "02.01.2006", "01/02/2006", "02/01/2006",
	"2006-01-02 15:04", "2006-01-02 15:04:05", "1/2/2006 15:04", "1/2/2006 15:04:05",
	"1/2/06", "01-02-06", "2006-01-02T15:04:05",
}

// parseTimeMaybe parses a posting date. Spreadsheet serial numbers (days
// since 1899-12-30) are accepted in a plausible range.
func parseTimeMaybe(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, l := range dateLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 20000 && f <= 80000 {
		if t, err := excelize.ExcelDateToTime(f, false); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
