package parser

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/spendloom-cli/internal/analysis"
)

// Options selects what part of a file to load.
type Options struct {
	// SheetName picks a worksheet by name (case-insensitive).
	SheetName string
	// SheetIndex is 1-based; used when SheetName is empty. 0 means the first sheet.
	SheetIndex int
	// Delimiter for CSV. If 0, it is sniffed from the header line.
	Delimiter rune
	// MaxRows limits data rows loaded; 0 means unlimited.
	MaxRows int
}

// Loader reads a purchase-order export into a raw table.
type Loader interface {
	CanParse(filename string) bool
	Load(path string, opt Options) (*analysis.Table, error)
}

var registry []Loader

// Register adds a loader implementation to the registry.
func Register(l Loader) {
	registry = append(registry, l)
}

// ErrUnsupported indicates a file format no loader handles.
var ErrUnsupported = errors.New("unsupported spreadsheet format")

// ErrOutputWorkbook is returned for files that look like one of our own
// exports, which would otherwise be analyzed as if they were raw data.
var ErrOutputWorkbook = errors.New("file looks like an analysis output, not a raw export")

// IsOutputFile reports whether the base name marks an exported workbook.
func IsOutputFile(path string) bool {
	return strings.Contains(filepath.Base(path), "Output")
}

// LoadFile picks a loader by extension and returns the table.
func LoadFile(path string, opt Options) (*analysis.Table, error) {
	if IsOutputFile(path) {
		return nil, fmt.Errorf("%w: %s", ErrOutputWorkbook, filepath.Base(path))
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("stat: %w", err)
	}
	for _, l := range registry {
		if l.CanParse(path) {
			t, err := l.Load(path, opt)
			if err != nil {
				return nil, err
			}
			if t.Name == "" {
				t.Name = filepath.Base(path)
			}
			return t, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, filepath.Ext(path))
}

// Supported reports whether any loader accepts the filename.
func Supported(path string) bool {
	for _, l := range registry {
		if l.CanParse(path) {
			return true
		}
	}
	return false
}

func init() {
	Register(csvLoader{})
	Register(xlsxLoader{})
}

// trimTrailingEmpty drops fully blank rows at the end of a sheet.
func trimTrailingEmpty(rows [][]string) [][]string {
	for len(rows) > 0 && isBlank(rows[len(rows)-1]) {
		rows = rows[:len(rows)-1]
	}
	return rows
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
