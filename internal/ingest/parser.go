// Package ingest turns uploaded spreadsheets into an ordered column list and
// row records, then hands them to a sink that persists them.
package ingest

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/frahmantamala/datashare/internal/core/domain"
	"github.com/spf13/cast"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrEmptyDocument     = errors.New("document has no data rows")
)

// Parser reads one document. Values in the returned rows are string,
// float64 or nil.
type Parser interface {
	Parse(data []byte) (columns []string, rows []map[string]interface{}, err error)
}

type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// DataSource maps a file format to the project data source it implies.
func (f Format) DataSource() domain.DataSource {
	if f == FormatCSV {
		return domain.DataSourceCSV
	}
	return domain.DataSourceExcel
}

// DetectFormat picks a format from the file extension.
func DetectFormat(filename string) (Format, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(filename))
}

// buildRecords pairs header cells with every following record. Header names
// are trimmed, blanks get a positional name and repeats get a numeric suffix.
// Blank records are skipped and short records are padded with nil.
func buildRecords(header []string, records [][]string) ([]string, []map[string]interface{}, error) {
	columns := normalizeHeader(header)
	if len(columns) == 0 {
		return nil, nil, ErrEmptyDocument
	}

	rows := make([]map[string]interface{}, 0, len(records))
	for _, rec := range records {
		if isBlank(rec) {
			continue
		}
		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			if i < len(rec) {
				row[col] = scalar(rec[i])
			} else {
				row[col] = nil
			}
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, nil, ErrEmptyDocument
	}
	return columns, rows, nil
}

// normalizeHeader returns unique column names. The first occurrence of every
// named header keeps its name; blanks and repeats get generated names that
// never collide with any other column.
func normalizeHeader(header []string) []string {
	// trailing empty header cells are formatting, not columns
	end := len(header)
	for end > 0 && strings.TrimSpace(header[end-1]) == "" {
		end--
	}

	names := make([]string, end)
	taken := make(map[string]bool, end)
	kept := make([]bool, end)
	for i, h := range header[:end] {
		names[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if names[i] != "" && !taken[names[i]] {
			taken[names[i]] = true
			kept[i] = true
		}
	}

	next := make(map[string]int)
	columns := make([]string, 0, end)
	for i, name := range names {
		if !kept[i] {
			base := name
			if base == "" {
				base = fmt.Sprintf("column_%d", i+1)
				name = base
			}
			for n := max(next[base], 2); taken[name]; n++ {
				name = fmt.Sprintf("%s_%d", base, n)
				next[base] = n + 1
			}
			taken[name] = true
		}
		columns = append(columns, name)
	}
	return columns
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func scalar(raw string) interface{} {
	v := strings.TrimSpace(raw)
	if v == "" {
		return nil
	}
	f, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return v
	}
	return f
}
