package domain

import (
	"strings"
	"time"
)

type DataSource string

const (
	DataSourceExcel    DataSource = "excel"
	DataSourceCSV      DataSource = "csv"
	DataSourceAPI      DataSource = "api"
	DataSourceDatabase DataSource = "database"
)

func ParseDataSource(s string) (DataSource, bool) {
	switch DataSource(strings.ToLower(strings.TrimSpace(s))) {
	case DataSourceExcel:
		return DataSourceExcel, true
	case DataSourceCSV:
		return DataSourceCSV, true
	case DataSourceAPI:
		return DataSourceAPI, true
	case DataSourceDatabase:
		return DataSourceDatabase, true
	}
	return "", false
}

// Project is a named dataset. SelectedColumns is always a subset of Columns;
// its order is display order.
type Project struct {
	ID              int64      `json:"id"`
	Name            string     `json:"name"`
	Description     string     `json:"description"`
	CreatedBy       string     `json:"created_by"`
	Columns         []string   `json:"columns"`
	SelectedColumns []string   `json:"selected_columns"`
	IsPublic        bool       `json:"is_public"`
	DataSource      DataSource `json:"data_source"`
	Category        string     `json:"category"`
	Tags            []string   `json:"tags"`
	CreatedAt       time.Time  `json:"created_at"`
}

// Clone returns a deep copy so snapshots never share slices.
func (p Project) Clone() Project {
	cp := p
	cp.Columns = append([]string(nil), p.Columns...)
	cp.SelectedColumns = append([]string(nil), p.SelectedColumns...)
	cp.Tags = append([]string(nil), p.Tags...)
	return cp
}

// Column is one persisted column of a project upload.
type Column struct {
	Name             string `json:"name"`
	Position         int    `json:"position"`
	Selected         bool   `json:"selected"`
	SelectedPosition int    `json:"selected_position"`
}

// ColumnsOf expands a project's column state into persisted column records.
func ColumnsOf(p Project) []Column {
	order := make(map[string]int, len(p.SelectedColumns))
	for i, c := range p.SelectedColumns {
		order[c] = i
	}
	cols := make([]Column, len(p.Columns))
	for i, name := range p.Columns {
		pos, selected := order[name]
		cols[i] = Column{Name: name, Position: i, Selected: selected, SelectedPosition: pos}
		if !selected {
			cols[i].SelectedPosition = -1
		}
	}
	return cols
}

// WithColumns fills Columns and SelectedColumns from persisted records.
func (p Project) WithColumns(cols []Column) Project {
	sorted := append([]Column(nil), cols...)
	sortColumns(sorted, func(c Column) int { return c.Position })
	p.Columns = make([]string, 0, len(sorted))
	for _, c := range sorted {
		p.Columns = append(p.Columns, c.Name)
	}

	selected := make([]Column, 0, len(sorted))
	for _, c := range sorted {
		if c.Selected {
			selected = append(selected, c)
		}
	}
	sortColumns(selected, func(c Column) int { return c.SelectedPosition })
	p.SelectedColumns = make([]string, 0, len(selected))
	for _, c := range selected {
		p.SelectedColumns = append(p.SelectedColumns, c.Name)
	}
	return p
}

func sortColumns(cols []Column, key func(Column) int) {
	// insertion sort keeps equal keys in their original order
	for i := 1; i < len(cols); i++ {
		for j := i; j > 0 && key(cols[j]) < key(cols[j-1]); j-- {
			cols[j], cols[j-1] = cols[j-1], cols[j]
		}
	}
}

// DataRow is one uploaded record. Values are string, float64 or nil.
type DataRow struct {
	ProjectID int64                  `json:"project_id"`
	Payload   map[string]interface{} `json:"payload"`
}
