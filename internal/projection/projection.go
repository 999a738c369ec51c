// Package projection owns a project's column visibility: which columns exist
// after an upload and which curated subset is exposed to readers.
package projection

import (
	"github.com/frahmantamala/datashare/internal"
	"github.com/frahmantamala/datashare/internal/core/domain"
	"github.com/samber/lo"
)

// MinVisibleColumns is the selection floor. A selection must hold strictly
// more distinct columns than this.
const MinVisibleColumns = 3

// IngestColumns replaces the project's columns with the freshly uploaded list
// and keeps whatever part of the previous selection still exists.
func IngestColumns(project domain.Project, columns []string) domain.Project {
	next := project.Clone()
	next.Columns = append([]string{}, columns...)
	next.SelectedColumns = lo.Filter(project.SelectedColumns, func(c string, _ int) bool {
		return lo.Contains(columns, c)
	})
	return next
}

// SetSelectedColumns validates requested against the project's columns and
// returns the project with requested (deduplicated, caller order) selected.
func SetSelectedColumns(project domain.Project, requested []string) (domain.Project, error) {
	unknown := lo.Uniq(lo.Without(requested, project.Columns...))
	if len(unknown) > 0 {
		return project, internal.NewUnknownColumnError(unknown)
	}

	selected := lo.Uniq(requested)
	if len(selected) <= MinVisibleColumns {
		return project, internal.NewTooFewColumnsError(MinVisibleColumns+1-len(selected), MinVisibleColumns)
	}

	next := project.Clone()
	next.SelectedColumns = selected
	return next, nil
}

// VisibleColumnsFor returns the columns a holder of role may read. Visibility
// is the curated selection for every role; roles differ only in what they may
// change.
func VisibleColumnsFor(project domain.Project, role domain.Role) []string {
	if role == domain.RoleNone {
		return []string{}
	}
	return append([]string{}, project.SelectedColumns...)
}

// ProjectRow narrows a row payload to columns. Missing values come back as nil.
func ProjectRow(row domain.DataRow, columns []string) map[string]interface{} {
	out := make(map[string]interface{}, len(columns))
	for _, c := range columns {
		out[c] = row.Payload[c]
	}
	return out
}

// ProjectRows applies ProjectRow to every row.
func ProjectRows(rows []domain.DataRow, columns []string) []map[string]interface{} {
	return lo.Map(rows, func(r domain.DataRow, _ int) map[string]interface{} {
		return ProjectRow(r, columns)
	})
}

// CheckConsistency flags a project whose columns and rows disagree, which is
// what an interrupted ingestion leaves behind.
func CheckConsistency(columnCount, rowCount int) error {
	if (columnCount > 0 && rowCount == 0) || (columnCount == 0 && rowCount > 0) {
		return internal.ErrPartialIngestion
	}
	return nil
}
