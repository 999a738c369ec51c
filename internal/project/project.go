package project

import (
	"time"

	"github.com/frahmantamala/datashare/internal/core/domain"
	"github.com/frahmantamala/datashare/internal/gateway"
)

// ProjectSummary is one row of the project list.
type ProjectSummary struct {
	ID             int64             `json:"id"`
	Name           string            `json:"name"`
	Description    string            `json:"description"`
	Category       string            `json:"category"`
	Tags           []string          `json:"tags"`
	DataSource     domain.DataSource `json:"data_source"`
	IsPublic       bool              `json:"is_public"`
	CreatedAt      time.Time         `json:"created_at"`
	Role           domain.Role       `json:"role"`
	ColumnCount    int               `json:"column_count"`
	VisibleColumns int               `json:"visible_columns"`
}

type ProjectList struct {
	Projects []ProjectSummary `json:"projects"`
	State    string           `json:"state"`
	LoadedAt time.Time        `json:"loaded_at"`
}

// ProjectDetail is the single-project view. AvailableColumns is only filled
// for callers who may curate the selection.
type ProjectDetail struct {
	Project          domain.Project           `json:"project"`
	Role             domain.Role              `json:"role"`
	VisibleColumns   []string                 `json:"visible_columns"`
	AvailableColumns []string                 `json:"available_columns,omitempty"`
	Rows             []map[string]interface{} `json:"rows"`
	RowLimit         int                      `json:"row_limit"`
	Assignments      []domain.Assignment      `json:"assignments"`
	Counts           gateway.Counts           `json:"counts"`
	Consistent       bool                     `json:"consistent"`
	CanCurate        bool                     `json:"can_curate"`
}

type RowPage struct {
	ProjectID int64                    `json:"project_id"`
	Columns   []string                 `json:"columns"`
	Rows      []map[string]interface{} `json:"rows"`
	Limit     int                      `json:"limit"`
}

// DashboardSummary aggregates what the caller can see.
type DashboardSummary struct {
	ProjectCount        int            `json:"project_count"`
	PublicProjectCount  int            `json:"public_project_count"`
	RoleCounts          map[string]int `json:"role_counts"`
	AssignmentCounts    map[string]int `json:"assignment_counts"`
	TotalVisibleColumns int            `json:"total_visible_columns"`
}

func toSummary(p domain.Project, role domain.Role) ProjectSummary {
	return ProjectSummary{
		ID:             p.ID,
		Name:           p.Name,
		Description:    p.Description,
		Category:       p.Category,
		Tags:           append([]string{}, p.Tags...),
		DataSource:     p.DataSource,
		IsPublic:       p.IsPublic,
		CreatedAt:      p.CreatedAt,
		Role:           role,
		ColumnCount:    len(p.Columns),
		VisibleColumns: len(p.SelectedColumns),
	}
}
