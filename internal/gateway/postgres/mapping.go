package postgres

import (
	"github.com/frahmantamala/datashare/internal/core/domain"
	"github.com/frahmantamala/datashare/internal/core/identity"
	projectDatamodel "github.com/frahmantamala/datashare/internal/core/datamodel/project"
	userDatamodel "github.com/frahmantamala/datashare/internal/core/datamodel/user"
)

func toDomainUser(r userDatamodel.User) domain.User {
	role, ok := identity.ParseGlobalRole(r.Role)
	if !ok {
		role = identity.RoleUser
	}
	return domain.User{
		ID:           r.ID,
		Email:        r.Email,
		Name:         r.Name,
		PasswordHash: r.PasswordHash,
		Role:         role,
		CreatedAt:    r.CreatedAt,
	}
}

func toDomainProject(r projectDatamodel.Project) domain.Project {
	source, ok := domain.ParseDataSource(r.DataSource)
	if !ok {
		source = domain.DataSourceExcel
	}
	tags := r.Tags
	if tags == nil {
		tags = []string{}
	}
	return domain.Project{
		ID:              r.ID,
		Name:            r.Name,
		Description:     r.Description,
		CreatedBy:       r.CreatedBy,
		Columns:         []string{},
		SelectedColumns: []string{},
		IsPublic:        r.IsPublic,
		DataSource:      source,
		Category:        r.Category,
		Tags:            tags,
		CreatedAt:       r.CreatedAt,
	}
}

func fromDomainProject(p domain.Project) projectDatamodel.Project {
	source := p.DataSource
	if source == "" {
		source = domain.DataSourceExcel
	}
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	return projectDatamodel.Project{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		CreatedBy:   identity.Normalize(p.CreatedBy),
		IsPublic:    p.IsPublic,
		DataSource:  string(source),
		Category:    p.Category,
		Tags:        tags,
	}
}

func fromDomainColumn(projectID int64, c domain.Column) projectDatamodel.ProjectColumn {
	pos := c.SelectedPosition
	if !c.Selected {
		pos = -1
	}
	return projectDatamodel.ProjectColumn{
		ProjectID:        projectID,
		ColumnName:       c.Name,
		Position:         c.Position,
		IsSelected:       c.Selected,
		SelectedPosition: pos,
	}
}

func toDomainAssignment(r projectDatamodel.ProjectUser) domain.Assignment {
	role, ok := domain.ParseRole(r.Role)
	if !ok {
		role = domain.RoleViewer
	}
	return domain.Assignment{
		ID:        r.ID,
		ProjectID: r.ProjectID,
		UserID:    identity.Normalize(r.UserID),
		Email:     r.Email,
		Role:      role,
		CreatedAt: r.CreatedAt,
	}
}
