package project

import (
	"strings"

	"github.com/frahmantamala/datashare/internal"
	"github.com/frahmantamala/datashare/internal/core/common/validation"
	"github.com/frahmantamala/datashare/internal/core/domain"
	"github.com/samber/lo"
)

type CreateProjectDTO struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	IsPublic    bool     `json:"is_public"`
	DataSource  string   `json:"data_source"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags"`
}

func (d *CreateProjectDTO) Normalize() {
	d.Name = strings.TrimSpace(d.Name)
	d.Description = strings.TrimSpace(d.Description)
	d.Category = strings.TrimSpace(d.Category)
	d.DataSource = strings.ToLower(strings.TrimSpace(d.DataSource))
	if d.DataSource == "" {
		d.DataSource = string(domain.DataSourceExcel)
	}
	d.Tags = cleanTags(d.Tags)
}

func (d CreateProjectDTO) Validate() *internal.AppError {
	v := validation.NewValidator()
	v.Field("name", d.Name).Required().MaxLength(200)
	v.Field("description", d.Description).MaxLength(2000)
	v.Field("category", d.Category).MaxLength(100)
	v.Field("data_source", d.DataSource).OneOf(validation.DataSources, internal.ErrCodeValidationFailed)
	return v.Validate()
}

func (d CreateProjectDTO) ToDomain() domain.Project {
	source, ok := domain.ParseDataSource(d.DataSource)
	if !ok {
		source = domain.DataSourceExcel
	}
	return domain.Project{
		Name:        d.Name,
		Description: d.Description,
		IsPublic:    d.IsPublic,
		DataSource:  source,
		Category:    d.Category,
		Tags:        d.Tags,
	}
}

// UpdateProjectDTO is a partial update; nil fields keep their current value.
type UpdateProjectDTO struct {
	Name        *string   `json:"name"`
	Description *string   `json:"description"`
	IsPublic    *bool     `json:"is_public"`
	DataSource  *string   `json:"data_source"`
	Category    *string   `json:"category"`
	Tags        *[]string `json:"tags"`
}

func (d UpdateProjectDTO) Validate() *internal.AppError {
	v := validation.NewValidator()
	if d.Name != nil {
		v.Field("name", strings.TrimSpace(*d.Name)).Required().MaxLength(200)
	}
	if d.Description != nil {
		v.Field("description", *d.Description).MaxLength(2000)
	}
	if d.Category != nil {
		v.Field("category", *d.Category).MaxLength(100)
	}
	if d.DataSource != nil {
		v.Field("data_source", *d.DataSource).Required().OneOf(validation.DataSources, internal.ErrCodeValidationFailed)
	}
	return v.Validate()
}

// Apply returns p with the present fields overwritten.
func (d UpdateProjectDTO) Apply(p domain.Project) domain.Project {
	out := p.Clone()
	if d.Name != nil {
		out.Name = strings.TrimSpace(*d.Name)
	}
	if d.Description != nil {
		out.Description = strings.TrimSpace(*d.Description)
	}
	if d.IsPublic != nil {
		out.IsPublic = *d.IsPublic
	}
	if d.DataSource != nil {
		// an unvalidated unknown source keeps the current one
		if source, ok := domain.ParseDataSource(*d.DataSource); ok {
			out.DataSource = source
		}
	}
	if d.Category != nil {
		out.Category = strings.TrimSpace(*d.Category)
	}
	if d.Tags != nil {
		out.Tags = cleanTags(*d.Tags)
	}
	return out
}

type SelectColumnsDTO struct {
	Columns []string `json:"columns"`
}

type AddAssignmentDTO struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (d *AddAssignmentDTO) Normalize() {
	d.Email = strings.ToLower(strings.TrimSpace(d.Email))
	d.Role = strings.ToLower(strings.TrimSpace(d.Role))
}

func (d AddAssignmentDTO) Validate() *internal.AppError {
	v := validation.NewValidator()
	v.Field("email", d.Email).Required().Email()
	v.Field("role", d.Role).Required().OneOf(validation.ProjectRoles, internal.ErrCodeInvalidRole)
	return v.Validate()
}

func cleanTags(tags []string) []string {
	trimmed := lo.Map(tags, func(t string, _ int) string { return strings.TrimSpace(t) })
	return lo.Uniq(lo.Compact(trimmed))
}
