package postgres

import (
	"context"
	"errors"
	"strconv"

	"github.com/frahmantamala/datashare/internal"
	"github.com/frahmantamala/datashare/internal/core/domain"
	"github.com/frahmantamala/datashare/internal/core/identity"
	projectDatamodel "github.com/frahmantamala/datashare/internal/core/datamodel/project"
	userDatamodel "github.com/frahmantamala/datashare/internal/core/datamodel/user"
	"github.com/frahmantamala/datashare/internal/gateway"
	"github.com/jmoiron/sqlx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const insertBatchSize = 500

type Gateway struct {
	db    *gorm.DB
	probe *sqlx.DB
}

// NewGateway returns a gorm backed gateway. probe is optional; when set,
// ProjectCounts runs through it instead of gorm.
func NewGateway(db *gorm.DB, probe *sqlx.DB) *Gateway {
	return &Gateway{db: db, probe: probe}
}

func (g *Gateway) WithinTransaction(ctx context.Context, fn func(tx gateway.Gateway) error) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Gateway{db: tx, probe: g.probe})
	})
}

func parseID(id string) (int64, bool) {
	n, err := strconv.ParseInt(identity.Normalize(id), 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// ----------------- USERS -----------------

func (g *Gateway) ListUsers(ctx context.Context) ([]domain.User, error) {
	var rows []userDatamodel.User
	if err := g.db.WithContext(ctx).Order("created_at DESC, id DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	users := make([]domain.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, toDomainUser(r))
	}
	return users, nil
}

func (g *Gateway) GetUser(ctx context.Context, id string) (*domain.User, error) {
	n, ok := parseID(id)
	if !ok {
		return nil, internal.ErrUserNotFound
	}
	return g.firstUser(g.db.WithContext(ctx).Where("id = ?", n))
}

func (g *Gateway) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return g.firstUser(g.db.WithContext(ctx).Where("email = ?", email))
}

func (g *Gateway) firstUser(q *gorm.DB) (*domain.User, error) {
	var row userDatamodel.User
	if err := q.First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrUserNotFound
		}
		return nil, err
	}
	u := toDomainUser(row)
	return &u, nil
}

func (g *Gateway) CreateUser(ctx context.Context, user *domain.User) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&userDatamodel.User{}).Where("email = ?", user.Email).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return internal.ErrDuplicateEmail
		}

		row := userDatamodel.User{
			Email:        user.Email,
			Name:         user.Name,
			PasswordHash: user.PasswordHash,
			Role:         string(user.Role),
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		*user = toDomainUser(row)
		return nil
	})
}

// DeleteUser removes the user and every assignment that references it.
func (g *Gateway) DeleteUser(ctx context.Context, id string) error {
	n, ok := parseID(id)
	if !ok {
		return internal.ErrUserNotFound
	}
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", n).Delete(&projectDatamodel.ProjectUser{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", n).Delete(&userDatamodel.User{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return internal.ErrUserNotFound
		}
		return nil
	})
}

// ----------------- PROJECTS -----------------

func (g *Gateway) ListProjects(ctx context.Context, filter gateway.ProjectFilter) ([]domain.Project, error) {
	q := g.db.WithContext(ctx).Order("created_at DESC, id DESC")
	if filter.IDs != nil {
		if len(filter.IDs) == 0 {
			return []domain.Project{}, nil
		}
		q = q.Where("id IN ?", filter.IDs)
	}

	var rows []projectDatamodel.Project
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	projects := make([]domain.Project, 0, len(rows))
	for _, r := range rows {
		projects = append(projects, toDomainProject(r))
	}
	return projects, nil
}

func (g *Gateway) CreateProject(ctx context.Context, project *domain.Project) error {
	row := fromDomainProject(*project)
	if err := g.db.WithContext(ctx).Create(&row).Error; err != nil {
		return err
	}
	created := toDomainProject(row)
	created.Columns = project.Columns
	created.SelectedColumns = project.SelectedColumns
	*project = created
	return nil
}

func (g *Gateway) UpdateProject(ctx context.Context, project domain.Project) error {
	row := fromDomainProject(project)
	res := g.db.WithContext(ctx).Model(&projectDatamodel.Project{}).Where("id = ?", project.ID).
		Select("name", "description", "is_public", "data_source", "category", "tags").
		Updates(&row)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return internal.ErrProjectNotFound
	}
	return nil
}

// DeleteProject removes the project together with its columns, rows and
// assignments.
func (g *Gateway) DeleteProject(ctx context.Context, id int64) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, dep := range []interface{}{
			&projectDatamodel.ProjectUser{},
			&projectDatamodel.ProjectData{},
			&projectDatamodel.ProjectColumn{},
		} {
			if err := tx.Where("project_id = ?", id).Delete(dep).Error; err != nil {
				return err
			}
		}
		res := tx.Where("id = ?", id).Delete(&projectDatamodel.Project{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return internal.ErrProjectNotFound
		}
		return nil
	})
}

func (g *Gateway) projectExists(tx *gorm.DB, id int64) error {
	var n int64
	if err := tx.Model(&projectDatamodel.Project{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return internal.ErrProjectNotFound
	}
	return nil
}

// ----------------- COLUMNS -----------------

func (g *Gateway) ListProjectColumns(ctx context.Context, projectID int64) ([]domain.Column, error) {
	var rows []projectDatamodel.ProjectColumn
	err := g.db.WithContext(ctx).Where("project_id = ?", projectID).Order("position ASC, id ASC").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	cols := make([]domain.Column, 0, len(rows))
	for _, r := range rows {
		cols = append(cols, domain.Column{
			Name:             r.ColumnName,
			Position:         r.Position,
			Selected:         r.IsSelected,
			SelectedPosition: r.SelectedPosition,
		})
	}
	return cols, nil
}

func (g *Gateway) ReplaceProjectColumns(ctx context.Context, projectID int64, columns []domain.Column) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := g.projectExists(tx, projectID); err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", projectID).Delete(&projectDatamodel.ProjectColumn{}).Error; err != nil {
			return err
		}
		if len(columns) == 0 {
			return nil
		}
		rows := make([]projectDatamodel.ProjectColumn, 0, len(columns))
		for _, c := range columns {
			rows = append(rows, fromDomainColumn(projectID, c))
		}
		return tx.CreateInBatches(&rows, insertBatchSize).Error
	})
}

// UpsertColumnSelection updates the selection flags of one column, inserting
// the column if it is missing.
func (g *Gateway) UpsertColumnSelection(ctx context.Context, projectID int64, column domain.Column) error {
	row := fromDomainColumn(projectID, column)
	return g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "project_id"}, {Name: "column_name"}},
		DoUpdates: clause.AssignmentColumns([]string{"is_selected", "selected_position"}),
	}).Create(&row).Error
}

// ----------------- DATA ROWS -----------------

// ListDataRows returns rows in upload order. limit <= 0 means no limit.
func (g *Gateway) ListDataRows(ctx context.Context, projectID int64, limit int) ([]domain.DataRow, error) {
	q := g.db.WithContext(ctx).Where("project_id = ?", projectID).Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []projectDatamodel.ProjectData
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.DataRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.DataRow{ProjectID: r.ProjectID, Payload: r.RowData})
	}
	return out, nil
}

func (g *Gateway) ReplaceDataRows(ctx context.Context, projectID int64, rows []domain.DataRow) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := g.projectExists(tx, projectID); err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", projectID).Delete(&projectDatamodel.ProjectData{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		records := make([]projectDatamodel.ProjectData, 0, len(rows))
		for _, r := range rows {
			records = append(records, projectDatamodel.ProjectData{ProjectID: projectID, RowData: r.Payload})
		}
		return tx.CreateInBatches(&records, insertBatchSize).Error
	})
}

// ProjectCounts reports persisted column and row totals for integrity checks.
func (g *Gateway) ProjectCounts(ctx context.Context, projectID int64) (gateway.Counts, error) {
	var c gateway.Counts
	if g.probe != nil {
		query := g.probe.Rebind(`SELECT
			(SELECT COUNT(*) FROM project_columns WHERE project_id = ?) AS column_count,
			(SELECT COUNT(*) FROM project_data WHERE project_id = ?) AS row_count`)
		err := g.probe.GetContext(ctx, &c, query, projectID, projectID)
		return c, err
	}

	var cols, rows int64
	db := g.db.WithContext(ctx)
	if err := db.Model(&projectDatamodel.ProjectColumn{}).Where("project_id = ?", projectID).Count(&cols).Error; err != nil {
		return c, err
	}
	if err := db.Model(&projectDatamodel.ProjectData{}).Where("project_id = ?", projectID).Count(&rows).Error; err != nil {
		return c, err
	}
	return gateway.Counts{Columns: int(cols), Rows: int(rows)}, nil
}

// ----------------- ASSIGNMENTS -----------------

func (g *Gateway) ListProjectAssignments(ctx context.Context, filter gateway.AssignmentFilter) ([]domain.Assignment, error) {
	q := g.db.WithContext(ctx).Order("id ASC")
	if filter.UserID != "" {
		n, ok := parseID(filter.UserID)
		if !ok {
			return []domain.Assignment{}, nil
		}
		q = q.Where("user_id = ?", n)
	}
	if filter.ProjectIDs != nil {
		if len(filter.ProjectIDs) == 0 {
			return []domain.Assignment{}, nil
		}
		q = q.Where("project_id IN ?", filter.ProjectIDs)
	}

	var rows []projectDatamodel.ProjectUser
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Assignment, 0, len(rows))
	for _, r := range rows {
		out = append(out, toDomainAssignment(r))
	}
	return out, nil
}

// CreateProjectAssignment refuses grants on missing projects or users.
func (g *Gateway) CreateProjectAssignment(ctx context.Context, assignment *domain.Assignment) error {
	userID, ok := parseID(assignment.UserID)
	if !ok {
		return internal.ErrUserNotFound
	}
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := g.projectExists(tx, assignment.ProjectID); err != nil {
			return err
		}
		var n int64
		if err := tx.Model(&userDatamodel.User{}).Where("id = ?", userID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return internal.ErrUserNotFound
		}

		row := projectDatamodel.ProjectUser{
			ProjectID: assignment.ProjectID,
			UserID:    userID,
			Email:     assignment.Email,
			Role:      assignment.Role.String(),
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		*assignment = toDomainAssignment(row)
		return nil
	})
}

func (g *Gateway) DeleteProjectAssignment(ctx context.Context, id int64) error {
	res := g.db.WithContext(ctx).Where("id = ?", id).Delete(&projectDatamodel.ProjectUser{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return internal.ErrAssignmentNotFound
	}
	return nil
}
