// Package gateway is the persistence boundary. Implementations do plain CRUD
// and enforce referential integrity; they make no access decisions.
package gateway

import (
	"context"

	"github.com/frahmantamala/datashare/internal"
	"github.com/frahmantamala/datashare/internal/core/domain"
)

// ProjectFilter narrows ListProjects. A nil IDs slice means no restriction;
// an empty non-nil slice matches nothing.
type ProjectFilter struct {
	IDs []int64
}

// AssignmentFilter narrows ListProjectAssignments. Zero fields do not filter,
// except ProjectIDs which follows the ProjectFilter.IDs convention.
type AssignmentFilter struct {
	UserID     string
	ProjectIDs []int64
}

type Gateway interface {
	ListUsers(ctx context.Context) ([]domain.User, error)
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	CreateUser(ctx context.Context, user *domain.User) error
	DeleteUser(ctx context.Context, id string) error

	ListProjects(ctx context.Context, filter ProjectFilter) ([]domain.Project, error)
	CreateProject(ctx context.Context, project *domain.Project) error
	UpdateProject(ctx context.Context, project domain.Project) error
	DeleteProject(ctx context.Context, id int64) error

	ListProjectColumns(ctx context.Context, projectID int64) ([]domain.Column, error)
	ReplaceProjectColumns(ctx context.Context, projectID int64, columns []domain.Column) error
	UpsertColumnSelection(ctx context.Context, projectID int64, column domain.Column) error

	ListDataRows(ctx context.Context, projectID int64, limit int) ([]domain.DataRow, error)
	ReplaceDataRows(ctx context.Context, projectID int64, rows []domain.DataRow) error

	ListProjectAssignments(ctx context.Context, filter AssignmentFilter) ([]domain.Assignment, error)
	CreateProjectAssignment(ctx context.Context, assignment *domain.Assignment) error
	DeleteProjectAssignment(ctx context.Context, id int64) error
}

// Transactor is implemented by gateways that can run several operations
// atomically.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(tx Gateway) error) error
}

// Counts is a project's persisted column and row totals.
type Counts struct {
	Columns int `db:"column_count" json:"columns"`
	Rows    int `db:"row_count" json:"rows"`
}

// IntegrityChecker is implemented by gateways that can report Counts without
// loading the data.
type IntegrityChecker interface {
	ProjectCounts(ctx context.Context, projectID int64) (Counts, error)
}

// Atomically runs fn in a transaction when gw supports one and reports whether
// it did. Without transaction support fn runs directly against gw.
func Atomically(ctx context.Context, gw Gateway, fn func(tx Gateway) error) (bool, error) {
	t, ok := gw.(Transactor)
	if !ok {
		return false, fn(gw)
	}
	return true, t.WithinTransaction(ctx, fn)
}

// Wrap turns a raw persistence error into a GatewayFailure. Typed application
// errors such as not-found pass through untouched.
func Wrap(op string, err error, retryable bool) error {
	if err == nil {
		return nil
	}
	if _, ok := internal.IsAppError(err); ok {
		return err
	}
	return internal.NewGatewayFailure(op, err, retryable)
}
