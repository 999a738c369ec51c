package project

import (
	"context"
	"errors"
	"log/slog"

	"github.com/frahmantamala/datashare/internal"
	"github.com/frahmantamala/datashare/internal/access"
	"github.com/frahmantamala/datashare/internal/core/domain"
	"github.com/frahmantamala/datashare/internal/core/identity"
	"github.com/frahmantamala/datashare/internal/gateway"
	"github.com/frahmantamala/datashare/internal/ingest"
	"github.com/frahmantamala/datashare/internal/projection"
	"github.com/frahmantamala/datashare/internal/store"
	"github.com/samber/lo"
)

// Session is the per-caller cache the service reads from and mutates
// through. *store.Store implements it.
type Session interface {
	Caller() identity.Caller
	Ready(ctx context.Context) (*store.Snapshot, error)
	Refresh(ctx context.Context) error
	Project(ctx context.Context, id int64) (domain.Project, domain.Role, error)
	Assignments(ctx context.Context, projectID int64) ([]domain.Assignment, error)

	CreateProject(ctx context.Context, p domain.Project) (domain.Project, error)
	UpdateProject(ctx context.Context, p domain.Project) (domain.Project, error)
	DeleteProject(ctx context.Context, id int64) error
	AddAssignment(ctx context.Context, a domain.Assignment) (domain.Assignment, error)
	RemoveAssignment(ctx context.Context, id int64) error
	SetSelectedColumns(ctx context.Context, projectID int64, requested []string) (domain.Project, error)
	IngestColumns(ctx context.Context, projectID int64, columns []string, rows []domain.DataRow) (domain.Project, error)
}

type ServiceAPI interface {
	List(ctx context.Context, sess Session) (*ProjectList, error)
	Detail(ctx context.Context, sess Session, id int64, limit int) (*ProjectDetail, error)
	Rows(ctx context.Context, sess Session, id int64, limit int) (*RowPage, error)
	Create(ctx context.Context, sess Session, dto CreateProjectDTO) (domain.Project, error)
	Update(ctx context.Context, sess Session, id int64, dto UpdateProjectDTO) (domain.Project, error)
	Delete(ctx context.Context, sess Session, id int64) error
	Upload(ctx context.Context, sess Session, id int64, filename string, data []byte) (*ingest.Result, error)
	SelectColumns(ctx context.Context, sess Session, id int64, columns []string) (domain.Project, error)
	ListAssignments(ctx context.Context, sess Session, id int64) ([]domain.Assignment, error)
	AddAssignment(ctx context.Context, sess Session, id int64, dto AddAssignmentDTO) (domain.Assignment, error)
	RemoveAssignment(ctx context.Context, sess Session, projectID, assignmentID int64) error
	Summary(ctx context.Context, sess Session) (*DashboardSummary, error)
	Refresh(ctx context.Context, sess Session) error
}

type Service struct {
	gw       gateway.Gateway
	pipeline *ingest.Pipeline
	paging   internal.ProjectsConfig
	logger   *slog.Logger
}

func NewService(gw gateway.Gateway, pipeline *ingest.Pipeline, paging internal.ProjectsConfig, logger *slog.Logger) *Service {
	return &Service{
		gw:       gw,
		pipeline: pipeline,
		paging:   paging,
		logger:   logger,
	}
}

// List returns the caller's accessible projects with the effective role on
// each, derived from one snapshot.
func (s *Service) List(ctx context.Context, sess Session) (*ProjectList, error) {
	snap, err := sess.Ready(ctx)
	if err != nil {
		return nil, err
	}

	visible := access.AccessibleProjects(snap.Caller, snap.Projects, snap.Assignments)
	out := make([]ProjectSummary, 0, len(visible))
	for _, p := range visible {
		role, err := access.EffectiveRole(snap.Caller, p, snap.Assignments)
		if err != nil {
			s.logger.Error("accessible project without a role", "project_id", p.ID, "user_id", snap.Caller.ID, "error", err)
			continue
		}
		out = append(out, toSummary(p, role))
	}

	return &ProjectList{Projects: out, State: snap.State.String(), LoadedAt: snap.LoadedAt}, nil
}

func (s *Service) Detail(ctx context.Context, sess Session, id int64, limit int) (*ProjectDetail, error) {
	p, role, err := sess.Project(ctx, id)
	if err != nil {
		return nil, err
	}

	visible := projection.VisibleColumnsFor(p, role)
	pageSize := s.paging.ClampPageSize(limit)

	rows, err := s.gw.ListDataRows(ctx, id, pageSize)
	if err != nil {
		return nil, gateway.Wrap("list data rows", err, true)
	}

	assignments, err := sess.Assignments(ctx, id)
	if err != nil {
		return nil, err
	}

	counts := s.counts(ctx, p, len(rows))

	detail := &ProjectDetail{
		Project:        p,
		Role:           role,
		VisibleColumns: visible,
		Rows:           projection.ProjectRows(rows, visible),
		RowLimit:       pageSize,
		Assignments:    assignments,
		Counts:         counts,
		Consistent:     projection.CheckConsistency(counts.Columns, counts.Rows) == nil,
		CanCurate:      access.CanCurate(role),
	}
	if detail.CanCurate {
		detail.AvailableColumns = append([]string{}, p.Columns...)
	}
	if !detail.Consistent {
		s.logger.Warn("project data is partially ingested", "project_id", id, "columns", counts.Columns, "rows", counts.Rows)
	}
	return detail, nil
}

// counts asks the gateway for persisted totals and falls back to what is
// already loaded.
func (s *Service) counts(ctx context.Context, p domain.Project, loadedRows int) gateway.Counts {
	if checker, ok := s.gw.(gateway.IntegrityChecker); ok {
		counts, err := checker.ProjectCounts(ctx, p.ID)
		if err == nil {
			return counts
		}
		s.logger.Warn("project counts unavailable", "project_id", p.ID, "error", err)
	}
	return gateway.Counts{Columns: len(p.Columns), Rows: loadedRows}
}

func (s *Service) Rows(ctx context.Context, sess Session, id int64, limit int) (*RowPage, error) {
	p, role, err := sess.Project(ctx, id)
	if err != nil {
		return nil, err
	}

	visible := projection.VisibleColumnsFor(p, role)
	pageSize := s.paging.ClampPageSize(limit)

	rows, err := s.gw.ListDataRows(ctx, id, pageSize)
	if err != nil {
		return nil, gateway.Wrap("list data rows", err, true)
	}

	return &RowPage{
		ProjectID: id,
		Columns:   visible,
		Rows:      projection.ProjectRows(rows, visible),
		Limit:     pageSize,
	}, nil
}

func (s *Service) Create(ctx context.Context, sess Session, dto CreateProjectDTO) (domain.Project, error) {
	dto.Normalize()
	if err := dto.Validate(); err != nil {
		return domain.Project{}, err
	}
	created, err := sess.CreateProject(ctx, dto.ToDomain())
	if err != nil {
		return domain.Project{}, err
	}
	s.logger.Info("project created", "project_id", created.ID, "user_id", sess.Caller().ID)
	return created, nil
}

func (s *Service) Update(ctx context.Context, sess Session, id int64, dto UpdateProjectDTO) (domain.Project, error) {
	if err := dto.Validate(); err != nil {
		return domain.Project{}, err
	}
	if !access.CanManage(sess.Caller()) {
		return domain.Project{}, internal.ErrNotAuthorized
	}
	current, _, err := sess.Project(ctx, id)
	if err != nil {
		return domain.Project{}, err
	}
	return sess.UpdateProject(ctx, dto.Apply(current))
}

func (s *Service) Delete(ctx context.Context, sess Session, id int64) error {
	if err := sess.DeleteProject(ctx, id); err != nil {
		return err
	}
	s.logger.Info("project deleted", "project_id", id, "user_id", sess.Caller().ID)
	return nil
}

func (s *Service) Upload(ctx context.Context, sess Session, id int64, filename string, data []byte) (*ingest.Result, error) {
	return s.pipeline.Ingest(ctx, sess, id, filename, data)
}

func (s *Service) SelectColumns(ctx context.Context, sess Session, id int64, columns []string) (domain.Project, error) {
	return sess.SetSelectedColumns(ctx, id, columns)
}

func (s *Service) ListAssignments(ctx context.Context, sess Session, id int64) ([]domain.Assignment, error) {
	return sess.Assignments(ctx, id)
}

// AddAssignment grants the user registered under dto.Email a role on the
// project. Emails without a user record are rejected.
func (s *Service) AddAssignment(ctx context.Context, sess Session, id int64, dto AddAssignmentDTO) (domain.Assignment, error) {
	dto.Normalize()
	if err := dto.Validate(); err != nil {
		return domain.Assignment{}, err
	}
	if !access.CanManage(sess.Caller()) {
		return domain.Assignment{}, internal.ErrNotAuthorized
	}

	u, err := s.gw.GetUserByEmail(ctx, dto.Email)
	if err != nil {
		if errors.Is(err, internal.ErrUserNotFound) {
			return domain.Assignment{}, internal.NewNotFoundError("no user is registered with this email", internal.ErrCodeUserNotFound).
				WithDetails(map[string]string{"email": dto.Email})
		}
		return domain.Assignment{}, gateway.Wrap("get user by email", err, true)
	}

	role, _ := domain.ParseRole(dto.Role)
	return sess.AddAssignment(ctx, domain.Assignment{
		ProjectID: id,
		UserID:    identity.Normalize(u.ID),
		Email:     u.Email,
		Role:      role,
	})
}

func (s *Service) RemoveAssignment(ctx context.Context, sess Session, projectID, assignmentID int64) error {
	assignments, err := sess.Assignments(ctx, projectID)
	if err != nil {
		return err
	}
	if !lo.ContainsBy(assignments, func(a domain.Assignment) bool { return a.ID == assignmentID }) {
		return internal.ErrAssignmentNotFound
	}
	return sess.RemoveAssignment(ctx, assignmentID)
}

func (s *Service) Summary(ctx context.Context, sess Session) (*DashboardSummary, error) {
	snap, err := sess.Ready(ctx)
	if err != nil {
		return nil, err
	}

	visible := access.AccessibleProjects(snap.Caller, snap.Projects, snap.Assignments)
	ids := lo.SliceToMap(visible, func(p domain.Project) (int64, struct{}) { return p.ID, struct{}{} })

	summary := &DashboardSummary{
		ProjectCount:     len(visible),
		RoleCounts:       map[string]int{},
		AssignmentCounts: map[string]int{},
	}
	for _, p := range visible {
		if p.IsPublic {
			summary.PublicProjectCount++
		}
		role, err := access.EffectiveRole(snap.Caller, p, snap.Assignments)
		if err != nil {
			continue
		}
		summary.RoleCounts[role.String()]++
		summary.TotalVisibleColumns += len(projection.VisibleColumnsFor(p, role))
	}
	for _, a := range snap.Assignments {
		if _, ok := ids[a.ProjectID]; ok {
			summary.AssignmentCounts[a.Role.String()]++
		}
	}
	return summary, nil
}

// Refresh forces a reload of the caller's cache.
func (s *Service) Refresh(ctx context.Context, sess Session) error {
	return sess.Refresh(ctx)
}
