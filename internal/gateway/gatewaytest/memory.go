// Package gatewaytest provides an in-memory gateway for tests. It is not
// transactional, so multi-step writes behave like a gateway without
// transaction support.
package gatewaytest

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/frahmantamala/datashare/internal"
	"github.com/frahmantamala/datashare/internal/core/domain"
	"github.com/frahmantamala/datashare/internal/core/identity"
	"github.com/frahmantamala/datashare/internal/gateway"
	"github.com/samber/lo"
)

// Operation names accepted by FailOn, Gate and Calls.
const (
	OpListUsers             = "ListUsers"
	OpGetUser               = "GetUser"
	OpGetUserByEmail        = "GetUserByEmail"
	OpCreateUser            = "CreateUser"
	OpDeleteUser            = "DeleteUser"
	OpListProjects          = "ListProjects"
	OpCreateProject         = "CreateProject"
	OpUpdateProject         = "UpdateProject"
	OpDeleteProject         = "DeleteProject"
	OpListProjectColumns    = "ListProjectColumns"
	OpReplaceProjectColumns = "ReplaceProjectColumns"
	OpUpsertColumnSelection = "UpsertColumnSelection"
	OpListDataRows          = "ListDataRows"
	OpReplaceDataRows       = "ReplaceDataRows"
	OpListAssignments       = "ListProjectAssignments"
	OpCreateAssignment      = "CreateProjectAssignment"
	OpDeleteAssignment      = "DeleteProjectAssignment"
	OpProjectCounts         = "ProjectCounts"
)

type Memory struct {
	mu          sync.Mutex
	nextID      int64
	users       map[int64]domain.User
	projects    map[int64]domain.Project
	columns     map[int64][]domain.Column
	rows        map[int64][]domain.DataRow
	assignments map[int64]domain.Assignment

	failures map[string]error
	allowed  map[string]int
	gates    map[string]chan struct{}
	calls    map[string]int
}

func NewMemory() *Memory {
	return &Memory{
		users:       make(map[int64]domain.User),
		projects:    make(map[int64]domain.Project),
		columns:     make(map[int64][]domain.Column),
		rows:        make(map[int64][]domain.DataRow),
		assignments: make(map[int64]domain.Assignment),
		failures:    make(map[string]error),
		allowed:     make(map[string]int),
		gates:       make(map[string]chan struct{}),
		calls:       make(map[string]int),
	}
}

// FailOn makes every later call of op return err. A nil err clears it.
func (m *Memory) FailOn(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.allowed, op)
	if err == nil {
		delete(m.failures, op)
		return
	}
	m.failures[op] = err
}

// FailAfter lets the next n calls of op succeed and fails every call after
// them with err.
func (m *Memory) FailAfter(op string, n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[op] = err
	m.allowed[op] = n
}

// Gate blocks calls of op until the returned release func is called or the
// call's context ends.
func (m *Memory) Gate(op string) (release func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan struct{})
	m.gates[op] = ch
	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.gates, op)
			m.mu.Unlock()
			close(ch)
		})
	}
}

func (m *Memory) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

func (m *Memory) enter(ctx context.Context, op string) error {
	m.mu.Lock()
	m.calls[op]++
	gate := m.gates[op]
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.allowed[op] > 0 {
		m.allowed[op]--
		return nil
	}
	return m.failures[op]
}

func (m *Memory) id() int64 {
	m.nextID++
	return m.nextID
}

func parseID(id string) (int64, bool) {
	n, err := strconv.ParseInt(identity.Normalize(id), 10, 64)
	return n, err == nil && n > 0
}

func (m *Memory) ListUsers(ctx context.Context) ([]domain.User, error) {
	if err := m.enter(ctx, OpListUsers); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	users := lo.Values(m.users)
	sort.Slice(users, func(i, j int) bool { return users[i].ID > users[j].ID })
	return users, nil
}

func (m *Memory) GetUser(ctx context.Context, id string) (*domain.User, error) {
	if err := m.enter(ctx, OpGetUser); err != nil {
		return nil, err
	}
	n, ok := parseID(id)
	m.mu.Lock()
	defer m.mu.Unlock()
	u, found := m.users[n]
	if !ok || !found {
		return nil, internal.ErrUserNotFound
	}
	return &u, nil
}

func (m *Memory) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	if err := m.enter(ctx, OpGetUserByEmail); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			u := u
			return &u, nil
		}
	}
	return nil, internal.ErrUserNotFound
}

func (m *Memory) CreateUser(ctx context.Context, user *domain.User) error {
	if err := m.enter(ctx, OpCreateUser); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email {
			return internal.ErrDuplicateEmail
		}
	}
	user.ID = m.id()
	user.CreatedAt = time.Now()
	m.users[user.ID] = *user
	return nil
}

func (m *Memory) DeleteUser(ctx context.Context, id string) error {
	if err := m.enter(ctx, OpDeleteUser); err != nil {
		return err
	}
	n, _ := parseID(id)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[n]; !ok {
		return internal.ErrUserNotFound
	}
	delete(m.users, n)
	for aid, a := range m.assignments {
		if identity.Same(a.UserID, n) {
			delete(m.assignments, aid)
		}
	}
	return nil
}

func (m *Memory) ListProjects(ctx context.Context, filter gateway.ProjectFilter) ([]domain.Project, error) {
	if err := m.enter(ctx, OpListProjects); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Project, 0, len(m.projects))
	for _, p := range m.projects {
		if filter.IDs != nil && !lo.Contains(filter.IDs, p.ID) {
			continue
		}
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *Memory) CreateProject(ctx context.Context, project *domain.Project) error {
	if err := m.enter(ctx, OpCreateProject); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	project.ID = m.id()
	project.CreatedAt = time.Now()
	stored := project.Clone()
	stored.Columns, stored.SelectedColumns = []string{}, []string{}
	m.projects[project.ID] = stored
	return nil
}

func (m *Memory) UpdateProject(ctx context.Context, project domain.Project) error {
	if err := m.enter(ctx, OpUpdateProject); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.projects[project.ID]
	if !ok {
		return internal.ErrProjectNotFound
	}
	existing.Name = project.Name
	existing.Description = project.Description
	existing.IsPublic = project.IsPublic
	existing.DataSource = project.DataSource
	existing.Category = project.Category
	existing.Tags = append([]string{}, project.Tags...)
	m.projects[project.ID] = existing
	return nil
}

func (m *Memory) DeleteProject(ctx context.Context, id int64) error {
	if err := m.enter(ctx, OpDeleteProject); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[id]; !ok {
		return internal.ErrProjectNotFound
	}
	delete(m.projects, id)
	delete(m.columns, id)
	delete(m.rows, id)
	for aid, a := range m.assignments {
		if a.ProjectID == id {
			delete(m.assignments, aid)
		}
	}
	return nil
}

func (m *Memory) ListProjectColumns(ctx context.Context, projectID int64) ([]domain.Column, error) {
	if err := m.enter(ctx, OpListProjectColumns); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Column{}, m.columns[projectID]...), nil
}

func (m *Memory) ReplaceProjectColumns(ctx context.Context, projectID int64, columns []domain.Column) error {
	if err := m.enter(ctx, OpReplaceProjectColumns); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[projectID]; !ok {
		return internal.ErrProjectNotFound
	}
	m.columns[projectID] = append([]domain.Column{}, columns...)
	return nil
}

func (m *Memory) UpsertColumnSelection(ctx context.Context, projectID int64, column domain.Column) error {
	if err := m.enter(ctx, OpUpsertColumnSelection); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cols := m.columns[projectID]
	for i, c := range cols {
		if c.Name == column.Name {
			cols[i].Selected = column.Selected
			cols[i].SelectedPosition = column.SelectedPosition
			return nil
		}
	}
	m.columns[projectID] = append(cols, column)
	return nil
}

func (m *Memory) ListDataRows(ctx context.Context, projectID int64, limit int) ([]domain.DataRow, error) {
	if err := m.enter(ctx, OpListDataRows); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.rows[projectID]
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return append([]domain.DataRow{}, rows...), nil
}

func (m *Memory) ReplaceDataRows(ctx context.Context, projectID int64, rows []domain.DataRow) error {
	if err := m.enter(ctx, OpReplaceDataRows); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[projectID]; !ok {
		return internal.ErrProjectNotFound
	}
	m.rows[projectID] = append([]domain.DataRow{}, rows...)
	return nil
}

func (m *Memory) ProjectCounts(ctx context.Context, projectID int64) (gateway.Counts, error) {
	if err := m.enter(ctx, OpProjectCounts); err != nil {
		return gateway.Counts{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return gateway.Counts{Columns: len(m.columns[projectID]), Rows: len(m.rows[projectID])}, nil
}

func (m *Memory) ListProjectAssignments(ctx context.Context, filter gateway.AssignmentFilter) ([]domain.Assignment, error) {
	if err := m.enter(ctx, OpListAssignments); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Assignment, 0)
	for _, a := range m.assignments {
		if filter.UserID != "" && !identity.Same(a.UserID, filter.UserID) {
			continue
		}
		if filter.ProjectIDs != nil && !lo.Contains(filter.ProjectIDs, a.ProjectID) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) CreateProjectAssignment(ctx context.Context, assignment *domain.Assignment) error {
	if err := m.enter(ctx, OpCreateAssignment); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[assignment.ProjectID]; !ok {
		return internal.ErrProjectNotFound
	}
	n, ok := parseID(assignment.UserID)
	if _, found := m.users[n]; !ok || !found {
		return internal.ErrUserNotFound
	}
	assignment.ID = m.id()
	assignment.UserID = identity.Normalize(n)
	assignment.CreatedAt = time.Now()
	m.assignments[assignment.ID] = *assignment
	return nil
}

func (m *Memory) DeleteProjectAssignment(ctx context.Context, id int64) error {
	if err := m.enter(ctx, OpDeleteAssignment); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.assignments[id]; !ok {
		return internal.ErrAssignmentNotFound
	}
	delete(m.assignments, id)
	return nil
}

// InsertAssignment stores an assignment without any referential checks, the
// way a dangling row would look after an out-of-band delete.
func (m *Memory) InsertAssignment(a domain.Assignment) domain.Assignment {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = m.id()
	a.UserID = identity.Normalize(a.UserID)
	m.assignments[a.ID] = a
	return a
}
