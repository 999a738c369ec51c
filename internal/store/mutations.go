package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/frahmantamala/datashare/internal"
	"github.com/frahmantamala/datashare/internal/access"
	"github.com/frahmantamala/datashare/internal/core/domain"
	"github.com/frahmantamala/datashare/internal/core/events"
	"github.com/frahmantamala/datashare/internal/gateway"
	"github.com/frahmantamala/datashare/internal/projection"
	"github.com/samber/lo"
)

// mutation is one local change paired with the gateway call that makes it
// durable. apply runs against a private copy of the current snapshot and is
// published optimistically; commit runs outside the lock; settle finishes the
// confirmed snapshot with values only the gateway knows, such as new ids.
type mutation struct {
	op        string
	authorize func(base *Snapshot) error
	apply     func(next *Snapshot) error
	commit    func(ctx context.Context) error
	settle    func(next *Snapshot)
}

// partialWriteError reports a multi-step commit that failed after some steps
// were already durable on a gateway without transactions.
type partialWriteError struct {
	written int
	err     error
}

func (e *partialWriteError) Error() string {
	return fmt.Sprintf("failed after %d writes: %v", e.written, e.err)
}

func (e *partialWriteError) Unwrap() error {
	return e.err
}

func (s *Store) mutate(ctx context.Context, m mutation) error {
	snap, err := s.Ready(ctx)
	if err != nil {
		return err
	}

	s.mutMu.Lock()
	defer s.mutMu.Unlock()

	s.mu.Lock()
	if s.generation != snap.Generation {
		s.mu.Unlock()
		return internal.ErrIdentityChanged
	}
	base := s.snap
	if m.authorize != nil {
		if err := m.authorize(base); err != nil {
			s.mu.Unlock()
			return err
		}
	}
	next := base.clone()
	next.Err = nil
	if m.apply != nil {
		if err := m.apply(next); err != nil {
			s.mu.Unlock()
			return err
		}
		next.State = StateStale
		next.Pending = true
		s.snap = next
	}
	s.mu.Unlock()

	commitErr := m.commit(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generation != snap.Generation {
		s.logger.Warn("mutation settled after identity change", "op", m.op, "error", commitErr)
		if commitErr != nil {
			return gateway.Wrap(m.op, commitErr, false)
		}
		return internal.ErrIdentityChanged
	}

	if commitErr != nil {
		restored := *base
		var partial *partialWriteError
		if errors.Is(commitErr, internal.ErrPartialIngestion) || errors.As(commitErr, &partial) {
			s.dirty = true
		}
		if s.dirty {
			restored.State = StateStale
		}
		s.snap = &restored
		s.logger.Warn("mutation rejected, snapshot rolled back",
			"op", m.op,
			"user_id", base.Caller.ID,
			"error", commitErr)
		return gateway.Wrap(m.op, commitErr, false)
	}

	final := next.clone()
	if m.settle != nil {
		m.settle(final)
	}
	final.Pending = false
	final.State = StateReady
	if s.dirty {
		final.State = StateStale
	}
	s.snap = final
	return nil
}

func (s *Store) publish(ctx context.Context, projectID int64, action string) {
	if s.publisher == nil {
		return
	}
	event := events.NewProjectsChangedEvent(s.Caller().ID, projectID, action)
	if err := s.publisher.PublishSync(ctx, event); err != nil {
		s.logger.Warn("failed to publish store change", "action", action, "project_id", projectID, "error", err)
	}
}

func requireManage(snap *Snapshot) error {
	if !access.CanManage(snap.Caller) {
		return internal.ErrNotAuthorized
	}
	return nil
}

func requireCurate(snap *Snapshot, projectID int64) (domain.Project, int, error) {
	p, idx, ok := snap.project(projectID)
	if !ok {
		return domain.Project{}, -1, internal.ErrProjectNotFound
	}
	role, err := access.EffectiveRole(snap.Caller, p, snap.Assignments)
	if err != nil {
		return domain.Project{}, -1, err
	}
	if !access.CanCurate(role) {
		return domain.Project{}, -1, internal.ErrNotAuthorized
	}
	return p, idx, nil
}

// CreateProject persists a new project owned by the current caller and puts it
// at the front of the cache. Creators are not assigned to their projects.
func (s *Store) CreateProject(ctx context.Context, p domain.Project) (domain.Project, error) {
	var created domain.Project
	err := s.mutate(ctx, mutation{
		op: "create_project",
		authorize: func(base *Snapshot) error {
			if err := requireManage(base); err != nil {
				return err
			}
			created = p.Clone()
			created.ID = 0
			created.CreatedBy = base.Caller.ID
			created.Columns = []string{}
			created.SelectedColumns = []string{}
			return nil
		},
		commit: func(ctx context.Context) error {
			return s.gw.CreateProject(ctx, &created)
		},
		settle: func(next *Snapshot) {
			next.Projects = append([]domain.Project{created.Clone()}, next.Projects...)
		},
	})
	if err != nil {
		return domain.Project{}, err
	}
	s.publish(ctx, created.ID, events.ActionProjectCreated)
	return created, nil
}

// UpdateProject changes project metadata. Columns are left alone.
func (s *Store) UpdateProject(ctx context.Context, p domain.Project) (domain.Project, error) {
	var updated domain.Project
	err := s.mutate(ctx, mutation{
		op:        "update_project",
		authorize: requireManage,
		apply: func(next *Snapshot) error {
			existing, idx, ok := next.project(p.ID)
			if !ok {
				return internal.ErrProjectNotFound
			}
			updated = existing.Clone()
			updated.Name = p.Name
			updated.Description = p.Description
			updated.IsPublic = p.IsPublic
			updated.DataSource = p.DataSource
			updated.Category = p.Category
			updated.Tags = append([]string{}, p.Tags...)
			next.Projects[idx] = updated
			return nil
		},
		commit: func(ctx context.Context) error {
			return s.gw.UpdateProject(ctx, updated)
		},
	})
	if err != nil {
		return domain.Project{}, err
	}
	s.publish(ctx, updated.ID, events.ActionProjectUpdated)
	return updated.Clone(), nil
}

// DeleteProject drops the project and its assignments in one snapshot swap.
func (s *Store) DeleteProject(ctx context.Context, id int64) error {
	err := s.mutate(ctx, mutation{
		op:        "delete_project",
		authorize: requireManage,
		apply: func(next *Snapshot) error {
			if _, _, ok := next.project(id); !ok {
				return internal.ErrProjectNotFound
			}
			next.Projects = lo.Reject(next.Projects, func(p domain.Project, _ int) bool { return p.ID == id })
			next.Assignments = lo.Reject(next.Assignments, func(a domain.Assignment, _ int) bool { return a.ProjectID == id })
			return nil
		},
		commit: func(ctx context.Context) error {
			return s.gw.DeleteProject(ctx, id)
		},
	})
	if err != nil {
		return err
	}
	s.publish(ctx, id, events.ActionProjectDeleted)
	return nil
}

// AddAssignment grants a user a role on a cached project.
func (s *Store) AddAssignment(ctx context.Context, a domain.Assignment) (domain.Assignment, error) {
	created := a
	err := s.mutate(ctx, mutation{
		op: "add_assignment",
		authorize: func(base *Snapshot) error {
			if err := requireManage(base); err != nil {
				return err
			}
			if _, _, ok := base.project(a.ProjectID); !ok {
				return internal.ErrProjectNotFound
			}
			if a.Role == domain.RoleNone {
				return internal.NewValidationFieldError("role", "role must be viewer, editor or admin", internal.ErrCodeInvalidRole)
			}
			return nil
		},
		commit: func(ctx context.Context) error {
			return s.gw.CreateProjectAssignment(ctx, &created)
		},
		settle: func(next *Snapshot) {
			next.Assignments = append(next.Assignments, created)
		},
	})
	if err != nil {
		return domain.Assignment{}, err
	}
	s.publish(ctx, created.ProjectID, events.ActionAssignmentAdded)
	return created, nil
}

func (s *Store) RemoveAssignment(ctx context.Context, id int64) error {
	var projectID int64
	err := s.mutate(ctx, mutation{
		op:        "remove_assignment",
		authorize: requireManage,
		apply: func(next *Snapshot) error {
			a, ok := lo.Find(next.Assignments, func(a domain.Assignment) bool { return a.ID == id })
			if !ok {
				return internal.ErrAssignmentNotFound
			}
			projectID = a.ProjectID
			next.Assignments = lo.Reject(next.Assignments, func(a domain.Assignment, _ int) bool { return a.ID == id })
			return nil
		},
		commit: func(ctx context.Context) error {
			return s.gw.DeleteProjectAssignment(ctx, id)
		},
	})
	if err != nil {
		return err
	}
	s.publish(ctx, projectID, events.ActionAssignmentRemoved)
	return nil
}

// SetSelectedColumns validates and stores a new curated selection. Every
// column's flags are written in one transaction when the gateway allows it.
// Otherwise a failure after some flags were written leaves the cache stale.
func (s *Store) SetSelectedColumns(ctx context.Context, projectID int64, requested []string) (domain.Project, error) {
	var updated domain.Project
	err := s.mutate(ctx, mutation{
		op: "set_selected_columns",
		apply: func(next *Snapshot) error {
			p, idx, err := requireCurate(next, projectID)
			if err != nil {
				return err
			}
			updated, err = projection.SetSelectedColumns(p, requested)
			if err != nil {
				return err
			}
			next.Projects[idx] = updated
			return nil
		},
		commit: func(ctx context.Context) error {
			written := 0
			atomic, err := gateway.Atomically(ctx, s.gw, func(tx gateway.Gateway) error {
				for _, c := range domain.ColumnsOf(updated) {
					if err := tx.UpsertColumnSelection(ctx, projectID, c); err != nil {
						return err
					}
					written++
				}
				return nil
			})
			if err != nil && !atomic && written > 0 {
				return &partialWriteError{written: written, err: err}
			}
			return err
		},
	})
	if err != nil {
		return domain.Project{}, err
	}
	s.publish(ctx, projectID, events.ActionColumnsSelected)
	return updated.Clone(), nil
}

// IngestColumns replaces a project's columns and rows with a fresh upload,
// keeping the part of the previous selection that still exists.
//
// With a transactional gateway both steps commit together. Otherwise a failure
// after the columns were written returns ErrPartialIngestion and leaves the
// cache stale so the next read reloads the real state.
func (s *Store) IngestColumns(ctx context.Context, projectID int64, columns []string, rows []domain.DataRow) (domain.Project, error) {
	if len(columns) == 0 {
		return domain.Project{}, internal.ErrMalformedUpload
	}

	var updated domain.Project
	err := s.mutate(ctx, mutation{
		op: "ingest_columns",
		apply: func(next *Snapshot) error {
			p, idx, err := requireCurate(next, projectID)
			if err != nil {
				return err
			}
			updated = projection.IngestColumns(p, columns)
			next.Projects[idx] = updated
			return nil
		},
		commit: func(ctx context.Context) error {
			payload := lo.Map(rows, func(r domain.DataRow, _ int) domain.DataRow {
				return domain.DataRow{ProjectID: projectID, Payload: r.Payload}
			})
			columnsWritten := false
			atomic, err := gateway.Atomically(ctx, s.gw, func(tx gateway.Gateway) error {
				if err := tx.ReplaceProjectColumns(ctx, projectID, domain.ColumnsOf(updated)); err != nil {
					return err
				}
				columnsWritten = true
				return tx.ReplaceDataRows(ctx, projectID, payload)
			})
			if err != nil && !atomic && columnsWritten {
				return internal.ErrPartialIngestion.WithCause(err)
			}
			return err
		},
	})
	if err != nil {
		return domain.Project{}, err
	}
	s.publish(ctx, projectID, events.ActionDataIngested)
	return updated.Clone(), nil
}
