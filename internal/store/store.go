// Package store keeps one session's cached view of projects and assignments
// consistent with the gateway.
//
// Every read goes through an immutable Snapshot tagged with the generation of
// the identity it was loaded for. Changing identity bumps the generation, so
// a fetch that settles late for a previous identity is discarded instead of
// overwriting the new session's state.
package store

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/frahmantamala/datashare/internal"
	"github.com/frahmantamala/datashare/internal/access"
	"github.com/frahmantamala/datashare/internal/core/domain"
	"github.com/frahmantamala/datashare/internal/core/events"
	"github.com/frahmantamala/datashare/internal/core/identity"
	"github.com/frahmantamala/datashare/internal/gateway"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const defaultFetchConcurrency = 4

type Publisher interface {
	PublishSync(ctx context.Context, event events.Event) error
}

type Option func(*Store)

func WithPublisher(p Publisher) Option {
	return func(s *Store) { s.publisher = p }
}

// WithFetchConcurrency bounds parallel per-project column loads.
func WithFetchConcurrency(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

type Store struct {
	gw          gateway.Gateway
	logger      *slog.Logger
	publisher   Publisher
	concurrency int

	mu         sync.RWMutex
	snap       *Snapshot
	generation uint64
	cancelLoad context.CancelFunc
	dirty      bool
	// invalidations counts Invalidate calls so a load can tell whether one
	// arrived while it was reading.
	invalidations uint64

	// mutMu serializes loads and mutations so a refetch never interleaves
	// with an optimistic change.
	mutMu sync.Mutex
	sf    singleflight.Group
}

func New(gw gateway.Gateway, logger *slog.Logger, opts ...Option) *Store {
	s := &Store{
		gw:          gw,
		logger:      logger,
		concurrency: defaultFetchConcurrency,
		snap:        emptySnapshot(identity.Caller{}, 0),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetIdentity switches the session to caller. The cache is reset before this
// returns and any in-flight load for the previous identity is cancelled. A
// zero Caller logs the session out.
func (s *Store) SetIdentity(caller identity.Caller) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation++
	if s.cancelLoad != nil {
		s.cancelLoad()
		s.cancelLoad = nil
	}
	s.dirty = false
	s.snap = emptySnapshot(caller, s.generation)
	s.logger.Debug("store identity changed", "user_id", caller.ID, "generation", s.generation)
}

func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

func (s *Store) Caller() identity.Caller {
	return s.Snapshot().Caller
}

// Invalidate marks the cache stale so the next read refetches.
func (s *Store) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dirty = true
	s.invalidations++
	if s.snap.State == StateReady {
		next := *s.snap
		next.State = StateStale
		s.snap = &next
	}
}

// Refresh reloads the cache for the current identity. Concurrent callers for
// the same identity share one load.
func (s *Store) Refresh(ctx context.Context) error {
	s.mu.RLock()
	gen, caller := s.generation, s.snap.Caller
	s.mu.RUnlock()

	if !caller.Authenticated() {
		return internal.ErrNotAuthenticated
	}

	loadCtx := context.WithoutCancel(ctx)
	ch := s.sf.DoChan(strconv.FormatUint(gen, 10), func() (interface{}, error) {
		return nil, s.load(loadCtx, gen, caller)
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ready returns a snapshot that is safe to derive views from, loading it
// first when needed.
func (s *Store) Ready(ctx context.Context) (*Snapshot, error) {
	snap := s.Snapshot()
	if !snap.Caller.Authenticated() {
		return nil, internal.ErrNotAuthenticated
	}
	if snap.State == StateReady || (snap.State == StateStale && snap.Pending) {
		return snap, nil
	}

	gen := snap.Generation
	if err := s.Refresh(ctx); err != nil {
		return nil, err
	}

	snap = s.Snapshot()
	if snap.Generation != gen || !snap.Usable() {
		return nil, internal.ErrIdentityChanged
	}
	return snap, nil
}

func (s *Store) load(ctx context.Context, gen uint64, caller identity.Caller) error {
	s.mutMu.Lock()
	defer s.mutMu.Unlock()

	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		return internal.ErrIdentityChanged
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.cancelLoad = cancel
	prev := s.snap
	seen := s.invalidations
	loading := *prev
	loading.State = StateLoading
	s.snap = &loading
	s.mu.Unlock()

	started := time.Now()
	projects, assignments, err := s.fetch(ctx, caller)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generation != gen {
		s.logger.Debug("discarding load for previous identity", "user_id", caller.ID, "generation", gen)
		return internal.ErrIdentityChanged
	}
	s.cancelLoad = nil

	if err != nil {
		failure := gateway.Wrap("refresh", err, true)
		kept := *prev
		kept.Err = failure
		s.snap = &kept
		s.logger.Warn("store refresh failed, keeping previous snapshot",
			"user_id", caller.ID,
			"state", kept.State.String(),
			"error", err)
		return failure
	}

	// an invalidation during the fetch may postdate what was read
	state := StateReady
	if s.invalidations == seen {
		s.dirty = false
	} else {
		state = StateStale
	}
	s.snap = &Snapshot{
		Caller:      caller,
		State:       state,
		Projects:    projects,
		Assignments: assignments,
		Generation:  gen,
		LoadedAt:    time.Now(),
	}
	s.logger.Info("store refreshed",
		"user_id", caller.ID,
		"state", state.String(),
		"projects", len(projects),
		"assignments", len(assignments),
		"duration", time.Since(started))
	return nil
}

// fetch loads everything visible to caller. Admins load the whole graph;
// everyone else loads their own assignments first and only the projects
// those point at.
func (s *Store) fetch(ctx context.Context, caller identity.Caller) ([]domain.Project, []domain.Assignment, error) {
	var (
		projects    []domain.Project
		assignments []domain.Assignment
	)

	if caller.IsAdmin() {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			projects, err = s.gw.ListProjects(gctx, gateway.ProjectFilter{})
			return err
		})
		g.Go(func() error {
			var err error
			assignments, err = s.gw.ListProjectAssignments(gctx, gateway.AssignmentFilter{})
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, nil, err
		}
	} else {
		own, err := s.gw.ListProjectAssignments(ctx, gateway.AssignmentFilter{UserID: caller.ID})
		if err != nil {
			return nil, nil, err
		}
		ids := lo.Uniq(lo.Map(own, func(a domain.Assignment, _ int) int64 { return a.ProjectID }))

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			projects, err = s.gw.ListProjects(gctx, gateway.ProjectFilter{IDs: ids})
			return err
		})
		g.Go(func() error {
			var err error
			assignments, err = s.gw.ListProjectAssignments(gctx, gateway.AssignmentFilter{ProjectIDs: ids})
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, nil, err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i := range projects {
		i := i
		g.Go(func() error {
			cols, err := s.gw.ListProjectColumns(gctx, projects[i].ID)
			if err != nil {
				return err
			}
			projects[i] = projects[i].WithColumns(cols)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return projects, assignments, nil
}

// AccessibleProjects is derived from the current snapshot on every call.
func (s *Store) AccessibleProjects(ctx context.Context) ([]domain.Project, error) {
	snap, err := s.Ready(ctx)
	if err != nil {
		return nil, err
	}
	return access.AccessibleProjects(snap.Caller, snap.Projects, snap.Assignments), nil
}

// Project returns an accessible project with the caller's effective role.
func (s *Store) Project(ctx context.Context, id int64) (domain.Project, domain.Role, error) {
	snap, err := s.Ready(ctx)
	if err != nil {
		return domain.Project{}, domain.RoleNone, err
	}
	return projectFor(snap, id)
}

// Assignments returns the cached assignments of a project the caller can see.
func (s *Store) Assignments(ctx context.Context, projectID int64) ([]domain.Assignment, error) {
	snap, err := s.Ready(ctx)
	if err != nil {
		return nil, err
	}
	if _, _, err := projectFor(snap, projectID); err != nil {
		return nil, err
	}
	return lo.Filter(snap.Assignments, func(a domain.Assignment, _ int) bool {
		return a.ProjectID == projectID
	}), nil
}

func projectFor(snap *Snapshot, id int64) (domain.Project, domain.Role, error) {
	p, _, ok := snap.project(id)
	if !ok {
		return domain.Project{}, domain.RoleNone, internal.ErrProjectNotFound
	}
	role, err := access.EffectiveRole(snap.Caller, p, snap.Assignments)
	if err != nil {
		return domain.Project{}, domain.RoleNone, err
	}
	return p.Clone(), role, nil
}
