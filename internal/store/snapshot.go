package store

import (
	"time"

	"github.com/frahmantamala/datashare/internal/core/domain"
	"github.com/frahmantamala/datashare/internal/core/identity"
	"github.com/samber/lo"
)

type State int

const (
	StateUninitialized State = iota
	StateLoading
	StateReady
	// StateStale means the cache no longer matches the gateway: either a
	// local mutation is awaiting confirmation or another session changed data.
	StateStale
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateStale:
		return "stale"
	}
	return "uninitialized"
}

// Snapshot is an immutable view of one session's cache. Once published a
// snapshot is never modified; mutations build a new one.
type Snapshot struct {
	Caller      identity.Caller
	State       State
	Projects    []domain.Project
	Assignments []domain.Assignment
	Generation  uint64
	LoadedAt    time.Time
	// Pending is true while an optimistic change awaits gateway confirmation.
	Pending bool
	// Err is the last refresh failure. Previous data is kept alongside it.
	Err error
}

func emptySnapshot(caller identity.Caller, generation uint64) *Snapshot {
	return &Snapshot{
		Caller:      caller,
		State:       StateUninitialized,
		Projects:    []domain.Project{},
		Assignments: []domain.Assignment{},
		Generation:  generation,
	}
}

func (s *Snapshot) clone() *Snapshot {
	cp := *s
	cp.Projects = lo.Map(s.Projects, func(p domain.Project, _ int) domain.Project { return p.Clone() })
	cp.Assignments = append([]domain.Assignment{}, s.Assignments...)
	return &cp
}

func (s *Snapshot) project(id int64) (domain.Project, int, bool) {
	for i, p := range s.Projects {
		if p.ID == id {
			return p, i, true
		}
	}
	return domain.Project{}, -1, false
}

// Usable reports whether the snapshot holds data that was loaded at least once.
func (s *Snapshot) Usable() bool {
	return s.State == StateReady || s.State == StateStale
}
