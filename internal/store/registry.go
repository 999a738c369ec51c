package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/frahmantamala/datashare/internal/core/events"
	"github.com/frahmantamala/datashare/internal/core/identity"
	"github.com/frahmantamala/datashare/internal/gateway"
	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultMaxSessions = 1024

type Subscriber interface {
	Subscribe(eventType string, handler events.Handler)
}

// Registry holds one Store per signed-in user. The least recently used
// session is logged out when the registry is full.
type Registry struct {
	gw     gateway.Gateway
	logger *slog.Logger
	opts   []Option

	mu       sync.Mutex
	sessions *lru.Cache[string, *Store]
}

func NewRegistry(gw gateway.Gateway, logger *slog.Logger, maxSessions int, opts ...Option) (*Registry, error) {
	if maxSessions <= 0 {
		maxSessions = defaultMaxSessions
	}
	sessions, err := lru.NewWithEvict[string, *Store](maxSessions, func(id string, s *Store) {
		s.SetIdentity(identity.Caller{})
		logger.Debug("session evicted", "user_id", id)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session cache: %w", err)
	}
	return &Registry{gw: gw, logger: logger, opts: opts, sessions: sessions}, nil
}

// Session returns the store for caller, creating it on first use. A stored
// session whose caller no longer matches (for example after a role change)
// is reset to the new identity.
func (r *Registry) Session(caller identity.Caller) *Store {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions.Get(caller.ID); ok {
		if s.Caller() != caller {
			s.SetIdentity(caller)
		}
		return s
	}

	s := New(r.gw, r.logger, r.opts...)
	s.SetIdentity(caller)
	r.sessions.Add(caller.ID, s)
	return s
}

// Drop logs a session out and forgets it.
func (r *Registry) Drop(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := identity.Normalize(userID)
	if s, ok := r.sessions.Peek(id); ok {
		r.sessions.Remove(id)
		s.SetIdentity(identity.Caller{})
	}
}

// InvalidateAll marks every session except exceptID stale.
func (r *Registry) InvalidateAll(exceptID string) {
	r.mu.Lock()
	stores := make([]*Store, 0, r.sessions.Len())
	for _, id := range r.sessions.Keys() {
		if identity.Same(id, exceptID) {
			continue
		}
		if s, ok := r.sessions.Peek(id); ok {
			stores = append(stores, s)
		}
	}
	r.mu.Unlock()

	for _, s := range stores {
		s.Invalidate()
	}
}

func (r *Registry) Len() int {
	return r.sessions.Len()
}

// Subscribe wires the registry to store and user change events.
func (r *Registry) Subscribe(bus Subscriber) {
	bus.Subscribe(events.EventTypeProjectsChanged, func(_ context.Context, e events.Event) error {
		changed, ok := e.(*events.ProjectsChangedEvent)
		if !ok {
			return fmt.Errorf("unexpected event payload %T", e)
		}
		r.InvalidateAll(changed.OriginID)
		return nil
	})
	bus.Subscribe(events.EventTypeUserDeleted, func(_ context.Context, e events.Event) error {
		deleted, ok := e.(*events.UserDeletedEvent)
		if !ok {
			return fmt.Errorf("unexpected event payload %T", e)
		}
		r.Drop(deleted.UserID)
		r.InvalidateAll("")
		return nil
	})
}
