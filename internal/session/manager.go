package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"studio/internal/domain"
	"studio/internal/infra/credentials"
	"studio/internal/metrics"
)

type entry struct {
	// sem serializes actions on one session; a buffered channel lets
	// waiters give up when their context ends.
	sem   chan struct{}
	state *State
}

// Manager holds isolated sessions in memory. Sessions never share pending
// jobs, results or credentials.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	env      map[string]string
	now      func() time.Time
	onDelete func(id string)
}

type Options struct {
	// Env holds the process level credentials every new session starts from.
	Env map[string]string
	Now func() time.Time
	// OnDelete runs after a session is removed, e.g. to drop its media.
	OnDelete func(id string)
}

func NewManager(opts Options) *Manager {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{
		sessions: map[string]*entry{},
		env:      opts.Env,
		now:      now,
		onDelete: opts.OnDelete,
	}
}

// Create starts a new empty session and returns its snapshot.
func (m *Manager) Create() Snapshot {
	id := uuid.NewString()
	st := newState(id, credentials.NewStore(m.env), m.now)
	m.mu.Lock()
	m.sessions[id] = &entry{sem: make(chan struct{}, 1), state: st}
	metrics.ActiveSessions.Set(float64(len(m.sessions)))
	m.mu.Unlock()
	return st.Snapshot()
}

// With runs fn while holding the session lock.
func (m *Manager) With(ctx context.Context, id string, fn func(*State) error) error {
	m.mu.RLock()
	e, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return domain.ErrSessionNotFound
	}
	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-e.sem }()
	return fn(e.state)
}

// Snapshot returns the current view of a session.
func (m *Manager) Snapshot(ctx context.Context, id string) (Snapshot, error) {
	var snap Snapshot
	err := m.With(ctx, id, func(s *State) error {
		snap = s.Snapshot()
		return nil
	})
	return snap, err
}

func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	_, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	metrics.ActiveSessions.Set(float64(len(m.sessions)))
	m.mu.Unlock()
	if !ok {
		return domain.ErrSessionNotFound
	}
	if m.onDelete != nil {
		m.onDelete(id)
	}
	return nil
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
