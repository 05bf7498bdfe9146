// Package session manages the lifecycle of research sessions: an active
// in-memory index per session, idle-timeout archiving into the durable
// store, and resume-on-demand hydration back into memory.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jiho-dev/askweb/internal/index"
	"github.com/jiho-dev/askweb/internal/log"
	"github.com/jiho-dev/askweb/internal/store"
)

// Session is one research session and its evidence index.
type Session struct {
	ID uuid.UUID

	mu         sync.Mutex
	state      State
	idx        *index.Hybrid
	lastActive time.Time
}

// State reports the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Index returns the session's index for querying. Only meaningful while
// the session is active.
func (s *Session) Index() *index.Hybrid {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idx
}

// Touch records activity, deferring idle archiving.
func (s *Session) Touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = now
}

// Manager owns all sessions of one process.
type Manager struct {
	store       store.Store
	idleTimeout time.Duration
	logger      log.Logger
	now         func() time.Time

	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithClock overrides the manager's time source.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a Manager. st may be nil; the manager then runs
// purely in memory and idle sessions are discarded instead of archived.
func NewManager(st store.Store, idleTimeout time.Duration, logger log.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = log.NewNop()
	}
	m := &Manager{
		store:       st,
		idleTimeout: idleTimeout,
		logger:      logger,
		now:         time.Now,
		sessions:    make(map[uuid.UUID]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create starts a new active session with a fresh index.
func (m *Manager) Create() *Session {
	s := &Session{
		ID:         uuid.New(),
		state:      StateActive,
		idx:        index.NewHybrid(),
		lastActive: m.now(),
	}
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	m.logger.Info("session created", "session_id", s.ID)
	return s
}

// Acquire returns the session ready for queries, resuming it from the
// durable store when it is not in memory. An unknown ID returns
// ErrSessionNotFound.
func (m *Manager) Acquire(ctx context.Context, id uuid.UUID) (*Session, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		if m.store == nil {
			m.mu.Unlock()
			return nil, ErrSessionNotFound
		}
		// Track it as archived; resume below hydrates it.
		s = &Session{ID: id, state: StateArchived}
		m.sessions[id] = s
	}
	m.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateActive:
		s.lastActive = m.now()
		return s, nil
	case StateArchiving, StateResuming:
		return nil, fmt.Errorf("%w: session %s is %s", ErrSessionBusy, id, s.state)
	}

	if err := m.resumeLocked(ctx, s); err != nil {
		return nil, err
	}
	s.lastActive = m.now()
	return s, nil
}

// resumeLocked hydrates a fresh index from the durable store. The caller
// holds s.mu; s is ARCHIVED on entry.
func (m *Manager) resumeLocked(ctx context.Context, s *Session) error {
	if m.store == nil {
		return ErrNoDurableStore
	}
	if err := s.transition(StateResuming); err != nil {
		return err
	}

	chunks, err := m.store.Load(ctx, s.ID)
	if err != nil {
		_ = s.transition(StateArchived)
		if errors.Is(err, store.ErrSessionNotFound) {
			m.forget(s.ID)
			return ErrSessionNotFound
		}
		return fmt.Errorf("resume session %s: %w", s.ID, err)
	}

	idx := index.NewHybrid()
	dropped := 0
	for _, c := range chunks {
		if err := idx.Upsert(c); err != nil {
			dropped++
		}
	}
	if dropped > 0 {
		m.logger.Warn("resume dropped chunks", "session_id", s.ID, "dropped", dropped)
	}

	s.idx = idx
	if err := s.transition(StateActive); err != nil {
		return err
	}
	m.logger.Info("session resumed", "session_id", s.ID, "chunks", idx.Len())
	return nil
}

// Archive flushes the session to the durable store and releases its
// index. A store failure rolls the session back to ACTIVE with the index
// intact.
func (m *Manager) Archive(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.transition(StateArchiving); err != nil {
		return err
	}

	if m.store == nil {
		// Nothing durable to flush into; the session just ends.
		s.idx = nil
		if err := s.transition(StateArchived); err != nil {
			return err
		}
		m.forget(id)
		return nil
	}

	chunks := s.idx.ExportAll()
	if err := m.store.Archive(ctx, id, chunks); err != nil {
		_ = s.transition(StateActive)
		return fmt.Errorf("archive session %s: %w", id, err)
	}

	s.idx = nil
	if err := s.transition(StateArchived); err != nil {
		return err
	}
	m.logger.Info("session archived", "session_id", id, "chunks", len(chunks))
	return nil
}

// SweepIdle archives every active session idle past the timeout. Errors
// are logged per session; the sweep continues.
func (m *Manager) SweepIdle(ctx context.Context) {
	cutoff := m.now().Add(-m.idleTimeout)

	m.mu.Lock()
	var idle []uuid.UUID
	for id, s := range m.sessions {
		s.mu.Lock()
		if s.state == StateActive && s.lastActive.Before(cutoff) {
			idle = append(idle, id)
		}
		s.mu.Unlock()
	}
	m.mu.Unlock()

	for _, id := range idle {
		if err := m.Archive(ctx, id); err != nil {
			m.logger.Warn("idle archive failed", "session_id", id, "error", err)
		}
	}
}

// Run sweeps idle sessions periodically until ctx ends.
func (m *Manager) Run(ctx context.Context) {
	interval := m.idleTimeout / 2
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.SweepIdle(ctx)
		}
	}
}

// Delete removes the session from memory and from the durable store.
func (m *Manager) Delete(ctx context.Context, id uuid.UUID) error {
	m.forget(id)
	if m.store == nil {
		return nil
	}
	return m.store.Delete(ctx, id)
}

func (m *Manager) forget(id uuid.UUID) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}
