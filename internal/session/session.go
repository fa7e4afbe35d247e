// Package session tracks debug targets attached by long-running clients.
// A session pins one resolved debuggee so later requests can refer to it
// by ID instead of resolving it again.
package session

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ctagard/cdbg/internal/debug"
	"github.com/ctagard/cdbg/internal/errors"
)

// Session is an attached debug target.
type Session struct {
	ID         string
	Target     *debug.Target
	ConfigName string
	CreatedAt  time.Time

	mu       sync.Mutex
	lastUsed time.Time
}

// Info describes a session for listing.
type Info struct {
	SessionID  string `json:"sessionId"`
	ProjectID  string `json:"projectId"`
	TargetID   string `json:"targetId"`
	Name       string `json:"name"`
	ConfigName string `json:"configName,omitempty"`
	CreatedAt  string `json:"createdAt"`
	LastUsed   string `json:"lastUsed"`
}

// Info returns a snapshot of the session's state.
func (s *Session) Info() Info {
	s.mu.Lock()
	lastUsed := s.lastUsed
	s.mu.Unlock()

	d := s.Target.Debuggee()
	return Info{
		SessionID:  s.ID,
		ProjectID:  d.ProjectID,
		TargetID:   d.TargetID,
		Name:       d.Name(),
		ConfigName: s.ConfigName,
		CreatedAt:  s.CreatedAt.UTC().Format(time.RFC3339),
		LastUsed:   lastUsed.UTC().Format(time.RFC3339),
	}
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastUsed = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// Manager holds the attached sessions. Sessions idle for longer than the
// timeout are dropped by a background sweep.
type Manager struct {
	sessions map[string]*Session
	mu       sync.RWMutex

	maxSessions    int
	sessionTimeout time.Duration
	logger         *slog.Logger
	now            func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

// NewManager creates a Manager and starts its cleanup loop. A zero timeout
// keeps sessions until they are detached.
func NewManager(maxSessions int, sessionTimeout time.Duration, logger *slog.Logger) *Manager {
	m := newManager(maxSessions, sessionTimeout, logger, time.Now)
	go m.cleanupLoop(time.Minute)
	return m
}

func newManager(maxSessions int, sessionTimeout time.Duration, logger *slog.Logger, now func() time.Time) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		sessions:       make(map[string]*Session),
		maxSessions:    maxSessions,
		sessionTimeout: sessionTimeout,
		logger:         logger,
		now:            now,
		ctx:            ctx,
		cancel:         cancel,
	}
}

func (m *Manager) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.cleanupExpired()
		}
	}
}

// cleanupExpired removes sessions idle for longer than the timeout.
func (m *Manager) cleanupExpired() int {
	if m.sessionTimeout <= 0 {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for id, s := range m.sessions {
		if now.Sub(s.idleSince()) > m.sessionTimeout {
			delete(m.sessions, id)
			removed++
			m.logger.Info("session expired", "session", id, "target", s.Target.Debuggee().TargetID)
		}
	}
	return removed
}

// Create attaches target under a new session ID.
func (m *Manager) Create(target *debug.Target, configName string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.maxSessions > 0 && len(m.sessions) >= m.maxSessions {
		return nil, errors.SessionLimitReached(m.maxSessions)
	}

	now := m.now()
	s := &Session{
		ID:         uuid.New().String(),
		Target:     target,
		ConfigName: configName,
		CreatedAt:  now,
		lastUsed:   now,
	}
	m.sessions[s.ID] = s
	m.logger.Debug("session created", "session", s.ID, "target", target.Debuggee().TargetID)
	return s, nil
}

// Get returns a session and marks it used.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, errors.SessionNotFound(id)
	}
	s.touch(m.now())
	return s, nil
}

// List returns the sessions ordered by creation time.
func (m *Manager) List() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].CreatedAt.Equal(sessions[j].CreatedAt) {
			return sessions[i].ID < sessions[j].ID
		}
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})
	return sessions
}

// Detach removes a session. Breakpoints set through it stay in place.
func (m *Manager) Detach(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return errors.SessionNotFound(id)
	}
	delete(m.sessions, id)
	return nil
}

// Close stops the cleanup loop and drops every session.
func (m *Manager) Close() {
	m.cancel()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = make(map[string]*Session)
}
