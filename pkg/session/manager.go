package session

import (
	"context"
	"slices"
	"sync"

	"github.com/Liggi/ai-learning-assistant-sub003/pkg/errors"
)

// Manager keeps one open Session per subject. Sessions share the base
// Options; only Subject differs.
type Manager struct {
	base Options

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager returns a manager that opens sessions with base.
func NewManager(base Options) *Manager {
	return &Manager{base: base, sessions: make(map[string]*Session)}
}

// Get returns the session for subject, opening it on first use.
func (m *Manager) Get(ctx context.Context, subject string) (*Session, error) {
	if err := errors.ValidateSubjectID(subject); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[subject]; ok {
		return s, nil
	}
	opts := m.base
	opts.Subject = subject
	s, err := Open(ctx, opts)
	if err != nil {
		return nil, err
	}
	m.sessions[subject] = s
	return s, nil
}

// Subjects returns the subjects with an open session, sorted.
func (m *Manager) Subjects() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.sessions))
	for subject := range m.sessions {
		out = append(out, subject)
	}
	slices.Sort(out)
	return out
}

// Wait waits for background work in every open session.
func (m *Manager) Wait() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()
	for _, s := range sessions {
		s.Wait()
	}
}

// Close closes every session. The shared store is left open.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for subject, s := range m.sessions {
		s.Close()
		delete(m.sessions, subject)
	}
	return nil
}
