// Package session tracks interview runs and guarantees at most one is active
// at a time.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusRunning   Status = "running"
	StatusFinished  Status = "finished"
	StatusCancelled Status = "cancelled"
	StatusFailed    Status = "failed"
)

var (
	ErrNotFound = errors.New("session not found")
	ErrActive   = errors.New("an interview is already in progress")
)

type Session struct {
	ID             string     `json:"session_id"`
	Origin         string     `json:"origin"`
	Status         Status     `json:"status"`
	State          string     `json:"state"`
	Error          string     `json:"error,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	LastActivityAt time.Time  `json:"last_activity_at"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
}

// DefaultRetainFinished is how many ended sessions stay readable by Get.
const DefaultRetainFinished = 64

type entry struct {
	session Session
	cancel  context.CancelFunc
	stop    func()
	expired bool
}

type Manager struct {
	mu                sync.RWMutex
	sessions          map[string]*entry
	activeID          string
	ended             []string
	retainFinished    int
	inactivityTimeout time.Duration
	onExpire          func(Session)
	now               func() time.Time
}

func NewManager(inactivityTimeout time.Duration) *Manager {
	if inactivityTimeout <= 0 {
		inactivityTimeout = 10 * time.Minute
	}
	return &Manager{
		sessions:          make(map[string]*entry),
		retainFinished:    DefaultRetainFinished,
		inactivityTimeout: inactivityTimeout,
		now:               func() time.Time { return time.Now().UTC() },
	}
}

// SetExpireHook is called for each session the janitor cancels.
func (m *Manager) SetExpireHook(hook func(Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpire = hook
}

// SetRetention bounds how many ended sessions are kept. Older ones are
// forgotten as new sessions end.
func (m *Manager) SetRetention(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n < 1 {
		n = 1
	}
	m.retainFinished = n
	m.prune()
}

// Begin claims the single interview slot. cancel is invoked by End and by
// the janitor.
func (m *Manager) Begin(origin string, cancel context.CancelFunc) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.activeID != "" {
		return Session{}, ErrActive
	}
	now := m.now()
	e := &entry{
		session: Session{
			ID:             uuid.NewString(),
			Origin:         origin,
			Status:         StatusRunning,
			StartedAt:      now,
			LastActivityAt: now,
		},
		cancel: cancel,
	}
	m.sessions[e.session.ID] = e
	m.activeID = e.session.ID
	return e.session, nil
}

// SetStopper registers the function that ends the current listen.
func (m *Manager) SetStopper(id string, stop func()) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	e.stop = stop
	return nil
}

func (m *Manager) StopListening(id string) error {
	m.mu.Lock()
	e, ok := m.sessions[id]
	if !ok || e.session.Status != StatusRunning {
		m.mu.Unlock()
		return ErrNotFound
	}
	e.session.LastActivityAt = m.now()
	stop := e.stop
	m.mu.Unlock()

	if stop != nil {
		stop()
	}
	return nil
}

func (m *Manager) SetState(id, state string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	e.session.State = state
	e.session.LastActivityAt = m.now()
	return nil
}

func (m *Manager) Touch(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	e.session.LastActivityAt = m.now()
	return nil
}

// End asks a running interview to stop. The slot is released by Finish once
// the run has flushed its results.
func (m *Manager) End(id string) (Session, error) {
	m.mu.Lock()
	e, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return Session{}, ErrNotFound
	}
	e.session.LastActivityAt = m.now()
	cancel := e.cancel
	snapshot := e.session
	m.mu.Unlock()

	if cancel != nil && snapshot.Status == StatusRunning {
		cancel()
	}
	return snapshot, nil
}

// Finish records the final status and frees the interview slot.
func (m *Manager) Finish(id string, status Status, runErr error) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	first := e.session.EndedAt == nil
	now := m.now()
	e.session.Status = status
	e.session.LastActivityAt = now
	e.session.EndedAt = &now
	if runErr != nil {
		e.session.Error = runErr.Error()
	}
	e.cancel = nil
	e.stop = nil
	if m.activeID == id {
		m.activeID = ""
	}
	if first {
		m.ended = append(m.ended, id)
		m.prune()
	}
	return e.session, nil
}

func (m *Manager) prune() {
	for len(m.ended) > m.retainFinished {
		delete(m.sessions, m.ended[0])
		m.ended = m.ended[1:]
	}
}

func (m *Manager) Get(id string) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	return e.session, nil
}

// Active returns the running interview, if any.
func (m *Manager) Active() (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.activeID == "" {
		return Session{}, false
	}
	return m.sessions[m.activeID].session, true
}

func (m *Manager) ActiveCount() int {
	if _, ok := m.Active(); ok {
		return 1
	}
	return 0
}

// StartJanitor cancels the active interview once it has been idle longer
// than the inactivity timeout.
func (m *Manager) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.expireInactive()
			}
		}
	}()
}

func (m *Manager) expireInactive() {
	m.mu.Lock()
	e, ok := m.sessions[m.activeID]
	if !ok || e.expired || m.now().Sub(e.session.LastActivityAt) < m.inactivityTimeout {
		m.mu.Unlock()
		return
	}
	e.expired = true
	cancel := e.cancel
	snapshot := e.session
	hook := m.onExpire
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if hook != nil {
		hook(snapshot)
	}
}
