package state

import (
	"maps"
	"sync"
)

// State names a dialog step. The zero-valued session is StateIdle.
type State string

// StateIdle means no dialog is running for the user.
const StateIdle State = "idle"

// Session is a copy of one user's dialog: the current step and the values
// collected so far.
type Session struct {
	State State
	Temp  map[string]string
}

// Manager stores dialog sessions keyed by Telegram user id.
type Manager interface {
	Get(userID int64) Session
	GetState(userID int64) State
	SetState(userID int64, st State)
	SetTemp(userID int64, key, value string)
	Temp(userID int64, key string) (string, bool)
	Clear(userID int64)
	InProgress(userID int64) bool
}

type memoryManager struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
}

// NewMemoryManager returns a process-local Manager. Sessions do not survive restarts.
func NewMemoryManager() Manager {
	return &memoryManager{sessions: make(map[int64]*Session)}
}

// session returns the user's session, creating it when missing. Caller holds mu.
func (m *memoryManager) session(userID int64) *Session {
	sess, ok := m.sessions[userID]
	if !ok {
		sess = &Session{State: StateIdle, Temp: make(map[string]string)}
		m.sessions[userID] = sess
	}
	return sess
}

func (m *memoryManager) Get(userID int64) Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if sess, ok := m.sessions[userID]; ok {
		return Session{State: sess.State, Temp: maps.Clone(sess.Temp)}
	}
	return Session{State: StateIdle, Temp: map[string]string{}}
}

func (m *memoryManager) GetState(userID int64) State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if sess, ok := m.sessions[userID]; ok {
		return sess.State
	}
	return StateIdle
}

func (m *memoryManager) SetState(userID int64, st State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session(userID).State = st
}

func (m *memoryManager) SetTemp(userID int64, key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session(userID).Temp[key] = value
}

func (m *memoryManager) Temp(userID int64, key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[userID]
	if !ok {
		return "", false
	}
	v, ok := sess.Temp[key]
	return v, ok
}

// Clear drops the user's session, state and collected values alike.
func (m *memoryManager) Clear(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
}

func (m *memoryManager) InProgress(userID int64) bool {
	return m.GetState(userID) != StateIdle
}
