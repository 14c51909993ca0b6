// Package session provides per-session state: the lifecycle state machine,
// the bounded transcript window, the alert dedup set, and the store that
// owns all live sessions.
package session

import (
	"errors"
	"fmt"
	"sync"
)

// State represents the lifecycle state of a copilot session.
type State int

const (
	// StateCreated - session object exists but the pipeline is not wired yet.
	StateCreated State = iota
	// StateActive - pipeline is running, segments and alerts flow.
	StateActive
	// StateStopped - terminal. Window and dedup set have been purged.
	StateStopped
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "CREATED"
	case StateActive:
		return "ACTIVE"
	case StateStopped:
		return "STOPPED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// Errors for invalid state transitions.
var (
	ErrSessionStopped   = errors.New("session is stopped")
	ErrNotCreated       = errors.New("session is not in created state")
	ErrSessionNotActive = errors.New("session is not active")
)

// Lifecycle manages the state machine for a single session.
// Thread-safe for concurrent access.
//
// State transitions:
//
//	CREATED → ACTIVE → STOPPED
//	              │
//	              └── Stop() ──→ idempotent, terminal
//
// Rules:
//   - CREATED: Activate() once the pipeline is wired to a live source.
//   - ACTIVE: segments may enter the window, alerts may be delivered.
//   - STOPPED: terminal. All mutation attempts are rejected.
type Lifecycle struct {
	mu    sync.RWMutex
	state State
}

// NewLifecycle creates a lifecycle in CREATED state.
func NewLifecycle() *Lifecycle {
	return &Lifecycle{state: StateCreated}
}

// State returns the current state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// IsActive reports whether the session is in ACTIVE state.
func (l *Lifecycle) IsActive() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state == StateActive
}

// IsStopped reports whether the session reached the terminal state.
func (l *Lifecycle) IsStopped() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state == StateStopped
}

// Activate transitions CREATED → ACTIVE. Returns an error if the session
// is not in CREATED state.
func (l *Lifecycle) Activate() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case StateCreated:
		l.state = StateActive
		return nil
	case StateStopped:
		return ErrSessionStopped
	default:
		return ErrNotCreated
	}
}

// Stop transitions to STOPPED from any state. Returns true on the first
// call, false if the session was already stopped. Idempotent.
func (l *Lifecycle) Stop() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == StateStopped {
		return false
	}
	l.state = StateStopped
	return true
}
