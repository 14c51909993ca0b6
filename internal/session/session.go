package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"ai-compliance-copilot-service/internal/models"
)

// DefaultAlertQueueSize bounds the per-session outbound alert channel.
const DefaultAlertQueueSize = 16

// ErrAlertQueueClosed is returned when an alert is offered to a session
// whose outbound channel is already closed.
var ErrAlertQueueClosed = errors.New("alert queue closed")

// Session owns all mutable state for one live copilot session. Each session
// is owned exclusively by its pipeline goroutines plus the supervisor, so a
// single mutex suffices; nothing here is shared across sessions.
type Session struct {
	ID        string
	CreatedAt time.Time

	lifecycle *Lifecycle
	ctx       context.Context
	cancel    context.CancelFunc
	tasks     sync.WaitGroup

	mu             sync.Mutex
	window         *Window
	dedup          map[string]struct{}
	alerts         chan models.Alert
	alertsClosed   bool
	segmentCount   int
	violationCount int
	alertsDropped  int
}

// Options configures a new session.
type Options struct {
	WindowCapacity int
	AlertQueueSize int
}

// New creates a session in CREATED state. The session's context is derived
// from parent and governs both pipeline goroutines.
func New(parent context.Context, id string, opts Options) *Session {
	if opts.AlertQueueSize <= 0 {
		opts.AlertQueueSize = DefaultAlertQueueSize
	}
	ctx, cancel := context.WithCancel(parent)
	return &Session{
		ID:        id,
		CreatedAt: time.Now().UTC(),
		lifecycle: NewLifecycle(),
		ctx:       ctx,
		cancel:    cancel,
		window:    NewWindow(opts.WindowCapacity),
		dedup:     make(map[string]struct{}),
		alerts:    make(chan models.Alert, opts.AlertQueueSize),
	}
}

// Context returns the session-scoped context shared by the feed and commit
// tasks.
func (s *Session) Context() context.Context {
	return s.ctx
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return s.lifecycle.State()
}

// Activate transitions the session to ACTIVE once its pipeline is wired.
func (s *Session) Activate() error {
	return s.lifecycle.Activate()
}

// Go runs fn as a session task tracked by the stop join.
func (s *Session) Go(fn func()) {
	s.tasks.Add(1)
	go func() {
		defer s.tasks.Done()
		fn()
	}()
}

// Stop transitions the session to STOPPED, cancels both pipeline tasks,
// joins them, then synchronously purges the window and dedup set and closes
// the alert channel. Returns true on the first call, false on repeats.
// By the time Stop returns no further window or dedup mutation can occur.
func (s *Session) Stop() bool {
	if !s.lifecycle.Stop() {
		return false
	}
	s.cancel()
	s.tasks.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.window.Purge()
	s.dedup = make(map[string]struct{})
	if !s.alertsClosed {
		s.alertsClosed = true
		close(s.alerts)
	}
	return true
}

// AppendSegment adds a committed transcript segment to the window. Late
// events for a stopped session are rejected without mutation.
func (s *Session) AppendSegment(seg models.TranscriptSegment) error {
	if !s.lifecycle.IsActive() {
		return ErrSessionNotActive
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.window.Append(seg)
	s.segmentCount++
	return nil
}

// MarkFingerprint records a violation fingerprint. It returns true if the
// fingerprint was not seen before in this session's lifetime. The dedup set
// grows monotonically and is only cleared by Stop.
func (s *Session) MarkFingerprint(fp string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seen := s.dedup[fp]; seen {
		return false
	}
	s.dedup[fp] = struct{}{}
	return true
}

// Alerts returns the outbound alert channel. The channel is closed when the
// session stops.
func (s *Session) Alerts() <-chan models.Alert {
	return s.alerts
}

// Deliver enqueues an alert on the bounded outbound channel. When the
// channel is full the oldest undelivered alert is dropped so that alert
// delivery never stalls violation detection. Returns the number of alerts
// dropped to make room, or an error if the session already stopped.
func (s *Session) Deliver(alert models.Alert) (dropped int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.alertsClosed {
		return 0, ErrAlertQueueClosed
	}
	s.violationCount++
	for {
		select {
		case s.alerts <- alert:
			return dropped, nil
		default:
		}
		select {
		case <-s.alerts:
			dropped++
			s.alertsDropped++
		default:
		}
	}
}

// Stats is a privacy-safe summary of a session: counts only, never text.
type Stats struct {
	SessionID      string    `json:"session_id"`
	State          string    `json:"state"`
	CreatedAt      time.Time `json:"created_at"`
	SegmentCount   int       `json:"transcript_segments"`
	WindowLen      int       `json:"window_segments"`
	ViolationCount int       `json:"violations_detected"`
	AlertsDropped  int       `json:"alerts_dropped"`
}

// Stats returns the session's aggregate counters.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		SessionID:      s.ID,
		State:          s.lifecycle.State().String(),
		CreatedAt:      s.CreatedAt,
		SegmentCount:   s.segmentCount,
		WindowLen:      s.window.Len(),
		ViolationCount: s.violationCount,
		AlertsDropped:  s.alertsDropped,
	}
}

// WindowSegments returns a copy of the retained context window.
func (s *Session) WindowSegments() []models.TranscriptSegment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.window.Segments()
}
