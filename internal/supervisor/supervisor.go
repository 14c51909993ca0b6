// Package supervisor owns session creation and teardown. It wires the
// ingestion pipeline to the rule matcher and alert dispatcher, consumes
// pipeline stop notices from a control channel, and enforces the privacy
// retention policy when a session stops.
package supervisor

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ai-compliance-copilot-service/internal/events"
	"ai-compliance-copilot-service/internal/models"
	"ai-compliance-copilot-service/internal/observability/logging"
	"ai-compliance-copilot-service/internal/observability/metrics"
	"ai-compliance-copilot-service/internal/rules"
	"ai-compliance-copilot-service/internal/service/alert"
	"ai-compliance-copilot-service/internal/service/ingest"
	"ai-compliance-copilot-service/internal/service/stt"
	"ai-compliance-copilot-service/internal/session"
)

// AdapterFactory builds a fresh STT adapter for one session. A nil factory
// means sessions accept pre-transcribed segments only.
type AdapterFactory func(ctx context.Context) (stt.Adapter, error)

// Config holds per-session defaults the supervisor applies at start.
type Config struct {
	WindowCapacity int
	AlertQueueSize int
	Liveness       time.Duration
	MonitoredRole  string
	Provider       string
	AdapterFactory AdapterFactory
}

// Supervisor manages the lifecycle of all copilot sessions.
type Supervisor struct {
	cfg        Config
	store      *session.Store
	matcher    *rules.Matcher
	dispatcher *alert.Dispatcher
	publisher  *events.Publisher
	metrics    *metrics.Metrics
	logger     zerolog.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	control chan ingest.Notice
	done    chan struct{}

	mu        sync.Mutex
	pipelines map[string]*ingest.Pipeline
}

// New creates a supervisor and starts its control loop. The loop consumes
// disconnect and error notices from pipelines and turns them into stop
// transitions, so lifecycle changes always arrive as messages rather than
// callbacks.
func New(parent context.Context, cfg Config, store *session.Store, matcher *rules.Matcher, dispatcher *alert.Dispatcher, publisher *events.Publisher) *Supervisor {
	ctx, cancel := context.WithCancel(parent)
	s := &Supervisor{
		cfg:        cfg,
		store:      store,
		matcher:    matcher,
		dispatcher: dispatcher,
		publisher:  publisher,
		metrics:    metrics.DefaultMetrics,
		logger:     logging.WithComponent("supervisor"),
		ctx:        ctx,
		cancel:     cancel,
		control:    make(chan ingest.Notice, 16),
		done:       make(chan struct{}),
		pipelines:  make(map[string]*ingest.Pipeline),
	}
	go s.run()
	return s
}

// run is the supervisor's control loop.
func (s *Supervisor) run() {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			return
		case n := <-s.control:
			s.logger.Info().
				Str("sessionId", n.SessionID).
				Str("reason", n.Reason).
				Err(n.Err).
				Msg("Pipeline requested session stop")
			s.Stop(n.SessionID, n.Reason)
		}
	}
}

// Start creates a session, wires its pipeline, and activates it. An empty
// sessionID generates a fresh one. Returns the session, which exposes the
// outbound alert channel.
func (s *Supervisor) Start(sessionID string) (*session.Session, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	sess := session.New(s.ctx, sessionID, session.Options{
		WindowCapacity: s.cfg.WindowCapacity,
		AlertQueueSize: s.cfg.AlertQueueSize,
	})
	if err := s.store.Add(sess); err != nil {
		return nil, err
	}

	var adapter stt.Adapter
	if s.cfg.AdapterFactory != nil {
		a, err := s.cfg.AdapterFactory(sess.Context())
		if err != nil {
			s.store.Remove(sessionID)
			return nil, err
		}
		adapter = a
	}

	p := ingest.New(ingest.Config{
		Session:       sess,
		Adapter:       adapter,
		Matcher:       s.matcher,
		Dispatcher:    s.dispatcher,
		MonitoredRole: s.cfg.MonitoredRole,
		Liveness:      s.cfg.Liveness,
		Control:       s.control,
		Provider:      s.cfg.Provider,
	})
	if err := p.Start(); err != nil {
		sess.Stop()
		s.store.Remove(sessionID)
		return nil, err
	}

	if err := sess.Activate(); err != nil {
		sess.Stop()
		s.store.Remove(sessionID)
		return nil, err
	}

	s.mu.Lock()
	s.pipelines[sessionID] = p
	s.mu.Unlock()

	s.metrics.RecordSessionStart()
	s.logger.Info().Str("sessionId", sessionID).Msg("Session started")

	if s.publisher != nil {
		s.publishSessionEvent(events.SessionEvent{
			EventType: "copilot.session.started",
			SessionID: sessionID,
			Timestamp: time.Now().UnixMilli(),
		})
	}
	return sess, nil
}

// Stop tears a session down: cancels both pipeline tasks, joins them, and
// purges the window and dedup set before returning. Idempotent; repeated
// calls return false.
func (s *Supervisor) Stop(sessionID, reason string) bool {
	sess, ok := s.store.Get(sessionID)
	if !ok {
		return false
	}

	stopped := sess.Stop()
	if stopped {
		stats := sess.Stats()
		duration := time.Since(sess.CreatedAt)
		s.metrics.RecordSessionEnd(duration.Seconds())
		s.logger.Info().
			Str("sessionId", sessionID).
			Str("reason", reason).
			Dur("duration", duration).
			Int("segments", stats.SegmentCount).
			Int("violations", stats.ViolationCount).
			Msg("Session stopped, state purged")

		if s.publisher != nil {
			s.publishSessionEvent(events.SessionEvent{
				EventType:      "copilot.session.stopped",
				SessionID:      sessionID,
				Timestamp:      time.Now().UnixMilli(),
				SegmentCount:   stats.SegmentCount,
				ViolationCount: stats.ViolationCount,
				Reason:         reason,
			})
		}
	}

	s.store.Remove(sessionID)
	s.mu.Lock()
	delete(s.pipelines, sessionID)
	s.mu.Unlock()
	return stopped
}

// PushTranscript routes a pre-transcribed segment to a session's pipeline.
// Late events for stopped or unknown sessions are rejected.
func (s *Supervisor) PushTranscript(sessionID string, seg models.TranscriptSegment) error {
	p, ok := s.pipeline(sessionID)
	if !ok {
		return session.ErrSessionNotFound
	}
	return p.Push(ingest.Frame{Segment: &seg})
}

// PushAudio routes raw audio bytes to a session's STT adapter.
func (s *Supervisor) PushAudio(sessionID, speaker string, audio []byte) error {
	p, ok := s.pipeline(sessionID)
	if !ok {
		return session.ErrSessionNotFound
	}
	return p.Push(ingest.Frame{Speaker: speaker, Audio: audio})
}

// Stats returns the privacy-safe counters for a live session.
func (s *Supervisor) Stats(sessionID string) (session.Stats, bool) {
	sess, ok := s.store.Get(sessionID)
	if !ok {
		return session.Stats{}, false
	}
	return sess.Stats(), true
}

// Shutdown stops every live session and then the control loop.
func (s *Supervisor) Shutdown() {
	for _, id := range s.store.IDs() {
		s.Stop(id, "shutdown")
	}
	s.cancel()
	<-s.done
}

func (s *Supervisor) pipeline(sessionID string) (*ingest.Pipeline, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pipelines[sessionID]
	return p, ok
}

func (s *Supervisor) publishSessionEvent(ev events.SessionEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.publisher.PublishSessionEvent(ctx, ev.SessionID, ev); err != nil {
		s.logger.Warn().Err(err).Str("sessionId", ev.SessionID).Msg("Failed to publish session event")
	}
}
