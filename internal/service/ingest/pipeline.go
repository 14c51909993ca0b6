// Package ingest runs the per-session detection pipeline: a feed task that
// forwards raw frames from the upstream source into the transcription sink,
// and a commit task that turns committed transcript events into window
// pushes, rule evaluations, and alert dispatches.
package ingest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ai-compliance-copilot-service/internal/models"
	"ai-compliance-copilot-service/internal/observability/logging"
	"ai-compliance-copilot-service/internal/observability/metrics"
	"ai-compliance-copilot-service/internal/rules"
	"ai-compliance-copilot-service/internal/service/alert"
	"ai-compliance-copilot-service/internal/service/stt"
	"ai-compliance-copilot-service/internal/session"
)

// DefaultLivenessTimeout forces a stop when the upstream source stalls
// without signalling end-of-stream.
const DefaultLivenessTimeout = 45 * time.Second

// ErrUpstreamGone reports that the external source ended or stalled. It
// stops the owning session, never the process.
var ErrUpstreamGone = errors.New("upstream source gone")

// ErrPipelineClosed is returned by Push once the session is cancelled.
var ErrPipelineClosed = errors.New("pipeline closed")

// Stop reasons reported to the supervisor.
const (
	ReasonUpstreamDisconnect = "upstream_disconnect"
	ReasonLivenessTimeout    = "liveness_timeout"
	ReasonSTTError           = "stt_error"
)

// Frame is one inbound unit from the external source: raw audio bytes for
// the STT adapter, or a pre-transcribed segment that bypasses it. Exactly
// one of Audio and Segment is set.
type Frame struct {
	Speaker string
	Audio   []byte
	Segment *models.TranscriptSegment
}

// Notice tells the supervisor a pipeline wants its session stopped. Err
// carries the underlying cause: ErrUpstreamGone for a stalled source, or
// the adapter error for an STT failure.
type Notice struct {
	SessionID string
	Reason    string
	Err       error
}

// transcriptEvent is a committed transcript pulled out of the sink.
type transcriptEvent struct {
	speaker    string
	text       string
	timestamp  float64
	confidence float64
}

// Config wires a pipeline to its collaborators.
type Config struct {
	Session       *session.Session
	Adapter       stt.Adapter // nil when only pre-transcribed segments arrive
	Matcher       *rules.Matcher
	Dispatcher    *alert.Dispatcher
	MonitoredRole string
	Liveness      time.Duration
	Control       chan<- Notice
	Provider      string // adapter name, for metrics
}

// Pipeline owns the two cooperating tasks for one session. Both share the
// session context; cancelling one without the other is a bug, so the
// supervisor joins both through the session's task group.
type Pipeline struct {
	cfg     Config
	source  chan Frame
	sink    chan transcriptEvent
	metrics *metrics.Metrics
	logger  zerolog.Logger

	// speaker attributed to the next committed STT result; written by the
	// feed task as audio frames arrive, read by OnFinal on the adapter's
	// result goroutine.
	speakerMu      sync.Mutex
	currentSpeaker string
}

// New creates a pipeline for a session. Frames are buffered so a slow STT
// handshake does not immediately backpressure the transport reader.
func New(cfg Config) *Pipeline {
	if cfg.Liveness <= 0 {
		cfg.Liveness = DefaultLivenessTimeout
	}
	if cfg.MonitoredRole == "" {
		cfg.MonitoredRole = models.SpeakerRep
	}
	return &Pipeline{
		cfg:            cfg,
		source:         make(chan Frame, 64),
		sink:           make(chan transcriptEvent, 64),
		metrics:        metrics.DefaultMetrics,
		logger:         logging.WithSession(cfg.Session.ID),
		currentSpeaker: cfg.MonitoredRole,
	}
}

// Start wires the STT adapter and launches the feed and commit tasks as
// session-tracked goroutines. A wiring failure leaves the session in
// CREATED state; nothing is launched.
func (p *Pipeline) Start() error {
	ctx := p.cfg.Session.Context()
	if p.cfg.Adapter != nil {
		if err := p.cfg.Adapter.Start(ctx, p); err != nil {
			return err
		}
	}
	p.cfg.Session.Go(func() { p.feed(ctx) })
	p.cfg.Session.Go(func() { p.commit(ctx) })
	return nil
}

// Push hands a frame from the transport to the feed task. It never blocks
// past session cancellation.
func (p *Pipeline) Push(f Frame) error {
	ctx := p.cfg.Session.Context()
	select {
	case <-ctx.Done():
		return ErrPipelineClosed
	default:
	}
	select {
	case p.source <- f:
		return nil
	case <-ctx.Done():
		return ErrPipelineClosed
	}
}

// feed pulls raw frames from the source and routes them: audio to the STT
// adapter, pre-transcribed segments straight into the sink. A stalled
// source trips the liveness timeout.
func (p *Pipeline) feed(ctx context.Context) {
	defer func() {
		if p.cfg.Adapter != nil {
			if err := p.cfg.Adapter.Close(); err != nil {
				p.logger.Warn().Err(err).Msg("Error closing STT adapter")
			}
		}
	}()

	idle := time.NewTimer(p.cfg.Liveness)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-idle.C:
			p.logger.Warn().
				Dur("timeout", p.cfg.Liveness).
				Msg("Upstream source stalled, forcing session stop")
			p.metrics.RecordLivenessTimeout()
			p.notify(ReasonLivenessTimeout, ErrUpstreamGone)
			return

		case f := <-p.source:
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(p.cfg.Liveness)

			switch {
			case f.Segment != nil:
				ev := transcriptEvent{
					speaker:    f.Segment.Speaker,
					text:       f.Segment.Text,
					timestamp:  f.Segment.Timestamp,
					confidence: f.Segment.Confidence,
				}
				select {
				case p.sink <- ev:
				case <-ctx.Done():
					return
				}

			case len(f.Audio) > 0:
				p.setSpeaker(f.Speaker)
				p.metrics.RecordAudioReceived(len(f.Audio))
				if p.cfg.Adapter == nil {
					p.logger.Debug().Msg("Audio frame dropped, no STT adapter configured")
					continue
				}
				if err := p.cfg.Adapter.SendAudio(ctx, f.Audio); err != nil {
					p.logger.Error().Err(err).Msg("STT send failed")
					p.metrics.RecordSTTError(p.cfg.Provider, "send")
					p.notify(ReasonSTTError, err)
					return
				}
			}
		}
	}
}

// commit drains committed transcript events. Every segment enters the
// window for context; only monitored-speaker segments are evaluated.
// Violations for one session are dispatched in commit order.
func (p *Pipeline) commit(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case ev := <-p.sink:
			seg := models.TranscriptSegment{
				Speaker:    ev.speaker,
				Text:       ev.text,
				Timestamp:  ev.timestamp,
				Confidence: ev.confidence,
			}
			if err := p.cfg.Session.AppendSegment(seg); err != nil {
				p.metrics.RecordSegmentRejected()
				p.logger.Debug().Err(err).Msg("Segment rejected")
				continue
			}
			p.metrics.RecordSegmentCommitted(ev.speaker)

			if ev.speaker != p.cfg.MonitoredRole {
				continue
			}

			start := time.Now()
			violations := p.cfg.Matcher.Evaluate(ev.text)
			elapsed := time.Since(start)
			p.metrics.RecordMatch(elapsed.Seconds(), elapsed > p.cfg.Matcher.Budget())

			for _, v := range violations {
				v.SessionID = p.cfg.Session.ID
				p.metrics.RecordViolation(v.Severity, v.Category)
				ruleLogger := logging.WithRule(v.SessionID, v.RuleID)
				ruleLogger.Warn().
					Str("severity", v.Severity).
					Str("category", v.Category).
					Msg("Violation detected")
				p.cfg.Dispatcher.Dispatch(p.cfg.Session, v)
			}
		}
	}
}

// notify reports a stop reason to the supervisor without blocking a
// supervisor that is already tearing this session down.
func (p *Pipeline) notify(reason string, err error) {
	if p.cfg.Control == nil {
		return
	}
	select {
	case p.cfg.Control <- Notice{SessionID: p.cfg.Session.ID, Reason: reason, Err: err}:
	case <-p.cfg.Session.Context().Done():
	}
}

// setSpeaker records the speaker of the latest audio frame.
func (p *Pipeline) setSpeaker(role string) {
	p.speakerMu.Lock()
	p.currentSpeaker = role
	p.speakerMu.Unlock()
}

// speaker returns the speaker attributed to the next STT result.
func (p *Pipeline) speaker() string {
	p.speakerMu.Lock()
	defer p.speakerMu.Unlock()
	return p.currentSpeaker
}

// --- stt.Callback implementation ---

// OnPartial logs interim transcripts. Detection runs on committed segments
// only, and partial text is never retained.
func (p *Pipeline) OnPartial(text string) {
	p.logger.Debug().Int("chars", len(text)).Msg("Partial transcript")
}

// OnFinal commits an STT result into the sink, attributed to the speaker
// of the most recent audio frame.
func (p *Pipeline) OnFinal(text string, confidence float64) {
	ev := transcriptEvent{
		speaker:    p.speaker(),
		text:       text,
		timestamp:  float64(time.Now().UnixMilli()) / 1000.0,
		confidence: confidence,
	}
	select {
	case p.sink <- ev:
	case <-p.cfg.Session.Context().Done():
	}
}

// OnError reports an STT stream failure. The session stops; other sessions
// are unaffected.
func (p *Pipeline) OnError(err error) {
	p.logger.Error().Err(err).Msg("STT stream error")
	p.metrics.RecordSTTError(p.cfg.Provider, "stream")
	p.notify(ReasonSTTError, err)
}
