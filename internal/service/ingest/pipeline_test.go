package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ai-compliance-copilot-service/internal/models"
	"ai-compliance-copilot-service/internal/rules"
	"ai-compliance-copilot-service/internal/service/alert"
	"ai-compliance-copilot-service/internal/service/stt"
	"ai-compliance-copilot-service/internal/service/stt/mock"
	"ai-compliance-copilot-service/internal/session"
)

func newTestPipeline(t *testing.T, cfg Config) (*Pipeline, *session.Session) {
	t.Helper()

	if cfg.Session == nil {
		cfg.Session = session.New(context.Background(), "sess-1", session.Options{})
	}
	if cfg.Matcher == nil {
		catalog, err := rules.Load("")
		if err != nil {
			t.Fatal(err)
		}
		cfg.Matcher = rules.NewMatcher(catalog, 0)
	}
	if cfg.Dispatcher == nil {
		cfg.Dispatcher = alert.NewDispatcher(30, nil)
	}
	if cfg.Liveness == 0 {
		cfg.Liveness = 5 * time.Second
	}

	p := New(cfg)
	if err := p.Start(); err != nil {
		t.Fatalf("pipeline start: %v", err)
	}
	if err := cfg.Session.Activate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { cfg.Session.Stop() })
	return p, cfg.Session
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}

func repSegment(text string) Frame {
	return Frame{Segment: &models.TranscriptSegment{
		Speaker:    models.SpeakerRep,
		Text:       text,
		Timestamp:  float64(time.Now().UnixMilli()) / 1000.0,
		Confidence: 0.95,
	}}
}

func TestPipeline_DetectsViolationInRepSpeech(t *testing.T) {
	p, sess := newTestPipeline(t, Config{})

	if err := p.Push(repSegment("This drug can help with weight loss in your patients.")); err != nil {
		t.Fatal(err)
	}

	select {
	case a := <-sess.Alerts():
		if a.Severity != models.SeverityCritical {
			t.Errorf("expected critical alert, got %s", a.Severity)
		}
		if a.Type != models.AlertTypeViolation {
			t.Errorf("expected violation type, got %s", a.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected an alert")
	}
}

func TestPipeline_CompliantSpeechProducesNothing(t *testing.T) {
	p, sess := newTestPipeline(t, Config{})

	if err := p.Push(repSegment("In clinical trials, 78% of patients achieved a 1.5% reduction in A1C.")); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool { return sess.Stats().SegmentCount == 1 }, "segment not committed")
	select {
	case a := <-sess.Alerts():
		t.Errorf("unexpected alert: %+v", a)
	default:
	}
}

func TestPipeline_CounterpartSpeechNotEvaluated(t *testing.T) {
	p, sess := newTestPipeline(t, Config{})

	// Violating text from the counterpart: stored for context, never
	// evaluated.
	if err := p.Push(Frame{Segment: &models.TranscriptSegment{
		Speaker: models.SpeakerCounterpart,
		Text:    "This drug can help with weight loss, right?",
	}}); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool { return sess.Stats().SegmentCount == 1 }, "segment not committed")
	if got := sess.Stats().ViolationCount; got != 0 {
		t.Errorf("expected 0 violations for counterpart speech, got %d", got)
	}
	select {
	case a := <-sess.Alerts():
		t.Errorf("unexpected alert: %+v", a)
	default:
	}

	// The segment is retained in the window for context.
	segs := sess.WindowSegments()
	if len(segs) != 1 || segs[0].Speaker != models.SpeakerCounterpart {
		t.Errorf("expected counterpart segment in window, got %+v", segs)
	}
}

func TestPipeline_ViolationsInCommitOrder(t *testing.T) {
	p, sess := newTestPipeline(t, Config{})

	if err := p.Push(repSegment("This drug can help with weight loss.")); err != nil {
		t.Fatal(err)
	}
	if err := p.Push(repSegment("Don't worry about side effects, they're minimal.")); err != nil {
		t.Fatal(err)
	}

	first := <-sess.Alerts()
	second := <-sess.Alerts()
	if first.Title != "Direct Off-Label Promotion" {
		t.Errorf("expected off-label alert first, got %s", first.Title)
	}
	if second.Title != "Downplaying Side Effects" {
		t.Errorf("expected side-effects alert second, got %s", second.Title)
	}
}

func TestPipeline_DuplicateTextAlertsOnce(t *testing.T) {
	p, sess := newTestPipeline(t, Config{})

	text := "This medication is 100% effective and always works."
	if err := p.Push(repSegment(text)); err != nil {
		t.Fatal(err)
	}
	if err := p.Push(repSegment(text)); err != nil {
		t.Fatal(err)
	}

	<-sess.Alerts()
	waitFor(t, func() bool { return sess.Stats().SegmentCount == 2 }, "segments not committed")
	select {
	case a := <-sess.Alerts():
		t.Errorf("expected dedup to suppress second alert, got %+v", a)
	default:
	}
}

func TestPipeline_AudioPathThroughSTT(t *testing.T) {
	adapter := mock.NewScripted(mock.SimulatedUtterance{
		Final:      "This drug can help with weight loss in your patients",
		Confidence: 0.9,
	})
	p, sess := newTestPipeline(t, Config{Adapter: adapter})

	if err := p.Push(Frame{Speaker: models.SpeakerRep, Audio: []byte{0x01, 0x02}}); err != nil {
		t.Fatal(err)
	}

	select {
	case a := <-sess.Alerts():
		if a.Severity != models.SeverityCritical {
			t.Errorf("expected critical alert, got %s", a.Severity)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected an alert from the audio path")
	}
}

// asyncAdapter delivers a final transcript from its own goroutine for every
// audio frame, the way a real streaming recognizer returns results.
type asyncAdapter struct {
	cb stt.Callback
	wg sync.WaitGroup
}

func (a *asyncAdapter) Start(ctx context.Context, cb stt.Callback) error {
	a.cb = cb
	return nil
}

func (a *asyncAdapter) SendAudio(ctx context.Context, audio []byte) error {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.cb.OnFinal("the committed transcript for this frame", 0.9)
	}()
	return nil
}

func (a *asyncAdapter) Close() error {
	a.wg.Wait()
	return nil
}

func TestPipeline_AsyncSTTResultsSpeakerAttribution(t *testing.T) {
	const frames = 50

	sess := session.New(context.Background(), "sess-1", session.Options{
		WindowCapacity: frames,
	})
	p, _ := newTestPipeline(t, Config{Session: sess, Adapter: &asyncAdapter{}})

	// Alternating speakers with results arriving off the feed goroutine:
	// attribution must stay consistent under the race detector.
	for i := 0; i < frames; i++ {
		speaker := models.SpeakerRep
		if i%2 == 1 {
			speaker = models.SpeakerCounterpart
		}
		if err := p.Push(Frame{Speaker: speaker, Audio: []byte{0x01}}); err != nil {
			t.Fatal(err)
		}
	}

	waitFor(t, func() bool { return sess.Stats().SegmentCount == frames }, "segments not committed")
	for _, s := range sess.WindowSegments() {
		if !models.ValidSpeaker(s.Speaker) {
			t.Fatalf("segment attributed to unknown speaker %q", s.Speaker)
		}
	}
}

func TestPipeline_PushAfterStop(t *testing.T) {
	p, sess := newTestPipeline(t, Config{})
	sess.Stop()

	if err := p.Push(repSegment("late event")); err != ErrPipelineClosed {
		t.Errorf("expected ErrPipelineClosed, got %v", err)
	}
	if got := sess.Stats().WindowLen; got != 0 {
		t.Errorf("expected no window mutation after stop, got %d", got)
	}
}

func TestPipeline_LivenessTimeout(t *testing.T) {
	control := make(chan Notice, 1)
	_, sess := newTestPipeline(t, Config{
		Liveness: 50 * time.Millisecond,
		Control:  control,
	})

	select {
	case n := <-control:
		if n.Reason != ReasonLivenessTimeout {
			t.Errorf("expected liveness_timeout, got %s", n.Reason)
		}
		if n.SessionID != sess.ID {
			t.Errorf("expected session %s, got %s", sess.ID, n.SessionID)
		}
		if !errors.Is(n.Err, ErrUpstreamGone) {
			t.Errorf("expected ErrUpstreamGone, got %v", n.Err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected a liveness notice")
	}
}
