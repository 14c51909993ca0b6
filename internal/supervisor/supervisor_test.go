package supervisor

import (
	"context"
	"errors"
	"testing"
	"time"

	"ai-compliance-copilot-service/internal/models"
	"ai-compliance-copilot-service/internal/rules"
	"ai-compliance-copilot-service/internal/service/alert"
	"ai-compliance-copilot-service/internal/session"
)

func newTestSupervisor(t *testing.T, cfg Config) *Supervisor {
	t.Helper()

	catalog, err := rules.Load("")
	if err != nil {
		t.Fatal(err)
	}
	sup := New(
		context.Background(),
		cfg,
		session.NewStore(),
		rules.NewMatcher(catalog, 0),
		alert.NewDispatcher(30, nil),
		nil,
	)
	t.Cleanup(sup.Shutdown)
	return sup
}

func TestSupervisor_StartGeneratesSessionID(t *testing.T) {
	sup := newTestSupervisor(t, Config{})

	sess, err := sup.Start("")
	if err != nil {
		t.Fatal(err)
	}
	if sess.ID == "" {
		t.Fatal("expected a generated session id")
	}
	if sess.State() != session.StateActive {
		t.Errorf("expected active session, got %s", sess.State())
	}
}

func TestSupervisor_StartRejectsDuplicateID(t *testing.T) {
	sup := newTestSupervisor(t, Config{})

	if _, err := sup.Start("dup"); err != nil {
		t.Fatal(err)
	}
	if _, err := sup.Start("dup"); !errors.Is(err, session.ErrSessionExists) {
		t.Errorf("expected ErrSessionExists, got %v", err)
	}
}

func TestSupervisor_TranscriptToAlert(t *testing.T) {
	sup := newTestSupervisor(t, Config{})

	sess, err := sup.Start("")
	if err != nil {
		t.Fatal(err)
	}

	err = sup.PushTranscript(sess.ID, models.TranscriptSegment{
		Speaker:    models.SpeakerRep,
		Text:       "Our drug is much better than the competitor's product.",
		Confidence: 0.9,
	})
	if err != nil {
		t.Fatal(err)
	}

	select {
	case a := <-sess.Alerts():
		if a.Severity != models.SeverityWarning {
			t.Errorf("expected warning alert, got %s", a.Severity)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected an alert")
	}
}

func TestSupervisor_StopIsIdempotent(t *testing.T) {
	sup := newTestSupervisor(t, Config{})

	sess, err := sup.Start("")
	if err != nil {
		t.Fatal(err)
	}
	if !sup.Stop(sess.ID, "client_request") {
		t.Error("first stop should report a transition")
	}
	if sup.Stop(sess.ID, "client_request") {
		t.Error("second stop should be a no-op")
	}
}

func TestSupervisor_PushAfterStopRejected(t *testing.T) {
	sup := newTestSupervisor(t, Config{})

	sess, err := sup.Start("")
	if err != nil {
		t.Fatal(err)
	}
	sup.Stop(sess.ID, "client_request")

	err = sup.PushTranscript(sess.ID, models.TranscriptSegment{
		Speaker: models.SpeakerRep,
		Text:    "late event",
	})
	if !errors.Is(err, session.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
	if err := sup.PushAudio(sess.ID, models.SpeakerRep, []byte{0x01}); !errors.Is(err, session.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestSupervisor_StopPurgesState(t *testing.T) {
	sup := newTestSupervisor(t, Config{})

	sess, err := sup.Start("")
	if err != nil {
		t.Fatal(err)
	}
	err = sup.PushTranscript(sess.ID, models.TranscriptSegment{
		Speaker: models.SpeakerRep,
		Text:    "In clinical trials, 78% of patients responded.",
	})
	if err != nil {
		t.Fatal(err)
	}
	waitForStats(t, sup, sess.ID, 1)

	sup.Stop(sess.ID, "client_request")

	if _, ok := sup.Stats(sess.ID); ok {
		t.Error("expected stats lookup to miss after stop")
	}
	if got := len(sess.WindowSegments()); got != 0 {
		t.Errorf("expected empty window after stop, got %d segments", got)
	}
}

func TestSupervisor_LivenessNoticeStopsSession(t *testing.T) {
	sup := newTestSupervisor(t, Config{Liveness: 50 * time.Millisecond})

	sess, err := sup.Start("")
	if err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := sup.Stats(sess.ID); !ok {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expected the stalled session to be stopped and removed")
}

func TestSupervisor_SessionsAreIsolated(t *testing.T) {
	sup := newTestSupervisor(t, Config{})

	a, err := sup.Start("")
	if err != nil {
		t.Fatal(err)
	}
	b, err := sup.Start("")
	if err != nil {
		t.Fatal(err)
	}

	// The same violating text in both sessions alerts in both; dedup state
	// is per session.
	text := "This drug can help with weight loss."
	for _, id := range []string{a.ID, b.ID} {
		err := sup.PushTranscript(id, models.TranscriptSegment{
			Speaker: models.SpeakerRep,
			Text:    text,
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	for _, sess := range []*session.Session{a, b} {
		select {
		case <-sess.Alerts():
		case <-time.After(2 * time.Second):
			t.Fatalf("session %s never received its alert", sess.ID)
		}
	}
}

func waitForStats(t *testing.T, sup *Supervisor, sessionID string, segments int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if st, ok := sup.Stats(sessionID); ok && st.SegmentCount >= segments {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("session %s never committed %d segments", sessionID, segments)
}
