package session

import (
	"context"
	"testing"

	"ai-compliance-copilot-service/internal/models"
)

func newActiveSession(t *testing.T, opts Options) *Session {
	t.Helper()
	s := New(context.Background(), "sess-1", opts)
	if err := s.Activate(); err != nil {
		t.Fatalf("activate: %v", err)
	}
	return s
}

func TestSession_AppendSegment(t *testing.T) {
	s := newActiveSession(t, Options{WindowCapacity: 3})

	if err := s.AppendSegment(seg("hello")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := s.Stats().SegmentCount; got != 1 {
		t.Errorf("expected 1 segment, got %d", got)
	}
}

func TestSession_AppendSegment_RejectedAfterStop(t *testing.T) {
	s := newActiveSession(t, Options{})
	s.Stop()

	if err := s.AppendSegment(seg("late event")); err != ErrSessionNotActive {
		t.Errorf("expected ErrSessionNotActive, got %v", err)
	}
	if got := s.Stats().WindowLen; got != 0 {
		t.Errorf("expected no window mutation after stop, got %d segments", got)
	}
}

func TestSession_AppendSegment_BeforeActivate(t *testing.T) {
	s := New(context.Background(), "sess-1", Options{})
	if err := s.AppendSegment(seg("early")); err != ErrSessionNotActive {
		t.Errorf("expected ErrSessionNotActive, got %v", err)
	}
}

func TestSession_MarkFingerprint(t *testing.T) {
	s := newActiveSession(t, Options{})

	if !s.MarkFingerprint("rule:ctx") {
		t.Error("expected first fingerprint to be new")
	}
	if s.MarkFingerprint("rule:ctx") {
		t.Error("expected repeat fingerprint to be seen")
	}
	if !s.MarkFingerprint("rule:other") {
		t.Error("expected different fingerprint to be new")
	}
}

func TestSession_Stop_PurgesState(t *testing.T) {
	s := newActiveSession(t, Options{WindowCapacity: 5})

	for i := 0; i < 3; i++ {
		if err := s.AppendSegment(seg("sensitive text")); err != nil {
			t.Fatal(err)
		}
	}
	s.MarkFingerprint("rule:fingerprint")

	if !s.Stop() {
		t.Fatal("expected first Stop to return true")
	}

	if got := len(s.WindowSegments()); got != 0 {
		t.Errorf("expected purged window, got %d segments", got)
	}
	if got := s.Stats().WindowLen; got != 0 {
		t.Errorf("expected window len 0, got %d", got)
	}

	// Alert channel is closed.
	if _, ok := <-s.Alerts(); ok {
		t.Error("expected closed alert channel after stop")
	}
}

func TestSession_Stop_Idempotent(t *testing.T) {
	s := newActiveSession(t, Options{})

	if !s.Stop() {
		t.Error("expected first Stop to return true")
	}
	if s.Stop() {
		t.Error("expected second Stop to be a no-op")
	}
}

func TestSession_Stop_JoinsTasks(t *testing.T) {
	s := newActiveSession(t, Options{})

	taskExited := false
	s.Go(func() {
		<-s.Context().Done()
		taskExited = true
	})

	s.Stop()

	// Stop joins tasks, so the write above happened before this read.
	if !taskExited {
		t.Error("expected task to observe cancellation before Stop returned")
	}
}

func TestSession_Deliver(t *testing.T) {
	s := newActiveSession(t, Options{AlertQueueSize: 4})

	dropped, err := s.Deliver(models.Alert{Title: "first"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dropped != 0 {
		t.Errorf("expected no drops, got %d", dropped)
	}

	a := <-s.Alerts()
	if a.Title != "first" {
		t.Errorf("expected first alert, got %s", a.Title)
	}
}

func TestSession_Deliver_DropsOldestWhenFull(t *testing.T) {
	s := newActiveSession(t, Options{AlertQueueSize: 1})

	if _, err := s.Deliver(models.Alert{Title: "old"}); err != nil {
		t.Fatal(err)
	}
	dropped, err := s.Deliver(models.Alert{Title: "new"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dropped != 1 {
		t.Errorf("expected 1 drop, got %d", dropped)
	}

	a := <-s.Alerts()
	if a.Title != "new" {
		t.Errorf("expected newest alert retained, got %s", a.Title)
	}
}

func TestSession_Deliver_AfterStop(t *testing.T) {
	s := newActiveSession(t, Options{})
	s.Stop()

	if _, err := s.Deliver(models.Alert{Title: "late"}); err != ErrAlertQueueClosed {
		t.Errorf("expected ErrAlertQueueClosed, got %v", err)
	}
}

func TestStore_AddGetRemove(t *testing.T) {
	st := NewStore()
	s := New(context.Background(), "sess-1", Options{})

	if err := st.Add(s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := st.Add(s); err != ErrSessionExists {
		t.Errorf("expected ErrSessionExists, got %v", err)
	}

	got, ok := st.Get("sess-1")
	if !ok || got.ID != "sess-1" {
		t.Errorf("expected to find sess-1, got %v %v", got, ok)
	}
	if st.Len() != 1 {
		t.Errorf("expected len 1, got %d", st.Len())
	}

	st.Remove("sess-1")
	if _, ok := st.Get("sess-1"); ok {
		t.Error("expected sess-1 to be removed")
	}
	if st.Len() != 0 {
		t.Errorf("expected len 0, got %d", st.Len())
	}
}
