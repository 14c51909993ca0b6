package session

import "ai-compliance-copilot-service/internal/models"

// DefaultWindowCapacity is the default number of recent segments a session
// retains for context.
const DefaultWindowCapacity = 10

// Window is a strict-FIFO bounded buffer of transcript segments. It is the
// only place transcript text is retained, and only for the lifetime of the
// owning session. Not safe for concurrent use on its own; the owning
// Session serializes access.
type Window struct {
	capacity int
	segments []models.TranscriptSegment
}

// NewWindow creates a window with the given capacity. Non-positive values
// fall back to DefaultWindowCapacity.
func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = DefaultWindowCapacity
	}
	return &Window{
		capacity: capacity,
		segments: make([]models.TranscriptSegment, 0, capacity),
	}
}

// Append adds a segment, evicting exactly the oldest when the window is at
// capacity.
func (w *Window) Append(seg models.TranscriptSegment) {
	if len(w.segments) == w.capacity {
		copy(w.segments, w.segments[1:])
		w.segments = w.segments[:w.capacity-1]
	}
	w.segments = append(w.segments, seg)
}

// Len returns the number of retained segments.
func (w *Window) Len() int {
	return len(w.segments)
}

// Capacity returns the maximum number of retained segments.
func (w *Window) Capacity() int {
	return w.capacity
}

// Segments returns a copy of the retained segments, oldest first.
func (w *Window) Segments() []models.TranscriptSegment {
	out := make([]models.TranscriptSegment, len(w.segments))
	copy(out, w.segments)
	return out
}

// Purge zeroes and discards all retained segments. This is the privacy
// contract, not an optimization: after Purge no transcript text from the
// session remains reachable.
func (w *Window) Purge() {
	for i := range w.segments {
		w.segments[i] = models.TranscriptSegment{}
	}
	w.segments = w.segments[:0]
}
