// Package mock provides a mock STT adapter for development and tests
// without cloud credentials. It simulates progressive partial transcripts
// followed by exactly one final transcript per utterance.
package mock

import (
	"context"
	"sync"
	"time"

	"ai-compliance-copilot-service/internal/service/stt"
)

// SimulatedUtterance represents a mock utterance with progressive transcripts.
type SimulatedUtterance struct {
	Partials   []string
	Final      string
	Confidence float64
}

// DefaultUtterances provides sample rep utterances for simulation,
// alternating compliant and non-compliant speech so the pipeline has
// something to detect.
var DefaultUtterances = []SimulatedUtterance{
	{
		Partials:   []string{"In clinical", "In clinical trials"},
		Final:      "In clinical trials, 78% of patients achieved a 1.5% reduction in A1C",
		Confidence: 0.95,
	},
	{
		Partials:   []string{"This medication", "This medication is 100%"},
		Final:      "This medication is 100% effective and always works",
		Confidence: 0.93,
	},
	{
		Partials:   []string{"The most common", "The most common side effects"},
		Final:      "The most common side effects are listed in the prescribing information",
		Confidence: 0.97,
	},
	{
		Partials:   []string{"This drug can", "This drug can help with"},
		Final:      "This drug can help with weight loss in your patients",
		Confidence: 0.91,
	},
}

// Adapter implements stt.Adapter with scripted responses. One partial is
// emitted per audio frame; when the script runs out, a single final is
// emitted.
type Adapter struct {
	mu           sync.Mutex
	cb           stt.Callback
	utterance    SimulatedUtterance
	partialIndex int
	finalSent    bool
	closed       bool
	delay        time.Duration
}

// utteranceCounter cycles through the default utterances across sessions.
var (
	utteranceCounter int
	counterMu        sync.Mutex
)

// New creates a new mock STT adapter.
func New() *Adapter {
	counterMu.Lock()
	idx := utteranceCounter % len(DefaultUtterances)
	utteranceCounter++
	counterMu.Unlock()

	return &Adapter{
		utterance: DefaultUtterances[idx],
		delay:     50 * time.Millisecond,
	}
}

// NewScripted creates a mock adapter that plays back a fixed utterance with
// no simulated processing delay. Used by pipeline tests.
func NewScripted(u SimulatedUtterance) *Adapter {
	return &Adapter{utterance: u}
}

// Start begins a mock transcription session.
func (a *Adapter) Start(ctx context.Context, cb stt.Callback) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cb = cb
	return nil
}

// SendAudio simulates receiving audio. Each frame advances the script: one
// partial per frame, then the final once the partials are exhausted.
func (a *Adapter) SendAudio(ctx context.Context, audio []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed || a.cb == nil {
		return nil
	}

	if a.partialIndex < len(a.utterance.Partials) {
		partial := a.utterance.Partials[a.partialIndex]
		a.partialIndex++
		a.emit(func(cb stt.Callback) { cb.OnPartial(partial) })
		return nil
	}

	if !a.finalSent {
		a.finalSent = true
		utt := a.utterance
		a.emit(func(cb stt.Callback) { cb.OnFinal(utt.Final, utt.Confidence) })
	}
	return nil
}

// Close ends the mock session. If the stream ended before the script
// finished, the final is emitted anyway so the segment is not lost.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	a.closed = true

	if !a.finalSent && a.cb != nil {
		a.finalSent = true
		a.cb.OnFinal(a.utterance.Final, a.utterance.Confidence)
	}
	return nil
}

// emit invokes fn against the callback, asynchronously when a processing
// delay is configured. Callers hold a.mu.
func (a *Adapter) emit(fn func(stt.Callback)) {
	cb := a.cb
	if a.delay <= 0 {
		fn(cb)
		return
	}
	go func() {
		time.Sleep(a.delay)
		a.mu.Lock()
		closed := a.closed
		a.mu.Unlock()
		if !closed {
			fn(cb)
		}
	}()
}
