package models

import (
	"errors"
	"fmt"
)

// Speaker roles in a two-party call. The rep is the monitored party; the
// counterpart (typically the physician) provides context only.
const (
	SpeakerRep         = "rep"
	SpeakerCounterpart = "counterpart"
)

// Inbound websocket message types.
const (
	MessageTypeTranscript = "transcript"
	MessageTypeAudio      = "audio"
	MessageTypeStop       = "stop"
)

// InboundMessage is the envelope for messages a copilot client sends over
// the websocket. Exactly one of the payload shapes applies per type.
type InboundMessage struct {
	Type       string  `json:"type"`
	Speaker    string  `json:"speaker,omitempty"`
	Text       string  `json:"text,omitempty"`
	Timestamp  float64 `json:"timestamp,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Audio      []byte  `json:"audio,omitempty"`
}

// TranscriptSegment is one committed unit of transcribed speech attributed
// to a speaker. Segments live only inside the owning session's window.
type TranscriptSegment struct {
	Speaker    string
	Text       string
	Timestamp  float64
	Confidence float64
}

var (
	ErrUnknownMessageType = errors.New("unknown message type")
	ErrUnknownSpeaker     = errors.New("unknown speaker role")
	ErrEmptyPayload       = errors.New("empty payload")
)

// ValidSpeaker reports whether role is a recognized speaker role.
func ValidSpeaker(role string) bool {
	return role == SpeakerRep || role == SpeakerCounterpart
}

// Validate checks an inbound message at the transport boundary before it
// reaches the session pipeline.
func (m *InboundMessage) Validate() error {
	switch m.Type {
	case MessageTypeTranscript:
		if !ValidSpeaker(m.Speaker) {
			return fmt.Errorf("%w: %q", ErrUnknownSpeaker, m.Speaker)
		}
		if m.Text == "" {
			return fmt.Errorf("transcript: %w", ErrEmptyPayload)
		}
		return nil
	case MessageTypeAudio:
		if !ValidSpeaker(m.Speaker) {
			return fmt.Errorf("%w: %q", ErrUnknownSpeaker, m.Speaker)
		}
		if len(m.Audio) == 0 {
			return fmt.Errorf("audio: %w", ErrEmptyPayload)
		}
		return nil
	case MessageTypeStop:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMessageType, m.Type)
	}
}
