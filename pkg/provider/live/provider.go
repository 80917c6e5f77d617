// Package live defines the Provider interface for realtime conversational
// audio backends.
//
// A live provider wraps a speech-to-speech AI service that accepts raw audio
// (and optionally camera frames) and returns synthesised audio plus rolling
// transcriptions in a single, stateful session — there is no separate
// STT → LLM → TTS pipeline. Examples include the Gemini Live API and the
// OpenAI Realtime API.
//
// The central abstraction is SessionHandle: a bidirectional channel that
// multiplexes audio, transcript lines, and interruption signals on a single
// ordered event stream. A session covers exactly one interview; providers
// never share a connection between interviews.
//
// All implementations must be safe for concurrent use.
package live

import (
	"context"
	"time"

	"github.com/assessly-ai/assessly/pkg/types"
)

// EventKind discriminates the variants of Event.
type EventKind int

const (
	// EventAudio carries a chunk of synthesised model speech.
	EventAudio EventKind = iota

	// EventTranscript carries a committed transcript line.
	EventTranscript

	// EventInterrupted signals that the model's current response was cut off
	// by candidate speech. All buffered playback for the response must be
	// discarded.
	EventInterrupted

	// EventTurnComplete signals that the model finished its current response.
	EventTurnComplete
)

// Event is a single item on the session's ordered event stream. Audio and
// interruption share one stream so that a consumer can never play audio that
// arrived before the interruption that cancels it.
type Event struct {
	Kind EventKind

	// Audio is the raw PCM chunk (24 kHz, s16le, mono) for EventAudio.
	Audio []byte

	// Role and Text are set for EventTranscript.
	Role types.Role
	Text string
}

// SessionConfig is the initial configuration for a new live session.
type SessionConfig struct {
	// Instructions is the system-level prompt defining the interviewer's
	// persona, subject area, and pacing constraints.
	Instructions string

	// Voice is the provider-specific voice identifier for synthesised speech.
	Voice string
}

// Capabilities describes static properties of a live provider. The values
// are assumed constant for the lifetime of the Provider instance.
type Capabilities struct {
	// MaxSessionDuration is the provider-imposed upper bound on session
	// lifetime. Zero means no documented limit.
	MaxSessionDuration time.Duration

	// SupportsVideo indicates whether SendVideo frames are forwarded to the
	// model rather than silently dropped.
	SupportsVideo bool

	// Voices lists the voice identifiers available for this provider.
	Voices []string
}

// SessionHandle represents an open live session. It is an interface so that
// test code can supply mock implementations without a provider connection.
//
// The session is the hot path of the interview pipeline — every method must
// return quickly. Output is channel-based to avoid blocking the caller's
// audio thread. All methods must be safe for concurrent use.
//
// Callers must call Close when the session is no longer needed.
type SessionHandle interface {
	// SendAudio delivers a raw PCM chunk (16 kHz, s16le, mono) of candidate
	// speech to the model. Returns an error if the session is closed or the
	// transport rejects the write.
	SendAudio(chunk []byte) error

	// SendVideo delivers a JPEG camera frame to the model. Providers without
	// video support return nil and drop the frame.
	SendVideo(jpeg []byte) error

	// SendText injects a text turn into the session's rolling context, e.g.
	// to prime the model with the candidate's name before they speak.
	SendText(role types.Role, text string) error

	// Events returns a read-only channel emitting the session's ordered
	// event stream. The channel is closed when the session ends or a
	// mid-stream error occurs; call Err afterwards to distinguish the two.
	// Consumers must drain this channel promptly to keep the provider's
	// receive loop from stalling.
	Events() <-chan Event

	// Err returns the error that caused the Events channel to close
	// prematurely, or nil if the session ended cleanly.
	Err() error

	// Close terminates the session, releases all resources, and closes the
	// Events channel. Calling Close more than once is safe and returns nil.
	Close() error
}

// Provider is the abstraction over any realtime conversational backend.
//
// Implementations must be safe for concurrent use; the gateway may open
// sessions for several interviews at once.
type Provider interface {
	// Connect establishes a new live session with the given configuration.
	// The returned SessionHandle is ready to accept audio immediately.
	//
	// Returns an error if the session cannot be established (authentication
	// failure, invalid voice, or ctx already cancelled). The caller owns the
	// SessionHandle and is responsible for calling Close.
	Connect(ctx context.Context, cfg SessionConfig) (SessionHandle, error)

	// Capabilities returns static metadata about this provider's model.
	Capabilities() Capabilities
}
