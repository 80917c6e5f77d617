// Package media defines the interfaces for candidate media connectivity.
//
// The central abstraction is [Source]: one candidate's inbound media feed
// (microphone audio and periodic camera snapshots) plus the outbound playback
// path back to their device. Implementations are provided by adapter
// subpackages (e.g., media/socket for browser WebSocket clients); the
// abstraction keeps the session controller decoupled from transport details.
//
// This package lives under pkg/ because external transports are expected to
// implement [Source].
package media

import "errors"

// Device setup failures reported by the client during the hello exchange.
// The session never starts when one of these is returned; the candidate sees
// the corresponding setup error instead.
var (
	// ErrPermissionDenied means the candidate declined microphone or camera
	// access.
	ErrPermissionDenied = errors.New("media: device permission denied")

	// ErrNoDevice means no usable capture device was found.
	ErrNoDevice = errors.New("media: no capture device")
)

// Source represents one candidate's active media feed.
//
// A Source remains valid until Close is called or the underlying transport
// fails. The Audio and Snapshots channels are closed automatically when the
// source terminates; call Err afterwards to distinguish a clean stop from a
// transport failure.
//
// Implementations must be safe for concurrent use.
type Source interface {
	// Audio returns a read-only channel delivering raw capture chunks
	// (16 kHz, s16le, mono PCM) as they arrive from the candidate's
	// microphone.
	Audio() <-chan []byte

	// Snapshots returns a read-only channel delivering JPEG camera frames,
	// captured at roughly one frame per second.
	Snapshots() <-chan []byte

	// Playback sends a chunk of model speech (24 kHz, s16le, mono PCM) to
	// the candidate's device for immediate playback. Chunks are paced by the
	// playback scheduler; implementations just forward them.
	Playback(chunk []byte) error

	// Meter reports the candidate's current input level, normalized to
	// [0, 1], for the client's volume indicator. Best effort.
	Meter(level float64) error

	// Err returns the error that caused the media channels to close
	// prematurely, or nil if the source ended cleanly.
	Err() error

	// Close tears down the source, drains pending media, and closes the
	// Audio and Snapshots channels. Safe to call more than once.
	Close() error
}
