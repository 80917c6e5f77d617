// Package mock provides a test double for the media.Source interface.
//
// Callers pre-populate AudioCh and SnapshotsCh, then close them to signal
// end-of-media. Playback and Meter calls are recorded for inspection.
package mock

import (
	"sync"

	"github.com/assessly-ai/assessly/pkg/media"
)

// Source is a mock implementation of media.Source.
type Source struct {
	mu sync.Mutex

	// AudioCh is the channel returned by Audio(). Callers own this channel.
	AudioCh chan []byte

	// SnapshotsCh is the channel returned by Snapshots(). Callers own this
	// channel.
	SnapshotsCh chan []byte

	// PlaybackErr, if non-nil, is returned by every Playback call.
	PlaybackErr error

	// MeterErr, if non-nil, is returned by every Meter call.
	MeterErr error

	// SourceErr is returned by Err.
	SourceErr error

	// CloseErr, if non-nil, is returned by Close.
	CloseErr error

	// PlaybackCalls records a copy of every chunk passed to Playback.
	PlaybackCalls [][]byte

	// MeterCalls records every level passed to Meter.
	MeterCalls []float64

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int

	chClosed bool
}

// New returns a Source with buffered media channels.
func New() *Source {
	return &Source{
		AudioCh:     make(chan []byte, 64),
		SnapshotsCh: make(chan []byte, 4),
	}
}

// Audio returns AudioCh.
func (s *Source) Audio() <-chan []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.AudioCh
}

// Snapshots returns SnapshotsCh.
func (s *Source) Snapshots() <-chan []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.SnapshotsCh
}

// Playback records the chunk and returns PlaybackErr.
func (s *Source) Playback(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(chunk))
	copy(cp, chunk)
	s.PlaybackCalls = append(s.PlaybackCalls, cp)
	return s.PlaybackErr
}

// Meter records the level and returns MeterErr.
func (s *Source) Meter(level float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.MeterCalls = append(s.MeterCalls, level)
	return s.MeterErr
}

// Err returns SourceErr.
func (s *Source) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.SourceErr
}

// Close records the call and returns CloseErr. The first call closes the
// media channels, matching the real source contract that Close ends media
// delivery.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCallCount++
	s.closeChannelsLocked()
	return s.CloseErr
}

// EndMedia simulates the transport dying underneath the session: the media
// channels close without Close being called. err becomes the value reported
// by Err (nil simulates a clean remote stop).
func (s *Source) EndMedia(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SourceErr = err
	s.closeChannelsLocked()
}

func (s *Source) closeChannelsLocked() {
	if s.chClosed {
		return
	}
	s.chClosed = true
	close(s.AudioCh)
	close(s.SnapshotsCh)
}

// MeterCount returns the number of recorded Meter calls. Thread-safe.
func (s *Source) MeterCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.MeterCalls)
}

// CloseCount returns the number of recorded Close calls. Thread-safe.
func (s *Source) CloseCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.CloseCallCount
}

// PlaybackCount returns the number of recorded Playback calls. Thread-safe.
func (s *Source) PlaybackCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.PlaybackCalls)
}

// Ensure Source implements media.Source at compile time.
var _ media.Source = (*Source)(nil)
