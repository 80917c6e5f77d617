// Package playback schedules model speech for gapless client playback.
//
// Audio arrives from the realtime provider in bursts that are faster than
// real time. The scheduler assigns each chunk a start time using a monotonic
// cursor — a chunk starts either now or exactly when the previous chunk ends,
// whichever is later — and delivers it to the sink at that time, so the
// client hears continuous speech with no gaps or overlap.
//
// Barge-in interruption discards everything scheduled and resets the cursor,
// so the next response starts immediately instead of queueing behind audio
// the candidate already talked over.
package playback

import (
	"sync"
	"time"

	"github.com/assessly-ai/assessly/pkg/pcm"
)

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Option configures a [Scheduler] during construction.
type Option func(*Scheduler)

// WithClock replaces the system clock. Used in tests.
func WithClock(c Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// entry is one scheduled chunk.
type entry struct {
	data  []byte
	start time.Time
}

// Scheduler delivers audio chunks to a sink at their scheduled start times.
//
// All exported methods are safe for concurrent use.
type Scheduler struct {
	sink  func([]byte) // receives chunks at their start time
	clock Clock

	mu         sync.Mutex
	queue      []entry
	cursor     time.Time     // end time of the last scheduled chunk
	cancelWait chan struct{} // closed to abandon the in-flight wait
	closed     bool

	notify chan struct{} // signalled when a chunk is enqueued
	done   chan struct{} // closed by Close to stop the dispatch goroutine
}

// New creates a Scheduler that delivers chunks to sink. The scheduler starts
// a background dispatch goroutine immediately.
//
// sink must not be nil; it is called sequentially from the dispatch goroutine
// and must not block for extended periods.
//
// Call [Scheduler.Close] to stop the background goroutine.
func New(sink func([]byte), opts ...Option) *Scheduler {
	s := &Scheduler{
		sink:   sink,
		clock:  systemClock{},
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	go s.dispatch()
	return s
}

// Enqueue schedules buf for playback and returns its start time: now if the
// line is idle, otherwise the instant the previously scheduled audio ends.
// The cursor advances by the chunk's duration either way.
func (s *Scheduler) Enqueue(buf pcm.Buffer) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || len(buf.Data) == 0 {
		return time.Time{}
	}

	now := s.clock.Now()
	start := now
	if s.cursor.After(now) {
		start = s.cursor
	}
	s.cursor = start.Add(buf.Duration())
	s.queue = append(s.queue, entry{data: buf.Data, start: start})

	// Wake the dispatch goroutine.
	select {
	case s.notify <- struct{}{}:
	default:
	}
	return start
}

// Speaking reports whether scheduled audio extends past the current instant,
// i.e. the interviewer is (or is about to be) audibly speaking.
func (s *Scheduler) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor.After(s.clock.Now())
}

// Interrupt discards all scheduled audio and resets the cursor, so the next
// Enqueue starts immediately. Called on barge-in.
func (s *Scheduler) Interrupt() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.queue = nil
	s.cursor = time.Time{}
	if s.cancelWait != nil {
		close(s.cancelWait)
		s.cancelWait = nil
	}
}

// Close stops the background dispatch goroutine and discards any scheduled
// audio. Close is idempotent.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.queue = nil
	s.cursor = time.Time{}
	if s.cancelWait != nil {
		close(s.cancelWait)
		s.cancelWait = nil
	}
	s.mu.Unlock()

	close(s.done)
	return nil
}

// dispatch pulls chunks off the queue and hands each to the sink at its
// scheduled start time. Runs until Close.
func (s *Scheduler) dispatch() {
	for {
		select {
		case <-s.done:
			return
		case <-s.notify:
		}

		for {
			e, cancel, ok := s.dequeue()
			if !ok {
				break
			}

			if delay := e.start.Sub(s.clock.Now()); delay > 0 {
				select {
				case <-s.done:
					return
				case <-cancel:
					// Interrupted while waiting; chunk discarded.
					continue
				case <-s.clock.After(delay):
				}
			}

			// An interrupt may land between dequeue and here (a due chunk
			// skips the wait entirely, and a select with both channels ready
			// picks either). Nothing interrupted audio may reach the sink.
			select {
			case <-cancel:
				continue
			default:
			}

			s.sink(e.data)

			s.mu.Lock()
			if s.cancelWait == cancel {
				s.cancelWait = nil
			}
			s.mu.Unlock()
		}
	}
}

// dequeue pops the next scheduled chunk and arms its cancel channel.
// Returns ok=false if the queue is empty.
func (s *Scheduler) dequeue() (e entry, cancel chan struct{}, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) == 0 {
		return entry{}, nil, false
	}

	e = s.queue[0]
	s.queue = s.queue[1:]
	cancel = make(chan struct{})
	s.cancelWait = cancel
	return e, cancel, true
}
