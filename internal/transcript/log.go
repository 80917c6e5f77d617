// Package transcript maintains the authoritative record of everything said
// during an interview session.
//
// Both sides of the conversation arrive as committed lines from the realtime
// provider: the candidate's speech (recognised server-side) and the
// interviewer's spoken responses. The [Log] keeps them in arrival order,
// stamped with their offset from session start, and fans each new line out to
// subscribers so the browser can render a live transcript.
//
// When the interview ends the log is frozen. A frozen log rejects further
// appends, which guarantees the evaluation stage reads the same transcript the
// candidate saw.
package transcript

import (
	"strings"
	"sync"
	"time"

	"github.com/assessly-ai/assessly/pkg/types"
)

// subscriberBuffer is the per-subscriber channel depth. A subscriber that
// falls this far behind starts losing lines rather than blocking appends.
const subscriberBuffer = 32

// Log is an append-only, time-ordered transcript of one interview session.
// All methods are safe for concurrent use.
type Log struct {
	mu      sync.Mutex
	started time.Time
	lines   []types.TranscriptLine
	subs    []chan types.TranscriptLine
	frozen  bool
}

// New creates an empty Log. Line timestamps are measured from started.
func New(started time.Time) *Log {
	return &Log{started: started}
}

// Append records a committed line and notifies all subscribers.
// It reports whether the line was accepted; a frozen log accepts nothing.
// Lines consisting only of whitespace are never recorded.
func (l *Log) Append(role types.Role, text string, at time.Time) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	line := types.TranscriptLine{
		Role:      role,
		Text:      text,
		Timestamp: at.Sub(l.started),
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.frozen {
		return false
	}
	l.lines = append(l.lines, line)
	for _, sub := range l.subs {
		select {
		case sub <- line:
		default: // slow subscriber, drop
		}
	}
	return true
}

// Lines returns a snapshot of all recorded lines in arrival order.
// The returned slice is a copy and never nil.
func (l *Log) Lines() []types.TranscriptLine {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]types.TranscriptLine, len(l.lines))
	copy(out, l.lines)
	return out
}

// Len returns the number of recorded lines.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lines)
}

// Freeze marks the log read-only and closes all subscriber channels.
// It returns the final transcript. Freeze is idempotent.
func (l *Log) Freeze() []types.TranscriptLine {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.frozen {
		l.frozen = true
		for _, sub := range l.subs {
			close(sub)
		}
		l.subs = nil
	}

	out := make([]types.TranscriptLine, len(l.lines))
	copy(out, l.lines)
	return out
}

// Frozen reports whether the log has been frozen.
func (l *Log) Frozen() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.frozen
}

// Subscribe returns a channel that receives every line appended after this
// call. The channel is closed when the log is frozen. Subscribing to a frozen
// log returns an already-closed channel.
func (l *Log) Subscribe() <-chan types.TranscriptLine {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch := make(chan types.TranscriptLine, subscriberBuffer)
	if l.frozen {
		close(ch)
		return ch
	}
	l.subs = append(l.subs, ch)
	return ch
}
