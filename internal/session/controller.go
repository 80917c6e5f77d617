// Package session orchestrates a single mock interview from channel open to
// delivered evaluation.
//
// A [Controller] owns everything one interview needs: the candidate's media
// source, the realtime channel to the AI interviewer, the playback scheduler
// that paces reply audio back to the browser, the transcript log, the
// interview countdown, and the evaluation and relay stages that run after the
// conversation ends. One controller serves exactly one interview; it is not
// reusable.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/assessly-ai/assessly/internal/playback"
	"github.com/assessly-ai/assessly/internal/transcript"
	"github.com/assessly-ai/assessly/pkg/media"
	"github.com/assessly-ai/assessly/pkg/pcm"
	"github.com/assessly-ai/assessly/pkg/provider/live"
	"github.com/assessly-ai/assessly/pkg/types"
)

// ErrInsufficientTranscript is returned by finalization when the conversation
// produced fewer than two transcript lines. There is nothing meaningful to
// grade in a session where at most one side spoke.
var ErrInsufficientTranscript = errors.New("session: transcript too short to evaluate")

// defaultSnapshotInterval is how often a camera snapshot is forwarded to the
// AI peer.
const defaultSnapshotInterval = 1 * time.Second

// State describes where a [Controller] is in the interview lifecycle.
type State int32

const (
	// StateIdle is the initial state before Run is called.
	StateIdle State = iota

	// StateConnecting means the realtime channel is being established.
	StateConnecting

	// StateLive means the conversation is in progress.
	StateLive

	// StateEvaluating means the conversation has ended and the transcript
	// is being scored.
	StateEvaluating

	// StateComplete means the evaluation succeeded and was delivered.
	StateComplete

	// StateFailed means the session ended without a delivered evaluation.
	StateFailed
)

// String returns the state name for logging.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateLive:
		return "live"
	case StateEvaluating:
		return "evaluating"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Finalization triggers, recorded in logs and metrics.
const (
	TriggerUser    = "user"
	TriggerTimeout = "timeout"
	TriggerChannel = "channel"
	TriggerMedia   = "media"
)

// Scorer grades a frozen transcript into a [types.SessionResult].
type Scorer interface {
	Score(ctx context.Context, lines []types.TranscriptLine) (*types.SessionResult, error)
}

// Relay delivers a finished evaluation to an external destination.
type Relay interface {
	Deliver(ctx context.Context, profile types.CandidateProfile, result *types.SessionResult, lines []types.TranscriptLine) error
}

// Hooks are optional observation points for the lifecycle. Any field may be
// nil. Callbacks are invoked from controller goroutines and must not block.
type Hooks struct {
	// OnTick receives the remaining interview time once per countdown tick.
	OnTick func(remaining time.Duration)

	// OnTranscript receives each committed transcript line.
	OnTranscript func(line types.TranscriptLine)

	// OnStateChange receives every state transition.
	OnStateChange func(state State)
}

// ControllerConfig configures a [Controller]. Profile, Source, Provider and
// Scorer are required; Relay may be nil when chat delivery is disabled.
type ControllerConfig struct {
	Profile  types.CandidateProfile
	Source   media.Source
	Provider live.Provider
	Scorer   Scorer
	Relay    Relay

	// Instructions is the system instruction handed to the realtime channel.
	Instructions string

	// Voice is the AI interviewer's voice name.
	Voice string

	// Duration is the interview length. Defaults to [DefaultDuration].
	Duration time.Duration

	// Tick overrides the countdown tick interval. Tests shrink this.
	Tick time.Duration

	// SnapshotInterval is how often a camera snapshot is sent to the peer.
	// Defaults to 1s.
	SnapshotInterval time.Duration

	Hooks Hooks
}

// Controller runs one interview session end to end.
//
// Call [Controller.Run] once; it blocks until the session reaches a terminal
// state and all resources are released. [Controller.Stop] requests an early
// finish from another goroutine (the candidate pressed stop).
type Controller struct {
	cfg ControllerConfig

	log       *transcript.Log
	scheduler *playback.Scheduler
	countdown *Countdown

	mu      sync.Mutex
	handle  live.SessionHandle
	result  *types.SessionResult
	endErr  error
	trigger string

	state      atomic.Int32
	finalizing atomic.Bool

	terminal     chan struct{} // closed when a terminal state is reached
	termOnce     sync.Once
	teardownOnce sync.Once
	wg           sync.WaitGroup
}

// NewController creates a controller for one interview. Run must be called
// to start it.
func NewController(cfg ControllerConfig) *Controller {
	if cfg.SnapshotInterval <= 0 {
		cfg.SnapshotInterval = defaultSnapshotInterval
	}
	return &Controller{
		cfg:      cfg,
		terminal: make(chan struct{}),
	}
}

// State returns the controller's current lifecycle state.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// Result returns the evaluation result, or nil if none was produced.
func (c *Controller) Result() *types.SessionResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result
}

// EndTrigger returns what started finalization (user, timeout, channel,
// media), or "error" when the session failed before any finalization ran.
func (c *Controller) EndTrigger() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.trigger == "" {
		return "error"
	}
	return c.trigger
}

// Run executes the full session lifecycle and blocks until the session is
// terminal and torn down. It returns nil when the evaluation was produced and
// delivered, and the terminal error otherwise.
func (c *Controller) Run(ctx context.Context) error {
	c.setState(StateConnecting)

	handle, err := c.cfg.Provider.Connect(ctx, live.SessionConfig{
		Instructions: c.cfg.Instructions,
		Voice:        c.cfg.Voice,
	})
	if err != nil {
		c.fail(fmt.Errorf("session: connect: %w", err))
		c.teardown()
		return c.endError()
	}

	c.mu.Lock()
	c.handle = handle
	c.log = transcript.New(time.Now())
	c.scheduler = playback.New(c.playbackSink)
	c.mu.Unlock()

	c.countdown = NewCountdown(CountdownConfig{
		Total:  c.cfg.Duration,
		Tick:   c.cfg.Tick,
		OnTick: c.cfg.Hooks.OnTick,
		OnExpire: func() {
			c.finalize(context.WithoutCancel(ctx), TriggerTimeout)
		},
	})
	if c.cfg.Hooks.OnTranscript != nil {
		feed := c.log.Subscribe()
		c.wg.Go(func() {
			for line := range feed {
				c.cfg.Hooks.OnTranscript(line)
			}
		})
	}

	c.setState(StateLive)
	c.countdown.Start()

	c.wg.Go(func() { c.pumpAudio(ctx) })
	c.wg.Go(func() { c.pumpSnapshots() })
	c.wg.Go(func() { c.pumpEvents(ctx) })

	select {
	case <-ctx.Done():
		c.fail(fmt.Errorf("session: %w", ctx.Err()))
	case <-c.terminal:
	}

	c.teardown()
	return c.endError()
}

// Stop ends the interview early at the candidate's request and runs
// finalization. It blocks until the session is terminal. Stop must only be
// called once the session is live.
func (c *Controller) Stop(ctx context.Context) error {
	c.finalize(ctx, TriggerUser)
	<-c.terminal
	return c.endError()
}

// playbackSink hands a scheduled reply chunk to the media source for the
// browser to play. Failures are non-fatal; the conversation continues.
func (c *Controller) playbackSink(data []byte) {
	if err := c.cfg.Source.Playback(data); err != nil {
		slog.Debug("session: playback write failed", "err", err)
	}
}

// pumpAudio forwards every capture frame to the realtime channel and reports
// the frame's level to the client for the volume meter. Send failures are
// dropped; streaming is best-effort while the channel is up. When the capture
// stream ends mid-interview the candidate is gone: a source error fails the
// session, a clean close finalizes with whatever transcript exists.
func (c *Controller) pumpAudio(ctx context.Context) {
	for chunk := range c.cfg.Source.Audio() {
		if c.State() != StateLive {
			continue
		}
		if err := c.handle.SendAudio(chunk); err != nil {
			slog.Debug("session: send audio failed", "err", err)
		}
		if err := c.cfg.Source.Meter(pcm.RMS(chunk)); err != nil {
			slog.Debug("session: meter write failed", "err", err)
		}
	}

	if c.State() != StateLive {
		return
	}
	if err := c.cfg.Source.Err(); err != nil {
		slog.Warn("session: media source failed", "err", err)
		c.fail(fmt.Errorf("session: media source: %w", err))
		return
	}
	c.finalize(context.WithoutCancel(ctx), TriggerMedia)
}

// pumpSnapshots forwards the most recent camera snapshot once per interval.
// Intermediate snapshots are discarded; the peer only needs the latest view.
func (c *Controller) pumpSnapshots() {
	ticker := time.NewTicker(c.cfg.SnapshotInterval)
	defer ticker.Stop()

	var latest []byte
	for {
		select {
		case <-c.terminal:
			return
		case frame, ok := <-c.cfg.Source.Snapshots():
			if !ok {
				return
			}
			latest = frame
		case <-ticker.C:
			if latest == nil || c.State() != StateLive {
				continue
			}
			if err := c.handle.SendVideo(latest); err != nil {
				slog.Debug("session: send snapshot failed", "err", err)
			}
			latest = nil
		}
	}
}

// pumpEvents consumes the realtime channel's ordered event stream until it
// closes. Channel closure while live means the peer hung up; the session is
// finalized with whatever transcript exists.
func (c *Controller) pumpEvents(ctx context.Context) {
	for ev := range c.handle.Events() {
		switch ev.Kind {
		case live.EventAudio:
			c.scheduler.Enqueue(pcm.Buffer{Data: ev.Audio, SampleRate: pcm.PlaybackRate})
		case live.EventTranscript:
			c.log.Append(ev.Role, ev.Text, time.Now())
		case live.EventInterrupted:
			// Candidate barge-in: silence the queued reply immediately.
			c.scheduler.Interrupt()
		case live.EventTurnComplete:
		}
	}

	if c.State() == StateLive {
		if err := c.handle.Err(); err != nil {
			slog.Warn("session: realtime channel failed", "err", err)
		}
		c.finalize(context.WithoutCancel(ctx), TriggerChannel)
	}
}

// finalize freezes the conversation, scores it, and delivers the result.
// Exactly one trigger wins; all later calls are no-ops. Evaluation failures
// are terminal for the session but recoverable for the caller: the candidate
// can be offered a retry because nothing was delivered.
func (c *Controller) finalize(ctx context.Context, trigger string) {
	if !c.finalizing.CompareAndSwap(false, true) {
		return
	}

	c.mu.Lock()
	c.trigger = trigger
	c.mu.Unlock()

	slog.Info("session: finalizing", "trigger", trigger, "candidate", c.cfg.Profile.Email)
	c.setState(StateEvaluating)
	c.countdown.Stop()
	c.scheduler.Interrupt()

	lines := c.log.Freeze()

	// Close the channel first so no further events race the frozen log.
	if err := c.handle.Close(); err != nil {
		slog.Debug("session: channel close failed", "err", err)
	}

	if len(lines) < 2 {
		c.fail(ErrInsufficientTranscript)
		return
	}

	result, err := c.cfg.Scorer.Score(ctx, lines)
	if err != nil {
		c.fail(fmt.Errorf("session: evaluate: %w", err))
		return
	}

	c.mu.Lock()
	c.result = result
	c.mu.Unlock()

	if c.cfg.Relay != nil {
		// Delivery failure does not invalidate the evaluation. The result
		// still reaches the candidate through the results view.
		if err := c.cfg.Relay.Deliver(ctx, c.cfg.Profile, result, lines); err != nil {
			slog.Warn("session: relay delivery failed", "err", err)
		}
	}

	c.setState(StateComplete)
	c.termOnce.Do(func() { close(c.terminal) })
}

// fail records the terminal error and moves to StateFailed.
func (c *Controller) fail(err error) {
	c.mu.Lock()
	if c.endErr == nil {
		c.endErr = err
	}
	c.mu.Unlock()

	c.setState(StateFailed)
	c.termOnce.Do(func() { close(c.terminal) })
}

func (c *Controller) endError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.endErr
}

// teardown releases every resource the session holds. Safe to call from any
// exit path; only the first call acts.
func (c *Controller) teardown() {
	c.teardownOnce.Do(func() {
		if c.countdown != nil {
			c.countdown.Stop()
		}
		c.mu.Lock()
		handle := c.handle
		scheduler := c.scheduler
		log := c.log
		c.mu.Unlock()

		if log != nil {
			log.Freeze()
		}
		if handle != nil {
			_ = handle.Close()
		}
		if scheduler != nil {
			scheduler.Interrupt()
			_ = scheduler.Close()
		}
		_ = c.cfg.Source.Close()

		c.wg.Wait()
		slog.Debug("session: torn down", "state", c.State())
	})
}

// setState records and publishes a state transition.
func (c *Controller) setState(s State) {
	c.state.Store(int32(s))
	if c.cfg.Hooks.OnStateChange != nil {
		c.cfg.Hooks.OnStateChange(s)
	}
}
