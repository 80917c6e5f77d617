package session

import (
	"sync"
	"time"
)

// Default countdown parameters.
const (
	// DefaultDuration is the fixed length of an interview.
	DefaultDuration = 480 * time.Second

	defaultTick = 1 * time.Second
)

// Countdown is a fixed-length interview timer. It ticks down once per
// interval, invoking OnTick with the remaining time so the UI can render the
// clock, and fires OnExpire exactly once when the time is up.
//
// Stopping the countdown before expiry (candidate ended the interview early)
// suppresses OnExpire.
//
// All methods are safe for concurrent use.
type Countdown struct {
	total  time.Duration
	tick   time.Duration
	onTick func(remaining time.Duration)
	expire func()

	mu       sync.Mutex
	deadline time.Time
	started  bool

	done     chan struct{}
	expired  chan struct{}
	stopOnce sync.Once
}

// CountdownConfig configures a [Countdown].
type CountdownConfig struct {
	// Total is the countdown length. Defaults to [DefaultDuration] if zero.
	Total time.Duration

	// Tick is the interval between OnTick callbacks. Defaults to 1s if zero.
	// Tests shrink this to keep runs fast.
	Tick time.Duration

	// OnTick is called after each interval with the time remaining,
	// clamped to zero. May be nil.
	OnTick func(remaining time.Duration)

	// OnExpire is called exactly once when the countdown reaches zero.
	// It is never called after Stop. May be nil.
	OnExpire func()
}

// NewCountdown creates a [Countdown] with the given configuration.
// The timer does not run until [Countdown.Start] is called.
func NewCountdown(cfg CountdownConfig) *Countdown {
	total := cfg.Total
	if total <= 0 {
		total = DefaultDuration
	}
	tick := cfg.Tick
	if tick <= 0 {
		tick = defaultTick
	}
	return &Countdown{
		total:   total,
		tick:    tick,
		onTick:  cfg.OnTick,
		expire:  cfg.OnExpire,
		done:    make(chan struct{}),
		expired: make(chan struct{}),
	}
}

// Start begins the countdown in a background goroutine. Subsequent calls are
// no-ops; the deadline is fixed by the first call.
func (c *Countdown) Start() {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.deadline = time.Now().Add(c.total)
	c.mu.Unlock()

	go c.run()
}

// Remaining returns the time left on the clock, clamped to zero.
// Before Start it returns the full countdown length.
func (c *Countdown) Remaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started {
		return c.total
	}
	remaining := time.Until(c.deadline)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Expired returns a channel that is closed when the countdown reaches zero.
// It is never closed if the countdown is stopped first.
func (c *Countdown) Expired() <-chan struct{} {
	return c.expired
}

// Stop halts the countdown without firing OnExpire. Safe to call multiple
// times, including after expiry.
func (c *Countdown) Stop() {
	c.stopOnce.Do(func() {
		close(c.done)
	})
}

func (c *Countdown) run() {
	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			remaining := c.Remaining()
			if c.onTick != nil {
				c.onTick(remaining)
			}
			if remaining > 0 {
				continue
			}

			// Expiry races with Stop; the candidate hanging up in the
			// final second must not trigger a second finalization.
			select {
			case <-c.done:
			default:
				close(c.expired)
				if c.expire != nil {
					c.expire()
				}
			}
			return
		}
	}
}
