// Package clock supplies current time in either real-time or
// externally-set simulated mode, so paper runs and live runs share
// one time source.
package clock

import (
	"errors"
	"sync"
	"time"
)

// Mode selects where the clock reads time from.
type Mode string

const (
	ModeLive      Mode = "live"
	ModeSimulated Mode = "simulated"
)

// ErrTimeNotSet is returned when the simulated clock is read before
// SetTime has been called.
var ErrTimeNotSet = errors.New("clock: simulated time not set")

// Clock is a mode-switched time source.
type Clock struct {
	mu        sync.RWMutex
	mode      Mode
	simulated time.Time
}

// New creates a clock in the given mode.
func New(mode Mode) *Clock {
	return &Clock{mode: mode}
}

// Mode returns the clock's mode.
func (c *Clock) Mode() Mode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mode
}

// Now returns the current time. In simulated mode it returns the last
// time set via SetTime.
func (c *Clock) Now() (time.Time, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.mode == ModeSimulated {
		if c.simulated.IsZero() {
			return time.Time{}, ErrTimeNotSet
		}
		return c.simulated, nil
	}
	return time.Now().UTC(), nil
}

// NowMs returns the current time as unix milliseconds.
func (c *Clock) NowMs() (int64, error) {
	t, err := c.Now()
	if err != nil {
		return 0, err
	}
	return t.UnixMilli(), nil
}

// SetTime advances the simulated clock. Ignored in live mode.
func (c *Clock) SetTime(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mode != ModeSimulated {
		return
	}
	c.simulated = t.UTC()
}
