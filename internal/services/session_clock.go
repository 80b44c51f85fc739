package services

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// SessionClock runs the two background timers of an authenticated session:
// a refresh timer that fires shortly before credential expiry and a poll
// timer that periodically re-validates the server-side session record.
// Each timer reschedules itself after a successful callback and stops
// otherwise. Stop cancels both synchronously; a callback that raced past
// cancellation discovers the stale epoch and becomes a no-op.
type SessionClock struct {
	margin       time.Duration
	floor        time.Duration
	pollInterval time.Duration
	log          *slog.Logger

	// onRefresh performs a token refresh and returns the next delay; false
	// stops the refresh timer (state has already been cleared).
	onRefresh func(ctx context.Context) (time.Duration, bool)
	// onPoll checks the session; false stops the poll timer.
	onPoll func(ctx context.Context) bool

	mu           sync.Mutex
	epoch        uint64
	refreshTimer *time.Timer
	pollTimer    *time.Timer
}

// NewSessionClock creates a stopped clock.
func NewSessionClock(
	margin, floor, pollInterval time.Duration,
	log *slog.Logger,
	onRefresh func(ctx context.Context) (time.Duration, bool),
	onPoll func(ctx context.Context) bool,
) *SessionClock {
	if log == nil {
		log = slog.Default()
	}
	return &SessionClock{
		margin:       margin,
		floor:        floor,
		pollInterval: pollInterval,
		log:          log,
		onRefresh:    onRefresh,
		onPoll:       onPoll,
	}
}

// RefreshDelay computes how long to wait before refreshing a credential
// that expires in expiresIn: margin ahead of expiry, but never sooner than
// the floor, so short-lived test credentials do not cause refresh storms.
func RefreshDelay(expiresIn, margin, floor time.Duration) time.Duration {
	if d := expiresIn - margin; d > floor {
		return d
	}
	return floor
}

// Start schedules both timers for a credential expiring in timeToExpiry.
// Any previous schedule is cancelled first.
func (c *SessionClock) Start(timeToExpiry time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
	c.epoch++
	epoch := c.epoch

	delay := RefreshDelay(timeToExpiry, c.margin, c.floor)
	c.refreshTimer = time.AfterFunc(delay, func() { c.fireRefresh(epoch) })
	c.pollTimer = time.AfterFunc(c.pollInterval, func() { c.firePoll(epoch) })
	c.log.Debug("session clock started",
		"refresh_in", delay.String(),
		"poll_interval", c.pollInterval.String(),
	)
}

// Stop cancels both timers. Safe to call repeatedly.
func (c *SessionClock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
	c.epoch++
}

func (c *SessionClock) stopLocked() {
	if c.refreshTimer != nil {
		c.refreshTimer.Stop()
		c.refreshTimer = nil
	}
	if c.pollTimer != nil {
		c.pollTimer.Stop()
		c.pollTimer = nil
	}
}

func (c *SessionClock) live(epoch uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return epoch == c.epoch
}

func (c *SessionClock) fireRefresh(epoch uint64) {
	if !c.live(epoch) {
		return
	}
	delay, ok := c.onRefresh(context.Background())
	if !ok {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if epoch != c.epoch {
		return
	}
	c.refreshTimer = time.AfterFunc(delay, func() { c.fireRefresh(epoch) })
}

func (c *SessionClock) firePoll(epoch uint64) {
	if !c.live(epoch) {
		return
	}
	if !c.onPoll(context.Background()) {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if epoch != c.epoch {
		return
	}
	c.pollTimer = time.AfterFunc(c.pollInterval, func() { c.firePoll(epoch) })
}
