package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/LukaszDygon/sbcw-kiro-sub000/domain"
	"github.com/LukaszDygon/sbcw-kiro-sub000/internal/obs"
)

// IdleConfig carries the inactivity and warning parameters.
type IdleConfig struct {
	// CheckInterval is how often idle time and expiry proximity are
	// recomputed.
	CheckInterval time.Duration
	// AutoLogoutAfter is the inactivity span after which the user is
	// signed out.
	AutoLogoutAfter time.Duration
	// WarningThreshold is how close to token expiry the countdown
	// becomes visible.
	WarningThreshold time.Duration
}

func (c IdleConfig) withDefaults() IdleConfig {
	if c.CheckInterval <= 0 {
		c.CheckInterval = 30 * time.Second
	}
	if c.AutoLogoutAfter <= 0 {
		c.AutoLogoutAfter = 30 * time.Minute
	}
	if c.WarningThreshold <= 0 {
		c.WarningThreshold = 5 * time.Minute
	}
	return c
}

// WarningFunc receives the remaining lifetime once per second while the
// expiry warning is visible, and a final zero-duration call when the
// warning clears.
type WarningFunc func(remaining time.Duration)

// IdleMonitor tracks user activity and token lifetime. It signs the user
// out after sustained inactivity and drives a display countdown when the
// access token is close to expiring. The countdown itself never signs
// anyone out; expiry enforcement belongs to the auth controller's timers.
type IdleMonitor struct {
	auth    domain.AuthService
	cfg     IdleConfig
	log     *slog.Logger
	metrics *obs.Metrics
	now     func() time.Time
	onWarn  WarningFunc

	mu           sync.Mutex
	lastActivity time.Time
	running      bool
	warning      bool
	stop         chan struct{}
	done         chan struct{}
	countdownEnd chan struct{}
}

// IdleOption configures the monitor.
type IdleOption func(*IdleMonitor)

// WithIdleClock overrides the time source (useful for tests).
func WithIdleClock(fn func() time.Time) IdleOption {
	return func(m *IdleMonitor) {
		if fn != nil {
			m.now = fn
		}
	}
}

// WithIdleMetrics attaches lifecycle counters.
func WithIdleMetrics(metrics *obs.Metrics) IdleOption {
	return func(m *IdleMonitor) { m.metrics = metrics }
}

// WithWarning installs the countdown display callback.
func WithWarning(fn WarningFunc) IdleOption {
	return func(m *IdleMonitor) { m.onWarn = fn }
}

// NewIdleMonitor creates a monitor bound to the given controller.
func NewIdleMonitor(auth domain.AuthService, cfg IdleConfig, log *slog.Logger, opts ...IdleOption) *IdleMonitor {
	if log == nil {
		log = slog.Default()
	}
	m := &IdleMonitor{
		auth: auth,
		cfg:  cfg.withDefaults(),
		log:  log,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.lastActivity = m.now()
	return m
}

// RecordActivity marks the user as active now.
func (m *IdleMonitor) RecordActivity() {
	m.mu.Lock()
	m.lastActivity = m.now()
	m.mu.Unlock()
}

// IdleFor reports how long the user has been inactive.
func (m *IdleMonitor) IdleFor() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now().Sub(m.lastActivity)
}

// WarningActive reports whether the expiry countdown is currently visible.
func (m *IdleMonitor) WarningActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.warning
}

// Start launches the periodic evaluation loop. Calling Start on a running
// monitor is a no-op.
func (m *IdleMonitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.lastActivity = m.now()
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	stop, done := m.stop, m.done
	m.mu.Unlock()

	go m.run(ctx, stop, done)
}

// Stop halts the loop and any visible countdown. It returns once the loop
// goroutine has exited.
func (m *IdleMonitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	stop, done := m.stop, m.done
	m.mu.Unlock()

	close(stop)
	<-done
}

func (m *IdleMonitor) run(ctx context.Context, stop, done chan struct{}) {
	defer close(done)
	defer m.clearWarning()

	ticker := time.NewTicker(m.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.evaluate(ctx)
		}
	}
}

// Evaluate runs one idle/expiry check immediately, outside the ticker
// cadence. Tests and UI wakeup paths use it.
func (m *IdleMonitor) Evaluate(ctx context.Context) {
	m.evaluate(ctx)
}

func (m *IdleMonitor) evaluate(ctx context.Context) {
	if !m.auth.IsAuthenticated() {
		m.clearWarning()
		return
	}

	if idle := m.IdleFor(); idle >= m.cfg.AutoLogoutAfter {
		m.log.Info("signing out idle user", "idle", idle)
		m.clearWarning()
		m.metrics.ForcedLogout("idle")
		m.auth.ExpireSession(ctx)
		return
	}

	remaining := m.auth.TimeToExpiry()
	switch {
	case remaining <= 0:
		// The credential ran out before the refresh timer could act.
		// The recompute owns the zero boundary; the countdown only
		// displays.
		m.log.Info("access token expired, forcing sign-out")
		m.clearWarning()
		m.metrics.ForcedLogout("token_expired")
		m.auth.ExpireSession(ctx)
	case remaining <= m.cfg.WarningThreshold:
		m.startWarning()
	default:
		m.clearWarning()
	}
}

// ExtendSession is the "stay signed in" action on the warning dialog: it
// forces a token refresh, counts as activity and dismisses the countdown.
func (m *IdleMonitor) ExtendSession(ctx context.Context) error {
	if _, err := m.auth.ForceRefreshToken(ctx); err != nil {
		return err
	}
	m.RecordActivity()
	m.clearWarning()
	return nil
}

// LogoutNow is the "sign out" action on the warning dialog.
func (m *IdleMonitor) LogoutNow(ctx context.Context) error {
	m.clearWarning()
	return m.auth.Logout(ctx)
}

func (m *IdleMonitor) startWarning() {
	m.mu.Lock()
	if m.warning {
		m.mu.Unlock()
		return
	}
	m.warning = true
	end := make(chan struct{})
	m.countdownEnd = end
	m.mu.Unlock()

	m.log.Info("session expiry warning raised", "remaining", m.auth.TimeToExpiry())
	go m.countdown(end)
}

func (m *IdleMonitor) clearWarning() {
	m.mu.Lock()
	if !m.warning {
		m.mu.Unlock()
		return
	}
	m.warning = false
	end := m.countdownEnd
	m.countdownEnd = nil
	m.mu.Unlock()

	close(end)
	if m.onWarn != nil {
		m.onWarn(0)
	}
}

// countdown pushes a once-per-second remaining-time reading to the display
// callback. It only reports; a token that reaches zero here is handled by
// the controller's own refresh and poll timers.
func (m *IdleMonitor) countdown(end chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-end:
			return
		case <-ticker.C:
			remaining := m.auth.TimeToExpiry()
			if remaining < 0 {
				remaining = 0
			}
			if m.onWarn != nil {
				m.onWarn(remaining)
			}
		}
	}
}

var _ domain.ActivityRecorder = (*IdleMonitor)(nil)
