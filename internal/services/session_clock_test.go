package services

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestRefreshDelay(t *testing.T) {
	margin := 5 * time.Minute
	floor := time.Minute

	tests := []struct {
		name      string
		expiresIn time.Duration
		want      time.Duration
	}{
		{"long lived token keeps the margin", time.Hour, 55 * time.Minute},
		{"exactly margin plus floor", 6 * time.Minute, time.Minute},
		{"short token hits the floor", 250 * time.Second, time.Minute},
		{"already expired hits the floor", -time.Minute, time.Minute},
		{"zero hits the floor", 0, time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RefreshDelay(tt.expiresIn, margin, floor); got != tt.want {
				t.Errorf("RefreshDelay(%v) = %v, want %v", tt.expiresIn, got, tt.want)
			}
		})
	}
}

func TestRefreshDelayMonotonic(t *testing.T) {
	margin := 5 * time.Minute
	floor := time.Minute

	prev := time.Duration(-1)
	for _, expiresIn := range []time.Duration{
		0, 30 * time.Second, floor, margin, margin + floor, 10 * time.Minute, time.Hour,
	} {
		got := RefreshDelay(expiresIn, margin, floor)
		if got < prev {
			t.Fatalf("RefreshDelay not monotonic: %v after %v", got, prev)
		}
		prev = got
	}
}

func TestSessionClockFiresRefresh(t *testing.T) {
	fired := make(chan struct{}, 1)
	clock := NewSessionClock(time.Millisecond, time.Millisecond, time.Hour, nil,
		func(ctx context.Context) (time.Duration, bool) {
			select {
			case fired <- struct{}{}:
			default:
			}
			return 0, false
		},
		func(ctx context.Context) bool { return true },
	)
	defer clock.Stop()

	clock.Start(5 * time.Millisecond)

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("refresh callback never fired")
	}
}

func TestSessionClockReschedulesPoll(t *testing.T) {
	var polls atomic.Int32
	clock := NewSessionClock(time.Hour, time.Hour, 5*time.Millisecond, nil,
		func(ctx context.Context) (time.Duration, bool) { return 0, false },
		func(ctx context.Context) bool {
			polls.Add(1)
			return true
		},
	)
	defer clock.Stop()

	clock.Start(2 * time.Hour)

	deadline := time.After(time.Second)
	for polls.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("expected repeated polls, got %d", polls.Load())
		case <-time.After(time.Millisecond):
		}
	}
}

func TestSessionClockStopPreventsFire(t *testing.T) {
	var fired atomic.Int32
	clock := NewSessionClock(time.Hour, 20*time.Millisecond, 20*time.Millisecond, nil,
		func(ctx context.Context) (time.Duration, bool) {
			fired.Add(1)
			return 0, false
		},
		func(ctx context.Context) bool {
			fired.Add(1)
			return true
		},
	)

	clock.Start(time.Hour)
	clock.Stop()

	time.Sleep(60 * time.Millisecond)
	if n := fired.Load(); n != 0 {
		t.Errorf("callbacks fired %d times after Stop", n)
	}
}

func TestSessionClockStartSupersedesPrevious(t *testing.T) {
	first := make(chan struct{}, 1)
	second := make(chan struct{}, 1)
	var armed atomic.Bool

	clock := NewSessionClock(time.Hour, 10*time.Millisecond, time.Hour, nil,
		func(ctx context.Context) (time.Duration, bool) {
			if armed.Load() {
				select {
				case second <- struct{}{}:
				default:
				}
			} else {
				select {
				case first <- struct{}{}:
				default:
				}
			}
			return 0, false
		},
		func(ctx context.Context) bool { return true },
	)
	defer clock.Stop()

	clock.Start(time.Hour)
	armed.Store(true)
	clock.Start(15 * time.Millisecond)

	select {
	case <-second:
	case <-first:
		t.Fatal("stale timer from the first Start fired")
	case <-time.After(time.Second):
		t.Fatal("restarted timer never fired")
	}
}

func TestSessionClockCallbackFalseStopsRescheduling(t *testing.T) {
	var polls atomic.Int32
	clock := NewSessionClock(time.Hour, time.Hour, 5*time.Millisecond, nil,
		func(ctx context.Context) (time.Duration, bool) { return 0, false },
		func(ctx context.Context) bool {
			polls.Add(1)
			return false
		},
	)
	defer clock.Stop()

	clock.Start(2 * time.Hour)
	time.Sleep(50 * time.Millisecond)

	if n := polls.Load(); n != 1 {
		t.Errorf("poll ran %d times, want exactly 1", n)
	}
}
