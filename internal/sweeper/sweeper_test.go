package sweeper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

type stubTarget struct {
	mu        sync.Mutex
	calls     int
	removed   int
	err       error
	lastNow   time.Time
	retention time.Duration
	notify    chan struct{}
}

func (s *stubTarget) Sweep(ctx context.Context, now time.Time, retention time.Duration) (int, error) {
	s.mu.Lock()
	s.calls++
	s.lastNow = now
	s.retention = retention
	removed, err := s.removed, s.err
	notify := s.notify
	s.mu.Unlock()
	if notify != nil {
		select {
		case notify <- struct{}{}:
		default:
		}
	}
	return removed, err
}

func TestNewRequiresTarget(t *testing.T) {
	if _, err := New(nil, Config{}); err == nil {
		t.Fatalf("expected error for nil target")
	}
}

func TestNewAppliesDefaults(t *testing.T) {
	s, err := New(&stubTarget{}, Config{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if s.interval != DefaultInterval || s.retention != DefaultRetention {
		t.Fatalf("expected defaults, got %s/%s", s.interval, s.retention)
	}
}

func TestRunOnceUsesClockAndRetention(t *testing.T) {
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	target := &stubTarget{removed: 3}
	s, err := New(target, Config{Retention: 48 * time.Hour}, WithClock(clockwork.NewFakeClockAt(now)))
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	removed, err := s.RunOnce(context.Background())
	if err != nil || removed != 3 {
		t.Fatalf("expected 3 removed, got %d (%v)", removed, err)
	}
	if !target.lastNow.Equal(now) || target.retention != 48*time.Hour {
		t.Fatalf("unexpected sweep args %s %s", target.lastNow, target.retention)
	}
	st := s.Status()
	if st.Runs != 1 || st.LastRemoved != 3 || !st.LastSuccess.Equal(now) || st.ConsecutiveFailures != 0 {
		t.Fatalf("unexpected status %+v", st)
	}
}

func TestRunOnceRecordsFailures(t *testing.T) {
	target := &stubTarget{err: errors.New("store down")}
	s, _ := New(target, Config{})

	_, _ = s.RunOnce(context.Background())
	if _, err := s.RunOnce(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	st := s.Status()
	if st.ConsecutiveFailures != 2 || st.LastError != "store down" || !st.LastSuccess.IsZero() {
		t.Fatalf("unexpected status %+v", st)
	}

	target.mu.Lock()
	target.err = nil
	target.mu.Unlock()
	_, _ = s.RunOnce(context.Background())
	if st := s.Status(); st.ConsecutiveFailures != 0 || st.LastError != "" {
		t.Fatalf("expected failures reset, got %+v", st)
	}
}

func TestStartRunsImmediatelyAndStops(t *testing.T) {
	target := &stubTarget{notify: make(chan struct{}, 1)}
	s, err := New(target, Config{Interval: time.Hour, RunOnStart: true})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Start(ctx); err != nil {
		t.Fatalf("second start: %v", err)
	}
	select {
	case <-target.notify:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for initial sweep")
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()
	if err := s.Stop(stopCtx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := s.Stop(stopCtx); err != nil {
		t.Fatalf("second stop: %v", err)
	}
}

func TestStartAfterStopSchedulesAgain(t *testing.T) {
	target := &stubTarget{notify: make(chan struct{}, 1)}
	s, err := New(target, Config{Interval: time.Hour, RunOnStart: true})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for round := 1; round <= 2; round++ {
		if err := s.Start(ctx); err != nil {
			t.Fatalf("start %d: %v", round, err)
		}
		select {
		case <-target.notify:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for sweep after start %d", round)
		}
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := s.Stop(stopCtx)
		stopCancel()
		if err != nil {
			t.Fatalf("stop %d: %v", round, err)
		}
	}
	if st := s.Status(); st.Runs != 2 {
		t.Fatalf("expected one sweep per start, got %+v", st)
	}
}
