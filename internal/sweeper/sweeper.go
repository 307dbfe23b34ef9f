// Package sweeper periodically clears the rosters of lapsed trial squads.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"

	"github.com/preston-bernstein/gaffer-service/internal/logging"
)

const (
	DefaultInterval  = 24 * time.Hour
	DefaultRetention = 30 * 24 * time.Hour
)

// Target clears squads left idle for longer than retention and reports how many it cleared.
type Target interface {
	Sweep(ctx context.Context, now time.Time, retention time.Duration) (int, error)
}

// Config controls the sweep schedule.
type Config struct {
	Interval  time.Duration
	Retention time.Duration
	// RunOnStart runs a sweep as soon as the scheduler starts.
	RunOnStart bool
}

// Status describes the recent sweeps.
type Status struct {
	Runs                int
	ConsecutiveFailures int
	LastRemoved         int
	LastError           string
	LastRun             time.Time
	LastSuccess         time.Time
}

// Sweeper runs Target.Sweep on a gocron schedule.
type Sweeper struct {
	target    Target
	logger    *slog.Logger
	clock     clockwork.Clock
	interval  time.Duration
	retention time.Duration
	onStart   bool

	scheduler gocron.Scheduler
	startMu   sync.Mutex
	started   bool

	statusMu sync.RWMutex
	status   Status
}

// Option configures a Sweeper.
type Option func(*Sweeper)

func WithLogger(l *slog.Logger) Option {
	return func(s *Sweeper) { s.logger = l }
}

// WithClock drives both the scheduler and the sweep cutoff from c.
func WithClock(c clockwork.Clock) Option {
	return func(s *Sweeper) { s.clock = c }
}

// New builds a Sweeper. Zero durations fall back to the defaults.
func New(target Target, cfg Config, opts ...Option) (*Sweeper, error) {
	if target == nil {
		return nil, errors.New("sweeper target is required")
	}
	s := &Sweeper{
		target:    target,
		clock:     clockwork.NewRealClock(),
		interval:  cfg.Interval,
		retention: cfg.Retention,
		onStart:   cfg.RunOnStart,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.interval <= 0 {
		s.interval = DefaultInterval
	}
	if s.retention <= 0 {
		s.retention = DefaultRetention
	}

	return s, nil
}

// Start registers the sweep job on a fresh scheduler and starts it. Sweeps
// run with ctx. A stopped Sweeper may be started again.
func (s *Sweeper) Start(ctx context.Context) error {
	s.startMu.Lock()
	defer s.startMu.Unlock()
	if s.started {
		return nil
	}

	scheduler, err := gocron.NewScheduler(gocron.WithClock(s.clock))
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}

	jobOpts := []gocron.JobOption{
		gocron.WithName("squad-retention-sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	}
	if s.onStart {
		jobOpts = append(jobOpts, gocron.WithStartAt(gocron.WithStartImmediately()))
	}
	_, err = scheduler.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func() { _, _ = s.RunOnce(ctx) }),
		jobOpts...,
	)
	if err != nil {
		_ = scheduler.Shutdown()
		return fmt.Errorf("schedule sweep: %w", err)
	}

	scheduler.Start()
	s.scheduler = scheduler
	s.started = true
	logging.Info(s.logger, "sweeper started",
		logging.FieldDurationMS, s.interval.Milliseconds(),
		"retention_hours", int(s.retention.Hours()),
	)
	return nil
}

// Stop shuts the scheduler down, waiting for a running sweep to finish.
func (s *Sweeper) Stop(ctx context.Context) error {
	s.startMu.Lock()
	defer s.startMu.Unlock()
	if !s.started {
		return nil
	}
	s.started = false

	done := make(chan error, 1)
	go func() { done <- s.scheduler.Shutdown() }()
	select {
	case err := <-done:
		logging.Info(s.logger, "sweeper stopped")
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce sweeps immediately.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	start := s.clock.Now()
	removed, err := s.target.Sweep(ctx, start, s.retention)
	s.record(start, removed, err)

	if err != nil {
		logging.Error(s.logger, "sweep failed", err,
			logging.FieldCount, removed,
			logging.FieldDurationMS, s.clock.Since(start).Milliseconds(),
		)
		return removed, err
	}
	logging.Info(s.logger, "sweep finished",
		logging.FieldCount, removed,
		logging.FieldDurationMS, s.clock.Since(start).Milliseconds(),
	)
	return removed, nil
}

// Status returns a snapshot of recent sweeps.
func (s *Sweeper) Status() Status {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	return s.status
}

func (s *Sweeper) record(at time.Time, removed int, err error) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	s.status.Runs++
	s.status.LastRun = at
	s.status.LastRemoved = removed
	if err != nil {
		s.status.ConsecutiveFailures++
		s.status.LastError = err.Error()
		return
	}
	s.status.ConsecutiveFailures = 0
	s.status.LastError = ""
	s.status.LastSuccess = at
}
