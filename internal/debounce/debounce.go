// Package debounce runs a callback with the latest scheduled value once no
// new value has arrived for a fixed delay.
package debounce

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultDelay is the quiet period before a scheduled value is delivered.
const DefaultDelay = time.Second

type config struct {
	clock clockwork.Clock
	ctx   context.Context
}

// Option configures a Debouncer.
type Option func(*config)

// WithClock replaces the real clock, typically with a fake one in tests.
func WithClock(c clockwork.Clock) Option {
	return func(cfg *config) { cfg.clock = c }
}

// WithContext sets the context handed to callbacks fired by the timer.
func WithContext(ctx context.Context) Option {
	return func(cfg *config) { cfg.ctx = ctx }
}

// Debouncer delivers only the last value scheduled within a delay window.
// Deliveries never overlap and always carry the newest value taken.
type Debouncer[T any] struct {
	delay time.Duration
	fn    func(context.Context, T)
	clock clockwork.Clock
	ctx   context.Context

	run sync.Mutex // held while fn executes

	mu      sync.Mutex
	timer   clockwork.Timer
	value   T
	pending bool
	gen     uint64
	stopped bool
}

// New returns a Debouncer calling fn after delay (DefaultDelay when <= 0).
func New[T any](delay time.Duration, fn func(context.Context, T), opts ...Option) *Debouncer[T] {
	cfg := config{clock: clockwork.NewRealClock(), ctx: context.Background()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Debouncer[T]{delay: delay, fn: fn, clock: cfg.clock, ctx: cfg.ctx}
}

// Schedule replaces any pending value with v and restarts the delay.
// It returns false once the Debouncer has been stopped.
func (d *Debouncer[T]) Schedule(v T) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return false
	}

	d.value = v
	d.pending = true
	d.gen++
	gen := d.gen
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = d.clock.AfterFunc(d.delay, func() { d.fire(gen) })
	return true
}

// Flush delivers the pending value now, on the calling goroutine.
// It reports whether there was anything to deliver.
func (d *Debouncer[T]) Flush(ctx context.Context) bool {
	d.run.Lock()
	defer d.run.Unlock()

	v, ok := d.take(0)
	if !ok {
		return false
	}
	d.fn(ctx, v)
	return true
}

// Cancel drops the pending value without delivering it.
func (d *Debouncer[T]) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clear()
}

// Stop refuses further values and flushes the pending one.
func (d *Debouncer[T]) Stop(ctx context.Context) {
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()
	d.Flush(ctx)
}

// Pending reports whether a value is waiting to be delivered.
func (d *Debouncer[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

func (d *Debouncer[T]) fire(gen uint64) {
	d.run.Lock()
	defer d.run.Unlock()

	v, ok := d.take(gen)
	if !ok {
		return
	}
	d.fn(d.ctx, v)
}

// take claims the pending value. A non-zero gen only matches the schedule
// that armed the firing timer.
func (d *Debouncer[T]) take(gen uint64) (T, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var zero T
	if !d.pending || (gen != 0 && gen != d.gen) {
		return zero, false
	}
	v := d.value
	d.clear()
	return v, true
}

func (d *Debouncer[T]) clear() {
	var zero T
	d.value = zero
	d.pending = false
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
