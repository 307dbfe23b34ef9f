package metrics

import (
	"sync"
	"time"
)

type opStats struct {
	calls           int
	errors          int
	lastCallLatency time.Duration
}

// Recorder captures in-memory counters for store operations and forwards
// everything to OpenTelemetry instruments when they are configured.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	mu       sync.Mutex
	stats    map[string]*opStats
	balances int
	rejected int
	swept    int
	otel     *otelInstruments
}

func NewRecorder() *Recorder {
	return newRecorder(nil)
}

func newRecorder(otel *otelInstruments) *Recorder {
	return &Recorder{
		stats: make(map[string]*opStats),
		otel:  otel,
	}
}

// RecordStoreOp counts one attempt of a store operation and its latency.
func (r *Recorder) RecordStoreOp(op string, duration time.Duration, err error) {
	if r == nil {
		return
	}

	r.mu.Lock()
	stats, ok := r.stats[op]
	if !ok {
		stats = &opStats{}
		r.stats[op] = stats
	}
	stats.calls++
	stats.lastCallLatency = duration
	if err != nil {
		stats.errors++
	}
	r.mu.Unlock()

	if r.otel != nil {
		r.otel.recordStoreOp(op, duration, err)
	}
}

// RecordBalance counts a balance request. ok is false when the selection
// was too small to split.
func (r *Recorder) RecordBalance(selected int, duration time.Duration, ok bool) {
	if r == nil {
		return
	}
	r.mu.Lock()
	if ok {
		r.balances++
	} else {
		r.rejected++
	}
	r.mu.Unlock()

	if r.otel != nil {
		r.otel.recordBalance(selected, duration, ok)
	}
}

// RecordSweep tracks one retention sweep and how many squads it removed.
func (r *Recorder) RecordSweep(removed int, duration time.Duration, err error) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.swept += removed
	r.mu.Unlock()

	if r.otel != nil {
		r.otel.recordSweep(removed, duration, err)
	}
}

// RecordFeedSubscribers adjusts the live websocket subscriber gauge by delta.
func (r *Recorder) RecordFeedSubscribers(delta int) {
	if r == nil || r.otel == nil {
		return
	}
	r.otel.recordFeedSubscribers(delta)
}

// RecordHTTPRequest tracks basic HTTP metrics.
func (r *Recorder) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if r == nil || r.otel == nil {
		return
	}
	r.otel.recordHTTPRequest(method, path, status, duration)
}

// Snapshot is a copy of the counters recorded for one store operation.
type Snapshot struct {
	Calls           int
	Errors          int
	LastCallLatency time.Duration
}

func (r *Recorder) Snapshot(op string) Snapshot {
	if r == nil {
		return Snapshot{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	stats, ok := r.stats[op]
	if !ok || stats == nil {
		return Snapshot{}
	}
	return Snapshot{
		Calls:           stats.calls,
		Errors:          stats.errors,
		LastCallLatency: stats.lastCallLatency,
	}
}

// StoreCalls returns the attempts recorded for op.
func (r *Recorder) StoreCalls(op string) int {
	return r.Snapshot(op).Calls
}

// StoreErrors returns the failed attempts recorded for op.
func (r *Recorder) StoreErrors(op string) int {
	return r.Snapshot(op).Errors
}

// Balances returns the successful and rejected balance counts.
func (r *Recorder) Balances() (ok, rejected int) {
	if r == nil {
		return 0, 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.balances, r.rejected
}

// SweptSquads returns the total number of squads removed by sweeps.
func (r *Recorder) SweptSquads() int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.swept
}
