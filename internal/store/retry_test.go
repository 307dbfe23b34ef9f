package store

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/preston-bernstein/gaffer-service/internal/domain/players"
	"github.com/preston-bernstein/gaffer-service/internal/metrics"
)

// flakeyStore fails the first failures roster writes before delegating.
type flakeyStore struct {
	*MemoryStore
	failures int
	calls    int
	err      error
}

func (f *flakeyStore) ReplacePlayers(ctx context.Context, squadID string, list []players.Player) error {
	f.calls++
	if f.calls <= f.failures {
		if f.err != nil {
			return f.err
		}
		return errors.New("boom")
	}
	return f.MemoryStore.ReplacePlayers(ctx, squadID, list)
}

func (f *flakeyStore) SetLicensed(ctx context.Context, squadID string) error {
	f.calls++
	return f.MemoryStore.SetLicensed(ctx, squadID)
}

var roster = []players.Player{{ID: "p", Name: "P", Rating: 5, Position: players.Midfield}}

func TestRetryingStoreRetriesAndSucceeds(t *testing.T) {
	fs := &flakeyStore{MemoryStore: NewMemoryStore(), failures: 2}
	rec := metrics.NewRecorder()
	rs := NewRetrying(fs, slog.Default(), rec, 3, time.Millisecond)

	if err := rs.ReplacePlayers(context.Background(), "1", roster); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if fs.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", fs.calls)
	}
	if got := rec.StoreCalls(OpReplacePlayers); got != 3 {
		t.Fatalf("expected 3 recorded attempts, got %d", got)
	}
	if got := rec.StoreErrors(OpReplacePlayers); got != 2 {
		t.Fatalf("expected 2 recorded errors, got %d", got)
	}
	stored, _ := fs.Players(context.Background(), "1")
	if len(stored) != 1 {
		t.Fatalf("expected roster persisted, got %+v", stored)
	}
}

func TestRetryingStoreStopsAfterMaxAttempts(t *testing.T) {
	fs := &flakeyStore{MemoryStore: NewMemoryStore(), failures: 5}
	rs := NewRetrying(fs, nil, nil, 2, time.Millisecond)

	if err := rs.ReplacePlayers(context.Background(), "1", roster); err == nil {
		t.Fatal("expected error after retries")
	}
	if fs.calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", fs.calls)
	}
}

func TestRetryingStoreDoesNotRetryNotFound(t *testing.T) {
	fs := &flakeyStore{MemoryStore: NewMemoryStore()}
	rs := NewRetrying(fs, nil, nil, 3, time.Millisecond)

	if err := rs.SetLicensed(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if fs.calls != 1 {
		t.Fatalf("expected a single attempt, got %d", fs.calls)
	}
}

func TestRetryingStoreRespectsContextCancel(t *testing.T) {
	fs := &flakeyStore{MemoryStore: NewMemoryStore(), failures: 5}
	rs := NewRetrying(fs, nil, nil, 3, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := rs.ReplacePlayers(ctx, "1", roster); err == nil {
		t.Fatal("expected context error")
	}
	if fs.calls != 1 {
		t.Fatalf("expected 1 attempt before cancellation, got %d", fs.calls)
	}
}

func TestRetryingStoreUsesCustomBackoff(t *testing.T) {
	fs := &flakeyStore{MemoryStore: NewMemoryStore(), failures: 1}
	rs := NewRetrying(fs, nil, nil, 2, time.Hour).(*retryingStore)

	calls := 0
	rs.backoffFn = func(attempt int) time.Duration {
		calls++
		return 0
	}

	if err := rs.ReplacePlayers(context.Background(), "1", roster); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected custom backoff to be used once, got %d", calls)
	}
}

func TestNewRetryingDefaults(t *testing.T) {
	rs := NewRetrying(NewMemoryStore(), nil, nil, 0, 0).(*retryingStore)
	if rs.maxAttempts != defaultRetryAttempts {
		t.Fatalf("expected default attempts, got %d", rs.maxAttempts)
	}
	if got := rs.backoffFn(2); got != 2*defaultBackoff {
		t.Fatalf("expected linear default backoff, got %s", got)
	}
}
