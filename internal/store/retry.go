package store

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/preston-bernstein/gaffer-service/internal/domain/players"
	"github.com/preston-bernstein/gaffer-service/internal/domain/squads"
	"github.com/preston-bernstein/gaffer-service/internal/logging"
	"github.com/preston-bernstein/gaffer-service/internal/metrics"
)

const (
	defaultRetryAttempts = 2
	defaultBackoff       = 200 * time.Millisecond
)

// Operation names used in logs and metrics.
const (
	OpEnsureSquad    = "ensure_squad"
	OpGetSquad       = "get_squad"
	OpSetLicensed    = "set_licensed"
	OpPlayers        = "players"
	OpReplacePlayers = "replace_players"
	OpListSquads     = "list_squads"
	OpPurgeRoster    = "purge_roster"
)

type backoffFunc func(attempt int) time.Duration

// retryingStore wraps a Store, retrying failed calls with linear backoff and
// recording every attempt. ErrNotFound and context errors are returned at once.
type retryingStore struct {
	inner       Store
	logger      *slog.Logger
	metrics     *metrics.Recorder
	maxAttempts int
	backoffFn   backoffFunc
}

// NewRetrying wraps the given store with retries. If maxAttempts/backoff are <= 0, defaults are used.
func NewRetrying(inner Store, logger *slog.Logger, recorder *metrics.Recorder, maxAttempts int, backoff time.Duration) Store {
	if maxAttempts <= 0 {
		maxAttempts = defaultRetryAttempts
	}
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	return &retryingStore{
		inner:       inner,
		logger:      logger,
		metrics:     recorder,
		maxAttempts: maxAttempts,
		backoffFn: func(attempt int) time.Duration {
			return time.Duration(attempt) * backoff
		},
	}
}

func (r *retryingStore) EnsureSquad(ctx context.Context, squadID string, now time.Time) (squads.Metadata, error) {
	var out squads.Metadata
	err := r.do(ctx, OpEnsureSquad, squadID, func() error {
		var err error
		out, err = r.inner.EnsureSquad(ctx, squadID, now)
		return err
	})
	return out, err
}

func (r *retryingStore) GetSquad(ctx context.Context, squadID string) (squads.Metadata, error) {
	var out squads.Metadata
	err := r.do(ctx, OpGetSquad, squadID, func() error {
		var err error
		out, err = r.inner.GetSquad(ctx, squadID)
		return err
	})
	return out, err
}

func (r *retryingStore) SetLicensed(ctx context.Context, squadID string) error {
	return r.do(ctx, OpSetLicensed, squadID, func() error {
		return r.inner.SetLicensed(ctx, squadID)
	})
}

func (r *retryingStore) Players(ctx context.Context, squadID string) ([]players.Player, error) {
	var out []players.Player
	err := r.do(ctx, OpPlayers, squadID, func() error {
		var err error
		out, err = r.inner.Players(ctx, squadID)
		return err
	})
	return out, err
}

func (r *retryingStore) ReplacePlayers(ctx context.Context, squadID string, list []players.Player) error {
	return r.do(ctx, OpReplacePlayers, squadID, func() error {
		return r.inner.ReplacePlayers(ctx, squadID, list)
	})
}

func (r *retryingStore) ListSquads(ctx context.Context) ([]squads.Metadata, error) {
	var out []squads.Metadata
	err := r.do(ctx, OpListSquads, "", func() error {
		var err error
		out, err = r.inner.ListSquads(ctx)
		return err
	})
	return out, err
}

func (r *retryingStore) PurgeRoster(ctx context.Context, squadID string, createdBy, seenBefore time.Time) (bool, error) {
	var purged bool
	err := r.do(ctx, OpPurgeRoster, squadID, func() error {
		var err error
		purged, err = r.inner.PurgeRoster(ctx, squadID, createdBy, seenBefore)
		return err
	})
	return purged, err
}

func (r *retryingStore) Ping(ctx context.Context) error {
	return r.inner.Ping(ctx)
}

func (r *retryingStore) Close() error {
	return r.inner.Close()
}

func (r *retryingStore) do(ctx context.Context, op, squadID string, fn func() error) error {
	var lastErr error

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		start := time.Now()
		err := fn()
		r.metrics.RecordStoreOp(op, time.Since(start), err)
		if err == nil {
			return nil
		}
		lastErr = err

		if !retryable(err) || attempt == r.maxAttempts {
			break
		}

		r.logWarn(ctx, "store call retry",
			logging.FieldOperation, op,
			logging.FieldSquadID, squadID,
			"attempt", attempt,
			"max_attempts", r.maxAttempts,
			"err", err,
		)

		delay := r.backoffFn(attempt)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	if retryable(lastErr) {
		r.logWarn(ctx, "store call failed", logging.FieldOperation, op, logging.FieldSquadID, squadID, "attempts", r.maxAttempts, "err", lastErr)
	}
	return lastErr
}

func retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrUnavailable):
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}

func (r *retryingStore) logWarn(ctx context.Context, msg string, args ...any) {
	logging.Warn(logging.FromContext(ctx, r.logger), msg, args...)
}
