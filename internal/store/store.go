package store

import (
	"context"
	"errors"
	"time"

	"github.com/preston-bernstein/gaffer-service/internal/domain/players"
	"github.com/preston-bernstein/gaffer-service/internal/domain/squads"
)

// ErrNotFound is returned when a squad does not exist.
var ErrNotFound = errors.New("squad not found")

// ErrUnavailable is returned by a store that has been closed or never opened.
var ErrUnavailable = errors.New("store unavailable")

// Store persists squad metadata and rosters keyed by squad id.
type Store interface {
	// EnsureSquad creates an unlicensed record stamped now when none exists
	// and returns the stored record. An existing record is never re-created;
	// only its last-seen time moves forward.
	EnsureSquad(ctx context.Context, squadID string, now time.Time) (squads.Metadata, error)
	// GetSquad reads a record without side effects.
	GetSquad(ctx context.Context, squadID string) (squads.Metadata, error)
	// SetLicensed flips the licence flag on; repeated calls are no-ops.
	SetLicensed(ctx context.Context, squadID string) error
	// Players returns the roster in insertion order; empty for unknown squads.
	Players(ctx context.Context, squadID string) ([]players.Player, error)
	// ReplacePlayers overwrites the roster atomically.
	ReplacePlayers(ctx context.Context, squadID string, list []players.Player) error
	// ListSquads returns every squad record.
	ListSquads(ctx context.Context) ([]squads.Metadata, error)
	// PurgeRoster clears the roster of an unlicensed squad created no later
	// than createdBy and last seen before seenBefore, reporting whether any
	// players were removed. The checks and the delete are one atomic step and
	// the squad record is kept.
	PurgeRoster(ctx context.Context, squadID string, createdBy, seenBefore time.Time) (bool, error)
	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
	Close() error
}
