package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/preston-bernstein/gaffer-service/internal/domain/players"
	"github.com/preston-bernstein/gaffer-service/internal/domain/squads"
)

// MemoryStore keeps squads and rosters in memory. Safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	squads  map[string]squads.Metadata
	rosters map[string][]players.Player
	closed  bool
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		squads:  make(map[string]squads.Metadata),
		rosters: make(map[string][]players.Player),
	}
}

func (s *MemoryStore) EnsureSquad(ctx context.Context, squadID string, now time.Time) (squads.Metadata, error) {
	if err := ctx.Err(); err != nil {
		return squads.Metadata{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return squads.Metadata{}, ErrUnavailable
	}

	now = now.Truncate(time.Millisecond)
	if m, ok := s.squads[squadID]; ok {
		if now.After(m.LastSeenAt) {
			m.LastSeenAt = now.UTC()
			s.squads[squadID] = m
		}
		return m, nil
	}
	m := squads.New(squadID, now)
	s.squads[squadID] = m
	return m, nil
}

func (s *MemoryStore) GetSquad(ctx context.Context, squadID string) (squads.Metadata, error) {
	if err := ctx.Err(); err != nil {
		return squads.Metadata{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return squads.Metadata{}, ErrUnavailable
	}

	m, ok := s.squads[squadID]
	if !ok {
		return squads.Metadata{}, ErrNotFound
	}
	return m, nil
}

func (s *MemoryStore) SetLicensed(ctx context.Context, squadID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrUnavailable
	}

	m, ok := s.squads[squadID]
	if !ok {
		return ErrNotFound
	}
	m.IsLicensed = true
	s.squads[squadID] = m
	return nil
}

// Players returns a copy of the stored roster.
func (s *MemoryStore) Players(ctx context.Context, squadID string) ([]players.Player, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrUnavailable
	}

	out := players.Clone(s.rosters[squadID])
	if out == nil {
		out = []players.Player{}
	}
	return out, nil
}

// ReplacePlayers swaps the roster with a copy of list.
func (s *MemoryStore) ReplacePlayers(ctx context.Context, squadID string, list []players.Player) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrUnavailable
	}

	if len(list) == 0 {
		delete(s.rosters, squadID)
		return nil
	}
	s.rosters[squadID] = players.Clone(list)
	return nil
}

// ListSquads returns the records ordered by creation time.
func (s *MemoryStore) ListSquads(ctx context.Context) ([]squads.Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrUnavailable
	}

	out := make([]squads.Metadata, 0, len(s.squads))
	for _, m := range s.squads {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].SquadID < out[j].SquadID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) PurgeRoster(ctx context.Context, squadID string, createdBy, seenBefore time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrUnavailable
	}

	m, ok := s.squads[squadID]
	if !ok || m.IsLicensed || m.CreatedAt.After(createdBy) || !m.LastSeen().Before(seenBefore) {
		return false, nil
	}
	if len(s.rosters[squadID]) == 0 {
		return false, nil
	}
	delete(s.rosters, squadID)
	return true, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrUnavailable
	}
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
