package teststubs

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/preston-bernstein/gaffer-service/internal/domain/players"
	"github.com/preston-bernstein/gaffer-service/internal/domain/squads"
	"github.com/preston-bernstein/gaffer-service/internal/store"
)

// StubGateway is an in-memory test double for session.Gateway.
type StubGateway struct {
	mu sync.Mutex

	StatusValue squads.Status
	Roster      []players.Player
	StatusErr   error
	PlayersErr  error
	PurchaseErr error
	// ReplaceErrs are returned by successive ReplacePlayers calls, one per call.
	ReplaceErrs []error

	Saves     [][]players.Player
	Purchases int
	// Saved receives every successfully written roster when non-nil.
	Saved chan []players.Player

	ReplaceCalls atomic.Int32
}

func (g *StubGateway) Status(ctx context.Context, squadID string) (squads.Status, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.StatusErr != nil {
		return squads.Status{}, g.StatusErr
	}
	status := g.StatusValue
	status.SquadID = squadID
	return status, nil
}

func (g *StubGateway) Purchase(ctx context.Context, squadID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.PurchaseErr != nil {
		return g.PurchaseErr
	}
	g.Purchases++
	g.StatusValue.IsLicensed = true
	g.StatusValue.HasAccess = true
	return nil
}

func (g *StubGateway) Players(ctx context.Context, squadID string) ([]players.Player, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.PlayersErr != nil {
		return nil, g.PlayersErr
	}
	out := players.Clone(g.Roster)
	if out == nil {
		out = []players.Player{}
	}
	return out, nil
}

func (g *StubGateway) ReplacePlayers(ctx context.Context, squadID string, list []players.Player) error {
	g.ReplaceCalls.Add(1)
	g.mu.Lock()
	if len(g.ReplaceErrs) > 0 {
		err := g.ReplaceErrs[0]
		g.ReplaceErrs = g.ReplaceErrs[1:]
		if err != nil {
			g.mu.Unlock()
			return err
		}
	}
	saved := players.Clone(list)
	g.Roster = saved
	g.Saves = append(g.Saves, saved)
	notify := g.Saved
	g.mu.Unlock()

	if notify != nil {
		notify <- saved
	}
	return nil
}

// SaveCount returns how many rosters were written.
func (g *StubGateway) SaveCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.Saves)
}

// FailingStore wraps a store.Store and returns Err from the operations named in Fail.
type FailingStore struct {
	store.Store
	Err  error
	Fail map[string]bool
}

func (f *FailingStore) fails(op string) bool {
	return f.Err != nil && (f.Fail == nil || f.Fail[op])
}

func (f *FailingStore) EnsureSquad(ctx context.Context, squadID string, now time.Time) (squads.Metadata, error) {
	if f.fails(store.OpEnsureSquad) {
		return squads.Metadata{}, f.Err
	}
	return f.Store.EnsureSquad(ctx, squadID, now)
}

func (f *FailingStore) Players(ctx context.Context, squadID string) ([]players.Player, error) {
	if f.fails(store.OpPlayers) {
		return nil, f.Err
	}
	return f.Store.Players(ctx, squadID)
}

func (f *FailingStore) ReplacePlayers(ctx context.Context, squadID string, list []players.Player) error {
	if f.fails(store.OpReplacePlayers) {
		return f.Err
	}
	return f.Store.ReplacePlayers(ctx, squadID, list)
}

func (f *FailingStore) Ping(ctx context.Context) error {
	if f.fails("ping") {
		return f.Err
	}
	return f.Store.Ping(ctx)
}
