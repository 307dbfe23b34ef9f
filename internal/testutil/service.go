package testutil

import (
	"github.com/preston-bernstein/gaffer-service/internal/app/squads"
	"github.com/preston-bernstein/gaffer-service/internal/balance"
	"github.com/preston-bernstein/gaffer-service/internal/store"
)

// NewSquadService returns a service over a fresh memory store with a fake
// clock at Epoch and a seeded balancer. Extra options are applied last.
func NewSquadService(opts ...squads.Option) (*squads.Service, *store.MemoryStore) {
	ms := store.NewMemoryStore()
	base := []squads.Option{
		squads.WithClock(NewFakeClock()),
		squads.WithBalancer(balance.New(balance.WithSeed(1))),
	}
	return squads.NewService(ms, append(base, opts...)...), ms
}
