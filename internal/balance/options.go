package balance

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
	"time"
)

// StockNames is the default pool of team name suffixes.
var StockNames = []string{
	"UNITED", "CITY", "TOWN", "ROVERS", "ATHLETIC", "WANDERERS",
	"RANGERS", "COUNTY", "ALBION", "VILLA", "ALEXANDRA", "ORIENT",
	"BOROUGH", "ACADEMICAL", "FOREST", "WEDNESDAY", "PARK", "VALE",
}

// Option configures a Balancer.
type Option func(*Balancer)

// WithRand injects the random source.
func WithRand(r Rand) Option {
	return func(b *Balancer) {
		b.rand = r
	}
}

// WithSeed uses a deterministic source so runs are reproducible.
func WithSeed(seed int64) Option {
	return func(b *Balancer) {
		b.rand = newRand(seed)
	}
}

// WithNames replaces the team name pool. Pools with fewer than two names are ignored.
func WithNames(names []string) Option {
	return func(b *Balancer) {
		if len(names) >= 2 {
			b.names = append([]string(nil), names...)
		}
	}
}

func newRand(seed int64) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))
}

// randomSeed reads a seed from crypto/rand, falling back to the clock.
func randomSeed() int64 {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return time.Now().UnixNano()
	}
	return int64(binary.LittleEndian.Uint64(b[:]))
}
