// Package balance splits a selection of players into two teams of near-equal
// size and total rating while spreading each position across both sides.
//
// The assignment is a greedy heuristic: players are paired within their
// position group, each pair is split across the teams, and unpaired players
// are placed afterwards. It does not search for the optimal split.
package balance

import (
	"errors"
	"sort"

	"github.com/preston-bernstein/gaffer-service/internal/domain/players"
	"github.com/preston-bernstein/gaffer-service/internal/domain/teams"
)

// MinPlayers is the smallest selection that can be balanced.
const MinPlayers = 2

// ErrInsufficientPlayers is returned when fewer than MinPlayers are selected.
var ErrInsufficientPlayers = errors.New("at least two selected players are required")

// Rand is the randomness used for tie-breaks and name shuffling.
// *math/rand/v2.Rand satisfies it.
type Rand interface {
	IntN(n int) int
	Shuffle(n int, swap func(i, j int))
}

// Balancer holds the random source and the team name pool for repeated runs.
type Balancer struct {
	rand  Rand
	names []string
}

// New constructs a Balancer. Without options it uses a randomly seeded source
// and the stock name pool.
func New(opts ...Option) *Balancer {
	b := &Balancer{names: StockNames}
	for _, opt := range opts {
		opt(b)
	}
	if b.rand == nil {
		b.rand = newRand(randomSeed())
	}
	if len(b.names) < 2 {
		b.names = StockNames
	}
	return b
}

// Balance is a convenience wrapper for a single run.
func Balance(all []players.Player, opts ...Option) (teams.Team, teams.Team, error) {
	return New(opts...).Balance(all)
}

// Balance splits the selected players of all into two teams.
// Players with IsSelected == false are ignored.
func (b *Balancer) Balance(all []players.Player) (teams.Team, teams.Team, error) {
	selected := players.Selected(all)
	if len(selected) < MinPlayers {
		return teams.Team{}, teams.Team{}, ErrInsufficientPlayers
	}

	var one, two side
	var leftovers []players.Player

	for _, pos := range players.Positions {
		group := byPosition(selected, pos)
		for i := 0; i+1 < len(group); i += 2 {
			b.assignPair(&one, &two, group[i], group[i+1])
		}
		if len(group)%2 == 1 {
			leftovers = append(leftovers, group[len(group)-1])
		}
	}

	sortByRatingDesc(leftovers)
	for _, p := range leftovers {
		switch {
		case one.size() < two.size():
			one.add(p)
		case two.size() < one.size():
			two.add(p)
		case one.total <= two.total:
			one.add(p)
		default:
			two.add(p)
		}
	}

	names := b.drawNames()
	return teams.New(names[0], one.members), teams.New(names[1], two.members), nil
}

// assignPair places the stronger player (hi) and the weaker one (lo) on
// opposite sides. Size is balanced first, then total rating, then a coin flip.
func (b *Balancer) assignPair(one, two *side, hi, lo players.Player) {
	switch {
	case one.size() < two.size():
		one.add(hi)
		two.add(lo)
	case two.size() < one.size():
		two.add(hi)
		one.add(lo)
	case one.total < two.total:
		one.add(hi)
		two.add(lo)
	case two.total < one.total:
		two.add(hi)
		one.add(lo)
	case b.rand.IntN(2) == 0:
		one.add(hi)
		two.add(lo)
	default:
		one.add(lo)
		two.add(hi)
	}
}

func (b *Balancer) drawNames() []string {
	pool := make([]string, len(b.names))
	copy(pool, b.names)
	b.rand.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})
	return pool[:2]
}

type side struct {
	members []players.Player
	total   int
}

func (s *side) add(p players.Player) {
	s.members = append(s.members, p)
	s.total += p.Rating
}

func (s *side) size() int {
	return len(s.members)
}

// byPosition returns the players at pos sorted by rating descending.
// Equal ratings keep their roster order.
func byPosition(list []players.Player, pos players.Position) []players.Player {
	var group []players.Player
	for _, p := range list {
		if p.Position == pos {
			group = append(group, p)
		}
	}
	sortByRatingDesc(group)
	return group
}

func sortByRatingDesc(list []players.Player) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Rating > list[j].Rating
	})
}
