// Package seed builds a randomized starter roster for squads with no players yet.
package seed

import (
	"github.com/google/uuid"

	"github.com/preston-bernstein/gaffer-service/internal/domain/players"
)

// DefaultSize is the number of players in a starter roster.
const DefaultSize = 14

const (
	minDefenders   = 2
	minMidfielders = 2
	minRating      = 6
	maxRating      = 10
)

// Rand is the randomness the generator needs; *math/rand/v2.Rand satisfies it.
type Rand interface {
	IntN(n int) int
	Shuffle(n int, swap func(i, j int))
}

// Legend is a pool entry: a name and a preferred position.
type Legend struct {
	Name     string
	Rating   int
	Position players.Position
}

// Legends is the stock pool starter rosters are drawn from.
var Legends = []Legend{
	{"LIONEL MESSI", 10, players.Attack},
	{"CRISTIANO RONALDO", 10, players.Attack},
	{"LUKA MODRIC", 9, players.Midfield},
	{"KAKA", 9, players.Midfield},
	{"FABIO CANNAVARO", 9, players.Defence},
	{"RONALDINHO", 10, players.Attack},
	{"ANDRIY SHEVCHENKO", 9, players.Attack},
	{"PAVEL NEDVED", 9, players.Midfield},
	{"RONALDO", 10, players.Attack},
	{"MICHAEL OWEN", 9, players.Attack},
	{"LUIS FIGO", 9, players.Midfield},
	{"RIVALDO", 9, players.Attack},
	{"ZINEDINE ZIDANE", 10, players.Midfield},
	{"MARCO VAN BASTEN", 10, players.Attack},
	{"RUUD GULLIT", 9, players.Midfield},
	{"MICHEL PLATINI", 10, players.Midfield},
	{"PAOLO ROSSI", 9, players.Attack},
	{"KEVIN KEEGAN", 9, players.Attack},
	{"ALLAN SIMONSEN", 8, players.Attack},
	{"FRANZ BECKENBAUER", 10, players.Defence},
	{"OLEG BLOKHIN", 9, players.Attack},
	{"JOHAN CRUYFF", 10, players.Attack},
	{"GERD MULLER", 10, players.Attack},
	{"GIANNI RIVERA", 9, players.Midfield},
	{"GEORGE BEST", 10, players.Attack},
	{"BOBBY CHARLTON", 9, players.Midfield},
	{"EUSEBIO", 10, players.Attack},
	{"DENIS LAW", 9, players.Attack},
	{"LEV YASHIN", 10, players.Defence},
}

// Generator draws starter rosters from a pool.
type Generator struct {
	rand  Rand
	pool  []Legend
	newID func() string
}

// New returns a Generator over the stock Legends pool.
func New(r Rand) *Generator {
	return &Generator{rand: r, pool: Legends, newID: uuid.NewString}
}

// Generate returns n unselected players (DefaultSize when n <= 0), with at
// least two defenders and two midfielders when the pool has them. Ratings are
// rerolled between 6 and 10 so starter squads are not all legends.
func (g *Generator) Generate(n int) []players.Player {
	if n <= 0 {
		n = DefaultSize
	}
	shuffled := make([]Legend, len(g.pool))
	copy(shuffled, g.pool)
	g.rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	var picked, rest []Legend
	defenders, midfielders := 0, 0
	for _, l := range shuffled {
		switch {
		case l.Position == players.Defence && defenders < minDefenders:
			defenders++
			picked = append(picked, l)
		case l.Position == players.Midfield && midfielders < minMidfielders:
			midfielders++
			picked = append(picked, l)
		default:
			rest = append(rest, l)
		}
	}
	for _, l := range rest {
		if len(picked) >= n {
			break
		}
		picked = append(picked, l)
	}
	if len(picked) > n {
		picked = picked[:n]
	}
	g.rand.Shuffle(len(picked), func(i, j int) {
		picked[i], picked[j] = picked[j], picked[i]
	})

	out := make([]players.Player, 0, len(picked))
	for _, l := range picked {
		out = append(out, players.Player{
			ID:       g.newID(),
			Name:     l.Name,
			Rating:   minRating + g.rand.IntN(maxRating-minRating+1),
			Position: l.Position,
		})
	}
	return out
}
