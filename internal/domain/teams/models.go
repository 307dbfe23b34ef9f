package teams

import (
	"sort"

	"github.com/preston-bernstein/gaffer-service/internal/domain/players"
)

// Team is a derived side produced by a balancing run.
// It is rebuilt wholesale on every run and never edited in place.
type Team struct {
	Name        string                   `json:"name"`
	Players     []players.Player         `json:"players"`
	TotalRating int                      `json:"totalRating"`
	Positions   map[players.Position]int `json:"positions"`
}

// New builds a Team from its members, sorting them for display and computing aggregates.
func New(name string, members []players.Player) Team {
	sorted := players.Clone(members)
	if sorted == nil {
		sorted = []players.Player{}
	}
	SortForDisplay(sorted)

	counts := make(map[players.Position]int, len(players.Positions))
	for _, pos := range players.Positions {
		counts[pos] = 0
	}
	total := 0
	for _, p := range sorted {
		total += p.Rating
		counts[p.Position]++
	}
	return Team{
		Name:        name,
		Players:     sorted,
		TotalRating: total,
		Positions:   counts,
	}
}

// SortForDisplay orders players by position (DEFENCE, MIDFIELD, ATTACK) then rating descending.
func SortForDisplay(list []players.Player) {
	sort.SliceStable(list, func(i, j int) bool {
		oi, oj := list[i].Position.Order(), list[j].Position.Order()
		if oi != oj {
			return oi < oj
		}
		return list[i].Rating > list[j].Rating
	})
}

// Size returns the number of players on the team.
func (t Team) Size() int {
	return len(t.Players)
}
