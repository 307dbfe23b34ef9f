package seed

import (
	"math/rand/v2"
	"testing"

	"github.com/preston-bernstein/gaffer-service/internal/domain/players"
)

func TestGenerateDefaultRoster(t *testing.T) {
	for s := uint64(0); s < 50; s++ {
		g := New(rand.New(rand.NewPCG(s, 1)))
		roster := g.Generate(0)

		if len(roster) != DefaultSize {
			t.Fatalf("seed %d: expected %d players, got %d", s, DefaultSize, len(roster))
		}
		counts := map[players.Position]int{}
		ids := map[string]bool{}
		names := map[string]bool{}
		for _, p := range roster {
			if err := players.Validate(p); err != nil {
				t.Fatalf("seed %d: invalid player %+v: %v", s, p, err)
			}
			if p.Rating < 6 || p.Rating > 10 {
				t.Fatalf("seed %d: rating %d outside 6..10", s, p.Rating)
			}
			if p.IsSelected {
				t.Fatalf("seed %d: expected unselected players", s)
			}
			if ids[p.ID] || names[p.Name] {
				t.Fatalf("seed %d: duplicate player %+v", s, p)
			}
			ids[p.ID] = true
			names[p.Name] = true
			counts[p.Position]++
		}
		if counts[players.Defence] < 2 || counts[players.Midfield] < 2 {
			t.Fatalf("seed %d: expected at least 2 defenders and midfielders, got %+v", s, counts)
		}
	}
}

func TestGenerateSmallRosterStillTakesMinimums(t *testing.T) {
	g := New(rand.New(rand.NewPCG(5, 5)))
	roster := g.Generate(4)
	if len(roster) != 4 {
		t.Fatalf("expected 4 players, got %d", len(roster))
	}
	counts := map[players.Position]int{}
	for _, p := range roster {
		counts[p.Position]++
	}
	if counts[players.Defence] != 2 || counts[players.Midfield] != 2 {
		t.Fatalf("expected 2 defenders and 2 midfielders, got %+v", counts)
	}
}

func TestGenerateCapsAtPoolSize(t *testing.T) {
	g := New(rand.New(rand.NewPCG(1, 1)))
	if got := len(g.Generate(100)); got != len(Legends) {
		t.Fatalf("expected whole pool (%d), got %d", len(Legends), got)
	}
}
