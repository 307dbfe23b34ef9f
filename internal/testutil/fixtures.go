package testutil

import (
	"github.com/preston-bernstein/gaffer-service/internal/domain/players"
)

// SamplePlayer returns a selected midfielder with the provided id.
func SamplePlayer(id string) players.Player {
	return players.Player{
		ID:         id,
		Name:       "Player " + id,
		Rating:     players.DefaultRating,
		Position:   players.Midfield,
		IsSelected: true,
	}
}

// SampleRoster returns six selected players, two per position.
func SampleRoster() []players.Player {
	return []players.Player{
		{ID: "a", Name: "Alex", Rating: 9, Position: players.Defence, IsSelected: true},
		{ID: "b", Name: "Billie", Rating: 7, Position: players.Defence, IsSelected: true},
		{ID: "c", Name: "Charlie", Rating: 8, Position: players.Midfield, IsSelected: true},
		{ID: "d", Name: "Dani", Rating: 6, Position: players.Midfield, IsSelected: true},
		{ID: "e", Name: "Eden", Rating: 10, Position: players.Attack, IsSelected: true},
		{ID: "f", Name: "Frankie", Rating: 5, Position: players.Attack, IsSelected: true},
	}
}
