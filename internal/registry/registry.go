// Package registry holds the canonical in-memory roster for one squad.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/preston-bernstein/gaffer-service/internal/domain/players"
)

// ErrPlayerNotFound is returned when an id does not match any player.
var ErrPlayerNotFound = errors.New("player not found")

// Field names a player attribute editable through Edit.
type Field string

const (
	FieldName     Field = "name"
	FieldRating   Field = "rating"
	FieldPosition Field = "position"
)

// Registry keeps players in insertion order. All methods are safe to call
// from the session goroutine and the background saver at the same time.
type Registry struct {
	mu      sync.RWMutex
	players []players.Player
	newID   func() string
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{newID: uuid.NewString}
}

// Add appends a player with the default rating and position, unselected.
func (r *Registry) Add(name string) (players.Player, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return players.Player{}, &players.ValidationError{Problems: []string{"name is required"}}
	}
	p := players.Player{
		ID:       r.newID(),
		Name:     name,
		Rating:   players.DefaultRating,
		Position: players.DefaultPosition,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.players = append(r.players, p)
	return p, nil
}

// Rename changes a player's display name.
func (r *Registry) Rename(id, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return &players.ValidationError{Problems: []string{"name is required"}}
	}
	return r.update(id, func(p *players.Player) { p.Name = name })
}

// SetRating changes a player's rating; it must be within 1..10.
func (r *Registry) SetRating(id string, rating int) error {
	if !players.ValidRating(rating) {
		return &players.ValidationError{Problems: []string{
			fmt.Sprintf("rating %d outside %d..%d", rating, players.MinRating, players.MaxRating),
		}}
	}
	return r.update(id, func(p *players.Player) { p.Rating = rating })
}

// SetPosition changes a player's position.
func (r *Registry) SetPosition(id string, pos players.Position) error {
	if !pos.Valid() {
		return &players.ValidationError{Problems: []string{fmt.Sprintf("unknown position %q", pos)}}
	}
	return r.update(id, func(p *players.Player) { p.Position = pos })
}

// Edit updates one field from its text form.
func (r *Registry) Edit(id string, field Field, value string) error {
	switch field {
	case FieldName:
		return r.Rename(id, value)
	case FieldRating:
		rating, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return &players.ValidationError{Problems: []string{fmt.Sprintf("rating %q is not a number", value)}}
		}
		return r.SetRating(id, rating)
	case FieldPosition:
		pos, err := players.ParsePosition(value)
		if err != nil {
			return &players.ValidationError{Problems: []string{err.Error()}}
		}
		return r.SetPosition(id, pos)
	default:
		return fmt.Errorf("unknown field %q", field)
	}
}

// Remove deletes the player with id.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrPlayerNotFound, id)
	}
	r.players = append(r.players[:i], r.players[i+1:]...)
	return nil
}

// ToggleSelected flips the selection flag and returns the new value.
func (r *Registry) ToggleSelected(id string) (bool, error) {
	var selected bool
	err := r.update(id, func(p *players.Player) {
		p.IsSelected = !p.IsSelected
		selected = p.IsSelected
	})
	return selected, err
}

// SelectAll sets the selection flag on every player.
func (r *Registry) SelectAll(selected bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.players {
		r.players[i].IsSelected = selected
	}
}

// Replace swaps the whole roster, e.g. after loading it from storage.
func (r *Registry) Replace(list []players.Player) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.players = players.Clone(list)
}

// Get returns the player with id.
func (r *Registry) Get(id string) (players.Player, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i := r.indexOf(id)
	if i < 0 {
		return players.Player{}, false
	}
	return r.players[i], true
}

// List returns a copy of the roster in insertion order.
func (r *Registry) List() []players.Player {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := players.Clone(r.players)
	if out == nil {
		out = []players.Player{}
	}
	return out
}

// Selected returns the players flagged for balancing.
func (r *Registry) Selected() []players.Player {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return players.Selected(r.players)
}

// Len returns the roster size.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.players)
}

// Search returns players whose names fuzzily match query, closest first.
// An empty query returns the whole roster.
func (r *Registry) Search(query string) []players.Player {
	query = strings.TrimSpace(query)
	if query == "" {
		return r.List()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.players))
	for i, p := range r.players {
		names[i] = p.Name
	}
	ranks := fuzzy.RankFindNormalizedFold(query, names)
	sort.Stable(ranks)

	out := make([]players.Player, 0, len(ranks))
	for _, rank := range ranks {
		out = append(out, r.players[rank.OriginalIndex])
	}
	return out
}

func (r *Registry) update(id string, fn func(*players.Player)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrPlayerNotFound, id)
	}
	fn(&r.players[i])
	return nil
}

func (r *Registry) indexOf(id string) int {
	for i := range r.players {
		if r.players[i].ID == id {
			return i
		}
	}
	return -1
}
