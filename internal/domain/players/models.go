package players

import (
	"fmt"
	"strings"
)

// Position tags where a player lines up.
type Position string

const (
	Defence  Position = "DEFENCE"
	Midfield Position = "MIDFIELD"
	Attack   Position = "ATTACK"
)

// Positions lists every position in display order.
var Positions = []Position{Defence, Midfield, Attack}

const (
	MinRating     = 1
	MaxRating     = 10
	DefaultRating = 5
)

// DefaultPosition is assigned to newly added players.
const DefaultPosition = Midfield

// Player is one member of a squad roster.
type Player struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Rating     int      `json:"rating"`
	Position   Position `json:"position"`
	IsSelected bool     `json:"isSelected"`
}

// Order returns the display rank of the position (DEFENCE first).
func (p Position) Order() int {
	switch p {
	case Defence:
		return 0
	case Midfield:
		return 1
	case Attack:
		return 2
	default:
		return len(Positions)
	}
}

// Valid reports whether p is one of the known positions.
func (p Position) Valid() bool {
	return p.Order() < len(Positions)
}

// ParsePosition accepts the canonical upper-case names, the title-case labels
// and the short forms def/mid/att.
func ParsePosition(raw string) (Position, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "DEFENCE", "DEFENSE", "DEF", "D":
		return Defence, nil
	case "MIDFIELD", "MID", "M":
		return Midfield, nil
	case "ATTACK", "ATT", "A":
		return Attack, nil
	default:
		return "", fmt.Errorf("unknown position %q", raw)
	}
}

// UnmarshalText accepts every spelling ParsePosition does, so JSON rosters may
// say "Defence" or "att". Unknown values are kept as given for Validate to report.
func (p *Position) UnmarshalText(text []byte) error {
	if parsed, err := ParsePosition(string(text)); err == nil {
		*p = parsed
		return nil
	}
	*p = Position(text)
	return nil
}

// ValidRating reports whether r is within MinRating..MaxRating.
func ValidRating(r int) bool {
	return r >= MinRating && r <= MaxRating
}

// ValidationError collects every problem found in a player or roster.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Problems) == 0 {
		return "invalid player"
	}
	return "invalid player: " + strings.Join(e.Problems, "; ")
}

// Validate checks a single player record.
func Validate(p Player) error {
	problems := problemsFor(p, "")
	if len(problems) == 0 {
		return nil
	}
	return &ValidationError{Problems: problems}
}

// ValidateRoster checks every player and rejects duplicate ids.
func ValidateRoster(list []Player) error {
	var problems []string
	seen := make(map[string]int, len(list))
	for i, p := range list {
		prefix := fmt.Sprintf("players[%d]: ", i)
		problems = append(problems, problemsFor(p, prefix)...)
		if p.ID == "" {
			continue
		}
		if first, dup := seen[p.ID]; dup {
			problems = append(problems, fmt.Sprintf("%sduplicate id %q (also at %d)", prefix, p.ID, first))
			continue
		}
		seen[p.ID] = i
	}
	if len(problems) == 0 {
		return nil
	}
	return &ValidationError{Problems: problems}
}

func problemsFor(p Player, prefix string) []string {
	var problems []string
	if strings.TrimSpace(p.ID) == "" {
		problems = append(problems, prefix+"id is required")
	}
	if strings.TrimSpace(p.Name) == "" {
		problems = append(problems, prefix+"name is required")
	}
	if !ValidRating(p.Rating) {
		problems = append(problems, fmt.Sprintf("%srating %d outside %d..%d", prefix, p.Rating, MinRating, MaxRating))
	}
	if !p.Position.Valid() {
		problems = append(problems, fmt.Sprintf("%sunknown position %q", prefix, p.Position))
	}
	return problems
}

// Selected returns the players flagged for the next balancing run, in roster order.
func Selected(list []Player) []Player {
	out := make([]Player, 0, len(list))
	for _, p := range list {
		if p.IsSelected {
			out = append(out, p)
		}
	}
	return out
}

// Clone returns an independent copy of the slice.
func Clone(list []Player) []Player {
	if list == nil {
		return nil
	}
	out := make([]Player, len(list))
	copy(out, list)
	return out
}
