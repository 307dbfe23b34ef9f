package squads

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// TrialPeriod is how long a fresh squad may use the app before a licence is required.
const TrialPeriod = 72 * time.Hour

// ErrInvalidSquadID is returned for ids that are not short numeric keys.
var ErrInvalidSquadID = errors.New("invalid squad id")

var squadIDPattern = regexp.MustCompile(`^[0-9]{1,12}$`)

// Metadata is the licensing record kept for every squad id.
type Metadata struct {
	SquadID    string    `json:"squad_id"`
	CreatedAt  time.Time `json:"-"`
	IsLicensed bool      `json:"is_licensed"`
	// LastSeenAt is refreshed whenever the squad is opened or saved.
	LastSeenAt time.Time `json:"-"`
}

// NormalizeID trims the id and checks it is 1..12 digits.
func NormalizeID(raw string) (string, error) {
	id := strings.TrimSpace(raw)
	if !squadIDPattern.MatchString(id) {
		return "", fmt.Errorf("%w: %q", ErrInvalidSquadID, raw)
	}
	return id, nil
}

// NewID returns a random three digit squad id (100..999).
func NewID(r interface{ IntN(int) int }) string {
	return fmt.Sprintf("%d", 100+r.IntN(900))
}

// New returns an unlicensed record created at now.
func New(squadID string, now time.Time) Metadata {
	return Metadata{SquadID: squadID, CreatedAt: now.UTC(), LastSeenAt: now.UTC()}
}

// LastSeen falls back to the creation time for records that predate LastSeenAt.
func (m Metadata) LastSeen() time.Time {
	if m.LastSeenAt.Before(m.CreatedAt) {
		return m.CreatedAt
	}
	return m.LastSeenAt
}

// TrialEndsAt is the moment the free trial stops granting access.
func (m Metadata) TrialEndsAt() time.Time {
	return m.CreatedAt.Add(TrialPeriod)
}

// TrialActive reports whether now falls inside the trial window.
func (m Metadata) TrialActive(now time.Time) bool {
	return now.Before(m.TrialEndsAt())
}

// HasAccess reports whether the squad is licensed or still on trial.
func (m Metadata) HasAccess(now time.Time) bool {
	return m.IsLicensed || m.TrialActive(now)
}

// Status is the wire shape returned by the squad-status endpoint.
type Status struct {
	SquadID     string `json:"squad_id"`
	CreatedAt   int64  `json:"created_at"`
	IsLicensed  bool   `json:"is_licensed"`
	TrialEndsAt int64  `json:"trial_ends_at"`
	HasAccess   bool   `json:"has_access"`
}

// StatusAt renders the metadata with derived trial fields evaluated at now.
func (m Metadata) StatusAt(now time.Time) Status {
	return Status{
		SquadID:     m.SquadID,
		CreatedAt:   m.CreatedAt.UTC().UnixMilli(),
		IsLicensed:  m.IsLicensed,
		TrialEndsAt: m.TrialEndsAt().UTC().UnixMilli(),
		HasAccess:   m.HasAccess(now),
	}
}

// Metadata converts the wire shape back to a record.
func (s Status) Metadata() Metadata {
	return Metadata{
		SquadID:    s.SquadID,
		CreatedAt:  time.UnixMilli(s.CreatedAt).UTC(),
		IsLicensed: s.IsLicensed,
	}
}

// Lapsed reports whether an unlicensed squad's trial has ended and nobody has
// opened or saved it for longer than retention. The record itself is kept so
// the trial is never granted twice.
func (m Metadata) Lapsed(now time.Time, retention time.Duration) bool {
	if m.IsLicensed || retention <= 0 || m.TrialActive(now) {
		return false
	}
	return now.Sub(m.LastSeen()) > retention
}
