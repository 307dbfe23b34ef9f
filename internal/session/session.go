// Package session holds one squad's working state on the client side: the
// roster being edited, the last balancing result and the licence status.
// Edits are saved to the gateway in the background after a quiet period.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/preston-bernstein/gaffer-service/internal/balance"
	"github.com/preston-bernstein/gaffer-service/internal/checkout"
	"github.com/preston-bernstein/gaffer-service/internal/debounce"
	"github.com/preston-bernstein/gaffer-service/internal/domain/players"
	"github.com/preston-bernstein/gaffer-service/internal/domain/squads"
	"github.com/preston-bernstein/gaffer-service/internal/domain/teams"
	"github.com/preston-bernstein/gaffer-service/internal/logging"
	"github.com/preston-bernstein/gaffer-service/internal/registry"
	"github.com/preston-bernstein/gaffer-service/internal/seed"
)

// Gateway is the squad API a session talks to. Both the in-process
// squads.Service and the HTTP client satisfy it.
type Gateway interface {
	Status(ctx context.Context, squadID string) (squads.Status, error)
	Purchase(ctx context.Context, squadID string) error
	Players(ctx context.Context, squadID string) ([]players.Player, error)
	ReplacePlayers(ctx context.Context, squadID string, list []players.Player) error
}

// ErrNoAccess is returned by Balance when the trial has ended and no licence was bought.
var ErrNoAccess = errors.New("trial expired: purchase a licence to keep balancing")

// Session is the single writer for one squad's roster.
type Session struct {
	squadID  string
	gateway  Gateway
	registry *registry.Registry
	saver    *debounce.Debouncer[[]players.Player]
	balancer *balance.Balancer
	seeder   *seed.Generator
	clock    clockwork.Clock
	logger   *slog.Logger

	saveDelay    time.Duration
	seedSize     int
	enforceTrial bool

	mu       sync.Mutex
	status   squads.Status
	loaded   bool
	teams    [2]teams.Team
	hasTeams bool
}

// Option configures a Session.
type Option func(*Session)

// WithSaveDelay sets the debounce window for background saves.
func WithSaveDelay(d time.Duration) Option {
	return func(s *Session) { s.saveDelay = d }
}

func WithClock(c clockwork.Clock) Option {
	return func(s *Session) { s.clock = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

func WithBalancer(b *balance.Balancer) Option {
	return func(s *Session) { s.balancer = b }
}

// WithSeeder sets the generator for starter rosters and its size.
func WithSeeder(g *seed.Generator, size int) Option {
	return func(s *Session) {
		s.seeder = g
		s.seedSize = size
	}
}

// WithTrialEnforcement makes Balance fail with ErrNoAccess once the trial is over.
func WithTrialEnforcement(on bool) Option {
	return func(s *Session) { s.enforceTrial = on }
}

// NewSquadID returns a random three digit squad id.
func NewSquadID(r interface{ IntN(int) int }) string {
	return squads.NewID(r)
}

// New builds a Session for squadID. Call Load before editing.
func New(squadID string, gateway Gateway, opts ...Option) *Session {
	s := &Session{
		squadID:  squadID,
		gateway:  gateway,
		registry: registry.New(),
		seedSize: seed.DefaultSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.Squad(s.logger, squadID)
	if s.clock == nil {
		s.clock = clockwork.NewRealClock()
	}
	if s.balancer == nil {
		s.balancer = balance.New()
	}
	if s.seeder == nil {
		s.seeder = seed.New(rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())))
	}
	s.saver = debounce.New(s.saveDelay, s.save, debounce.WithClock(s.clock))
	return s
}

// SquadID returns the squad this session edits.
func (s *Session) SquadID() string {
	return s.squadID
}

// Load fetches status and roster. An empty stored roster is replaced by a
// generated starter squad, which is then saved in the background.
func (s *Session) Load(ctx context.Context) error {
	status, err := s.gateway.Status(ctx, s.squadID)
	if err != nil {
		return fmt.Errorf("load status: %w", err)
	}
	list, err := s.gateway.Players(ctx, s.squadID)
	if err != nil {
		return fmt.Errorf("load players: %w", err)
	}

	seeded := len(list) == 0
	if seeded {
		list = s.seeder.Generate(s.seedSize)
	}
	s.registry.Replace(list)

	s.mu.Lock()
	s.status = status
	s.loaded = true
	s.mu.Unlock()

	if seeded {
		logging.Info(s.logger, "seeded starter squad", logging.FieldCount, len(list))
		s.scheduleSave()
	}
	return nil
}

// Players returns the roster in insertion order.
func (s *Session) Players() []players.Player {
	return s.registry.List()
}

// Player looks up one player by id.
func (s *Session) Player(id string) (players.Player, bool) {
	return s.registry.Get(id)
}

// Counts returns the roster size and how many players are selected.
func (s *Session) Counts() (total, selected int) {
	return s.registry.Len(), len(s.registry.Selected())
}

// Search returns players whose names fuzzily match query.
func (s *Session) Search(query string) []players.Player {
	return s.registry.Search(query)
}

// Add creates a player with default rating and position.
func (s *Session) Add(name string) (players.Player, error) {
	p, err := s.registry.Add(name)
	if err != nil {
		return players.Player{}, err
	}
	s.scheduleSave()
	return p, nil
}

func (s *Session) Rename(id, name string) error {
	return s.mutate(s.registry.Rename(id, name))
}

func (s *Session) SetRating(id string, rating int) error {
	return s.mutate(s.registry.SetRating(id, rating))
}

func (s *Session) SetPosition(id string, pos players.Position) error {
	return s.mutate(s.registry.SetPosition(id, pos))
}

// Edit updates one field from its text form.
func (s *Session) Edit(id string, field registry.Field, value string) error {
	return s.mutate(s.registry.Edit(id, field, value))
}

func (s *Session) Remove(id string) error {
	return s.mutate(s.registry.Remove(id))
}

// Toggle flips a player's selection and returns the new flag.
func (s *Session) Toggle(id string) (bool, error) {
	selected, err := s.registry.ToggleSelected(id)
	if err != nil {
		return false, err
	}
	s.scheduleSave()
	return selected, nil
}

// SelectAll sets every player's selection flag.
func (s *Session) SelectAll(selected bool) {
	s.registry.SelectAll(selected)
	s.scheduleSave()
}

// Balance splits the current selection into two teams. On failure the
// previous teams are kept.
func (s *Session) Balance() (teams.Team, teams.Team, error) {
	if s.enforceTrial && !s.HasAccess() {
		return teams.Team{}, teams.Team{}, ErrNoAccess
	}
	one, two, err := s.balancer.Balance(s.registry.List())
	if err != nil {
		return teams.Team{}, teams.Team{}, err
	}

	s.mu.Lock()
	s.teams = [2]teams.Team{one, two}
	s.hasTeams = true
	s.mu.Unlock()
	return one, two, nil
}

// Teams returns the last balancing result.
func (s *Session) Teams() (teams.Team, teams.Team, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.teams[0], s.teams[1], s.hasTeams
}

// Status returns the last fetched licence status.
func (s *Session) Status() squads.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// HasAccess evaluates the cached status at the current time.
func (s *Session) HasAccess() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return false
	}
	return s.status.Metadata().HasAccess(s.clock.Now())
}

// RefreshStatus fetches the licence status again.
func (s *Session) RefreshStatus(ctx context.Context) (squads.Status, error) {
	status, err := s.gateway.Status(ctx, s.squadID)
	if err != nil {
		return squads.Status{}, err
	}
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
	return status, nil
}

// Purchase confirms payment with co, records the licence and refreshes the status.
func (s *Session) Purchase(ctx context.Context, co checkout.Checkout) (squads.Status, error) {
	if err := co.ConfirmPurchase(ctx, s.squadID); err != nil {
		return squads.Status{}, err
	}
	if err := s.gateway.Purchase(ctx, s.squadID); err != nil {
		return squads.Status{}, fmt.Errorf("record purchase: %w", err)
	}
	logging.Info(s.logger, "licence purchased")
	return s.RefreshStatus(ctx)
}

// SavePending reports whether an edit is waiting to be saved.
func (s *Session) SavePending() bool {
	return s.saver.Pending()
}

// Flush saves any pending edit now.
func (s *Session) Flush(ctx context.Context) {
	s.saver.Flush(ctx)
}

// Close saves any pending edit and stops background saving.
func (s *Session) Close(ctx context.Context) {
	s.saver.Stop(ctx)
}

func (s *Session) mutate(err error) error {
	if err != nil {
		return err
	}
	s.scheduleSave()
	return nil
}

func (s *Session) scheduleSave() {
	s.saver.Schedule(s.registry.List())
}

// save writes the roster, retrying once. A second failure is logged and the
// write is dropped; the next edit schedules a fresh save.
func (s *Session) save(ctx context.Context, list []players.Player) {
	err := s.gateway.ReplacePlayers(ctx, s.squadID, list)
	if err == nil {
		logging.Debug(s.logger, "roster saved", logging.FieldCount, len(list))
		return
	}
	logging.Warn(s.logger, "save failed, retrying", logging.FieldError, err)

	if err = s.gateway.ReplacePlayers(ctx, s.squadID, list); err != nil {
		logging.Error(s.logger, "save dropped", err, logging.FieldCount, len(list))
		return
	}
	logging.Debug(s.logger, "roster saved", logging.FieldCount, len(list))
}
