package squads

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/preston-bernstein/gaffer-service/internal/balance"
	"github.com/preston-bernstein/gaffer-service/internal/domain/players"
	domainsquads "github.com/preston-bernstein/gaffer-service/internal/domain/squads"
	"github.com/preston-bernstein/gaffer-service/internal/domain/teams"
	"github.com/preston-bernstein/gaffer-service/internal/logging"
	"github.com/preston-bernstein/gaffer-service/internal/metrics"
	"github.com/preston-bernstein/gaffer-service/internal/store"
)

// Publisher is notified after a roster has been persisted.
type Publisher interface {
	Publish(squadID string, list []players.Player)
}

// Service coordinates squad operations on top of a store.Store.
type Service struct {
	store     store.Store
	publisher Publisher
	clock     clockwork.Clock
	logger    *slog.Logger
	metrics   *metrics.Recorder

	mu       sync.Mutex
	balancer *balance.Balancer
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher sets the roster feed notified after successful replaces.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithClock overrides the clock used for creation stamps and trial checks.
func WithClock(c clockwork.Clock) Option {
	return func(s *Service) { s.clock = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithMetrics(m *metrics.Recorder) Option {
	return func(s *Service) { s.metrics = m }
}

// WithBalancer replaces the balancer used when no seed is supplied.
func WithBalancer(b *balance.Balancer) Option {
	return func(s *Service) { s.balancer = b }
}

// NewService constructs a Service with the provided Store.
func NewService(st store.Store, opts ...Option) *Service {
	s := &Service{store: st}
	for _, opt := range opts {
		opt(s)
	}
	if s.clock == nil {
		s.clock = clockwork.NewRealClock()
	}
	if s.balancer == nil {
		s.balancer = balance.New()
	}
	return s
}

// Status returns the squad's licensing state, creating the record on first visit.
func (s *Service) Status(ctx context.Context, rawID string) (domainsquads.Status, error) {
	id, err := domainsquads.NormalizeID(rawID)
	if err != nil {
		return domainsquads.Status{}, err
	}
	now := s.clock.Now()
	m, err := s.store.EnsureSquad(ctx, id, now)
	if err != nil {
		return domainsquads.Status{}, err
	}
	return m.StatusAt(now), nil
}

// Purchase marks the squad as licensed. Unknown squads are created first.
func (s *Service) Purchase(ctx context.Context, rawID string) error {
	id, err := domainsquads.NormalizeID(rawID)
	if err != nil {
		return err
	}
	if _, err := s.store.EnsureSquad(ctx, id, s.clock.Now()); err != nil {
		return err
	}
	if err := s.store.SetLicensed(ctx, id); err != nil {
		return err
	}
	logging.Info(logging.FromContext(ctx, s.logger), "squad licensed", logging.FieldSquadID, id)
	return nil
}

// Players returns the stored roster in insertion order.
func (s *Service) Players(ctx context.Context, rawID string) ([]players.Player, error) {
	id, err := domainsquads.NormalizeID(rawID)
	if err != nil {
		return nil, err
	}
	return s.store.Players(ctx, id)
}

// ReplacePlayers validates and stores list as the squad's whole roster.
// Nothing is written when validation fails.
func (s *Service) ReplacePlayers(ctx context.Context, rawID string, list []players.Player) error {
	id, err := domainsquads.NormalizeID(rawID)
	if err != nil {
		return err
	}
	if err := players.ValidateRoster(list); err != nil {
		return err
	}
	// Marking the squad seen first keeps a concurrent sweep off this roster.
	if _, err := s.store.EnsureSquad(ctx, id, s.clock.Now()); err != nil {
		return err
	}
	if err := s.store.ReplacePlayers(ctx, id, list); err != nil {
		return err
	}
	if s.publisher != nil {
		s.publisher.Publish(id, players.Clone(list))
	}
	return nil
}

// Balance splits the squad's stored selection into two teams. A non-nil seed
// makes the result reproducible.
func (s *Service) Balance(ctx context.Context, rawID string, seed *int64) (teams.Team, teams.Team, error) {
	roster, err := s.Players(ctx, rawID)
	if err != nil {
		return teams.Team{}, teams.Team{}, err
	}

	start := time.Now()
	var one, two teams.Team
	if seed != nil {
		one, two, err = balance.Balance(roster, balance.WithSeed(*seed))
	} else {
		s.mu.Lock()
		one, two, err = s.balancer.Balance(roster)
		s.mu.Unlock()
	}
	s.metrics.RecordBalance(len(players.Selected(roster)), time.Since(start), err == nil)
	return one, two, err
}

// Sweep clears the rosters of unlicensed squads whose trial has ended and
// that nobody has opened or saved for longer than retention. Squad records
// are kept, so a later visit still sees the original trial. It returns how
// many rosters were cleared.
func (s *Service) Sweep(ctx context.Context, now time.Time, retention time.Duration) (int, error) {
	start := time.Now()
	removed, err := s.sweep(ctx, now, retention)
	s.metrics.RecordSweep(removed, time.Since(start), err)
	return removed, err
}

func (s *Service) sweep(ctx context.Context, now time.Time, retention time.Duration) (int, error) {
	all, err := s.store.ListSquads(ctx)
	if err != nil {
		return 0, err
	}

	createdBy := now.Add(-domainsquads.TrialPeriod)
	seenBefore := now.Add(-retention)
	removed := 0
	var errs []error
	for _, m := range all {
		if !m.Lapsed(now, retention) {
			continue
		}
		purged, err := s.store.PurgeRoster(ctx, m.SquadID, createdBy, seenBefore)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if purged {
			removed++
			logging.Info(s.logger, "cleared lapsed roster", logging.FieldSquadID, m.SquadID)
		}
	}
	return removed, errors.Join(errs...)
}

// Ping checks that the backing store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}
