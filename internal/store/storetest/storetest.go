// Package storetest holds the behaviour every store.Store backend must share.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/preston-bernstein/gaffer-service/internal/domain/players"
	"github.com/preston-bernstein/gaffer-service/internal/store"
)

// Factory returns an empty store. Cleanup is the factory's job.
type Factory func(t *testing.T) store.Store

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// Run exercises the store contract against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	t.Run("EnsureSquadCreatesOnce", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		first, err := s.EnsureSquad(ctx, "101", base)
		if err != nil {
			t.Fatalf("ensure: %v", err)
		}
		if first.SquadID != "101" || first.IsLicensed || !first.CreatedAt.Equal(base) {
			t.Fatalf("unexpected record %+v", first)
		}
		second, err := s.EnsureSquad(ctx, "101", base.Add(time.Hour))
		if err != nil {
			t.Fatalf("ensure again: %v", err)
		}
		if !second.CreatedAt.Equal(base) {
			t.Fatalf("created_at changed: %s", second.CreatedAt)
		}
	})

	t.Run("GetSquadMissing", func(t *testing.T) {
		s := newStore(t)
		if _, err := s.GetSquad(context.Background(), "999"); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("SetLicensedIsIdempotent", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		if err := s.SetLicensed(ctx, "102"); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("expected ErrNotFound before ensure, got %v", err)
		}
		if _, err := s.EnsureSquad(ctx, "102", base); err != nil {
			t.Fatalf("ensure: %v", err)
		}
		for i := 0; i < 2; i++ {
			if err := s.SetLicensed(ctx, "102"); err != nil {
				t.Fatalf("set licensed %d: %v", i, err)
			}
		}
		m, err := s.GetSquad(ctx, "102")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if !m.IsLicensed || !m.CreatedAt.Equal(base) {
			t.Fatalf("unexpected record %+v", m)
		}
	})

	t.Run("PlayersEmptyForUnknownSquad", func(t *testing.T) {
		s := newStore(t)
		got, err := s.Players(context.Background(), "103")
		if err != nil {
			t.Fatalf("players: %v", err)
		}
		if got == nil || len(got) != 0 {
			t.Fatalf("expected empty non-nil roster, got %#v", got)
		}
	})

	t.Run("ReplacePlayersRoundTripsInOrder", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		list := []players.Player{
			{ID: "z", Name: "Zed", Rating: 10, Position: players.Attack, IsSelected: true},
			{ID: "a", Name: "Ann", Rating: 1, Position: players.Defence},
			{ID: "m", Name: "Mo", Rating: 6, Position: players.Midfield, IsSelected: true},
		}
		if err := s.ReplacePlayers(ctx, "104", list); err != nil {
			t.Fatalf("replace: %v", err)
		}
		got, err := s.Players(ctx, "104")
		if err != nil {
			t.Fatalf("players: %v", err)
		}
		if len(got) != len(list) {
			t.Fatalf("expected %d players, got %d", len(list), len(got))
		}
		for i := range list {
			if got[i] != list[i] {
				t.Fatalf("player %d: expected %+v, got %+v", i, list[i], got[i])
			}
		}

		if err := s.ReplacePlayers(ctx, "104", list[1:2]); err != nil {
			t.Fatalf("replace again: %v", err)
		}
		got, _ = s.Players(ctx, "104")
		if len(got) != 1 || got[0].ID != "a" {
			t.Fatalf("expected wholesale overwrite, got %+v", got)
		}

		if err := s.ReplacePlayers(ctx, "104", nil); err != nil {
			t.Fatalf("clear: %v", err)
		}
		got, _ = s.Players(ctx, "104")
		if len(got) != 0 {
			t.Fatalf("expected empty roster, got %+v", got)
		}
	})

	t.Run("RostersAreScopedBySquad", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		shared := players.Player{ID: "same", Name: "One", Rating: 5, Position: players.Midfield}
		if err := s.ReplacePlayers(ctx, "105", []players.Player{shared}); err != nil {
			t.Fatalf("replace 105: %v", err)
		}
		shared.Name = "Two"
		if err := s.ReplacePlayers(ctx, "106", []players.Player{shared}); err != nil {
			t.Fatalf("replace 106: %v", err)
		}
		a, _ := s.Players(ctx, "105")
		b, _ := s.Players(ctx, "106")
		if len(a) != 1 || a[0].Name != "One" || len(b) != 1 || b[0].Name != "Two" {
			t.Fatalf("rosters leaked across squads: %+v / %+v", a, b)
		}
	})

	t.Run("ListSquadsInCreationOrder", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		if _, err := s.EnsureSquad(ctx, "108", base.Add(time.Minute)); err != nil {
			t.Fatalf("ensure: %v", err)
		}
		if _, err := s.EnsureSquad(ctx, "107", base); err != nil {
			t.Fatalf("ensure: %v", err)
		}

		list, err := s.ListSquads(ctx)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(list) != 2 || list[0].SquadID != "107" || list[1].SquadID != "108" {
			t.Fatalf("expected squads in creation order, got %+v", list)
		}
	})

	t.Run("EnsureSquadRefreshesLastSeen", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		if _, err := s.EnsureSquad(ctx, "109", base); err != nil {
			t.Fatalf("ensure: %v", err)
		}
		later := base.Add(5 * time.Hour)
		m, err := s.EnsureSquad(ctx, "109", later)
		if err != nil {
			t.Fatalf("ensure again: %v", err)
		}
		if !m.CreatedAt.Equal(base) || !m.LastSeen().Equal(later) {
			t.Fatalf("expected created_at kept and last seen moved, got %+v", m)
		}
		m, _ = s.EnsureSquad(ctx, "109", base.Add(time.Hour))
		if !m.LastSeen().Equal(later) {
			t.Fatalf("expected last seen never to move back, got %s", m.LastSeen())
		}
	})

	t.Run("PurgeRosterKeepsSquadRecord", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		if _, err := s.EnsureSquad(ctx, "110", base); err != nil {
			t.Fatalf("ensure: %v", err)
		}
		if err := s.ReplacePlayers(ctx, "110", sample()); err != nil {
			t.Fatalf("replace: %v", err)
		}

		cutoff := base.Add(time.Hour)
		purged, err := s.PurgeRoster(ctx, "110", cutoff, cutoff)
		if err != nil || !purged {
			t.Fatalf("expected purge, got %v (%v)", purged, err)
		}
		if got, _ := s.Players(ctx, "110"); len(got) != 0 {
			t.Fatalf("expected roster cleared, got %+v", got)
		}
		purged, err = s.PurgeRoster(ctx, "110", cutoff, cutoff)
		if err != nil || purged {
			t.Fatalf("expected empty roster to report nothing purged, got %v (%v)", purged, err)
		}

		m, err := s.EnsureSquad(ctx, "110", base.Add(200*time.Hour))
		if err != nil {
			t.Fatalf("ensure after purge: %v", err)
		}
		if !m.CreatedAt.Equal(base) || m.IsLicensed {
			t.Fatalf("expected the original record after purge, got %+v", m)
		}
	})

	t.Run("PurgeRosterGuards", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		for _, id := range []string{"111", "112", "113"} {
			if _, err := s.EnsureSquad(ctx, id, base); err != nil {
				t.Fatalf("ensure %s: %v", id, err)
			}
			if err := s.ReplacePlayers(ctx, id, sample()); err != nil {
				t.Fatalf("replace %s: %v", id, err)
			}
		}
		if err := s.SetLicensed(ctx, "111"); err != nil {
			t.Fatalf("license: %v", err)
		}
		if _, err := s.EnsureSquad(ctx, "112", base.Add(3*time.Hour)); err != nil {
			t.Fatalf("visit: %v", err)
		}
		if err := s.ReplacePlayers(ctx, "114", sample()); err != nil {
			t.Fatalf("replace unknown: %v", err)
		}

		cases := []struct {
			id, why               string
			createdBy, seenBefore time.Time
		}{
			{"111", "licensed", base.Add(time.Hour), base.Add(time.Hour)},
			{"112", "seen since the cutoff", base.Add(time.Hour), base.Add(2 * time.Hour)},
			{"113", "created after the cutoff", base.Add(-time.Minute), base.Add(2 * time.Hour)},
			{"114", "no squad record", base.Add(time.Hour), base.Add(time.Hour)},
		}
		for _, tc := range cases {
			purged, err := s.PurgeRoster(ctx, tc.id, tc.createdBy, tc.seenBefore)
			if err != nil || purged {
				t.Fatalf("%s: expected no purge, got %v (%v)", tc.why, purged, err)
			}
			if got, _ := s.Players(ctx, tc.id); len(got) != len(sample()) {
				t.Fatalf("%s: expected roster kept, got %+v", tc.why, got)
			}
		}
	})

	t.Run("Ping", func(t *testing.T) {
		s := newStore(t)
		if err := s.Ping(context.Background()); err != nil {
			t.Fatalf("ping: %v", err)
		}
	})
}

func sample() []players.Player {
	return []players.Player{
		{ID: "p1", Name: "Pat", Rating: 7, Position: players.Defence, IsSelected: true},
		{ID: "p2", Name: "Sam", Rating: 4, Position: players.Attack},
	}
}
