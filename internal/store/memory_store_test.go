package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/preston-bernstein/gaffer-service/internal/domain/players"
)

var now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestMemoryStoreEnsureSquadIsIdempotent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	first, err := s.EnsureSquad(ctx, "123", now)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if first.SquadID != "123" || first.IsLicensed || !first.CreatedAt.Equal(now) {
		t.Fatalf("unexpected record %+v", first)
	}

	second, err := s.EnsureSquad(ctx, "123", now.Add(time.Hour))
	if err != nil {
		t.Fatalf("ensure again: %v", err)
	}
	if !second.CreatedAt.Equal(now) {
		t.Fatalf("expected creation time to stick, got %s", second.CreatedAt)
	}
}

func TestMemoryStoreGetSquadMissing(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.GetSquad(context.Background(), "404"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreSetLicensed(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.SetLicensed(ctx, "1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown squad, got %v", err)
	}
	_, _ = s.EnsureSquad(ctx, "1", now)
	for i := 0; i < 2; i++ {
		if err := s.SetLicensed(ctx, "1"); err != nil {
			t.Fatalf("license %d: %v", i, err)
		}
	}
	m, _ := s.GetSquad(ctx, "1")
	if !m.IsLicensed || !m.CreatedAt.Equal(now) {
		t.Fatalf("unexpected record after licensing %+v", m)
	}
}

func TestMemoryStoreReplacePlayersKeepsOrderAndCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	list := []players.Player{
		{ID: "b", Name: "B", Rating: 3, Position: players.Attack},
		{ID: "a", Name: "A", Rating: 9, Position: players.Defence, IsSelected: true},
	}
	if err := s.ReplacePlayers(ctx, "7", list); err != nil {
		t.Fatalf("replace: %v", err)
	}
	list[0].Name = "mutated"

	got, err := s.Players(ctx, "7")
	if err != nil {
		t.Fatalf("players: %v", err)
	}
	if len(got) != 2 || got[0].ID != "b" || got[0].Name != "B" || got[1].ID != "a" {
		t.Fatalf("unexpected roster %+v", got)
	}
	got[1].Rating = 1
	again, _ := s.Players(ctx, "7")
	if again[1].Rating != 9 {
		t.Fatalf("expected store to remain unchanged, got %d", again[1].Rating)
	}

	if err := s.ReplacePlayers(ctx, "7", nil); err != nil {
		t.Fatalf("clear: %v", err)
	}
	empty, _ := s.Players(ctx, "7")
	if empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty non-nil roster, got %#v", empty)
	}
}

func TestMemoryStoreListAndPurge(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_, _ = s.EnsureSquad(ctx, "2", now.Add(time.Minute))
	_, _ = s.EnsureSquad(ctx, "1", now)
	_ = s.ReplacePlayers(ctx, "1", []players.Player{{ID: "x", Name: "X", Rating: 5, Position: players.Midfield}})

	list, err := s.ListSquads(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].SquadID != "1" || list[1].SquadID != "2" {
		t.Fatalf("expected creation order, got %+v", list)
	}

	purged, err := s.PurgeRoster(ctx, "1", now, now.Add(time.Second))
	if err != nil || !purged {
		t.Fatalf("expected purge, got %v (%v)", purged, err)
	}
	if roster, _ := s.Players(ctx, "1"); len(roster) != 0 {
		t.Fatalf("expected roster removed, got %+v", roster)
	}
	m, err := s.GetSquad(ctx, "1")
	if err != nil || !m.CreatedAt.Equal(now) {
		t.Fatalf("expected squad record kept, got %+v (%v)", m, err)
	}
}

func TestMemoryStoreClosed(t *testing.T) {
	s := NewMemoryStore()
	_ = s.Close()
	if err := s.Ping(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if _, err := s.EnsureSquad(context.Background(), "1", now); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestMemoryStoreHonoursCancelledContext(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Players(ctx, "1"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
