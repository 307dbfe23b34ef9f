package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/preston-bernstein/gaffer-service/internal/domain/players"
	"github.com/preston-bernstein/gaffer-service/internal/store"
	"github.com/preston-bernstein/gaffer-service/internal/store/storetest"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "squad.db")
	s, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := Open(context.Background(), "  "); err == nil {
		t.Fatal("expected empty path error")
	}
}

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return openTempStore(t)
	})
}

func TestReopenKeepsDataAndSkipsAppliedMigrations(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "squad.db")
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

	first, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := first.EnsureSquad(ctx, "321", now); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if err := first.ReplacePlayers(ctx, "321", []players.Player{{ID: "a", Name: "A", Rating: 7, Position: players.Attack, IsSelected: true}}); err != nil {
		t.Fatalf("replace: %v", err)
	}
	_ = first.Close()

	second, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()

	m, err := second.GetSquad(ctx, "321")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !m.CreatedAt.Equal(now) {
		t.Fatalf("created_at = %s, want %s", m.CreatedAt, now)
	}
	roster, _ := second.Players(ctx, "321")
	if len(roster) != 1 || !roster[0].IsSelected {
		t.Fatalf("unexpected roster %+v", roster)
	}

	var applied int
	if err := second.sqlDB.QueryRow(`SELECT COUNT(*) FROM ` + migrationTable).Scan(&applied); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if applied != 2 {
		t.Fatalf("expected 2 applied migrations, got %d", applied)
	}
}

func TestReplacePlayersRollsBackOnDuplicateID(t *testing.T) {
	t.Parallel()

	s := openTempStore(t)
	ctx := context.Background()
	keep := []players.Player{{ID: "k", Name: "Keep", Rating: 5, Position: players.Midfield}}
	if err := s.ReplacePlayers(ctx, "1", keep); err != nil {
		t.Fatalf("seed roster: %v", err)
	}

	dup := []players.Player{
		{ID: "d", Name: "One", Rating: 5, Position: players.Midfield},
		{ID: "d", Name: "Two", Rating: 5, Position: players.Midfield},
	}
	if err := s.ReplacePlayers(ctx, "1", dup); err == nil {
		t.Fatal("expected primary key violation")
	}
	got, _ := s.Players(ctx, "1")
	if len(got) != 1 || got[0].ID != "k" {
		t.Fatalf("expected previous roster intact, got %+v", got)
	}
}

func TestClosedStoreReportsErrors(t *testing.T) {
	t.Parallel()

	var nilStore *Store
	if err := nilStore.Ping(context.Background()); !errors.Is(err, store.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if err := nilStore.Close(); err != nil {
		t.Fatalf("expected nil close on nil store, got %v", err)
	}
}

func TestUpSection(t *testing.T) {
	t.Parallel()

	content := "-- +migrate Up\nCREATE TABLE x (id INTEGER);\n-- +migrate Down\nDROP TABLE x;\n"
	if got := upSection(content); got != "\nCREATE TABLE x (id INTEGER);\n" {
		t.Fatalf("unexpected up section %q", got)
	}
	if got := upSection("SELECT 1;"); got != "SELECT 1;" {
		t.Fatalf("expected whole file without markers, got %q", got)
	}
}
