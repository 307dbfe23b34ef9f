// Package sqlite provides the SQLite-backed squad store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/preston-bernstein/gaffer-service/internal/domain/players"
	"github.com/preston-bernstein/gaffer-service/internal/domain/squads"
	"github.com/preston-bernstein/gaffer-service/internal/store"
	"github.com/preston-bernstein/gaffer-service/internal/store/sqlite/migrations"
	"github.com/preston-bernstein/gaffer-service/internal/timeutil"
)

// Store persists squads in a SQLite database file.
type Store struct {
	sqlDB *sql.DB
}

var _ store.Store = (*Store)(nil)

// Open opens (creating if needed) the database at path and applies the embedded migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

func (s *Store) EnsureSquad(ctx context.Context, squadID string, now time.Time) (squads.Metadata, error) {
	if err := s.ready(ctx); err != nil {
		return squads.Metadata{}, err
	}
	if _, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO squad_metadata (squad_id, created_at, is_licensed, last_seen_at) VALUES (?, ?, 0, ?)
		 ON CONFLICT(squad_id) DO UPDATE SET last_seen_at = MAX(last_seen_at, excluded.last_seen_at)`,
		squadID, timeutil.ToMillis(now), timeutil.ToMillis(now),
	); err != nil {
		return squads.Metadata{}, fmt.Errorf("ensure squad: %w", err)
	}
	return s.GetSquad(ctx, squadID)
}

func (s *Store) GetSquad(ctx context.Context, squadID string) (squads.Metadata, error) {
	if err := s.ready(ctx); err != nil {
		return squads.Metadata{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT squad_id, created_at, is_licensed, last_seen_at FROM squad_metadata WHERE squad_id = ?`, squadID)
	m, err := scanSquad(row)
	if errors.Is(err, sql.ErrNoRows) {
		return squads.Metadata{}, store.ErrNotFound
	}
	if err != nil {
		return squads.Metadata{}, fmt.Errorf("get squad: %w", err)
	}
	return m, nil
}

func (s *Store) SetLicensed(ctx context.Context, squadID string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	res, err := s.sqlDB.ExecContext(ctx, `UPDATE squad_metadata SET is_licensed = 1 WHERE squad_id = ?`, squadID)
	if err != nil {
		return fmt.Errorf("set licensed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set licensed: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) Players(ctx context.Context, squadID string) ([]players.Player, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, name, rating, position, isSelected FROM players WHERE squad_id = ? ORDER BY seq`, squadID)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	defer rows.Close()

	out := []players.Player{}
	for rows.Next() {
		var (
			p        players.Player
			position string
			selected int
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Rating, &position, &selected); err != nil {
			return nil, fmt.Errorf("scan player: %w", err)
		}
		p.Position = players.Position(position)
		p.IsSelected = selected != 0
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	return out, nil
}

// ReplacePlayers deletes the squad's roster and inserts list in a single transaction.
func (s *Store) ReplacePlayers(ctx context.Context, squadID string, list []players.Player) (err error) {
	if err := s.ready(ctx); err != nil {
		return err
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM players WHERE squad_id = ?`, squadID); err != nil {
		return fmt.Errorf("clear roster: %w", err)
	}
	if len(list) > 0 {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO players (id, squad_id, name, rating, position, isSelected, seq) VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()
		for i, p := range list {
			if _, err = stmt.ExecContext(ctx, p.ID, squadID, p.Name, p.Rating, string(p.Position), boolToInt(p.IsSelected), i); err != nil {
				return fmt.Errorf("insert player %s: %w", p.ID, err)
			}
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit replace: %w", err)
	}
	return nil
}

func (s *Store) ListSquads(ctx context.Context) ([]squads.Metadata, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT squad_id, created_at, is_licensed, last_seen_at FROM squad_metadata ORDER BY created_at, squad_id`)
	if err != nil {
		return nil, fmt.Errorf("list squads: %w", err)
	}
	defer rows.Close()

	out := []squads.Metadata{}
	for rows.Next() {
		m, err := scanSquad(rows)
		if err != nil {
			return nil, fmt.Errorf("scan squad: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// PurgeRoster deletes the roster in one statement guarded by the squad's
// licence, age and last-seen columns.
func (s *Store) PurgeRoster(ctx context.Context, squadID string, createdBy, seenBefore time.Time) (bool, error) {
	if err := s.ready(ctx); err != nil {
		return false, err
	}
	res, err := s.sqlDB.ExecContext(ctx,
		`DELETE FROM players WHERE squad_id = ? AND EXISTS (
		     SELECT 1 FROM squad_metadata m
		     WHERE m.squad_id = ? AND m.is_licensed = 0 AND m.created_at <= ?
		       AND MAX(m.last_seen_at, m.created_at) < ?)`,
		squadID, squadID, timeutil.ToMillis(createdBy), timeutil.ToMillis(seenBefore),
	)
	if err != nil {
		return false, fmt.Errorf("purge roster: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("purge roster: %w", err)
	}
	return n > 0, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.sqlDB == nil {
		return store.ErrUnavailable
	}
	return s.sqlDB.PingContext(ctx)
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return store.ErrUnavailable
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSquad(row scanner) (squads.Metadata, error) {
	var (
		m         squads.Metadata
		createdAt int64
		licensed  int
		lastSeen  int64
	)
	if err := row.Scan(&m.SquadID, &createdAt, &licensed, &lastSeen); err != nil {
		return squads.Metadata{}, err
	}
	m.CreatedAt = timeutil.FromMillis(createdAt)
	m.IsLicensed = licensed != 0
	if lastSeen > 0 {
		m.LastSeenAt = timeutil.FromMillis(lastSeen)
	}
	return m, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
