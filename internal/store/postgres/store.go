// Package postgres provides the PostgreSQL-backed squad store built on gorm.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/preston-bernstein/gaffer-service/internal/domain/players"
	"github.com/preston-bernstein/gaffer-service/internal/domain/squads"
	"github.com/preston-bernstein/gaffer-service/internal/store"
	"github.com/preston-bernstein/gaffer-service/internal/timeutil"
)

// Rows mirror the sqlite schema: epoch-ms timestamps and 0/1 flags.
type squadRow struct {
	SquadID      string `gorm:"column:squad_id;primaryKey"`
	CreatedAtMS  int64  `gorm:"column:created_at;not null"`
	IsLicensed   int16  `gorm:"column:is_licensed;type:smallint;not null;default:0"`
	LastSeenAtMS int64  `gorm:"column:last_seen_at;not null;default:0"`
}

func (squadRow) TableName() string { return "squad_metadata" }

type playerRow struct {
	ID         string `gorm:"column:id;primaryKey"`
	SquadID    string `gorm:"column:squad_id;primaryKey;index:idx_players_squad_seq,priority:1"`
	Name       string `gorm:"column:name;not null"`
	Rating     int    `gorm:"column:rating;not null"`
	Position   string `gorm:"column:position;not null"`
	IsSelected int16  `gorm:"column:isSelected;type:smallint;not null;default:0"`
	Seq        int    `gorm:"column:seq;not null;index:idx_players_squad_seq,priority:2"`
}

func (playerRow) TableName() string { return "players" }

// Store persists squads in PostgreSQL.
type Store struct {
	db *gorm.DB
}

var _ store.Store = (*Store)(nil)

// IsURL reports whether dsn looks like a PostgreSQL connection URL.
func IsURL(dsn string) bool {
	dsn = strings.ToLower(strings.TrimSpace(dsn))
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// Open connects to dsn and migrates the schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("database url is required")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	s := &Store{db: db}
	if err := s.Ping(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := db.WithContext(ctx).AutoMigrate(&squadRow{}, &playerRow{}); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate postgres: %w", err)
	}
	return s, nil
}

func (s *Store) EnsureSquad(ctx context.Context, squadID string, now time.Time) (squads.Metadata, error) {
	ms := timeutil.ToMillis(now)
	row := squadRow{SquadID: squadID, CreatedAtMS: ms, LastSeenAtMS: ms}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "squad_id"}},
			DoUpdates: clause.Set{{
				Column: clause.Column{Name: "last_seen_at"},
				Value:  gorm.Expr("GREATEST(squad_metadata.last_seen_at, EXCLUDED.last_seen_at)"),
			}},
		}).
		Create(&row).Error
	if err != nil {
		return squads.Metadata{}, fmt.Errorf("ensure squad: %w", err)
	}
	return s.GetSquad(ctx, squadID)
}

func (s *Store) GetSquad(ctx context.Context, squadID string) (squads.Metadata, error) {
	var row squadRow
	err := s.db.WithContext(ctx).Where("squad_id = ?", squadID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return squads.Metadata{}, store.ErrNotFound
	}
	if err != nil {
		return squads.Metadata{}, fmt.Errorf("get squad: %w", err)
	}
	return row.metadata(), nil
}

func (s *Store) SetLicensed(ctx context.Context, squadID string) error {
	res := s.db.WithContext(ctx).Model(&squadRow{}).Where("squad_id = ?", squadID).Update("is_licensed", 1)
	if res.Error != nil {
		return fmt.Errorf("set licensed: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) Players(ctx context.Context, squadID string) ([]players.Player, error) {
	var rows []playerRow
	if err := s.db.WithContext(ctx).Where("squad_id = ?", squadID).Order("seq").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	out := make([]players.Player, 0, len(rows))
	for _, r := range rows {
		out = append(out, players.Player{
			ID:         r.ID,
			Name:       r.Name,
			Rating:     r.Rating,
			Position:   players.Position(r.Position),
			IsSelected: r.IsSelected != 0,
		})
	}
	return out, nil
}

// ReplacePlayers deletes the squad's roster and inserts list in a single transaction.
func (s *Store) ReplacePlayers(ctx context.Context, squadID string, list []players.Player) error {
	rows := make([]playerRow, 0, len(list))
	for i, p := range list {
		rows = append(rows, playerRow{
			ID:         p.ID,
			SquadID:    squadID,
			Name:       p.Name,
			Rating:     p.Rating,
			Position:   string(p.Position),
			IsSelected: flag(p.IsSelected),
			Seq:        i,
		})
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("squad_id = ?", squadID).Delete(&playerRow{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return fmt.Errorf("replace players: %w", err)
	}
	return nil
}

func (s *Store) ListSquads(ctx context.Context) ([]squads.Metadata, error) {
	var rows []squadRow
	if err := s.db.WithContext(ctx).Order("created_at").Order("squad_id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list squads: %w", err)
	}
	out := make([]squads.Metadata, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.metadata())
	}
	return out, nil
}

// PurgeRoster deletes the roster with a single guarded DELETE.
func (s *Store) PurgeRoster(ctx context.Context, squadID string, createdBy, seenBefore time.Time) (bool, error) {
	res := s.db.WithContext(ctx).
		Where("squad_id = ?", squadID).
		Where(`EXISTS (SELECT 1 FROM squad_metadata m
			WHERE m.squad_id = ? AND m.is_licensed = 0 AND m.created_at <= ?
			AND GREATEST(m.last_seen_at, m.created_at) < ?)`,
			squadID, timeutil.ToMillis(createdBy), timeutil.ToMillis(seenBefore)).
		Delete(&playerRow{})
	if res.Error != nil {
		return false, fmt.Errorf("purge roster: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return store.ErrUnavailable
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (r squadRow) metadata() squads.Metadata {
	m := squads.Metadata{
		SquadID:    r.SquadID,
		CreatedAt:  timeutil.FromMillis(r.CreatedAtMS),
		IsLicensed: r.IsLicensed != 0,
	}
	if r.LastSeenAtMS > 0 {
		m.LastSeenAt = timeutil.FromMillis(r.LastSeenAtMS)
	}
	return m
}

func flag(v bool) int16 {
	if v {
		return 1
	}
	return 0
}
