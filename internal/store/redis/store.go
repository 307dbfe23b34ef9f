// Package redis provides the Redis-backed squad store.
//
// Each squad is a hash at <prefix>:squad:<id> with created_at and
// last_seen_at (unix ms) and is_licensed (0/1) fields, its roster is a JSON array at <prefix>:players:<id>,
// and <prefix>:squads is the set of known squad ids.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"github.com/preston-bernstein/gaffer-service/internal/domain/players"
	"github.com/preston-bernstein/gaffer-service/internal/domain/squads"
	"github.com/preston-bernstein/gaffer-service/internal/store"
	"github.com/preston-bernstein/gaffer-service/internal/timeutil"
)

const (
	// DefaultPrefix namespaces every key written by the store.
	DefaultPrefix = "gaffer"

	fieldCreatedAt  = "created_at"
	fieldIsLicensed = "is_licensed"
	fieldLastSeenAt = "last_seen_at"

	maxWatchAttempts = 3
)

// Store persists squads in Redis.
type Store struct {
	client *goredis.Client
	prefix string
}

var _ store.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithPrefix changes the key namespace.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// Open connects to the redis:// or rediss:// URL and pings the server.
func Open(ctx context.Context, rawURL string, opts ...Option) (*Store, error) {
	options, err := goredis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	s := New(goredis.NewClient(options), opts...)
	if err := s.Ping(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return s, nil
}

// New wraps an existing client.
func New(client *goredis.Client, opts ...Option) *Store {
	s := &Store{client: client, prefix: DefaultPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) EnsureSquad(ctx context.Context, squadID string, now time.Time) (squads.Metadata, error) {
	key := s.squadKey(squadID)
	ms := timeutil.ToMillis(now)
	touch := func(tx *goredis.Tx) error {
		seen, err := tx.HGet(ctx, key, fieldLastSeenAt).Int64()
		if err != nil && err != goredis.Nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.HSetNX(ctx, key, fieldCreatedAt, ms)
			pipe.HSetNX(ctx, key, fieldIsLicensed, 0)
			if ms > seen {
				pipe.HSet(ctx, key, fieldLastSeenAt, ms)
			}
			pipe.SAdd(ctx, s.indexKey(), squadID)
			return nil
		})
		return err
	}
	var err error
	for attempt := 0; attempt < maxWatchAttempts; attempt++ {
		if err = s.client.Watch(ctx, touch, key); !errors.Is(err, goredis.TxFailedErr) {
			break
		}
	}
	if err != nil {
		return squads.Metadata{}, fmt.Errorf("ensure squad: %w", err)
	}
	return s.GetSquad(ctx, squadID)
}

func (s *Store) GetSquad(ctx context.Context, squadID string) (squads.Metadata, error) {
	fields, err := s.client.HGetAll(ctx, s.squadKey(squadID)).Result()
	if err != nil {
		return squads.Metadata{}, fmt.Errorf("get squad: %w", err)
	}
	if len(fields) == 0 {
		return squads.Metadata{}, store.ErrNotFound
	}
	return parseSquad(squadID, fields)
}

// SetLicensed flips the licence flag while watching the squad key so it never
// creates a partial hash for an unknown squad.
func (s *Store) SetLicensed(ctx context.Context, squadID string) error {
	key := s.squadKey(squadID)
	err := s.client.Watch(ctx, func(tx *goredis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n == 0 {
			return store.ErrNotFound
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.HSet(ctx, key, fieldIsLicensed, 1)
			return nil
		})
		return err
	}, key)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("set licensed: %w", err)
	}
	return err
}

func (s *Store) Players(ctx context.Context, squadID string) ([]players.Player, error) {
	raw, err := s.client.Get(ctx, s.playersKey(squadID)).Bytes()
	if err == goredis.Nil {
		return []players.Player{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get players: %w", err)
	}
	out := []players.Player{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode players: %w", err)
	}
	return out, nil
}

// ReplacePlayers overwrites the roster value inside MULTI/EXEC.
func (s *Store) ReplacePlayers(ctx context.Context, squadID string, list []players.Player) error {
	key := s.playersKey(squadID)
	var payload []byte
	if len(list) > 0 {
		var err error
		if payload, err = json.Marshal(list); err != nil {
			return fmt.Errorf("encode players: %w", err)
		}
	}
	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		if payload == nil {
			pipe.Del(ctx, key)
			return nil
		}
		pipe.Set(ctx, key, payload, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("replace players: %w", err)
	}
	return nil
}

func (s *Store) ListSquads(ctx context.Context) ([]squads.Metadata, error) {
	ids, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list squads: %w", err)
	}

	cmds := make([]*goredis.StringStringMapCmd, len(ids))
	_, err = s.client.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, s.squadKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list squads: %w", err)
	}

	out := make([]squads.Metadata, 0, len(ids))
	for i, id := range ids {
		fields := cmds[i].Val()
		if len(fields) == 0 {
			continue
		}
		m, err := parseSquad(id, fields)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].SquadID < out[j].SquadID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// PurgeRoster watches the squad hash and the roster key, so a concurrent
// save, purchase or visit aborts the delete and the roster is kept.
func (s *Store) PurgeRoster(ctx context.Context, squadID string, createdBy, seenBefore time.Time) (bool, error) {
	squadKey, rosterKey := s.squadKey(squadID), s.playersKey(squadID)
	purged := false
	err := s.client.Watch(ctx, func(tx *goredis.Tx) error {
		fields, err := tx.HGetAll(ctx, squadKey).Result()
		if err != nil || len(fields) == 0 {
			return err
		}
		m, err := parseSquad(squadID, fields)
		if err != nil {
			return err
		}
		if m.IsLicensed || m.CreatedAt.After(createdBy) || !m.LastSeen().Before(seenBefore) {
			return nil
		}
		n, err := tx.Exists(ctx, rosterKey).Result()
		if err != nil || n == 0 {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Del(ctx, rosterKey)
			return nil
		})
		if err == nil {
			purged = true
		}
		return err
	}, squadKey, rosterKey)
	if errors.Is(err, goredis.TxFailedErr) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("purge roster: %w", err)
	}
	return purged, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.client == nil {
		return store.ErrUnavailable
	}
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *Store) squadKey(id string) string   { return s.prefix + ":squad:" + id }
func (s *Store) playersKey(id string) string { return s.prefix + ":players:" + id }
func (s *Store) indexKey() string            { return s.prefix + ":squads" }

func parseSquad(squadID string, fields map[string]string) (squads.Metadata, error) {
	createdAt, err := strconv.ParseInt(fields[fieldCreatedAt], 10, 64)
	if err != nil {
		return squads.Metadata{}, fmt.Errorf("squad %s: bad %s %q: %w", squadID, fieldCreatedAt, fields[fieldCreatedAt], err)
	}
	m := squads.Metadata{
		SquadID:    squadID,
		CreatedAt:  timeutil.FromMillis(createdAt),
		IsLicensed: fields[fieldIsLicensed] == "1",
	}
	if seen, err := strconv.ParseInt(fields[fieldLastSeenAt], 10, 64); err == nil && seen > 0 {
		m.LastSeenAt = timeutil.FromMillis(seen)
	}
	return m, nil
}
