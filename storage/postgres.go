package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"partyrooms/domain"
	"partyrooms/game"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

// wrap keeps context errors as they are and tags everything else as a
// database failure.
func wrap(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
}

func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	var blob []byte
	err := s.pool.QueryRow(ctx, "SELECT blob FROM room_states WHERE room_key = $1", key).Scan(&blob)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, wrap(err)
	}
	return blob, nil
}

func (s *PostgresStore) Put(ctx context.Context, key string, blob []byte) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO room_states (room_key, blob, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (room_key) DO UPDATE SET blob = EXCLUDED.blob, updated_at = now()`,
		key, blob)
	if err != nil {
		return wrap(err)
	}
	return nil
}

func (s *PostgresStore) SetAlarm(ctx context.Context, key string, at time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO room_alarms (room_key, fire_at) VALUES ($1, $2)
		ON CONFLICT (room_key) DO UPDATE SET fire_at = EXCLUDED.fire_at`,
		key, at)
	if err != nil {
		return wrap(err)
	}
	return nil
}

func (s *PostgresStore) DeleteAlarm(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, "DELETE FROM room_alarms WHERE room_key = $1", key); err != nil {
		return wrap(err)
	}
	return nil
}

func (s *PostgresStore) PendingAlarms(ctx context.Context) ([]game.Alarm, error) {
	rows, err := s.pool.Query(ctx, "SELECT room_key, fire_at FROM room_alarms ORDER BY fire_at")
	if err != nil {
		return nil, wrap(err)
	}
	alarms, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (game.Alarm, error) {
		var a game.Alarm
		err := row.Scan(&a.Key, &a.FireAt)
		return a, err
	})
	if err != nil {
		return nil, wrap(err)
	}
	return alarms, nil
}

// PruneStates removes rooms untouched since before, with their alarms, and
// returns how many rooms went.
func (s *PostgresStore) PruneStates(ctx context.Context, before time.Time) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `
		WITH gone AS (
			DELETE FROM room_states WHERE updated_at < $1 RETURNING room_key
		), alarms AS (
			DELETE FROM room_alarms WHERE room_key IN (SELECT room_key FROM gone)
		)
		SELECT count(*) FROM gone`,
		before).Scan(&n)
	if err != nil {
		return 0, wrap(err)
	}
	return n, nil
}

// RandomWords implements content.WordSource on the words table.
func (s *PostgresStore) RandomWords(ctx context.Context, category string, n int) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT word FROM words WHERE category = $1 ORDER BY random() LIMIT $2", category, n)
	if err != nil {
		return nil, wrap(err)
	}
	words, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, wrap(err)
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("%w: category %q", domain.ErrNoContent, category)
	}
	return words, nil
}

// SeedWords inserts words into category, skipping ones already present.
func (s *PostgresStore) SeedWords(ctx context.Context, category string, words []string) error {
	batch := &pgx.Batch{}
	for _, w := range words {
		batch.Queue("INSERT INTO words (category, word) VALUES ($1, $2) ON CONFLICT DO NOTHING", category, w)
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return wrap(err)
	}
	return nil
}

func (s *PostgresStore) HasWords(ctx context.Context, category string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM words WHERE category = $1)", category).Scan(&exists)
	if err != nil {
		return false, wrap(err)
	}
	return exists, nil
}
