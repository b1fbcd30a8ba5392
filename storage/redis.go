package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"partyrooms/domain"
	"partyrooms/game"
)

const (
	redisStatePrefix = "room:"
	redisAlarmsKey   = "room:alarms"
)

// RedisStore keeps each room blob under room:<key> with a sliding TTL, and
// every pending alarm in one sorted set scored by fire time.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(ctx context.Context, url string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %w", domain.UnexpectedCacheError, err)
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

func NewRedisStoreFromClient(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func wrapCache(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.UnexpectedCacheError, err)
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	blob, err := s.client.Get(ctx, redisStatePrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, wrapCache(err)
	}
	return blob, nil
}

func (s *RedisStore) Put(ctx context.Context, key string, blob []byte) error {
	if err := s.client.Set(ctx, redisStatePrefix+key, blob, s.ttl).Err(); err != nil {
		return wrapCache(err)
	}
	return nil
}

func (s *RedisStore) SetAlarm(ctx context.Context, key string, at time.Time) error {
	z := redis.Z{Score: float64(at.UnixMilli()), Member: key}
	if err := s.client.ZAdd(ctx, redisAlarmsKey, z).Err(); err != nil {
		return wrapCache(err)
	}
	return nil
}

func (s *RedisStore) DeleteAlarm(ctx context.Context, key string) error {
	if err := s.client.ZRem(ctx, redisAlarmsKey, key).Err(); err != nil {
		return wrapCache(err)
	}
	return nil
}

func (s *RedisStore) PendingAlarms(ctx context.Context) ([]game.Alarm, error) {
	zs, err := s.client.ZRangeWithScores(ctx, redisAlarmsKey, 0, -1).Result()
	if err != nil {
		return nil, wrapCache(err)
	}
	alarms := make([]game.Alarm, 0, len(zs))
	for _, z := range zs {
		key, ok := z.Member.(string)
		if !ok || !strings.Contains(key, "/") {
			continue
		}
		alarms = append(alarms, game.Alarm{Key: key, FireAt: time.UnixMilli(int64(z.Score))})
	}
	return alarms, nil
}
