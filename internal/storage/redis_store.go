package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisOpTimeout = 5 * time.Second

// redisStore keeps seen keys in Redis. A marker key stands in for the store file:
// when it is absent at open time the run is the first one.
type redisStore struct {
	client   *redis.Client
	prefix   string
	ttl      time.Duration
	firstRun bool
}

func openRedis(opts Options) (Store, error) {
	if strings.TrimSpace(opts.RedisAddr) == "" {
		return nil, fmt.Errorf("redis storage requires an address")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.RedisAddr,
		Password: opts.RedisPassword,
		DB:       opts.RedisDB,
	})
	store, err := newRedisStore(client, opts)
	if err != nil {
		client.Close()
		return nil, err
	}
	return store, nil
}

func newRedisStore(client *redis.Client, opts Options) (*redisStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	s := &redisStore{client: client, prefix: opts.RedisPrefix, ttl: opts.TTL}
	created, err := client.SetNX(ctx, s.markerKey(), time.Now().UTC().Format(time.RFC3339), 0).Result()
	if err != nil {
		return nil, fmt.Errorf("init redis marker: %w", err)
	}
	s.firstRun = created
	return s, nil
}

func (s *redisStore) markerKey() string         { return s.prefix + ":initialized" }
func (s *redisStore) seenKey(key string) string { return s.prefix + ":seen:" + key }

func (s *redisStore) Close() error   { return s.client.Close() }
func (s *redisStore) FirstRun() bool { return s.firstRun }

func (s *redisStore) Seen(key string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	err := s.client.Get(ctx, s.seenKey(key)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return true, nil
}

// Mark stores the key; a zero TTL keeps it forever.
func (s *redisStore) Mark(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	if err := s.client.Set(ctx, s.seenKey(key), 1, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}
