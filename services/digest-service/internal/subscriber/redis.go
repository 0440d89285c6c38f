package subscriber

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/stoik/timeline/internal/models"
)

// setReader is the part of the redis client RedisStore needs.
type setReader interface {
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
}

// RedisStore reads "email|github_username" members from a redis set.
type RedisStore struct {
	rdb    setReader
	key    string
	logger *slog.Logger
}

func NewRedisStore(rdb setReader, key string, logger *slog.Logger) *RedisStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisStore{rdb: rdb, key: key, logger: logger.With("component", "subscriber.redis")}
}

// List returns the set members sorted, since redis sets are unordered.
func (s *RedisStore) List(ctx context.Context) ([]models.Subscriber, error) {
	members, err := s.rdb.SMembers(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read subscriber set %s: %w", s.key, err)
	}
	sort.Strings(members)

	c := newCollector(s.logger, "redis:"+s.key)
	for i, m := range members {
		c.addRecord(i+1, m)
	}
	return c.result(), nil
}

// Dial connects to redis and checks the connection.
func Dial(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return rdb, nil
}
