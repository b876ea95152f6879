// internal/cache/redis.go
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Options holds what is needed to reach Redis.
type Options struct {
	Host     string
	Port     int
	Username string
	Password string
	DB       int
}

// Addr is host:port.
func (o Options) Addr() string {
	return fmt.Sprintf("%s:%d", o.Host, o.Port)
}

// Connect creates the Redis client and pings it once. A failed ping is logged
// and the client is still returned: go-redis reconnects on demand, and lobbies
// keep working from memory while the backend is away.
func Connect(ctx context.Context, opts Options, logger *logrus.Logger) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr(),
		Username: opts.Username,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.WithFields(logrus.Fields{"addr": opts.Addr()}).Warnf("redis unreachable, continuing with in-memory state: %v", err)
	} else {
		logger.WithFields(logrus.Fields{"addr": opts.Addr(), "db": opts.DB}).Info("connected to redis")
	}
	return rdb
}

// Store adapts a Redis client to the key-value operations the lobby store and
// statistics sink need.
type Store struct {
	rdb redis.Cmdable
}

func NewStore(rdb redis.Cmdable) *Store {
	return &Store{rdb: rdb}
}

// Get returns nil, nil for a missing key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis GET %s: %w", key, err)
	}
	return data, nil
}

// Set writes value with a TTL. A non-positive ttl stores the key without expiry.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := s.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis SET %s: %w", key, err)
	}
	return nil
}

func (s *Store) Del(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis DEL %s: %w", key, err)
	}
	return nil
}

// Incr bumps an integer counter, creating it at 1.
func (s *Store) Incr(ctx context.Context, key string) error {
	if err := s.rdb.Incr(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis INCR %s: %w", key, err)
	}
	return nil
}
