package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const upcomingToursKey = "tours:upcoming"

// ErrMiss is returned when the key is absent
var ErrMiss = errors.New("cache miss")

type Config struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	ToursTTL time.Duration
}

type RedisClient struct {
	client   *redis.Client
	toursTTL time.Duration
}

func NewRedisClient(cfg Config) (*RedisClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		DialTimeout:  5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewFromClient(rdb, cfg.ToursTTL), nil
}

// NewFromClient wraps an existing go-redis client
func NewFromClient(rdb *redis.Client, toursTTL time.Duration) *RedisClient {
	if toursTTL <= 0 {
		toursTTL = 30 * time.Second
	}
	return &RedisClient{client: rdb, toursTTL: toursTTL}
}

// GetUpcomingTours returns the cached JSON listing as-is
func (c *RedisClient) GetUpcomingTours(ctx context.Context) ([]byte, error) {
	raw, err := c.client.Get(ctx, upcomingToursKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("cache lookup error: %w", err)
	}
	return raw, nil
}

func (c *RedisClient) SetUpcomingTours(ctx context.Context, tours interface{}) {
	raw, err := json.Marshal(tours)
	if err != nil {
		slog.Warn("Failed to encode tours for cache", "error", err)
		return
	}
	if err := c.client.Set(ctx, upcomingToursKey, raw, c.toursTTL).Err(); err != nil {
		slog.Warn("Failed to cache upcoming tours", "error", err)
	}
}

// InvalidateTours drops the cached listing after any catalog or seat change
func (c *RedisClient) InvalidateTours(ctx context.Context) {
	if err := c.client.Del(ctx, upcomingToursKey).Err(); err != nil {
		slog.Warn("Failed to invalidate tours cache", "error", err)
	}
}

// releaseScript deletes the lock only if it still carries our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// TryLock acquires a cross-process lock with SET NX PX. ok is false when another
// holder owns it; release is safe to call after the TTL has lapsed.
func (c *RedisClient) TryLock(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error) {
	token := uuid.NewString()
	ok, err = c.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}

	release = func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, c.client, []string{key}, token).Err(); err != nil {
			slog.Warn("Failed to release lock", "key", key, "error", err)
		}
	}
	return release, true, nil
}

func (c *RedisClient) Close() error {
	return c.client.Close()
}
