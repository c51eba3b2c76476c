package guest

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/kisaansahayak/sahayak/internal/config"
)

const (
	// countTTL expires idle guest counters.
	countTTL  = 30 * 24 * time.Hour
	keyPrefix = "guest:questions:"

	connectTimeout = 15 * time.Second
)

// RedisCounter keeps guest counts in Redis so every replica enforces the
// same limit.
type RedisCounter struct {
	rdb *redis.Client
}

// NewRedisCounter connects to Redis, retrying with exponential backoff.
func NewRedisCounter(ctx context.Context, cfg config.RedisConfig) (*RedisCounter, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ping := func() error {
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rdb.Ping(pctx).Err(); err != nil {
			log.Warn().Err(err).Str("addr", cfg.Addr).Msg("Redis not reachable yet, retrying")
			return err
		}
		return nil
	}
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = connectTimeout
	if err := backoff.Retry(ping, backoff.WithContext(b, ctx)); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	log.Info().Str("addr", cfg.Addr).Int("db", cfg.DB).Msg("Redis guest counter initialized")
	return &RedisCounter{rdb: rdb}, nil
}

func key(guestID string) string { return keyPrefix + guestID }

// Count returns the recorded questions for guestID; a missing key is 0.
func (c *RedisCounter) Count(ctx context.Context, guestID string) (int, error) {
	n, err := c.rdb.Get(ctx, key(guestID)).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load guest count: %w", err)
	}
	return n, nil
}

// Increment records one question and refreshes the key's TTL.
func (c *RedisCounter) Increment(ctx context.Context, guestID string) (int, error) {
	var incr *redis.IntCmd
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key(guestID))
		pipe.Expire(ctx, key(guestID), countTTL)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to increment guest count: %w", err)
	}
	return int(incr.Val()), nil
}

// Ping checks if Redis is reachable.
func (c *RedisCounter) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close releases the client.
func (c *RedisCounter) Close() error {
	return c.rdb.Close()
}
