package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type pgSequencer struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewSequencer returns a year-scoped counter kept in the order_sequences table.
func NewSequencer(pool *pgxpool.Pool, logger zerolog.Logger) Sequencer {
	return &pgSequencer{
		pool:   pool,
		logger: logger.With().Str("repository", "sequence").Logger(),
	}
}

func (s *pgSequencer) Next(ctx context.Context, year int) (int64, error) {
	var value int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO order_sequences (year, value) VALUES ($1, 1)
		ON CONFLICT (year) DO UPDATE SET value = order_sequences.value + 1
		RETURNING value
	`, year).Scan(&value)
	if err != nil {
		s.logger.Error().Err(err).Int("year", year).Msg("failed to advance order sequence")
		return 0, fmt.Errorf("failed to advance order sequence: %w", err)
	}
	return value, nil
}

const redisSequencePrefix = "order-seq:"

// RedisSequencer keeps the order counter in Redis with INCR.
type RedisSequencer struct {
	client *redis.Client
}

// NewRedisSequencer connects to url and verifies the connection.
func NewRedisSequencer(url string) (*RedisSequencer, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis connection string: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisSequencer{client: client}, nil
}

func (s *RedisSequencer) Next(ctx context.Context, year int) (int64, error) {
	value, err := s.client.Incr(ctx, fmt.Sprintf("%s%02d", redisSequencePrefix, year%100)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to advance order sequence: %w", err)
	}
	return value, nil
}

func (s *RedisSequencer) Close() error {
	return s.client.Close()
}
