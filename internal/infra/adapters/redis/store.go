package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/gomodule/redigo/redis"
)

// Store implements the repository key-value contract on top of a redigo
// pool. Values are opaque serialized documents.
type Store struct {
	pool *redis.Pool
}

func NewStore(pool *redis.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return "", false, fmt.Errorf("redis get conn: %w", err)
	}
	defer conn.Close()

	value, err := redis.String(redis.DoContext(conn, ctx, "GET", key))
	if errors.Is(err, redis.ErrNil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}

	return value, true, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("redis get conn: %w", err)
	}
	defer conn.Close()

	if _, err := redis.DoContext(conn, ctx, "SET", key, value); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}

	return nil
}

func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("redis get conn: %w", err)
	}
	defer conn.Close()

	if _, err := redis.DoContext(conn, ctx, "DEL", redis.Args{}.AddFlat(keys)...); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}

	return nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return false, fmt.Errorf("redis get conn: %w", err)
	}
	defer conn.Close()

	n, err := redis.Int(redis.DoContext(conn, ctx, "EXISTS", key))
	if err != nil {
		return false, fmt.Errorf("redis exists %s: %w", key, err)
	}

	return n == 1, nil
}
