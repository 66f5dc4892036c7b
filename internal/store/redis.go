package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"coolcar/internal/domain"

	"github.com/redis/go-redis/v9"
)

// Redis stores each namespace as a string key under a common prefix.
type Redis struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

// RedisConfig selects the server and key prefix.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	Logger   *slog.Logger
}

func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "coolcar:"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return &Redis{client: client, prefix: cfg.Prefix, logger: cfg.Logger}, nil
}

func (r *Redis) key(namespace string) string { return r.prefix + namespace }

func (r *Redis) Get(ctx context.Context, namespace string) ([]byte, error) {
	data, err := r.client.Get(ctx, r.key(namespace)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", namespace, err)
	}
	return data, nil
}

func (r *Redis) Put(ctx context.Context, namespace string, data []byte) error {
	if err := r.client.Set(ctx, r.key(namespace), data, 0).Err(); err != nil {
		return fmt.Errorf("put %s: %w", namespace, err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
