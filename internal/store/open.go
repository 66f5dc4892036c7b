package store

import (
	"context"
	"fmt"
	"log/slog"

	"coolcar/internal/config"
	"coolcar/internal/domain"
)

// Open builds the backend named in the storage config.
func Open(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (domain.BlobStore, error) {
	switch cfg.Backend {
	case "", "sqlite":
		return NewSQLite(config.ExpandHome(cfg.Path), logger)
	case "redis":
		return NewRedis(ctx, RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
			Logger:   logger,
		})
	case "memory":
		return NewMemory(), nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
}
