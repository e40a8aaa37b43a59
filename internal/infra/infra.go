// Package infra opens the external resources the service runs on and picks
// the client-state backend.
package infra

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/coursecompass/storefront/internal/config"
	"github.com/coursecompass/storefront/internal/storage"
)

const connectTimeout = 5 * time.Second

// Resources are the opened connections plus the selected state store.
type Resources struct {
	DB      *pgxpool.Pool
	Cache   *redis.Client
	State   storage.Store
	Backend string

	logger *slog.Logger
}

// Open connects to every configured resource. Postgres and Redis are
// optional unless the state backend needs them.
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Resources, error) {
	r := &Resources{Backend: cfg.StateBackend, logger: logger}

	if cfg.DatabaseURL != "" {
		db, err := NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		r.DB = db
	}
	if cfg.RedisURL != "" {
		cache, err := NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			r.Close()
			return nil, err
		}
		r.Cache = cache
	}

	switch cfg.StateBackend {
	case config.BackendRedis:
		r.State = storage.NewRedisStore(r.Cache, cfg.StateTTL)
	case config.BackendPostgres:
		pg := storage.NewPostgresStore(r.DB)
		if err := pg.EnsureSchema(ctx); err != nil {
			r.Close()
			return nil, err
		}
		r.State = pg
	default:
		r.State = storage.NewMemoryStore()
	}
	logger.Info("client state backend selected", "backend", r.Backend,
		"postgres", r.DB != nil, "redis", r.Cache != nil)
	return r, nil
}

// Close releases the connections.
func (r *Resources) Close() {
	if r.Cache != nil {
		if err := r.Cache.Close(); err != nil {
			r.logger.Warn("close redis", "error", err)
		}
	}
	if r.DB != nil {
		r.DB.Close()
	}
}

// NewPostgresPool configures a PostgreSQL pool and verifies connectivity.
func NewPostgresPool(ctx context.Context, url string) (*pgxpool.Pool, error) {
	if url == "" {
		return nil, fmt.Errorf("database url is required")
	}
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	cfg.MaxConns = 8

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// NewRedisClient configures a Redis client and verifies connectivity.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, fmt.Errorf("redis url is required")
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
