package database

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/prepgen-backend/internal/config"
)

// NewRedisClient creates and validates a Redis client connection.
func NewRedisClient(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*redis.Client, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	rdb := redis.NewClient(opt)

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	log.Info().
		Str("addr", opt.Addr).
		Int("db", opt.DB).
		Msg("Redis connected")

	return rdb, nil
}

// Pinger is anything that can report its own health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RedisPinger adapts a redis client to Pinger.
type RedisPinger struct{ Client *redis.Client }

// Ping checks the Redis connection.
func (p RedisPinger) Ping(ctx context.Context) error {
	return p.Client.Ping(ctx).Err()
}

// Health pings every dependency and reports failures by name.
func Health(ctx context.Context, deps map[string]Pinger) map[string]string {
	status := make(map[string]string, len(deps))
	for name, dep := range deps {
		if err := dep.Ping(ctx); err != nil {
			status[name] = "down: " + err.Error()
			continue
		}
		status[name] = "ok"
	}
	return status
}
