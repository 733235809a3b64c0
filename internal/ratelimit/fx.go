package ratelimit

import (
	"context"

	"github.com/craftlane/entrypay/internal/config"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("ratelimit",
	fx.Provide(newRedisClient, newLimiter),
)

func newRedisClient(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) *redis.Client {
	if !cfg.RateLimit.Enabled || cfg.RateLimit.RedisAddr == "" {
		log.Info("rate limiting disabled")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RateLimit.RedisAddr,
		Password: cfg.RateLimit.RedisPassword,
		DB:       cfg.RateLimit.RedisDB,
	})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client
}

func newLimiter(client *redis.Client, cfg config.Config, log *zap.Logger) *PublicLimiter {
	bucket := NewTokenBucket(client)
	if bucket == nil {
		return nil
	}
	return NewPublicLimiter(bucket, cfg.RateLimit.PublicRate, cfg.RateLimit.PublicBurst, log)
}
