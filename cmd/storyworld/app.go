package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"storyworld/internal/config"
	"storyworld/internal/database"
	"storyworld/internal/logger"
	"storyworld/internal/storysource"
)

// app holds the configuration and the lazily opened connections shared by
// the subcommands.
type app struct {
	cfg    *config.Config
	logger *zap.Logger

	pool  *pgxpool.Pool
	redis *redis.Client
}

// newApp loads the configuration. A nil log builds the logger from the
// configuration.
func newApp(log *zap.Logger) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log, err = logger.New(cfg.Log)
		if err != nil {
			return nil, fmt.Errorf("init logger: %w", err)
		}
	}
	zap.ReplaceGlobals(log)
	log.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("storySource", cfg.Story.Source),
		zap.Bool("redis", cfg.Redis.Enabled),
		zap.Bool("events", cfg.RabbitMQ.URL != ""),
	)
	return &app{cfg: cfg, logger: log}, nil
}

func (a *app) postgres(ctx context.Context) (*pgxpool.Pool, error) {
	if a.pool != nil {
		return a.pool, nil
	}
	pool, err := database.NewPool(ctx, a.cfg.Postgres, a.logger)
	if err != nil {
		return nil, err
	}
	a.pool = pool
	return pool, nil
}

// redisClient returns nil when Redis is disabled.
func (a *app) redisClient(ctx context.Context) (*redis.Client, error) {
	if !a.cfg.Redis.Enabled {
		return nil, nil
	}
	if a.redis != nil {
		return a.redis, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     a.cfg.Redis.Addr,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", a.cfg.Redis.Addr, err)
	}
	a.logger.Info("Connected to Redis", zap.String("addr", a.cfg.Redis.Addr), zap.Int("db", a.cfg.Redis.DB))
	a.redis = client
	return client, nil
}

// storySource builds the configured source. Remote sources are cached in
// Redis when it is enabled; every source is instrumented.
func (a *app) storySource(ctx context.Context) (storysource.Source, error) {
	var (
		src    storysource.Source
		remote bool
		err    error
	)
	switch a.cfg.Story.Source {
	case config.SourceEmbedded:
		src, err = storysource.Embedded()
	case config.SourceFile:
		src, err = storysource.LoadFile(a.cfg.Story.Path)
	case config.SourceHTTP:
		src, remote = storysource.NewHTTP(a.cfg.Story.URL, a.cfg.Story.HTTPTimeout, a.logger), true
	case config.SourcePostgres:
		var pool *pgxpool.Pool
		if pool, err = a.postgres(ctx); err == nil {
			src, remote = storysource.NewPostgres(pool, a.logger), true
		}
	default:
		err = fmt.Errorf("unknown story source %q", a.cfg.Story.Source)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s story source: %w", a.cfg.Story.Source, err)
	}

	if remote {
		client, err := a.redisClient(ctx)
		if err != nil {
			return nil, err
		}
		if client != nil {
			src = storysource.NewRedisCache(src, client, a.cfg.Story.CacheTTL, a.logger)
		}
	}
	return storysource.WithMetrics(src, a.cfg.Story.Source), nil
}

func (a *app) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("Failed to close Redis client", zap.Error(err))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	_ = a.logger.Sync()
}
