package app

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backoffice-api/internal/config"
	"github.com/noah-isme/backoffice-api/internal/db"
	"github.com/noah-isme/backoffice-api/internal/obs"
)

// Infra holds the connections shared by the API and the worker.
type Infra struct {
	DB    *pgxpool.Pool
	Redis *redis.Client
	Tasks *asynq.Client
	// RedisConn configures asynq servers and schedulers.
	RedisConn asynq.RedisConnOpt
	// Logger is the process logger services report background failures to.
	Logger zerolog.Logger
}

// Connect opens Postgres, Redis and the task client. The caller owns Close.
func Connect(ctx context.Context, cfg *config.Config, name string, logger zerolog.Logger) (*Infra, error) {
	pool, err := db.Connect(ctx, cfg.DatabaseURL, db.PoolOptions{ApplicationName: name, Tracer: obs.PGXTracer{}})
	if err != nil {
		return nil, err
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(redisOpts)
	if cfg.TracingEnabled {
		if err := redisotel.InstrumentTracing(rdb); err != nil {
			logger.Error().Err(err).Msg("instrument redis tracing")
		}
	}
	if cfg.MetricsEnabled {
		if err := redisotel.InstrumentMetrics(rdb); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	if err := rdb.Ping(ctx).Err(); err != nil {
		pool.Close()
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	connOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		pool.Close()
		_ = rdb.Close()
		return nil, fmt.Errorf("parse redis uri for tasks: %w", err)
	}
	return &Infra{DB: pool, Redis: rdb, Tasks: asynq.NewClient(connOpt), RedisConn: connOpt, Logger: logger}, nil
}

// Close releases every connection, logging failures.
func (i *Infra) Close(logger zerolog.Logger) {
	if i == nil {
		return
	}
	if i.Tasks != nil {
		if err := i.Tasks.Close(); err != nil {
			logger.Error().Err(err).Msg("close task client")
		}
	}
	if i.Redis != nil {
		if err := i.Redis.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}
	if i.DB != nil {
		i.DB.Close()
	}
}
