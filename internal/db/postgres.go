package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"
	"github.com/rs/zerolog"
)

// PoolOptions tunes the shared pgx pool. Zero values keep pgx defaults.
type PoolOptions struct {
	MaxConns int32
	// LogQueries traces every statement at debug level.
	LogQueries bool
}

// ConnectPostgres opens the pool and pings it once before returning.
func ConnectPostgres(ctx context.Context, dsn string, opts PoolOptions, logger zerolog.Logger) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	cfg.MinConns = 1
	cfg.HealthCheckPeriod = 30 * time.Second
	cfg.MaxConnIdleTime = 10 * time.Minute
	if opts.LogQueries {
		cfg.ConnConfig.Tracer = &tracelog.TraceLog{
			Logger:   queryLogger(logger),
			LogLevel: tracelog.LogLevelDebug,
		}
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

func queryLogger(logger zerolog.Logger) tracelog.Logger {
	l := logger.With().Str("component", "pgx").Logger()
	return tracelog.LoggerFunc(func(ctx context.Context, level tracelog.LogLevel, msg string, data map[string]any) {
		var ev *zerolog.Event
		switch level {
		case tracelog.LogLevelError:
			ev = l.Error()
		case tracelog.LogLevelWarn:
			ev = l.Warn()
		case tracelog.LogLevelInfo:
			ev = l.Info()
		default:
			ev = l.Debug()
		}
		ev.Fields(data).Msg(msg)
	})
}
