package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/albapepper/matchsheet/internal/config"
	"github.com/albapepper/matchsheet/internal/db"
	"github.com/albapepper/matchsheet/internal/sink"
	"github.com/albapepper/matchsheet/internal/sink/sheets"
)

// OpenAppender builds the sink selected by cfg.SinkDriver and a func that
// releases it.
//
// The Sheets client is built lazily so that a missing or malformed service
// account key surfaces on the first append rather than at startup. The
// Postgres pool connects eagerly.
func OpenAppender(ctx context.Context, cfg *config.Config, logger *slog.Logger) (sink.Appender, func(), error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.SinkDriver {
	case config.DriverPostgres:
		pool, err := db.New(ctx, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to database: %w", err)
		}
		if err := pool.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		logger.Info("Postgres sink ready",
			"min_conns", cfg.DBPoolMinConns,
			"max_conns", cfg.DBPoolMaxConns)
		return pool, pool.Close, nil

	case config.DriverSheets, "":
		lazy := sink.NewLazy(func(ctx context.Context) (sink.Appender, error) {
			key, err := cfg.ServiceAccountKey()
			if err != nil {
				return nil, err
			}
			return sheets.New(ctx, key, logger)
		})
		return lazy, func() {}, nil

	default:
		return nil, nil, fmt.Errorf("%w: unknown sink driver %q", config.ErrMalformed, cfg.SinkDriver)
	}
}

// HealthChecker is implemented by sinks that can verify their backend
// without writing to it.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

var _ HealthChecker = (*db.Pool)(nil)

// CheckSink verifies that the configured sink is usable: the service
// account key must resolve for Sheets, and a HealthChecker must answer.
func CheckSink(ctx context.Context, cfg *config.Config, appender sink.Appender) error {
	if cfg.SinkDriver == config.DriverSheets || cfg.SinkDriver == "" {
		if _, err := cfg.ServiceAccountKey(); err != nil {
			return err
		}
	}
	if hc, ok := appender.(HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("sink health check: %w", err)
		}
	}
	return nil
}
