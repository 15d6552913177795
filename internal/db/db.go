// Package db provides a pgxpool-based connection pool with schema setup and
// health checking. With SINK_DRIVER=postgres the pool is the append sink:
// every table lands in ingame_rows.
package db

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/albapepper/matchsheet/internal/config"
	"github.com/albapepper/matchsheet/internal/payload"
	"github.com/albapepper/matchsheet/internal/sink"
)

//go:embed schema.sql
var schemaSQL string

// Pool wraps pgxpool.Pool with application-specific helpers.
type Pool struct {
	*pgxpool.Pool
}

// New creates and validates a new connection pool.
func New(ctx context.Context, cfg *config.Config) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: parse database URL: %v", config.ErrMalformed, err)
	}

	poolCfg.MinConns = int32(cfg.DBPoolMinConns)
	poolCfg.MaxConns = int32(cfg.DBPoolMaxConns)
	poolCfg.MaxConnLifetime = cfg.DBPoolMaxLife
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// Verify connectivity
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// EnsureSchema creates the ingame_rows table if it does not exist.
func (p *Pool) EnsureSchema(ctx context.Context) error {
	if _, err := p.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// HealthCheck runs a trivial query to verify the database is reachable.
func (p *Pool) HealthCheck(ctx context.Context) error {
	var n int
	return p.QueryRow(ctx, "SELECT 1").Scan(&n)
}

const insertRowSQL = `INSERT INTO ingame_rows (sheet_id, tab, row_index, cells)
VALUES ($1, $2, $3, $4)
RETURNING id`

// Append stores every row of table in one transaction. rangeExpr is kept
// as the tab label so rows can be grouped the way the sheet would.
func (p *Pool) Append(ctx context.Context, sheetID, rangeExpr string, table payload.Table) (sink.Updates, error) {
	tx, err := p.Begin(ctx)
	if err != nil {
		return sink.Updates{}, remoteError(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for i, row := range table {
		cells, err := json.Marshal(row)
		if err != nil {
			return sink.Updates{}, fmt.Errorf("encode row %d: %w", i, err)
		}
		batch.Queue(insertRowSQL, sheetID, rangeExpr, i, cells)
	}

	results := tx.SendBatch(ctx, batch)
	var firstID, lastID int64
	for i := range table {
		var id int64
		if err := results.QueryRow().Scan(&id); err != nil {
			results.Close()
			return sink.Updates{}, remoteError(err)
		}
		if i == 0 {
			firstID = id
		}
		lastID = id
	}
	if err := results.Close(); err != nil {
		return sink.Updates{}, remoteError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return sink.Updates{}, remoteError(err)
	}

	return sink.Updates{
		SpreadsheetID:  sheetID,
		UpdatedRange:   rowRange(firstID, lastID),
		UpdatedRows:    int64(len(table)),
		UpdatedColumns: int64(table.Width()),
		UpdatedCells:   int64(table.CellCount()),
	}, nil
}

func rowRange(first, last int64) string {
	return fmt.Sprintf("ingame_rows!%d:%d", first, last)
}

// remoteError maps database failures onto the sink error the handler
// mirrors: server-side errors keep their SQLSTATE, anything else is
// treated as the database being unreachable.
func remoteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		detail, _ := json.Marshal(map[string]string{
			"code":    pgErr.Code,
			"message": pgErr.Message,
		})
		return &sink.RemoteError{Status: http.StatusInternalServerError, Detail: detail, Err: err}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	detail, _ := json.Marshal(map[string]string{"raw": err.Error()})
	return &sink.RemoteError{Status: http.StatusServiceUnavailable, Detail: detail, Err: err}
}
