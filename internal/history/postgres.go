package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pgx connection pool using the provided DSN.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = 4
	cfg.MaxConnIdleTime = 5 * time.Minute
	return pgxpool.NewWithConfig(ctx, cfg)
}

// EnsureSchema creates the pipeline_runs table if needed.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	const stmt = `
CREATE TABLE IF NOT EXISTS pipeline_runs (
	id TEXT PRIMARY KEY,
	strategy TEXT NOT NULL,
	status TEXT NOT NULL,
	auctions INTEGER NOT NULL DEFAULT 0,
	delivered INTEGER NOT NULL DEFAULT 0,
	error_message TEXT,
	started_at TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_pipeline_runs_started ON pipeline_runs(started_at DESC);`
	if _, err := pool.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Postgres stores runs in the pipeline_runs table.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres constructs a Postgres recorder.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) Start(ctx context.Context, id, strategy string) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO pipeline_runs (id, strategy, status, started_at)
		VALUES ($1,$2,$3,$4)
	`, id, strategy, StatusRunning, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (p *Postgres) Finish(ctx context.Context, id string, res Result) error {
	status := StatusSucceeded
	var msg *string
	if res.Err != nil {
		status = StatusFailed
		m := res.Err.Error()
		msg = &m
	}
	tag, err := p.pool.Exec(ctx, `
		UPDATE pipeline_runs
		SET status=$1, auctions=$2, delivered=$3, error_message=$4, finished_at=$5
		WHERE id=$6
	`, status, res.Auctions, res.Delivered, msg, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func (p *Postgres) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := p.pool.Query(ctx, `
		SELECT id, strategy, status, auctions, delivered, error_message, started_at, finished_at
		FROM pipeline_runs ORDER BY started_at DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()
	var out []Run
	for rows.Next() {
		var (
			run      Run
			errorMsg sql.NullString
			finished sql.NullTime
		)
		if err := rows.Scan(&run.ID, &run.Strategy, &run.Status, &run.Auctions, &run.Delivered, &errorMsg, &run.StartedAt, &finished); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if errorMsg.Valid {
			msg := errorMsg.String
			run.ErrorMessage = &msg
		}
		if finished.Valid {
			t := finished.Time
			run.FinishedAt = &t
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return out, nil
}
