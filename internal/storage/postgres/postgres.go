// Package postgres stores uploaded questionnaire documents in PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"synth-cohort/internal/storage"
)

// applicationName tags every session so uploads are identifiable in pg_stat_activity.
const applicationName = "synth-cohort"

// uniqueViolation is the SQLSTATE raised when a document id is reused
// within a collection.
const uniqueViolation = "23505"

// Pool is the connection pool shared by the document store and the schema runner.
type Pool struct {
	*pgxpool.Pool
}

// NewPool connects to dsn and checks the server answers.
func NewPool(ctx context.Context, dsn string) (*Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if _, ok := cfg.ConnConfig.RuntimeParams["application_name"]; !ok {
		cfg.ConnConfig.RuntimeParams["application_name"] = applicationName
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open document pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("reach document database: %w", err)
	}
	return &Pool{Pool: pool}, nil
}

// translate maps driver errors onto the storage sentinels and wraps the rest with op.
func translate(op string, err error) error {
	var pgErr *pgconn.PgError
	switch {
	case errors.As(err, &pgErr) && pgErr.Code == uniqueViolation:
		return storage.ErrDuplicateKey
	case errors.Is(err, pgx.ErrNoRows):
		return storage.ErrNotFound
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
