// Package postgres persists the room activity journal to PostgreSQL using pgx v5.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/hyggen/internal/config"
)

// ErrJournalSchemaMissing is returned by Health when the database is reachable
// but the journal migrations have not been applied.
var ErrJournalSchemaMissing = errors.New("room_journal table not found; run migrations")

const defaultHealthTimeout = time.Second

// Pool is the journal's connection pool.
type Pool struct {
	pool          *pgxpool.Pool
	healthTimeout time.Duration
}

// NewPool connects to the journal database described by cfg.
//
// Precondition: cfg must pass validation.
// Postcondition: Returns a Pool that answered a ping, or a non-nil error.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	timeout := cfg.HealthTimeout
	if timeout <= 0 {
		timeout = defaultHealthTimeout
	}
	return &Pool{pool: pool, healthTimeout: timeout}, nil
}

// Health reports whether journal entries can be written: the database must
// answer within the configured health timeout and room_journal must exist.
//
// Postcondition: Returns ErrJournalSchemaMissing when only the table is absent.
func (p *Pool) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.healthTimeout)
	defer cancel()

	var present bool
	if err := p.pool.QueryRow(ctx, `SELECT to_regclass('room_journal') IS NOT NULL`).Scan(&present); err != nil {
		return fmt.Errorf("checking journal schema: %w", err)
	}
	if !present {
		return ErrJournalSchemaMissing
	}
	return nil
}

// Journal returns a repository writing through this pool.
func (p *Pool) Journal() *JournalRepository {
	return NewJournalRepository(p.pool)
}

// Close releases all pool resources.
func (p *Pool) Close() {
	p.pool.Close()
}
