// Package pgexec runs arbor statements on PostgreSQL through pgx.
package pgexec

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jacentio/arbor/tree"
)

// Querier is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Executor is a tree.Executor backed by pgx.
type Executor struct {
	q    Querier
	pool *pgxpool.Pool
}

// New wraps an existing querier. The caller keeps ownership of q.
func New(q Querier) *Executor {
	return &Executor{q: q}
}

// Connect opens and pings a pool for dsn. Close releases it.
func Connect(ctx context.Context, dsn string) (*Executor, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Executor{q: pool, pool: pool}, nil
}

// Pool returns the pool opened by Connect, or nil.
func (e *Executor) Pool() *pgxpool.Pool {
	return e.pool
}

// Close releases the pool opened by Connect.
func (e *Executor) Close() {
	if e.pool != nil {
		e.pool.Close()
	}
}

// Dialect implements tree.Executor.
func (e *Executor) Dialect() tree.Dialect {
	return tree.Postgres
}

// Query implements tree.Executor. Values are decoded by pgx's default type
// map; uuid columns arrive as [16]byte, which tree.Row.String formats.
func (e *Executor) Query(ctx context.Context, stmt tree.Statement) ([]tree.Row, error) {
	rows, err := e.q.Query(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (tree.Row, error) {
		values, err := row.Values()
		if err != nil {
			return nil, err
		}
		fields := row.FieldDescriptions()
		r := make(tree.Row, len(fields))
		for i, fd := range fields {
			r[fd.Name] = values[i]
		}
		return r, nil
	})
	if err != nil {
		return nil, fmt.Errorf("collect rows: %w", err)
	}
	return out, nil
}
