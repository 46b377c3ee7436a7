// Package sqlexec runs arbor statements through database/sql.
//
// It works with any driver registered with database/sql. The CLI registers
// modernc.org/sqlite under the name "sqlite":
//
//	db, err := sqlexec.Open("sqlite", "file:catalog.db?mode=ro", tree.SQLite)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//	finder := tree.NewTableFinder(db, mapping, decode)
package sqlexec

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jacentio/arbor/tree"
)

// Querier is the subset of *sql.DB, *sql.Conn and *sql.Tx used by DB.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// DB is a tree.Executor over a database/sql handle.
type DB struct {
	q       Querier
	dialect tree.Dialect
	closer  func() error
}

// New wraps an existing handle. The caller keeps ownership of q.
func New(q Querier, dialect tree.Dialect) *DB {
	return &DB{q: q, dialect: dialect}
}

// Open opens a database/sql pool for driver and dsn.
// Close releases it.
func Open(driver, dsn string, dialect tree.Dialect) (*DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &DB{q: db, dialect: dialect, closer: db.Close}, nil
}

// Dialect implements tree.Executor.
func (d *DB) Dialect() tree.Dialect {
	return d.dialect
}

// Query implements tree.Executor. Byte slices are returned as strings.
func (d *DB) Query(ctx context.Context, stmt tree.Statement) ([]tree.Row, error) {
	rows, err := d.q.QueryContext(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}

	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}

	var out []tree.Row
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		row := make(tree.Row, len(cols))
		for i, col := range cols {
			row[col] = normalize(values[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

// Exec runs a statement that returns no rows. It is used by tools that
// prepare fixture tables.
func (d *DB) Exec(ctx context.Context, query string, args ...any) error {
	e, ok := d.q.(interface {
		ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	})
	if !ok {
		return fmt.Errorf("exec: %T cannot execute statements", d.q)
	}
	if _, err := e.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	return nil
}

// Close releases the pool opened by Open. It is a no-op for handles passed
// to New.
func (d *DB) Close() error {
	if d.closer == nil {
		return nil
	}
	return d.closer()
}

// normalize copies driver-owned byte slices.
func normalize(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
