package postgres

import (
	"context"
	"database/sql"

	"github.com/ignite/mailevents/internal/pkg/distlock"
)

// querier is the subset of *sql.DB and *sql.Conn the repositories use.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// dbFor returns the connection pinned by a held advisory lock, falling back
// to the pool.
func dbFor(ctx context.Context, db *sql.DB) querier {
	if conn := distlock.ConnFrom(ctx); conn != nil {
		return conn
	}
	return db
}
