// Package db holds the pgx helpers shared by the Postgres store: the pool
// abstraction and the temp-table bulk upsert used for article batches.
package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Pool is the slice of pgxpool.Pool the archive store and the bulk upsert
// touch. Keeping it an interface lets store tests run against a pgxmock
// pool instead of a live database. Bulk loads go through Begin: the COPY
// into the temp table and the conflict-resolving INSERT must share one
// transaction.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}
