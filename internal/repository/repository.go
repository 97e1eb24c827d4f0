// Package repository is the sqlc-flavored data-access layer for the AP
// platform: a Querier interface plus a concrete Queries implementation,
// in the same shape as the teacher's generated internal/database querier
// (Querier interface, `var _ Querier = (*Queries)(nil)`), hand-written
// here since this domain's queries didn't exist in the teacher snapshot.
package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX abstracts over *pgxpool.Pool and pgx.Tx so the same Queries methods
// work both outside and inside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// Queries is the concrete, transaction-capable data access handle. Every
// subsystem package (matching, approval, rules, ...) is constructed with
// a *Queries rather than a raw pool, mirroring the teacher's generated
// Queries pattern.
type Queries struct {
	db   DBTX
	pool *pgxpool.Pool // non-nil only when db was built via New, for BeginTx
}

// New builds a Queries bound to the pool for non-transactional calls.
func New(pool *pgxpool.Pool) *Queries {
	return &Queries{db: pool, pool: pool}
}

// WithTx returns a Queries bound to an in-flight transaction, used by
// every multi-statement operation that must commit atomically (matching
// overwrite, approval decision, rule publish).
func WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

var errNotAPool = errors.New("BeginTx called on a Queries not bound to a pool")

// BeginTx starts a transaction on the pool backing q, for callers that
// need manual commit/rollback control (e.g. the approval row-lock flow).
func (q *Queries) BeginTx(ctx context.Context) (pgx.Tx, error) {
	if q.pool == nil {
		return nil, errNotAPool
	}
	return q.pool.Begin(ctx)
}
