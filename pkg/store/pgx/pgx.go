// Package pgx implements the GraphStore on PostgreSQL via jackc/pgx.
package pgx

import (
	"context"
	"sync"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
	Begin(ctx context.Context) (pgxv5.Tx, error)
}

// GraphDBStore persists graphs in the graph_nodes, graph_edges,
// graph_snapshots and graph_cursors tables. Undo and redo run inside a
// transaction; the mutex serializes snapshot appends from one process.
type GraphDBStore struct {
	conn   pgxIConn
	dbLock sync.Mutex
}

// NewGraphDBStore creates a store over an existing connection or pool.
func NewGraphDBStore(conn pgxIConn) *GraphDBStore {
	return &GraphDBStore{conn: conn}
}
