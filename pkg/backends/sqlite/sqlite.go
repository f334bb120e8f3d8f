// Package sqlite registers the "sqlite" backend, built on mattn/go-sqlite3.
//
// Import it for its side effect:
//
//	import _ "github.com/halcyonnouveau/estoult/pkg/backends/sqlite"
package sqlite

import (
	"context"

	_ "github.com/mattn/go-sqlite3"

	"github.com/halcyonnouveau/estoult/pkg/backends/sqlconn"
	"github.com/halcyonnouveau/estoult/pkg/pool"
)

const driverName = "sqlite3"

func init() {
	pool.Register("sqlite", pool.Backend{
		Dialect: pool.SQLiteDialect{},
		NewConnector: func(dsn string) (pool.Connector, error) {
			return NewConnector(dsn)
		},
	})
}

// Connector opens SQLite sessions on one database file.
type Connector struct {
	*sqlconn.Connector
}

// NewConnector creates a Connector for dsn, a file path or a go-sqlite3 "file:" URI.
func NewConnector(dsn string) (*Connector, error) {
	base, err := sqlconn.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}

	return &Connector{Connector: base}, nil
}

// Connect implements pool.Connector.
func (c *Connector) Connect(ctx context.Context) (pool.Conn, error) {
	conn, err := c.Dial(ctx)
	if err != nil {
		return nil, err
	}

	return &Conn{Conn: conn}, nil
}

// Conn is a SQLite session. It reports its change counter for liveness probes.
type Conn struct {
	*sqlconn.Conn
}

// TotalChanges implements pool.ChangeCounter.
func (c *Conn) TotalChanges(ctx context.Context) (int64, error) {
	var changes int64
	if err := c.Raw().QueryRowContext(ctx, "SELECT total_changes()").Scan(&changes); err != nil {
		return 0, err
	}

	return changes, nil
}
