// Package sqlconn adapts database/sql drivers to pool.Conn.
//
// Every pooled connection is a dedicated *sql.Conn taken from a *sql.DB that
// keeps no idle connections of its own, so closing a pool.Conn closes the
// physical session and the Pool stays the only pool in play.
package sqlconn

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"

	"github.com/halcyonnouveau/estoult/pkg/pool"
)

// Connector opens pooled connections from a single *sql.DB.
type Connector struct {
	db *sql.DB
}

// NewConnector wraps db. Its idle pool is disabled so every Close reaches the server.
func NewConnector(db *sql.DB) *Connector {
	db.SetMaxIdleConns(0)
	return &Connector{db: db}
}

// Open opens a *sql.DB for driverName and wraps it.
func Open(driverName, dsn string) (*Connector, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}

	return NewConnector(db), nil
}

// OpenDB wraps a driver.Connector, as returned by most drivers' NewConnector.
func OpenDB(connector driver.Connector) *Connector {
	return NewConnector(sql.OpenDB(connector))
}

// DB returns the underlying handle.
func (c *Connector) DB() *sql.DB {
	return c.db
}

// Connect implements pool.Connector.
func (c *Connector) Connect(ctx context.Context) (pool.Conn, error) {
	conn, err := c.Dial(ctx)
	if err != nil {
		return nil, err
	}

	return conn, nil
}

// Dial opens a dedicated session and verifies it with a ping.
func (c *Connector) Dial(ctx context.Context) (*Conn, error) {
	raw, err := c.db.Conn(ctx)
	if err != nil {
		return nil, err
	}

	if err = raw.PingContext(ctx); err != nil {
		_ = raw.Close()
		return nil, err
	}

	return &Conn{raw: raw}, nil
}

// Close closes the *sql.DB. Pooled connections should be closed first.
func (c *Connector) Close() error {
	return c.db.Close()
}

// Conn is a pool.Conn over a dedicated *sql.Conn.
type Conn struct {
	raw *sql.Conn
}

// Raw returns the underlying *sql.Conn, for driver specific calls.
func (c *Conn) Raw() *sql.Conn {
	return c.raw
}

// Exec implements pool.Conn.
func (c *Conn) Exec(ctx context.Context, query string, args ...any) (pool.Result, error) {
	res, err := c.raw.ExecContext(ctx, query, args...)
	if err != nil {
		return pool.Result{}, err
	}

	var result pool.Result
	if result.RowsAffected, err = res.RowsAffected(); err != nil {
		result.RowsAffected = -1
	}

	// Not every driver supports it (pgx's stdlib doesn't).
	if result.LastInsertID, err = res.LastInsertId(); err != nil {
		result.LastInsertID = 0
	}

	return result, nil
}

// Query implements pool.Conn.
func (c *Conn) Query(ctx context.Context, query string, args ...any) (out []pool.Row, err error) {
	rows, err := c.raw.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	return ScanRows(rows)
}

// Ping implements pool.Pinger.
func (c *Conn) Ping(ctx context.Context) error {
	return c.raw.PingContext(ctx)
}

// Close implements pool.Conn. Closing twice is not an error.
func (c *Conn) Close() error {
	err := c.raw.Close()
	if errors.Is(err, sql.ErrConnDone) {
		return nil
	}

	return err
}

// ScanRows reads every remaining row into a pool.Row keyed by column name.
// Byte slices are copied since drivers may reuse them between rows.
func ScanRows(rows *sql.Rows) ([]pool.Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []pool.Row
	for rows.Next() {
		values := make([]any, len(columns))
		dest := make([]any, len(columns))
		for i := range values {
			dest[i] = &values[i]
		}

		if err = rows.Scan(dest...); err != nil {
			return nil, err
		}

		row := make(pool.Row, len(columns))
		for i, column := range columns {
			if b, ok := values[i].([]byte); ok {
				values[i] = append([]byte(nil), b...)
			}
			row[column] = values[i]
		}

		out = append(out, row)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return out, nil
}
