package pool

import (
	"context"
	"errors"
)

// Exec runs a statement on worker's connection, checking one out if needed.
func (p *Pool) Exec(ctx context.Context, worker WorkerID, query string, args ...any) (Result, error) {
	conn, err := p.Acquire(ctx, worker)
	if err != nil {
		return Result{}, err
	}

	return conn.Exec(ctx, query, args...)
}

// Query runs a query on worker's connection and returns every row.
func (p *Pool) Query(ctx context.Context, worker WorkerID, query string, args ...any) ([]Row, error) {
	conn, err := p.Acquire(ctx, worker)
	if err != nil {
		return nil, err
	}

	return conn.Query(ctx, query, args...)
}

// Get runs a query and returns its first row, or ErrNoRows.
func (p *Pool) Get(ctx context.Context, worker WorkerID, query string, args ...any) (Row, error) {
	rows, err := p.Query(ctx, worker, query, args...)
	if err != nil {
		return nil, err
	}

	if len(rows) == 0 {
		return nil, ErrNoRows
	}

	return rows[0], nil
}

// Transaction runs fn inside BEGIN/COMMIT on worker's connection.
// An error from fn (or a panic) rolls the transaction back.
// The connection stays checked out to worker afterwards.
func (p *Pool) Transaction(ctx context.Context, worker WorkerID, fn func(conn Conn) error) (err error) {
	conn, err := p.Acquire(ctx, worker)
	if err != nil {
		return err
	}

	if _, err = conn.Exec(ctx, "BEGIN"); err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			_, _ = conn.Exec(ctx, "ROLLBACK")
			panic(r)
		}
	}()

	if err = fn(conn); err != nil {
		if _, rerr := conn.Exec(ctx, "ROLLBACK"); rerr != nil {
			return errors.Join(err, rerr)
		}
		return err
	}

	_, err = conn.Exec(ctx, "COMMIT")
	return err
}
