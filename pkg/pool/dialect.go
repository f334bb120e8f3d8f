package pool

import (
	"context"
	"fmt"
	"strings"
)

// Dialect holds the backend specific liveness probe and reuse predicate.
// IsDead is called on check-out for every idle connection popped from the heap.
// CanReuse is called on check-in and may have side effects (rollback, reset).
type Dialect interface {
	Name() string
	IsDead(ctx context.Context, conn Conn) bool
	CanReuse(ctx context.Context, conn Conn) bool
}

// GenericDialect assumes every connection is alive and reusable.
type GenericDialect struct{}

func (GenericDialect) Name() string                            { return "generic" }
func (GenericDialect) IsDead(_ context.Context, _ Conn) bool   { return false }
func (GenericDialect) CanReuse(_ context.Context, _ Conn) bool { return true }

// MySQLDialect pings idle connections before handing them out.
type MySQLDialect struct{ GenericDialect }

func (MySQLDialect) Name() string { return "mysql" }

// IsDead reports true when the ping fails.
func (MySQLDialect) IsDead(ctx context.Context, conn Conn) bool {
	pinger, ok := conn.(Pinger)
	if !ok {
		return false
	}

	return pinger.Ping(ctx) != nil
}

// PostgresDialect inspects the transaction status of the session.
type PostgresDialect struct{}

func (PostgresDialect) Name() string { return "postgres" }

// IsDead reports true when the session is closed or its status is unknown.
// A session left inside a transaction is rolled back and reported alive.
func (PostgresDialect) IsDead(ctx context.Context, conn Conn) bool {
	tx, ok := conn.(TxStatusReporter)
	if !ok {
		return false
	}

	if tx.IsClosed() {
		return true
	}

	switch tx.TxStatus() {
	case TxStatusUnknown:
		return true
	case TxStatusIdle:
		return false
	default:
		return tx.Rollback(ctx) != nil
	}
}

// CanReuse refuses sessions that lost the server. Sessions in an error state are
// reset, any other non-idle session is rolled back.
func (PostgresDialect) CanReuse(ctx context.Context, conn Conn) bool {
	tx, ok := conn.(TxStatusReporter)
	if !ok {
		return true
	}

	switch tx.TxStatus() {
	case TxStatusUnknown:
		return false
	case TxStatusInError:
		return tx.Reset(ctx) == nil
	case TxStatusIdle:
		return true
	default:
		return tx.Rollback(ctx) == nil
	}
}

// SQLiteDialect probes a cheap read-only call.
type SQLiteDialect struct{ GenericDialect }

func (SQLiteDialect) Name() string { return "sqlite" }

// IsDead reports true when the change counter can't be read.
func (SQLiteDialect) IsDead(ctx context.Context, conn Conn) bool {
	counter, ok := conn.(ChangeCounter)
	if !ok {
		return false
	}

	_, err := counter.TotalChanges(ctx)
	return err != nil
}

// DialectByName returns the Dialect registered under name.
func DialectByName(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "generic":
		return GenericDialect{}, nil
	case "mysql":
		return MySQLDialect{}, nil
	case "postgres", "postgresql":
		return PostgresDialect{}, nil
	case "sqlite", "sqlite3":
		return SQLiteDialect{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDialect, name)
	}
}
