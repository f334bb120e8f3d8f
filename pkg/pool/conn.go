package pool

import "context"

// Conn is a single database session handed out by the Pool.
// A Conn is used by exactly one worker at a time.
type Conn interface {
	Exec(ctx context.Context, query string, args ...any) (Result, error)
	Query(ctx context.Context, query string, args ...any) ([]Row, error)
	Close() error
}

// Connector opens new physical connections for the Pool.
type Connector interface {
	Connect(ctx context.Context) (Conn, error)
}

// ConnectorFunc adapts a plain function to a Connector.
type ConnectorFunc func(ctx context.Context) (Conn, error)

// Connect calls f(ctx).
func (f ConnectorFunc) Connect(ctx context.Context) (Conn, error) {
	return f(ctx)
}

// Result reports the outcome of an Exec.
type Result struct {
	RowsAffected int64 `json:"RowsAffected" yaml:"RowsAffected"`
	LastInsertID int64 `json:"LastInsertID" yaml:"LastInsertID"`
}

// Row is a single result row keyed by column name.
type Row map[string]any

// Pinger is implemented by connections that support a no-op round trip (MySQL-like).
type Pinger interface {
	Ping(ctx context.Context) error
}

// TxStatus is the transaction state reported by a PostgreSQL-like session.
type TxStatus int

const (
	TxStatusIdle TxStatus = iota
	TxStatusActive
	TxStatusInTransaction
	TxStatusInError
	TxStatusUnknown
)

func (s TxStatus) String() string {
	switch s {
	case TxStatusIdle:
		return "idle"
	case TxStatusActive:
		return "active"
	case TxStatusInTransaction:
		return "in-transaction"
	case TxStatusInError:
		return "in-error"
	default:
		return "unknown"
	}
}

// TxStatusReporter is implemented by connections that expose their transaction status (PostgreSQL-like).
type TxStatusReporter interface {
	IsClosed() bool
	TxStatus() TxStatus
	Rollback(ctx context.Context) error
	Reset(ctx context.Context) error
}

// ChangeCounter is implemented by connections that can report their total row changes (SQLite-like).
type ChangeCounter interface {
	TotalChanges(ctx context.Context) (int64, error)
}
