package pool

import (
	"errors"
	"fmt"
)

var (
	// ErrPoolExhausted is returned when no idle connection is available and MaxConnections are checked out.
	// The caller may retry or surface it; you can check for this error with errors.Is
	ErrPoolExhausted = errors.New("exceeded maximum connections")

	// ErrPoolTimeout is returned when the WaitTimeout elapsed while retrying after ErrPoolExhausted.
	ErrPoolTimeout = errors.New("max connections exceeded, timed out attempting to connect")

	// ErrNoRows is returned by Get when the query produced no rows.
	ErrNoRows = errors.New("no rows in result set")

	// ErrUnknownDialect is returned when a dialect name is not recognized.
	ErrUnknownDialect = errors.New("unknown dialect")

	// ErrUnknownBackend is returned by Open when no backend was registered under the configured dialect.
	ErrUnknownBackend = errors.New("unknown backend")

	// ErrInvalidConfig is returned when a PoolConfig fails validation.
	ErrInvalidConfig = errors.New("invalid pool config")

	// errConnectionDead only reaches the unhealthy handler, Acquire never returns it.
	errConnectionDead = errors.New("connection failed liveness probe")

	errConnectionStale = errors.New("connection exceeded stale timeout")
)

// BackendError wraps a failure raised by the backend while opening, closing or probing a connection.
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend %s: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}
