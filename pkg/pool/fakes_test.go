package pool

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var errFakeClosed = errors.New("fake connection is closed")

// fakeConn is an in-memory Conn implementing every dialect capability.
type fakeConn struct {
	id int

	mu         sync.Mutex
	closed     bool
	closeCount int
	closeErr   error
	dead       bool
	status     TxStatus
	rollbacks  int
	resets     int
	statements []string
	rows       []Row
}

func (c *fakeConn) Exec(_ context.Context, query string, _ ...any) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return Result{}, errFakeClosed
	}

	c.statements = append(c.statements, query)
	return Result{RowsAffected: 1}, nil
}

func (c *fakeConn) Query(_ context.Context, query string, _ ...any) ([]Row, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, errFakeClosed
	}

	c.statements = append(c.statements, query)
	return c.rows, nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	c.closeCount++
	return c.closeErr
}

func (c *fakeConn) Ping(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.dead {
		return errFakeClosed
	}

	return nil
}

func (c *fakeConn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.closed
}

func (c *fakeConn) TxStatus() TxStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.status
}

func (c *fakeConn) Rollback(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.rollbacks++
	c.status = TxStatusIdle
	return nil
}

func (c *fakeConn) Reset(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.resets++
	c.status = TxStatusIdle
	return nil
}

func (c *fakeConn) TotalChanges(_ context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.dead {
		return 0, errFakeClosed
	}

	return int64(len(c.statements)), nil
}

func (c *fakeConn) setDead() {
	c.mu.Lock()
	c.dead = true
	c.mu.Unlock()
}

func (c *fakeConn) setStatus(status TxStatus) {
	c.mu.Lock()
	c.status = status
	c.mu.Unlock()
}

func (c *fakeConn) isClosed() bool {
	return c.IsClosed()
}

// fakeConnector hands out numbered fakeConns and tracks how many are open.
type fakeConnector struct {
	mu      sync.Mutex
	conns   []*fakeConn
	err     error
	maxOpen int
}

func (fc *fakeConnector) Connect(_ context.Context) (Conn, error) {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	if fc.err != nil {
		return nil, fc.err
	}

	conn := &fakeConn{id: len(fc.conns) + 1}
	fc.conns = append(fc.conns, conn)

	if open := fc.openLocked(); open > fc.maxOpen {
		fc.maxOpen = open
	}

	return conn, nil
}

func (fc *fakeConnector) openLocked() int {
	open := 0
	for _, conn := range fc.conns {
		if !conn.isClosed() {
			open++
		}
	}

	return open
}

func (fc *fakeConnector) opened() int {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	return len(fc.conns)
}

func (fc *fakeConnector) open() int {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	return fc.openLocked()
}

func (fc *fakeConnector) peakOpen() int {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	return fc.maxOpen
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestConfig(maxConnections int) *PoolConfig {
	config := DefaultPoolConfig()
	config.ApplicationName = "test"
	config.MaxConnections = maxConnections
	return config
}

func newTestPool(t *testing.T, config *PoolConfig, dialect Dialect) (*Pool, *fakeConnector) {
	t.Helper()

	connector := &fakeConnector{}
	p, err := NewPool(config, connector, dialect)
	require.NoError(t, err)

	p.SetLogger(zap.NewNop())
	return p, connector
}

func asFake(t *testing.T, conn Conn) *fakeConn {
	t.Helper()

	fake, ok := conn.(*fakeConn)
	require.True(t, ok, "expected *fakeConn, got %T", conn)
	return fake
}
