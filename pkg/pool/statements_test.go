package pool

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecAcquiresForWorker(t *testing.T) {
	p, connector := newTestPool(t, newTestConfig(1), nil)
	ctx := context.Background()

	result, err := p.Exec(ctx, "worker", "UPDATE users SET active = ?", true)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.RowsAffected)

	_, err = p.Exec(ctx, "worker", "DELETE FROM sessions")
	require.NoError(t, err)

	assert.Equal(t, 1, connector.opened())

	conn, ok := p.Conn("worker")
	require.True(t, ok)
	assert.Equal(t, []string{"UPDATE users SET active = ?", "DELETE FROM sessions"}, asFake(t, conn).statements)
}

func TestGetReturnsFirstRow(t *testing.T) {
	p, _ := newTestPool(t, newTestConfig(1), nil)
	ctx := context.Background()

	conn, err := p.Acquire(ctx, "worker")
	require.NoError(t, err)
	asFake(t, conn).rows = []Row{{"id": int64(1)}, {"id": int64(2)}}

	row, err := p.Get(ctx, "worker", "SELECT id FROM users")
	require.NoError(t, err)
	assert.Equal(t, int64(1), row["id"])

	rows, err := p.Query(ctx, "worker", "SELECT id FROM users")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestGetNoRows(t *testing.T) {
	p, _ := newTestPool(t, newTestConfig(1), nil)

	_, err := p.Get(context.Background(), "worker", "SELECT 1 WHERE false")
	assert.ErrorIs(t, err, ErrNoRows)
}

func TestStatementsSurfaceExhaustion(t *testing.T) {
	p, _ := newTestPool(t, newTestConfig(1), nil)
	ctx := context.Background()

	_, err := p.Acquire(ctx, "holder")
	require.NoError(t, err)

	_, err = p.Exec(ctx, "other", "SELECT 1")
	assert.ErrorIs(t, err, ErrPoolExhausted)

	_, err = p.Query(ctx, "other", "SELECT 1")
	assert.ErrorIs(t, err, ErrPoolExhausted)
}

func TestTransactionCommits(t *testing.T) {
	p, _ := newTestPool(t, newTestConfig(1), nil)
	ctx := context.Background()

	err := p.Transaction(ctx, "worker", func(conn Conn) error {
		_, err := conn.Exec(ctx, "INSERT INTO audit VALUES (1)")
		return err
	})
	require.NoError(t, err)

	conn, ok := p.Conn("worker")
	require.True(t, ok)
	assert.Equal(t, []string{"BEGIN", "INSERT INTO audit VALUES (1)", "COMMIT"}, asFake(t, conn).statements)
}

func TestTransactionRollsBackOnError(t *testing.T) {
	p, _ := newTestPool(t, newTestConfig(1), nil)
	ctx := context.Background()
	failure := errors.New("constraint violated")

	err := p.Transaction(ctx, "worker", func(Conn) error {
		return failure
	})
	assert.ErrorIs(t, err, failure)

	conn, _ := p.Conn("worker")
	assert.Equal(t, []string{"BEGIN", "ROLLBACK"}, asFake(t, conn).statements)
}

func TestTransactionRollsBackOnPanic(t *testing.T) {
	p, _ := newTestPool(t, newTestConfig(1), nil)
	ctx := context.Background()

	assert.PanicsWithValue(t, "boom", func() {
		_ = p.Transaction(ctx, "worker", func(Conn) error {
			panic("boom")
		})
	})

	conn, _ := p.Conn("worker")
	assert.Equal(t, []string{"BEGIN", "ROLLBACK"}, asFake(t, conn).statements)
}
