package pool

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Pool houses the idle and checked out connections of one database.
//
// In a multi-worker application up to MaxConnections are opened and every worker
// holds its own connection between Acquire and Release. With a single worker only
// one connection is created, and it is recycled until it goes stale or is closed
// explicitly with ManualClose.
type Pool struct {
	Config           PoolConfig
	connector        Connector
	dialect          Dialect
	idle             *IdleHeap
	inUse            *CheckoutTable
	pending          int // connections outside both containers: being opened, probed or closed
	poolLock         *sync.Mutex
	counters         poolCounters
	staleTimeout     time.Duration
	waitTimeout      time.Duration
	waitEnabled      bool
	retryInterval    time.Duration
	probeTimeout     time.Duration
	now              func() time.Time
	logger           *zap.Logger
	errorHandler     func(error)
	unhealthyHandler func(error)
}

type poolCounters struct {
	Opened        int64
	Closed        int64
	Reused        int64
	DeadDiscarded int64
	StaleEvicted  int64
	Exhausted     int64
	Timeouts      int64
}

// NewPool creates a Pool that opens connections with connector.
// A nil dialect is resolved from config.Dialect.
func NewPool(config *PoolConfig, connector Connector, dialect Dialect) (*Pool, error) {
	return NewPoolWithHandlers(config, connector, dialect, nil, nil)
}

// NewPoolWithErrorHandler creates a Pool with an error handler.
func NewPoolWithErrorHandler(config *PoolConfig, connector Connector, dialect Dialect, errorHandler func(error)) (*Pool, error) {
	return NewPoolWithHandlers(config, connector, dialect, errorHandler, nil)
}

// NewPoolWithUnhealthyHandler creates a Pool with an unhealthy handler.
func NewPoolWithUnhealthyHandler(config *PoolConfig, connector Connector, dialect Dialect, unhealthyHandler func(error)) (*Pool, error) {
	return NewPoolWithHandlers(config, connector, dialect, nil, unhealthyHandler)
}

// NewPoolWithHandlers creates a Pool with an error and/or unhealthy handler.
// The error handler receives every error the Pool swallows during best-effort cleanup,
// the unhealthy handler receives the reason a dead or stale connection was discarded.
func NewPoolWithHandlers(
	config *PoolConfig,
	connector Connector,
	dialect Dialect,
	errorHandler func(error),
	unhealthyHandler func(error)) (*Pool, error) {

	if err := config.Validate(); err != nil {
		return nil, err
	}

	if connector == nil {
		return nil, fmt.Errorf("%w: connector can't be nil", ErrInvalidConfig)
	}

	if dialect == nil {
		var err error
		if dialect, err = DialectByName(config.Dialect); err != nil {
			return nil, err
		}
	}

	waitTimeout, waitEnabled := config.waitTimeout()

	p := &Pool{
		Config:           *config,
		connector:        connector,
		dialect:          dialect,
		idle:             NewIdleHeap(config.MaxConnections),
		inUse:            NewCheckoutTable(),
		poolLock:         &sync.Mutex{},
		staleTimeout:     config.staleTimeout(),
		waitTimeout:      waitTimeout,
		waitEnabled:      waitEnabled,
		retryInterval:    config.retryInterval(),
		probeTimeout:     config.probeTimeout(),
		now:              time.Now,
		logger:           NewLogger(config.LogLevel).Named("pool"),
		errorHandler:     errorHandler,
		unhealthyHandler: unhealthyHandler,
	}

	if config.ApplicationName != "" {
		p.logger = p.logger.With(zap.String("pool", config.ApplicationName))
	}

	return p, nil
}

// SetLogger replaces the Pool's logger.
func (p *Pool) SetLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}

	p.logger = logger
}

// Dialect returns the dialect the Pool probes connections with.
func (p *Pool) Dialect() Dialect {
	return p.dialect
}

// Acquire checks out a connection to worker.
//
// Calling Acquire again before Release returns the same connection. Otherwise the
// oldest idle connection that is alive and not stale is reused, or a new one is
// opened while the Pool is under MaxConnections. With a WaitTimeout configured,
// ErrPoolExhausted is retried every RetryInterval, with a last attempt at the
// deadline, before ErrPoolTimeout is returned.
func (p *Pool) Acquire(ctx context.Context, worker WorkerID) (Conn, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	conn, err := p.acquire(ctx, worker)
	if !p.waitEnabled || !errors.Is(err, ErrPoolExhausted) {
		return conn, err
	}

	var expires time.Time
	if p.waitTimeout > 0 {
		expires = p.now().Add(p.waitTimeout)
	}

	timer := time.NewTimer(p.nextRetry(expires))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}

		conn, err = p.acquire(ctx, worker)
		if !errors.Is(err, ErrPoolExhausted) {
			return conn, err
		}

		if !expires.IsZero() && !p.now().Before(expires) {
			atomic.AddInt64(&p.counters.Timeouts, 1)
			p.logger.Warn("timed out waiting for a connection",
				zap.String("worker", string(worker)),
				zap.Duration("wait_timeout", p.waitTimeout))
			return nil, ErrPoolTimeout
		}

		timer.Reset(p.nextRetry(expires))
	}
}

// nextRetry is the pause before the next attempt, cut short so the last attempt lands on the deadline.
func (p *Pool) nextRetry(expires time.Time) time.Duration {
	if expires.IsZero() {
		return p.retryInterval
	}

	if remaining := expires.Sub(p.now()); remaining < p.retryInterval {
		if remaining < 0 {
			return 0
		}
		return remaining
	}

	return p.retryInterval
}

// acquire makes a single attempt to check out a connection.
func (p *Pool) acquire(ctx context.Context, worker WorkerID) (Conn, error) {

	for {
		p.poolLock.Lock()

		if entry, ok := p.inUse.Get(worker); ok {
			p.poolLock.Unlock()
			return entry.Conn, nil
		}

		idle, ok := p.idle.Pop()
		if !ok {
			break // lock stays held for the capacity check
		}

		p.pending++
		p.poolLock.Unlock()

		// The popped connection belongs to this call alone, probe it outside the lock.
		if p.isDead(ctx, idle.Conn) {
			atomic.AddInt64(&p.counters.DeadDiscarded, 1)
			p.discard(idle.Conn, errConnectionDead)
			continue
		}

		if p.isStale(idle.Timestamp) {
			atomic.AddInt64(&p.counters.StaleEvicted, 1)
			p.discard(idle.Conn, errConnectionStale)
			continue
		}

		p.poolLock.Lock()
		p.pending--
		conn := p.checkout(worker, idle.Timestamp, idle.Conn)
		p.poolLock.Unlock()

		// A worker racing itself gets back its first connection, the popped one is parked.
		if conn == idle.Conn {
			atomic.AddInt64(&p.counters.Reused, 1)
		}
		return conn, nil
	}

	if p.Config.MaxConnections > 0 && p.inUse.Len()+p.pending >= p.Config.MaxConnections {
		p.poolLock.Unlock()
		atomic.AddInt64(&p.counters.Exhausted, 1)
		return nil, ErrPoolExhausted
	}

	p.pending++
	p.poolLock.Unlock()

	conn, err := p.connector.Connect(ctx)

	p.poolLock.Lock()
	defer p.poolLock.Unlock()

	p.pending--
	if err != nil {
		err = &BackendError{Op: "connect", Err: err}
		p.logger.Error("unable to open connection", zap.String("worker", string(worker)), zap.Error(err))
		return nil, err
	}

	atomic.AddInt64(&p.counters.Opened, 1)

	// Fresh connections sort slightly older than ones released in the same instant.
	return p.checkout(worker, p.now().Add(-jitter()), conn), nil
}

// checkout records conn under worker and returns the connection the worker now holds.
// The pool lock must be held.
func (p *Pool) checkout(worker WorkerID, timestamp time.Time, conn Conn) Conn {
	if existing, ok := p.inUse.Get(worker); ok {
		// The same worker raced itself; keep the first connection, park the other.
		p.idle.Push(timestamp, conn)
		return existing.Conn
	}

	p.inUse.Set(worker, CheckoutEntry{
		Timestamp:  timestamp,
		Conn:       conn,
		CheckedOut: p.now(),
	})

	p.logger.Debug("connection checked out", zap.String("worker", string(worker)))
	return conn
}

// Release checks worker's connection back in.
//
// With forceClose the connection is removed and physically closed, bypassing reuse.
// Otherwise a stale connection is closed, a connection the dialect refuses is closed,
// and anything else is pushed back onto the idle heap. Releasing a worker that holds
// no connection is a no-op.
func (p *Pool) Release(worker WorkerID, forceClose bool) error {

	p.poolLock.Lock()
	entry, ok := p.inUse.Pop(worker)
	if ok {
		p.pending++
	}
	p.poolLock.Unlock()

	if !ok {
		return nil
	}

	if forceClose {
		err := p.closeConn(entry.Conn)
		p.unreserve()
		p.logger.Debug("connection closed manually", zap.String("worker", string(worker)))
		return err
	}

	// A connection held longer than the stale window isn't trusted.
	if p.isStale(entry.Timestamp) {
		atomic.AddInt64(&p.counters.StaleEvicted, 1)
		p.discard(entry.Conn, errConnectionStale)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.probeTimeout)
	defer cancel()

	if !p.dialect.CanReuse(ctx, entry.Conn) {
		p.discard(entry.Conn, fmt.Errorf("%s dialect refused to reuse connection", p.dialect.Name()))
		return nil
	}

	p.poolLock.Lock()
	p.pending--
	p.idle.Push(p.now().Add(jitter()), entry.Conn)
	p.poolLock.Unlock()

	p.logger.Debug("connection checked in", zap.String("worker", string(worker)))
	return nil
}

// ManualClose closes worker's connection without returning it to the pool.
func (p *Pool) ManualClose(worker WorkerID) error {
	return p.Release(worker, true)
}

// Conn returns the connection currently checked out to worker.
func (p *Pool) Conn(worker WorkerID) (Conn, bool) {
	entry, ok := p.inUse.Get(worker)
	if !ok {
		return nil, false
	}

	return entry.Conn, true
}

// CloseIdle closes every connection that is not currently checked out.
func (p *Pool) CloseIdle() error {
	p.poolLock.Lock()
	defer p.poolLock.Unlock()

	entries := p.idle.Drain()
	conns := make([]Conn, 0, len(entries))
	for _, entry := range entries {
		conns = append(conns, entry.Conn)
	}

	p.logger.Info("closing idle connections", zap.Int("count", len(conns)))
	return p.closeConns(conns)
}

// CloseStale closes every connection checked out for longer than age and returns how many
// were closed. It reclaims connections abandoned by dead or hung workers.
// A non-positive age uses DefaultStaleAge.
func (p *Pool) CloseStale(age time.Duration) (int, error) {
	if age <= 0 {
		age = DefaultStaleAge
	}

	p.poolLock.Lock()
	defer p.poolLock.Unlock()

	removed := p.inUse.RemoveOlderThan(p.now().Add(-age))
	conns := make([]Conn, 0, len(removed))
	for _, entry := range removed {
		conns = append(conns, entry.Conn)
	}

	p.logger.Info("closing stale checkouts", zap.Int("count", len(conns)), zap.Duration("age", age))
	return len(conns), p.closeConns(conns)
}

// CloseAll closes every connection, idle and checked out. The worker carried by ctx
// (see WithWorker) has its own connection closed first.
// Not safe while other workers are still using their connections.
func (p *Pool) CloseAll(ctx context.Context) error {
	var errs []error
	if worker, ok := WorkerFromContext(ctx); ok {
		if err := p.Release(worker, true); err != nil {
			errs = append(errs, err)
		}
	}

	p.poolLock.Lock()
	defer p.poolLock.Unlock()

	var conns []Conn
	for _, entry := range p.idle.Drain() {
		conns = append(conns, entry.Conn)
	}
	for _, entry := range p.inUse.Drain() {
		conns = append(conns, entry.Conn)
	}

	p.logger.Info("closing all connections", zap.Int("count", len(conns)))
	if err := p.closeConns(conns); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Shutdown closes every connection and then the connector, when it holds resources of its own.
func (p *Pool) Shutdown(ctx context.Context) error {

	if p == nil {
		return nil
	}

	err := p.CloseAll(ctx)

	if closer, ok := p.connector.(io.Closer); ok {
		if cerr := closer.Close(); cerr != nil {
			err = errors.Join(err, &BackendError{Op: "shutdown", Err: cerr})
		}
	}

	return err
}

// closeConns closes each connection independently, one failure doesn't stop the rest.
func (p *Pool) closeConns(conns []Conn) error {

	var errs []error
	errLock := &sync.Mutex{}
	wg := &sync.WaitGroup{}

	for _, conn := range conns {
		wg.Add(1)

		go func(conn Conn) {
			defer wg.Done()

			err := p.closeConn(conn)
			if err != nil {
				errLock.Lock()
				errs = append(errs, err)
				errLock.Unlock()
			}
		}(conn)
	}

	wg.Wait()

	return errors.Join(errs...)
}

// closeConn physically closes conn, converting a panic in the backend into an error.
func (p *Pool) closeConn(conn Conn) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &BackendError{Op: "close", Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	atomic.AddInt64(&p.counters.Closed, 1)

	if cerr := conn.Close(); cerr != nil {
		return &BackendError{Op: "close", Err: cerr}
	}

	return nil
}

// discard closes a reserved connection that won't be reused, swallowing close errors.
func (p *Pool) discard(conn Conn, reason error) {
	if p.unhealthyHandler != nil {
		p.unhealthyHandler(reason)
	}

	p.logger.Warn("discarding connection", zap.String("reason", reason.Error()))

	if err := p.closeConn(conn); err != nil {
		p.handleError(err)
	}

	p.unreserve()
}

func (p *Pool) unreserve() {
	p.poolLock.Lock()
	p.pending--
	p.poolLock.Unlock()
}

// isDead runs the dialect's liveness probe bounded by ProbeTimeout.
func (p *Pool) isDead(ctx context.Context, conn Conn) bool {
	ctx, cancel := context.WithTimeout(ctx, p.probeTimeout)
	defer cancel()

	return p.dialect.IsDead(ctx, conn)
}

func (p *Pool) isStale(timestamp time.Time) bool {
	return p.staleTimeout > 0 && p.now().Sub(timestamp) > p.staleTimeout
}

func (p *Pool) handleError(err error) {
	p.logger.Error("pool error", zap.Error(err))
	if p.errorHandler != nil {
		p.errorHandler(err)
	}
}
