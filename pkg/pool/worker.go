package pool

import (
	"context"

	"github.com/google/uuid"
)

// WorkerID identifies one concurrent unit of work holding at most one connection.
// Goroutines carry no identity of their own, so callers mint one per request,
// job or goroutine and pass it along (directly or through a context).
type WorkerID string

type workerKey struct{}

// NewWorkerID mints a unique WorkerID.
func NewWorkerID() WorkerID {
	return WorkerID(uuid.NewString())
}

// WithWorker returns a copy of ctx carrying worker.
func WithWorker(ctx context.Context, worker WorkerID) context.Context {
	return context.WithValue(ctx, workerKey{}, worker)
}

// WorkerFromContext returns the worker carried by ctx.
func WorkerFromContext(ctx context.Context) (WorkerID, bool) {
	if ctx == nil {
		return "", false
	}

	worker, ok := ctx.Value(workerKey{}).(WorkerID)
	return worker, ok && worker != ""
}
