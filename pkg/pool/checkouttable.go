package pool

import (
	"time"

	cmap "github.com/orcaman/concurrent-map"
)

// CheckoutEntry records a connection checked out to a worker.
type CheckoutEntry struct {
	Timestamp  time.Time // heap timestamp the connection carried when it was checked out
	Conn       Conn
	CheckedOut time.Time // wall-clock time of the check-out
}

// CheckoutTable maps each worker to the single connection it currently holds.
type CheckoutTable struct {
	entries cmap.ConcurrentMap
}

// NewCheckoutTable creates an empty CheckoutTable.
func NewCheckoutTable() *CheckoutTable {
	return &CheckoutTable{
		entries: cmap.New(),
	}
}

// Get returns the entry held by worker.
func (t *CheckoutTable) Get(worker WorkerID) (CheckoutEntry, bool) {
	value, ok := t.entries.Get(string(worker))
	if !ok {
		return CheckoutEntry{}, false
	}

	return value.(CheckoutEntry), true
}

// Set records entry under worker, replacing any previous entry.
func (t *CheckoutTable) Set(worker WorkerID, entry CheckoutEntry) {
	t.entries.Set(string(worker), entry)
}

// Pop removes and returns the entry held by worker.
func (t *CheckoutTable) Pop(worker WorkerID) (CheckoutEntry, bool) {
	value, ok := t.entries.Pop(string(worker))
	if !ok {
		return CheckoutEntry{}, false
	}

	return value.(CheckoutEntry), true
}

// Len returns the number of checked out connections.
func (t *CheckoutTable) Len() int {
	return t.entries.Count()
}

// Entries returns a snapshot of the table.
func (t *CheckoutTable) Entries() map[WorkerID]CheckoutEntry {
	snapshot := make(map[WorkerID]CheckoutEntry, t.entries.Count())
	for item := range t.entries.IterBuffered() {
		snapshot[WorkerID(item.Key)] = item.Val.(CheckoutEntry)
	}

	return snapshot
}

// Contains reports whether conn is checked out by any worker.
func (t *CheckoutTable) Contains(conn Conn) bool {
	for _, entry := range t.Entries() {
		if entry.Conn == conn {
			return true
		}
	}

	return false
}

// RemoveOlderThan removes and returns every entry checked out before cutoff.
func (t *CheckoutTable) RemoveOlderThan(cutoff time.Time) []CheckoutEntry {
	var removed []CheckoutEntry
	for worker, entry := range t.Entries() {
		if entry.CheckedOut.Before(cutoff) {
			t.entries.Remove(string(worker))
			removed = append(removed, entry)
		}
	}

	return removed
}

// Drain removes and returns every entry.
func (t *CheckoutTable) Drain() []CheckoutEntry {
	var removed []CheckoutEntry
	for worker, entry := range t.Entries() {
		t.entries.Remove(string(worker))
		removed = append(removed, entry)
	}

	return removed
}
