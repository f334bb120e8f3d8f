package pool

import (
	"time"

	"github.com/Workiva/go-datastructures/queue"
)

// IdleEntry is an available connection and the time it was last released (or created).
type IdleEntry struct {
	Timestamp time.Time
	Conn      Conn
}

// idleItem adapts an IdleEntry to queue.Item.
type idleItem struct {
	IdleEntry
}

// Compare orders entries oldest first.
func (i *idleItem) Compare(other queue.Item) int {
	o := other.(*idleItem)
	switch {
	case i.Timestamp.Before(o.Timestamp):
		return -1
	case i.Timestamp.After(o.Timestamp):
		return 1
	default:
		return 0
	}
}

// IdleHeap is a min-heap of idle connections ordered by timestamp, oldest first.
// Popping the oldest entry first spreads reuse across connections and lets
// StaleTimeout eviction actually reach rarely used ones.
// A connection is idle at most once, pushing it again is ignored.
//
// IdleHeap is not safe for concurrent use: Pop and Drain check Empty before
// calling Get, which would block if another goroutine emptied the queue in
// between. Callers serialize access, the Pool does so under its own lock.
type IdleHeap struct {
	items   *queue.PriorityQueue
	members map[Conn]struct{}
}

// NewIdleHeap creates an empty IdleHeap sized for hint entries.
func NewIdleHeap(hint int) *IdleHeap {
	return &IdleHeap{
		items:   queue.NewPriorityQueue(hint, false),
		members: make(map[Conn]struct{}, hint),
	}
}

// Push adds a connection with its timestamp. It reports false when conn is already idle.
func (h *IdleHeap) Push(timestamp time.Time, conn Conn) bool {
	if _, ok := h.members[conn]; ok {
		return false
	}

	if err := h.items.Put(&idleItem{IdleEntry{Timestamp: timestamp, Conn: conn}}); err != nil {
		return false
	}

	h.members[conn] = struct{}{}
	return true
}

// Pop removes the oldest entry. ok is false when the heap is empty.
func (h *IdleHeap) Pop() (entry IdleEntry, ok bool) {
	if h.items.Empty() {
		return IdleEntry{}, false
	}

	items, err := h.items.Get(1)
	if err != nil || len(items) == 0 {
		return IdleEntry{}, false
	}

	entry = items[0].(*idleItem).IdleEntry
	delete(h.members, entry.Conn)
	return entry, true
}

// Peek returns the oldest entry without removing it.
func (h *IdleHeap) Peek() (IdleEntry, bool) {
	item := h.items.Peek()
	if item == nil {
		return IdleEntry{}, false
	}

	return item.(*idleItem).IdleEntry, true
}

// Drain removes and returns every entry, oldest first.
func (h *IdleHeap) Drain() []IdleEntry {
	n := h.items.Len()
	if n == 0 {
		return nil
	}

	items, err := h.items.Get(n)
	if err != nil {
		return nil
	}

	entries := make([]IdleEntry, 0, len(items))
	for _, item := range items {
		entry := item.(*idleItem).IdleEntry
		delete(h.members, entry.Conn)
		entries = append(entries, entry)
	}

	return entries
}

// Contains reports whether conn is currently idle.
func (h *IdleHeap) Contains(conn Conn) bool {
	_, ok := h.members[conn]
	return ok
}

// Entries returns a snapshot of the idle entries, oldest first.
func (h *IdleHeap) Entries() []IdleEntry {
	drained := h.Drain()
	for i := range drained {
		h.Push(drained[i].Timestamp, drained[i].Conn)
	}

	return drained
}

// Len returns the number of idle connections.
func (h *IdleHeap) Len() int {
	return h.items.Len()
}
