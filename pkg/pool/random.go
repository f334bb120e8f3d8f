package pool

import (
	"math/rand"
	"time"
)

// jitter returns a random offset below one millisecond. It is added to heap
// timestamps so connections released in the same instant still get a stable order.
func jitter() time.Duration {
	return time.Duration(rand.Int63n(int64(time.Millisecond)))
}
