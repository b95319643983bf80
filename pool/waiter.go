package pool

import (
	"time"

	"github.com/alfreddev/connpool/execctx"
)

// waiter is a suspended acquire: a caller parked until a connection
// becomes available for its context. Immutable once constructed; owned
// exclusively by the queue's waiter deque.
type waiter struct {
	onReady     func(Connection)
	onError     func(error)
	ctx         execctx.Context
	cancelProbe func() bool
	enqueuedAt  time.Time
}

func (w *waiter) cancelled() bool {
	return w.cancelProbe != nil && w.cancelProbe()
}

// waiterDeque is a FIFO deque of waiters with amortised O(1) push-tail and
// pop-head, plus an O(n) push-head that shifts the slice (used for the
// affinity-deferral re-insert in nextWaiter). Backed by a plain slice kept
// deliberately simple: queue depth is bounded by maxWaitQueueSize in
// practice, and the occasional push-head is rare (only on affinity mismatch).
type waiterDeque struct {
	items []*waiter
}

func (d *waiterDeque) len() int { return len(d.items) }

func (d *waiterDeque) pushTail(w *waiter) {
	d.items = append(d.items, w)
}

func (d *waiterDeque) pushHead(w *waiter) {
	d.items = append(d.items, nil)
	copy(d.items[1:], d.items)
	d.items[0] = w
}

func (d *waiterDeque) popHead() (*waiter, bool) {
	if len(d.items) == 0 {
		return nil, false
	}
	w := d.items[0]
	d.items = d.items[1:]
	return w, true
}
