package pool

import (
	"sync"

	"github.com/alfreddev/connpool/execctx"
	"github.com/prometheus/client_golang/prometheus"
)

// ConnectionManager is the top-level router: it maps a TargetAddress to the
// PerDestinationQueue that owns every connection to it, creating queues on
// demand and evicting them once they go idle with nothing waiting.
//
// Grounded on the teacher's provider.ConnectionPool (provider/pool.go),
// which keeps the same double-checked-locking shape for lazily creating
// per-provider *http.Transport values; here the lazily-created value is a
// whole state machine rather than a transport.
type ConnectionManager struct {
	cfg       Config
	connector Connector
	metrics   *metricsSet

	mu     sync.Mutex
	queues map[TargetAddress]*perDestinationQueue
	closed bool
}

// NewConnectionManager validates cfg and constructs a manager that uses
// connector to open sockets. Pass a non-nil prometheus.Registerer to expose
// the pool's gauges/counters on a /metrics endpoint (see cmd/connpoold);
// pass nil to collect metrics in memory only (typical in tests).
func NewConnectionManager(cfg Config, connector Connector, reg prometheus.Registerer) (*ConnectionManager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &ConnectionManager{
		cfg:       cfg,
		connector: connector,
		metrics:   newMetricsSet(reg),
		queues:    make(map[TargetAddress]*perDestinationQueue),
	}, nil
}

// GetConnection implements spec §4.1. Config errors are reported
// synchronously through onError; everything else is forwarded to the
// destination's queue.
func (m *ConnectionManager) GetConnection(
	host string,
	port uint16,
	onReady func(Connection),
	onError func(error),
	ctx execctx.Context,
	cancelProbe func() bool,
) {
	if err := m.cfg.Validate(); err != nil {
		onError(err)
		return
	}
	q := m.getOrCreateQueue(TargetAddress{Host: host, Port: port})
	q.acquire(onReady, onError, ctx, cancelProbe)
}

func (m *ConnectionManager) getOrCreateQueue(addr TargetAddress) *perDestinationQueue {
	m.mu.Lock()
	defer m.mu.Unlock()
	if q, ok := m.queues[addr]; ok {
		return q
	}
	q := newPerDestinationQueue(m, addr)
	m.queues[addr] = q
	return q
}

// registerConnection adds conn to q's allConnections set, unless the
// manager has already been closed — in which case it reports failure so
// the caller closes the orphaned socket instead of handing it out. Holding
// m.mu across the closed-check and the insert is the barrier spec §9
// describes: "after close() returns, no further connection will be added
// to any queue."
func (m *ConnectionManager) registerConnection(addr TargetAddress, q *perDestinationQueue, conn Connection) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	q.mu.Lock()
	q.allConnections[conn] = struct{}{}
	q.mu.Unlock()
	return true
}

// evictIfEmpty removes q from the map if it is still the registered queue
// for addr and has gone idle (spec invariant 3). Re-checks emptiness under
// q's own lock since time may have passed since the caller observed it.
func (m *ConnectionManager) evictIfEmpty(addr TargetAddress, q *perDestinationQueue) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.queues[addr]
	if !ok || cur != q {
		return
	}
	q.mu.Lock()
	empty := q.connCount == 0 && q.waiters.len() == 0
	q.mu.Unlock()
	if empty {
		delete(m.queues, addr)
	}
}

// Close iterates every live queue, closes all of its connections, and
// clears the map. Idempotent.
func (m *ConnectionManager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	queues := make([]*perDestinationQueue, 0, len(m.queues))
	for _, q := range m.queues {
		queues = append(queues, q)
	}
	m.queues = make(map[TargetAddress]*perDestinationQueue)
	m.mu.Unlock()

	for _, q := range queues {
		q.closeAllConnections()
	}
}

// Snapshot returns a point-in-time view of every live queue, one entry per
// queue carrying its address string, for operational introspection
// (cmd/connpoold's /pools).
func (m *ConnectionManager) Snapshot() []snapshot {
	m.mu.Lock()
	queues := make([]*perDestinationQueue, 0, len(m.queues))
	for _, q := range m.queues {
		queues = append(queues, q)
	}
	m.mu.Unlock()

	out := make([]snapshot, 0, len(queues))
	for _, q := range queues {
		out = append(out, q.snapshot())
	}
	return out
}
