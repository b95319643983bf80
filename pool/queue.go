package pool

import (
	"sync"
	"time"

	"github.com/alfreddev/connpool/execctx"
	"github.com/rs/zerolog"
)

// perDestinationQueue is the state machine owning every connection to one
// TargetAddress: the open set, the idle subset, and the waiter deque. All
// methods are serialized by mu; nothing here ever calls a user handler
// while holding it — handlers run only after unlocking, dispatched via
// ctx.Run except for the PoolTooBusy error, which acquire reports
// synchronously.
type perDestinationQueue struct {
	addr      TargetAddress
	manager   *ConnectionManager
	cfg       Config
	connector Connector
	metrics   *metricsSet
	logger    zerolog.Logger

	mu                   sync.Mutex
	allConnections       map[Connection]struct{}
	availableConnections []Connection
	waiters              waiterDeque
	connCount            uint32
}

func newPerDestinationQueue(mgr *ConnectionManager, addr TargetAddress) *perDestinationQueue {
	return &perDestinationQueue{
		addr:           addr,
		manager:        mgr,
		cfg:            mgr.cfg,
		connector:      mgr.connector,
		metrics:        mgr.metrics,
		logger:         mgr.cfg.Logger.With().Str("component", "pool").Str("address", addr.String()).Logger(),
		allConnections: make(map[Connection]struct{}),
	}
}

// acquire implements spec §4.3. onReady/onError are the caller's terminal
// handlers; ctx is the caller's execution context and cancelProbe lets a
// parked waiter be silently discarded later.
func (q *perDestinationQueue) acquire(onReady func(Connection), onError func(error), ctx execctx.Context, cancelProbe func() bool) {
	q.mu.Lock()

	candidate := q.takeMatchingAvailableLocked(ctx)
	if candidate != nil {
		if !candidate.Closed() {
			q.updateMetricsLocked()
			q.mu.Unlock()
			ctx.Run(func() { onReady(candidate) })
			return
		}
		// Stale entry: it closed without us having observed the
		// ConnectionClosed callback yet. Drop it and fall through as
		// though no candidate had been found.
		delete(q.allConnections, candidate)
	}

	if len(q.availableConnections) == 0 && q.connCount == q.cfg.MaxSockets {
		if q.cfg.MaxWaitQueueSize < 0 || q.waiters.len() < q.cfg.MaxWaitQueueSize {
			q.waiters.pushTail(&waiter{onReady: onReady, onError: onError, ctx: ctx, cancelProbe: cancelProbe, enqueuedAt: time.Now()})
			q.logger.Debug().Int("waiters", q.waiters.len()).Msg("waiter queued")
			q.updateMetricsLocked()
			q.mu.Unlock()
			return
		}
		q.updateMetricsLocked()
		q.mu.Unlock()
		onError(newPoolTooBusyError(q.cfg.MaxWaitQueueSize))
		return
	}

	// We may open a connection for this caller. An idle cross-context
	// connection must be closed first to respect the cap — affinity beats
	// raw reuse (spec §4.3 rationale).
	var stale Connection
	if len(q.availableConnections) > 0 {
		stale = q.availableConnections[0]
		q.availableConnections = q.availableConnections[1:]
	}
	q.connCount++
	q.updateMetricsLocked()
	q.mu.Unlock()

	if stale != nil {
		stale.Close()
	}
	q.doConnect(ctx, onReady, onError)
}

// takeMatchingAvailableLocked implements the same-context fast path and
// scan (spec §4.3 steps 1-2). Caller must hold q.mu.
func (q *perDestinationQueue) takeMatchingAvailableLocked(ctx execctx.Context) Connection {
	if len(q.availableConnections) > 0 && q.availableConnections[0].Context().ID() == ctx.ID() {
		c := q.availableConnections[0]
		q.availableConnections = q.availableConnections[1:]
		return c
	}
	for i, c := range q.availableConnections {
		if c.Context().ID() == ctx.ID() {
			q.availableConnections = append(q.availableConnections[:i], q.availableConnections[i+1:]...)
			return c
		}
	}
	return nil
}

func (q *perDestinationQueue) doConnect(ctx execctx.Context, onReady func(Connection), onError func(error)) {
	q.connector.Connect(
		q.addr,
		ctx,
		q,
		func(conn Connection) { q.onConnectSuccess(conn, onReady) },
		func(err error) { q.onConnectFailure(ctx, err, onError) },
	)
}

func (q *perDestinationQueue) onConnectSuccess(conn Connection, onReady func(Connection)) {
	if !q.manager.registerConnection(q.addr, q, conn) {
		// The manager was closed between the attempt starting and this
		// callback firing. Drop the socket; never hand it to a caller
		// whose pool has already been torn down.
		conn.Close()
		return
	}
	q.metrics.incConnect(q.addr, "success")
	conn.Context().Run(func() { onReady(conn) })
}

func (q *perDestinationQueue) onConnectFailure(ctx execctx.Context, err error, onError func(error)) {
	q.metrics.incConnect(q.addr, "error")
	q.logger.Warn().Err(err).Msg("connect failed")
	ctx.Run(func() { onError(newConnectError(err)) })
}

// RequestEnded implements LifecycleCallbacks (spec §4.4).
func (q *perDestinationQueue) RequestEnded(conn Connection) {
	if !q.cfg.Pipelining {
		return
	}
	q.mu.Lock()
	w, ok := q.nextWaiterLocked(conn.Context())
	q.mu.Unlock()
	if ok {
		w.ctx.Run(func() { w.onReady(conn) })
	}
}

// ResponseEnded implements LifecycleCallbacks (spec §4.4).
func (q *perDestinationQueue) ResponseEnded(conn Connection) {
	if !q.cfg.Pipelining && !q.cfg.KeepAlive {
		// No keep-alive: close now. The resulting ConnectionClosed event
		// — not this method — is responsible for waking the next waiter,
		// which keeps connCount accounting consistent (spec §9 open
		// question: do not short-circuit with an immediate wake here).
		conn.Close()
		return
	}

	q.mu.Lock()
	if w, ok := q.nextWaiterLocked(conn.Context()); ok {
		q.mu.Unlock()
		w.ctx.Run(func() { w.onReady(conn) })
		return
	}

	if q.cfg.Pipelining && conn.OutstandingRequestCount() > 0 {
		// Still pipelining other in-flight requests on this socket; it
		// does not go back to the idle set yet.
		q.mu.Unlock()
		return
	}

	q.availableConnections = append(q.availableConnections, conn)
	q.updateMetricsLocked()
	next, ok := q.nextWaiterLocked(nil)
	q.mu.Unlock()
	if ok {
		q.acquire(next.onReady, next.onError, next.ctx, next.cancelProbe)
	}
}

// ConnectionClosed implements LifecycleCallbacks (spec §4.4).
func (q *perDestinationQueue) ConnectionClosed(conn Connection) {
	q.mu.Lock()
	if q.connCount > 0 {
		q.connCount--
	}
	if conn != nil {
		delete(q.allConnections, conn)
		for i, c := range q.availableConnections {
			if c == conn {
				q.availableConnections = append(q.availableConnections[:i], q.availableConnections[i+1:]...)
				break
			}
		}
	}

	next, ok := q.nextWaiterLocked(nil)
	if ok {
		q.connCount++
	}
	q.updateMetricsLocked()
	empty := q.connCount == 0 && q.waiters.len() == 0
	q.mu.Unlock()

	if ok {
		q.doConnect(next.ctx, next.onReady, next.onError)
		return
	}
	if empty {
		q.manager.evictIfEmpty(q.addr, q)
	}
}

// nextWaiterLocked implements the lazy-cancellation peek-with-skip policy
// from spec §4.4. Caller must hold q.mu. A waiter returned here is about to
// be handed a connection, so its parked time is recorded against
// connpool_wait_duration_seconds before it leaves the deque.
func (q *perDestinationQueue) nextWaiterLocked(matchingCtx execctx.Context) (*waiter, bool) {
	for {
		w, ok := q.waiters.popHead()
		if !ok {
			return nil, false
		}
		if w.cancelled() {
			continue
		}
		if matchingCtx != nil && w.ctx.ID() != matchingCtx.ID() {
			q.waiters.pushHead(w)
			return nil, false
		}
		q.metrics.observeWait(time.Since(w.enqueuedAt).Seconds())
		return w, true
	}
}

// closeAllConnections implements spec §4.5: snapshot under the lock, close
// outside it to avoid deadlocking against inbound lifecycle callbacks.
func (q *perDestinationQueue) closeAllConnections() {
	q.mu.Lock()
	conns := make([]Connection, 0, len(q.allConnections))
	for c := range q.allConnections {
		conns = append(conns, c)
	}
	q.allConnections = make(map[Connection]struct{})
	q.availableConnections = nil
	q.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}

func (q *perDestinationQueue) updateMetricsLocked() {
	q.metrics.setConnections(q.addr, int(q.connCount))
	q.metrics.setWaiters(q.addr, q.waiters.len())
}

// snapshot is used by cmd/connpoold's introspection endpoint.
type snapshot struct {
	Address   string `json:"address"`
	ConnCount int    `json:"conn_count"`
	Available int    `json:"available"`
	Waiters   int    `json:"waiters"`
}

func (q *perDestinationQueue) snapshot() snapshot {
	q.mu.Lock()
	defer q.mu.Unlock()
	return snapshot{
		Address:   q.addr.String(),
		ConnCount: int(q.connCount),
		Available: len(q.availableConnections),
		Waiters:   q.waiters.len(),
	}
}

var _ LifecycleCallbacks = (*perDestinationQueue)(nil)
