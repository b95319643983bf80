package pool

import (
	"sync"
	"sync/atomic"

	"github.com/alfreddev/connpool/execctx"
)

// fakeConn is a minimal Connection double used throughout this package's
// tests, mirroring the teacher's preference for small dependency-free test
// doubles over mocking frameworks (see router_test.go's testSetup).
type fakeConn struct {
	ctx         execctx.Context
	lifecycle   LifecycleCallbacks
	closed      atomic.Bool
	outstanding atomic.Int32
}

func (f *fakeConn) Context() execctx.Context       { return f.ctx }
func (f *fakeConn) Closed() bool                   { return f.closed.Load() }
func (f *fakeConn) OutstandingRequestCount() int32 { return f.outstanding.Load() }

func (f *fakeConn) Close() {
	if !f.closed.CompareAndSwap(false, true) {
		return
	}
	f.lifecycle.ConnectionClosed(f)
}

var _ Connection = (*fakeConn)(nil)

// pendingAttempt is one in-flight fakeConnector.Connect call a test can
// resolve on demand.
type pendingAttempt struct {
	ctx         execctx.Context
	lifecycle   LifecycleCallbacks
	onConnected func(Connection)
	onError     func(error)
}

// succeed completes the attempt with a fresh fakeConn bound to the
// attempt's context.
func (p *pendingAttempt) succeed() *fakeConn {
	c := &fakeConn{ctx: p.ctx, lifecycle: p.lifecycle}
	p.onConnected(c)
	return c
}

// fail completes the attempt with err, and — per the Connector contract —
// also fires ConnectionClosed(nil) so the queue releases the slot it
// reserved for the attempt.
func (p *pendingAttempt) fail(err error) {
	p.onError(err)
	p.lifecycle.ConnectionClosed(nil)
}

// fakeConnector records every Connect call as a pendingAttempt instead of
// resolving it, so tests can control connect timing/ordering precisely —
// needed to exercise the cap, wait-queue, and cancellation scenarios from
// spec §8 deterministically.
type fakeConnector struct {
	mu       sync.Mutex
	attempts []*pendingAttempt
}

func (f *fakeConnector) Connect(
	addr TargetAddress,
	ctx execctx.Context,
	lifecycle LifecycleCallbacks,
	onConnected func(Connection),
	onConnectError func(error),
) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts = append(f.attempts, &pendingAttempt{
		ctx:         ctx,
		lifecycle:   lifecycle,
		onConnected: onConnected,
		onError:     onConnectError,
	})
}

func (f *fakeConnector) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.attempts)
}

func (f *fakeConnector) pop() *pendingAttempt {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.attempts) == 0 {
		return nil
	}
	a := f.attempts[0]
	f.attempts = f.attempts[1:]
	return a
}

var _ Connector = (*fakeConnector)(nil)

// recorder captures the terminal outcome of one acquire call.
type recorder struct {
	mu    sync.Mutex
	ready []Connection
	errs  []error
}

func (r *recorder) onReady(c Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ready = append(r.ready, c)
}

func (r *recorder) onError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *recorder) readyCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ready)
}

func (r *recorder) errCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.errs)
}

func (r *recorder) lastErr() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.errs) == 0 {
		return nil
	}
	return r.errs[len(r.errs)-1]
}

func testManager(cfg Config, connector Connector) *ConnectionManager {
	mgr, err := NewConnectionManager(cfg, connector, nil)
	if err != nil {
		panic(err)
	}
	return mgr
}
