// Package connector provides the default Connector implementation the pool
// consumes to open sockets (spec §4.2). It is grounded on the teacher's
// provider.ConnectionPool.createTransport (provider/pool.go): the same
// net.Dialer-with-timeout-and-keepalive shape, promoted to TLS with
// crypto/tls when Options.TLS is set. Unlike the
// teacher, which hands the dialer to http.Transport and lets the standard
// library own pooling, this connector returns a raw connection and steps
// out of the way — pooling policy belongs entirely to package pool.
package connector

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/alfreddev/connpool/execctx"
	"github.com/alfreddev/connpool/pool"
	"github.com/rs/zerolog"
)

// Options configures the default TCP/TLS connector.
type Options struct {
	DialTimeout         time.Duration
	TLSHandshakeTimeout time.Duration
	KeepAlive           time.Duration
	// TLS, when true, wraps every dial in a TLS handshake. Real callers
	// typically pick this per-address (e.g. port 443); left explicit here
	// since TargetAddress carries no scheme.
	TLS bool
	TLSConfig *tls.Config
	Logger    zerolog.Logger
}

// DefaultOptions mirrors the teacher's DefaultPoolConfig dial/keepalive/TLS
// handshake timeouts.
func DefaultOptions() Options {
	return Options{
		DialTimeout:         10 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		KeepAlive:           30 * time.Second,
	}
}

// TCP is the default pool.Connector: it dials a plain or TLS TCP
// connection per attempt, non-blocking from the caller's point of view
// (the dial itself runs on its own goroutine).
type TCP struct {
	opts Options
}

// New constructs a TCP connector with the given options.
func New(opts Options) *TCP {
	return &TCP{opts: opts}
}

// Connect implements pool.Connector.
func (t *TCP) Connect(
	addr pool.TargetAddress,
	ctx execctx.Context,
	lifecycle pool.LifecycleCallbacks,
	onConnected func(pool.Connection),
	onConnectError func(error),
) {
	go t.dial(addr, ctx, lifecycle, onConnected, onConnectError)
}

func (t *TCP) dial(
	addr pool.TargetAddress,
	ctx execctx.Context,
	lifecycle pool.LifecycleCallbacks,
	onConnected func(pool.Connection),
	onConnectError func(error),
) {
	dialer := &net.Dialer{
		Timeout:   t.opts.DialTimeout,
		KeepAlive: t.opts.KeepAlive,
	}

	target := net.JoinHostPort(addr.Host, fmt.Sprintf("%d", addr.Port))
	dialCtx, cancel := context.WithTimeout(context.Background(), t.opts.DialTimeout)
	defer cancel()

	var (
		nc  net.Conn
		err error
	)
	if t.opts.TLS {
		tlsDialer := &tls.Dialer{
			NetDialer: dialer,
			Config:    t.opts.TLSConfig,
		}
		nc, err = tlsDialer.DialContext(dialCtx, "tcp", target)
	} else {
		nc, err = dialer.DialContext(dialCtx, "tcp", target)
	}

	if err != nil {
		onConnectError(err)
		lifecycle.ConnectionClosed(nil)
		return
	}

	conn := &Conn{
		nc:        nc,
		ctx:       ctx,
		lifecycle: lifecycle,
		logger:    t.opts.Logger.With().Str("component", "connector").Str("address", addr.String()).Logger(),
	}
	onConnected(conn)
}

// Conn is the default pool.Connection backed by a real net.Conn.
type Conn struct {
	nc        net.Conn
	ctx       execctx.Context
	lifecycle pool.LifecycleCallbacks
	logger    zerolog.Logger

	closed      atomic.Bool
	outstanding atomic.Int32
}

func (c *Conn) Context() execctx.Context { return c.ctx }
func (c *Conn) Closed() bool             { return c.closed.Load() }
func (c *Conn) OutstandingRequestCount() int32 {
	return c.outstanding.Load()
}

// Close tears down the socket and reports the closure through lifecycle
// exactly once, even under concurrent callers.
func (c *Conn) Close() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	_ = c.nc.Close()
	c.logger.Debug().Msg("connection closed")
	c.lifecycle.ConnectionClosed(c)
}

// BeginRequest marks a request as started on this connection. Called by
// package codec as it starts writing a request; increments
// OutstandingRequestCount so pipelining-aware callers can tell whether a
// connection is still busy when its response ends.
func (c *Conn) BeginRequest() {
	c.outstanding.Add(1)
}

// RequestWritten notifies lifecycle.RequestEnded. Called by package codec
// once request bytes are fully flushed to the wire. It leaves
// OutstandingRequestCount unchanged; ResponseReceived decrements it.
func (c *Conn) RequestWritten() {
	c.lifecycle.RequestEnded(c)
}

// ResponseReceived marks one outstanding request as complete and notifies
// lifecycle.ResponseEnded. Called by package codec once a full response
// body has been delivered.
func (c *Conn) ResponseReceived() {
	c.outstanding.Add(-1)
	c.lifecycle.ResponseEnded(c)
}

// NetConn exposes the underlying socket for package codec to read/write.
// Not part of pool.Connection — codec imports connector directly for this.
func (c *Conn) NetConn() net.Conn { return c.nc }

var _ pool.Connection = (*Conn)(nil)
