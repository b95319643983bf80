package pool

import "github.com/alfreddev/connpool/execctx"

// Connection is the opaque handle a Connector produces and a
// PerDestinationQueue owns for the handle's lifetime. Implementations live
// outside this package (see package connector); the pool only ever touches
// connections through this interface.
type Connection interface {
	// Context is the execution context this connection is permanently
	// bound to. It never changes for the lifetime of the connection.
	Context() execctx.Context
	// Closed reports whether the underlying socket is already gone.
	Closed() bool
	// OutstandingRequestCount is the number of requests written but not
	// yet fully responded to. It rises on request start and falls on
	// response end; pipelining is the only way it exceeds 1.
	OutstandingRequestCount() int32
	// Close tears down the underlying socket. Idempotent. Triggers a
	// ConnectionClosed lifecycle callback exactly once.
	Close()
}

// LifecycleCallbacks is the interface the per-connection codec invokes as
// it observes wire-level events. PerDestinationQueue implements this.
type LifecycleCallbacks interface {
	// RequestEnded fires once request bytes have been fully written.
	RequestEnded(conn Connection)
	// ResponseEnded fires once a response body has been fully delivered
	// to the application.
	ResponseEnded(conn Connection)
	// ConnectionClosed fires when the socket is gone, or — with conn ==
	// nil — when a connection attempt failed before ever producing a
	// Connection value.
	ConnectionClosed(conn Connection)
}
