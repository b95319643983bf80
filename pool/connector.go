package pool

import "github.com/alfreddev/connpool/execctx"

// Connector is the contract the pool consumes to actually open sockets.
// Implementations live outside this package (see package connector for the
// default TCP/TLS implementation) so the state machine here never touches
// a real net.Conn directly.
//
// Connect is non-blocking: it eventually invokes exactly one of onConnected
// or onConnectError. On error the implementation must also invoke
// lifecycle.ConnectionClosed(nil) so the owning queue can release the slot
// it reserved for the attempt.
type Connector interface {
	Connect(
		addr TargetAddress,
		ctx execctx.Context,
		lifecycle LifecycleCallbacks,
		onConnected func(Connection),
		onConnectError func(error),
	)
}
