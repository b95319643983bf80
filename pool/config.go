package pool

import "github.com/rs/zerolog"

// Config is the pool-wide configuration set once at ConnectionManager
// construction and shared by every PerDestinationQueue it creates.
type Config struct {
	// MaxSockets is the hard cap on concurrent sockets per destination.
	// Must be greater than zero.
	MaxSockets uint32
	// KeepAlive allows a connection to be returned to the idle set and
	// reused by a later request to the same destination.
	KeepAlive bool
	// Pipelining allows issuing a new request on a connection before its
	// prior response has arrived. Requires KeepAlive.
	Pipelining bool
	// MaxWaitQueueSize bounds the number of parked waiters per
	// destination. Negative means unbounded.
	MaxWaitQueueSize int

	// Logger receives structured lifecycle events. The zero value
	// (zerolog.Logger{}) discards everything, matching zerolog's own
	// nop-by-default semantics.
	Logger zerolog.Logger
}

// Validate enforces the one cross-field invariant spec'd for PoolConfig:
// pipelining implies keep-alive. Called both eagerly by config.Load and
// lazily by ConnectionManager.GetConnection, since a caller can construct a
// Config by hand without going through config.Load.
func (c Config) Validate() error {
	if c.Pipelining && !c.KeepAlive {
		return newConfigError("pipelining requires keep-alive")
	}
	if c.MaxSockets == 0 {
		return newConfigError("maxSockets must be greater than zero")
	}
	return nil
}
