// Package httpclient is the public façade named in spec §1 as an external
// collaborator: it forwards request(host, port, ...) calls into the pool.
// The pool's own API is callback-based (spec §6); Go callers overwhelmingly
// expect a blocking call that returns (result, error), so HttpClient
// adapts one to the other with a buffered channel — the idiomatic Go
// rendering of "suspend until ready/error" given Go has no first-class
// continuation the way the source system's execution contexts do.
//
// Grounded on the teacher's handler/proxy.go (request forwarding shape) and
// main.go (config → logger → subsystem wiring).
package httpclient

import (
	"context"
	"fmt"
	"net/http"

	"github.com/alfreddev/connpool/codec"
	"github.com/alfreddev/connpool/connector"
	"github.com/alfreddev/connpool/execctx"
	"github.com/alfreddev/connpool/pool"
	"github.com/alfreddev/connpool/response"
	"github.com/rs/zerolog"
)

// HttpClient is a synchronous convenience wrapper over a
// pool.ConnectionManager.
type HttpClient struct {
	manager *pool.ConnectionManager
	logger  zerolog.Logger
}

// New wraps an already-constructed ConnectionManager.
func New(manager *pool.ConnectionManager, logger zerolog.Logger) *HttpClient {
	return &HttpClient{manager: manager, logger: logger}
}

// Do acquires a connection to host:port on the caller's execution context
// execCtx, sends req over it using builder's decode configuration, and
// returns the decoded response. ctx.Done() is wired into the acquire's
// cancelProbe, so once the caller gives up an already-queued waiter is
// dropped when it next reaches the head of the wait queue.
func (c *HttpClient) Do(
	ctx context.Context,
	execCtx execctx.Context,
	host string,
	port uint16,
	req *http.Request,
	builder *response.Builder,
) (*response.Response, error) {
	type outcome struct {
		resp *response.Response
		err  error
	}
	results := make(chan outcome, 1)

	cancelled := func() bool {
		select {
		case <-ctx.Done():
			return true
		default:
			return false
		}
	}

	onReady := func(conn pool.Connection) {
		tc, ok := conn.(*connector.Conn)
		if !ok {
			results <- outcome{err: fmt.Errorf("httpclient: unexpected connection type %T", conn)}
			return
		}
		client := codec.NewClient(tc)
		builder.Send(req, client, func(resp *response.Response, err error) {
			results <- outcome{resp: resp, err: err}
		})
	}
	onError := func(err error) {
		results <- outcome{err: err}
	}

	c.manager.GetConnection(host, port, onReady, onError, execCtx, cancelled)

	select {
	case r := <-results:
		return r.resp, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
