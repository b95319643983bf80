// Package codec implements the per-connection HTTP/1.1 request/response
// codec that spec.md names but leaves external to the pool: it writes a
// request onto a connection's socket, reads the response off the wire, and
// emits the three lifecycle events (RequestEnded, ResponseEnded,
// ConnectionClosed — the last one via connector.Conn.Close) the pool
// listens to. Everything above this package only ever deals with those
// three events; this is the one place raw bytes are parsed.
//
// Wire parsing reuses net/http's own helpers (http.ReadResponse,
// Request.Write) rather than hand-rolling an HTTP/1.1 parser — there is no
// ecosystem HTTP/1 codec library in the retrieved example set that doesn't
// also own its own connection pool (fasthttp bundles both), so the
// stdlib's wire-format helpers are the right-sized tool here; see
// DESIGN.md.
package codec

import (
	"bufio"
	"fmt"
	"io"
	"net/http"

	"github.com/alfreddev/connpool/connector"
	"github.com/valyala/bytebufferpool"
)

// RawResponse is the fully-buffered wire result handed to package response
// for decoding. The buffer is pooled: callers must call Release exactly
// once when finished with it.
type RawResponse struct {
	Proto      string
	StatusCode int
	Status     string
	Header     http.Header

	buf *bytebufferpool.ByteBuffer
}

// Bytes returns the buffered response body.
func (r *RawResponse) Bytes() []byte { return r.buf.B }

// Release returns the underlying buffer to the pool. Safe to call once;
// the RawResponse must not be used afterwards.
func (r *RawResponse) Release() {
	bytebufferpool.Put(r.buf)
}

// Client drives one HTTP/1.1 exchange at a time over a pooled connection,
// translating it into the three lifecycle events the owning queue expects.
type Client struct {
	conn *connector.Conn
}

// NewClient wraps a connector.Conn for request/response I/O.
func NewClient(conn *connector.Conn) *Client {
	return &Client{conn: conn}
}

// Do writes req to the connection, reads back a fully-buffered response,
// and fires RequestEnded/ResponseEnded at the right points. It does not
// close the connection; connection lifecycle is the pool's decision, made
// through the ResponseEnded/RequestEnded return it observes.
func (c *Client) Do(req *http.Request) (*RawResponse, error) {
	c.conn.BeginRequest()

	nc := c.conn.NetConn()
	if err := req.Write(nc); err != nil {
		return nil, fmt.Errorf("codec: write request: %w", err)
	}
	c.conn.RequestWritten()

	reader := bufio.NewReader(nc)
	resp, err := http.ReadResponse(reader, req)
	if err != nil {
		return nil, fmt.Errorf("codec: read response: %w", err)
	}
	defer resp.Body.Close()

	buf := bytebufferpool.Get()
	if _, err := io.Copy(buf, resp.Body); err != nil {
		bytebufferpool.Put(buf)
		return nil, fmt.Errorf("codec: read body: %w", err)
	}

	raw := &RawResponse{
		Proto:      resp.Proto,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     resp.Header,
		buf:        buf,
	}
	c.conn.ResponseReceived()
	return raw, nil
}
