package codec

import (
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/alfreddev/connpool/connector"
	"github.com/alfreddev/connpool/execctx"
	"github.com/alfreddev/connpool/pool"
)

type noopLifecycle struct{}

func (noopLifecycle) RequestEnded(pool.Connection)      {}
func (noopLifecycle) ResponseEnded(pool.Connection)     {}
func (noopLifecycle) ConnectionClosed(pool.Connection)  {}

func dialTestConn(t *testing.T, serve func(net.Conn)) *connector.Conn {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		serve(c)
	}()

	addr := ln.Addr().(*net.TCPAddr)
	tc := connector.New(connector.DefaultOptions())
	ready := make(chan pool.Connection, 1)
	errs := make(chan error, 1)
	tc.Connect(pool.TargetAddress{Host: "127.0.0.1", Port: uint16(addr.Port)}, execctx.NewInline(), noopLifecycle{},
		func(c pool.Connection) { ready <- c },
		func(err error) { errs <- err },
	)

	select {
	case c := <-ready:
		return c.(*connector.Conn)
	case err := <-errs:
		t.Fatalf("connect failed: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out connecting")
	}
	return nil
}

func TestClientDoReadsFullResponse(t *testing.T) {
	conn := dialTestConn(t, func(c net.Conn) {
		defer c.Close()
		buf := make([]byte, 4096)
		_, _ = c.Read(buf) // drain the request
		_, _ = c.Write([]byte("HTTP/1.1 200 OK\r\nContent-Length: 5\r\n\r\nhello"))
	})

	req, err := http.NewRequest(http.MethodGet, "http://example.com/", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Close = false

	client := NewClient(conn)
	raw, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	defer raw.Release()

	if raw.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", raw.StatusCode)
	}
	if string(raw.Bytes()) != "hello" {
		t.Fatalf("expected body %q, got %q", "hello", raw.Bytes())
	}
	if conn.OutstandingRequestCount() != 0 {
		t.Fatalf("expected 0 outstanding after response, got %d", conn.OutstandingRequestCount())
	}
}

func TestClientDoPropagatesReadError(t *testing.T) {
	conn := dialTestConn(t, func(c net.Conn) {
		buf := make([]byte, 4096)
		_, _ = c.Read(buf)
		c.Close() // close without writing a response
	})

	req, err := http.NewRequest(http.MethodGet, "http://example.com/", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}

	client := NewClient(conn)
	if _, err := client.Do(req); err == nil {
		t.Fatal("expected an error reading a truncated response")
	}
}
