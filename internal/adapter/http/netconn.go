package http

import (
	"net"
	"sync"
	"time"

	"github.com/panjf2000/gnet/v2"
)

// asyncBuf is an unbounded byte queue with a blocking Read and a
// non-blocking push, used to hand bytes arriving on the gnet event
// loop goroutine to a dedicated reader goroutine without ever
// suspending the loop (spec.md §5: "no suspension points... within
// the core").
type asyncBuf struct {
	mu     sync.Mutex
	cond   *sync.Cond
	buf    []byte
	closed bool
}

func newAsyncBuf() *asyncBuf {
	b := &asyncBuf{}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// push appends data for the reader to consume. Safe to call from any
// goroutine, including the event loop goroutine; never blocks.
func (b *asyncBuf) push(data []byte) {
	if len(data) == 0 {
		return
	}
	b.mu.Lock()
	b.buf = append(b.buf, data...)
	b.cond.Signal()
	b.mu.Unlock()
}

// Read blocks until data is available or the buffer is closed.
func (b *asyncBuf) Read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for len(b.buf) == 0 && !b.closed {
		b.cond.Wait()
	}
	if len(b.buf) == 0 && b.closed {
		return 0, net.ErrClosed
	}
	n := copy(p, b.buf)
	b.buf = b.buf[n:]
	return n, nil
}

func (b *asyncBuf) close() {
	b.mu.Lock()
	b.closed = true
	b.cond.Broadcast()
	b.mu.Unlock()
}

// gnetNetConn adapts a gnet.Conn to net.Conn so that
// gorilla/websocket.NewConn has something to frame over once a
// connection has been upgraded. Reads are served from an asyncBuf fed
// by the event loop (see onTraffic's protoWebSocket branch); writes go
// through gnet.Conn.AsyncWrite, which gnet documents as safe to call
// from any goroutine, unlike Write/Next which are loop-thread-only.
type gnetNetConn struct {
	conn gnet.Conn
	in   *asyncBuf
}

func newGnetNetConn(c gnet.Conn, in *asyncBuf) *gnetNetConn {
	return &gnetNetConn{conn: c, in: in}
}

func (g *gnetNetConn) Read(p []byte) (int, error) {
	return g.in.Read(p)
}

func (g *gnetNetConn) Write(p []byte) (int, error) {
	done := make(chan error, 1)
	buf := make([]byte, len(p))
	copy(buf, p)
	err := g.conn.AsyncWrite(buf, func(_ gnet.Conn, err error) error {
		done <- err
		return nil
	})
	if err != nil {
		return 0, err
	}
	if err := <-done; err != nil {
		return 0, err
	}
	return len(p), nil
}

func (g *gnetNetConn) Close() error {
	g.in.close()
	return g.conn.Close()
}

func (g *gnetNetConn) LocalAddr() net.Addr  { return g.conn.LocalAddr() }
func (g *gnetNetConn) RemoteAddr() net.Addr { return g.conn.RemoteAddr() }

// Deadlines are accepted and ignored by this event-driven shim: reads
// block on the asyncBuf (fed from the loop) and writes complete
// asynchronously via gnet. The connState idle timer is not armed once a
// connection has been upgraded, so nothing here bounds how long an
// unresponsive peer can hold the connection open.
func (g *gnetNetConn) SetDeadline(time.Time) error      { return nil }
func (g *gnetNetConn) SetReadDeadline(time.Time) error  { return nil }
func (g *gnetNetConn) SetWriteDeadline(time.Time) error { return nil }
