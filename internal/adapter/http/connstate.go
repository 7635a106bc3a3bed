package http

import (
	"bytes"
	"time"

	"github.com/panjf2000/gnet/v2"
)

// responseFlags is the bitset named in spec.md §3.
type responseFlags uint8

const (
	// flagRespPending marks that a request head has been delivered and
	// the user has not yet fully responded (invariant 1).
	flagRespPending responseFlags = 1 << iota
	flagHasWrittenStatus
	flagHasContentLength
	flagEndCalled
)

func (f responseFlags) has(bit responseFlags) bool { return f&bit != 0 }

// protocol tags which layer currently owns a connection's bytes.
type protocol uint8

const (
	protoHTTP protocol = iota
	protoWebSocket
)

// connState is the extension data the event loop adapter attaches to
// every accepted connection (spec.md §3 "ConnectionState"). It is
// created in OnOpen and stays attached to the gnet.Conn for the rest of
// the connection's life; OnClose stops its idle timer.
type connState struct {
	ctx *Context

	flags       responseFlags
	writeOffset int

	onWritable         func(offset int) bool
	onAborted          func()
	inStream           func(chunk []byte, isFinal bool)
	onResponseComplete func(statusCode int)

	parser parserState

	// corkBuf accumulates writes made during the current on_data turn;
	// it is flushed with a single gnet.Conn.Write at the end of that
	// turn (spec.md §6: cork/uncork).
	corkBuf bytes.Buffer

	statusCode      int
	statusText      string
	respHeaders     Header
	headersFlushed  bool
	chunkedResponse bool

	protocol protocol
	ws       *wsState

	// inHandler is true for the duration of the router/use-handler call
	// stack that owns the current request head (spec.md §4.6: "a
	// programmer error to call upgrade outside a request handler").
	inHandler bool

	idleTimer *time.Timer
}

func newConnState(ctx *Context) *connState {
	return &connState{ctx: ctx}
}

// resetForNextRequest clears per-response state between one completed
// response and the next pipelined (or keep-alive) request head on the
// same connection.
func (cs *connState) resetForNextRequest() {
	cs.flags = 0
	cs.writeOffset = 0
	cs.onWritable = nil
	cs.onAborted = nil
	cs.inStream = nil
	cs.onResponseComplete = nil
	cs.statusCode = 0
	cs.statusText = ""
	cs.respHeaders = nil
	cs.headersFlushed = false
	cs.chunkedResponse = false
}

// uncorkBytes returns the buffered bytes and resets the cork buffer,
// ending the current batch.
func (cs *connState) uncorkBytes() []byte {
	if cs.corkBuf.Len() == 0 {
		return nil
	}
	out := make([]byte, cs.corkBuf.Len())
	copy(out, cs.corkBuf.Bytes())
	cs.corkBuf.Reset()
	return out
}

// write appends to the cork buffer, to be flushed by the caller driving
// the current turn (onTraffic or an AsyncWrite completion callback).
func (cs *connState) write(p []byte) {
	cs.corkBuf.Write(p)
}

// armTimeout (re)arms the single idle timer for this connection, per
// spec.md §4.5.
func (cs *connState) armTimeout(c gnet.Conn, d time.Duration, onFire func(gnet.Conn)) {
	if cs.idleTimer != nil {
		cs.idleTimer.Stop()
	}
	cs.idleTimer = time.AfterFunc(d, func() { onFire(c) })
}

// disarmTimeout stops the idle timer without arming a new one.
func (cs *connState) disarmTimeout() {
	if cs.idleTimer != nil {
		cs.idleTimer.Stop()
	}
}

func getConnState(c gnet.Conn) *connState {
	cs, _ := c.Context().(*connState)
	return cs
}
