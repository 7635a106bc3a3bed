package http

import (
	"github.com/lightcore/httpcore/internal/domain"
	"github.com/panjf2000/gnet/v2"
)

// engineHandler is the gnet.EventHandler that drives the request
// ingest pipeline of spec.md §4.2 on top of gnet's non-blocking event
// loop (spec.md §6's loop/socket contract). BuiltinEventEngine supplies
// no-op defaults for the methods this type doesn't need to override.
type engineHandler struct {
	gnet.BuiltinEventEngine
	ctx *Context
}

func newEngineHandler(ctx *Context) *engineHandler {
	return &engineHandler{ctx: ctx}
}

// OnBoot records the running engine so Context.Shutdown can stop it.
func (h *engineHandler) OnBoot(eng gnet.Engine) gnet.Action {
	h.ctx.engine = eng
	close(h.ctx.booted)
	return gnet.None
}

// OnOpen arms the idle timer and runs connect filters (spec.md §4.1's
// initial state, §4.5's "armed on accept").
func (h *engineHandler) OnOpen(c gnet.Conn) ([]byte, gnet.Action) {
	cs := newConnState(h.ctx)
	c.SetContext(cs)
	cs.armTimeout(c, h.ctx.IdleTimeout, closeOnIdle)
	h.ctx.runFilters(newResponse(c, cs), ConnConnected)
	return nil, gnet.None
}

// OnTraffic implements spec.md §4.2 end to end: cork is implicit (all
// writes within this call accumulate in connState.corkBuf and are
// flushed once at the end), the parser drives on_request_head /
// on_body_chunk / on_parse_error, and the uncork step runs last.
func (h *engineHandler) OnTraffic(c gnet.Conn) gnet.Action {
	cs := getConnState(c)
	if cs == nil {
		return gnet.Close
	}

	data, _ := c.Next(-1)

	if cs.protocol == protoWebSocket {
		cs.ws.in.push(data)
		return gnet.None
	}

	outcome := struct{ closeErr error }{}

	cb := parserCallbacks{
		onHead: func(req *Request) bool {
			return h.onRequestHead(c, cs, req, &outcome.closeErr)
		},
		onBodyChunk: func(chunk []byte, isFinal bool) bool {
			return h.onBodyChunk(c, cs, chunk, isFinal)
		},
		onError: func(err error) {
			outcome.closeErr = err
		},
	}

	cs.parser.feed(data, cb)

	if drainCork(c, cs) == gnet.Close {
		return gnet.Close
	}

	if outcome.closeErr != nil {
		return gnet.Close
	}

	if cs.protocol == protoWebSocket {
		// drainCork above flushed the upgrade's 101 response; bytes the
		// parser still held after the handshake head, and all later
		// bytes on this connection, belong to the websocket layer
		// (spec.md §4.6: "returns the new socket to the loop").
		cs.ws.in.push(cs.parser.buf)
		cs.parser.buf = nil
		return gnet.None
	}

	if !cs.flags.has(flagRespPending) || cs.inStream != nil {
		cs.armTimeout(c, h.ctx.IdleTimeout, closeOnIdle)
	}

	return gnet.None
}

// drainCork flushes cs's cork buffer to c. If the handler registered a
// writable callback, the flush goes through AsyncWrite and, once its completion callback finds
// onWritable returned true, drains whatever that callback corked in
// turn — spec.md §4.4's "on_writable returning true means attempt
// another drain", which may chain across any number of event-loop
// turns until the buffer is finally empty.
func drainCork(c gnet.Conn, cs *connState) gnet.Action {
	out := cs.uncorkBytes()
	if len(out) == 0 {
		return gnet.None
	}
	if cs.onWritable == nil {
		if _, err := c.Write(out); err != nil {
			return gnet.Close
		}
		return gnet.None
	}

	offset := cs.writeOffset
	if err := c.AsyncWrite(out, func(conn gnet.Conn, err error) error {
		drained := getConnState(conn)
		if drained == nil || err != nil || drained.onWritable == nil {
			return nil
		}
		if drained.flags.has(flagEndCalled) {
			// An earlier on_writable call completed the response and these
			// were its last bytes: clear it instead of calling back again.
			drained.resetForNextRequest()
			return nil
		}
		if !drained.onWritable(offset) {
			return nil
		}
		drained.armTimeout(conn, drained.ctx.IdleTimeout, closeOnIdle)
		if drainCork(conn, drained) == gnet.Close {
			conn.Close()
		}
		return nil
	}); err != nil {
		return gnet.Close
	}
	return gnet.None
}

// onRequestHead implements the on_request_head callback of spec.md
// §4.2: pipelining guard, use-handlers, two-pass router dispatch, and
// the five post-handler checks.
func (h *engineHandler) onRequestHead(c gnet.Conn, cs *connState, req *Request, closeErr *error) bool {
	cs.disarmTimeout()
	cs.writeOffset = 0

	if cs.flags.has(flagRespPending) {
		*closeErr = domain.ErrPipelineViolation
		return false
	}
	cs.flags |= flagRespPending

	res := newResponse(c, cs)
	cs.inHandler = true
	h.ctx.runUseHandlers(res, req)
	matched := h.routeWithRecovery(res, req)
	cs.inHandler = false

	switch {
	case cs.protocol == protoWebSocket:
		return false
	case !matched && !cs.flags.has(flagEndCalled):
		// Two-pass router miss: spec.md §4.3 step 3 calls for closing
		// the socket outright, not a synthesized 404.
		*closeErr = domain.ErrNoRoute
		return false
	case !cs.flags.has(flagEndCalled) && cs.onAborted == nil && cs.inStream == nil:
		panic(domain.ErrUnresponded)
	case !cs.flags.has(flagEndCalled) && cs.inStream != nil:
		// Streaming continuation: leave RESPONSE_PENDING set, the body
		// phase re-arms the timer (spec.md §4.5).
	case cs.flags.has(flagEndCalled):
		cs.resetForNextRequest()
	}

	return true
}

// onBodyChunk implements the on_body_chunk callback: deliver to
// in_stream if registered, managing the timer as spec.md §4.2/§4.5
// describe, then clear in_stream on the final chunk.
func (h *engineHandler) onBodyChunk(c gnet.Conn, cs *connState, chunk []byte, isFinal bool) bool {
	if cs.inStream == nil {
		return true
	}
	if isFinal {
		cs.disarmTimeout()
	} else {
		cs.armTimeout(c, h.ctx.IdleTimeout, closeOnIdle)
	}
	cb := cs.inStream
	if isFinal {
		cs.inStream = nil
	}
	cb(chunk, isFinal)
	if isFinal && cs.flags.has(flagEndCalled) {
		cs.resetForNextRequest()
	}
	return true
}

// routeWithRecovery runs the two-pass router match of spec.md §4.3 and
// recovers a panicking handler into the installed PanicHandler, if any
// — otherwise the panic propagates and crashes the loop goroutine, the
// loud failure spec.md §9 calls for when invariant 5 is violated with
// no recovery path configured. A recovered panic counts as matched:
// the PanicHandler answered the request.
func (h *engineHandler) routeWithRecovery(res *Response, req *Request) (matched bool) {
	defer func() {
		if rec := recover(); rec != nil {
			if h.ctx.panicHandler == nil {
				panic(rec)
			}
			h.ctx.panicHandler(res, req, rec)
			matched = true
		}
	}()

	if h.ctx.router.Route(req.Method, req.URL, res, req) {
		return true
	}
	return h.ctx.router.Route("*", req.URL, res, req)
}

// OnClose fires on_aborted if the response was still pending and runs
// disconnect filters, unless the connection had already been handed
// off to the WebSocket layer (spec.md §4.1: upgraded connections don't
// re-enter the HTTP filter chain on close).
func (h *engineHandler) OnClose(c gnet.Conn, _ error) gnet.Action {
	cs := getConnState(c)
	if cs == nil {
		return gnet.None
	}
	cs.disarmTimeout()
	if cs.protocol == protoWebSocket {
		if cs.ws != nil {
			cs.ws.in.close()
		}
		return gnet.None
	}
	if cs.flags.has(flagRespPending) && cs.onAborted != nil {
		cs.onAborted()
	}
	h.ctx.runFilters(newResponse(c, cs), ConnDisconnected)
	return gnet.None
}

// closeOnIdle is armTimeout's standard fire callback: close abruptly,
// per spec.md §4.5 ("no graceful shutdown — a half-delivered payload
// must not look complete to the client"). Package-level so both the
// event handler and Response.End (response.go) can rearm the same way
// without threading an engineHandler reference through the response.
func closeOnIdle(c gnet.Conn) {
	c.Close()
}
