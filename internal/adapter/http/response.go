package http

import (
	"bytes"
	"net/textproto"
	"strconv"

	"github.com/lightcore/httpcore/internal/domain"
	"github.com/panjf2000/gnet/v2"
)

// Response is an alias over the connection (spec.md §3): every method
// mutates the connection's connState and appends to its cork buffer.
// It holds no storage of its own beyond the two pointers needed to
// reach that state.
type Response struct {
	conn gnet.Conn
	cs   *connState
}

func newResponse(c gnet.Conn, cs *connState) *Response {
	return &Response{conn: c, cs: cs}
}

// WriteStatus sets the status line. It may only be called once; a
// second call is a programmer error (spec.md §4.4).
func (r *Response) WriteStatus(code int, reason string) {
	if r.cs.flags.has(flagHasWrittenStatus) {
		panic("httpcore: WriteStatus called twice on the same response")
	}
	r.cs.statusCode = code
	r.cs.statusText = reason
	r.cs.flags |= flagHasWrittenStatus
}

// WriteHeader adds a response header. It must be called before the
// first body byte is written.
func (r *Response) WriteHeader(name, value string) {
	if r.cs.headersFlushed {
		panic("httpcore: WriteHeader called after the response body has started")
	}
	if r.cs.respHeaders == nil {
		r.cs.respHeaders = newHeader()
	}
	r.cs.respHeaders.Add(name, value)
	if normalizeHeaderName(name) == "content-length" {
		r.cs.flags |= flagHasContentLength
	}
}

// Write appends a body chunk without completing the response. If the
// final length isn't known (no explicit Content-Length header), the
// response switches to chunked transfer-encoding framing.
func (r *Response) Write(chunk []byte) (int, error) {
	if r.cs.flags.has(flagEndCalled) {
		return 0, domain.ErrAlreadyResponded
	}
	if !r.cs.headersFlushed {
		r.flushHead(false)
	}
	r.writeBodyFrame(chunk, false)
	r.cs.writeOffset += len(chunk)
	return len(chunk), nil
}

// TryEnd writes chunk and completes the response in one call, the way
// spec.md §4.4 describes for the common one-shot response. totalSize,
// when non-negative, is used as an explicit Content-Length even if
// chunk is only part of the body (the rest arriving via further Write
// calls is not supported by TryEnd — use Write + End for streaming).
func (r *Response) TryEnd(chunk []byte, totalSize int) bool {
	if r.cs.flags.has(flagEndCalled) {
		return true
	}
	if !r.cs.headersFlushed && !r.cs.flags.has(flagHasContentLength) && totalSize >= 0 {
		r.cs.respHeaders = ensureHeader(r.cs.respHeaders)
		r.cs.respHeaders.Set("Content-Length", strconv.Itoa(totalSize))
		r.cs.flags |= flagHasContentLength
	}
	r.End(chunk)
	return true
}

// End completes the response with a final chunk (which may be empty or
// nil). It clears RESPONSE_PENDING and re-arms the idle timer per
// spec.md §4.1/§4.5.
func (r *Response) End(chunk []byte) {
	if r.cs.flags.has(flagEndCalled) {
		panic("httpcore: End called twice on the same response")
	}

	if !r.cs.headersFlushed {
		if !r.cs.flags.has(flagHasContentLength) {
			r.cs.respHeaders = ensureHeader(r.cs.respHeaders)
			r.cs.respHeaders.Set("Content-Length", strconv.Itoa(len(chunk)))
			r.cs.flags |= flagHasContentLength
		}
		r.flushHead(false)
		r.cs.write(chunk)
	} else {
		r.writeBodyFrame(chunk, true)
	}

	r.cs.writeOffset += len(chunk)
	r.cs.flags |= flagEndCalled
	r.cs.flags &^= flagRespPending
	r.cs.armTimeout(r.conn, r.cs.ctx.IdleTimeout, closeOnIdle)

	if r.cs.onResponseComplete != nil {
		r.cs.onResponseComplete(r.cs.statusCode)
	}
}

// OnWritable registers the drain callback invoked when the socket's
// backpressure clears (spec.md §4.4).
func (r *Response) OnWritable(cb func(offset int) bool) {
	r.cs.onWritable = cb
}

// OnData registers the request-body streaming callback (spec.md §3's
// in_stream, driven by §4.2's on_body_chunk). cb is invoked once per
// body chunk the parser delivers, with isFinal true on the chunk that
// completes the body. It must be called before the handler returns, or
// the body chunks arriving on later event-loop turns are dropped.
func (r *Response) OnData(cb func(chunk []byte, isFinal bool)) {
	r.cs.inStream = cb
}

// OnAborted registers the peer-disconnect notification. It fires at
// most once, and never after a successful response (spec.md §3 inv. 6).
func (r *Response) OnAborted(cb func()) {
	r.cs.onAborted = cb
}

// HasResponded reports whether End (or TryEnd) completed this response.
func (r *Response) HasResponded() bool {
	return r.cs.flags.has(flagEndCalled)
}

// Cork batches writes performed by fn. The ingest pipeline already
// corks the whole on_data turn (invariant 4), so within a handler this
// is a direct call; Cork exists for API parity with spec.md §4.4 and
// for callers driving writes from an on_writable/in_stream callback
// outside that turn.
func (r *Response) Cork(fn func()) {
	fn()
}

// flushHead writes the status line and headers to the cork buffer. If
// no Content-Length is set by this point, the response streams using
// chunked transfer-encoding, matching how a server must frame a body
// whose total length isn't known in advance.
func (r *Response) flushHead(_ bool) {
	if !r.cs.flags.has(flagHasWrittenStatus) {
		r.cs.statusCode = 200
		r.cs.statusText = statusText(200)
	}
	if !r.cs.flags.has(flagHasContentLength) {
		r.cs.chunkedResponse = true
		r.WriteHeader("Transfer-Encoding", "chunked")
	}

	var head bytes.Buffer
	head.WriteString("HTTP/1.1 ")
	head.WriteString(strconv.Itoa(r.cs.statusCode))
	head.WriteString(" ")
	head.WriteString(r.cs.statusText)
	head.WriteString("\r\n")
	for name, values := range r.cs.respHeaders {
		wireName := textproto.CanonicalMIMEHeaderKey(name)
		for _, v := range values {
			head.WriteString(wireName)
			head.WriteString(": ")
			head.WriteString(v)
			head.WriteString("\r\n")
		}
	}
	head.WriteString("\r\n")

	r.cs.write(head.Bytes())
	r.cs.headersFlushed = true
}

// writeBodyFrame writes one body chunk, applying chunked-encoding
// framing if the response was flushed without a known Content-Length.
func (r *Response) writeBodyFrame(chunk []byte, final bool) {
	if !r.cs.chunkedResponse {
		r.cs.write(chunk)
		return
	}
	if len(chunk) > 0 {
		r.cs.write([]byte(strconv.FormatInt(int64(len(chunk)), 16) + "\r\n"))
		r.cs.write(chunk)
		r.cs.write([]byte("\r\n"))
	}
	if final {
		r.cs.write([]byte("0\r\n\r\n"))
	}
}

func ensureHeader(h Header) Header {
	if h == nil {
		return newHeader()
	}
	return h
}

// statusText returns a reason phrase for a status code.
func statusText(code int) string {
	switch code {
	case 101:
		return "Switching Protocols"
	case 200:
		return "OK"
	case 201:
		return "Created"
	case 204:
		return "No Content"
	case 400:
		return "Bad Request"
	case 401:
		return "Unauthorized"
	case 404:
		return "Not Found"
	case 405:
		return "Method Not Allowed"
	case 408:
		return "Request Timeout"
	case 500:
		return "Internal Server Error"
	default:
		return "Unknown"
	}
}
