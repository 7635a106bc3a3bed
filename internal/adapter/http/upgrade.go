package http

import (
	"bufio"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/lightcore/httpcore/internal/domain"
)

// websocketAcceptMagic is the fixed GUID RFC 6455 §1.3 defines for
// computing Sec-WebSocket-Accept from Sec-WebSocket-Key.
const websocketAcceptMagic = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

var (
	// ErrNotWebSocketUpgrade is returned when UpgradeToWebSocket is
	// called on a request that didn't ask for one.
	ErrNotWebSocketUpgrade = errors.New("httpcore: request did not request a websocket upgrade")
	// ErrUnsupportedWebSocketVersion is returned for any Sec-WebSocket-Version other than 13.
	ErrUnsupportedWebSocketVersion = errors.New("httpcore: unsupported websocket version")
)

// wsState is the WebSocket side of an upgraded connection. It is set on
// connState by UpgradeToWebSocket and stays there, together with the
// protoWebSocket tag, for the rest of the connection's life: the HTTP
// parser and router step aside and raw bytes from OnTraffic are handed
// to in instead (spec.md's "same
// underlying socket, new owner" rather than a second accepted fd).
type wsState struct {
	conn *websocket.Conn
	in   *asyncBuf
}

// UpgradeToWebSocket validates req as a WebSocket handshake, writes the
// 101 response into the current cork buffer, and hands the caller a
// *websocket.Conn bound to this connection. From that point on this
// connection's bytes are routed to the websocket layer instead of the
// HTTP parser (spec.md §4.6); the framing and message loop belong to
// the application, not this core — match what this package already
// does for the HTTP layer itself (spec.md §1 Non-goals: "the WebSocket
// protocol once upgraded... specified only by the interface the core
// requires of it").
//
// onUpgrade, if non-nil, is called with the established connection
// before any buffered post-handshake bytes are delivered to it, so the
// caller can start its read loop (typically in its own goroutine)
// before traffic starts flowing.
func (r *Response) UpgradeToWebSocket(req *Request, onUpgrade func(ws *websocket.Conn)) error {
	if !r.cs.inHandler {
		return domain.ErrUpgradeOutsideHandler
	}
	if r.cs.flags.has(flagEndCalled) {
		return domain.ErrAlreadyResponded
	}
	if !strings.EqualFold(req.Headers.Get("upgrade"), "websocket") {
		return ErrNotWebSocketUpgrade
	}
	if !headerContainsToken(req.Headers.Get("connection"), "upgrade") {
		return ErrNotWebSocketUpgrade
	}
	key := req.Headers.Get("sec-websocket-key")
	if key == "" {
		return ErrNotWebSocketUpgrade
	}
	if v := req.Headers.Get("sec-websocket-version"); v != "" && v != "13" {
		return ErrUnsupportedWebSocketVersion
	}

	accept := computeWebSocketAccept(key)

	r.WriteStatus(101, statusText(101))
	r.WriteHeader("Upgrade", "websocket")
	r.WriteHeader("Connection", "Upgrade")
	r.WriteHeader("Sec-WebSocket-Accept", accept)
	// A 101 response carries no body; flagHasContentLength keeps
	// flushHead from adding a spurious Transfer-Encoding: chunked.
	r.cs.flags |= flagHasContentLength
	r.flushHead(true)

	in := newAsyncBuf()
	netConn := newGnetNetConn(r.conn, in)
	br := bufio.NewReader(netConn)
	ws := websocket.NewConn(netConn, true, 4096, 4096, br, nil)

	r.cs.protocol = protoWebSocket
	r.cs.ws = &wsState{conn: ws, in: in}
	r.cs.flags |= flagEndCalled
	r.cs.flags &^= flagRespPending

	if onUpgrade != nil {
		onUpgrade(ws)
	}
	return nil
}

// computeWebSocketAccept implements RFC 6455 §1.3's handshake hash.
func computeWebSocketAccept(key string) string {
	h := sha1.New()
	h.Write([]byte(key))
	h.Write([]byte(websocketAcceptMagic))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// headerContainsToken reports whether value contains token as one of
// its comma-separated items, per RFC 7230 §7 list syntax (used for the
// Connection header, which may list "keep-alive, Upgrade").
func headerContainsToken(value, token string) bool {
	for _, part := range strings.Split(value, ",") {
		if strings.EqualFold(strings.TrimSpace(part), token) {
			return true
		}
	}
	return false
}
