package http

import (
	"time"

	"github.com/google/uuid"
	"github.com/lightcore/httpcore/internal/usecase"
)

// ConnEvent is the argument a filter receives: +1 on connect, -1 on
// disconnect (spec.md §4.7).
type ConnEvent int

const (
	ConnConnected    ConnEvent = 1
	ConnDisconnected ConnEvent = -1
)

// FilterHandler is invoked on connect and disconnect, for accounting
// purposes such as active-connection counters. It must not block
// (spec.md §4.7, §5).
type FilterHandler func(conn *Response, event ConnEvent)

// UseHandler is invoked for every completed request head, before
// routing, in registration order. It may mutate request state (e.g.
// attach a request id) visible to the eventual route handler.
type UseHandler func(res *Response, req *Request)

// RequestID attaches a request id to every request: the incoming
// X-Request-Id header value if present, otherwise a freshly generated
// UUID. It also adds the id as an X-Request-Id header on the outbound
// response, written when the response head is flushed.
func RequestID() UseHandler {
	return func(res *Response, req *Request) {
		id := req.Headers.Get("x-request-id")
		if id == "" {
			id = uuid.NewString()
		}
		req.requestID = id
		res.WriteHeader("X-Request-Id", id)
	}
}

// RequestLogging logs method, URL, status code, and duration once the
// response completes. Use-handlers run before routing, so it cannot
// wrap the handler call directly (spec.md §4.7 describes a flat list,
// not a wrapping chain); instead it records a start time and registers
// a completion hook (connState.onResponseComplete) that Response.End
// invokes.
func RequestLogging(logger usecase.Logger) UseHandler {
	return func(res *Response, req *Request) {
		startedAt := time.Now()
		method := req.Method
		url := req.URL
		requestID := req.requestID

		res.cs.onResponseComplete = func(statusCode int) {
			logger.Info("http request",
				"method", method,
				"url", url,
				"status", statusCode,
				"duration", time.Since(startedAt).String(),
				"request_id", requestID,
			)
		}
	}
}

// Recovery registers a panic handler on the context: a handler that
// panics mid-request is recovered by the ingest pipeline, logged, and
// answered with 500 rather than crashing the event loop. It does not
// recover the specific process-abort panic invariant 5 raises for an
// unresponded, abort-unregistered return — that one is left to
// terminate the process, per spec.md §9's loud-failure design note.
func Recovery(logger usecase.Logger) PanicHandler {
	return func(res *Response, req *Request, recovered any) {
		logger.Error("panic recovered",
			"method", safeMethod(req),
			"url", safeURL(req),
			"panic", recovered,
		)
		if res.HasResponded() {
			return
		}
		res.WriteStatus(500, statusText(500))
		res.WriteHeader("Content-Type", "text/plain")
		res.End([]byte("Internal Server Error"))
	}
}

func safeMethod(req *Request) string {
	if req == nil {
		return ""
	}
	return req.Method
}

func safeURL(req *Request) string {
	if req == nil {
		return ""
	}
	return req.URL
}
