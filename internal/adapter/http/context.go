package http

import (
	"context"
	"time"

	"github.com/panjf2000/gnet/v2"
)

// HTTPIdleTimeoutDefault is the default slow-loris eviction window
// (spec.md §3 invariant 3, §4.5): "HTTP_IDLE_TIMEOUT_S (default 10 s)".
const HTTPIdleTimeoutDefault = 10 * time.Second

// PanicHandler answers a request whose handler panicked. See Recovery
// in middleware.go for the built-in implementation.
type PanicHandler func(res *Response, req *Request, recovered any)

// TLSOptions carries the certificate material an application wants to
// listen with. TLS handshake logic itself is out of scope for this
// core (spec.md §1 Non-goals); this struct only stores the paths.
// Listen does not read it, and no TLS handshake is performed here.
type TLSOptions struct {
	CertFile       string
	KeyFile        string
	DHParamsFile   string // carried for parity with the original API; unused by crypto/tls
	Passphrase     string
}

// Context is the HttpContext of spec.md §3: a process-wide-per-listener
// value owning the route table, the filter list, the use-handler list,
// and the idle-timeout default new connections are armed with.
type Context struct {
	router      *Router
	filters     []FilterHandler
	useHandlers []UseHandler
	panicHandler PanicHandler

	IdleTimeout time.Duration
	TLS         *TLSOptions

	engine gnet.Engine
	booted chan struct{}
}

// NewContext constructs a new HttpContext (spec.md §3: "created by
// create(loop, tls_options?)"). The event loop itself is supplied later
// to gnet.Run by the caller of Listen; this core does not own the loop.
func NewContext(tls *TLSOptions) *Context {
	return &Context{
		router:      NewRouter(),
		IdleTimeout: HTTPIdleTimeoutDefault,
		TLS:         tls,
		booted:      make(chan struct{}),
	}
}

// Free releases context-level state. It must run after the loop has
// drained and before the loop itself is destroyed (spec.md §3).
func (ctx *Context) Free() {
	ctx.router = nil
	ctx.filters = nil
	ctx.useHandlers = nil
}

// Filter registers a connect/disconnect accounting callback.
func (ctx *Context) Filter(h FilterHandler) {
	ctx.filters = append(ctx.filters, h)
}

// Use registers a use-handler, invoked for every completed request head
// before routing, in insertion order.
func (ctx *Context) Use(h UseHandler) {
	ctx.useHandlers = append(ctx.useHandlers, h)
}

// SetPanicHandler installs the handler invoked when a route handler
// panics. Recovery(logger) in middleware.go constructs the usual one.
func (ctx *Context) SetPanicHandler(h PanicHandler) {
	ctx.panicHandler = h
}

// OnHTTP registers a route handler for method ("*" matches whatever the
// method-specific first pass missed) and pattern.
func (ctx *Context) OnHTTP(method, pattern string, handler Handler) {
	ctx.router.Add(method, pattern, handler)
}

// Listen starts serving this context on host:port using gnet as the
// event loop. multicore lets gnet run one loop per CPU, each single-
// threaded per spec.md §5.
func (ctx *Context) Listen(network, addr string, multicore bool) error {
	eh := newEngineHandler(ctx)
	opts := []gnet.Option{
		gnet.WithMulticore(multicore),
		gnet.WithReusePort(true),
	}
	return gnet.Run(eh, network+"://"+addr, opts...)
}

// Shutdown stops the running engine, refusing new connections and
// letting gnet drain in-flight ones within ctx's deadline. It blocks
// until Listen's engine has booted, so it is safe to call concurrently
// with Listen from another goroutine right after starting it.
func (ctx *Context) Shutdown(shutdownCtx context.Context) error {
	select {
	case <-ctx.booted:
	case <-shutdownCtx.Done():
		return shutdownCtx.Err()
	}
	return ctx.engine.Stop(shutdownCtx)
}

func (ctx *Context) runFilters(res *Response, event ConnEvent) {
	for _, f := range ctx.filters {
		f(res, event)
	}
}

func (ctx *Context) runUseHandlers(res *Response, req *Request) {
	for _, u := range ctx.useHandlers {
		u(res, req)
	}
}
