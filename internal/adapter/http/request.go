package http

import "strings"

// Param is one named-parameter binding produced by the router (spec.md
// §4.3: "an ordered slice of (index -> value) pairs").
type Param struct {
	Name  string
	Value string
}

// Request is an ephemeral view over a parsed request head. It is only
// valid for the duration of the synchronous handler call that receives
// it; the parser allocates a new Request for every request head.
type Request struct {
	Method  string
	URL     string
	Version string
	Headers Header
	Params  []Param

	requestID string
	yield     bool
}

// Header is a case-insensitive header map. Repeated header fields are
// kept as separate values: Get returns the first, Values returns all of
// them, and Joined returns their RFC 7230 comma-joined form. No field
// name is treated specially.
type Header map[string][]string

func newHeader() Header {
	return make(Header)
}

// Add appends a value for name, preserving any existing values.
func (h Header) Add(name, value string) {
	key := normalizeHeaderName(name)
	h[key] = append(h[key], value)
}

// Set replaces all values for name with a single value.
func (h Header) Set(name, value string) {
	h[normalizeHeaderName(name)] = []string{value}
}

// Get returns the first value for name, or "" if absent.
func (h Header) Get(name string) string {
	values := h[normalizeHeaderName(name)]
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// Values returns every value recorded for name, for headers that
// legitimately repeat (e.g. Cache-Control on requests, Set-Cookie on
// responses).
func (h Header) Values(name string) []string {
	return h[normalizeHeaderName(name)]
}

// Joined returns the RFC 7230 comma-joined representation of name's
// values, which is what most single-value header consumers want.
func (h Header) Joined(name string) string {
	values := h[normalizeHeaderName(name)]
	if len(values) == 0 {
		return ""
	}
	return strings.Join(values, ", ")
}

func normalizeHeaderName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Param returns the value bound to name by the router, and whether it
// was present.
func (r *Request) Param(name string) (string, bool) {
	for _, p := range r.Params {
		if p.Name == name {
			return p.Value, true
		}
	}
	return "", false
}

// Yield declines this handler's match and tells the router to keep
// searching for the next matching pattern in registration order
// (spec.md §4.3). It must be called before the handler returns.
func (r *Request) Yield() {
	r.yield = true
}

func (r *Request) yielded() bool {
	return r.yield
}

func (r *Request) resetYield() {
	r.yield = false
}

// ID returns the request id attached by the RequestID use-handler, or ""
// if that use-handler was never registered.
func (r *Request) ID() string {
	return r.requestID
}
