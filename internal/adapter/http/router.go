package http

import "strings"

// Handler is a registered route handler (spec.md §4.3). It receives
// the response/request pair and may call req.Yield() before returning
// to decline the match and let the router keep searching.
type Handler func(res *Response, req *Request)

// segKind distinguishes the three pattern segment shapes this router
// compiles: literal path components, named parameters (":id"), and a
// trailing wildcard ("*") that captures the rest of the URL.
type segKind int

const (
	segLiteral segKind = iota
	segParam
	segWildcard
)

type segment struct {
	kind segKind
	text string // literal value, or parameter name
}

type route struct {
	method   string
	pattern  string
	segments []segment
	handler  Handler
}

// Router implements the two-pass method/"*" matcher of spec.md §4.3:
// patterns are tried in registration order, a handler may yield to
// decline, and parameters are bound as an ordered (name, value) slice.
type Router struct {
	routes []route
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{}
}

// Add registers a handler for method ("*" matches any method not
// otherwise matched in the first pass) and pattern.
func (r *Router) Add(method, pattern string, handler Handler) {
	r.routes = append(r.routes, route{
		method:   strings.ToUpper(method),
		pattern:  pattern,
		segments: compilePattern(pattern),
		handler:  handler,
	})
}

// Route performs one matching pass for method against url, trying each
// registered pattern for that method in registration order. A handler
// that calls req.Yield() is treated as a non-match and the search
// continues. It returns true iff some handler ultimately accepted the
// request (i.e. ran without yielding).
func (r *Router) Route(method, url string, res *Response, req *Request) bool {
	for i := range r.routes {
		rt := &r.routes[i]
		if rt.method != method {
			continue
		}
		params, ok := matchPattern(rt.segments, url)
		if !ok {
			continue
		}

		req.Params = params
		req.resetYield()
		rt.handler(res, req)
		if !req.yielded() {
			return true
		}
	}
	return false
}

// compilePattern splits a registration pattern into matchable segments.
func compilePattern(pattern string) []segment {
	parts := splitPath(pattern)
	segments := make([]segment, 0, len(parts))
	for _, p := range parts {
		switch {
		case p == "*":
			segments = append(segments, segment{kind: segWildcard})
		case strings.HasPrefix(p, ":") && len(p) > 1:
			segments = append(segments, segment{kind: segParam, text: p[1:]})
		default:
			segments = append(segments, segment{kind: segLiteral, text: p})
		}
	}
	return segments
}

// matchPattern attempts to match url's path segments against pattern
// segments, producing the ordered parameter bindings on success.
func matchPattern(segments []segment, url string) ([]Param, bool) {
	path := urlPath(url)
	parts := splitPath(path)

	var params []Param
	for i, seg := range segments {
		switch seg.kind {
		case segWildcard:
			return params, true
		case segParam:
			if i >= len(parts) {
				return nil, false
			}
			params = append(params, Param{Name: seg.text, Value: parts[i]})
		default:
			if i >= len(parts) || parts[i] != seg.text {
				return nil, false
			}
		}
	}
	if len(parts) != len(segments) {
		return nil, false
	}
	return params, true
}

// splitPath splits a "/"-delimited path into non-empty segments.
func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// urlPath strips a query string (if any) from a request URL.
func urlPath(url string) string {
	if idx := strings.IndexByte(url, '?'); idx >= 0 {
		return url[:idx]
	}
	return url
}
