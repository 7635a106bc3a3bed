// Package domain contains the protocol invariants this HTTP context core
// enforces. It has no knowledge of TCP, gnet, or the wire format — only
// the conditions under which a connection must be refused or a handler
// is considered to have misused the API.
package domain

import "errors"

// Protocol and programmer-error conditions from the error handling design.
// Adapters decide what to do with each (close the connection, panic, ...).
var (
	// ErrNoRoute indicates neither the method-specific nor the "*" pass matched.
	ErrNoRoute = errors.New("no route matched")
	// ErrPipelineViolation indicates a new request head arrived while a
	// prior response on the same connection is still pending.
	ErrPipelineViolation = errors.New("request head received before prior response completed")
	// ErrUnresponded indicates a handler returned without responding and
	// without registering an abort callback.
	ErrUnresponded = errors.New("handler returned without responding or registering an abort handler")
	// ErrUpgradeOutsideHandler indicates UpgradeToWebSocket was called
	// outside of a request handler's call stack.
	ErrUpgradeOutsideHandler = errors.New("upgrade called outside a request handler")
	// ErrAlreadyResponded indicates a second terminal response operation
	// was attempted on a connection that already completed one.
	ErrAlreadyResponded = errors.New("response already completed")
)
