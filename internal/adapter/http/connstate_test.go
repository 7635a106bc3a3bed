package http

import (
	"testing"
	"time"

	"github.com/panjf2000/gnet/v2"
)

func TestResponseFlags_Has(t *testing.T) {
	var f responseFlags
	f |= flagRespPending
	f |= flagHasContentLength

	if !f.has(flagRespPending) {
		t.Fatalf("expected flagRespPending to be set")
	}
	if !f.has(flagHasContentLength) {
		t.Fatalf("expected flagHasContentLength to be set")
	}
	if f.has(flagEndCalled) {
		t.Fatalf("did not expect flagEndCalled to be set")
	}
}

func TestConnState_ResetForNextRequestClearsPerResponseState(t *testing.T) {
	cs := newConnState(NewContext(nil))
	cs.flags = flagRespPending | flagEndCalled
	cs.writeOffset = 10
	cs.statusCode = 200
	cs.statusText = "OK"
	cs.headersFlushed = true
	cs.chunkedResponse = true
	cs.onResponseComplete = func(int) {}

	cs.resetForNextRequest()

	if cs.flags != 0 {
		t.Fatalf("expected flags cleared, got %v", cs.flags)
	}
	if cs.writeOffset != 0 {
		t.Fatalf("expected writeOffset reset, got %d", cs.writeOffset)
	}
	if cs.statusCode != 0 || cs.statusText != "" {
		t.Fatalf("expected status fields cleared")
	}
	if cs.headersFlushed || cs.chunkedResponse {
		t.Fatalf("expected header/framing flags cleared")
	}
	if cs.onResponseComplete != nil {
		t.Fatalf("expected onResponseComplete cleared")
	}
}

func TestConnState_UncorkBytesDrainsAndResetsBuffer(t *testing.T) {
	cs := newConnState(NewContext(nil))
	cs.write([]byte("hello"))

	out := cs.uncorkBytes()
	if string(out) != "hello" {
		t.Fatalf("expected drained bytes %q, got %q", "hello", out)
	}
	if more := cs.uncorkBytes(); more != nil {
		t.Fatalf("expected empty drain after reset, got %q", more)
	}
}

func TestConnState_DisarmTimeoutStopsExistingTimer(t *testing.T) {
	cs := newConnState(NewContext(nil))
	cs.armTimeout(gnet.Conn(nil), time.Hour, func(gnet.Conn) {})
	cs.disarmTimeout()
	if cs.idleTimer == nil {
		t.Fatalf("expected idle timer to have been created before disarm")
	}
	if cs.idleTimer.Stop() {
		t.Fatalf("expected disarmTimeout to have already stopped the pending timer")
	}
}
