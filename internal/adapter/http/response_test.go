package http

import (
	"testing"

	"github.com/lightcore/httpcore/internal/domain"
)

func newTestResponse(t *testing.T) (*Response, *connState) {
	cs := newConnState(NewContext(nil))
	cs.inHandler = true
	t.Cleanup(cs.disarmTimeout)
	return newResponse(nil, cs), cs
}

func TestResponse_EndSetsContentLengthWhenUnset(t *testing.T) {
	res, cs := newTestResponse(t)
	res.End([]byte("ok"))

	if !res.HasResponded() {
		t.Fatalf("expected response to be marked complete")
	}
	if got := cs.respHeaders.Get("content-length"); got != "2" {
		t.Fatalf("expected auto Content-Length 2, got %q", got)
	}
	if got := cs.corkBuf.String(); got == "" {
		t.Fatalf("expected the cork buffer to carry the response bytes")
	}
}

func TestResponse_EndTwicePanics(t *testing.T) {
	res, _ := newTestResponse(t)
	res.End(nil)

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on second End call")
		}
	}()
	res.End(nil)
}

func TestResponse_WriteStatusTwicePanics(t *testing.T) {
	res, _ := newTestResponse(t)
	res.WriteStatus(200, "OK")

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on second WriteStatus call")
		}
	}()
	res.WriteStatus(201, "Created")
}

func TestResponse_WriteHeaderAfterBodyStartedPanics(t *testing.T) {
	res, _ := newTestResponse(t)
	res.Write([]byte("partial"))

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic writing a header after the body started")
		}
	}()
	res.WriteHeader("X-Late", "oops")
}

func TestResponse_StreamingWithoutContentLengthUsesChunkedFraming(t *testing.T) {
	res, cs := newTestResponse(t)
	res.Write([]byte("hello"))
	res.End([]byte("world"))

	out := cs.corkBuf.String()
	if !contains(out, "Transfer-Encoding: chunked") {
		t.Fatalf("expected chunked transfer-encoding header, got %q", out)
	}
	if !contains(out, "5\r\nhello\r\n") || !contains(out, "5\r\nworld\r\n") || !contains(out, "0\r\n\r\n") {
		t.Fatalf("expected chunked framing around both writes, got %q", out)
	}
}

func TestResponse_TryEndSetsExplicitTotalSize(t *testing.T) {
	res, cs := newTestResponse(t)
	res.TryEnd([]byte("ok"), 2)

	if got := cs.respHeaders.Get("content-length"); got != "2" {
		t.Fatalf("expected Content-Length 2, got %q", got)
	}
	if !res.HasResponded() {
		t.Fatalf("expected TryEnd to complete the response")
	}
}

func TestResponse_OnResponseCompleteFiresWithStatusCode(t *testing.T) {
	res, cs := newTestResponse(t)
	var gotStatus int
	cs.onResponseComplete = func(statusCode int) { gotStatus = statusCode }

	res.WriteStatus(201, "Created")
	res.End(nil)

	if gotStatus != 201 {
		t.Fatalf("expected completion hook to observe status 201, got %d", gotStatus)
	}
}

func TestResponse_WriteAfterEndReturnsErrAlreadyResponded(t *testing.T) {
	res, _ := newTestResponse(t)
	res.End([]byte("ok"))

	_, err := res.Write([]byte("late"))
	if err != domain.ErrAlreadyResponded {
		t.Fatalf("expected domain.ErrAlreadyResponded, got %v", err)
	}
}

func TestResponse_OnDataRegistersStreamingCallback(t *testing.T) {
	res, cs := newTestResponse(t)
	if cs.inStream != nil {
		t.Fatalf("expected no in_stream callback registered initially")
	}

	var chunks [][]byte
	var sawFinal bool
	res.OnData(func(chunk []byte, isFinal bool) {
		chunks = append(chunks, chunk)
		sawFinal = isFinal
	})

	if cs.inStream == nil {
		t.Fatalf("expected OnData to set connState.inStream")
	}
	cs.inStream([]byte("part-1"), false)
	cs.inStream(nil, true)

	if len(chunks) != 2 || string(chunks[0]) != "part-1" {
		t.Fatalf("expected both chunks to reach the callback, got %v", chunks)
	}
	if !sawFinal {
		t.Fatalf("expected the final chunk to report isFinal")
	}
}

func contains(haystack, needle string) bool {
	return len(haystack) >= len(needle) && indexOf(haystack, needle) >= 0
}

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}
