package rpc

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/tomasbasham/chrome-daemon/internal/chromeerr"
	"github.com/tomasbasham/chrome-daemon/internal/config"
	"github.com/tomasbasham/chrome-daemon/internal/pool"
)

func testDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	cfg := config.Default()
	return New(pool.New(cfg), cfg)
}

func TestHandleUnknownMethod(t *testing.T) {
	d := testDispatcher(t)
	resp := d.Handle(context.Background(), "client-1", Request{JSONRPC: "2.0", ID: 1, Method: "does.not.exist"})
	if resp.Error == nil {
		t.Fatal("expected an error response for an unregistered method")
	}
	if resp.Error.Code != chromeerr.CodeMethodNotFound {
		t.Fatalf("Error.Code = %d, want %d", resp.Error.Code, chromeerr.CodeMethodNotFound)
	}
}

func TestHandleMissingMethod(t *testing.T) {
	d := testDispatcher(t)
	resp := d.Handle(context.Background(), "client-1", Request{JSONRPC: "2.0", ID: 1})
	if resp.Error == nil {
		t.Fatal("expected an error response for a request with no method")
	}
	if resp.Error.Code != chromeerr.CodeInvalidRequest {
		t.Fatalf("Error.Code = %d, want %d", resp.Error.Code, chromeerr.CodeInvalidRequest)
	}
}

func TestHandlePing(t *testing.T) {
	d := testDispatcher(t)
	resp := d.Handle(context.Background(), "client-1", Request{JSONRPC: "2.0", ID: 1, Method: "ping"})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
}

func TestResolveSessionMissingSessionID(t *testing.T) {
	d := testDispatcher(t)
	_, _, err := resolveSession(d, json.RawMessage(`{}`))
	if err == nil {
		t.Fatal("expected an error when session_id is missing")
	}
	kind, ok := chromeerr.KindOf(err)
	if !ok || kind != chromeerr.KindInvalidParams {
		t.Fatalf("KindOf(err) = (%v, %v), want (%v, true)", kind, ok, chromeerr.KindInvalidParams)
	}
}

func TestResolveSessionUnknownSession(t *testing.T) {
	d := testDispatcher(t)
	_, _, err := resolveSession(d, json.RawMessage(`{"session_id":"missing"}`))
	if err == nil {
		t.Fatal("expected an error for an unknown session id")
	}
	kind, ok := chromeerr.KindOf(err)
	if !ok || kind != chromeerr.KindSessionNotFound {
		t.Fatalf("KindOf(err) = (%v, %v), want (%v, true)", kind, ok, chromeerr.KindSessionNotFound)
	}
}

func TestResolveSessionMalformedParams(t *testing.T) {
	d := testDispatcher(t)
	_, _, err := resolveSession(d, json.RawMessage(`not json`))
	if err == nil {
		t.Fatal("expected an error for malformed params")
	}
}

func TestDecodeParamsEmptyIsNoop(t *testing.T) {
	var out struct{ X int }
	if err := decodeParams(nil, &out); err != nil {
		t.Fatalf("decodeParams(nil) = %v, want nil", err)
	}
}

func TestParseErrorResponseUsesParseErrorCode(t *testing.T) {
	resp := ParseErrorResponse(context.DeadlineExceeded)
	if resp.Error == nil || resp.Error.Code != chromeerr.CodeParseError {
		t.Fatalf("ParseErrorResponse code = %+v, want %d", resp.Error, chromeerr.CodeParseError)
	}
	if resp.ID != 0 {
		t.Fatalf("ParseErrorResponse ID = %d, want 0", resp.ID)
	}
}
