package cdpclient

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

func TestProbeVersionSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(VersionInfo{Browser: "HeadlessChrome/131.0", WebSocketDebuggerURL: "ws://127.0.0.1/devtools/browser/abc"})
	}))
	defer srv.Close()

	_, portStr, _ := net.SplitHostPort(srv.Listener.Addr().String())
	port, _ := strconv.Atoi(portStr)

	v, err := ProbeVersion(port, time.Second)
	if err != nil {
		t.Fatalf("ProbeVersion: %v", err)
	}
	if v.WebSocketDebuggerURL == "" {
		t.Fatal("expected a non-empty websocket debugger url")
	}
}

func TestProbeVersionUnreachable(t *testing.T) {
	if _, err := ProbeVersion(1, 50*time.Millisecond); err == nil {
		t.Fatal("expected an error probing an unreachable port")
	}
}

func TestProbeBindThenRelease(t *testing.T) {
	// Port 0 asks the OS for any free port; bind it, then prove the
	// probe now fails while it's held and succeeds again once released.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	_, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)

	if ProbeBind(port) {
		t.Fatal("ProbeBind should fail while the port is held")
	}
	ln.Close()

	if !ProbeBind(port) {
		t.Fatal("ProbeBind should succeed once the port is released")
	}
}
