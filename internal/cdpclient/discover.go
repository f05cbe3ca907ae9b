package cdpclient

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"
)

// VersionInfo is the subset of GET /json/version this package needs.
type VersionInfo struct {
	Browser              string `json:"Browser"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// ProbeVersion queries http://127.0.0.1:<port>/json/version, returning
// the parsed response if a CDP endpoint answers within timeout.
func ProbeVersion(port int, timeout time.Duration) (*VersionInfo, error) {
	client := &http.Client{Timeout: timeout}
	resp, err := client.Get(fmt.Sprintf("http://127.0.0.1:%d/json/version", port))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cdpclient: /json/version returned %d", resp.StatusCode)
	}

	var v VersionInfo
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return nil, fmt.Errorf("cdpclient: decoding /json/version: %w", err)
	}
	return &v, nil
}

// FindExisting scans [start, end] for a live CDP endpoint, returning the
// first port that answers /json/version.
func FindExisting(start, end int, timeout time.Duration) (int, *VersionInfo, bool) {
	for port := start; port <= end; port++ {
		if v, err := ProbeVersion(port, timeout); err == nil {
			return port, v, true
		}
	}
	return 0, nil, false
}

// ProbeBind reports whether a TCP listener can bind to 127.0.0.1:port —
// the bind probe used by the port allocator to skip ports already in
// use by something other than a CDP endpoint it could discover.
func ProbeBind(port int) bool {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return false
	}
	_ = ln.Close()
	return true
}
