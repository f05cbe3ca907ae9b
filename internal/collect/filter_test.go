package collect

import (
	"testing"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/tomasbasham/chrome-daemon/internal/config"
	"github.com/tomasbasham/chrome-daemon/internal/storage"
)

func TestNetworkCollectorOnResponseSetsTimestamp(t *testing.T) {
	store, err := storage.New(t.TempDir(), "sess")
	if err != nil {
		t.Fatalf("storage.New() error = %v", err)
	}

	c := &NetworkCollector{
		store:   store,
		publish: func(string, string, any) {},
		pending: map[network.RequestID]pendingRequest{"req-1": {url: "https://example.com", method: "GET", resourceType: "Document"}},
	}

	c.onResponse(&network.EventResponseReceived{
		RequestID: "req-1",
		Response:  &network.Response{Status: 200, StatusText: "OK", MimeType: "image/png"},
	})

	reqs, err := c.Requests("", 0)
	if err != nil {
		t.Fatalf("Requests() error = %v", err)
	}
	if len(reqs) != 1 {
		t.Fatalf("Requests() returned %d records, want 1", len(reqs))
	}
	if reqs[0].TimestampMs == 0 {
		t.Error("onResponse did not set TimestampMs, want a non-zero Unix millisecond timestamp")
	}
}

func TestNetworkCollectorShouldCollect(t *testing.T) {
	c := &NetworkCollector{filter: config.Filter{
		NetworkExcludeTypes:   []string{"Image", "Font"},
		NetworkExcludeDomains: []string{"doubleclick.net"},
	}}

	cases := []struct {
		name         string
		url, resType string
		want         bool
	}{
		{"extension url excluded", "chrome-extension://abc/page.html", "Document", false},
		{"excluded resource type", "https://example.com/x.png", "Image", false},
		{"excluded domain", "https://ads.doubleclick.net/x", "Document", false},
		{"kept", "https://example.com/api", "XHR", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := c.shouldCollect(tc.url, tc.resType); got != tc.want {
				t.Fatalf("shouldCollect(%q, %q) = %v, want %v", tc.url, tc.resType, got, tc.want)
			}
		})
	}
}

func TestNetworkCollectorBodyLimit(t *testing.T) {
	c := &NetworkCollector{}
	if got := c.bodyLimit(); got != maxBodyPreview {
		t.Fatalf("bodyLimit() with no filter = %d, want default %d", got, maxBodyPreview)
	}

	c.filter = config.Filter{NetworkMaxBodySize: 500}
	if got := c.bodyLimit(); got != 500 {
		t.Fatalf("bodyLimit() with filter = %d, want 500", got)
	}
}

func TestTruncateBody(t *testing.T) {
	if got := truncateBody("short", 100); got != "short" {
		t.Fatalf("truncateBody did not preserve a body under the limit: %q", got)
	}
	long := make([]byte, 50)
	for i := range long {
		long[i] = 'a'
	}
	got := truncateBody(string(long), 10)
	if len(got) <= 10 {
		t.Fatalf("truncateBody(%d bytes, limit 10) = %d bytes, want the truncation suffix appended", len(long), len(got))
	}
}

func TestConsoleLevel(t *testing.T) {
	cases := map[runtime.APIType]string{
		runtime.APITypeWarning: "warning",
		runtime.APITypeError:   "error",
		runtime.APITypeDebug:   "debug",
		runtime.APITypeInfo:    "info",
		runtime.APITypeLog:     "log",
	}
	for in, want := range cases {
		if got := consoleLevel(in); got != want {
			t.Errorf("consoleLevel(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestConsoleCollectorShouldCollectLevel(t *testing.T) {
	c := &ConsoleCollector{filter: config.Filter{ConsoleLevels: []string{"error", "warn"}}}

	if !c.shouldCollectLevel("error") {
		t.Error("expected error level to be collected")
	}
	if !c.shouldCollectLevel("warning") {
		t.Error("expected warning level to be collected under the \"warn\" alias")
	}
	if c.shouldCollectLevel("info") {
		t.Error("expected info level to be filtered out")
	}
}

func TestConsoleCollectorShouldCollectLevelEmptyFilterAllowsAll(t *testing.T) {
	c := &ConsoleCollector{}
	if !c.shouldCollectLevel("debug") {
		t.Error("expected an empty filter to allow every level")
	}
}

func TestConsoleCollectorShouldIncludeMessage(t *testing.T) {
	c := &ConsoleCollector{}
	if c.shouldIncludeMessage("hello [chrome-daemon-bridge] internal", "https://example.com/a.js") {
		t.Error("expected bridge-tagged messages to be excluded")
	}
	if c.shouldIncludeMessage("hello", "chrome-extension://abc/content.js") {
		t.Error("expected extension-origin messages to be excluded")
	}
	if !c.shouldIncludeMessage("hello", "https://example.com/a.js") {
		t.Error("expected an ordinary page message to be included")
	}
}
