package collect

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/tomasbasham/chrome-daemon/internal/cdpclient"
	"github.com/tomasbasham/chrome-daemon/internal/config"
	"github.com/tomasbasham/chrome-daemon/internal/storage"
)

// NetworkRequest is the materialized record for one completed request,
// joining request-will-be-sent with response-received.
type NetworkRequest struct {
	RequestID      string            `json:"request_id"`
	URL            string            `json:"url"`
	Method         string            `json:"method"`
	Status         int64             `json:"status,omitempty"`
	StatusText     string            `json:"status_text,omitempty"`
	ResourceType   string            `json:"resource_type"`
	MimeType       string            `json:"mime_type,omitempty"`
	RequestHeaders map[string]string `json:"request_headers,omitempty"`
	ResponseBody   string            `json:"response_body,omitempty"`
	TimestampMs    int64             `json:"timestamp_ms"`
}

type pendingRequest struct {
	url, method, resourceType string
	headers                   map[string]string
}

// NetworkCollector tracks request-will-be-sent into an in-memory pending
// map keyed by request id, then joins with response-received to
// materialize a final record (§4.3 Network).
type NetworkCollector struct {
	store   *storage.Storage
	filter  config.Filter
	publish func(collection, eventType string, data any)

	mu      sync.Mutex
	pending map[network.RequestID]pendingRequest

	pageCtx context.Context
}

func newNetworkCollector(store *storage.Storage, filter config.Filter, events chan<- Event) *NetworkCollector {
	return &NetworkCollector{
		store:   store,
		filter:  filter,
		pending: make(map[network.RequestID]pendingRequest),
		publish: func(collection, eventType string, data any) { publishTo(events, collection, eventType, data) },
	}
}

func (c *NetworkCollector) attach(ctx context.Context, page *cdpclient.Page) error {
	if err := chromedp.Run(page.Context(), network.Enable()); err != nil {
		return err
	}
	c.pageCtx = page.Context()

	chromedp.ListenTarget(page.Context(), func(ev any) {
		switch e := ev.(type) {
		case *network.EventRequestWillBeSent:
			c.onRequest(e)
		case *network.EventResponseReceived:
			c.onResponse(e)
		}
	})
	return nil
}

func (c *NetworkCollector) onRequest(e *network.EventRequestWillBeSent) {
	if !c.shouldCollect(e.Request.URL, string(e.Type)) {
		return
	}

	headers := make(map[string]string, len(e.Request.Headers))
	for k, v := range e.Request.Headers {
		if s, ok := v.(string); ok {
			headers[k] = s
		}
	}

	c.mu.Lock()
	c.pending[e.RequestID] = pendingRequest{
		url:          e.Request.URL,
		method:       e.Request.Method,
		resourceType: string(e.Type),
		headers:      headers,
	}
	c.mu.Unlock()
}

func (c *NetworkCollector) onResponse(e *network.EventResponseReceived) {
	c.mu.Lock()
	req, ok := c.pending[e.RequestID]
	if ok {
		delete(c.pending, e.RequestID)
	}
	c.mu.Unlock()
	if !ok {
		return
	}

	rec := NetworkRequest{
		RequestID:      string(e.RequestID),
		URL:            req.url,
		Method:         req.method,
		Status:         e.Response.Status,
		StatusText:     e.Response.StatusText,
		ResourceType:   req.resourceType,
		MimeType:       e.Response.MimeType,
		RequestHeaders: req.headers,
		TimestampMs:    time.Now().UnixMilli(),
	}

	if !c.shouldCaptureBody(e.Response.MimeType) {
		c.finish(rec)
		return
	}

	// Fetching the body requires another CDP round trip; do it off the
	// event-dispatch goroutine, matching the teacher's screenshotCollector
	// pattern in capture.go.
	go c.captureBody(e.RequestID, rec)
}

func (c *NetworkCollector) finish(rec NetworkRequest) {
	if err := c.store.Append("network", "response", rec); err != nil {
		return
	}
	c.publish("network", "response", rec)
}

func (c *NetworkCollector) shouldCaptureBody(mimeType string) bool {
	for _, frag := range []string{"json", "text", "xml", "javascript", "html"} {
		if strings.Contains(mimeType, frag) {
			return true
		}
	}
	return false
}

const maxBodyPreview = 10000

func truncateBody(body string, limit int) string {
	if len(body) <= limit {
		return body
	}
	cut := limit
	for cut > 0 && !isUTF8Boundary(body, cut) {
		cut--
	}
	return body[:cut] + "... [truncated]"
}

func isUTF8Boundary(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	return s[i]&0xC0 != 0x80
}

func (c *NetworkCollector) captureBody(id network.RequestID, rec NetworkRequest) {
	var body string
	err := chromedp.Run(c.pageCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		data, _, err := network.GetResponseBody(id).Do(ctx)
		if err != nil {
			return err
		}
		body = string(data)
		return nil
	}))
	if err == nil {
		rec.ResponseBody = truncateBody(body, c.bodyLimit())
	}
	c.finish(rec)
}

// bodyLimit returns the configured response body truncation size, falling
// back to maxBodyPreview when the filter leaves it unset.
func (c *NetworkCollector) bodyLimit() int {
	if c.filter.NetworkMaxBodySize > 0 {
		return c.filter.NetworkMaxBodySize
	}
	return maxBodyPreview
}

func (c *NetworkCollector) shouldCollect(url, resourceType string) bool {
	if strings.HasPrefix(url, "chrome-extension://") {
		return false
	}
	for _, excluded := range c.filter.NetworkExcludeTypes {
		if strings.EqualFold(excluded, resourceType) {
			return false
		}
	}
	for _, domain := range c.filter.NetworkExcludeDomains {
		if strings.Contains(url, domain) {
			return false
		}
	}
	return true
}

// Requests returns every stored network record, optionally filtered by
// domain substring and/or status code (0 = any).
func (c *NetworkCollector) Requests(domain string, status int) ([]NetworkRequest, error) {
	records, err := c.store.ReadAll("network")
	if err != nil {
		return nil, err
	}

	var out []NetworkRequest
	for _, r := range records {
		var req NetworkRequest
		if err := decode(r.Data, &req); err != nil {
			continue
		}
		if domain != "" && !strings.Contains(req.URL, domain) {
			continue
		}
		if status != 0 && int(req.Status) != status {
			continue
		}
		out = append(out, req)
	}
	return out, nil
}

// Count returns the number of stored network records.
func (c *NetworkCollector) Count() (int, error) { return c.store.Count("network") }

func publishTo(events chan<- Event, collection, eventType string, data any) {
	if events == nil {
		return
	}
	select {
	case events <- Event{Collection: collection, Type: eventType, Data: data}:
	default:
	}
}
