package collect

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/tracing"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"github.com/tomasbasham/chrome-daemon/internal/cdpclient"
	"github.com/tomasbasham/chrome-daemon/internal/chromeerr"
	"github.com/tomasbasham/chrome-daemon/internal/storage"
)

// defaultTraceCategories mirrors the category set the original daemon
// requests for trace.start when the caller supplies none.
var defaultTraceCategories = []string{
	"-*",
	"devtools.timeline",
	"v8.execute",
	"v8",
	"blink.console",
	"blink.user_timing",
	"loading",
	"latencyInfo",
	"disabled-by-default-devtools.timeline",
	"disabled-by-default-devtools.timeline.frame",
	"disabled-by-default-devtools.timeline.stack",
	"disabled-by-default-v8.cpu_profiler",
}

// TraceStatus reports whether a trace is currently being recorded.
type TraceStatus struct {
	Active  bool   `json:"active"`
	TraceID string `json:"trace_id,omitempty"`
}

// TraceData is the materialized record for one completed trace capture.
type TraceData struct {
	TraceID     string            `json:"trace_id"`
	URL         string            `json:"url"`
	StartMs     int64             `json:"start_ms"`
	EndMs       int64             `json:"end_ms"`
	DurationMs  int64             `json:"duration_ms"`
	EventCount  int               `json:"event_count"`
	Events      []json.RawMessage `json:"events"`
}

// TraceCollector is not auto-attached: unlike the other collectors it is
// stateful and driven explicitly by the trace.start/trace.stop RPCs
// rather than listening passively for the life of the page (§4.3 Trace).
type TraceCollector struct {
	store *storage.Storage

	mu      sync.Mutex
	active  bool
	traceID string
	startMs int64
	events  []json.RawMessage
	done    chan struct{}
}

func newTraceCollector(store *storage.Storage, events chan<- Event) *TraceCollector {
	return &TraceCollector{store: store}
}

// Start begins a new trace capture against page, using categories if
// non-empty, else the built-in default set.
func (c *TraceCollector) Start(page *cdpclient.Page, categories []string) (string, error) {
	c.mu.Lock()
	if c.active {
		c.mu.Unlock()
		return "", chromeerr.New(chromeerr.KindGeneral, "trace already active")
	}
	if len(categories) == 0 {
		categories = defaultTraceCategories
	}
	traceID := uuid.NewString()
	c.active = true
	c.traceID = traceID
	c.startMs = time.Now().UnixMilli()
	c.events = nil
	c.done = make(chan struct{})
	c.mu.Unlock()

	chromedp.ListenTarget(page.Context(), func(ev any) {
		switch e := ev.(type) {
		case *tracing.EventDataCollected:
			c.onData(e)
		case *tracing.EventTracingComplete:
			c.onComplete()
		}
	})

	cfg := &tracing.TraceConfig{IncludedCategories: categories}
	err := chromedp.Run(page.Context(), tracing.Start().WithTraceConfig(cfg))
	if err != nil {
		c.mu.Lock()
		c.active = false
		c.mu.Unlock()
		return "", chromeerr.Wrap(chromeerr.KindGeneral, "start tracing", err)
	}
	return traceID, nil
}

func (c *TraceCollector) onData(e *tracing.EventDataCollected) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return
	}
	for _, v := range e.Value {
		c.events = append(c.events, json.RawMessage(v))
	}
}

func (c *TraceCollector) onComplete() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done != nil {
		select {
		case <-c.done:
		default:
			close(c.done)
		}
	}
}

// Stop ends the active trace, waits for the remaining buffered data to
// arrive, and stores the combined record.
func (c *TraceCollector) Stop(page *cdpclient.Page, url string) (*TraceData, error) {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return nil, chromeerr.New(chromeerr.KindGeneral, "no active trace")
	}
	traceID, startMs, done := c.traceID, c.startMs, c.done
	c.mu.Unlock()

	if err := chromedp.Run(page.Context(), tracing.End()); err != nil {
		return nil, chromeerr.Wrap(chromeerr.KindGeneral, "stop tracing", err)
	}

	select {
	case <-done:
	case <-time.After(10 * time.Second):
	}
	time.Sleep(500 * time.Millisecond)

	c.mu.Lock()
	events := c.events
	c.active = false
	c.mu.Unlock()

	endMs := time.Now().UnixMilli()
	rec := &TraceData{
		TraceID:    traceID,
		URL:        url,
		StartMs:    startMs,
		EndMs:      endMs,
		DurationMs: endMs - startMs,
		EventCount: len(events),
		Events:     events,
	}

	if err := c.store.Append("trace", "completed", rec); err != nil {
		return nil, fmt.Errorf("store trace: %w", err)
	}
	return rec, nil
}

// Status reports whether a trace capture is currently in progress.
func (c *TraceCollector) Status() TraceStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return TraceStatus{Active: c.active, TraceID: c.traceID}
}
