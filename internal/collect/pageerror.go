package collect

import (
	"context"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/tomasbasham/chrome-daemon/internal/cdpclient"
	"github.com/tomasbasham/chrome-daemon/internal/storage"
)

// PageError is the materialized record for one uncaught exception.
type PageError struct {
	Message    string `json:"message"`
	URL        string `json:"url,omitempty"`
	Line       int64  `json:"line,omitempty"`
	Column     int64  `json:"column,omitempty"`
	StackTrace string `json:"stack_trace,omitempty"`
}

// PageErrorCollector consumes Runtime.exceptionThrown (§4.3 Page errors).
type PageErrorCollector struct {
	store   *storage.Storage
	publish func(collection, eventType string, data any)
}

func newPageErrorCollector(store *storage.Storage, events chan<- Event) *PageErrorCollector {
	return &PageErrorCollector{
		store:   store,
		publish: func(collection, eventType string, data any) { publishTo(events, collection, eventType, data) },
	}
}

func (c *PageErrorCollector) attach(ctx context.Context, page *cdpclient.Page) {
	chromedp.ListenTarget(page.Context(), func(ev any) {
		e, ok := ev.(*runtime.EventExceptionThrown)
		if !ok {
			return
		}
		c.onException(e)
	})
}

func (c *PageErrorCollector) onException(e *runtime.EventExceptionThrown) {
	details := e.ExceptionDetails
	if details == nil {
		return
	}

	message := details.Text
	if details.Exception != nil && details.Exception.Description != "" {
		message = details.Exception.Description
	}

	rec := PageError{
		Message: message,
		URL:     details.URL,
		Line:    details.LineNumber,
		Column:  details.ColumnNumber,
	}
	if details.StackTrace != nil {
		lines := make([]string, 0, len(details.StackTrace.CallFrames))
		for _, f := range details.StackTrace.CallFrames {
			lines = append(lines, fmt.Sprintf("  at %s (%s:%d:%d)", f.FunctionName, f.URL, f.LineNumber, f.ColumnNumber))
		}
		rec.StackTrace = strings.Join(lines, "\n")
	}

	if err := c.store.Append("pageerror", "exception", rec); err != nil {
		return
	}
	c.publish("pageerror", "exception", rec)
}

// Errors returns every stored page-error record.
func (c *PageErrorCollector) Errors() ([]PageError, error) {
	records, err := c.store.ReadAll("pageerror")
	if err != nil {
		return nil, err
	}
	var out []PageError
	for _, r := range records {
		var e PageError
		if err := decode(r.Data, &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}
