package collect

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/audits"
	"github.com/chromedp/chromedp"
	"github.com/tomasbasham/chrome-daemon/internal/cdpclient"
	"github.com/tomasbasham/chrome-daemon/internal/storage"
)

// Issue is the materialized record for one Audits.issueAdded event.
// DevTools issues don't carry a severity of their own; the daemon always
// reports "warning" since nothing in the protocol distinguishes urgency.
type Issue struct {
	Severity string `json:"severity"`
	Code     string `json:"code"`
	Details  string `json:"details"`
}

// IssuesCollector consumes Audits.issueAdded (§4.3 Issues).
type IssuesCollector struct {
	store   *storage.Storage
	publish func(collection, eventType string, data any)
}

func newIssuesCollector(store *storage.Storage, events chan<- Event) *IssuesCollector {
	return &IssuesCollector{
		store:   store,
		publish: func(collection, eventType string, data any) { publishTo(events, collection, eventType, data) },
	}
}

func (c *IssuesCollector) attach(ctx context.Context, page *cdpclient.Page) {
	_ = chromedp.Run(page.Context(), audits.Enable())

	chromedp.ListenTarget(page.Context(), func(ev any) {
		e, ok := ev.(*audits.EventIssueAdded)
		if !ok {
			return
		}
		c.onIssue(e)
	})
}

func (c *IssuesCollector) onIssue(e *audits.EventIssueAdded) {
	if e.Issue == nil {
		return
	}

	rec := Issue{
		Severity: "warning",
		Code:     string(e.Issue.Code),
		Details:  fmt.Sprintf("%+v", e.Issue.Details),
	}

	if err := c.store.Append("issues", "issue", rec); err != nil {
		return
	}
	c.publish("issues", "issue", rec)
}

// Issues returns every stored issue record.
func (c *IssuesCollector) Issues() ([]Issue, error) {
	records, err := c.store.ReadAll("issues")
	if err != nil {
		return nil, err
	}
	var out []Issue
	for _, r := range records {
		var i Issue
		if err := decode(r.Data, &i); err != nil {
			continue
		}
		out = append(out, i)
	}
	return out, nil
}
