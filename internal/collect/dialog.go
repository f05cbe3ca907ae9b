package collect

import (
	"context"
	"sync"

	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/tomasbasham/chrome-daemon/internal/cdpclient"
	"github.com/tomasbasham/chrome-daemon/internal/chromeerr"
	"github.com/tomasbasham/chrome-daemon/internal/config"
	"github.com/tomasbasham/chrome-daemon/internal/storage"
)

// Dialog is the materialized record for one javascript-dialog-opening
// event. At most one is ever stored at a time; a fresh dialog clears
// whatever the previous one left behind (§4.3 Dialog: "latest dialog").
type Dialog struct {
	Type         string `json:"type"`
	Message      string `json:"message"`
	DefaultValue string `json:"default_value,omitempty"`
	URL          string `json:"url"`
}

// DialogResult records how a dialog was resolved: accepted, dismissed,
// pending manual handling, or error if HandleJavaScriptDialog failed.
type DialogResult struct {
	Action string `json:"action"`
	Error  string `json:"error,omitempty"`
}

// DialogCollector consumes Page.javascriptDialogOpening and, per the
// configured Behavior, auto-resolves it within the same callback so the
// session binding is never left waiting on a blocked page (§4.3 Dialog).
type DialogCollector struct {
	store   *storage.Storage
	cfg     config.Dialog
	publish func(collection, eventType string, data any)

	mu   sync.Mutex
	page *cdpclient.Page
}

func newDialogCollector(store *storage.Storage, cfg config.Dialog, events chan<- Event) *DialogCollector {
	return &DialogCollector{
		store:   store,
		cfg:     cfg,
		publish: func(collection, eventType string, data any) { publishTo(events, collection, eventType, data) },
	}
}

func (c *DialogCollector) attach(ctx context.Context, page *cdpclient.Page) {
	c.mu.Lock()
	c.page = page
	c.mu.Unlock()

	chromedp.ListenTarget(page.Context(), func(ev any) {
		e, ok := ev.(*cdppage.EventJavascriptDialogOpening)
		if !ok {
			return
		}
		c.onDialog(page, e)
	})
}

func (c *DialogCollector) onDialog(page *cdpclient.Page, e *cdppage.EventJavascriptDialogOpening) {
	_ = c.store.Clear("dialog")
	_ = c.store.Clear("dialog_result")

	rec := Dialog{
		Type:         string(e.Type),
		Message:      e.Message,
		DefaultValue: e.DefaultPrompt,
		URL:          e.URL,
	}
	if err := c.store.Append("dialog", "opened", rec); err != nil {
		return
	}
	c.publish("dialog", "opened", rec)

	switch c.cfg.Behavior {
	case config.DialogAccept:
		prompt := ""
		if c.cfg.PromptText != nil {
			prompt = *c.cfg.PromptText
		} else {
			prompt = e.DefaultPrompt
		}
		c.resolve(page, true, prompt)
	case config.DialogDismiss:
		c.resolve(page, false, "")
	case config.DialogNone:
		c.writeResult(DialogResult{Action: "pending"})
	default:
		c.resolve(page, false, "")
	}
}

func (c *DialogCollector) resolve(page *cdpclient.Page, accept bool, promptText string) error {
	err := chromedp.Run(page.Context(), cdppage.HandleJavaScriptDialog(accept).WithPromptText(promptText))
	if err != nil {
		c.writeResult(DialogResult{Action: "error", Error: err.Error()})
		return err
	}
	_ = c.store.Clear("dialog")
	action := "dismissed"
	if accept {
		action = "accepted"
	}
	c.writeResult(DialogResult{Action: action})
	return nil
}

func (c *DialogCollector) writeResult(res DialogResult) {
	if err := c.store.Append("dialog_result", res.Action, res); err != nil {
		return
	}
	c.publish("dialog_result", res.Action, res)
}

// Handle resolves a pending dialog manually, used when Behavior is
// "none" and a client issues the dialog.handle RPC.
func (c *DialogCollector) Handle(accept bool, promptText string) error {
	c.mu.Lock()
	page := c.page
	c.mu.Unlock()
	if page == nil {
		return nil
	}
	if err := c.resolve(page, accept, promptText); err != nil {
		return chromeerr.Wrap(chromeerr.KindConnection, "handling dialog", err)
	}
	return nil
}

// Get returns the currently pending dialog, if any.
func (c *DialogCollector) Get() (*Dialog, error) {
	records, err := c.store.ReadAll("dialog")
	if err != nil || len(records) == 0 {
		return nil, err
	}
	var d Dialog
	if err := decode(records[len(records)-1].Data, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// GetResult returns the result of the most recently resolved dialog.
func (c *DialogCollector) GetResult() (*DialogResult, error) {
	records, err := c.store.ReadAll("dialog_result")
	if err != nil || len(records) == 0 {
		return nil, err
	}
	var r DialogResult
	if err := decode(records[len(records)-1].Data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
