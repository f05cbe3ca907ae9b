package collect

import (
	"context"
	"strings"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/tomasbasham/chrome-daemon/internal/cdpclient"
	"github.com/tomasbasham/chrome-daemon/internal/config"
	"github.com/tomasbasham/chrome-daemon/internal/storage"
)

// ConsoleMessage is the materialized record for one console.* call.
type ConsoleMessage struct {
	Level string   `json:"level"`
	Text  string   `json:"text"`
	Args  []string `json:"args,omitempty"`
	URL   string   `json:"url,omitempty"`
	Line  int64    `json:"line,omitempty"`
}

// ConsoleCollector consumes Runtime.consoleAPICalled (§4.3 Console).
type ConsoleCollector struct {
	store   *storage.Storage
	filter  config.Filter
	publish func(collection, eventType string, data any)
}

func newConsoleCollector(store *storage.Storage, filter config.Filter, events chan<- Event) *ConsoleCollector {
	return &ConsoleCollector{
		store:   store,
		filter:  filter,
		publish: func(collection, eventType string, data any) { publishTo(events, collection, eventType, data) },
	}
}

func (c *ConsoleCollector) attach(ctx context.Context, page *cdpclient.Page) error {
	if err := chromedp.Run(page.Context(), runtime.Enable()); err != nil {
		return err
	}

	chromedp.ListenTarget(page.Context(), func(ev any) {
		e, ok := ev.(*runtime.EventConsoleAPICalled)
		if !ok {
			return
		}
		c.onConsole(e)
	})
	return nil
}

func consoleLevel(t runtime.APIType) string {
	switch t {
	case runtime.APITypeWarning:
		return "warning"
	case runtime.APITypeError:
		return "error"
	case runtime.APITypeDebug:
		return "debug"
	case runtime.APITypeInfo:
		return "info"
	default:
		return "log"
	}
}

func (c *ConsoleCollector) onConsole(e *runtime.EventConsoleAPICalled) {
	level := consoleLevel(e.Type)
	if !c.shouldCollectLevel(level) {
		return
	}

	var text string
	args := make([]string, 0, len(e.Args))
	for i, a := range e.Args {
		s := string(a.Value)
		args = append(args, s)
		if i == 0 {
			text = s
		}
	}

	var url string
	var line int64
	if e.StackTrace != nil && len(e.StackTrace.CallFrames) > 0 {
		frame := e.StackTrace.CallFrames[0]
		url = frame.URL
		line = frame.LineNumber
	}

	if !c.shouldIncludeMessage(text, url) {
		return
	}

	rec := ConsoleMessage{Level: level, Text: text, Args: args, URL: url, Line: line}
	if err := c.store.Append("console", level, rec); err != nil {
		return
	}
	c.publish("console", level, rec)
}

func (c *ConsoleCollector) shouldCollectLevel(level string) bool {
	if len(c.filter.ConsoleLevels) == 0 {
		return true
	}
	for _, allowed := range c.filter.ConsoleLevels {
		if strings.EqualFold(allowed, level) || (allowed == "warn" && level == "warning") {
			return true
		}
	}
	return false
}

func (c *ConsoleCollector) shouldIncludeMessage(text, url string) bool {
	if strings.Contains(text, "[chrome-daemon-bridge]") {
		return false
	}
	if strings.HasPrefix(url, "chrome-extension://") {
		return false
	}
	return true
}

// Messages returns every stored console record, optionally filtered to a
// single level ("" = any).
func (c *ConsoleCollector) Messages(level string) ([]ConsoleMessage, error) {
	records, err := c.store.ReadAll("console")
	if err != nil {
		return nil, err
	}
	var out []ConsoleMessage
	for _, r := range records {
		var msg ConsoleMessage
		if err := decode(r.Data, &msg); err != nil {
			continue
		}
		if level != "" && !strings.EqualFold(msg.Level, level) {
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}
