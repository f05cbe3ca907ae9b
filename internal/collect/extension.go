package collect

import (
	"encoding/json"

	"github.com/tomasbasham/chrome-daemon/internal/storage"
)

// ExtensionEvent is the materialized record for one event pushed by the
// companion browser extension through the HTTP ingress (§4.9
// /api/events), not through a native CDP stream. The event taxonomy
// (click, input, select, hover, scroll, keypress, screenshot,
// recording, snapshot, dialog, navigate) is left as a free-form string
// rather than a Go tagged union, since the extension payload shape
// varies per type and Go has no ergonomic enum-with-data.
type ExtensionEvent struct {
	Type        string          `json:"type"`
	TimestampMs int64           `json:"timestamp_ms"`
	Data        json.RawMessage `json:"data,omitempty"`
}

// ExtensionCollector is not attached to a CDP target at all: its only
// producer is HandleEvent, called from the HTTP ingress handler.
type ExtensionCollector struct {
	store   *storage.Storage
	publish func(collection, eventType string, data any)
}

func newExtensionCollector(store *storage.Storage, events chan<- Event) *ExtensionCollector {
	return &ExtensionCollector{
		store:   store,
		publish: func(collection, eventType string, data any) { publishTo(events, collection, eventType, data) },
	}
}

// HandleEvent records one extension-reported event.
func (c *ExtensionCollector) HandleEvent(raw json.RawMessage) error {
	var ev ExtensionEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return err
	}
	if err := c.store.Append("extension", ev.Type, ev); err != nil {
		return err
	}
	c.publish("extension", ev.Type, ev)
	return nil
}

// Events returns every stored extension event, optionally filtered to a
// single type ("" = any).
func (c *ExtensionCollector) Events(eventType string) ([]ExtensionEvent, error) {
	records, err := c.store.ReadAll("extension")
	if err != nil {
		return nil, err
	}
	var out []ExtensionEvent
	for _, r := range records {
		var e ExtensionEvent
		if err := decode(r.Data, &e); err != nil {
			continue
		}
		if eventType != "" && e.Type != eventType {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Count returns the number of stored extension events.
func (c *ExtensionCollector) Count() (int, error) { return c.store.Count("extension") }
