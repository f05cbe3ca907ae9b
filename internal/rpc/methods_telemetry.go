package rpc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/tomasbasham/chrome-daemon/internal/chromeerr"
)

func registerTelemetryMethods(m map[string]handlerFunc) {
	m["console"] = func(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
		sess, raw, err := resolveSession(d, params)
		if err != nil {
			return nil, err
		}
		var p struct {
			Filter string `json:"filter,omitempty"`
		}
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}
		set, err := sess.Collectors()
		if err != nil {
			return nil, err
		}
		msgs, err := set.Console.Messages(p.Filter)
		if err != nil {
			return nil, err
		}
		return map[string]any{"messages": msgs}, nil
	}

	m["network"] = func(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
		sess, raw, err := resolveSession(d, params)
		if err != nil {
			return nil, err
		}
		var p struct {
			Domain string `json:"domain,omitempty"`
			Status int    `json:"status,omitempty"`
		}
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}
		set, err := sess.Collectors()
		if err != nil {
			return nil, err
		}
		reqs, err := set.Network.Requests(p.Domain, p.Status)
		if err != nil {
			return nil, err
		}
		return map[string]any{"requests": reqs}, nil
	}

	m["trace.start"] = func(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
		sess, raw, err := resolveSession(d, params)
		if err != nil {
			return nil, err
		}
		var p struct {
			Categories []string `json:"categories,omitempty"`
		}
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}
		set, err := sess.Collectors()
		if err != nil {
			return nil, err
		}
		page, err := sess.GetOrCreatePage()
		if err != nil {
			return nil, err
		}
		traceID, err := set.Trace.Start(page, p.Categories)
		if err != nil {
			return nil, err
		}
		return map[string]string{"trace_id": traceID}, nil
	}

	m["trace.stop"] = func(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
		sess, _, err := resolveSession(d, params)
		if err != nil {
			return nil, err
		}
		set, err := sess.Collectors()
		if err != nil {
			return nil, err
		}
		page, err := sess.GetOrCreatePage()
		if err != nil {
			return nil, err
		}
		url, _ := page.URL()
		data, err := set.Trace.Stop(page, url)
		if err != nil {
			return nil, err
		}
		return data, nil
	}

	m["trace.status"] = func(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
		sess, _, err := resolveSession(d, params)
		if err != nil {
			return nil, err
		}
		set, err := sess.Collectors()
		if err != nil {
			return nil, err
		}
		return set.Trace.Status(), nil
	}

	m["extension.events"] = func(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
		sess, raw, err := resolveSession(d, params)
		if err != nil {
			return nil, err
		}
		var p struct {
			Type string `json:"type,omitempty"`
		}
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}
		set, err := sess.Collectors()
		if err != nil {
			return nil, err
		}
		events, err := set.Extension.Events(p.Type)
		if err != nil {
			return nil, err
		}
		return map[string]any{"events": events}, nil
	}

	m["extension.count"] = func(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
		sess, _, err := resolveSession(d, params)
		if err != nil {
			return nil, err
		}
		set, err := sess.Collectors()
		if err != nil {
			return nil, err
		}
		n, err := set.Extension.Count()
		if err != nil {
			return nil, err
		}
		return map[string]int{"count": n}, nil
	}

	m["extension.await"] = func(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
		sess, raw, err := resolveSession(d, params)
		if err != nil {
			return nil, err
		}
		var p struct {
			Type          string `json:"type,omitempty"`
			TimeoutMillis int    `json:"timeout_ms,omitempty"`
		}
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}
		set, err := sess.Collectors()
		if err != nil {
			return nil, err
		}

		timeout := time.Duration(p.TimeoutMillis) * time.Millisecond
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		deadline := time.Now().Add(timeout)

		baseline, err := set.Extension.Events(p.Type)
		if err != nil {
			return nil, err
		}
		before := len(baseline)

		for time.Now().Before(deadline) {
			events, err := set.Extension.Events(p.Type)
			if err == nil && len(events) > before {
				return map[string]any{"events": events[before:]}, nil
			}
			time.Sleep(100 * time.Millisecond)
		}
		return nil, chromeerr.New(chromeerr.KindNavigationTimeout, "timed out awaiting extension event")
	}
}
