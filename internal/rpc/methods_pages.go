package rpc

import (
	"context"
	"encoding/json"
)

func registerPageMethods(m map[string]handlerFunc) {
	m["page.list"] = func(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
		sess, _, err := resolveSession(d, params)
		if err != nil {
			return nil, err
		}
		return sess.ListPages()
	}

	m["page.new"] = func(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
		sess, raw, err := resolveSession(d, params)
		if err != nil {
			return nil, err
		}
		var p struct {
			URL string `json:"url,omitempty"`
		}
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}
		if _, err := sess.NewPage(p.URL); err != nil {
			return nil, err
		}
		return sess.ListPages()
	}

	m["page.select"] = func(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
		sess, raw, err := resolveSession(d, params)
		if err != nil {
			return nil, err
		}
		var p struct {
			Index int `json:"index"`
		}
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}
		if err := sess.SelectPage(p.Index); err != nil {
			return nil, err
		}
		return map[string]bool{"ok": true}, nil
	}

	m["page.close"] = func(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
		sess, raw, err := resolveSession(d, params)
		if err != nil {
			return nil, err
		}
		var p struct {
			Index int `json:"index"`
		}
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}
		if err := sess.ClosePage(p.Index); err != nil {
			return nil, err
		}
		return map[string]bool{"ok": true}, nil
	}
}
