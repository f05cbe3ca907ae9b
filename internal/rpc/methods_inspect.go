package rpc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/chromedp/cdproto/accessibility"
	"github.com/chromedp/chromedp"
)

const inspectTimeout = 10 * time.Second

func registerInspectMethods(m map[string]handlerFunc) {
	m["inspect"] = func(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
		sess, raw, err := resolveSession(d, params)
		if err != nil {
			return nil, err
		}
		var p selectorParams
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}
		page, err := sess.GetOrCreatePage()
		if err != nil {
			return nil, err
		}
		var outer string
		if err := page.Run(inspectTimeout, chromedp.OuterHTML(p.Selector, &outer, chromedp.ByQuery)); err != nil {
			return nil, err
		}
		return map[string]string{"html": outer}, nil
	}

	m["query"] = func(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
		sess, raw, err := resolveSession(d, params)
		if err != nil {
			return nil, err
		}
		var p selectorParams
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}
		page, err := sess.GetOrCreatePage()
		if err != nil {
			return nil, err
		}
		var nodes []map[string]any
		script := `Array.from(document.querySelectorAll(` + jsonQuote(p.Selector) + `)).map(el => ({
			tag: el.tagName.toLowerCase(),
			text: el.textContent ? el.textContent.trim().slice(0, 200) : ""
		}))`
		if err := page.Eval(inspectTimeout, script, &nodes); err != nil {
			return nil, err
		}
		return map[string]any{"matches": nodes}, nil
	}

	m["dom"] = func(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
		sess, _, err := resolveSession(d, params)
		if err != nil {
			return nil, err
		}
		page, err := sess.GetOrCreatePage()
		if err != nil {
			return nil, err
		}
		var outer string
		if err := page.Run(inspectTimeout, chromedp.OuterHTML("html", &outer, chromedp.ByQuery)); err != nil {
			return nil, err
		}
		return map[string]string{"html": outer}, nil
	}

	m["a11y"] = func(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
		sess, _, err := resolveSession(d, params)
		if err != nil {
			return nil, err
		}
		page, err := sess.GetOrCreatePage()
		if err != nil {
			return nil, err
		}
		var nodes []*accessibility.Node
		if err := page.Run(inspectTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
			n, err := accessibility.GetFullAXTree().Do(ctx)
			nodes = n
			return err
		})); err != nil {
			return nil, err
		}
		return map[string]any{"nodes": nodes}, nil
	}

	m["listeners"] = func(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
		sess, raw, err := resolveSession(d, params)
		if err != nil {
			return nil, err
		}
		var p selectorParams
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}
		page, err := sess.GetOrCreatePage()
		if err != nil {
			return nil, err
		}
		var events []string
		script := `(function(sel){
			const el = document.querySelector(sel);
			if (!el) return [];
			const out = [];
			for (const k in el) {
				if (k.startsWith('on') && el[k]) out.push(k.slice(2));
			}
			return out;
		})(` + jsonQuote(p.Selector) + `)`
		if err := page.Eval(inspectTimeout, script, &events); err != nil {
			return nil, err
		}
		return map[string]any{"events": events}, nil
	}
}

func jsonQuote(s string) string {
	data, _ := json.Marshal(s)
	return string(data)
}
