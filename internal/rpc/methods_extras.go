package rpc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/tomasbasham/chrome-daemon/internal/exec"
)

func registerExtrasMethods(m map[string]handlerFunc) {
	m["scroll"] = func(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
		sess, raw, err := resolveSession(d, params)
		if err != nil {
			return nil, err
		}
		var p selectorParams
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}
		pg, err := sess.GetOrCreatePage()
		if err != nil {
			return nil, err
		}
		if p.Selector != "" {
			if err := pg.Run(inspectTimeout, chromedp.ScrollIntoView(p.Selector, chromedp.ByQuery)); err != nil {
				return nil, err
			}
			return map[string]bool{"ok": true}, nil
		}
		var discard any
		if err := pg.Eval(inspectTimeout, `window.scrollBy(0, window.innerHeight)`, &discard); err != nil {
			return nil, err
		}
		return map[string]bool{"ok": true}, nil
	}

	m["select"] = func(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
		sess, raw, err := resolveSession(d, params)
		if err != nil {
			return nil, err
		}
		var p selectorParams
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}
		pg, err := sess.GetOrCreatePage()
		if err != nil {
			return nil, err
		}
		if err := pg.Run(inspectTimeout, chromedp.SetValue(p.Selector, p.Value, chromedp.ByQuery)); err != nil {
			return nil, err
		}
		return map[string]bool{"ok": true}, nil
	}

	m["html"] = func(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
		sess, _, err := resolveSession(d, params)
		if err != nil {
			return nil, err
		}
		pg, err := sess.GetOrCreatePage()
		if err != nil {
			return nil, err
		}
		var html string
		if err := pg.Run(inspectTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
			return nil, err
		}
		return map[string]string{"html": html}, nil
	}

	m["pdf"] = func(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
		sess, _, err := resolveSession(d, params)
		if err != nil {
			return nil, err
		}
		pg, err := sess.GetOrCreatePage()
		if err != nil {
			return nil, err
		}
		var buf []byte
		err = pg.Run(30*time.Second, chromedp.ActionFunc(func(ctx context.Context) error {
			data, _, err := page.PrintToPDF().Do(ctx)
			buf = data
			return err
		}))
		if err != nil {
			return nil, err
		}
		return map[string]any{"data": buf}, nil
	}

	m["screenshot"] = func(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
		sess, raw, err := resolveSession(d, params)
		if err != nil {
			return nil, err
		}
		var p struct {
			Selector string `json:"selector,omitempty"`
			FullPage bool   `json:"full_page,omitempty"`
		}
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}
		pg, err := sess.GetOrCreatePage()
		if err != nil {
			return nil, err
		}
		var buf []byte
		var action chromedp.Action
		switch {
		case p.Selector != "":
			action = chromedp.Screenshot(p.Selector, &buf, chromedp.ByQuery)
		case p.FullPage:
			action = chromedp.FullScreenshot(&buf, 90)
		default:
			action = chromedp.CaptureScreenshot(&buf)
		}
		if err := pg.Run(10*time.Second, action); err != nil {
			return nil, err
		}
		return map[string]any{"data": buf}, nil
	}

	m["eval"] = func(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
		sess, raw, err := resolveSession(d, params)
		if err != nil {
			return nil, err
		}
		var p struct {
			Script string `json:"script"`
		}
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}
		pg, err := sess.GetOrCreatePage()
		if err != nil {
			return nil, err
		}
		var out any
		if err := pg.Eval(inspectTimeout, p.Script, &out); err != nil {
			return nil, err
		}
		return map[string]any{"result": out}, nil
	}

	m["wait"] = func(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
		sess, raw, err := resolveSession(d, params)
		if err != nil {
			return nil, err
		}
		var p selectorParams
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}
		pg, err := sess.GetOrCreatePage()
		if err != nil {
			return nil, err
		}
		ex := exec.New(pg, exec.DefaultConfig())
		if err := ex.WaitForActionable(p.Selector, exec.Visible, 5*time.Second); err != nil {
			return nil, err
		}
		return map[string]bool{"ok": true}, nil
	}
}
