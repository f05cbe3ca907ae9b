package rpc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

const stateTimeout = 10 * time.Second

type cookieParams struct {
	Name   string `json:"name,omitempty"`
	Value  string `json:"value,omitempty"`
	Domain string `json:"domain,omitempty"`
	Path   string `json:"path,omitempty"`
	URL    string `json:"url,omitempty"`
}

func registerStateMethods(m map[string]handlerFunc) {
	m["cookies.list"] = func(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
		sess, _, err := resolveSession(d, params)
		if err != nil {
			return nil, err
		}
		pg, err := sess.GetOrCreatePage()
		if err != nil {
			return nil, err
		}
		var cookies []*network.Cookie
		err = pg.Run(stateTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
			cs, err := network.GetCookies().Do(ctx)
			cookies = cs
			return err
		}))
		if err != nil {
			return nil, err
		}
		return map[string]any{"cookies": cookies}, nil
	}

	m["cookies.get"] = func(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
		sess, raw, err := resolveSession(d, params)
		if err != nil {
			return nil, err
		}
		var p cookieParams
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}
		pg, err := sess.GetOrCreatePage()
		if err != nil {
			return nil, err
		}
		var cookies []*network.Cookie
		err = pg.Run(stateTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
			cs, err := network.GetCookies().Do(ctx)
			cookies = cs
			return err
		}))
		if err != nil {
			return nil, err
		}
		for _, c := range cookies {
			if c.Name == p.Name {
				return map[string]any{"cookie": c}, nil
			}
		}
		return map[string]any{"cookie": nil}, nil
	}

	m["cookies.set"] = func(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
		sess, raw, err := resolveSession(d, params)
		if err != nil {
			return nil, err
		}
		var p cookieParams
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}
		pg, err := sess.GetOrCreatePage()
		if err != nil {
			return nil, err
		}
		set := network.SetCookie(p.Name, p.Value)
		if p.Domain != "" {
			set = set.WithDomain(p.Domain)
		}
		if p.Path != "" {
			set = set.WithPath(p.Path)
		}
		if p.URL != "" {
			set = set.WithURL(p.URL)
		}
		if err := pg.Run(stateTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := set.Do(ctx)
			return err
		})); err != nil {
			return nil, err
		}
		return map[string]bool{"ok": true}, nil
	}

	m["cookies.delete"] = func(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
		sess, raw, err := resolveSession(d, params)
		if err != nil {
			return nil, err
		}
		var p cookieParams
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}
		pg, err := sess.GetOrCreatePage()
		if err != nil {
			return nil, err
		}
		del := network.DeleteCookies(p.Name)
		if p.Domain != "" {
			del = del.WithDomain(p.Domain)
		}
		if p.URL != "" {
			del = del.WithURL(p.URL)
		}
		if err := pg.Run(stateTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
			return del.Do(ctx)
		})); err != nil {
			return nil, err
		}
		return map[string]bool{"ok": true}, nil
	}

	m["cookies.clear"] = func(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
		sess, _, err := resolveSession(d, params)
		if err != nil {
			return nil, err
		}
		pg, err := sess.GetOrCreatePage()
		if err != nil {
			return nil, err
		}
		if err := pg.Run(stateTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
			return network.ClearBrowserCookies().Do(ctx)
		})); err != nil {
			return nil, err
		}
		return map[string]bool{"ok": true}, nil
	}

	registerStorageMethods(m)
}

type storageParams struct {
	Key   string `json:"key,omitempty"`
	Value string `json:"value,omitempty"`
	Area  string `json:"area,omitempty"` // "local" (default) or "session"
}

func (p storageParams) storageObject() string {
	if p.Area == "session" {
		return "sessionStorage"
	}
	return "localStorage"
}

func registerStorageMethods(m map[string]handlerFunc) {
	m["storage.list"] = func(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
		sess, raw, err := resolveSession(d, params)
		if err != nil {
			return nil, err
		}
		var p storageParams
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}
		pg, err := sess.GetOrCreatePage()
		if err != nil {
			return nil, err
		}
		var out map[string]string
		script := `(function(){const o={}; for (let i=0;i<` + p.storageObject() + `.length;i++){const k=` + p.storageObject() + `.key(i); o[k]=` + p.storageObject() + `.getItem(k);} return o;})()`
		if err := pg.Eval(stateTimeout, script, &out); err != nil {
			return nil, err
		}
		return map[string]any{"items": out}, nil
	}

	m["storage.get"] = func(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
		sess, raw, err := resolveSession(d, params)
		if err != nil {
			return nil, err
		}
		var p storageParams
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}
		pg, err := sess.GetOrCreatePage()
		if err != nil {
			return nil, err
		}
		var value string
		script := p.storageObject() + `.getItem(` + jsonQuote(p.Key) + `)`
		if err := pg.Eval(stateTimeout, script, &value); err != nil {
			return nil, err
		}
		return map[string]string{"value": value}, nil
	}

	m["storage.set"] = func(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
		sess, raw, err := resolveSession(d, params)
		if err != nil {
			return nil, err
		}
		var p storageParams
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}
		pg, err := sess.GetOrCreatePage()
		if err != nil {
			return nil, err
		}
		var discard any
		script := p.storageObject() + `.setItem(` + jsonQuote(p.Key) + `, ` + jsonQuote(p.Value) + `)`
		if err := pg.Eval(stateTimeout, script, &discard); err != nil {
			return nil, err
		}
		return map[string]bool{"ok": true}, nil
	}

	m["storage.delete"] = func(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
		sess, raw, err := resolveSession(d, params)
		if err != nil {
			return nil, err
		}
		var p storageParams
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}
		pg, err := sess.GetOrCreatePage()
		if err != nil {
			return nil, err
		}
		var discard any
		script := p.storageObject() + `.removeItem(` + jsonQuote(p.Key) + `)`
		if err := pg.Eval(stateTimeout, script, &discard); err != nil {
			return nil, err
		}
		return map[string]bool{"ok": true}, nil
	}

	m["storage.clear"] = func(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
		sess, raw, err := resolveSession(d, params)
		if err != nil {
			return nil, err
		}
		var p storageParams
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}
		pg, err := sess.GetOrCreatePage()
		if err != nil {
			return nil, err
		}
		var discard any
		script := p.storageObject() + `.clear()`
		if err := pg.Eval(stateTimeout, script, &discard); err != nil {
			return nil, err
		}
		return map[string]bool{"ok": true}, nil
	}
}
