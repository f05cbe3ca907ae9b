package rpc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/tomasbasham/chrome-daemon/internal/exec"
)

type selectorParams struct {
	Selector string `json:"selector"`
	Value    string `json:"value,omitempty"`
	Text     string `json:"text,omitempty"`
	Key      string `json:"key,omitempty"`
	Mode     string `json:"mode,omitempty"`
}

func (p selectorParams) mode() exec.Mode {
	switch p.Mode {
	case string(exec.ModeCDP), string(exec.ModeJS):
		return exec.Mode(p.Mode)
	default:
		return exec.ModeAuto
	}
}

func registerInputMethods(m map[string]handlerFunc) {
	m["click"] = func(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
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
		ex := exec.New(page, exec.DefaultConfig())
		if _, err := exec.Execute(ex, func() (any, error) { return nil, ex.Click(p.Selector, p.mode()) }); err != nil {
			return nil, err
		}
		return map[string]bool{"ok": true}, nil
	}

	m["fill"] = func(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
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
		ex := exec.New(page, exec.DefaultConfig())
		if _, err := exec.Execute(ex, func() (any, error) { return nil, ex.Fill(p.Selector, p.Value, p.mode()) }); err != nil {
			return nil, err
		}
		return map[string]bool{"ok": true}, nil
	}

	m["type"] = func(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
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
		ex := exec.New(page, exec.DefaultConfig())
		if _, err := exec.Execute(ex, func() (any, error) { return nil, ex.Type(p.Selector, p.Text, p.mode()) }); err != nil {
			return nil, err
		}
		return map[string]bool{"ok": true}, nil
	}

	m["hover"] = func(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
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
		ex := exec.New(page, exec.DefaultConfig())
		if _, err := exec.Execute(ex, func() (any, error) { return nil, ex.Hover(p.Selector, p.mode()) }); err != nil {
			return nil, err
		}
		return map[string]bool{"ok": true}, nil
	}

	m["press"] = func(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
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
		ex := exec.New(page, exec.DefaultConfig())
		_, err = exec.Execute(ex, func() (any, error) {
			return nil, page.Run(pressTimeout, chromedp.KeyEvent(p.Key))
		})
		if err != nil {
			return nil, err
		}
		return map[string]bool{"ok": true}, nil
	}
}

const pressTimeout = 5 * time.Second
