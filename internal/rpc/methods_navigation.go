package rpc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/tomasbasham/chrome-daemon/internal/exec"
)

const defaultActionTimeout = 30 * time.Second

func registerNavigationMethods(m map[string]handlerFunc) {
	m["navigate"] = func(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
		sess, raw, err := resolveSession(d, params)
		if err != nil {
			return nil, err
		}
		var p struct {
			URL string `json:"url"`
		}
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}

		page, err := sess.GetOrCreatePage()
		if err != nil {
			return nil, err
		}
		ex := exec.New(page, exec.DefaultConfig())
		_, err = exec.Execute(ex, func() (any, error) {
			return nil, page.Navigate(navTimeout(d), p.URL)
		})
		if err != nil {
			return nil, err
		}
		return map[string]bool{"ok": true}, nil
	}

	m["reload"] = func(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
		sess, _, err := resolveSession(d, params)
		if err != nil {
			return nil, err
		}
		page, err := sess.GetOrCreatePage()
		if err != nil {
			return nil, err
		}
		ex := exec.New(page, exec.DefaultConfig())
		_, err = exec.Execute(ex, func() (any, error) {
			return nil, page.Run(navTimeout(d), chromedp.Reload())
		})
		if err != nil {
			return nil, err
		}
		return map[string]bool{"ok": true}, nil
	}

	m["back"] = func(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
		sess, _, err := resolveSession(d, params)
		if err != nil {
			return nil, err
		}
		page, err := sess.GetOrCreatePage()
		if err != nil {
			return nil, err
		}
		ex := exec.New(page, exec.DefaultConfig())
		_, err = exec.Execute(ex, func() (any, error) {
			return nil, page.Run(navTimeout(d), chromedp.NavigateBack())
		})
		if err != nil {
			return nil, err
		}
		return map[string]bool{"ok": true}, nil
	}

	m["forward"] = func(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
		sess, _, err := resolveSession(d, params)
		if err != nil {
			return nil, err
		}
		page, err := sess.GetOrCreatePage()
		if err != nil {
			return nil, err
		}
		ex := exec.New(page, exec.DefaultConfig())
		_, err = exec.Execute(ex, func() (any, error) {
			return nil, page.Run(navTimeout(d), chromedp.NavigateForward())
		})
		if err != nil {
			return nil, err
		}
		return map[string]bool{"ok": true}, nil
	}
}

func navTimeout(d *Dispatcher) time.Duration {
	if d.Cfg.Performance.NavigationTimeoutSecs <= 0 {
		return defaultActionTimeout
	}
	return time.Duration(d.Cfg.Performance.NavigationTimeoutSecs) * time.Second
}
