package rpc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"github.com/tomasbasham/chrome-daemon/internal/chromeerr"
	"github.com/tomasbasham/chrome-daemon/internal/devices"
)

const infraTimeout = 10 * time.Second

func registerInfraMethods(m map[string]handlerFunc) {
	m["ping"] = func(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
		return map[string]string{"pong": "ok"}, nil
	}

	m["shutdown"] = func(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
		select {
		case <-d.shutdown:
		default:
			close(d.shutdown)
		}
		return map[string]bool{"ok": true}, nil
	}

	m["devices"] = func(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
		return map[string]any{"devices": devices.List(nil)}, nil
	}

	m["emulate"] = func(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
		sess, raw, err := resolveSession(d, params)
		if err != nil {
			return nil, err
		}
		var p struct {
			Device string `json:"device"`
		}
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}
		profile, err := devices.ByName(p.Device)
		if err != nil {
			return nil, err
		}
		pg, err := sess.GetOrCreatePage()
		if err != nil {
			return nil, err
		}
		if err := applyDeviceProfile(pg, profile); err != nil {
			return nil, err
		}
		return map[string]bool{"ok": true}, nil
	}

	m["viewport"] = func(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
		sess, raw, err := resolveSession(d, params)
		if err != nil {
			return nil, err
		}
		var p struct {
			Width      int     `json:"width"`
			Height     int     `json:"height"`
			PixelRatio float64 `json:"pixel_ratio,omitempty"`
			Mobile     bool    `json:"mobile,omitempty"`
		}
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}
		if p.Width <= 0 || p.Height <= 0 {
			return nil, chromeerr.New(chromeerr.KindInvalidParams, "width and height must be positive")
		}
		ratio := p.PixelRatio
		if ratio <= 0 {
			ratio = 1.0
		}
		pg, err := sess.GetOrCreatePage()
		if err != nil {
			return nil, err
		}
		err = pg.Run(infraTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
			return emulation.SetDeviceMetricsOverride(int64(p.Width), int64(p.Height), ratio, p.Mobile).Do(ctx)
		}))
		if err != nil {
			return nil, err
		}
		return map[string]bool{"ok": true}, nil
	}

	m["dialog"] = func(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
		sess, raw, err := resolveSession(d, params)
		if err != nil {
			return nil, err
		}
		var p struct {
			Action     string `json:"action,omitempty"` // "get", "result", or "handle"
			Accept     bool   `json:"accept,omitempty"`
			PromptText string `json:"prompt_text,omitempty"`
		}
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}
		set, err := sess.Collectors()
		if err != nil {
			return nil, err
		}
		switch p.Action {
		case "result":
			res, err := set.Dialog.GetResult()
			if err != nil {
				return nil, err
			}
			return map[string]any{"result": res}, nil
		case "handle":
			if err := set.Dialog.Handle(p.Accept, p.PromptText); err != nil {
				return nil, err
			}
			return map[string]bool{"ok": true}, nil
		default:
			dlg, err := set.Dialog.Get()
			if err != nil {
				return nil, err
			}
			return map[string]any{"dialog": dlg}, nil
		}
	}
}

func applyDeviceProfile(pg interface {
	Run(time.Duration, ...chromedp.Action) error
}, profile devices.Profile) error {
	return pg.Run(infraTimeout,
		chromedp.ActionFunc(func(ctx context.Context) error {
			return emulation.SetDeviceMetricsOverride(int64(profile.Width), int64(profile.Height), profile.PixelRatio, profile.Mobile).
				WithScreenOrientation(orientationFor(profile)).
				Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			return emulation.SetUserAgentOverride(profile.UserAgent).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			return emulation.SetTouchEmulationEnabled(profile.Touch).Do(ctx)
		}),
	)
}

func orientationFor(p devices.Profile) *emulation.ScreenOrientation {
	if p.Landscape {
		return &emulation.ScreenOrientation{Type: emulation.OrientationTypeLandscapePrimary, Angle: 90}
	}
	return &emulation.ScreenOrientation{Type: emulation.OrientationTypePortraitPrimary, Angle: 0}
}
