// Package cdpclient is a typed adapter over chromedp: launching a
// managed Chrome process or attaching to a pre-existing one, and
// exposing a small Browser/Page surface the rest of the daemon drives
// instead of talking to chromedp directly.
package cdpclient

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/tomasbasham/chrome-daemon/internal/chromeerr"
)

// LaunchConfig configures a Managed browser launch: this process spawns
// the browser binary itself.
type LaunchConfig struct {
	ChromePath       string
	Port             int
	Headless         bool
	UserDataDir      string
	ProfileDirectory string
	ExtensionDir     string
	WindowWidth      int
	WindowHeight     int
}

// Browser wraps one chromedp allocator context for the lifetime of a
// single browser process (managed or attached).
type Browser struct {
	allocCtx   context.Context
	allocClose context.CancelFunc
	ctx        context.Context
	ctxClose   context.CancelFunc
}

// Launch spawns a Chrome process with a known debugging port (Managed
// mode per §4.2) and connects a control context to it.
func Launch(parent context.Context, cfg LaunchConfig) (*Browser, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
		chromedp.Flag("disable-features", "ProfilePickerOnStartup"),
		chromedp.WindowSize(nonZero(cfg.WindowWidth, 1280), nonZero(cfg.WindowHeight, 800)),
		chromedp.ExecPath(cfg.ChromePath),
	)
	if cfg.Port != 0 {
		opts = append(opts, chromedp.Flag("remote-debugging-port", fmt.Sprintf("%d", cfg.Port)))
	}
	if cfg.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(cfg.UserDataDir))
		if cfg.ProfileDirectory != "" {
			opts = append(opts, chromedp.Flag("profile-directory", cfg.ProfileDirectory))
		}
	}
	if cfg.ExtensionDir != "" {
		opts = append(opts,
			chromedp.Flag("disable-extensions-except", cfg.ExtensionDir),
			chromedp.Flag("load-extension", cfg.ExtensionDir),
		)
	}

	allocCtx, allocClose := chromedp.NewExecAllocator(parent, opts...)
	ctx, ctxClose := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(string, ...any) {}),
		chromedp.WithErrorf(func(string, ...any) {}),
		chromedp.WithDebugf(func(string, ...any) {}),
	)

	if err := chromedp.Run(ctx); err != nil {
		ctxClose()
		allocClose()
		return nil, chromeerr.Wrap(chromeerr.KindLaunch, "starting chrome", err)
	}

	return &Browser{allocCtx: allocCtx, allocClose: allocClose, ctx: ctx, ctxClose: ctxClose}, nil
}

// Attach connects to a pre-existing browser's control WebSocket (Attached
// mode per §4.2) given the debugger URL from /json/version.
func Attach(parent context.Context, webSocketDebuggerURL string) (*Browser, error) {
	allocCtx, allocClose := chromedp.NewRemoteAllocator(parent, webSocketDebuggerURL)
	ctx, ctxClose := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(string, ...any) {}),
		chromedp.WithErrorf(func(string, ...any) {}),
	)

	if err := chromedp.Run(ctx); err != nil {
		ctxClose()
		allocClose()
		return nil, chromeerr.Wrap(chromeerr.KindConnection, "attaching to chrome", err)
	}

	return &Browser{allocCtx: allocCtx, allocClose: allocClose, ctx: ctx, ctxClose: ctxClose}, nil
}

// Close tears down the browser's control context. For a Managed launch
// this also terminates the spawned process; dropping the handle causes
// the background event-draining task chromedp owns to complete without
// leaking.
func (b *Browser) Close() {
	b.ctxClose()
	b.allocClose()
}

// Context returns the chromedp browser-level context, for components
// (collectors, action executor) that need to run chromedp actions
// directly.
func (b *Browser) Context() context.Context { return b.ctx }

// NewPage creates a new page target and navigates it to url (empty
// string for about:blank).
func (b *Browser) NewPage(url string) (*Page, error) {
	pageCtx, cancel := chromedp.NewContext(b.ctx)
	if url == "" {
		url = "about:blank"
	}
	if err := chromedp.Run(pageCtx, chromedp.Navigate(url)); err != nil {
		cancel()
		return nil, chromeerr.Wrap(chromeerr.KindLaunch, "creating page", err)
	}
	return &Page{ctx: pageCtx, cancel: cancel}, nil
}

// GetPage attaches a Page wrapper to an already-existing CDP target id.
func (b *Browser) GetPage(targetID target.ID) (*Page, error) {
	pageCtx, cancel := chromedp.NewContext(b.ctx, chromedp.WithTargetID(targetID))
	if err := chromedp.Run(pageCtx); err != nil {
		cancel()
		return nil, chromeerr.Wrap(chromeerr.KindConnection, "attaching to target", err)
	}
	return &Page{ctx: pageCtx, cancel: cancel}, nil
}

// Pages lists every page-type target the browser currently knows about,
// via CDP Target.getTargets.
func (b *Browser) Pages(ctx context.Context) ([]*target.Info, error) {
	var infos []*target.Info
	if err := chromedp.Run(b.ctx, chromedp.ActionFunc(func(c context.Context) error {
		targets, err := target.GetTargets().Do(c)
		if err != nil {
			return err
		}
		for _, t := range targets {
			if t.Type == "page" {
				infos = append(infos, t)
			}
		}
		return nil
	})); err != nil {
		return nil, chromeerr.Wrap(chromeerr.KindConnection, "listing targets", err)
	}
	return infos, nil
}

// ListJSON discovers live page targets via the HTTP /json/list endpoint,
// which session restoration prefers over the in-memory list (§4.5,
// §4.6 "Restoration").
func ListJSON(port int, timeout time.Duration) ([]TargetEntry, error) {
	return listJSON(port, timeout)
}

// TargetEntry is one entry of GET /json/list.
type TargetEntry struct {
	ID                   string `json:"id"`
	Type                 string `json:"type"`
	URL                  string `json:"url"`
	Title                string `json:"title"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

func nonZero(v, fallback int) int {
	if v == 0 {
		return fallback
	}
	return v
}
