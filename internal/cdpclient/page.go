package cdpclient

import (
	"context"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/tomasbasham/chrome-daemon/internal/chromeerr"
)

// Page wraps one CDP page target's chromedp context.
type Page struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// Context returns the chromedp page-level context.
func (p *Page) Context() context.Context { return p.ctx }

// Close detaches from the page target.
func (p *Page) Close() { p.cancel() }

// TargetID returns the CDP target id this page is bound to.
func (p *Page) TargetID() target.ID {
	return chromedp.FromContext(p.ctx).Target.TargetID
}

// Run executes one or more chromedp actions against this page, bounded
// by timeout.
func (p *Page) Run(timeout time.Duration, actions ...chromedp.Action) error {
	ctx, cancel := context.WithTimeout(p.ctx, timeout)
	defer cancel()

	if err := chromedp.Run(ctx, actions...); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return chromeerr.Wrap(chromeerr.KindNavigationTimeout, "command timed out", err)
		}
		return chromeerr.Wrap(chromeerr.KindConnection, "command failed", err)
	}
	return nil
}

// Eval evaluates script and decodes the result into out.
func (p *Page) Eval(timeout time.Duration, script string, out any) error {
	ctx, cancel := context.WithTimeout(p.ctx, timeout)
	defer cancel()

	if err := chromedp.Run(ctx, chromedp.Evaluate(script, out)); err != nil {
		return chromeerr.Wrap(chromeerr.KindEvaluation, "evaluating script", err)
	}
	return nil
}

// URL returns the page's current URL.
func (p *Page) URL() (string, error) {
	var url string
	if err := p.Run(5*time.Second, chromedp.Location(&url)); err != nil {
		return "", err
	}
	return url, nil
}

// Title returns the page's current title.
func (p *Page) Title() (string, error) {
	var title string
	if err := p.Run(5*time.Second, chromedp.Title(&title)); err != nil {
		return "", err
	}
	return title, nil
}

// Navigate navigates this page to url and waits for the page's load
// event (the thin CDP primitive; stability/actionability live in
// internal/exec).
func (p *Page) Navigate(timeout time.Duration, url string) error {
	return p.Run(timeout, chromedp.Navigate(url))
}

// NavigateAction exposes page.Navigate as a chromedp action, used by
// internal/exec when it needs to compose navigation with waiting.
func NavigateAction(url string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		_, _, _, err := page.Navigate(url).Do(ctx)
		return err
	})
}
