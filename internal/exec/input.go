package exec

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"github.com/tomasbasham/chrome-daemon/internal/chromeerr"
)

const cdpActionTimeout = msCDPAction * time.Millisecond

// RunWithMode carries out one input operation per Mode: "cdp" and "js"
// call their matching closure directly; "auto" tries cdp first and, on a
// non-fatal failure or timeout, falls back to js. element-not-found is
// never retried in the other mode since the element genuinely isn't
// there (§4.4).
func RunWithMode(mode Mode, cdpOp, jsOp func() error) error {
	switch mode {
	case ModeCDP:
		return cdpOp()
	case ModeJS:
		return jsOp()
	default:
		err := cdpOp()
		if err == nil {
			return nil
		}
		if kind, ok := chromeerr.KindOf(err); ok && kind == chromeerr.KindElementNotFound {
			return err
		}
		return jsOp()
	}
}

// Click performs a click via CDP dispatch or, on fallback, a synthesized
// in-page click() call.
func (e *Executor) Click(selector string, mode Mode) error {
	if err := e.WaitForActionable(selector, Visible|Stable|Enabled|InViewport, msSelectorTimeout*time.Millisecond); err != nil {
		return err
	}

	return RunWithMode(mode, func() error {
		ctx, cancel := context.WithTimeout(e.page.Context(), cdpActionTimeout)
		defer cancel()
		return chromedp.Run(ctx, chromedp.Click(selector, chromedp.ByQuery))
	}, func() error {
		script := fmt.Sprintf(`(function(sel){const el=document.querySelector(sel); if(!el) throw new Error('not found'); el.click();})(%q)`, selector)
		var discard any
		return e.page.Eval(cdpActionTimeout, script, &discard)
	})
}

// Fill sets an input/textarea's value via CDP focus+SetValue or, on
// fallback, direct DOM value assignment plus a synthesized input event.
func (e *Executor) Fill(selector, value string, mode Mode) error {
	if err := e.WaitForActionable(selector, Visible|Enabled, msSelectorTimeout*time.Millisecond); err != nil {
		return err
	}

	return RunWithMode(mode, func() error {
		ctx, cancel := context.WithTimeout(e.page.Context(), cdpActionTimeout)
		defer cancel()
		return chromedp.Run(ctx,
			chromedp.Focus(selector, chromedp.ByQuery),
			chromedp.SetValue(selector, value, chromedp.ByQuery),
		)
	}, func() error {
		script := fmt.Sprintf(`(function(sel,val){const el=document.querySelector(sel); if(!el) throw new Error('not found'); el.value=val; el.dispatchEvent(new Event('input',{bubbles:true})); el.dispatchEvent(new Event('change',{bubbles:true}));})(%q,%q)`, selector, value)
		var discard any
		return e.page.Eval(cdpActionTimeout, script, &discard)
	})
}

// Hover moves the pointer over selector via CDP dispatch or, on
// fallback, a synthesized mouseover/mouseenter pair.
func (e *Executor) Hover(selector string, mode Mode) error {
	if err := e.WaitForActionable(selector, Visible|InViewport, msSelectorTimeout*time.Millisecond); err != nil {
		return err
	}

	return RunWithMode(mode, func() error {
		if err := e.scrollIntoView(selector); err != nil {
			return err
		}
		state, err := e.elementState(selector)
		if err != nil || state == nil {
			return chromeerr.New(chromeerr.KindElementNotFound, "hover target not found: "+selector)
		}
		x, y := state.X+state.W/2, state.Y+state.H/2

		ctx, cancel := context.WithTimeout(e.page.Context(), cdpActionTimeout)
		defer cancel()
		return chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
			return input.DispatchMouseEvent(input.MouseMoved, x, y).Do(ctx)
		}))
	}, func() error {
		script := fmt.Sprintf(`(function(sel){const el=document.querySelector(sel); if(!el) throw new Error('not found'); el.dispatchEvent(new MouseEvent('mouseover',{bubbles:true})); el.dispatchEvent(new MouseEvent('mouseenter',{bubbles:true}));})(%q)`, selector)
		var discard any
		return e.page.Eval(cdpActionTimeout, script, &discard)
	})
}

// Type sends keystrokes via CDP or, on fallback, appends to the
// element's value character by character, dispatching input events.
func (e *Executor) Type(selector, text string, mode Mode) error {
	if err := e.WaitForActionable(selector, Visible|Enabled, msSelectorTimeout*time.Millisecond); err != nil {
		return err
	}

	return RunWithMode(mode, func() error {
		ctx, cancel := context.WithTimeout(e.page.Context(), cdpActionTimeout)
		defer cancel()
		return chromedp.Run(ctx, chromedp.Focus(selector, chromedp.ByQuery), chromedp.SendKeys(selector, text, chromedp.ByQuery))
	}, func() error {
		script := fmt.Sprintf(`(function(sel,text){const el=document.querySelector(sel); if(!el) throw new Error('not found'); el.value=(el.value||'')+text; el.dispatchEvent(new Event('input',{bubbles:true}));})(%q,%q)`, selector, text)
		var discard any
		return e.page.Eval(cdpActionTimeout, script, &discard)
	})
}
