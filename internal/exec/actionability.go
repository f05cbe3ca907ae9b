package exec

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tomasbasham/chrome-daemon/internal/chromeerr"
)

// Precondition is one actionability bit click/fill/hover/type may require
// of their target element before acting on it (§4.4).
type Precondition int

const (
	Visible Precondition = 1 << iota
	Stable
	Enabled
	InViewport
)

// Mode selects how a high-level input operation is carried out.
type Mode string

const (
	ModeCDP  Mode = "cdp"
	ModeJS   Mode = "js"
	ModeAuto Mode = "auto"
)

const viewportSettleInterval = 50 * time.Millisecond

type elementRect struct {
	Visible bool    `json:"visible"`
	Enabled bool    `json:"enabled"`
	InView  bool    `json:"inView"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	W       float64 `json:"w"`
	H       float64 `json:"h"`
}

const elementStateScript = `
(function(sel) {
    const el = document.querySelector(sel);
    if (!el) return null;
    const style = window.getComputedStyle(el);
    const rect = el.getBoundingClientRect();
    const visible = style.display !== 'none' && style.visibility !== 'hidden' &&
        parseFloat(style.opacity) > 0 && rect.width > 0 && rect.height > 0;
    const inView = rect.top >= 0 && rect.left >= 0 &&
        rect.bottom <= (window.innerHeight || document.documentElement.clientHeight) &&
        rect.right <= (window.innerWidth || document.documentElement.clientWidth);
    return {
        visible: visible,
        enabled: !el.disabled && !el.readOnly,
        inView: inView,
        x: rect.x, y: rect.y, w: rect.width, h: rect.height
    };
})(%q)
`

const scrollIntoViewScript = `
(function(sel) {
    const el = document.querySelector(sel);
    if (el) el.scrollIntoView({block: 'center', inline: 'center'});
})(%q)
`

// WaitForActionable polls selector until it satisfies want, scrolling it
// into view first. Fails with element-not-found if the selector timeout
// elapses first.
func (e *Executor) WaitForActionable(selector string, want Precondition, selectorTimeout time.Duration) error {
	if err := e.scrollIntoView(selector); err != nil {
		return err
	}

	deadline := time.Now().Add(selectorTimeout)
	var lastRect *elementRect

	for {
		state, err := e.elementState(selector)
		if err == nil && state != nil {
			ok := true
			if want&Visible != 0 && !state.Visible {
				ok = false
			}
			if want&Enabled != 0 && !state.Enabled {
				ok = false
			}
			if want&InViewport != 0 && !state.InView {
				ok = false
			}
			if want&Stable != 0 {
				if lastRect == nil || !sameRect(*lastRect, *state) {
					lastRect = state
					ok = false
				}
			}
			if ok {
				return nil
			}
		}

		if time.Now().After(deadline) {
			return chromeerr.New(chromeerr.KindElementNotFound, "selector did not become actionable: "+selector)
		}
		time.Sleep(viewportSettleInterval)
	}
}

func sameRect(a, b elementRect) bool {
	return a.X == b.X && a.Y == b.Y && a.W == b.W && a.H == b.H
}

func (e *Executor) scrollIntoView(selector string) error {
	var discard any
	script := fmt.Sprintf(scrollIntoViewScript, selector)
	return e.page.Eval(msSelectorTimeout*time.Millisecond, script, &discard)
}

func (e *Executor) elementState(selector string) (*elementRect, error) {
	script := fmt.Sprintf(elementStateScript, selector)
	var raw json.RawMessage
	if err := e.page.Eval(msSelectorTimeout*time.Millisecond, script, &raw); err != nil {
		return nil, err
	}
	if string(raw) == "null" {
		return nil, nil
	}
	var st elementRect
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, err
	}
	return &st, nil
}
