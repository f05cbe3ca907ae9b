// Package exec runs a single page action (click, type, navigate, ...)
// wrapped with the navigation and DOM-stability waits that make the
// action's result trustworthy: without them a caller can read stale DOM
// state from before an in-flight SPA transition settles (§4.4 Actions).
package exec

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/tomasbasham/chrome-daemon/internal/cdpclient"
	"github.com/tomasbasham/chrome-daemon/internal/chromeerr"
)

const (
	msPollInterval    = 100
	msCDPAction       = 3000
	msSelectorTimeout = 5000
)

// Config mirrors ActionConfig from the original action executor:
// both wait flags default on, both multipliers default to 1.0.
type Config struct {
	WaitForNavigation        bool
	WaitForStableDOM         bool
	CPUTimeoutMultiplier     float64
	NetworkTimeoutMultiplier float64
}

// DefaultConfig returns the executor's zero-value-safe defaults.
func DefaultConfig() Config {
	return Config{
		WaitForNavigation:        true,
		WaitForStableDOM:         true,
		CPUTimeoutMultiplier:     1.0,
		NetworkTimeoutMultiplier: 1.0,
	}
}

// Executor runs actions against one page, applying navigation and
// DOM-stability waits around each one.
type Executor struct {
	page   *cdpclient.Page
	config Config
}

// New builds an Executor with the given config.
func New(page *cdpclient.Page, config Config) *Executor {
	return &Executor{page: page, config: config}
}

// WithMultipliers builds an Executor with default waits but scaled
// timeouts, used for underpowered hosts or high-latency networks.
func WithMultipliers(page *cdpclient.Page, cpuMultiplier, networkMultiplier float64) *Executor {
	cfg := DefaultConfig()
	cfg.CPUTimeoutMultiplier = cpuMultiplier
	cfg.NetworkTimeoutMultiplier = networkMultiplier
	return New(page, cfg)
}

func (e *Executor) stableDOMTimeout() time.Duration {
	return time.Duration(float64(msCDPAction)*e.config.CPUTimeoutMultiplier) * time.Millisecond
}

func (e *Executor) stableDOMFor() time.Duration {
	return time.Duration(float64(msPollInterval)*e.config.CPUTimeoutMultiplier) * time.Millisecond
}

func (e *Executor) navigationTimeout() time.Duration {
	return time.Duration(float64(msSelectorTimeout)*2.0*e.config.NetworkTimeoutMultiplier) * time.Millisecond
}

// Execute runs action wrapped with the navigation-watcher and
// DOM-stability waits this executor is configured for.
func Execute[T any](e *Executor, action func() (T, error)) (T, error) {
	var zero T

	watching := e.config.WaitForNavigation
	if watching {
		if err := e.startWatchingNavigation(); err != nil {
			return zero, err
		}
	}

	result, err := action()
	if err != nil {
		return zero, err
	}

	if watching {
		triggered, err := e.navigationWasTriggered()
		if err == nil && triggered {
			if err := e.waitForNavigation(); err != nil {
				return zero, err
			}
		}
	}

	if e.config.WaitForStableDOM {
		if err := e.waitForStableDOM(); err != nil {
			return zero, err
		}
	}

	return result, nil
}

const navigationWatcherScript = `
(function() {
    if (!window.__navigationWatcher) {
        window.__navigationWatcher = {
            triggered: false,
            originalPushState: history.pushState,
            originalReplaceState: history.replaceState
        };

        history.pushState = function() {
            window.__navigationWatcher.triggered = true;
            return window.__navigationWatcher.originalPushState.apply(history, arguments);
        };

        history.replaceState = function() {
            window.__navigationWatcher.triggered = true;
            return window.__navigationWatcher.originalReplaceState.apply(history, arguments);
        };

        window.addEventListener('beforeunload', () => {
            window.__navigationWatcher.triggered = true;
        });

        window.addEventListener('popstate', () => {
            window.__navigationWatcher.triggered = true;
        });
    }
})()
`

const navigationTriggeredScript = `
(function() {
    return window.__navigationWatcher ? window.__navigationWatcher.triggered : false;
})()
`

const mutationCountScript = `
(function() {
    if (!window.__mutationCount) {
        window.__mutationCount = 0;
        const observer = new MutationObserver(() => {
            window.__mutationCount++;
        });
        observer.observe(document.body || document.documentElement, {
            childList: true,
            subtree: true,
            attributes: true,
            characterData: true
        });
    }
    return window.__mutationCount;
})()
`

func (e *Executor) startWatchingNavigation() error {
	var discard any
	if err := e.page.Eval(msCDPAction*time.Millisecond, navigationWatcherScript, &discard); err != nil {
		return chromeerr.Wrap(chromeerr.KindEvaluation, "install navigation watcher", err)
	}
	return nil
}

func (e *Executor) navigationWasTriggered() (bool, error) {
	var triggered bool
	if err := e.page.Eval(msCDPAction*time.Millisecond, navigationTriggeredScript, &triggered); err != nil {
		return false, nil
	}
	return triggered, nil
}

func (e *Executor) waitForNavigation() error {
	timeout := e.navigationTimeout()
	ctx, cancel := context.WithTimeout(e.page.Context(), timeout)
	defer cancel()

	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return chromedp.WaitReady("body", chromedp.ByQuery).Do(ctx)
	}))
	if err != nil {
		return chromeerr.New(chromeerr.KindNavigationTimeout, fmt.Sprintf("navigation wait exceeded %s", timeout))
	}
	return nil
}

func (e *Executor) getMutationCount() (int64, error) {
	var raw json.RawMessage
	if err := e.page.Eval(msPollInterval*time.Millisecond, mutationCountScript, &raw); err != nil {
		return 0, err
	}
	var count int64
	if err := json.Unmarshal(raw, &count); err != nil {
		return 0, err
	}
	return count, nil
}

func (e *Executor) waitForStableDOM() error {
	timeout := e.stableDOMTimeout()
	checkInterval := msPollInterval * time.Millisecond
	stabilityDuration := e.stableDOMFor()

	start := time.Now()
	lastMutationTime := time.Now()
	var lastMutationCount int64

	for {
		count, err := e.getMutationCount()
		if err != nil {
			count = lastMutationCount
		}

		if count != lastMutationCount {
			lastMutationTime = time.Now()
			lastMutationCount = count
		}

		if time.Since(lastMutationTime) >= stabilityDuration {
			return nil
		}
		if time.Since(start) >= timeout {
			return nil
		}

		time.Sleep(checkInterval)
	}
}
