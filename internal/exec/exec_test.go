package exec

import (
	"errors"
	"testing"
	"time"
)

var errTimedOut = errors.New("timed out")

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if !cfg.WaitForNavigation || !cfg.WaitForStableDOM {
		t.Fatal("expected both waits enabled by default")
	}
	if cfg.CPUTimeoutMultiplier != 1.0 || cfg.NetworkTimeoutMultiplier != 1.0 {
		t.Fatal("expected default multipliers of 1.0")
	}
}

func TestTimeoutMultipliers(t *testing.T) {
	e := &Executor{config: Config{CPUTimeoutMultiplier: 2.0, NetworkTimeoutMultiplier: 10.0}}

	if got, want := e.stableDOMTimeout(), time.Duration(msCDPAction*2)*time.Millisecond; got != want {
		t.Fatalf("stableDOMTimeout = %v, want %v", got, want)
	}
	if got, want := e.stableDOMFor(), time.Duration(msPollInterval*2)*time.Millisecond; got != want {
		t.Fatalf("stableDOMFor = %v, want %v", got, want)
	}
	if got, want := e.navigationTimeout(), time.Duration(msSelectorTimeout*2*10)*time.Millisecond; got != want {
		t.Fatalf("navigationTimeout = %v, want %v", got, want)
	}
}

func TestSameRect(t *testing.T) {
	a := elementRect{X: 1, Y: 2, W: 3, H: 4}
	b := elementRect{X: 1, Y: 2, W: 3, H: 4}
	c := elementRect{X: 1, Y: 2, W: 3, H: 5}

	if !sameRect(a, b) {
		t.Fatal("expected equal rects to match")
	}
	if sameRect(a, c) {
		t.Fatal("expected differing rects to not match")
	}
}

func TestRunWithModeAutoFallsBackOnNonFatal(t *testing.T) {
	var jsCalled bool
	err := RunWithMode(ModeAuto, func() error {
		return errTimedOut
	}, func() error {
		jsCalled = true
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !jsCalled {
		t.Fatal("expected js fallback to run")
	}
}

func TestRunWithModeCDPOnly(t *testing.T) {
	var cdpCalled, jsCalled bool
	_ = RunWithMode(ModeCDP, func() error {
		cdpCalled = true
		return nil
	}, func() error {
		jsCalled = true
		return nil
	})
	if !cdpCalled || jsCalled {
		t.Fatal("expected only cdp closure to run in cdp mode")
	}
}
