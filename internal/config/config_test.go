package config

import "testing"

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestValidateRejectsBadPort(t *testing.T) {
	cfg := Default()
	cfg.Server.HTTPPort = 80
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error for an out-of-range http_port")
	}
}

func TestValidateRejectsZeroTimeout(t *testing.T) {
	cfg := Default()
	cfg.Performance.NavigationTimeoutSecs = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error for a zero navigation timeout")
	}
}

func TestApplyEnvHeadless(t *testing.T) {
	t.Setenv("CHROME_HEADLESS", "0")
	cfg := Default()
	applyEnv(&cfg)
	if cfg.Browser.Headless {
		t.Fatal("CHROME_HEADLESS=0 should disable headless mode")
	}
}

func TestApplyEnvTimeout(t *testing.T) {
	t.Setenv("CHROME_TIMEOUT", "90")
	cfg := Default()
	applyEnv(&cfg)
	if cfg.Performance.NavigationTimeoutSecs != 90 {
		t.Fatalf("NavigationTimeoutSecs = %d, want 90", cfg.Performance.NavigationTimeoutSecs)
	}
}

func TestApplyEnvDebugPortShiftsRangeEnd(t *testing.T) {
	t.Setenv("CHROME_DEBUG_PORT", "9999")
	cfg := Default()
	applyEnv(&cfg)
	if cfg.Server.CDPPortRangeStart != 9999 {
		t.Fatalf("CDPPortRangeStart = %d, want 9999", cfg.Server.CDPPortRangeStart)
	}
	if cfg.Server.CDPPortRangeEnd <= cfg.Server.CDPPortRangeStart {
		t.Fatalf("CDPPortRangeEnd = %d, want > CDPPortRangeStart (%d)", cfg.Server.CDPPortRangeEnd, cfg.Server.CDPPortRangeStart)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config with a shifted debug port should still validate: %v", err)
	}
}

func TestValidateRejectsInvertedPortRange(t *testing.T) {
	cfg := Default()
	cfg.Server.CDPPortRangeStart = 9500
	cfg.Server.CDPPortRangeEnd = 9222
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error for cdp_port_range_start > cdp_port_range_end")
	}
}

func TestDirUsesXDGConfigHome(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdgtest")
	got := Dir()
	want := "/tmp/xdgtest/chrome-daemon"
	if got != want {
		t.Fatalf("Dir() = %q, want %q", got, want)
	}
}
