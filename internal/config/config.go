// Package config resolves daemon configuration: defaults, an optional
// on-disk JSON file, and the environment-variable overrides a client
// invocation recognizes (§6 of the daemon's external interfaces).
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"

	"github.com/tomasbasham/chrome-daemon/internal/chromeerr"
)

const appName = "chrome-daemon"

// DialogBehavior selects how the dialog collector auto-handles a
// javascript-dialog-opening event.
type DialogBehavior string

const (
	DialogDismiss DialogBehavior = "dismiss"
	DialogAccept  DialogBehavior = "accept"
	DialogNone    DialogBehavior = "none"
)

// Filter configures the network and console collectors.
type Filter struct {
	NetworkExcludeTypes   []string `json:"network_exclude_types"`
	NetworkExcludeDomains []string `json:"network_exclude_domains"`
	ConsoleLevels         []string `json:"console_levels"`
	NetworkMaxBodySize    int      `json:"network_max_body_size"`
}

func defaultFilter() Filter {
	return Filter{
		NetworkExcludeTypes:   []string{"Image", "Stylesheet", "Font", "Media"},
		NetworkExcludeDomains: []string{"google-analytics.com", "googletagmanager.com", "doubleclick.net"},
		ConsoleLevels:         []string{"error", "warn"},
		NetworkMaxBodySize:    10000,
	}
}

// Dialog configures the auto-handle policy. Every session's dialog
// collector uses it as is; there is no per-session override.
type Dialog struct {
	Behavior   DialogBehavior `json:"behavior"`
	PromptText *string        `json:"prompt_text,omitempty"`
}

// Server configures socket path, pool capacity and port ranges.
type Server struct {
	SocketPath        string `json:"socket_path"`
	HTTPPort          int    `json:"http_port"`
	MaxSessions       int    `json:"max_sessions"`
	SessionIdleSecs   int    `json:"session_idle_secs"`
	CDPPortRangeStart int    `json:"cdp_port_range_start"`
	CDPPortRangeEnd   int    `json:"cdp_port_range_end"`
}

// Browser configures how a managed Chrome process is launched.
type Browser struct {
	ChromePath        string `json:"chrome_path"`
	Headless          bool   `json:"headless"`
	UserDataDir       string `json:"user_data_dir"`
	ProfileDirectory  string `json:"profile_directory"`
	ExtensionPath     string `json:"extension_path"`
	WindowWidth       int    `json:"window_width"`
	WindowHeight      int    `json:"window_height"`
}

// Performance configures navigation/action timeouts. TraceCategories is
// not read by the trace collector, which uses the categories a trace.start
// request names, else its own built-in default set.
type Performance struct {
	NavigationTimeoutSecs int      `json:"navigation_timeout_seconds"`
	TraceCategories       []string `json:"trace_categories"`
}

// Artifacts configures the optional off-box mirror for completed
// recordings (§2 "Domain stack"). An empty GCSBucket does not disable
// syncing: completed recordings are then mirrored to ArtifactsMirrorDir()
// on local disk instead.
type Artifacts struct {
	GCSBucket string `json:"gcs_bucket,omitempty"`
}

// Config is the full daemon configuration, loaded from defaults, an
// optional JSON file, then environment variables, in that order.
type Config struct {
	Server      Server      `json:"server"`
	Browser     Browser     `json:"browser"`
	Performance Performance `json:"performance"`
	Dialog      Dialog      `json:"dialog"`
	Filters     Filter      `json:"filters"`
	Artifacts   Artifacts   `json:"artifacts"`
}

// Default returns the built-in configuration before any file or
// environment override is applied.
func Default() Config {
	return Config{
		Server: Server{
			SocketPath:        SocketPath(),
			HTTPPort:          9223,
			MaxSessions:       5,
			SessionIdleSecs:   30,
			CDPPortRangeStart: 9222,
			CDPPortRangeEnd:   9322,
		},
		Browser: Browser{
			Headless:     true,
			WindowWidth:  1280,
			WindowHeight: 800,
		},
		Performance: Performance{
			NavigationTimeoutSecs: 30,
			TraceCategories: []string{
				"-*", "devtools.timeline", "v8.execute", "blink.console",
				"blink.user_timing", "loading", "latencyInfo",
			},
		},
		Dialog: Dialog{Behavior: DialogDismiss},
		Filters: defaultFilter(),
	}
}

// Load builds a Config from defaults, an optional JSON config file under
// Dir(), then environment variable overrides.
func Load() (Config, error) {
	cfg := Default()

	path := filepath.Join(Dir(), "config.json")
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, chromeerr.Wrap(chromeerr.KindConfig, "parsing "+path, err)
		}
	} else if !os.IsNotExist(err) {
		return cfg, chromeerr.Wrap(chromeerr.KindConfig, "reading "+path, err)
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("CHROME_HEADLESS"); v != "" {
		cfg.Browser.Headless = v == "true" || v == "1"
	}
	if v := os.Getenv("CHROME_PATH"); v != "" {
		cfg.Browser.ChromePath = v
	}
	if v := os.Getenv("CHROME_DEBUG_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			width := cfg.Server.CDPPortRangeEnd - cfg.Server.CDPPortRangeStart
			cfg.Server.CDPPortRangeStart = port
			cfg.Server.CDPPortRangeEnd = port + width
		}
	}
	if v := os.Getenv("CHROME_TIMEOUT"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			cfg.Performance.NavigationTimeoutSecs = secs
		}
	}
}

// Validate rejects a Config with an out-of-range port, a zero timeout, or
// a configured Chrome binary path that doesn't exist.
func (c Config) Validate() error {
	if c.Server.HTTPPort < 1024 || c.Server.HTTPPort > 65535 {
		return chromeerr.New(chromeerr.KindInvalidPort, "http_port out of range")
	}
	if c.Performance.NavigationTimeoutSecs <= 0 {
		return chromeerr.New(chromeerr.KindConfig, "navigation_timeout_seconds must be > 0")
	}
	if c.Server.CDPPortRangeStart > c.Server.CDPPortRangeEnd {
		return chromeerr.New(chromeerr.KindConfig, "cdp_port_range_start must be <= cdp_port_range_end")
	}
	if c.Browser.ChromePath != "" {
		if _, err := os.Stat(c.Browser.ChromePath); err != nil {
			return chromeerr.Wrap(chromeerr.KindConfig, "chrome_path does not exist", err)
		}
	}
	return nil
}

// Dir resolves the config directory: $XDG_CONFIG_HOME/chrome-daemon, or
// $HOME/.config/chrome-daemon when XDG_CONFIG_HOME is unset.
func Dir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", appName)
}

// SocketPath is the default control-socket path: /tmp/<appname>.sock.
func SocketPath() string {
	return filepath.Join(os.TempDir(), appName+".sock")
}

// SidecarPath is the session-restoration sidecar file under Dir(), used
// by the user-profile session.
func SidecarPath() string {
	return filepath.Join(Dir(), "session.json")
}

// SessionsDir is the root directory all per-session storage lives under.
func SessionsDir() string {
	return filepath.Join(Dir(), "sessions")
}

// ArtifactsMirrorDir is the local off-box mirror target used when no GCS
// bucket is configured (§2 "Domain stack"): recordings still get synced,
// just to disk under Dir() instead of to cloud storage.
func ArtifactsMirrorDir() string {
	return filepath.Join(Dir(), "artifacts")
}

// PIDPath is the daemon's PID sidecar, derived from the socket path per
// §6 ("<socket>.pid").
func PIDPath(socketPath string) string {
	return socketPath + ".pid"
}
