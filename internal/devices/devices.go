// Package devices holds the static named device profile table the
// devices/emulate/viewport RPC family reads from. It contains no
// heuristic or statistical logic — just data.
package devices

import (
	"strings"

	"github.com/tomasbasham/chrome-daemon/internal/chromeerr"
)

// Profile describes one emulated device: viewport size, pixel ratio,
// touch/mobile/landscape flags, and user agent string.
type Profile struct {
	Name        string  `json:"name"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	PixelRatio  float64 `json:"pixel_ratio"`
	UserAgent   string  `json:"user_agent"`
	Touch       bool    `json:"touch"`
	Mobile      bool    `json:"mobile"`
	Landscape   bool    `json:"landscape"`
}

// Presets is the built-in device table, grouped by category: desktop,
// then tablet, then phone.
var Presets = []Profile{
	{
		Name: "Desktop", Width: 1920, Height: 1080, PixelRatio: 1.0,
		UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
		Touch: false, Mobile: false, Landscape: true,
	},
	{
		Name: "4K Display", Width: 3840, Height: 2160, PixelRatio: 1.0,
		UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
		Touch: false, Mobile: false, Landscape: true,
	},
	{
		Name: "Tablet", Width: 768, Height: 1024, PixelRatio: 2.0,
		UserAgent: "Mozilla/5.0 (iPad; CPU OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
		Touch: true, Mobile: false, Landscape: false,
	},
	{
		Name: "iPad Pro", Width: 1024, Height: 1366, PixelRatio: 2.0,
		UserAgent: "Mozilla/5.0 (iPad; CPU OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
		Touch: true, Mobile: true, Landscape: false,
	},
	{
		Name: "iPhone 14", Width: 390, Height: 844, PixelRatio: 3.0,
		UserAgent: "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
		Touch: true, Mobile: true, Landscape: false,
	},
	{
		Name: "iPhone SE", Width: 375, Height: 667, PixelRatio: 2.0,
		UserAgent: "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
		Touch: true, Mobile: true, Landscape: false,
	},
	{
		Name: "Pixel 7", Width: 412, Height: 915, PixelRatio: 2.625,
		UserAgent: "Mozilla/5.0 (Linux; Android 14; Pixel 7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Mobile Safari/537.36",
		Touch: true, Mobile: true, Landscape: false,
	},
	{
		Name: "Galaxy S23", Width: 360, Height: 800, PixelRatio: 3.0,
		UserAgent: "Mozilla/5.0 (Linux; Android 14; SM-S911B) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Mobile Safari/537.36",
		Touch: true, Mobile: true, Landscape: false,
	},
}

// ByName looks up a preset case-insensitively.
func ByName(name string) (Profile, error) {
	for _, p := range Presets {
		if strings.EqualFold(p.Name, name) {
			return p, nil
		}
	}
	return Profile{}, chromeerr.New(chromeerr.KindDeviceNotFound, name)
}

// Validate rejects a profile with implausible dimensions, pixel ratio, or
// an empty user agent — used for custom device profiles supplied by a
// caller rather than the built-in table.
func (p Profile) Validate() error {
	if p.Width < 320 || p.Height < 320 {
		return chromeerr.New(chromeerr.KindConfig, "device dimensions must be at least 320x320")
	}
	if p.PixelRatio < 0.5 || p.PixelRatio > 5.0 {
		return chromeerr.New(chromeerr.KindConfig, "pixel ratio must be between 0.5 and 5.0")
	}
	if p.UserAgent == "" {
		return chromeerr.New(chromeerr.KindConfig, "user agent cannot be empty")
	}
	return nil
}

// List returns the full built-in table plus any caller-supplied custom
// profiles.
func List(custom []Profile) []Profile {
	all := make([]Profile, 0, len(Presets)+len(custom))
	all = append(all, Presets...)
	all = append(all, custom...)
	return all
}
