// Package session implements the Session object (§4.5): one browser, its
// pages, its collector set, and its storage, behind a single
// last-activity-tracked API the pool hands out to the dispatcher.
package session

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/google/uuid"
	"github.com/tomasbasham/chrome-daemon/internal/cdpclient"
	"github.com/tomasbasham/chrome-daemon/internal/chromeerr"
	"github.com/tomasbasham/chrome-daemon/internal/collect"
	"github.com/tomasbasham/chrome-daemon/internal/config"
	"github.com/tomasbasham/chrome-daemon/internal/storage"
)

// PageInfo is a snapshot of one page, as returned by ListPages.
type PageInfo struct {
	Index  int    `json:"index"`
	URL    string `json:"url"`
	Title  string `json:"title"`
	Active bool   `json:"active"`
}

type pageEntry struct {
	page   *cdpclient.Page
	collec *collect.Set
}

// Session owns one browser, its ordered page list, and everything that
// hangs off it: collectors, storage, the broadcast channel for
// asynchronous events.
type Session struct {
	id              string
	port            int
	headless        bool
	usesUserProfile bool
	createdAt       time.Time

	browser *cdpclient.Browser
	store   *storage.Storage
	cfg     config.Config

	events chan collect.Event

	mu          sync.RWMutex
	pages       []pageEntry
	selected    int
	lastActive  time.Time
}

// NewConfig bundles everything the constructor needs beyond the pool's
// own bookkeeping.
type NewConfig struct {
	ID              string
	Port            int
	Headless        bool
	UsesUserProfile bool
	ExtensionDir    string // caller-resolved source directory, empty = none
	SessionsRoot    string
	Cfg             config.Config

	// Attach, if non-empty, is a CDP WebSocket URL to connect to instead
	// of spawning a new Chrome process (Attached mode, §4.2).
	Attach string
}

// New constructs a Session: creates storage, resolves and copies the
// extension directory, launches or attaches a browser, and eagerly
// creates an initial page with its own collector set (see NewPage).
func New(ctx context.Context, nc NewConfig) (*Session, error) {
	id := nc.ID
	if id == "" {
		id = uuid.NewString()
	}

	store, err := storage.New(nc.SessionsRoot, id)
	if err != nil {
		return nil, err
	}

	extDir, err := store.CopyExtension(resolveExtensionSource(nc.ExtensionDir, nc.Cfg))
	if err != nil {
		return nil, err
	}

	var browser *cdpclient.Browser
	if nc.Attach != "" {
		browser, err = cdpclient.Attach(ctx, nc.Attach)
	} else {
		browser, err = cdpclient.Launch(ctx, cdpclient.LaunchConfig{
			ChromePath:       nc.Cfg.Browser.ChromePath,
			Port:             nc.Port,
			Headless:         nc.Headless,
			UserDataDir:      nc.Cfg.Browser.UserDataDir,
			ProfileDirectory: nc.Cfg.Browser.ProfileDirectory,
			ExtensionDir:     extDir,
			WindowWidth:      nc.Cfg.Browser.WindowWidth,
			WindowHeight:     nc.Cfg.Browser.WindowHeight,
		})
	}
	if err != nil {
		return nil, err
	}

	s := &Session{
		id:              id,
		port:            nc.Port,
		headless:        nc.Headless,
		usesUserProfile: nc.UsesUserProfile,
		createdAt:       time.Now(),
		lastActive:      time.Now(),
		browser:         browser,
		store:           store,
		cfg:             nc.Cfg,
		events:          make(chan collect.Event, 256),
		selected:        -1,
	}

	if _, err := s.GetOrCreatePage(); err != nil {
		browser.Close()
		return nil, err
	}

	return s, nil
}

func resolveExtensionSource(override string, cfg config.Config) string {
	if override != "" {
		return override
	}
	if cfg.Browser.ExtensionPath != "" {
		if _, err := os.Stat(cfg.Browser.ExtensionPath); err == nil {
			return cfg.Browser.ExtensionPath
		}
	}
	return ""
}

// ID returns the session's opaque identifier.
func (s *Session) ID() string { return s.id }

// Port returns the CDP debugging port this session's browser is bound to.
func (s *Session) Port() int { return s.port }

// Headless reports whether the browser was launched headless.
func (s *Session) Headless() bool { return s.headless }

// UsesUserProfile reports whether this is the pool's single user-profile
// session.
func (s *Session) UsesUserProfile() bool { return s.usesUserProfile }

// CreatedAt returns the session's creation time.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// LastActivity returns the time of the most recent successful operation.
func (s *Session) LastActivity() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActive
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActive = time.Now()
	s.mu.Unlock()
}

// Store returns the session's storage handle.
func (s *Session) Store() *storage.Storage { return s.store }

// Events returns the channel collectors publish to; the dispatcher/IPC
// layer drains it to forward notifications to subscribed clients.
func (s *Session) Events() <-chan collect.Event { return s.events }

// Browser returns the session's underlying CDP browser handle, for
// components (action executor, inspect handlers) that need direct CDP
// access to the selected page.
func (s *Session) Browser() *cdpclient.Browser { return s.browser }

// Alive reports whether the session's CDP endpoint still answers.
func (s *Session) Alive(timeout time.Duration) bool {
	_, err := cdpclient.ProbeVersion(s.port, timeout)
	return err == nil
}

// Close tears down the browser and every page context it owns. It does
// not remove storage — the pool decides retention policy.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.pages {
		p.page.Close()
	}
	s.pages = nil
	s.browser.Close()
}

func (s *Session) attachCollectors(ctx context.Context, page *cdpclient.Page) (*collect.Set, error) {
	set := collect.NewSet(s.store, s.cfg.Filters, s.cfg.Dialog, s.events)
	if err := set.Attach(ctx, page); err != nil {
		return nil, err
	}
	return set, nil
}

// GetOrCreatePage returns the currently selected page, creating an
// about:blank page if none exists yet.
func (s *Session) GetOrCreatePage() (*cdpclient.Page, error) {
	s.mu.Lock()
	if s.selected >= 0 && s.selected < len(s.pages) {
		p := s.pages[s.selected].page
		s.mu.Unlock()
		s.touch()
		return p, nil
	}
	s.mu.Unlock()

	return s.NewPage("")
}

// NewPage creates a new page (navigating to url if non-empty, else
// about:blank), attaches a fresh collector set, appends it, and selects
// it.
func (s *Session) NewPage(url string) (*cdpclient.Page, error) {
	page, err := s.browser.NewPage(url)
	if err != nil {
		return nil, err
	}

	set, err := s.attachCollectors(s.browser.Context(), page)
	if err != nil {
		page.Close()
		return nil, err
	}

	s.mu.Lock()
	s.pages = append(s.pages, pageEntry{page: page, collec: set})
	s.selected = len(s.pages) - 1
	_ = s.updateSidecarLocked()
	s.mu.Unlock()

	s.touch()
	return page, nil
}

// ListPages returns a snapshot of every page: url, title, active flag.
// Prefers the browser's own /json/list as the authoritative source,
// falling back to the in-memory list if unavailable (§4.5).
func (s *Session) ListPages() ([]PageInfo, error) {
	s.touch()

	if entries, err := cdpclient.ListJSON(s.port, 2*time.Second); err == nil && len(entries) > 0 {
		infos := make([]PageInfo, 0, len(entries))
		s.mu.RLock()
		selectedID := s.selectedTargetIDLocked()
		s.mu.RUnlock()
		for i, e := range entries {
			infos = append(infos, PageInfo{Index: i, URL: e.URL, Title: e.Title, Active: e.ID == selectedID})
		}
		return infos, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	infos := make([]PageInfo, 0, len(s.pages))
	for i, p := range s.pages {
		url, _ := p.page.URL()
		title, _ := p.page.Title()
		infos = append(infos, PageInfo{Index: i, URL: url, Title: title, Active: i == s.selected})
	}
	return infos, nil
}

func (s *Session) selectedTargetIDLocked() string {
	if s.selected < 0 || s.selected >= len(s.pages) {
		return ""
	}
	return string(s.pages[s.selected].page.TargetID())
}

// SelectPage makes the page at index the selected page.
func (s *Session) SelectPage(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.pages) {
		return chromeerr.New(chromeerr.KindInvalidParams, "page index out of range")
	}
	s.selected = index
	s.lastActive = time.Now()
	return s.updateSidecarLocked()
}

// ClosePage closes the page at index, bounds-checked. Closing the last
// remaining page is an error: callers that want a fresh page should call
// NewPage instead. If the closed page came before the selected one, the
// selected index moves down by one so it still names the same page; if
// the selected index is then past the end, it shifts to the last
// remaining page.
func (s *Session) ClosePage(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.pages) {
		return chromeerr.New(chromeerr.KindInvalidParams, "page index out of range")
	}
	if len(s.pages) == 1 {
		return chromeerr.New(chromeerr.KindInvalidParams, "cannot close the last page")
	}

	s.pages[index].page.Close()
	s.pages = append(s.pages[:index], s.pages[index+1:]...)

	switch {
	case index < s.selected:
		s.selected--
	case s.selected >= len(s.pages):
		s.selected = len(s.pages) - 1
	}
	s.lastActive = time.Now()
	return s.updateSidecarLocked()
}

// SelectedPage returns the currently selected page directly, without the
// implicit about:blank creation GetOrCreatePage performs.
func (s *Session) SelectedPage() (*cdpclient.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selected < 0 || s.selected >= len(s.pages) {
		return nil, chromeerr.New(chromeerr.KindInvalidParams, "no selected page")
	}
	return s.pages[s.selected].page, nil
}

// Collectors returns the collector set attached to the currently
// selected page.
func (s *Session) Collectors() (*collect.Set, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selected < 0 || s.selected >= len(s.pages) {
		return nil, chromeerr.New(chromeerr.KindInvalidParams, "no selected page")
	}
	return s.pages[s.selected].collec, nil
}

// sidecar is the persisted shape used to rebuild a session's page list
// after a daemon restart (§4.5 update_active_page_info, §4.6 Restoration).
type sidecar struct {
	Port             int      `json:"port"`
	SelectedIdx      int      `json:"selected_index"`
	SelectedTargetID string   `json:"selected_target_id"`
	SelectedURL      string   `json:"selected_url"`
	TargetIDs        []string `json:"target_ids"`
	Headless         bool     `json:"headless"`
}

func (s *Session) sidecarPath() string {
	if s.usesUserProfile {
		return config.SidecarPath()
	}
	return filepath.Join(s.store.SessionDir(), "sidecar.json")
}

// updateSidecarLocked persists the page set, selected index, and CDP
// port. Caller must hold s.mu.
func (s *Session) updateSidecarLocked() error {
	ids := make([]string, 0, len(s.pages))
	for _, p := range s.pages {
		ids = append(ids, string(p.page.TargetID()))
	}
	sc := sidecar{Port: s.port, SelectedIdx: s.selected, TargetIDs: ids, Headless: s.headless}
	if s.selected >= 0 && s.selected < len(s.pages) {
		sc.SelectedTargetID = string(s.pages[s.selected].page.TargetID())
		if url, err := s.pages[s.selected].page.URL(); err == nil {
			sc.SelectedURL = url
		}
	}
	data, err := json.MarshalIndent(sc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.sidecarPath(), data, 0o644)
}

// UpdateActivePageInfo is the public, lock-acquiring form of
// updateSidecarLocked, for callers outside this file.
func (s *Session) UpdateActivePageInfo() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateSidecarLocked()
}

// Restore rebuilds the page list from the browser's live /json/list
// after an attach, matching the persisted sidecar's target ids first,
// then URLs, else selecting the last page. If nothing is found after
// bounded retries, it creates a fresh page as fallback (§4.6
// Restoration).
func (s *Session) Restore(ctx context.Context) error {
	var sc sidecar
	if data, err := os.ReadFile(s.sidecarPath()); err == nil {
		_ = json.Unmarshal(data, &sc)
	}

	var entries []cdpclient.TargetEntry
	for attempt := 0; attempt < 3; attempt++ {
		es, err := cdpclient.ListJSON(s.port, 2*time.Second)
		if err == nil && len(es) > 0 {
			entries = es
			break
		}
		time.Sleep(200 * time.Millisecond)
	}

	if len(entries) == 0 {
		_, err := s.NewPage("")
		return err
	}

	s.mu.Lock()
	s.pages = nil
	for _, e := range entries {
		page, err := s.browser.GetPage(target.ID(e.ID))
		if err != nil {
			continue
		}
		set, err := s.attachCollectors(s.browser.Context(), page)
		if err != nil {
			page.Close()
			continue
		}
		s.pages = append(s.pages, pageEntry{page: page, collec: set})
	}

	selected := -1
	if sc.SelectedTargetID != "" {
		for i, p := range s.pages {
			if string(p.page.TargetID()) == sc.SelectedTargetID {
				selected = i
				break
			}
		}
	}
	if selected < 0 && sc.SelectedURL != "" {
		for i, p := range s.pages {
			if url, err := p.page.URL(); err == nil && url == sc.SelectedURL {
				selected = i
				break
			}
		}
	}
	if selected < 0 {
		selected = len(s.pages) - 1
	}
	s.selected = selected
	s.mu.Unlock()

	if len(s.pages) == 0 {
		_, err := s.NewPage("")
		return err
	}
	return s.UpdateActivePageInfo()
}
