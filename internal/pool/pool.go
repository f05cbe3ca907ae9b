// Package pool implements the session pool (§4.6): port allocation,
// ephemeral vs. user-profile lifecycle, capacity/LRU eviction, idle
// eviction, liveness probing, and restoration after a daemon restart.
package pool

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tomasbasham/chrome-daemon/internal/cdpclient"
	"github.com/tomasbasham/chrome-daemon/internal/chromeerr"
	"github.com/tomasbasham/chrome-daemon/internal/config"
	"github.com/tomasbasham/chrome-daemon/internal/session"
	"github.com/tomasbasham/chrome-daemon/internal/storage"
)

// Info is a snapshot of one pooled session, as returned by List.
type Info struct {
	ID              string    `json:"id"`
	Port            int       `json:"port"`
	Headless        bool      `json:"headless"`
	UsesUserProfile bool      `json:"uses_user_profile"`
	CreatedAt       time.Time `json:"created_at"`
	LastActivity    time.Time `json:"last_activity"`
}

// Pool owns every live Session: the id->Session map and the allocated
// CDP port set (§3 "Pool state").
type Pool struct {
	cfg config.Config

	mu       sync.Mutex
	sessions map[string]*session.Session
	ports    map[int]bool

	// userProfileMu serializes GetOrCreateUserProfile's whole
	// check-then-launch sequence, which spans a browser launch/attach and
	// so can't be done under mu without blocking every other pool
	// operation; without it two concurrent callers could each observe no
	// existing user-profile session and launch their own.
	userProfileMu sync.Mutex
}

// New builds an empty Pool from cfg.
func New(cfg config.Config) *Pool {
	return &Pool{
		cfg:      cfg,
		sessions: make(map[string]*session.Session),
		ports:    make(map[int]bool),
	}
}

// allocatePortLocked scans [start, end], skipping ports already allocated or
// that fail a bind probe, per §4.6 "Port allocation". Caller must hold
// p.mu.
func (p *Pool) allocatePortLocked() (int, error) {
	start, end := p.cfg.Server.CDPPortRangeStart, p.cfg.Server.CDPPortRangeEnd
	for port := start; port <= end; port++ {
		if p.ports[port] {
			continue
		}
		if cdpclient.ProbeBind(port) {
			p.ports[port] = true
			return port, nil
		}
	}
	return 0, chromeerr.New(chromeerr.KindInvalidPort, "no free CDP port in configured range")
}

func (p *Pool) releasePortLocked(port int) {
	delete(p.ports, port)
}

// CreateEphemeral spawns a brand-new, private session with fresh user
// data. At capacity, evicts the least-recently-active ephemeral session
// first; fails with a capacity error if every session is a user-profile
// session.
func (p *Pool) CreateEphemeral(ctx context.Context, headless bool, extensionDir string) (*session.Session, error) {
	p.mu.Lock()
	if len(p.sessions) >= p.cfg.Server.MaxSessions {
		if !p.evictLRUEphemeralLocked() {
			p.mu.Unlock()
			return nil, chromeerr.New(chromeerr.KindGeneral, "pool at capacity, no ephemeral session to evict")
		}
	}
	port, err := p.allocatePortLocked()
	if err != nil {
		p.mu.Unlock()
		return nil, err
	}
	p.mu.Unlock()

	sess, err := session.New(ctx, session.NewConfig{
		Port:            port,
		Headless:        headless,
		UsesUserProfile: false,
		ExtensionDir:    extensionDir,
		SessionsRoot:    config.SessionsDir(),
		Cfg:             p.cfg,
	})
	if err != nil {
		p.mu.Lock()
		p.releasePortLocked(port)
		p.mu.Unlock()
		return nil, err
	}

	p.mu.Lock()
	p.sessions[sess.ID()] = sess
	p.mu.Unlock()
	return sess, nil
}

// evictLRUEphemeralLocked destroys the least-recently-active ephemeral
// session and reports whether one was found. Caller must hold p.mu.
func (p *Pool) evictLRUEphemeralLocked() bool {
	var oldest *session.Session
	for _, s := range p.sessions {
		if s.UsesUserProfile() {
			continue
		}
		if oldest == nil || s.LastActivity().Before(oldest.LastActivity()) {
			oldest = s
		}
	}
	if oldest == nil {
		return false
	}
	p.destroyLocked(oldest.ID())
	return true
}

// GetOrCreateUserProfile returns the pool's single user-profile session,
// creating it if absent. Resolution order: a user-profile session already
// in the pool, then an external browser discovered on the CDP port range,
// then a freshly spawned one (§4.6). A pooled user-profile session is
// returned without a liveness probe; a dead one stays in the pool until
// CleanupDeadBrowsers removes it.
func (p *Pool) GetOrCreateUserProfile(ctx context.Context, headless bool, extensionDir string) (*session.Session, error) {
	p.userProfileMu.Lock()
	defer p.userProfileMu.Unlock()

	p.mu.Lock()
	for _, s := range p.sessions {
		if s.UsesUserProfile() {
			p.mu.Unlock()
			return s, nil
		}
	}
	p.mu.Unlock()

	if info, ws, found := cdpclient.FindExisting(p.cfg.Server.CDPPortRangeStart, p.cfg.Server.CDPPortRangeEnd, 500*time.Millisecond); found {
		sess, err := session.New(ctx, session.NewConfig{
			Port:            info,
			Headless:        headless,
			UsesUserProfile: true,
			ExtensionDir:    extensionDir,
			SessionsRoot:    config.SessionsDir(),
			Cfg:             p.cfg,
			Attach:          ws.WebSocketDebuggerURL,
		})
		if err == nil {
			if restoreErr := sess.Restore(ctx); restoreErr != nil {
				slog.Warn("pool: restore failed for attached user-profile session", "error", restoreErr)
			}
			p.mu.Lock()
			p.sessions[sess.ID()] = sess
			p.ports[info] = true
			p.mu.Unlock()
			return sess, nil
		}
		slog.Warn("pool: attach to discovered browser failed, spawning new one", "error", err)
	}

	p.mu.Lock()
	port, err := p.allocatePortLocked()
	if err != nil {
		p.mu.Unlock()
		return nil, err
	}
	p.mu.Unlock()

	sess, err := session.New(ctx, session.NewConfig{
		Port:            port,
		Headless:        headless,
		UsesUserProfile: true,
		ExtensionDir:    extensionDir,
		SessionsRoot:    config.SessionsDir(),
		Cfg:             p.cfg,
	})
	if err != nil {
		p.mu.Lock()
		p.releasePortLocked(port)
		p.mu.Unlock()
		return nil, err
	}

	p.mu.Lock()
	p.sessions[sess.ID()] = sess
	p.mu.Unlock()
	return sess, nil
}

// Get returns the session with the given id, or false if unknown.
func (p *Pool) Get(id string) (*session.Session, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.sessions[id]
	return s, ok
}

// Destroy tears down and forgets the session with the given id.
func (p *Pool) Destroy(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.sessions[id]; !ok {
		return chromeerr.New(chromeerr.KindSessionNotFound, id)
	}
	p.destroyLocked(id)
	return nil
}

// destroyLocked closes the session's browser, releases its port, and
// removes it from the map. Caller must hold p.mu.
func (p *Pool) destroyLocked(id string) {
	s, ok := p.sessions[id]
	if !ok {
		return
	}
	s.Close()
	p.releasePortLocked(s.Port())
	delete(p.sessions, id)
}

// List returns a snapshot of every pooled session.
func (p *Pool) List() []Info {
	p.mu.Lock()
	defer p.mu.Unlock()
	infos := make([]Info, 0, len(p.sessions))
	for _, s := range p.sessions {
		infos = append(infos, Info{
			ID:              s.ID(),
			Port:            s.Port(),
			Headless:        s.Headless(),
			UsesUserProfile: s.UsesUserProfile(),
			CreatedAt:       s.CreatedAt(),
			LastActivity:    s.LastActivity(),
		})
	}
	return infos
}

// CleanupAll destroys every pooled session and returns the count
// destroyed.
func (p *Pool) CleanupAll() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.sessions)
	for id := range p.sessions {
		p.destroyLocked(id)
	}
	return n
}

// CleanupExpiredEphemeral destroys every ephemeral session whose last
// activity exceeds the configured idle timeout.
func (p *Pool) CleanupExpiredEphemeral() int {
	idle := time.Duration(p.cfg.Server.SessionIdleSecs) * time.Second

	p.mu.Lock()
	defer p.mu.Unlock()
	var victims []string
	for id, s := range p.sessions {
		if s.UsesUserProfile() {
			continue
		}
		if time.Since(s.LastActivity()) >= idle {
			victims = append(victims, id)
		}
	}
	for _, id := range victims {
		p.destroyLocked(id)
	}
	return len(victims)
}

// CleanupDeadBrowsers destroys every session whose CDP endpoint no
// longer answers a liveness probe.
func (p *Pool) CleanupDeadBrowsers() int {
	p.mu.Lock()
	targets := make(map[string]*session.Session, len(p.sessions))
	for id, s := range p.sessions {
		targets[id] = s
	}
	p.mu.Unlock()

	var victims []string
	for id, s := range targets {
		if !s.Alive(500 * time.Millisecond) {
			victims = append(victims, id)
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, id := range victims {
		p.destroyLocked(id)
	}
	return len(victims)
}

// CleanupStaleStorage removes on-disk session directories whose
// last-modified time exceeds maxAge. It goes by age alone and does not
// check whether a directory belongs to a live pooled session.
func (p *Pool) CleanupStaleStorage(maxAge time.Duration) (int, error) {
	return storage.CleanupStale(config.SessionsDir(), maxAge)
}
