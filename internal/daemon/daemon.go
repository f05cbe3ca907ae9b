// Package daemon implements the supervisor (§4.10): PID sidecar, stale
// storage pruning, IPC+HTTP startup, the periodic eviction loop, and
// graceful shutdown on a signal or an RPC request.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/tomasbasham/chrome-daemon/internal/config"
	"github.com/tomasbasham/chrome-daemon/internal/httpapi"
	"github.com/tomasbasham/chrome-daemon/internal/ipc"
	"github.com/tomasbasham/chrome-daemon/internal/pool"
	"github.com/tomasbasham/chrome-daemon/internal/rpc"
	"github.com/tomasbasham/chrome-daemon/internal/storage"
)

// evictionInterval is the cadence of the idle/dead-browser reaper
// (§4.10: "30s cadence").
const evictionInterval = 30 * time.Second

// Daemon owns the long-lived process: the session pool, the RPC
// dispatcher, and the two servers (IPC, HTTP) that share it.
type Daemon struct {
	cfg  config.Config
	pool *pool.Pool
	disp *rpc.Dispatcher
	ipc  *ipc.Server

	stopOnce sync.Once
}

// New builds a Daemon from cfg, wiring the pool, dispatcher, and IPC
// server together.
func New(cfg config.Config) *Daemon {
	p := pool.New(cfg)
	d := rpc.New(p, cfg)
	return &Daemon{
		cfg:  cfg,
		pool: p,
		disp: d,
		ipc:  ipc.New(cfg.Server.SocketPath, d, p),
	}
}

// Run prunes stale session storage, writes the PID sidecar, starts the
// IPC and HTTP servers, and blocks until ctx is cancelled (by a signal)
// or the dispatcher's shutdown method is invoked. It is idempotent on
// the way out: Stop may safely be called more than once.
func (d *Daemon) Run(ctx context.Context) error {
	if _, err := d.pool.CleanupStaleStorage(24 * time.Hour); err != nil {
		slog.Warn("daemon: stale storage prune failed", "error", err)
	}

	pidPath := config.PIDPath(d.cfg.Server.SocketPath)
	if err := writePID(pidPath); err != nil {
		return fmt.Errorf("daemon: writing pid file: %w", err)
	}
	defer os.Remove(pidPath)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	ipcErr := make(chan error, 1)
	go func() { ipcErr <- d.ipc.ListenAndServe(runCtx) }()

	uploader := d.artifactUploader(runCtx)

	httpAddr := net.JoinHostPort("127.0.0.1", strconv.Itoa(d.cfg.Server.HTTPPort))
	httpSrv, httpErrCh := httpapi.New(d.pool, uploader).ListenAndServe(httpAddr)

	go d.evictionLoop(runCtx)

	var runErr error
	select {
	case <-ctx.Done():
		slog.Info("daemon: shutdown signal received")
	case <-d.disp.ShutdownRequested():
		slog.Info("daemon: shutdown requested over rpc")
	case err := <-ipcErr:
		if err != nil {
			slog.Error("daemon: ipc server exited", "error", err)
			runErr = err
		}
	case err := <-httpErrCh:
		slog.Error("daemon: http server exited", "error", err)
		runErr = err
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = httpSrv.Shutdown(shutdownCtx)

	d.Stop()
	return runErr
}

// Stop destroys every pooled session and removes the socket file. Safe
// to call more than once.
func (d *Daemon) Stop() {
	d.stopOnce.Do(func() {
		n := d.pool.CleanupAll()
		slog.Info("daemon: destroyed sessions on shutdown", "count", n)
		d.ipc.Close()
	})
}

func (d *Daemon) evictionLoop(ctx context.Context) {
	ticker := time.NewTicker(evictionInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			idle := d.pool.CleanupExpiredEphemeral()
			dead := d.pool.CleanupDeadBrowsers()
			if idle > 0 || dead > 0 {
				slog.Info("daemon: reaped sessions", "idle", idle, "dead", dead)
			}
		}
	}
}

// artifactUploader builds the off-box recording mirror from cfg.Artifacts.
// A configured GCS bucket takes priority; otherwise completed recordings
// still get mirrored, just to a local directory under config.Dir() rather
// than to cloud storage (teacher's LocalUploader, kept live for exactly
// this fallback).
func (d *Daemon) artifactUploader(ctx context.Context) storage.Uploader {
	if d.cfg.Artifacts.GCSBucket != "" {
		uploader, err := storage.NewGCSUploader(ctx, d.cfg.Artifacts.GCSBucket)
		if err != nil {
			slog.Warn("daemon: gcs uploader unavailable, falling back to local mirror", "error", err)
		} else {
			return uploader
		}
	}

	uploader, err := storage.NewLocalUploader(config.ArtifactsMirrorDir())
	if err != nil {
		slog.Warn("daemon: local artifact mirror unavailable, recordings will not be synced", "error", err)
		return nil
	}
	return uploader
}

func writePID(path string) error {
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}
