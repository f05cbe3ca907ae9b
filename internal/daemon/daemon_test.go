package daemon

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/tomasbasham/chrome-daemon/internal/config"
	"github.com/tomasbasham/chrome-daemon/internal/storage"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg := config.Default()
	cfg.Server.SocketPath = filepath.Join(t.TempDir(), "chrome-daemon.sock")
	cfg.Server.HTTPPort = 0 // let the OS pick a free port

	return cfg
}

func TestRunStopsOnContextCancel(t *testing.T) {
	cfg := testConfig(t)
	d := New(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v, want nil after a clean signal shutdown", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	cfg := testConfig(t)
	d := New(cfg)

	d.Stop()
	d.Stop()
}

func TestArtifactUploaderFallsBackToLocalMirrorWithoutBucket(t *testing.T) {
	cfg := testConfig(t)
	d := New(cfg)

	u := d.artifactUploader(context.Background())
	if u == nil {
		t.Fatal("artifactUploader() = nil, want a local mirror uploader when no GCS bucket is configured")
	}
	if _, ok := u.(*storage.LocalUploader); !ok {
		t.Fatalf("artifactUploader() = %T, want *storage.LocalUploader", u)
	}
}
