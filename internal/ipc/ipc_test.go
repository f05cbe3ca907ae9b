package ipc

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/tomasbasham/chrome-daemon/internal/config"
	"github.com/tomasbasham/chrome-daemon/internal/pool"
	"github.com/tomasbasham/chrome-daemon/internal/rpc"
)

func testServer(t *testing.T) (*Server, string) {
	t.Helper()
	cfg := config.Default()
	p := pool.New(cfg)
	d := rpc.New(p, cfg)
	sockPath := filepath.Join(t.TempDir(), "chrome-daemon.sock")
	return New(sockPath, d, p), sockPath
}

func TestIsDaemonRunningNoSocket(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "nothing.sock")
	if IsDaemonRunning(sockPath) {
		t.Fatal("expected no daemon running against a socket that was never bound")
	}
}

func TestIsDaemonRunningAfterListen(t *testing.T) {
	s, sockPath := testServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- s.ListenAndServe(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for !IsDaemonRunning(sockPath) {
		if time.Now().After(deadline) {
			t.Fatal("daemon never became reachable")
		}
		time.Sleep(10 * time.Millisecond)
	}

	s.Close()
	cancel()
	<-errCh
}

func TestBroadcastWithNoClientsDoesNotBlock(t *testing.T) {
	s, _ := testServer(t)

	done := make(chan struct{})
	go func() {
		s.Broadcast(rpc.Notification{JSONRPC: "2.0", Method: "event", Params: nil})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Broadcast blocked with no connected clients")
	}
}

func TestSendToUnknownClientReturnsFalse(t *testing.T) {
	s, _ := testServer(t)
	if s.SendTo("does-not-exist", rpc.Notification{JSONRPC: "2.0", Method: "event"}) {
		t.Fatal("expected SendTo to report false for an unknown client id")
	}
}

func TestBroadcastDropsOnFullWriterRatherThanBlocking(t *testing.T) {
	s, _ := testServer(t)

	clientID := "slow-client"
	w := make(chan []byte, notificationBuffer)
	s.mu.Lock()
	s.clients[clientID] = w
	s.mu.Unlock()

	for i := 0; i < notificationBuffer; i++ {
		s.Broadcast(rpc.Notification{JSONRPC: "2.0", Method: "event"})
	}

	done := make(chan struct{})
	go func() {
		s.Broadcast(rpc.Notification{JSONRPC: "2.0", Method: "event"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Broadcast blocked once a client's writer channel filled up")
	}
}
