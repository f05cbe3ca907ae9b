package pool

import (
	"net"
	"testing"

	"github.com/tomasbasham/chrome-daemon/internal/config"
)

func testPool(t *testing.T) *Pool {
	t.Helper()
	cfg := config.Default()
	cfg.Server.CDPPortRangeStart = 19222
	cfg.Server.CDPPortRangeEnd = 19226
	return New(cfg)
}

func TestAllocatePortSkipsHeldPorts(t *testing.T) {
	p := testPool(t)

	ln, err := net.Listen("tcp", "127.0.0.1:19222")
	if err != nil {
		t.Skipf("could not bind test port: %v", err)
	}
	defer ln.Close()

	port, err := p.allocatePortLocked()
	if err != nil {
		t.Fatalf("allocatePortLocked: %v", err)
	}
	if port == 19222 {
		t.Fatalf("expected allocator to skip the held port, got %d", port)
	}
}

func TestAllocatePortSkipsAlreadyAllocated(t *testing.T) {
	p := testPool(t)

	first, err := p.allocatePortLocked()
	if err != nil {
		t.Fatalf("allocatePortLocked: %v", err)
	}
	second, err := p.allocatePortLocked()
	if err != nil {
		t.Fatalf("allocatePortLocked: %v", err)
	}
	if first == second {
		t.Fatalf("expected distinct ports, got %d twice", first)
	}
}

func TestAllocatePortExhausted(t *testing.T) {
	p := testPool(t)
	p.cfg.Server.CDPPortRangeStart = 19222
	p.cfg.Server.CDPPortRangeEnd = 19222
	p.ports[19222] = true

	if _, err := p.allocatePortLocked(); err == nil {
		t.Fatal("expected an error when the range is exhausted")
	}
}

func TestReleasePort(t *testing.T) {
	p := testPool(t)
	port, err := p.allocatePortLocked()
	if err != nil {
		t.Fatalf("allocatePortLocked: %v", err)
	}
	p.releasePortLocked(port)
	if p.ports[port] {
		t.Fatal("expected port to be released")
	}
}
