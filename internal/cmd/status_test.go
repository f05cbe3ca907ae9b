package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/tomasbasham/cli-runtime/iooption"
)

// These exercise the default socket path (os.TempDir()/chrome-daemon.sock),
// which nothing in the test environment binds, so both commands should
// observe "not running".

func TestStatusReportsNotRunning(t *testing.T) {
	var out bytes.Buffer
	o := NewStatusOptions(iooption.IOStreams{Out: &out})
	if err := o.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(out.String(), "not running") {
		t.Fatalf("output = %q, want it to report the daemon as not running", out.String())
	}
}

func TestStopWithNoDaemonReturnsError(t *testing.T) {
	var out bytes.Buffer
	o := NewStopOptions(iooption.IOStreams{Out: &out})
	if err := o.Run(); err == nil {
		t.Fatal("expected an error asking a non-running daemon to stop")
	}
}
