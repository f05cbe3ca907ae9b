package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomasbasham/cli-runtime/iooption"
	"github.com/tomasbasham/cli-runtime/templates"

	"github.com/tomasbasham/chrome-daemon/internal/config"
	"github.com/tomasbasham/chrome-daemon/internal/rpc"
)

// StopOptions holds the dependencies for `chromed stop`.
type StopOptions struct {
	iooption.IOStreams
}

var stopLong = templates.LongDesc(`
	Send the shutdown RPC method to a running daemon over the control
	socket, and wait for its response.`)

// NewStopOptions provides an initialised StopOptions instance.
func NewStopOptions(streams iooption.IOStreams) *StopOptions {
	return &StopOptions{IOStreams: streams}
}

// NewStopCommand builds the `chromed stop` command.
func NewStopCommand(o *StopOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "stop",
		Short:   "Ask the running daemon to shut down",
		Long:    stopLong,
		Example: templates.Examples(`chromed stop`),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.Run()
		},
	}
}

// Run dials the control socket, sends a single "shutdown" request, and
// reports the daemon's reply.
func (o *StopOptions) Run() error {
	path := config.SocketPath()
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return fmt.Errorf("chromed does not appear to be running (socket: %s): %w", path, err)
	}
	defer conn.Close()

	req := rpc.Request{JSONRPC: "2.0", ID: 1, Method: "shutdown"}
	line, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encoding shutdown request: %w", err)
	}
	if _, err := conn.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("sending shutdown request: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		return fmt.Errorf("no response from daemon: %w", scanner.Err())
	}

	var resp rpc.Response
	if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
		return fmt.Errorf("decoding shutdown response: %w", err)
	}
	if resp.Error != nil {
		return fmt.Errorf("daemon rejected shutdown: %s", resp.Error.Message)
	}

	fmt.Fprintln(o.Out, "chromed is shutting down")
	return nil
}
