package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tomasbasham/cli-runtime/iooption"
	"github.com/tomasbasham/cli-runtime/templates"

	"github.com/tomasbasham/chrome-daemon/internal/config"
	"github.com/tomasbasham/chrome-daemon/internal/ipc"
)

// StatusOptions holds the dependencies for `chromed status`.
type StatusOptions struct {
	iooption.IOStreams
}

var statusLong = templates.LongDesc(`
	Report whether a chromed daemon is listening on the control socket.`)

// NewStatusOptions provides an initialised StatusOptions instance.
func NewStatusOptions(streams iooption.IOStreams) *StatusOptions {
	return &StatusOptions{IOStreams: streams}
}

// NewStatusCommand builds the `chromed status` command.
func NewStatusCommand(o *StatusOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		Short:   "Check whether the daemon is running",
		Long:    statusLong,
		Example: templates.Examples(`chromed status`),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.Run()
		},
	}
}

// Run probes the socket and prints a one-line result; a not-running
// daemon is reported, not an error, so scripts branch on the printed
// text; the exit status is zero either way.
func (o *StatusOptions) Run() error {
	path := config.SocketPath()
	if ipc.IsDaemonRunning(path) {
		fmt.Fprintf(o.Out, "chromed is running (socket: %s)\n", path)
		return nil
	}
	fmt.Fprintf(o.Out, "chromed is not running (socket: %s)\n", path)
	return nil
}
