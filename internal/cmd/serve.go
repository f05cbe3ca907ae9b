package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tomasbasham/cli-runtime/templates"

	"github.com/tomasbasham/chrome-daemon/internal/config"
	"github.com/tomasbasham/chrome-daemon/internal/daemon"
)

// ServeOptions configures the daemon's own startup, overriding whatever
// internal/config.Load resolved from the config file/environment.
type ServeOptions struct {
	HTTPPort    int
	MaxSessions int
}

var (
	serveLong = templates.LongDesc(`
		Start the chromed daemon in the foreground: bind the control
		socket and HTTP ingress, and run until a signal or the shutdown
		RPC method is received.`)

	serveExample = templates.Examples(`
		# Start with defaults
		chromed serve

		# Override the HTTP ingress port and pool capacity
		chromed serve --http-port 9225 --max-sessions 10`)
)

// NewServeOptions provides a ServeOptions with zero values; flags fill
// them in, and a zero value means "use the resolved config's default".
func NewServeOptions() *ServeOptions {
	return &ServeOptions{}
}

// NewServeCommand builds the `chromed serve` command.
func NewServeCommand(o *ServeOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Run the daemon in the foreground",
		Long:    serveLong,
		Example: serveExample,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.Run()
		},
	}

	cmd.Flags().IntVar(&o.HTTPPort, "http-port", 0, "HTTP ingress port (0 = use config default)")
	cmd.Flags().IntVar(&o.MaxSessions, "max-sessions", 0, "Pool capacity (0 = use config default)")

	return cmd
}

// Run loads configuration, applies flag overrides, and blocks running
// the daemon until signalled.
func (o *ServeOptions) Run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if o.HTTPPort != 0 {
		cfg.Server.HTTPPort = o.HTTPPort
	}
	if o.MaxSessions != 0 {
		cfg.Server.MaxSessions = o.MaxSessions
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d := daemon.New(cfg)
	return d.Run(ctx)
}
