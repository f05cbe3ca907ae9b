package cmd

import (
	"os"

	"github.com/spf13/cobra"

	cliflag "github.com/tomasbasham/cli-runtime/flag"
	"github.com/tomasbasham/cli-runtime/iooption"
	"github.com/tomasbasham/cli-runtime/printer"
	"github.com/tomasbasham/cli-runtime/templates"
)

var (
	rootLong = templates.LongDesc(`
		chromed is a long-lived background service that drives Chrome over
		the DevTools Protocol: it owns a pool of browser sessions, collects
		their network/console/dialog/trace telemetry, and exposes a
		JSON-RPC control socket plus a small HTTP ingress for extension
		events.`)

	rootExamples = templates.Examples(`
		# Run the daemon in the foreground
		chromed serve

		# Check whether a daemon is already listening
		chromed status

		# Ask a running daemon to shut down
		chromed stop`)

	// Injected at build time using ldflags.
	version = ""
	commit  = ""
)

// ChromedOptions are the options shared by every chromed subcommand.
type ChromedOptions struct {
	iooption.IOStreams
}

// NewChromedOptions provides an initialised ChromedOptions instance.
func NewChromedOptions(streams iooption.IOStreams) *ChromedOptions {
	return &ChromedOptions{IOStreams: streams}
}

// NewRootCommand creates the `chromed` command with default arguments.
func NewRootCommand() *cobra.Command {
	options := NewChromedOptions(iooption.IOStreams{
		In:     os.Stdin,
		Out:    os.Stdout,
		ErrOut: os.Stderr,
	})

	return NewRootCommandWithArgs(options)
}

// NewRootCommandWithArgs creates the `chromed` command and its nested
// children.
func NewRootCommandWithArgs(o *ChromedOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:                   "chromed [command]",
		Version:               versionInfo(),
		DisableFlagsInUseLine: true,
		Short:                 "Chrome DevTools Protocol session daemon",
		Long:                  rootLong,
		Example:               rootExamples,
		SilenceErrors:         true,
		SilenceUsage:          true,
	}

	printerOpts := printer.WarningPrinterOptions{Color: true}
	warningPrinter := printer.NewWarningPrinter(o.ErrOut, printerOpts)
	cmd.SetGlobalNormalizationFunc(cliflag.WarnWordSepNormalizeFunc(warningPrinter))

	cmd.AddCommand(NewServeCommand(NewServeOptions()))
	cmd.AddCommand(NewStatusCommand(NewStatusOptions(o.IOStreams)))
	cmd.AddCommand(NewStopCommand(NewStopOptions(o.IOStreams)))

	// The global normalisation function ensures that all flags specified
	// meet the desired format, changing users' input if necessary.
	cmd.SetGlobalNormalizationFunc(cliflag.WordSepNormalizeFunc())

	return cmd
}

func versionInfo() string {
	if version == "" {
		return ""
	}
	return version + " (commit: " + commit + ")"
}
